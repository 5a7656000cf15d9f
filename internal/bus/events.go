package bus

import "time"

// Wire payloads for the platform topics. Field names are the wire
// contract; both processes decode them from envelope payloads.

// HeartbeatEvent is published on TopicHeartbeat.
type HeartbeatEvent struct {
	At time.Time `json:"at"`
}

// MessageReceivedEvent is published on TopicDiscordMessage and
// TopicDiscordDirectMessage.
type MessageReceivedEvent struct {
	Author    string `json:"author"`
	Content   string `json:"content"`
	ChannelID string `json:"channel_id"`
}

// SpeakEvent is published on TopicBotSpeak and tells the bot process
// what to deliver where.
type SpeakEvent struct {
	Content   string `json:"content"`
	ChannelID string `json:"channel_id"`
}

// SNSUpdateEvent is published on TopicSNSUpdate by external feed
// watchers.
type SNSUpdateEvent struct {
	Text string `json:"text"`
}
