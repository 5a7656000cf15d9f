package bot

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// inboundRequest is the webhook body for an inbound platform message.
type inboundRequest struct {
	Author    string `json:"author"`
	Content   string `json:"content"`
	ChannelID string `json:"channel_id"`
	Direct    bool   `json:"direct"`
	FromBot   bool   `json:"from_bot"`
}

// Mount attaches the ingest webhook so a gateway process can forward
// platform messages over HTTP.
func (i *Ingest) Mount(r chi.Router) {
	r.Post("/ingest/message", i.handleInboundHTTP)
}

func (i *Ingest) handleInboundHTTP(w http.ResponseWriter, r *http.Request) {
	var req inboundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if req.Content == "" || req.ChannelID == "" {
		http.Error(w, "content and channel_id are required", http.StatusBadRequest)
		return
	}

	i.HandleInbound(r.Context(), InboundMessage{
		Author:    req.Author,
		Content:   req.Content,
		ChannelID: req.ChannelID,
		Direct:    req.Direct,
		FromBot:   req.FromBot,
	})
	w.WriteHeader(http.StatusAccepted)
}
