package bot

import "go.botmind.dev/internal/core"

// UserMessage translates a use case error into a short reply safe to
// show in chat. Internal detail stays in the logs.
func UserMessage(err *core.UseCaseError) string {
	if err == nil {
		return ""
	}
	switch err.Kind {
	case core.KindValidation:
		return "I couldn't make sense of that request."
	case core.KindNotFound:
		return "I couldn't find what you asked for."
	case core.KindConcurrencyConflict:
		return "Something else changed that just now, please try again."
	default:
		return "Something went wrong on my side, please try again later."
	}
}
