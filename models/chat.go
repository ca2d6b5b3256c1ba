package models

// ChatPostRequest is the body of POST /api/chat.
type ChatPostRequest struct {
	Message string `json:"message"`
}

// ChatErrorResponse is returned when the relay fails before any reply text was written.
type ChatErrorResponse struct {
	Error string `json:"error"`
}

// ErrorSentinel is appended to a plain text reply when the provider fails after
// streaming has started. Callers must treat it as a failure signal, not model output.
const ErrorSentinel = "\n[ERROR]: Something went wrong. Please try again later."

// ChatEventsContentType selects the framed stream when sent in the Accept header.
const ChatEventsContentType = "application/x-ndjson"

type ChatEventType string

const (
	ChatEventTypeContent ChatEventType = "content"
	ChatEventTypeError   ChatEventType = "error"
)

// ChatEvent is one line of a framed stream.
type ChatEvent struct {
	Type ChatEventType `json:"type"`
	Text string        `json:"text"`
}
