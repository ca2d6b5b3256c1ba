package models

type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// Message is one entry in the conversation log.
type Message struct {
	Sender Sender `json:"sender"`
	Text   string `json:"text"`
}
