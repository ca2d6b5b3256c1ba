package chat

import (
	"slices"

	"github.com/a-h/chatrelay/models"
)

// Log is an ordered conversation. Functions in this file never modify their input.
type Log []models.Message

// AppendUser returns a copy of the log with a user message added.
func AppendUser(log Log, text string) Log {
	return append(slices.Clone(log), models.Message{Sender: models.SenderUser, Text: text})
}

// MergeReply returns a copy of the log where the last message holds the reply so far.
// If the last message is a bot message its text is replaced with the cumulative text,
// otherwise a new bot message is appended.
func MergeReply(log Log, cumulative string) Log {
	merged := slices.Clone(log)
	if last := len(merged) - 1; last >= 0 && merged[last].Sender == models.SenderBot {
		merged[last].Text = cumulative
		return merged
	}
	return append(merged, models.Message{Sender: models.SenderBot, Text: cumulative})
}

// DropReply returns a copy of the log without its last message if that is a bot message.
func DropReply(log Log) Log {
	if last := len(log) - 1; last >= 0 && log[last].Sender == models.SenderBot {
		return slices.Clone(log[:last])
	}
	return slices.Clone(log)
}
