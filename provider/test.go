package provider

import (
	"context"
	"slices"
	"time"

	"github.com/tmc/langchaingo/llms"
)

const TestMessage = `Hello!

I'm a test message.

I'm here to help you test your integration with the API.

If you can see me, then your integration is working!`

// TestModel streams a fixed message without calling an LLM.
type TestModel struct {
	text      string
	chunkSize int
	delay     time.Duration
}

func NewTestModel(text string, chunkSize int, delay time.Duration) TestModel {
	if chunkSize < 1 {
		chunkSize = 1
	}
	return TestModel{
		text:      text,
		chunkSize: chunkSize,
		delay:     delay,
	}
}

func (m TestModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	var opts llms.CallOptions
	for _, o := range options {
		o(&opts)
	}
	for chunk := range slices.Chunk([]rune(m.text), m.chunkSize) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if opts.StreamingFunc != nil {
			if err := opts.StreamingFunc(ctx, []byte(string(chunk))); err != nil {
				return nil, err
			}
		}
		time.Sleep(m.delay)
	}
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: m.text}},
	}, nil
}

func (m TestModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}
