package provider

import (
	"fmt"
	"net/http"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

const (
	OpenAI = "openai"
	Ollama = "ollama"
	Test   = "test"
)

type Config struct {
	Provider  string
	Model     string
	APIKey    string
	OpenAIURL string
	OllamaURL string
}

// New creates the chat model the relay streams from.
func New(c Config, httpClient *http.Client) (llms.Model, error) {
	switch c.Provider {
	case OpenAI:
		opts := []openai.Option{
			openai.WithToken(c.APIKey),
			openai.WithModel(c.Model),
			openai.WithHTTPClient(httpClient),
		}
		if c.OpenAIURL != "" {
			opts = append(opts, openai.WithBaseURL(c.OpenAIURL))
		}
		llm, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create OpenAI client: %w", err)
		}
		return llm, nil
	case Ollama:
		llm, err := ollama.New(
			ollama.WithModel(c.Model),
			ollama.WithHTTPClient(httpClient),
			ollama.WithServerURL(c.OllamaURL))
		if err != nil {
			return nil, fmt.Errorf("failed to create Ollama client: %w", err)
		}
		return llm, nil
	case Test:
		return NewTestModel(TestMessage, 4, 100*time.Millisecond), nil
	}
	return nil, fmt.Errorf("unknown provider %q", c.Provider)
}
