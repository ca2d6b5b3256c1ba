package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net"
	"net/http"
	"time"

	"github.com/a-h/chatrelay/auth"
	chatpost "github.com/a-h/chatrelay/handlers/chat/post"
	"github.com/a-h/chatrelay/provider"
	"github.com/a-h/chatrelay/requestid"
	"github.com/rs/cors"
	"github.com/tmc/langchaingo/llms"
)

type ServeCommand struct {
	Host         string `help:"The host to listen on." env:"HOST" default:""`
	Port         string `help:"The port to listen on." env:"PORT" default:"3001"`
	Provider     string `help:"The LLM provider: openai, ollama or test." env:"PROVIDER" default:"openai" enum:"openai,ollama,test"`
	Model        string `help:"The model to chat with." env:"CHAT_MODEL" default:"gpt-4o"`
	APIKey       string `help:"The OpenAI API key." env:"GPT_API_KEY" default:""`
	OpenAIURL    string `help:"The base URL of an OpenAI compatible API." env:"OPENAI_BASE_URL" default:""`
	OllamaURL    string `help:"The URL of the Ollama server." env:"OLLAMA_URL" default:"http://127.0.0.1:11434/"`
	SystemPrompt string `help:"A file containing the system prompt to use." env:"SYSTEM_PROMPT" default:""`
	TLSCertFile  string `help:"The TLS certificate file." env:"TLS_CERT_FILE" default:""`
	TLSKeyFile   string `help:"The TLS key file." env:"TLS_KEY_FILE" default:""`
	APIKeysFile  string `help:"A JSON or YAML file mapping API keys to user names. If no keys are configured, the relay is open." env:"API_KEYS_FILE" default:""`
	APIKeys      string `help:"Comma separated key:user pairs, added to the keys file." env:"API_KEYS" default:""`
	LogLevel     string `help:"The log level to use." env:"LOG_LEVEL" default:"info"`
}

// newHandler wires the relay routes and middleware.
func newHandler(log *slog.Logger, llm llms.Model, systemPrompt string, apiKeyToUserName map[string]string) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("POST /api/chat", chatpost.New(log, llm, systemPrompt))
	authenticatedMux := auth.New(apiKeyToUserName, mux)
	return requestid.New(cors.AllowAll().Handler(authenticatedMux))
}

func (c ServeCommand) apiKeys() (map[string]string, error) {
	fromFile, err := auth.LoadFromFile(c.APIKeysFile)
	if err != nil {
		return nil, err
	}
	fromEnv, err := auth.Parse(c.APIKeys)
	if err != nil {
		return nil, err
	}
	m := make(map[string]string, len(fromFile)+len(fromEnv))
	maps.Copy(m, fromFile)
	maps.Copy(m, fromEnv)
	return m, nil
}

func (c ServeCommand) Run(ctx context.Context) (err error) {
	log := getLogger(c.LogLevel)
	systemPrompt, err := readFileOrDefault(c.SystemPrompt, chatpost.DefaultSystemPrompt)
	if err != nil {
		return fmt.Errorf("failed to read system prompt: %w", err)
	}
	if c.Provider == provider.OpenAI && c.APIKey == "" {
		return fmt.Errorf("GPT_API_KEY must be set to use the %s provider", c.Provider)
	}

	log.Info("creating LLM client", slog.String("provider", c.Provider), slog.String("model", c.Model))
	llm, err := provider.New(provider.Config{
		Provider:  c.Provider,
		Model:     c.Model,
		APIKey:    c.APIKey,
		OpenAIURL: c.OpenAIURL,
		OllamaURL: c.OllamaURL,
	}, &http.Client{})
	if err != nil {
		return fmt.Errorf("failed to create LLM: %w", err)
	}

	apiKeyToUserName, err := c.apiKeys()
	if err != nil {
		return fmt.Errorf("failed to load API keys: %w", err)
	}
	if len(apiKeyToUserName) == 0 {
		log.Warn("no API keys configured, the relay is open to all callers")
	}

	addr := net.JoinHostPort(c.Host, c.Port)
	s := &http.Server{
		Addr:              addr,
		Handler:           newHandler(log, llm, systemPrompt, apiKeyToUserName),
		ReadHeaderTimeout: 10 * time.Second,
	}
	listen := s.ListenAndServe
	if c.TLSCertFile != "" && c.TLSKeyFile != "" {
		log.Info("Enabling TLS mode")
		var cert tls.Certificate
		cert, err = tls.LoadX509KeyPair(c.TLSCertFile, c.TLSKeyFile)
		if err != nil {
			return fmt.Errorf("failed to load cert: %w", err)
		}
		s.TLSConfig = &tls.Config{
			MinVersion:   tls.VersionTLS12,
			Certificates: []tls.Certificate{cert},
		}
		listen = func() error { return s.ListenAndServeTLS("", "") }
	}

	errs := make(chan error, 1)
	go func() {
		log.Info("Listening", slog.String("addr", addr))
		errs <- listen()
	}()
	select {
	case err = <-errs:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err = s.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	return nil
}
