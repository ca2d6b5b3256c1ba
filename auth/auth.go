package auth

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/a-h/chatrelay/models"
	"github.com/a-h/respond"
	"gopkg.in/yaml.v3"
)

// Anonymous is the user name given to requests when no API keys are configured.
const Anonymous = "anonymous"

// New returns middleware that maps the Authorization header to a user name.
// An empty map disables the check and every request runs as Anonymous.
func New(apiKeyToUserName map[string]string, next http.Handler) *Auth {
	return &Auth{
		Next:             next,
		APIKeyToUserName: apiKeyToUserName,
	}
}

type Auth struct {
	Next             http.Handler
	APIKeyToUserName map[string]string
}

// LoadFromFile reads a map of API key to user name. Files ending in .yaml or .yml are
// read as YAML, everything else as JSON (which is also valid YAML).
func LoadFromFile(name string) (apiKeyToUserName map[string]string, err error) {
	if name == "" {
		return nil, nil
	}
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("auth: failed to read API keys file: %w", err)
	}
	m := make(map[string]string)
	if err = yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("auth: failed to parse API keys file %q: %w", filepath.Base(name), err)
	}
	return m, nil
}

// Parse reads a comma separated list of key:user pairs, e.g. from an environment variable.
func Parse(s string) (apiKeyToUserName map[string]string, err error) {
	m := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		key, user, ok := strings.Cut(pair, ":")
		if !ok || key == "" || user == "" {
			return nil, fmt.Errorf("auth: invalid key:user pair %q", pair)
		}
		m[key] = user
	}
	return m, nil
}

type userContextKey int

const userKey userContextKey = 0

func GetUser(r *http.Request) (user string, ok bool) {
	user, ok = r.Context().Value(userKey).(string)
	return
}

func (a *Auth) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	user := Anonymous
	if len(a.APIKeyToUserName) > 0 {
		var ok bool
		user, ok = a.APIKeyToUserName[strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")]
		if !ok {
			respond.WithJSON(w, models.ChatErrorResponse{Error: "unauthorized"}, http.StatusUnauthorized)
			return
		}
	}
	r = r.WithContext(context.WithValue(r.Context(), userKey, user))
	a.Next.ServeHTTP(w, r)
}
