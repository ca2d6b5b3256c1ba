package requestid

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

const Header = "X-Request-ID"

// New returns middleware that makes sure every request has an ID. The ID is taken from
// the X-Request-ID header if present, otherwise a UUID is generated. It is echoed on the
// response.
func New(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(Header)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(Header, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), idKey, id)))
	})
}

type idContextKey int

const idKey idContextKey = 0

func Get(r *http.Request) string {
	id, _ := r.Context().Value(idKey).(string)
	return id
}
