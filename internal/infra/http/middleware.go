package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/Spok95/makerspace/internal/clients"
	"github.com/Spok95/makerspace/internal/domain/users"
)

type clientHandler func(w http.ResponseWriter, r *http.Request, c *clients.Client, u users.User)

// withClient проверяет Bearer-токен и находит (или создаёт) состояние клиента.
func (a *API) withClient(next clientHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
			writeMessage(w, http.StatusUnauthorized, "authorization header must be 'Bearer <token>'")
			return
		}
		u, err := a.Auth.ParseToken(parts[1])
		if err != nil {
			a.writeError(w, err)
			return
		}
		next(w, r, a.Clients.Get(u), u)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (a *API) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		a.Log.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"took", time.Since(start),
		)
	})
}
