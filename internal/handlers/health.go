package handlers

import (
	"context"
	"net/http"
	"time"
)

// Pinger is anything that can report whether its backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Health always answers 200 while the process is serving.
func Health(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("ok"))
}

// Ready answers 200 when the store responds to a ping within two seconds, 503 otherwise.
func Ready(p Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := p.Ping(ctx); err != nil {
			JSONError(w, "store unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ready"))
	}
}
