package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/diewo77/invoicing/httpx"
)

// Health reports 200 when ping succeeds within two seconds, 503 otherwise.
func Health(ping func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if ping != nil {
			if err := ping(ctx); err != nil {
				httpx.JSONError(w, http.StatusServiceUnavailable, "unavailable", err.Error())
				return
			}
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
