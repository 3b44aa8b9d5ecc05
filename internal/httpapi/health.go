package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/dejobratic/storefront/internal/database"
)

// RegisterHealth binds liveness and readiness checks. Readiness pings every
// dependency; a nil Pinger is skipped.
func RegisterHealth(mux *http.ServeMux, logger *slog.Logger, deps map[string]database.Pinger) {
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, map[string]any{"status": "ok"})
	})

	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		checks := make(map[string]string, len(deps))
		status := http.StatusOK
		for name, dep := range deps {
			if dep == nil {
				continue
			}
			if err := database.CheckHealth(r.Context(), dep); err != nil {
				logger.WarnContext(r.Context(), "readiness check failed", "dependency", name, "error", err)
				checks[name] = "unavailable"
				status = http.StatusServiceUnavailable
				continue
			}
			checks[name] = "ok"
		}

		overall := "ok"
		if status != http.StatusOK {
			overall = "unavailable"
		}
		writeStatus(w, status, map[string]any{"status": overall, "checks": checks})
	})
}

func writeStatus(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
