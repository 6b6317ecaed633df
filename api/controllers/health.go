package controllers

import (
	"net/http"

	"github.com/panelcraft/panelcraft-backend/api/responses"
	"github.com/panelcraft/panelcraft-backend/pkg/config"
	"github.com/panelcraft/panelcraft-backend/pkg/db"
)

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-PanelCraft-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady checks the datasources the API cannot serve without.
func HealthReady(cfg *config.Config, database db.Pinger, cache db.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-PanelCraft-Env", cfg.App.Env)

		checks := map[string]string{"database": "ok", "redis": "ok"}
		healthy := true
		if database != nil {
			if err := database.Ping(r.Context()); err != nil {
				checks["database"] = err.Error()
				healthy = false
			}
		}
		if cache != nil {
			if err := cache.Ping(r.Context()); err != nil {
				checks["redis"] = err.Error()
				healthy = false
			}
		}

		status := http.StatusOK
		if !healthy {
			status = http.StatusServiceUnavailable
		}
		responses.WriteSuccessStatus(w, status, checks)
	}
}
