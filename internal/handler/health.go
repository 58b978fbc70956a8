package handler

import (
	"net/http"
	"runtime"
	"time"
)

// HealthHandler serves GET /api/health.
type HealthHandler struct {
	started            time.Time
	environment        string
	providerConfigured bool
}

func NewHealthHandler(environment string, providerConfigured bool) *HealthHandler {
	return &HealthHandler{
		started:            time.Now(),
		environment:        environment,
		providerConfigured: providerConfigured,
	}
}

// Health reports liveness plus enough orientation (endpoints, environment,
// provider wiring) for someone poking the API for the first time.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(h.started).Seconds(),
		"memory": map[string]interface{}{
			"alloc_bytes":   mem.Alloc,
			"sys_bytes":     mem.Sys,
			"num_gc":        mem.NumGC,
			"num_goroutine": runtime.NumGoroutine(),
		},
		"environment":        h.environment,
		"provider_connected": h.providerConfigured,
		"endpoints": map[string]interface{}{
			"auth": map[string]string{
				"signup":  "POST /api/auth/signup",
				"signin":  "POST /api/auth/signin",
				"profile": "GET /api/auth/profile",
				"signout": "POST /api/auth/signout",
				"check":   "GET /api/auth/check",
			},
			"demo": map[string]string{
				"login_page": "GET /login",
				"home":       "GET /",
			},
		},
	})
}
