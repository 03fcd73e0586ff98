package app

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"slackkanbanize/internal/scheduler"
)

type healthResponse struct {
	Status    string     `json:"status"`
	Runs      int        `json:"runs"`
	Skipped   int        `json:"skipped"`
	LastStart *time.Time `json:"last_start,omitempty"`
	LastEnd   *time.Time `json:"last_end,omitempty"`
	LastError string     `json:"last_error,omitempty"`
	Next      *time.Time `json:"next,omitempty"`
}

// statusRouter serves /metrics and /healthz. /healthz answers 503 while the
// most recent pass failed so a probe can alert on a stuck feed.
func (a *App) statusRouter(runner *scheduler.Runner) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Method(http.MethodGet, "/metrics", a.metrics.Handler())
	if a.cfg.Metrics.Pprof {
		r.Mount("/debug", middleware.Profiler())
	}
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		st := runner.Status()
		resp := healthResponse{Status: "ok", Runs: st.Runs, Skipped: st.Skipped}
		resp.LastStart = timePtr(st.LastStart)
		resp.LastEnd = timePtr(st.LastEnd)
		resp.Next = timePtr(st.Next)
		code := http.StatusOK
		if st.LastErr != nil {
			resp.Status = "failing"
			resp.LastError = st.LastErr.Error()
			code = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(resp)
	})
	return r
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
