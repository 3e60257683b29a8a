package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/maxiofs/miniogate/internal/metrics"
)

// statusResponse is the /status payload
type statusResponse struct {
	Status        string                  `json:"status"`
	UptimeSeconds int64                   `json:"uptime_seconds"`
	Upstream      string                  `json:"upstream"`
	System        *metrics.SystemSnapshot `json:"system"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	resp := statusResponse{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(s.startTime) / time.Second),
		Upstream:      s.config.Upstream.Protocol + "://" + s.config.Upstream.Host,
		System:        metrics.CollectSystem(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logrus.WithError(err).Debug("Failed to encode status response")
	}
}
