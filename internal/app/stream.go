package app

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"userdeck/internal/review"
)

const streamKeepAlive = 25 * time.Second

// handleStream pushes the partitions as server-sent events: one "view" on connect and
// after every change, plus an "arrivals" event when new pending submissions come in.
func (s *HTTPServer) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "STREAM_UNSUPPORTED", "Streaming is not supported", nil)
		return
	}

	events, cancel := s.service.Subscribe(16)
	defer cancel()

	query := r.URL.Query().Get("q")
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	if err := writeEvent(w, "view", s.service.View(query)); err != nil {
		return
	}
	flusher.Flush()

	keepAlive := time.NewTicker(streamKeepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-s.streamsDone:
			return
		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case event, open := <-events:
			if !open {
				return
			}
			if event.Kind == review.EventArrivals {
				payload := map[string]any{"count": event.Count, "message": event.Message()}
				if err := writeEvent(w, "arrivals", payload); err != nil {
					return
				}
			}
			if err := writeEvent(w, "view", s.service.View(query)); err != nil {
				s.logger.Debug("stream closed", zap.Error(err))
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, name string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
	return err
}
