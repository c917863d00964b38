// Package web serves the latest rendered snapshot and a live stream of
// fired alerts over HTTP. It is the browsable counterpart of the
// out_message file the bot used to drop on disk.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/mkeller/signalgram/internal/domain"
)

const alertPollInterval = 2 * time.Second

// ReportSource returns the most recently rendered snapshot message.
type ReportSource func() string

type alertReader interface {
	EventsAfter(index uint64) ([]domain.AlertEventRecord, error)
}

// Server exposes HTTP endpoints serving the status page and an SSE
// stream of alert events.
type Server struct {
	Addr    string
	Latest  ReportSource
	Journal alertReader
	logger  *zap.Logger
}

// NewServer creates a new status server instance.
func NewServer(addr string, latest ReportSource, journal alertReader, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{Addr: addr, Latest: latest, Journal: journal, logger: logger}
}

// Start runs the HTTP server (blocking) and shuts it down when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/alerts/stream", s.handleAlertStream)

	server := &http.Server{
		Addr:              s.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	report := ""
	if s.Latest != nil {
		report = s.Latest()
	}
	if report == "" {
		report = "no snapshot rendered yet"
	}

	fmt.Fprintf(w, indexHTML, html.EscapeString(report))
}

func (s *Server) handleAlertStream(w http.ResponseWriter, r *http.Request) {
	if s.Journal == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, "alert journal not available")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// send a comment heartbeat every 30s so proxies keep connection
	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	pollTicker := time.NewTicker(alertPollInterval)
	defer pollTicker.Stop()

	lastIndex := uint64(0)
	sendAlerts := func() error {
		records, err := s.Journal.EventsAfter(lastIndex)
		if err != nil {
			return err
		}
		for _, record := range records {
			payload, err := json.Marshal(record.Event)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "event: alert\n")
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
			lastIndex = record.Index
		}
		return nil
	}

	if err := sendAlerts(); err != nil {
		http.Error(w, "failed to load alerts", http.StatusInternalServerError)
		s.logger.Error("alert stream initial load failed", zap.Error(err))
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprintf(w, ": ping\n\n")
			flusher.Flush()
		case <-pollTicker.C:
			if err := sendAlerts(); err != nil {
				s.logger.Warn("alert stream poll failed", zap.Error(err))
			}
		}
	}
}

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>signalgram</title>
<style>
body { font-family: monospace; background: #111; color: #ddd; margin: 2em; }
pre  { white-space: pre-wrap; background: #1a1a1a; padding: 1em; border-radius: 6px; }
#alerts li { margin: 0.3em 0; }
</style>
</head>
<body>
<h2>signalgram — latest snapshot</h2>
<pre>%s</pre>
<h2>alerts</h2>
<ul id="alerts"></ul>
<script>
const src = new EventSource("/alerts/stream");
src.addEventListener("alert", function (e) {
  const ev = JSON.parse(e.data);
  const li = document.createElement("li");
  li.textContent = ev.time + " " + ev.symbol + " " + ev.signal + " @ " + ev.price + " — " + ev.reason;
  document.getElementById("alerts").prepend(li);
});
</script>
</body>
</html>`
