package live

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"orbitcam/internal/models"
	"orbitcam/internal/pipeline"

	"github.com/gorilla/websocket"
)

var Upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// StatusSource exposes the running controller.
type StatusSource interface {
	State() pipeline.State
	Deadline() pipeline.Deadline
	Stats() pipeline.Stats
}

// ObservationLister is the read side of the catalog.
type ObservationLister interface {
	GetAll(filter *models.ObservationFilter) ([]models.Observation, error)
}

type StatusResponse struct {
	RunID       string         `json:"run_id"`
	State       string         `json:"state"`
	Started     time.Time      `json:"started"`
	Deadline    time.Time      `json:"deadline"`
	Remaining   string         `json:"remaining"`
	Iterations  int            `json:"iterations"`
	Recorded    int            `json:"recorded"`
	Discarded   int            `json:"discarded"`
	Failures    map[string]int `json:"failures"`
	LastLabel   string         `json:"last_label,omitempty"`
	LastCountry string         `json:"last_country,omitempty"`
	LastCapture *time.Time     `json:"last_capture,omitempty"`
	Viewers     int            `json:"viewers"`
}

func StatusHandler(runID string, source StatusSource, hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		deadline := source.Deadline()
		stats := source.Stats()
		response := StatusResponse{
			RunID:       runID,
			State:       source.State().String(),
			Started:     deadline.Start(),
			Deadline:    deadline.End(),
			Remaining:   deadline.Remaining(time.Now()).Round(time.Second).String(),
			Iterations:  stats.Iterations,
			Recorded:    stats.Recorded,
			Discarded:   stats.Discarded,
			Failures:    stats.FailureCounts(),
			LastLabel:   stats.LastLabel,
			LastCountry: stats.LastCountry,
			Viewers:     hub.ClientCount(),
		}
		if !stats.LastCapture.IsZero() {
			last := stats.LastCapture
			response.LastCapture = &last
		}

		writeJSON(w, response)
	}
}

func ObservationsHandler(catalog ObservationLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if catalog == nil {
			http.Error(w, "Catalog disabled", http.StatusServiceUnavailable)
			return
		}

		query := r.URL.Query()
		limit, err := strconv.Atoi(query.Get("limit"))
		if limit <= 0 || err != nil {
			limit = 50
		}
		offset, err := strconv.Atoi(query.Get("offset"))
		if offset < 0 || err != nil {
			offset = 0
		}

		observations, err := catalog.GetAll(&models.ObservationFilter{
			RunID:   query.Get("run"),
			Label:   query.Get("label"),
			Country: query.Get("country"),
			Limit:   limit,
			Offset:  offset,
		})
		if err != nil {
			http.Error(w, "Unable to read catalog", http.StatusInternalServerError)
			return
		}
		if observations == nil {
			observations = []models.Observation{}
		}

		writeJSON(w, observations)
	}
}

func ViewWebsocketHandler(hub *Hub, logger Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		connection, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("WebSocket upgrade error: %v", err)
			return
		}
		defer connection.Close()

		connection.SetReadLimit(512)
		connection.SetReadDeadline(time.Now().Add(hub.pongWait))
		connection.SetPongHandler(func(appData string) error {
			connection.SetReadDeadline(time.Now().Add(hub.pongWait))
			return nil
		})

		if !hub.Register(connection) {
			return
		}
		defer hub.Unregister(connection)

		stop := make(chan struct{})
		defer close(stop)
		go keepAlive(connection, hub.pingPeriod, stop)

		for {
			if _, _, err := connection.ReadMessage(); err != nil {
				break
			}
		}
	}
}

// keepAlive pings the viewer every period so idle viewers keep extending
// their read deadline through pongs.
func keepAlive(connection *websocket.Conn, period time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := connection.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second)); err != nil {
				return
			}
		}
	}
}

func EventLogHandler(path string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		serveLogFile(w, r, path)
	}
}

func serveLogFile(w http.ResponseWriter, r *http.Request, path string) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("Log file not found: " + filepath.Base(path)))
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	http.ServeFile(w, r, path)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}
