package live

import (
	"context"
	"errors"
	"net/http"
	"time"
)

type Options struct {
	RunID    string
	Status   StatusSource
	Catalog  ObservationLister // optional
	EventLog string
	Hub      *Hub
	Logger   Logger
}

// SetupRoutes registers the status API.
func SetupRoutes(opts Options) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/status", StatusHandler(opts.RunID, opts.Status, opts.Hub))
	mux.HandleFunc("/api/observations", ObservationsHandler(opts.Catalog))
	mux.HandleFunc("/api/view", ViewWebsocketHandler(opts.Hub, opts.Logger))
	mux.HandleFunc("/logs/events", EventLogHandler(opts.EventLog))

	return mux
}

// Serve runs the status server on addr until ctx is done.
func Serve(ctx context.Context, addr string, handler http.Handler, logger Logger) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Status server listening on %s", addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}
