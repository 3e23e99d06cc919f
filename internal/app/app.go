package app

import (
	"context"
	"fmt"
	"image"
	"os"
	"time"

	"github.com/google/uuid"

	"orbitcam/internal/camera"
	"orbitcam/internal/classifier"
	"orbitcam/internal/config"
	"orbitcam/internal/downlink"
	"orbitcam/internal/geocode"
	"orbitcam/internal/geotag"
	"orbitcam/internal/live"
	"orbitcam/internal/location"
	"orbitcam/internal/logger"
	"orbitcam/internal/pipeline"
	"orbitcam/internal/records"
	"orbitcam/internal/repository/sqlite"
)

// StartupError aborts the process before the loop begins.
type StartupError struct {
	Component string
	Err       error
}

func (e *StartupError) Error() string {
	return fmt.Sprintf("startup failed (%s): %v", e.Component, e.Err)
}

func (e *StartupError) Unwrap() error {
	return e.Err
}

type App struct {
	config     *config.Config
	runID      string
	logger     *logger.Logger
	store      *records.Store
	catalog    *sqlite.DB
	hub        *live.Hub
	controller *pipeline.Controller

	observations *sqlite.ObservationRepository
	closers      []func() error
}

// New acquires every resource the loop needs. On failure, whatever was
// already acquired is released and a *StartupError is returned.
func New(cfg *config.Config) (*App, error) {
	start := time.Now()

	a := &App{config: cfg, runID: uuid.NewString()}
	ready := false
	defer func() {
		if !ready {
			a.Close()
		}
	}()

	fail := func(component string, cause error) error {
		if a.logger != nil {
			a.logger.Error("Startup failed (%s): %v", component, cause)
		}
		return &StartupError{Component: component, Err: cause}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fail("config", err)
	}

	imageDir := cfg.Resolve(cfg.ImageDirectory)
	if err := os.MkdirAll(imageDir, 0755); err != nil {
		return nil, fail("image directory", err)
	}

	eventLog, err := logger.New(cfg.Resolve(cfg.EventLog))
	if err != nil {
		return nil, fail("event log", err)
	}
	a.logger = eventLog
	a.closers = append(a.closers, a.logger.Close)
	a.logger.Info("Run %s starting in %s", a.runID, cfg.BaseDirectory)

	a.store, err = records.Initialize(cfg.Resolve(cfg.DataFile))
	if err != nil {
		return nil, fail("record log", err)
	}
	if torn := a.store.Truncated(); torn != "" {
		a.logger.Warning("Removed incomplete last row from %s: %q", a.store.Path(), torn)
	}

	labels, err := classifier.LoadLabels(cfg.Resolve(cfg.LabelPath))
	if err != nil {
		return nil, fail("labels", err)
	}

	index, err := geocode.Load(cfg.Resolve(cfg.GeoIndexPath))
	if err != nil {
		return nil, fail("geographic index", err)
	}
	a.logger.Info("Loaded %d labels and %d places", labels.Len(), index.Len())

	source, err := newLocationSource(cfg)
	if err != nil {
		return nil, fail("location source", err)
	}

	engine, err := classifier.LoadGocvEngine(cfg.Resolve(cfg.ModelPath), cfg.Resolve(cfg.ModelConfigPath),
		image.Pt(cfg.ModelInputWidth, cfg.ModelInputHeight))
	if err != nil {
		return nil, fail("model", err)
	}
	a.closers = append(a.closers, engine.Close)

	device, err := camera.OpenGocvDevice(cfg.CameraDevice, cfg.CameraWidth, cfg.CameraHeight)
	if err != nil {
		return nil, fail("camera", err)
	}
	a.closers = append(a.closers, device.Close)

	a.hub = live.NewHub(a.logger)
	observers := []pipeline.Observer{a.hub}
	observers = append(observers, a.openOptional()...)

	a.controller = pipeline.NewController(
		pipeline.NewDeadline(start, cfg.RunBudget),
		pipeline.Config{
			RunID:         a.runID,
			ImageDir:      imageDir,
			Interval:      cfg.CaptureInterval,
			DiscardLabels: cfg.DiscardLabels,
		},
		pipeline.Dependencies{
			Capturer:   camera.NewAdapter(device, source),
			Classifier: classifier.New(engine, labels),
			Resolver:   index,
			Store:      a.store,
			Log:        a.logger,
			Observers:  observers,
		},
	)

	ready = true
	return a, nil
}

// openOptional connects the catalog and downlinks. None of them is
// required for the run, so failures are only logged.
func (a *App) openOptional() []pipeline.Observer {
	var observers []pipeline.Observer
	cfg := a.config

	if cfg.CatalogPath != "" {
		db, err := sqlite.New(cfg.Resolve(cfg.CatalogPath))
		if err != nil {
			a.logger.Warning("Catalog disabled: %v", err)
		} else {
			a.catalog = db
			a.observations = sqlite.NewObservationRepository(db)
			a.closers = append(a.closers, db.Close)
			observers = append(observers, &catalogObserver{repo: a.observations})
		}
	}

	if cfg.MQTTBroker != "" {
		publisher, err := downlink.ConnectMQTT(cfg.MQTTBroker, cfg.MQTTClientID, cfg.MQTTTopic)
		if err != nil {
			a.logger.Warning("MQTT downlink disabled: %v", err)
		} else {
			a.closers = append(a.closers, publisher.Close)
			observers = append(observers, downlink.NewObserver("mqtt", publisher))
		}
	}

	if len(cfg.KafkaBrokers) > 0 {
		publisher := downlink.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, a.logger)
		a.closers = append(a.closers, publisher.Close)
		observers = append(observers, downlink.NewObserver("kafka", publisher))
	}

	return observers
}

func newLocationSource(cfg *config.Config) (location.Source, error) {
	if cfg.LocationSource == config.LocationStatic {
		return location.NewStaticSource(geotag.Point{Latitude: cfg.StaticLatitude, Longitude: cfg.StaticLongitude})
	}
	return location.LoadTLE(cfg.Resolve(cfg.TLEPath))
}

func (a *App) RunID() string {
	return a.runID
}

// Run executes the loop until its deadline or until ctx is cancelled. The
// status server, when configured, lives exactly as long as the loop.
func (a *App) Run(ctx context.Context) pipeline.Stats {
	serveCtx, stop := context.WithCancel(ctx)
	defer stop()

	go a.hub.Run(serveCtx)

	if a.config.ListenAddr != "" {
		opts := live.Options{
			RunID:    a.runID,
			Status:   a.controller,
			EventLog: a.logger.Path(),
			Hub:      a.hub,
			Logger:   a.logger,
		}
		if a.observations != nil {
			opts.Catalog = a.observations
		}
		go func() {
			if err := live.Serve(serveCtx, a.config.ListenAddr, live.SetupRoutes(opts), a.logger); err != nil {
				a.logger.Warning("Status server stopped: %v", err)
			}
		}()
	}

	return a.controller.Run(ctx)
}

// Close releases resources in reverse order of acquisition. It is safe to
// call on a partially constructed App.
func (a *App) Close() error {
	var firstErr error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	a.closers = nil
	return firstErr
}
