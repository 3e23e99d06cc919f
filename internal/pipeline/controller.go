// Package pipeline drives the time-boxed capture, classify and record loop.
package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"orbitcam/internal/camera"
	"orbitcam/internal/classifier"
	"orbitcam/internal/geocode"
	"orbitcam/internal/models"
	"orbitcam/internal/records"
)

// State of the controller.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateTerminated:
		return "terminated"
	default:
		return "idle"
	}
}

// Outcome of a single iteration.
type Outcome int

const (
	OutcomeRecorded Outcome = iota + 1
	OutcomeDiscarded
	OutcomeFailed
)

type (
	Capturer interface {
		Capture(path string) (*camera.CapturedImage, error)
	}
	Classifier interface {
		Classify(path string) (classifier.Result, error)
	}
	Resolver interface {
		Resolve(lat, lon float64) (geocode.LocationInfo, error)
	}
	RecordStore interface {
		Append(rec records.Record) error
	}
	EventLog interface {
		Info(format string, v ...interface{})
		Warning(format string, v ...interface{})
		Error(format string, v ...interface{})
	}
)

// Observer is notified of every classified capture, recorded or discarded.
// Observers run synchronously on the loop and must return quickly.
type Observer interface {
	Name() string
	Observe(ctx context.Context, obs models.Observation) error
}

// Config holds the loop parameters.
type Config struct {
	RunID         string
	ImageDir      string
	Interval      time.Duration
	DiscardLabels []string
}

// Dependencies are the collaborators of the controller. Clock defaults to
// SystemClock.
type Dependencies struct {
	Capturer   Capturer
	Classifier Classifier
	Resolver   Resolver
	Store      RecordStore
	Log        EventLog
	Clock      Clock
	Observers  []Observer
}

// Iteration describes what happened in one pass of the loop.
type Iteration struct {
	Timestamp      time.Time
	ImagePath      string
	Classification classifier.Result
	Location       geocode.LocationInfo
	Outcome        Outcome
	Err            *StepError
}

// Stats counts iteration outcomes.
type Stats struct {
	Iterations       int          `json:"iterations"`
	Recorded         int          `json:"recorded"`
	Discarded        int          `json:"discarded"`
	Failures         map[Kind]int `json:"-"`
	LastLabel        string       `json:"last_label,omitempty"`
	LastCountry      string       `json:"last_country,omitempty"`
	LastCapture      time.Time    `json:"last_capture"`
	ResolveFallbacks int          `json:"resolve_fallbacks"`
}

// Controller runs the loop until its deadline.
type Controller struct {
	cfg      Config
	deps     Dependencies
	deadline Deadline
	discard  map[string]struct{}

	mu    sync.RWMutex
	state State
	stats Stats
}

// NewController creates a controller bound to deadline.
func NewController(deadline Deadline, cfg Config, deps Dependencies) *Controller {
	if deps.Clock == nil {
		deps.Clock = SystemClock{}
	}

	discard := make(map[string]struct{}, len(cfg.DiscardLabels))
	for _, label := range cfg.DiscardLabels {
		discard[label] = struct{}{}
	}

	return &Controller{
		cfg:      cfg,
		deps:     deps,
		deadline: deadline,
		discard:  discard,
		stats:    Stats{Failures: make(map[Kind]int)},
	}
}

// Deadline returns the controller's deadline.
func (c *Controller) Deadline() Deadline {
	return c.deadline
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Stats returns a copy of the counters.
func (c *Controller) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := c.stats
	s.Failures = make(map[Kind]int, len(c.stats.Failures))
	for k, v := range c.stats.Failures {
		s.Failures[k] = v
	}
	return s
}

// Run iterates until the deadline passes or ctx is cancelled. The deadline
// is only checked between iterations, so an iteration in progress always
// completes. Every iteration is followed by the configured pause.
func (c *Controller) Run(ctx context.Context) Stats {
	c.setState(StateRunning)
	c.deps.Log.Info("Pipeline %s running until %s (budget %s, interval %s)",
		c.cfg.RunID, c.deadline.End().Format(time.RFC3339), c.deadline.Budget(), c.cfg.Interval)

	for {
		now := c.deps.Clock.Now()
		if c.deadline.Expired(now) {
			c.deps.Log.Info("Deadline reached at %s", models.FormatTimestamp(now))
			break
		}
		if ctx.Err() != nil {
			c.deps.Log.Warning("Pipeline cancelled before deadline: %v", ctx.Err())
			break
		}

		c.RunIteration(ctx, now)

		if err := c.deps.Clock.Sleep(ctx, c.cfg.Interval); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			c.deps.Log.Error("Sleep interrupted: %v", err)
		}
	}

	c.setState(StateTerminated)
	stats := c.Stats()
	c.deps.Log.Info("Pipeline terminated: %d iterations, %d recorded, %d discarded, failures capture=%d classify=%d resolve=%d persist=%d",
		stats.Iterations, stats.Recorded, stats.Discarded,
		stats.Failures[KindCapture], stats.Failures[KindClassify], stats.Failures[KindResolve], stats.Failures[KindPersist])
	return stats
}

// RunIteration performs Capture, Classify, optional discard, Resolve and
// Persist for a capture stamped now. Failures never escape: each is logged
// once and reported in the returned Iteration.
func (c *Controller) RunIteration(ctx context.Context, now time.Time) Iteration {
	it := Iteration{
		Timestamp: now,
		ImagePath: filepath.Join(c.cfg.ImageDir, models.ImageFilename(now)),
	}
	c.update(func(s *Stats) { s.Iterations++ })

	img, stepErr := c.capture(it)
	if stepErr != nil {
		return c.fail(it, stepErr)
	}
	it.ImagePath = img.Path

	result, stepErr := c.classify(it)
	if stepErr != nil {
		return c.fail(it, stepErr)
	}
	it.Classification = result
	c.deps.Log.Info("%s: %s %.5f", filepath.Base(it.ImagePath), result.Label, result.Score)

	if _, ok := c.discard[result.Label]; ok {
		if err := os.Remove(it.ImagePath); err != nil && !os.IsNotExist(err) {
			c.deps.Log.Error("Failed to discard %s: %v", it.ImagePath, err)
		}
		it.Outcome = OutcomeDiscarded
		c.update(func(s *Stats) {
			s.Discarded++
			s.LastLabel = result.Label
			s.LastCapture = now
		})
		c.notify(ctx, it, img, models.OutcomeDiscarded)
		return it
	}

	loc, stepErr := c.resolve(it, img)
	if stepErr != nil {
		// The record is kept with the sentinel location.
		c.report(stepErr)
		loc = geocode.Unknown()
		c.update(func(s *Stats) { s.ResolveFallbacks++ })
	}
	it.Location = loc

	if stepErr := c.persist(it); stepErr != nil {
		return c.fail(it, stepErr)
	}

	it.Outcome = OutcomeRecorded
	c.update(func(s *Stats) {
		s.Recorded++
		s.LastLabel = result.Label
		s.LastCountry = loc.CountryCode
		s.LastCapture = now
	})
	c.notify(ctx, it, img, models.OutcomeRecorded)
	return it
}

func (c *Controller) capture(it Iteration) (*camera.CapturedImage, *StepError) {
	img, err := c.deps.Capturer.Capture(it.ImagePath)
	if err != nil {
		return nil, &StepError{Kind: KindCapture, Timestamp: it.Timestamp, Err: err}
	}
	return img, nil
}

func (c *Controller) classify(it Iteration) (classifier.Result, *StepError) {
	result, err := c.deps.Classifier.Classify(it.ImagePath)
	if err != nil {
		return classifier.Result{}, &StepError{Kind: KindClassify, Timestamp: it.Timestamp, Err: err}
	}
	return result, nil
}

func (c *Controller) resolve(it Iteration, img *camera.CapturedImage) (geocode.LocationInfo, *StepError) {
	loc, err := c.deps.Resolver.Resolve(img.Point.Latitude, img.Point.Longitude)
	if err != nil {
		return geocode.LocationInfo{}, &StepError{Kind: KindResolve, Timestamp: it.Timestamp, Err: err}
	}
	return loc, nil
}

func (c *Controller) persist(it Iteration) *StepError {
	rec := records.Record{
		Timestamp: models.FormatTimestamp(it.Timestamp),
		Country:   it.Location.CountryCode,
		City:      it.Location.Name,
		Label:     it.Classification.Label,
	}
	if err := c.deps.Store.Append(rec); err != nil {
		return &StepError{Kind: KindPersist, Timestamp: it.Timestamp, Err: err}
	}
	return nil
}

func (c *Controller) fail(it Iteration, stepErr *StepError) Iteration {
	c.report(stepErr)
	it.Outcome = OutcomeFailed
	it.Err = stepErr
	return it
}

// report writes the single event log line for a failed step.
func (c *Controller) report(stepErr *StepError) {
	ts := models.FormatTimestamp(stepErr.Timestamp)
	switch stepErr.Kind {
	case KindCapture:
		c.deps.Log.Error("Couldn't capture a photo at %s: %v", ts, stepErr.Err)
	case KindClassify:
		c.deps.Log.Error("Couldn't classify the photo taken at %s, no record written: %v", ts, stepErr.Err)
	case KindResolve:
		c.deps.Log.Error("Couldn't resolve the location of %s, recording as %s/%s: %v", ts, geocode.UnknownCountry, geocode.UnknownPlace, stepErr.Err)
	case KindPersist:
		c.deps.Log.Error("Couldn't add the record for %s: %v", ts, stepErr.Err)
	default:
		c.deps.Log.Error("%v", stepErr)
	}
	c.update(func(s *Stats) { s.Failures[stepErr.Kind]++ })
}

func (c *Controller) notify(ctx context.Context, it Iteration, img *camera.CapturedImage, outcome string) {
	if len(c.deps.Observers) == 0 {
		return
	}

	obs := models.Observation{
		RunID:      c.cfg.RunID,
		Timestamp:  it.Timestamp.Truncate(time.Second),
		ImagePath:  it.ImagePath,
		Latitude:   img.Point.Latitude,
		Longitude:  img.Point.Longitude,
		Label:      it.Classification.Label,
		Confidence: it.Classification.Score,
		Country:    it.Location.CountryCode,
		City:       it.Location.Name,
		Outcome:    outcome,
	}
	if outcome == models.OutcomeDiscarded {
		obs.ImagePath = ""
	}

	for _, o := range c.deps.Observers {
		if err := o.Observe(ctx, obs); err != nil {
			c.deps.Log.Warning("Observer %s failed for %s: %v", o.Name(), models.FormatTimestamp(it.Timestamp), err)
		}
	}
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Controller) update(fn func(s *Stats)) {
	c.mu.Lock()
	fn(&c.stats)
	c.mu.Unlock()
}

// FailureCounts returns Failures keyed by step name.
func (s Stats) FailureCounts() map[string]int {
	out := make(map[string]int, len(s.Failures))
	for kind, n := range s.Failures {
		out[kind.String()] = n
	}
	return out
}
