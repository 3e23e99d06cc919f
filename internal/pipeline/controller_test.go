package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"orbitcam/internal/camera"
	"orbitcam/internal/classifier"
	"orbitcam/internal/geocode"
	"orbitcam/internal/geotag"
	"orbitcam/internal/models"
	"orbitcam/internal/records"
)

// fakeClock advances only when slept on or when a step spends time.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.now = c.now.Add(d)
	return ctx.Err()
}

type fakeCapturer struct {
	clock   *fakeClock
	cost    time.Duration
	failOn  map[int]bool
	calls   int
	point   geotag.Point
	written []string
}

func (f *fakeCapturer) Capture(path string) (*camera.CapturedImage, error) {
	f.calls++
	if f.clock != nil {
		f.clock.now = f.clock.now.Add(f.cost)
	}
	if f.failOn[f.calls] {
		return nil, fmt.Errorf("%w: camera unavailable", camera.ErrCapture)
	}
	if err := os.WriteFile(path, []byte("jpeg"), 0644); err != nil {
		return nil, err
	}
	f.written = append(f.written, path)
	return &camera.CapturedImage{Path: path, Point: f.point}, nil
}

type fakeClassifier struct {
	labels []string // label per call, cycled
	failOn map[int]bool
	calls  int
}

func (f *fakeClassifier) Classify(path string) (classifier.Result, error) {
	f.calls++
	if f.failOn[f.calls] {
		return classifier.Result{}, fmt.Errorf("%w: cannot decode %s", classifier.ErrClassification, path)
	}
	label := "cumulus"
	if len(f.labels) > 0 {
		label = f.labels[(f.calls-1)%len(f.labels)]
	}
	return classifier.Result{Label: label, Score: 0.9}, nil
}

type fakeResolver struct {
	err error
}

func (f *fakeResolver) Resolve(lat, lon float64) (geocode.LocationInfo, error) {
	if f.err != nil {
		return geocode.LocationInfo{}, f.err
	}
	return geocode.LocationInfo{CountryCode: "RO", Name: "Targoviste"}, nil
}

type failingStore struct {
	inner  RecordStore
	failOn map[int]bool
	calls  int
}

func (s *failingStore) Append(rec records.Record) error {
	s.calls++
	if s.failOn[s.calls] {
		return fmt.Errorf("%w: disk full", records.ErrPersist)
	}
	return s.inner.Append(rec)
}

type recordingLog struct {
	mu       sync.Mutex
	infos    []string
	warnings []string
	errors   []string
}

func (l *recordingLog) Info(format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.infos = append(l.infos, fmt.Sprintf(format, v...))
}

func (l *recordingLog) Warning(format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warnings = append(l.warnings, fmt.Sprintf(format, v...))
}

func (l *recordingLog) Error(format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, fmt.Sprintf(format, v...))
}

type recordingObserver struct {
	seen []models.Observation
	err  error
}

func (o *recordingObserver) Name() string { return "recorder" }

func (o *recordingObserver) Observe(ctx context.Context, obs models.Observation) error {
	o.seen = append(o.seen, obs)
	return o.err
}

type harness struct {
	dir        string
	dataFile   string
	clock      *fakeClock
	capturer   *fakeCapturer
	classifier *fakeClassifier
	resolver   *fakeResolver
	store      *failingStore
	log        *recordingLog
	observer   *recordingObserver
	start      time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	dataFile := filepath.Join(dir, "data.csv")
	store, err := records.Initialize(dataFile)
	if err != nil {
		t.Fatal(err)
	}

	start := time.Date(2022, 4, 18, 9, 0, 0, 0, time.Local)
	clock := &fakeClock{now: start}
	return &harness{
		dir:        dir,
		dataFile:   dataFile,
		clock:      clock,
		capturer:   &fakeCapturer{clock: clock, failOn: map[int]bool{}, point: geotag.Point{Latitude: 44.9, Longitude: 25.4}},
		classifier: &fakeClassifier{failOn: map[int]bool{}},
		resolver:   &fakeResolver{},
		store:      &failingStore{inner: store, failOn: map[int]bool{}},
		log:        &recordingLog{},
		observer:   &recordingObserver{},
		start:      start,
	}
}

func (h *harness) controller(budget, interval time.Duration) *Controller {
	return NewController(NewDeadline(h.start, budget), Config{
		RunID:         "test-run",
		ImageDir:      h.dir,
		Interval:      interval,
		DiscardLabels: []string{"night"},
	}, Dependencies{
		Capturer:   h.capturer,
		Classifier: h.classifier,
		Resolver:   h.resolver,
		Store:      h.store,
		Log:        h.log,
		Clock:      h.clock,
		Observers:  []Observer{h.observer},
	})
}

func (h *harness) records(t *testing.T) []records.Record {
	t.Helper()
	recs, err := records.ReadAll(h.dataFile)
	if err != nil {
		t.Fatal(err)
	}
	return recs
}

func (h *harness) images(t *testing.T) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(h.dir, "*"+models.ImageExt))
	if err != nil {
		t.Fatal(err)
	}
	return matches
}

func TestRun_TerminatesWithinBudget(t *testing.T) {
	tests := []struct {
		name     string
		budget   time.Duration
		cost     time.Duration
		interval time.Duration
		want     int
	}{
		{"sleep only", 3 * time.Second, 0, time.Second, 3},
		{"half capture half sleep", 3 * time.Second, 500 * time.Millisecond, 500 * time.Millisecond, 3},
		{"slow iteration finishes past deadline", 3 * time.Second, 2500 * time.Millisecond, time.Second, 1},
		{"reference cadence", 170 * time.Second, 0, 9 * time.Second, 19},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.capturer.cost = tt.cost
			c := h.controller(tt.budget, tt.interval)

			stats := c.Run(context.Background())

			if stats.Iterations != tt.want {
				t.Errorf("Iterations = %d, expected %d", stats.Iterations, tt.want)
			}
			if c.State() != StateTerminated {
				t.Errorf("State = %s, expected terminated", c.State())
			}
			if got := len(h.records(t)); got > stats.Iterations {
				t.Errorf("%d records for %d iterations", got, stats.Iterations)
			}
		})
	}
}

func TestRun_RecordTimestampsWithinDeadline(t *testing.T) {
	h := newHarness(t)
	h.capturer.cost = 300 * time.Millisecond
	c := h.controller(10*time.Second, time.Second)

	c.Run(context.Background())

	recs := h.records(t)
	if len(recs) == 0 {
		t.Fatal("expected records")
	}
	deadline := c.Deadline()
	prev := time.Time{}
	for _, rec := range recs {
		ts, err := models.ParseTimestamp(rec.Timestamp)
		if err != nil {
			t.Fatal(err)
		}
		if ts.Before(deadline.Start()) || !ts.Before(deadline.End()) {
			t.Errorf("record %s outside [%s, %s)", rec.Timestamp, deadline.Start(), deadline.End())
		}
		if ts.Before(prev) {
			t.Errorf("record %s out of order", rec.Timestamp)
		}
		prev = ts
	}
}

func TestRun_CaptureFailureIsolated(t *testing.T) {
	h := newHarness(t)
	h.capturer.failOn[2] = true
	c := h.controller(4*time.Second, time.Second)

	stats := c.Run(context.Background())

	if stats.Iterations != 4 {
		t.Fatalf("Iterations = %d, expected 4", stats.Iterations)
	}
	if stats.Failures[KindCapture] != 1 || stats.Recorded != 3 {
		t.Errorf("unexpected stats %+v", stats)
	}

	failedAt := models.FormatTimestamp(h.start.Add(time.Second))
	for _, rec := range h.records(t) {
		if rec.Timestamp == failedAt {
			t.Errorf("record written for failed iteration %s", failedAt)
		}
	}
	if _, err := os.Stat(filepath.Join(h.dir, failedAt+models.ImageExt)); !os.IsNotExist(err) {
		t.Errorf("image exists for failed iteration %s", failedAt)
	}
	if len(h.images(t)) != 3 {
		t.Errorf("expected 3 images, got %d", len(h.images(t)))
	}
	if len(h.log.errors) != 1 || !strings.Contains(h.log.errors[0], "capture") {
		t.Errorf("expected exactly one capture error line, got %q", h.log.errors)
	}
}

func TestRunIteration_DiscardLabel(t *testing.T) {
	h := newHarness(t)
	h.classifier.labels = []string{"night"}
	c := h.controller(time.Minute, time.Second)

	it := c.RunIteration(context.Background(), h.start)

	if it.Outcome != OutcomeDiscarded {
		t.Fatalf("Outcome = %v, expected discarded", it.Outcome)
	}
	if _, err := os.Stat(it.ImagePath); !os.IsNotExist(err) {
		t.Error("discarded image still exists")
	}
	if len(h.records(t)) != 0 {
		t.Error("record appended for discarded capture")
	}
	if len(h.log.errors) != 0 {
		t.Errorf("discard is not an error, got %q", h.log.errors)
	}
	if len(h.observer.seen) != 1 || h.observer.seen[0].Outcome != models.OutcomeDiscarded {
		t.Errorf("observer not told about discard: %+v", h.observer.seen)
	}
}

func TestRunIteration_ClassifyFailure(t *testing.T) {
	h := newHarness(t)
	h.classifier.failOn[1] = true
	c := h.controller(time.Minute, time.Second)

	it := c.RunIteration(context.Background(), h.start)

	if it.Outcome != OutcomeFailed || it.Err == nil || it.Err.Kind != KindClassify {
		t.Fatalf("unexpected iteration %+v", it)
	}
	if !errors.Is(it.Err, classifier.ErrClassification) {
		t.Errorf("StepError does not unwrap to ErrClassification: %v", it.Err)
	}
	if len(h.records(t)) != 0 {
		t.Error("record appended after classify failure")
	}
	if _, err := os.Stat(it.ImagePath); err != nil {
		t.Error("captured image should be kept after classify failure")
	}
	if len(h.log.errors) != 1 {
		t.Errorf("expected one error line, got %q", h.log.errors)
	}
	if len(h.observer.seen) != 0 {
		t.Error("observer notified for failed iteration")
	}
}

func TestRunIteration_ResolveFailureKeepsRecord(t *testing.T) {
	h := newHarness(t)
	h.resolver.err = fmt.Errorf("%w: index unavailable", geocode.ErrResolve)
	c := h.controller(time.Minute, time.Second)

	it := c.RunIteration(context.Background(), h.start)

	if it.Outcome != OutcomeRecorded {
		t.Fatalf("Outcome = %v, expected recorded", it.Outcome)
	}
	recs := h.records(t)
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}
	if recs[0].Country != geocode.UnknownCountry || recs[0].City != geocode.UnknownPlace {
		t.Errorf("expected sentinel location, got %+v", recs[0])
	}
	if len(h.log.errors) != 1 || !strings.Contains(h.log.errors[0], "resolve") {
		t.Errorf("expected one resolve error line, got %q", h.log.errors)
	}
	if c.Stats().Failures[KindResolve] != 1 || c.Stats().ResolveFallbacks != 1 {
		t.Errorf("unexpected stats %+v", c.Stats())
	}
}

func TestRun_PersistFailureContinues(t *testing.T) {
	h := newHarness(t)
	h.store.failOn[1] = true
	c := h.controller(3*time.Second, time.Second)

	stats := c.Run(context.Background())

	if stats.Iterations != 3 || stats.Recorded != 2 || stats.Failures[KindPersist] != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}
	recs := h.records(t)
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if recs[0].Timestamp != models.FormatTimestamp(h.start.Add(time.Second)) {
		t.Errorf("first record = %s, expected second iteration", recs[0].Timestamp)
	}
}

func TestRunIteration_RecordFields(t *testing.T) {
	h := newHarness(t)
	h.classifier.labels = []string{"stratus"}
	c := h.controller(time.Minute, time.Second)

	it := c.RunIteration(context.Background(), h.start)

	want := records.Record{
		Timestamp: "2022-04-18_09-00-00",
		Country:   "RO",
		City:      "Targoviste",
		Label:     "stratus",
	}
	recs := h.records(t)
	if len(recs) != 1 || recs[0] != want {
		t.Errorf("records = %+v, expected %+v", recs, want)
	}
	if filepath.Base(it.ImagePath) != "2022-04-18_09-00-00.jpg" {
		t.Errorf("ImagePath = %s", it.ImagePath)
	}

	obs := h.observer.seen
	if len(obs) != 1 || obs[0].RunID != "test-run" || obs[0].Latitude != 44.9 || obs[0].Outcome != models.OutcomeRecorded {
		t.Errorf("unexpected observation %+v", obs)
	}
}

func TestRunIteration_ObserverFailureIsWarning(t *testing.T) {
	h := newHarness(t)
	h.observer.err = errors.New("broker down")
	c := h.controller(time.Minute, time.Second)

	it := c.RunIteration(context.Background(), h.start)

	if it.Outcome != OutcomeRecorded {
		t.Errorf("Outcome = %v, expected recorded", it.Outcome)
	}
	if len(h.log.warnings) != 1 || len(h.log.errors) != 0 {
		t.Errorf("expected one warning and no errors, got %q / %q", h.log.warnings, h.log.errors)
	}
}

func TestRun_CancelledContext(t *testing.T) {
	h := newHarness(t)
	c := h.controller(time.Hour, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	stats := c.Run(ctx)

	if stats.Iterations != 0 {
		t.Errorf("Iterations = %d, expected 0 for cancelled context", stats.Iterations)
	}
	if c.State() != StateTerminated {
		t.Errorf("State = %s, expected terminated", c.State())
	}
}

func TestDeadline(t *testing.T) {
	start := time.Date(2022, 4, 18, 9, 0, 0, 0, time.UTC)
	d := NewDeadline(start, 3*time.Minute)

	if d.Expired(start) || d.Expired(start.Add(179*time.Second)) {
		t.Error("deadline expired too early")
	}
	if !d.Expired(start.Add(3*time.Minute)) || !d.Expired(start.Add(time.Hour)) {
		t.Error("deadline should be expired at or after end")
	}
	if d.Remaining(start.Add(time.Minute)) != 2*time.Minute || d.Remaining(start.Add(time.Hour)) != 0 {
		t.Error("unexpected Remaining")
	}
	if d.Budget() != 3*time.Minute {
		t.Errorf("Budget = %s", d.Budget())
	}
}
