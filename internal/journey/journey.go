// Package journey composes page objects into end-to-end user journeys.
//
// A Runner resets the bank once through its Fixture, then drives each
// journey's steps in order on a session of its own. The first failing step
// aborts the journey; its error is returned as a *StepError and the steps
// after it are reported as skipped.
package journey

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kuitang/parabank-e2e/internal/artifacts"
	"github.com/kuitang/parabank-e2e/internal/customer"
	"github.com/kuitang/parabank-e2e/internal/errs"
	"github.com/kuitang/parabank-e2e/internal/obs"
	"github.com/kuitang/parabank-e2e/internal/pages"
	"github.com/kuitang/parabank-e2e/internal/session"
)

// Definition is a named, ordered list of steps.
type Definition struct {
	Name  string
	Steps []Step
	// Customize adjusts the generated record before the journey starts.
	Customize func(customer.Record) customer.Record
}

// Validate rejects unnamed or empty definitions.
func (d Definition) Validate() error {
	if d.Name == "" {
		return errs.New(errs.InvalidArgument, "journey name is empty")
	}
	if len(d.Steps) == 0 {
		return errs.New(errs.InvalidArgument, fmt.Sprintf("journey %q has no steps", d.Name))
	}
	return nil
}

// StepNames lists the definition's step names in order.
func (d Definition) StepNames() []string {
	names := make([]string, len(d.Steps))
	for i, s := range d.Steps {
		names[i] = s.Name()
	}
	return names
}

// Fixture puts the target application into a known state before any journey.
type Fixture interface {
	Setup(ctx context.Context, s session.Session) error
}

// AdminReset reinitializes the bank's data from the admin screen.
type AdminReset struct {
	Page *pages.AdminPage
}

// Setup opens admin.htm, clicks Initialize and waits for the confirmation.
func (f AdminReset) Setup(ctx context.Context, s session.Session) error {
	if err := f.Page.Open(ctx, s); err != nil {
		return err
	}
	if err := f.Page.Initialize(ctx, s); err != nil {
		return err
	}
	return f.Page.VerifyInitialized(ctx, s)
}

// Step outcomes.
const (
	StatusPassed  = "passed"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// StepResult is the outcome of one step.
type StepResult struct {
	Name       string        `json:"name"`
	Status     string        `json:"status"`
	Duration   time.Duration `json:"duration_ns"`
	Error      string        `json:"error,omitempty"`
	Screenshot string        `json:"screenshot,omitempty"`
}

// Result is the outcome of one journey run.
type Result struct {
	RunID    string        `json:"run_id"`
	Journey  string        `json:"journey"`
	Driver   string        `json:"driver"`
	Username string        `json:"username,omitempty"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration_ns"`
	Passed   bool          `json:"passed"`
	Fixture  string        `json:"fixture_error,omitempty"`
	Steps    []StepResult  `json:"steps"`
}

// StepError reports which step aborted a journey.
type StepError struct {
	Journey string
	Step    string
	Err     error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("journey %s: step %s: %v", e.Journey, e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Runner executes journeys.
type Runner struct {
	Driver    session.Driver
	Fixture   Fixture
	Customers *customer.Generator
	// Artifacts receives failure screenshots; nil disables capture.
	Artifacts artifacts.Sink
	// Parallelism bounds concurrent journeys in RunAll; <= 0 means one at a time.
	Parallelism int
}

// Reset runs the fixture on a throwaway session.
func (r *Runner) Reset(ctx context.Context) error {
	if r.Fixture == nil {
		return nil
	}
	s, err := r.Driver.Open(ctx)
	if err != nil {
		return errs.Wrap(errs.Fixture, "open fixture session", err)
	}
	defer s.Close()

	if err := r.Fixture.Setup(ctx, s); err != nil {
		obs.From(ctx).With("pkg", "journey").Error("fixture_failed", "error", err)
		return errs.Wrap(errs.Fixture, "reset environment", err)
	}
	obs.From(ctx).With("pkg", "journey").Info("fixture_done")
	return nil
}

// Run resets the environment and then runs def. A fixture failure returns
// before any step executes.
func (r *Runner) Run(ctx context.Context, def Definition) (*Result, error) {
	results, err := r.RunAll(ctx, []Definition{def})
	if len(results) == 0 {
		return nil, err
	}
	return results[0], err
}

// RunAll resets the environment once and runs every definition, each on its
// own session, at most Parallelism at a time. Results keep input order.
func (r *Runner) RunAll(ctx context.Context, defs []Definition) ([]*Result, error) {
	for _, def := range defs {
		if err := def.Validate(); err != nil {
			return nil, err
		}
	}

	if err := r.Reset(ctx); err != nil {
		results := make([]*Result, len(defs))
		for i, def := range defs {
			results[i] = r.fixtureFailed(def, err)
		}
		return results, err
	}

	limit := r.Parallelism
	if limit <= 0 {
		limit = 1
	}
	results := make([]*Result, len(defs))
	runErrs := make([]error, len(defs))

	var g errgroup.Group
	g.SetLimit(limit)
	for i, def := range defs {
		g.Go(func() error {
			results[i], runErrs[i] = r.runOne(ctx, def)
			return nil
		})
	}
	_ = g.Wait()
	return results, errors.Join(runErrs...)
}

func (r *Runner) fixtureFailed(def Definition, err error) *Result {
	res := &Result{
		Journey: def.Name,
		Driver:  r.Driver.Name(),
		Started: time.Now(),
		Fixture: err.Error(),
	}
	for _, s := range def.Steps {
		res.Steps = append(res.Steps, StepResult{Name: s.Name(), Status: StatusSkipped})
	}
	return res
}

func (r *Runner) runOne(ctx context.Context, def Definition) (*Result, error) {
	res := &Result{
		RunID:   uuid.NewString(),
		Journey: def.Name,
		Driver:  r.Driver.Name(),
		Started: time.Now(),
	}
	ctx = obs.WithCorrelation(ctx, obs.Correlation{RunID: res.RunID, Journey: def.Name, Driver: res.Driver})
	log := obs.From(ctx).With("pkg", "journey")
	defer func() { res.Duration = time.Since(res.Started) }()

	record := r.Customers.Next()
	if def.Customize != nil {
		record = def.Customize(record)
	}
	res.Username = record.Username

	s, err := r.Driver.Open(ctx)
	if err != nil {
		err = &StepError{Journey: def.Name, Step: "open-session", Err: err}
		for _, step := range def.Steps {
			res.Steps = append(res.Steps, StepResult{Name: step.Name(), Status: StatusSkipped})
		}
		return res, err
	}
	defer func() {
		if cerr := s.Close(); cerr != nil {
			log.Warn("session_close_failed", "error", cerr)
		}
	}()

	log.Info("journey_started", "username", record.Username, "steps", def.StepNames())
	st := &State{Session: s, Customer: record}

	var failure error
	for _, step := range def.Steps {
		if failure != nil {
			res.Steps = append(res.Steps, StepResult{Name: step.Name(), Status: StatusSkipped})
			continue
		}

		stepCtx := obs.WithStep(ctx, step.Name())
		start := time.Now()
		err := step.Run(stepCtx, st)
		sr := StepResult{Name: step.Name(), Status: StatusPassed, Duration: time.Since(start)}
		if err != nil {
			sr.Status = StatusFailed
			sr.Error = err.Error()
			sr.Screenshot = r.captureFailure(stepCtx, s, res.RunID, def.Name, step.Name())
			failure = &StepError{Journey: def.Name, Step: step.Name(), Err: err}
			obs.From(stepCtx).With("pkg", "journey").Error("step_failed",
				"code", errs.CodeOf(err),
				"error", err,
				"dur_ms", sr.Duration.Milliseconds(),
			)
		} else {
			obs.From(stepCtx).With("pkg", "journey").Info("step_passed", "dur_ms", sr.Duration.Milliseconds())
		}
		res.Steps = append(res.Steps, sr)
	}

	res.Passed = failure == nil
	log.Info("journey_finished", "passed", res.Passed)
	return res, failure
}

// captureFailure stores a screenshot and returns its key, or "" when capture
// is off, the run was cancelled, or capture fails.
func (r *Runner) captureFailure(ctx context.Context, s session.Session, runID, journey, step string) string {
	if r.Artifacts == nil || ctx.Err() != nil {
		return ""
	}
	log := obs.From(ctx).With("pkg", "journey")
	png, err := s.Screenshot(ctx)
	if err != nil {
		log.Warn("screenshot_failed", "error", err)
		return ""
	}
	key := artifacts.ScreenshotKey(runID, journey, step)
	if err := r.Artifacts.Put(ctx, key, png, "image/png"); err != nil {
		log.Warn("screenshot_upload_failed", "key", key, "error", err)
		return ""
	}
	return key
}
