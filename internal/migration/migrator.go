// Package migration applies the ordered schema history to a store and keeps
// the ledger of what has been applied.
package migration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jwalitptl/hospital-core/internal/schema"
	apperrors "github.com/jwalitptl/hospital-core/pkg/errors"
	"github.com/jwalitptl/hospital-core/pkg/logger"
	"github.com/jwalitptl/hospital-core/pkg/metrics"
)

const (
	DefaultMaxRetries = 3
	DefaultBackoff    = 500 * time.Millisecond
)

// ErrDirty means an earlier run failed part-way; an operator must inspect
// the schema and Force the ledger before migrating again.
var ErrDirty = errors.New("migration ledger is dirty")

type Options struct {
	Registry   *schema.Registry
	Logger     *logger.Logger
	Metrics    *metrics.Metrics
	MaxRetries int
	Backoff    time.Duration
}

type Migrator struct {
	driver     Driver
	steps      []Step
	registry   *schema.Registry
	logger     *logger.Logger
	metrics    *metrics.Metrics
	maxRetries int
	backoff    time.Duration
	sleep      func(context.Context, time.Duration) error
}

// StepStatus is one line of Status output.
type StepStatus struct {
	Key       string
	Name      string
	Applied   bool
	AppliedAt *time.Time
	Dirty     bool
	Error     string
	// Unknown is set for ledger rows no step in this build declares.
	Unknown bool
}

func New(d Driver, steps []Step, opts Options) (*Migrator, error) {
	if err := ValidateSteps(steps, opts.Registry); err != nil {
		return nil, fmt.Errorf("invalid migration history: %w", err)
	}
	m := &Migrator{
		driver:     d,
		steps:      steps,
		registry:   opts.Registry,
		logger:     opts.Logger,
		metrics:    opts.Metrics,
		maxRetries: opts.MaxRetries,
		backoff:    opts.Backoff,
		sleep:      sleepCtx,
	}
	if m.logger == nil {
		m.logger = logger.Nop()
	}
	if m.maxRetries <= 0 {
		m.maxRetries = DefaultMaxRetries
	}
	if m.backoff <= 0 {
		m.backoff = DefaultBackoff
	}
	return m, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (m *Migrator) Steps() []Step {
	out := make([]Step, len(m.steps))
	copy(out, m.steps)
	return out
}

// Up applies every pending step and returns how many ran.
func (m *Migrator) Up(ctx context.Context) (int, error) {
	return m.UpTo(ctx, "")
}

// UpTo applies pending steps up to and including target. An empty target
// means all.
func (m *Migrator) UpTo(ctx context.Context, target string) (int, error) {
	if target != "" && m.indexOf(target) < 0 {
		return 0, fmt.Errorf("unknown migration %s", target)
	}

	var count int
	err := m.locked(ctx, func(applied map[string]Record) error {
		for _, step := range m.steps {
			if target != "" && step.Key > target {
				break
			}
			if _, ok := applied[step.Key]; ok {
				continue
			}
			if err := m.run(ctx, step, DirectionUp, step.Up); err != nil {
				return err
			}
			count++
		}
		return nil
	})
	return count, err
}

// Down reverts the n most recently applied steps.
func (m *Migrator) Down(ctx context.Context, n int) (int, error) {
	var count int
	err := m.locked(ctx, func(applied map[string]Record) error {
		for i := len(m.steps) - 1; i >= 0 && count < n; i-- {
			step := m.steps[i]
			if _, ok := applied[step.Key]; !ok {
				continue
			}
			ops, err := step.Revert()
			if err != nil {
				return err
			}
			if err := m.run(ctx, step, DirectionDown, ops); err != nil {
				return err
			}
			count++
		}
		return nil
	})
	return count, err
}

// DownAll reverts every applied step.
func (m *Migrator) DownAll(ctx context.Context) (int, error) {
	return m.Down(ctx, len(m.steps))
}

// locked takes the migration lock, checks the ledger against the known
// history and hands the applied set to fn.
func (m *Migrator) locked(ctx context.Context, fn func(map[string]Record) error) error {
	if err := m.driver.Lock(ctx); err != nil {
		return fmt.Errorf("failed to acquire migration lock: %w", err)
	}
	defer func() {
		if err := m.driver.Unlock(context.Background()); err != nil {
			m.logger.Error(err, "failed to release migration lock")
		}
	}()

	if err := m.driver.EnsureLedger(ctx); err != nil {
		return fmt.Errorf("failed to ensure migration ledger: %w", err)
	}
	records, err := m.driver.Ledger(ctx)
	if err != nil {
		return fmt.Errorf("failed to read migration ledger: %w", err)
	}
	applied, err := m.checkLedger(records)
	if err != nil {
		return err
	}
	return fn(applied)
}

func (m *Migrator) checkLedger(records []Record) (map[string]Record, error) {
	applied := make(map[string]Record, len(records))
	var unknown []string
	for _, r := range records {
		if r.Dirty {
			return nil, apperrors.NewMigrationConflict(
				fmt.Sprintf("migration %s_%s failed earlier (%s); fix the schema and force the ledger", r.Key, r.Name, r.Error),
				ErrDirty)
		}
		if m.indexOf(r.Key) < 0 {
			unknown = append(unknown, r.Key)
		}
		applied[r.Key] = r
	}
	if len(unknown) > 0 {
		return nil, apperrors.NewMigrationConflict(
			fmt.Sprintf("ledger contains migrations this build does not know: %s", strings.Join(unknown, ", ")), nil)
	}

	// A pending step older than an applied one means histories diverged.
	var lastApplied string
	for _, r := range records {
		if r.Key > lastApplied {
			lastApplied = r.Key
		}
	}
	for _, step := range m.steps {
		if step.Key >= lastApplied {
			break
		}
		if _, ok := applied[step.Key]; !ok {
			return nil, apperrors.NewMigrationConflict(
				fmt.Sprintf("migration %s is pending but later migration %s is already applied", step.Key, lastApplied), nil)
		}
	}
	return applied, nil
}

// run executes one step, retrying transient failures. Any other failure
// marks the step dirty and stops the batch.
func (m *Migrator) run(ctx context.Context, step Step, dir Direction, ops []Op) error {
	log := m.logger.WithFields(map[string]interface{}{
		"key":       step.Key,
		"name":      step.Name,
		"direction": string(dir),
	})
	log.Info("running migration")

	start := time.Now()
	var err error
	for attempt := 0; ; attempt++ {
		err = m.driver.Apply(ctx, step, dir, func(s Session) error {
			for _, op := range ops {
				if err := op.Apply(ctx, s); err != nil {
					return fmt.Errorf("%s: %w", op, err)
				}
			}
			return nil
		})
		if err == nil || !IsTransient(err) || attempt >= m.maxRetries {
			break
		}
		if m.metrics != nil {
			m.metrics.MigrationRetries.Inc()
		}
		log.Warn("transient migration failure, retrying", "attempt", attempt+1, "error", err.Error())
		if serr := m.sleep(ctx, m.backoff*time.Duration(attempt+1)); serr != nil {
			err = serr
			break
		}
	}

	if m.metrics != nil {
		m.metrics.MigrationDuration.WithLabelValues(string(dir)).Observe(time.Since(start).Seconds())
	}
	if err != nil {
		if m.metrics != nil {
			m.metrics.MigrationSteps.WithLabelValues(string(dir), "failed").Inc()
		}
		if derr := m.driver.MarkDirty(context.Background(), step, err); derr != nil {
			log.Error(derr, "failed to mark migration dirty")
		}
		log.Error(err, "migration failed, halting")
		return fmt.Errorf("migration %s %s failed: %w", step, dir, err)
	}
	if m.metrics != nil {
		m.metrics.MigrationSteps.WithLabelValues(string(dir), "success").Inc()
	}
	log.Info("migration complete", "duration_ms", time.Since(start).Milliseconds())
	return nil
}

// Status lists every known step and any unknown ledger rows.
func (m *Migrator) Status(ctx context.Context) ([]StepStatus, error) {
	if err := m.driver.EnsureLedger(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure migration ledger: %w", err)
	}
	records, err := m.driver.Ledger(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read migration ledger: %w", err)
	}
	byKey := make(map[string]Record, len(records))
	for _, r := range records {
		byKey[r.Key] = r
	}

	out := make([]StepStatus, 0, len(m.steps))
	for _, step := range m.steps {
		st := StepStatus{Key: step.Key, Name: step.Name}
		if r, ok := byKey[step.Key]; ok {
			at := r.AppliedAt
			st.Applied = !r.Dirty
			st.AppliedAt = &at
			st.Dirty = r.Dirty
			st.Error = r.Error
			delete(byKey, step.Key)
		}
		out = append(out, st)
	}
	for _, r := range records {
		if _, ok := byKey[r.Key]; !ok {
			continue
		}
		at := r.AppliedAt
		out = append(out, StepStatus{Key: r.Key, Name: r.Name, Applied: !r.Dirty, AppliedAt: &at, Dirty: r.Dirty, Error: r.Error, Unknown: true})
	}
	return out, nil
}

// Verify compares the live schema with the registry once every step is
// applied. Drift is reported as a migration conflict.
func (m *Migrator) Verify(ctx context.Context) error {
	if m.registry == nil {
		return errors.New("verify needs a schema registry")
	}
	status, err := m.Status(ctx)
	if err != nil {
		return err
	}
	var pending []string
	for _, st := range status {
		if st.Dirty || st.Unknown {
			return apperrors.NewMigrationConflict(fmt.Sprintf("ledger row %s is dirty or unknown", st.Key), nil)
		}
		if !st.Applied {
			pending = append(pending, st.Key)
		}
	}
	if len(pending) > 0 {
		return apperrors.NewMigrationConflict(fmt.Sprintf("%d migrations pending: %s", len(pending), strings.Join(pending, ", ")), nil)
	}

	live, err := m.driver.Inspect(ctx)
	if err != nil {
		return fmt.Errorf("failed to inspect schema: %w", err)
	}
	if diff := live.Outline().Diff(m.registry.Snapshot().Outline()); len(diff) > 0 {
		return apperrors.NewMigrationConflict("schema drifted from registry:\n  "+strings.Join(diff, "\n  "), nil)
	}
	return nil
}

// Force rewrites the ledger so exactly the steps up to and including key
// count as applied and clears dirty flags. It does not touch the schema.
// An empty key empties the ledger.
func (m *Migrator) Force(ctx context.Context, key string) error {
	if key != "" && m.indexOf(key) < 0 {
		return fmt.Errorf("unknown migration %s", key)
	}
	if err := m.driver.Lock(ctx); err != nil {
		return fmt.Errorf("failed to acquire migration lock: %w", err)
	}
	defer m.driver.Unlock(context.Background())

	if err := m.driver.EnsureLedger(ctx); err != nil {
		return fmt.Errorf("failed to ensure migration ledger: %w", err)
	}
	now := time.Now().UTC()
	var records []Record
	for _, step := range m.steps {
		if key == "" || step.Key > key {
			break
		}
		records = append(records, Record{Key: step.Key, Name: step.Name, AppliedAt: now})
	}
	if err := m.driver.ResetLedger(ctx, records); err != nil {
		return fmt.Errorf("failed to force migration ledger: %w", err)
	}
	m.logger.Warn("migration ledger forced", "key", key, "applied", len(records))
	return nil
}

func (m *Migrator) indexOf(key string) int {
	for i, s := range m.steps {
		if s.Key == key {
			return i
		}
	}
	return -1
}
