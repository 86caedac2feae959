// Package orchestrator implements the cycle orchestrator (C7): the one
// public runCycle operation that pulls, maps, validates, diffs, pushes,
// repairs, and commits a single client's data for one pass.
package orchestrator

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/whennemuth/deltasync/internal/adapter"
	"github.com/whennemuth/deltasync/internal/delta"
	"github.com/whennemuth/deltasync/internal/fingerprint"
	"github.com/whennemuth/deltasync/internal/model"
	"github.com/whennemuth/deltasync/internal/repair"
	"github.com/whennemuth/deltasync/internal/store"
	"github.com/whennemuth/deltasync/internal/validate"
	"github.com/whennemuth/deltasync/pkg/clock"
	deltaerrors "github.com/whennemuth/deltasync/pkg/errors"
)

// defaultLockTTL is the advisory per-client lock TTL applied when
// WithLockTTL is not given; WithLockTTL(0) disables the TTL.
const defaultLockTTL = 10 * time.Minute

// Config names the per-client pieces one cycle wires together. PKFields
// is not part of Config: it is derived from the Mapper's schema each
// cycle, since the schema is the source of truth for which fields are key.
type Config struct {
	ClientID string
	Store    store.Backend
	Source   adapter.Source
	Mapper   adapter.Mapper
	Target   adapter.Target
}

// CycleResult is the terse structured outcome of one cycle, per spec.md §7.
type CycleResult struct {
	Added    int
	Updated  int
	Removed  int
	Duration time.Duration
	Message  string
}

// Orchestrator holds the state shared across cycles for many clients: the
// per-client advisory lock table and the ambient clock/logger/backoff
// policy. Construct one per process and reuse it for every RunCycle call.
type Orchestrator struct {
	mutex   *keyedMutex
	clock   clock.Clock
	log     zerolog.Logger
	lockTTL time.Duration
	retries uint64
}

// Option configures an Orchestrator at construction time.
type Option func(*Orchestrator)

// WithClock overrides the default RealClock, for deterministic tests.
func WithClock(c clock.Clock) Option {
	return func(o *Orchestrator) { o.clock = c }
}

// WithLogger overrides the default no-op logger.
func WithLogger(log zerolog.Logger) Option {
	return func(o *Orchestrator) { o.log = log }
}

// WithLockTTL overrides the default 10-minute advisory lock TTL.
func WithLockTTL(ttl time.Duration) Option {
	return func(o *Orchestrator) { o.lockTTL = ttl }
}

// WithPushRetries bounds how many times a transient (IO-classified) push
// failure is retried with exponential backoff before the cycle aborts.
func WithPushRetries(n uint64) Option {
	return func(o *Orchestrator) { o.retries = n }
}

// New constructs an Orchestrator. Defaults: RealClock, a disabled logger,
// a 10-minute lock TTL, and 3 push retries.
func New(opts ...Option) *Orchestrator {
	o := &Orchestrator{
		clock:   clock.NewReal(),
		log:     zerolog.Nop(),
		lockTTL: defaultLockTTL,
		retries: 3,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.mutex = newKeyedMutex(o.lockTTL, o.clock, func(key string, heldFor time.Duration) {
		o.log.Warn().Str("client_id", key).Dur("held_for", heldFor).Msg("advisory lock force-released after ttl")
	})
	return o
}

// runOptions configures a single RunCycle call.
type runOptions struct {
	dryRun bool
}

// RunOption configures one RunCycle invocation.
type RunOption func(*runOptions)

// WithDryRun computes and logs the delta without pushing to the target or
// committing the baseline, a supplemented mode for exercising "what would
// change" scenarios.
func WithDryRun(v bool) RunOption {
	return func(o *runOptions) { o.dryRun = v }
}

// RunCycle executes the nine steps of spec.md §4.7 for one client.
// Concurrent calls for different ClientIDs run freely; concurrent calls
// for the same ClientID serialize on the orchestrator's advisory lock.
func (o *Orchestrator) RunCycle(ctx context.Context, cfg Config, opts ...RunOption) (CycleResult, error) {
	ro := runOptions{}
	for _, opt := range opts {
		opt(&ro)
	}

	start := o.clock.Now()
	log := o.log.With().Str("client_id", cfg.ClientID).Logger()

	unlock := o.mutex.Lock(cfg.ClientID)
	defer unlock()

	if err := ctx.Err(); err != nil {
		return CycleResult{}, deltaerrors.CancelledErr(err)
	}

	raw, err := cfg.Source.FetchRaw(ctx)
	if err != nil {
		return CycleResult{}, err
	}

	schema, records, err := cfg.Mapper.Map(ctx, raw)
	if err != nil {
		return CycleResult{}, err
	}

	pkFields := schema.PrimaryKeyFields()

	validated := make([]model.Record, len(records))
	for i, r := range records {
		row := validate.Row(schema, r)
		if row.Valid() {
			hash, err := fingerprint.Fingerprint(row, fingerprint.Options{Sort: false})
			if err != nil {
				return CycleResult{}, err
			}
			row.Hash = hash
		}
		validated[i] = row
	}

	current := make([]model.Record, len(validated))
	for i, r := range validated {
		if model.ContainsPipeValue(r, pkFields) {
			return CycleResult{}, deltaerrors.Config("primary key value contains the reserved '|' separator", nil)
		}
		current[i] = model.Reduce(r, pkFields)
	}

	if err := cfg.Store.Initialize(ctx, cfg.ClientID, pkFields); err != nil {
		return CycleResult{}, err
	}

	var (
		result       delta.Result
		previousFull []model.Record
	)
	relBackend, isRelational := store.AsRelational(cfg.Store)
	if isRelational {
		if _, err := relBackend.StoreCurrent(ctx, cfg.ClientID, current, pkFields); err != nil {
			return CycleResult{}, err
		}
		deltaResult, err := relBackend.FetchDelta(ctx, cfg.ClientID, pkFields)
		if err != nil {
			return CycleResult{}, err
		}
		result = delta.Result{Added: deltaResult.Added, Updated: deltaResult.Updated, Removed: deltaResult.Removed}
	} else {
		previousFull, err = cfg.Store.FetchPrevious(ctx, cfg.ClientID, nil)
		if err != nil {
			return CycleResult{}, err
		}
		engine := delta.NewSetDiffEngine(log)
		result, err = engine.ComputeDelta(ctx, previousFull, current, pkFields)
		if err != nil {
			return CycleResult{}, err
		}
	}

	added, updated, removed := result.Stats()
	if added == 0 && updated == 0 && removed == 0 {
		log.Info().Msg("no changes")
		return CycleResult{Duration: clock.Elapsed(o.clock, start), Message: "no changes"}, nil
	}

	if err := ctx.Err(); err != nil {
		return CycleResult{}, deltaerrors.CancelledErr(err)
	}

	if ro.dryRun {
		log.Info().Int("added", added).Int("updated", updated).Int("removed", removed).Msg("dry run: delta computed, no push or commit")
		return CycleResult{Added: added, Updated: updated, Removed: removed, Duration: clock.Elapsed(o.clock, start), Message: "dry run"}, nil
	}

	pushResult, err := o.pushWithRetry(ctx, cfg.Target, result.Added, result.Updated, result.Removed)
	if err != nil {
		return CycleResult{}, err
	}

	var limitTo []model.Record
	if isRelational {
		limitTo = limitToFromPush(current, pkFields, pushResult)
	}

	var previousForRepair []model.Record
	if isRelational {
		previousForRepair, err = relBackend.FetchPrevious(ctx, cfg.ClientID, limitTo)
		if err != nil {
			return CycleResult{}, err
		}
	} else {
		previousForRepair = previousFull
	}

	repaired, failureCount := repair.Run(current, previousForRepair, pkFields, pushResult)

	if err := ctx.Err(); err != nil {
		return CycleResult{}, deltaerrors.CancelledErr(err)
	}

	if _, err := cfg.Store.UpdatePrevious(ctx, cfg.ClientID, repaired, pkFields, failureCount); err != nil {
		return CycleResult{}, err
	}

	return CycleResult{
		Added:    added,
		Updated:  updated,
		Removed:  removed,
		Duration: clock.Elapsed(o.clock, start),
		Message:  pushResult.Message,
	}, nil
}

// limitToFromPush computes the minimal set of records the relational
// backend's fetchPrevious must return for Repair: the union of failed
// pushes' primary keys and records still carrying validation messages
// (spec.md §4.7 step 7).
func limitToFromPush(current []model.Record, pkFields []string, pushed adapter.BatchResult) []model.Record {
	want := make(map[string]bool, len(pushed.Failures))
	for _, f := range pushed.Failures {
		want[model.PrimaryKeyTuple(model.Record{Fields: f.PrimaryKey}, pkFields)] = true
	}

	var out []model.Record
	for _, r := range current {
		pk := model.PrimaryKeyTuple(r, pkFields)
		if want[pk] || len(r.ValidationMessages) > 0 {
			out = append(out, r)
		}
	}
	return out
}

// pushWithRetry wraps adapter.PushAll with exponential backoff, retried
// only when the call itself errors with an IO-classified (transient)
// error; a returned BatchResult with per-record failures is a terminal
// outcome Repair must see, never retried here.
func (o *Orchestrator) pushWithRetry(ctx context.Context, target adapter.Target, added, updated, removed []model.Record) (adapter.BatchResult, error) {
	var result adapter.BatchResult

	operation := func() error {
		r, err := adapter.PushAll(ctx, target, added, updated, removed)
		if err != nil {
			if deltaerrors.As(err, deltaerrors.KindIO) {
				return err
			}
			return backoff.Permanent(err)
		}
		result = r
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), o.retries), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return adapter.BatchResult{}, err
	}
	return result, nil
}
