package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"discoveryserver/dedup"
	"discoveryserver/normalization"
	"discoveryserver/quality"
	"discoveryserver/sources"
	"discoveryserver/types"
)

// Phase is the orchestrator's position in one run.
type Phase string

const (
	PhaseIdle          Phase = "idle"
	PhaseFetching      Phase = "fetching"
	PhaseNormalizing   Phase = "normalizing"
	PhaseDeduplicating Phase = "deduplicating"
	PhaseValidating    Phase = "validating"
	PhaseDone          Phase = "done"
)

// Config is the per-run configuration recognized by the orchestrator.
type Config struct {
	EnabledSources []types.DiscoverySource `json:"enabled_sources"`
	// Concurrency bounds simultaneous source fetches. Scraping drives
	// heavyweight page retrieval, so the default is a tight 2.
	Concurrency int `json:"concurrency"`
	// AdapterTimeout bounds each adapter's Discover call.
	AdapterTimeout time.Duration `json:"adapter_timeout"`
	// RunTimeout bounds the whole run; on expiry the pipeline still
	// normalizes, deduplicates and validates whatever completed.
	RunTimeout time.Duration `json:"run_timeout"`
}

// Validate fails fast on malformed configuration, before any adapter
// work begins.
func (c Config) Validate() error {
	if len(c.EnabledSources) == 0 {
		return fmt.Errorf("at least one source must be enabled")
	}
	for _, source := range c.EnabledSources {
		switch source {
		case types.SourceAPI, types.SourceScraping, types.SourceSocial:
		default:
			return fmt.Errorf("unknown source %q", source)
		}
	}
	if c.Concurrency < 0 || c.Concurrency > 16 {
		return fmt.Errorf("concurrency %d out of range 0-16", c.Concurrency)
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.Concurrency == 0 {
		c.Concurrency = 2
	}
	if c.AdapterTimeout <= 0 {
		c.AdapterTimeout = 60 * time.Second
	}
	if c.RunTimeout <= 0 {
		c.RunTimeout = 5 * time.Minute
	}
	return c
}

// RejectedCandidate pairs a rejected candidate with the scorer verdict
// that rejected it.
type RejectedCandidate struct {
	Candidate  types.LocationCandidate `json:"candidate"`
	Validation types.ValidationResult  `json:"validation"`
}

// Stats summarizes one run for operators.
type Stats struct {
	SourcesRun      int           `json:"sources_run"`
	SourcesFailed   int           `json:"sources_failed"`
	RawCandidates   int           `json:"raw_candidates"`
	NormalizeErrors int           `json:"normalize_errors"`
	Duration        time.Duration `json:"duration"`
}

// Result is the orchestrator's output. Every candidate in it carries a
// validation result and a status consistent with that result.
type Result struct {
	Accepted   []types.LocationCandidate `json:"accepted"`
	Duplicates []types.LocationCandidate `json:"duplicates"`
	Rejected   []RejectedCandidate       `json:"rejected"`
	Stats      Stats                     `json:"stats"`
}

// ExistingLookup supplies the previously approved dataset that new
// candidates are deduplicated against. Pagination and filtering are the
// implementation's concern.
type ExistingLookup interface {
	ListApproved(ctx context.Context) ([]types.LocationCandidate, error)
}

// Orchestrator is the only pipeline component exposed to the rest of
// the application. A run always completes: adapter failures are
// isolated, and even "every source failed" is an empty result, not an
// error.
type Orchestrator struct {
	adapters   []sources.Adapter
	normalizer *normalization.Normalizer
	resolver   *dedup.Resolver
	scorer     *quality.Scorer
	existing   ExistingLookup
	logger     *slog.Logger

	// OnPhase, when set, observes phase transitions. Used by the run
	// tracking service to report progress.
	OnPhase func(Phase)
}

// NewOrchestrator wires the pipeline. The resolver must have been
// built with the scorer's confidence function so same-batch duplicate
// ties resolve the way validation would rank them.
func NewOrchestrator(
	adapters []sources.Adapter,
	normalizer *normalization.Normalizer,
	resolver *dedup.Resolver,
	scorer *quality.Scorer,
	existing ExistingLookup,
) *Orchestrator {
	return &Orchestrator{
		adapters:   adapters,
		normalizer: normalizer,
		resolver:   resolver,
		scorer:     scorer,
		existing:   existing,
		logger:     slog.Default().With("component", "orchestrator"),
	}
}

// Run executes one discovery pass. It returns an error only for a
// programming-contract violation (malformed config); upstream failures
// and timeouts degrade to partial or empty results.
func (o *Orchestrator) Run(ctx context.Context, query string, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid discovery config: %w", err)
	}
	config = config.withDefaults()

	start := time.Now()
	runCtx, cancel := context.WithTimeout(ctx, config.RunTimeout)
	defer cancel()

	o.phase(PhaseFetching)
	raw, failed := o.fetchAll(runCtx, query, config)

	o.phase(PhaseNormalizing)
	candidates, normalizeErrors := o.normalizeAll(raw)

	o.phase(PhaseDeduplicating)
	existing := o.loadExisting(runCtx)
	resolutions := o.resolver.Resolve(candidates, existing)

	o.phase(PhaseValidating)
	result := o.classify(resolutions)

	result.Stats = Stats{
		SourcesRun:      len(o.enabledAdapters(config)),
		SourcesFailed:   failed,
		RawCandidates:   len(raw),
		NormalizeErrors: normalizeErrors,
		Duration:        time.Since(start),
	}

	o.phase(PhaseDone)
	o.logger.Info("discovery run complete",
		"query", query,
		"accepted", len(result.Accepted),
		"duplicates", len(result.Duplicates),
		"rejected", len(result.Rejected),
		"sources_failed", failed,
		"duration_ms", result.Stats.Duration.Milliseconds())

	return result, nil
}

func (o *Orchestrator) phase(p Phase) {
	if o.OnPhase != nil {
		o.OnPhase(p)
	}
}

func (o *Orchestrator) enabledAdapters(config Config) []sources.Adapter {
	enabled := make(map[types.DiscoverySource]bool, len(config.EnabledSources))
	for _, s := range config.EnabledSources {
		enabled[s] = true
	}

	var adapters []sources.Adapter
	for _, adapter := range o.adapters {
		if enabled[adapter.Kind()] {
			adapters = append(adapters, adapter)
		}
	}
	return adapters
}

// fetchAll runs the enabled adapters under the concurrency gate. Each
// adapter has its own error boundary and timeout; per-adapter output
// slots keep the flattened result in stable registration order.
func (o *Orchestrator) fetchAll(ctx context.Context, query string, config Config) ([]sources.RawCandidate, int) {
	adapters := o.enabledAdapters(config)
	slots := make([][]sources.RawCandidate, len(adapters))
	failed := 0

	gate := make(chan struct{}, config.Concurrency)
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i, adapter := range adapters {
		wg.Add(1)
		go func(i int, adapter sources.Adapter) {
			defer wg.Done()

			select {
			case gate <- struct{}{}:
				defer func() { <-gate }()
			case <-ctx.Done():
				mu.Lock()
				failed++
				mu.Unlock()
				return
			}

			adapterCtx, cancel := context.WithTimeout(ctx, config.AdapterTimeout)
			defer cancel()

			defer func() {
				if r := recover(); r != nil {
					mu.Lock()
					failed++
					mu.Unlock()
					o.logger.Error("adapter panicked", "adapter", adapter.Name(), "panic", r)
				}
			}()

			found, err := adapter.Discover(adapterCtx, query)
			if err != nil {
				mu.Lock()
				failed++
				mu.Unlock()
				o.logger.Warn("adapter failed, continuing without it",
					"adapter", adapter.Name(),
					"error", err)
				return
			}

			mu.Lock()
			slots[i] = found
			mu.Unlock()
		}(i, adapter)
	}
	wg.Wait()

	var raw []sources.RawCandidate
	for _, slot := range slots {
		raw = append(raw, slot...)
	}
	return raw, failed
}

func (o *Orchestrator) normalizeAll(raw []sources.RawCandidate) ([]types.LocationCandidate, int) {
	candidates := make([]types.LocationCandidate, 0, len(raw))
	errors := 0
	for _, r := range raw {
		candidate, err := o.normalizer.Normalize(r)
		if err != nil {
			errors++
			o.logger.Warn("dropping malformed raw candidate", "source", r.Kind, "error", err)
			continue
		}
		candidates = append(candidates, candidate)
	}
	return candidates, errors
}

// loadExisting fails soft: a broken dataset lookup degrades to "nothing
// to dedup against" rather than killing the run.
func (o *Orchestrator) loadExisting(ctx context.Context) []types.LocationCandidate {
	if o.existing == nil {
		return nil
	}
	existing, err := o.existing.ListApproved(ctx)
	if err != nil {
		o.logger.Warn("existing dataset lookup failed, deduplicating within batch only", "error", err)
		return nil
	}
	return existing
}

// classify scores every resolved candidate and assigns its final
// status. Duplicates keep their validation result for audit even though
// they are not re-surfaced for moderation.
func (o *Orchestrator) classify(resolutions []dedup.Resolution) *Result {
	result := &Result{
		Accepted:   []types.LocationCandidate{},
		Duplicates: []types.LocationCandidate{},
		Rejected:   []RejectedCandidate{},
	}

	for _, res := range resolutions {
		candidate := res.Candidate
		validation := o.scorer.Score(candidate)
		candidate.Validation = &validation

		if res.Verdict.Kind != types.VerdictUnique {
			candidate.Status = types.StatusDuplicate
			result.Duplicates = append(result.Duplicates, candidate)
			continue
		}

		if validation.IsValid {
			candidate.Status = types.StatusPending
			result.Accepted = append(result.Accepted, candidate)
		} else {
			candidate.Status = types.StatusRejected
			result.Rejected = append(result.Rejected, RejectedCandidate{
				Candidate:  candidate,
				Validation: validation,
			})
		}
	}

	return result
}
