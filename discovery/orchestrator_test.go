package discovery

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"discoveryserver/dedup"
	"discoveryserver/normalization"
	"discoveryserver/quality"
	"discoveryserver/sources"
	"discoveryserver/types"
)

type stubAdapter struct {
	name       string
	kind       types.DiscoverySource
	candidates []sources.RawCandidate
	err        error
	delay      time.Duration
	panics     bool
	active     int32
	maxActive  int32
}

func (a *stubAdapter) Name() string                { return a.name }
func (a *stubAdapter) Kind() types.DiscoverySource { return a.kind }

func (a *stubAdapter) Discover(ctx context.Context, query string) ([]sources.RawCandidate, error) {
	current := atomic.AddInt32(&a.active, 1)
	defer atomic.AddInt32(&a.active, -1)
	for {
		prev := atomic.LoadInt32(&a.maxActive)
		if current <= prev || atomic.CompareAndSwapInt32(&a.maxActive, prev, current) {
			break
		}
	}

	if a.delay > 0 {
		select {
		case <-time.After(a.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if a.panics {
		panic("adapter exploded")
	}
	if a.err != nil {
		return nil, a.err
	}
	return a.candidates, nil
}

func scrapedRaw(name, address, phone string) sources.RawCandidate {
	return sources.RawCandidate{
		Kind:      types.SourceScraping,
		SourceURL: "https://eatdrink.example/lagos",
		Scraped:   &sources.ScrapedRaw{Name: name, Address: address, Phone: phone},
	}
}

type stubLookup struct {
	records []types.LocationCandidate
	err     error
}

func (l *stubLookup) ListApproved(ctx context.Context) ([]types.LocationCandidate, error) {
	return l.records, l.err
}

func newOrchestrator(adapters []sources.Adapter, lookup ExistingLookup) *Orchestrator {
	scorer := quality.NewScorer(quality.ScorerConfig{
		RegionKeywords: []string{"lagos", "ikeja", "lekki", "surulere", "ogba"},
		DomainKeywords: []string{"jollof", "amala", "suya", "kitchen", "buka"},
	})
	resolver := dedup.NewResolver(dedup.ResolverConfig{}, scorer.Confidence)
	return NewOrchestrator(adapters, normalization.NewNormalizer(normalization.NormalizerConfig{}), resolver, scorer, lookup)
}

func allSources() Config {
	return Config{
		EnabledSources: []types.DiscoverySource{types.SourceAPI, types.SourceScraping, types.SourceSocial},
	}
}

func TestRun_AllAdaptersFailingYieldsEmptyResult(t *testing.T) {
	adapters := []sources.Adapter{
		&stubAdapter{name: "api", kind: types.SourceAPI, err: errors.New("quota")},
		&stubAdapter{name: "scrape", kind: types.SourceScraping, err: errors.New("browser crash")},
		&stubAdapter{name: "social", kind: types.SourceSocial, panics: true},
	}

	result, err := newOrchestrator(adapters, nil).Run(context.Background(), "lagos", allSources())
	if err != nil {
		t.Fatalf("total upstream failure must not raise: %v", err)
	}
	if len(result.Accepted) != 0 || len(result.Duplicates) != 0 || len(result.Rejected) != 0 {
		t.Errorf("expected empty result, got %+v", result)
	}
	if result.Stats.SourcesFailed != 3 {
		t.Errorf("sources failed = %d, want 3", result.Stats.SourcesFailed)
	}
}

func TestRun_InvalidConfigFailsFast(t *testing.T) {
	o := newOrchestrator(nil, nil)

	if _, err := o.Run(context.Background(), "q", Config{}); err == nil {
		t.Error("no enabled sources must fail fast")
	}
	if _, err := o.Run(context.Background(), "q", Config{
		EnabledSources: []types.DiscoverySource{"telegraph"},
	}); err == nil {
		t.Error("unknown source must fail fast")
	}
}

func TestRun_EndToEnd(t *testing.T) {
	existing := &stubLookup{records: []types.LocationCandidate{
		{ID: "ex-1", Name: "Mama Cass", Address: "12 Ogba Rd, Lagos", Phone: "+2348034567890"},
	}}

	adapters := []sources.Adapter{
		&stubAdapter{name: "scrape", kind: types.SourceScraping, candidates: []sources.RawCandidate{
			// Duplicate of the existing record by phone.
			scrapedRaw("Mama Cass Kitchen", "12 Ogba Road, Lagos", "+2348034567890"),
			// A clean accept.
			scrapedRaw("Amala Buka Surulere", "23 Adelabu Street, Surulere, Lagos", "+2347011112222"),
			// Too little data: rejected.
			scrapedRaw("XY", "", ""),
		}},
		&stubAdapter{name: "api", kind: types.SourceAPI, err: errors.New("down")},
	}

	result, err := newOrchestrator(adapters, existing).Run(context.Background(), "lagos food", allSources())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(result.Accepted) != 1 {
		t.Fatalf("accepted = %d, want 1 (%+v)", len(result.Accepted), result)
	}
	if result.Accepted[0].Name != "Amala Buka Surulere" {
		t.Errorf("accepted = %q", result.Accepted[0].Name)
	}
	if result.Accepted[0].Status != types.StatusPending {
		t.Errorf("accepted status = %q, want pending", result.Accepted[0].Status)
	}

	if len(result.Duplicates) != 1 || result.Duplicates[0].Name != "Mama Cass Kitchen" {
		t.Fatalf("duplicates = %+v", result.Duplicates)
	}
	if result.Duplicates[0].Status != types.StatusDuplicate {
		t.Errorf("duplicate status = %q", result.Duplicates[0].Status)
	}

	if len(result.Rejected) != 1 || result.Rejected[0].Candidate.Name != "XY" {
		t.Fatalf("rejected = %+v", result.Rejected)
	}
	if result.Rejected[0].Candidate.Status != types.StatusRejected {
		t.Errorf("rejected status = %q", result.Rejected[0].Candidate.Status)
	}

	// Invariant: everything leaving the pipeline carries a validation
	// result consistent with its status.
	for _, c := range result.Accepted {
		if c.Validation == nil || !c.Validation.IsValid {
			t.Errorf("accepted candidate with inconsistent validation: %+v", c.Validation)
		}
	}
	for _, c := range result.Duplicates {
		if c.Validation == nil {
			t.Error("duplicate candidate without validation result")
		}
	}

	if result.Stats.SourcesFailed != 1 || result.Stats.RawCandidates != 3 {
		t.Errorf("stats = %+v", result.Stats)
	}
}

func TestRun_ConcurrencyGate(t *testing.T) {
	shared := &stubAdapter{name: "api", kind: types.SourceAPI, delay: 30 * time.Millisecond}
	second := &stubAdapter{name: "scrape", kind: types.SourceScraping, delay: 30 * time.Millisecond}
	third := &stubAdapter{name: "social", kind: types.SourceSocial, delay: 30 * time.Millisecond}

	config := allSources()
	config.Concurrency = 1

	if _, err := newOrchestrator([]sources.Adapter{shared, second, third}, nil).
		Run(context.Background(), "q", config); err != nil {
		t.Fatal(err)
	}

	for _, a := range []*stubAdapter{shared, second, third} {
		if a.maxActive > 1 {
			t.Errorf("adapter %s observed %d concurrent runs under a gate of 1", a.name, a.maxActive)
		}
	}
}

func TestRun_TimeoutKeepsPartialResults(t *testing.T) {
	fast := &stubAdapter{name: "scrape", kind: types.SourceScraping, candidates: []sources.RawCandidate{
		scrapedRaw("Jollof Republic", "Ikeja City Mall, Ikeja, Lagos", ""),
	}}
	slow := &stubAdapter{name: "api", kind: types.SourceAPI, delay: 5 * time.Second}

	config := allSources()
	config.Concurrency = 2
	config.RunTimeout = 100 * time.Millisecond

	result, err := newOrchestrator([]sources.Adapter{fast, slow}, nil).
		Run(context.Background(), "q", config)
	if err != nil {
		t.Fatalf("timeout must degrade, not fail: %v", err)
	}

	if result.Stats.RawCandidates != 1 {
		t.Errorf("fast adapter's results must survive the timeout, stats = %+v", result.Stats)
	}
	if result.Stats.SourcesFailed != 1 {
		t.Errorf("slow adapter should count as failed, stats = %+v", result.Stats)
	}
}

func TestRun_PhaseTransitions(t *testing.T) {
	o := newOrchestrator([]sources.Adapter{
		&stubAdapter{name: "scrape", kind: types.SourceScraping},
	}, nil)

	var mu sync.Mutex
	var phases []Phase
	o.OnPhase = func(p Phase) {
		mu.Lock()
		phases = append(phases, p)
		mu.Unlock()
	}

	if _, err := o.Run(context.Background(), "q", allSources()); err != nil {
		t.Fatal(err)
	}

	expected := []Phase{PhaseFetching, PhaseNormalizing, PhaseDeduplicating, PhaseValidating, PhaseDone}
	if len(phases) != len(expected) {
		t.Fatalf("phases = %v", phases)
	}
	for i := range expected {
		if phases[i] != expected[i] {
			t.Errorf("phase %d = %q, want %q", i, phases[i], expected[i])
		}
	}
}
