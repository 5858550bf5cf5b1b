// Package services holds the application services behind the HTTP
// handlers. The discovery service tracks asynchronous pipeline runs.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"discoveryserver/discovery"
	apperrors "discoveryserver/server/errors"
	"discoveryserver/types"
)

// RunStatus is the lifecycle state of a discovery run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// DiscoveryRun tracks one asynchronous pipeline run.
type DiscoveryRun struct {
	ID          string            `json:"id"`
	Query       string            `json:"query"`
	Status      RunStatus         `json:"status"`
	Phase       discovery.Phase   `json:"phase"`
	Error       string            `json:"error,omitempty"`
	StartedAt   time.Time         `json:"started_at"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
	Result      *discovery.Result `json:"result,omitempty"`
}

// CandidateStore persists accepted candidates after a run.
type CandidateStore interface {
	SaveCandidates(ctx context.Context, candidates []types.LocationCandidate) error
}

// DiscoveryService starts pipeline runs and answers status queries.
// Runs live in memory; restart history is not a requirement, the
// discovered locations themselves are in the database.
type DiscoveryService struct {
	orchestrator *discovery.Orchestrator
	store        CandidateStore
	config       discovery.Config
	logger       *slog.Logger

	runs   map[string]*DiscoveryRun
	runsMu sync.RWMutex

	// execMu serializes pipeline execution. One run at a time keeps
	// the phase reporting unambiguous and avoids hammering scrape
	// targets from parallel runs; queued runs stay in "running" until
	// their turn.
	execMu sync.Mutex
}

// NewDiscoveryService builds the service. defaults configures runs
// that do not override sources or limits; store may be nil, in which
// case accepted candidates are only returned, not persisted.
func NewDiscoveryService(orchestrator *discovery.Orchestrator, store CandidateStore, defaults discovery.Config) *DiscoveryService {
	return &DiscoveryService{
		orchestrator: orchestrator,
		store:        store,
		config:       defaults,
		logger:       slog.Default().With("component", "discovery_service"),
		runs:         make(map[string]*DiscoveryRun),
	}
}

// RunRequest is the caller's control over one run. Zero fields fall
// back to the service defaults.
type RunRequest struct {
	Query          string                  `json:"query"`
	EnabledSources []types.DiscoverySource `json:"enabled_sources,omitempty"`
	Concurrency    int                     `json:"concurrency,omitempty"`
}

// StartRun validates the request, registers the run, and executes the
// pipeline in the background. Returns the run ID immediately.
func (s *DiscoveryService) StartRun(req RunRequest) (string, error) {
	if req.Query == "" {
		return "", apperrors.NewValidationError("query is required", nil)
	}

	config := s.config
	if len(req.EnabledSources) > 0 {
		config.EnabledSources = req.EnabledSources
	}
	if req.Concurrency > 0 {
		config.Concurrency = req.Concurrency
	}
	if err := config.Validate(); err != nil {
		return "", apperrors.NewValidationError(err.Error(), err)
	}

	runID := s.generateRunID()
	run := &DiscoveryRun{
		ID:        runID,
		Query:     req.Query,
		Status:    RunRunning,
		Phase:     discovery.PhaseIdle,
		StartedAt: time.Now(),
	}

	s.runsMu.Lock()
	s.runs[runID] = run
	s.runsMu.Unlock()

	go s.execute(runID, req.Query, config)

	return runID, nil
}

func (s *DiscoveryService) execute(runID, query string, config discovery.Config) {
	s.execMu.Lock()
	defer s.execMu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("discovery run panicked", "run_id", runID, "panic", r)
			s.finishRun(runID, nil, fmt.Errorf("run panicked: %v", r))
		}
	}()

	s.orchestrator.OnPhase = func(p discovery.Phase) {
		s.runsMu.Lock()
		if run, ok := s.runs[runID]; ok {
			run.Phase = p
		}
		s.runsMu.Unlock()
	}

	result, err := s.orchestrator.Run(context.Background(), query, config)
	if err != nil {
		s.finishRun(runID, nil, err)
		return
	}

	if s.store != nil && len(result.Accepted) > 0 {
		if err := s.store.SaveCandidates(context.Background(), result.Accepted); err != nil {
			s.logger.Error("failed to persist accepted candidates", "run_id", runID, "error", err)
			s.finishRun(runID, result, fmt.Errorf("persist accepted candidates: %w", err))
			return
		}
	}

	s.finishRun(runID, result, nil)
}

func (s *DiscoveryService) finishRun(runID string, result *discovery.Result, err error) {
	now := time.Now()

	s.runsMu.Lock()
	defer s.runsMu.Unlock()

	run, ok := s.runs[runID]
	if !ok {
		return
	}
	run.CompletedAt = &now
	run.Result = result
	if err != nil {
		run.Status = RunFailed
		run.Error = err.Error()
	} else {
		run.Status = RunCompleted
		run.Phase = discovery.PhaseDone
	}
}

// GetRun returns the run's current snapshot.
func (s *DiscoveryService) GetRun(runID string) (DiscoveryRun, error) {
	s.runsMu.RLock()
	defer s.runsMu.RUnlock()

	run, ok := s.runs[runID]
	if !ok {
		return DiscoveryRun{}, apperrors.NewNotFoundError("run not found", nil)
	}
	return *run, nil
}

// ListRuns returns snapshots of all runs, newest first.
func (s *DiscoveryService) ListRuns() []DiscoveryRun {
	s.runsMu.RLock()
	defer s.runsMu.RUnlock()

	runs := make([]DiscoveryRun, 0, len(s.runs))
	for _, run := range s.runs {
		runs = append(runs, *run)
	}
	for i := 0; i < len(runs); i++ {
		for j := i + 1; j < len(runs); j++ {
			if runs[j].StartedAt.After(runs[i].StartedAt) {
				runs[i], runs[j] = runs[j], runs[i]
			}
		}
	}
	return runs
}

func (s *DiscoveryService) generateRunID() string {
	return "run_" + uuid.NewString()
}
