package domain

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/promptlab/workbench/internal/observability"
)

const (
	// DefaultCallTimeout bounds each model invocation.
	DefaultCallTimeout = 120 * time.Second

	snapshotBufferSize = 64
)

// RunRequest carries everything needed to dispatch one fan-out run.
// Template is expected to be the resolved template (after substitution);
// Variables is kept alongside it for the persisted configuration snapshot.
type RunRequest struct {
	PromptID  string        `json:"prompt_id"`
	VersionID string        `json:"version_id,omitempty"`
	Template  Template      `json:"template"`
	Variables Bindings      `json:"variables"`
	Models    []ModelConfig `json:"models"`
}

// Snapshot is the observable state of the current run. Results appear in
// arrival order; InFlight holds the config ids still awaiting a result.
type Snapshot struct {
	Running    bool              `json:"running"`
	Generation uint64            `json:"generation"`
	InFlight   []string          `json:"in_flight"`
	Results    []ExecutionResult `json:"results"`
}

// CompletionFunc is invoked exactly once when a run fully settles, with the
// run's configuration and the complete result list (failures included).
type CompletionFunc func(ctx context.Context, entry *RunHistoryEntry)

// Orchestrator fans a resolved prompt out to N model backends concurrently,
// publishes partial results as they arrive, and hands the settled run to a
// completion collaborator. All state transitions are guarded by a mutex and
// tagged with a monotonically increasing generation so late results from a
// cleared or superseded run are dropped instead of merged.
type Orchestrator struct {
	registry    ProviderRegistry
	costs       CostCalculator
	events      EventPublisher
	callTimeout time.Duration
	onComplete  CompletionFunc

	mu         sync.Mutex
	generation uint64
	running    bool
	inFlight   map[string]struct{}
	results    []ExecutionResult
	current    RunRequest

	subMu   sync.Mutex
	subs    map[uint64]chan Snapshot
	nextSub uint64
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithCallTimeout overrides the per-call timeout ceiling.
func WithCallTimeout(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		o.callTimeout = d
	}
}

// WithCompletion sets the one-shot collaborator invoked when a run settles.
func WithCompletion(fn CompletionFunc) OrchestratorOption {
	return func(o *Orchestrator) {
		o.onComplete = fn
	}
}

// NewOrchestrator creates a run orchestrator (DI constructor).
func NewOrchestrator(
	registry ProviderRegistry,
	costs CostCalculator,
	events EventPublisher,
	opts ...OrchestratorOption,
) *Orchestrator {
	o := &Orchestrator{
		registry:    registry,
		costs:       costs,
		events:      events,
		callTimeout: DefaultCallTimeout,
		inFlight:    make(map[string]struct{}),
		subs:        make(map[uint64]chan Snapshot),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run dispatches one independent call per enabled model config, all started
// without waiting on one another. It returns the run's generation and true,
// or false without any state change when no config is enabled. A new run
// supersedes the previous one: its generation is bumped and any
// still-pending results from the old generation are dropped on arrival.
func (o *Orchestrator) Run(ctx context.Context, req RunRequest) (uint64, bool) {
	// Ids are normally assigned by the authoring surface; fill any gaps so
	// the persisted config rows stay matched to their results.
	for i := range req.Models {
		if req.Models[i].ID == "" {
			req.Models[i].ID = uuid.New().String()
		}
	}

	enabled := make([]ModelConfig, 0, len(req.Models))
	for _, cfg := range req.Models {
		if cfg.Enabled {
			enabled = append(enabled, cfg)
		}
	}
	if len(enabled) == 0 {
		return 0, false
	}

	o.mu.Lock()
	o.generation++
	gen := o.generation
	o.running = true
	o.results = nil
	o.current = req
	o.inFlight = make(map[string]struct{}, len(enabled))
	for _, cfg := range enabled {
		o.inFlight[cfg.ID] = struct{}{}
	}
	o.publish(o.snapshotLocked())
	o.mu.Unlock()

	if o.events != nil {
		o.events.Publish(ctx, "run.started", map[string]interface{}{
			"generation": gen,
			"models":     len(enabled),
			"prompt_id":  req.PromptID,
		})
	}

	// Calls outlive the triggering request: a disconnecting observer must
	// not abort a run that other observers may still be watching.
	runCtx := context.WithoutCancel(ctx)

	for _, cfg := range enabled {
		go func(cfg ModelConfig) {
			result := o.invoke(runCtx, req, cfg)
			o.settle(runCtx, gen, cfg.ID, result)
		}(cfg)
	}

	return gen, true
}

// invoke executes a single model call, bounded by the call timeout. It never
// returns an error: any failure is normalized into an error-tagged result so
// one model's failure cannot affect its siblings.
func (o *Orchestrator) invoke(ctx context.Context, req RunRequest, cfg ModelConfig) ExecutionResult {
	callCtx, cancel := context.WithTimeout(ctx, o.callTimeout)
	defer cancel()

	start := time.Now()
	result := ExecutionResult{
		ConfigID:    cfg.ID,
		Model:       cfg.Model,
		DisplayName: cfg.DisplayName,
	}

	response, err := o.complete(callCtx, req, cfg)
	result.LatencyMS = time.Since(start).Milliseconds()
	result.CompletedAt = time.Now()

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || callCtx.Err() == context.DeadlineExceeded {
			result.Error = fmt.Sprintf("timed out after %s", o.callTimeout)
		} else {
			result.Error = err.Error()
		}
		return result
	}

	result.Output = response.Content
	result.Usage = response.Usage
	if cost, costErr := o.costs.Calculate(ctx, response.Model, response.Usage); costErr == nil {
		result.Usage.CostUSD = &cost
	}
	return result
}

func (o *Orchestrator) complete(ctx context.Context, req RunRequest, cfg ModelConfig) (*CompletionResponse, error) {
	var (
		provider Provider
		err      error
	)
	if cfg.Provider != "" {
		provider, err = o.registry.Get(ctx, cfg.Provider)
	} else {
		provider, err = o.registry.GetByModel(ctx, cfg.Model)
	}
	if err != nil {
		return nil, fmt.Errorf("provider routing failed: %w", err)
	}

	return provider.Complete(ctx, &CompletionRequest{
		Model:           cfg.Model,
		Messages:        PromptMessages(req.Template),
		Temperature:     cfg.Temperature,
		MaxTokens:       cfg.MaxTokens,
		ReasoningEffort: cfg.ReasoningEffort,
	})
}

// settle applies one call's result as an atomic read-modify-write transition.
// Results carrying a stale generation are dropped. The final transition to
// settled, and the completion callback, fire exactly once, after the last
// call of the current generation.
func (o *Orchestrator) settle(ctx context.Context, gen uint64, configID string, result ExecutionResult) {
	o.mu.Lock()
	if gen != o.generation {
		o.mu.Unlock()
		if o.events != nil {
			o.events.Publish(ctx, "run.stale_dropped", map[string]interface{}{
				"generation": gen,
				"config_id":  configID,
			})
		}
		return
	}

	delete(o.inFlight, configID)
	o.results = append(o.results, result)

	done := len(o.inFlight) == 0
	if done {
		o.running = false
	}
	snap := o.snapshotLocked()
	req := o.current
	o.publish(snap)
	o.mu.Unlock()

	if o.events != nil {
		o.events.Publish(ctx, "run.result", map[string]interface{}{
			"generation": gen,
			"config_id":  configID,
			"model":      result.Model,
			"failed":     result.Failed(),
			"latency_ms": result.LatencyMS,
		})
	}

	if !done {
		return
	}

	if o.events != nil {
		o.events.Publish(ctx, "run.settled", map[string]interface{}{
			"generation": gen,
			"results":    len(snap.Results),
		})
	}
	if o.onComplete != nil {
		o.onComplete(ctx, &RunHistoryEntry{
			ID:        uuid.New().String(),
			PromptID:  req.PromptID,
			VersionID: req.VersionID,
			CreatedAt: time.Now(),
			Config: RunConfig{
				Template:  req.Template,
				Variables: req.Variables,
				Models:    req.Models,
			},
			Results: snap.Results,
		})
	}
}

// ClearResults resets the orchestrator to idle. In-flight calls from a
// previous invocation are not cancelled; their late results are dropped by
// the generation check in settle.
func (o *Orchestrator) ClearResults() {
	o.mu.Lock()
	o.generation++
	o.running = false
	o.inFlight = make(map[string]struct{})
	o.results = nil
	o.current = RunRequest{}
	o.publish(o.snapshotLocked())
	o.mu.Unlock()
}

// LoadRun restores a persisted run into the same observable shape as a live
// run, without dispatching any calls.
func (o *Orchestrator) LoadRun(entry *RunHistoryEntry) {
	o.mu.Lock()
	o.generation++
	o.running = false
	o.inFlight = make(map[string]struct{})
	o.results = append([]ExecutionResult(nil), entry.Results...)
	o.current = RunRequest{
		PromptID:  entry.PromptID,
		VersionID: entry.VersionID,
		Template:  entry.Config.Template,
		Variables: entry.Config.Variables,
		Models:    entry.Config.Models,
	}
	o.publish(o.snapshotLocked())
	o.mu.Unlock()
}

// Snapshot returns a copy of the current observable state.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshotLocked()
}

// Subscribe registers an observer of state snapshots. The returned cancel
// func must be called to release the subscription. Slow observers miss
// intermediate snapshots rather than blocking settlement.
func (o *Orchestrator) Subscribe() (<-chan Snapshot, func()) {
	o.subMu.Lock()
	id := o.nextSub
	o.nextSub++
	ch := make(chan Snapshot, snapshotBufferSize)
	o.subs[id] = ch
	o.subMu.Unlock()

	cancel := func() {
		o.subMu.Lock()
		if sub, ok := o.subs[id]; ok {
			delete(o.subs, id)
			close(sub)
		}
		o.subMu.Unlock()
	}
	return ch, cancel
}

func (o *Orchestrator) snapshotLocked() Snapshot {
	inFlight := make([]string, 0, len(o.inFlight))
	for id := range o.inFlight {
		inFlight = append(inFlight, id)
	}
	return Snapshot{
		Running:    o.running,
		Generation: o.generation,
		InFlight:   inFlight,
		Results:    append([]ExecutionResult(nil), o.results...),
	}
}

func (o *Orchestrator) publish(snap Snapshot) {
	o.subMu.Lock()
	defer o.subMu.Unlock()
	for _, ch := range o.subs {
		select {
		case ch <- snap:
		default:
			observability.FromContext(context.Background()).
				Warn("snapshot dropped for slow subscriber")
		}
	}
}
