package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"go.uber.org/zap"

	"github.com/promptlab/workbench/internal/catalog"
	"github.com/promptlab/workbench/internal/config"
	"github.com/promptlab/workbench/internal/domain"
	"github.com/promptlab/workbench/internal/observability"
)

// Handler handles HTTP requests for the workbench surface.
type Handler struct {
	orchestrator Orchestrator
	registry     domain.ProviderRegistry
	costs        domain.CostCalculator
	catalog      *catalog.Catalog
	history      domain.HistoryStore
	callTimeout  time.Duration
	historyLimit int

	runSchema      *jsonschema.Schema
	multiRunSchema *jsonschema.Schema
}

// Orchestrator is the subset of the run orchestrator the handler needs.
type Orchestrator interface {
	Run(ctx context.Context, req domain.RunRequest) (uint64, bool)
	Snapshot() domain.Snapshot
	Subscribe() (<-chan domain.Snapshot, func())
	ClearResults()
	LoadRun(entry *domain.RunHistoryEntry)
}

// NewHandler creates a new HTTP handler (DI constructor).
func NewHandler(
	orchestrator Orchestrator,
	registry domain.ProviderRegistry,
	costs domain.CostCalculator,
	cat *catalog.Catalog,
	history domain.HistoryStore,
	runCfg *config.RunConfig,
	histCfg *config.HistoryConfig,
) (*Handler, error) {
	runSchema, err := compileSchema("run_request.json", runRequestSchema)
	if err != nil {
		return nil, err
	}
	multiRunSchema, err := compileSchema("multi_run_request.json", multiRunRequestSchema)
	if err != nil {
		return nil, err
	}

	return &Handler{
		orchestrator:   orchestrator,
		registry:       registry,
		costs:          costs,
		catalog:        cat,
		history:        history,
		callTimeout:    time.Duration(runCfg.CallTimeout) * time.Second,
		historyLimit:   histCfg.DefaultLimit,
		runSchema:      runSchema,
		multiRunSchema: multiRunSchema,
	}, nil
}

// templatePayload is the wire shape of a template plus its bindings.
type templatePayload struct {
	TemplateType     domain.TemplateType `json:"template_type"`
	TemplateText     string              `json:"template_text"`
	TemplateMessages []domain.Message    `json:"template_messages"`
	Variables        domain.Bindings     `json:"variables"`
}

func (p templatePayload) template() domain.Template {
	return domain.Template{
		Type:     p.TemplateType,
		Text:     p.TemplateText,
		Messages: p.TemplateMessages,
	}
}

// modelConfigPayload mirrors domain.ModelConfig with an optional enabled
// flag: a row that omits it is treated as enabled.
type modelConfigPayload struct {
	ID              string                 `json:"id"`
	Model           string                 `json:"model"`
	Provider        string                 `json:"provider"`
	Temperature     float64                `json:"temperature"`
	MaxTokens       int                    `json:"max_tokens"`
	ReasoningEffort domain.ReasoningEffort `json:"reasoning_effort"`
	Enabled         *bool                  `json:"enabled"`
}

func (p modelConfigPayload) config() domain.ModelConfig {
	enabled := true
	if p.Enabled != nil {
		enabled = *p.Enabled
	}
	id := p.ID
	if id == "" {
		id = uuid.New().String()
	}
	return domain.ModelConfig{
		ID:              id,
		Model:           p.Model,
		Provider:        p.Provider,
		Temperature:     p.Temperature,
		MaxTokens:       p.MaxTokens,
		ReasoningEffort: p.ReasoningEffort,
		Enabled:         enabled,
	}
}

// HandleInspect extracts variable names and produces a substitution preview.
func (h *Handler) HandleInspect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var payload templatePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(ctx, w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	tmpl := payload.template()
	writeJSON(ctx, w, http.StatusOK, map[string]interface{}{
		"variables": domain.ExtractVariables(tmpl),
		"preview":   domain.Substitute(tmpl, payload.Variables),
	})
}

// runPayload is the single-call wire contract.
type runPayload struct {
	templatePayload
	Model           string                 `json:"model"`
	Temperature     float64                `json:"temperature"`
	MaxTokens       int                    `json:"max_tokens"`
	ReasoningEffort domain.ReasoningEffort `json:"reasoning_effort"`
}

// HandleRun processes a single model invocation. Provider failures are
// normalized into an {"error": ...} body, mirroring the per-result error
// semantics of a fan-out run.
func (h *Handler) HandleRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	raw, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(ctx, w, http.StatusBadRequest, fmt.Errorf("failed to read body: %w", err))
		return
	}

	var payload runPayload
	if err := validateAndDecode(h.runSchema, raw, &payload); err != nil {
		writeError(ctx, w, http.StatusBadRequest, err)
		return
	}

	cfg := h.catalog.Normalize(domain.ModelConfig{
		Model:           payload.Model,
		Temperature:     payload.Temperature,
		MaxTokens:       payload.MaxTokens,
		ReasoningEffort: payload.ReasoningEffort,
	})

	ctx = observability.WithModel(ctx, cfg.Model)
	logger := observability.FromContext(ctx)
	logger.Info("run request received",
		zap.String("model", cfg.Model),
		zap.String("template_type", string(payload.TemplateType)),
	)

	resolved := domain.Substitute(payload.template(), payload.Variables)

	callCtx, cancel := context.WithTimeout(ctx, h.callTimeout)
	defer cancel()

	provider, err := h.lookupProvider(callCtx, cfg)
	if err != nil {
		writeJSON(ctx, w, http.StatusOK, map[string]string{"error": err.Error()})
		return
	}

	response, err := provider.Complete(callCtx, &domain.CompletionRequest{
		Model:           cfg.Model,
		Messages:        domain.PromptMessages(resolved),
		Temperature:     cfg.Temperature,
		MaxTokens:       cfg.MaxTokens,
		ReasoningEffort: cfg.ReasoningEffort,
	})
	if err != nil {
		logger.Error("run failed", zap.Error(err))
		msg := err.Error()
		if callCtx.Err() == context.DeadlineExceeded {
			msg = fmt.Sprintf("timed out after %s", h.callTimeout)
		}
		writeJSON(ctx, w, http.StatusOK, map[string]string{"error": msg})
		return
	}

	usage := response.Usage
	if cost, costErr := h.costs.Calculate(ctx, response.Model, usage); costErr == nil {
		usage.CostUSD = &cost
	}

	logger.Info("run succeeded",
		zap.Int("tokens", usage.TotalTokens),
	)

	writeJSON(ctx, w, http.StatusOK, map[string]interface{}{
		"output": response.Content,
		"usage":  usage,
	})
}

// multiRunPayload is the fan-out wire contract.
type multiRunPayload struct {
	templatePayload
	PromptID  string               `json:"prompt_id"`
	VersionID string               `json:"version_id"`
	Models    []modelConfigPayload `json:"models"`
}

// HandleMultiRun dispatches a fan-out run and streams state snapshots to the
// caller as server-sent events until the run settles. Each result becomes
// observable as soon as its own call settles.
func (h *Handler) HandleMultiRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	raw, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(ctx, w, http.StatusBadRequest, fmt.Errorf("failed to read body: %w", err))
		return
	}

	var payload multiRunPayload
	if err := validateAndDecode(h.multiRunSchema, raw, &payload); err != nil {
		writeError(ctx, w, http.StatusBadRequest, err)
		return
	}

	models := make([]domain.ModelConfig, 0, len(payload.Models))
	for _, m := range payload.Models {
		models = append(models, h.catalog.Normalize(m.config()))
	}

	resolved := domain.Substitute(payload.template(), payload.Variables)

	ctx = observability.WithPromptID(ctx, payload.PromptID)
	logger := observability.FromContext(ctx)
	logger.Info("multi-run request received",
		zap.Int("models", len(models)),
		zap.String("version_id", payload.VersionID),
	)

	snapshots, unsubscribe := h.orchestrator.Subscribe()
	defer unsubscribe()

	gen, started := h.orchestrator.Run(ctx, domain.RunRequest{
		PromptID:  payload.PromptID,
		VersionID: payload.VersionID,
		Template:  resolved,
		Variables: payload.Variables,
		Models:    models,
	})
	if !started {
		// No enabled models: a silent no-op, surfaced as the unchanged state.
		writeJSON(ctx, w, http.StatusOK, h.orchestrator.Snapshot())
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		logger.Error("streaming not supported")
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	// Set headers for SSE.
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	for {
		select {
		case <-ctx.Done():
			logger.Info("multi-run stream client disconnected")
			return
		case snap, open := <-snapshots:
			if !open {
				return
			}
			if snap.Generation < gen {
				continue
			}
			if snap.Generation > gen {
				// Superseded by a newer run or a clear; this stream is done.
				fmt.Fprintf(w, "event: superseded\ndata: {}\n\n")
				flusher.Flush()
				return
			}

			data, _ := json.Marshal(snap)
			fmt.Fprintf(w, "data: %s\n\n", string(data))
			flusher.Flush()

			if !snap.Running {
				fmt.Fprintf(w, "event: done\ndata: %s\n\n", string(data))
				flusher.Flush()
				logger.Info("multi-run settled",
					zap.Int("results", len(snap.Results)),
				)
				return
			}
		}
	}
}

// HandleRunState returns the current observable run state.
func (h *Handler) HandleRunState(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, http.StatusOK, h.orchestrator.Snapshot())
}

// HandleRunClear resets the current run state to idle. Calls still in
// flight are not cancelled; their results are dropped on arrival.
func (h *Handler) HandleRunClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	h.orchestrator.ClearResults()
	writeJSON(r.Context(), w, http.StatusOK, h.orchestrator.Snapshot())
}

// HandleRunLoad restores a previously persisted run entry into the current
// run state without dispatching any calls.
func (h *Handler) HandleRunLoad(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var entry domain.RunHistoryEntry
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		writeError(ctx, w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	h.orchestrator.LoadRun(&entry)
	writeJSON(ctx, w, http.StatusOK, h.orchestrator.Snapshot())
}

// diffPayload is the comparison wire contract.
type diffPayload struct {
	Old string `json:"old"`
	New string `json:"new"`
}

// HandleDiff computes the classified line diff and the coarse change count
// between two text artifacts.
func (h *Handler) HandleDiff(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var payload diffPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(ctx, w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	result := domain.ComputeDiff(payload.Old, payload.New)
	writeJSON(ctx, w, http.StatusOK, map[string]interface{}{
		"lines":         result.Lines,
		"added_count":   result.AddedCount,
		"removed_count": result.RemovedCount,
		"has_changes":   result.HasChanges,
		"change_count":  domain.CountChanges(payload.Old, payload.New),
	})
}

// HandleHistory serves run history: GET lists by version id, POST persists
// an externally assembled entry.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listHistory(w, r)
	case http.MethodPost:
		h.saveHistory(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) listHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	versionID := r.URL.Query().Get("version_id")
	limit := h.historyLimit
	if rawLimit := r.URL.Query().Get("limit"); rawLimit != "" {
		if _, err := fmt.Sscanf(rawLimit, "%d", &limit); err != nil || limit <= 0 {
			writeError(ctx, w, http.StatusBadRequest, fmt.Errorf("invalid limit: %q", rawLimit))
			return
		}
	}

	entries, err := h.history.ListByVersion(ctx, versionID, limit)
	if err != nil {
		writeError(ctx, w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(ctx, w, http.StatusOK, map[string]interface{}{
		"entries": entries,
	})
}

func (h *Handler) saveHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var entry domain.RunHistoryEntry
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		writeError(ctx, w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	if err := h.history.Save(ctx, &entry); err != nil {
		writeError(ctx, w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(ctx, w, http.StatusCreated, entry)
}

// HandleHealth handles health check requests.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

func (h *Handler) lookupProvider(ctx context.Context, cfg domain.ModelConfig) (domain.Provider, error) {
	if cfg.Provider != "" {
		return h.registry.Get(ctx, cfg.Provider)
	}
	return h.registry.GetByModel(ctx, cfg.Model)
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		observability.FromContext(ctx).Error("failed to encode response", zap.Error(err))
	}
}

func writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	observability.FromContext(ctx).Warn("request failed", zap.Error(err))
	writeJSON(ctx, w, status, map[string]string{"error": err.Error()})
}
