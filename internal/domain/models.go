package domain

import "time"

// TemplateType distinguishes free-text templates from role-tagged chat templates.
type TemplateType string

const (
	TemplateTypeText TemplateType = "text"
	TemplateTypeChat TemplateType = "chat"
)

// Template is a prompt template: either free text or an ordered list of
// role-tagged messages, containing zero or more {{variable}} placeholders.
type Template struct {
	Type     TemplateType `json:"template_type"`
	Text     string       `json:"template_text,omitempty"`
	Messages []Message    `json:"template_messages,omitempty"`
}

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"` // user, assistant, system
	Content string `json:"content"`
}

// Bindings maps variable names to their substitution values.
type Bindings map[string]string

// ReasoningEffort is the effort hint for reasoning-capable model families.
type ReasoningEffort string

const (
	ReasoningEffortMinimal ReasoningEffort = "minimal"
	ReasoningEffortLow     ReasoningEffort = "low"
	ReasoningEffortMedium  ReasoningEffort = "medium"
	ReasoningEffortHigh    ReasoningEffort = "high"
)

// Valid reports whether the effort is one of the known enumeration values.
func (e ReasoningEffort) Valid() bool {
	switch e {
	case ReasoningEffortMinimal, ReasoningEffortLow, ReasoningEffortMedium, ReasoningEffortHigh:
		return true
	}
	return false
}

// ModelConfig describes one target backend invocation within a run.
// The ID is generated when an author adds a model row and is unique within
// the run; it is not persisted anywhere else.
type ModelConfig struct {
	ID              string          `json:"id"`
	Model           string          `json:"model"`
	Provider        string          `json:"provider"`
	DisplayName     string          `json:"display_name,omitempty"`
	Temperature     float64         `json:"temperature"`
	MaxTokens       int             `json:"max_tokens"`
	ReasoningEffort ReasoningEffort `json:"reasoning_effort,omitempty"`
	Enabled         bool            `json:"enabled"`
}

// Usage tracks token consumption for one model invocation.
// CostUSD is nil when pricing for the model is unknown, never zero.
type Usage struct {
	PromptTokens     int      `json:"prompt_tokens"`
	CompletionTokens int      `json:"completion_tokens"`
	TotalTokens      int      `json:"total_tokens"`
	CostUSD          *float64 `json:"cost_usd"`
}

// ExecutionResult is the outcome of one model invocation: success or an
// error-tagged failure. Exactly one is produced per dispatched ModelConfig.
type ExecutionResult struct {
	ConfigID    string    `json:"config_id"`
	Model       string    `json:"model"`
	DisplayName string    `json:"display_name"`
	Output      string    `json:"output"`
	LatencyMS   int64     `json:"latency_ms"`
	Usage       Usage     `json:"usage"`
	Error       string    `json:"error,omitempty"`
	CompletedAt time.Time `json:"completed_at"`
}

// Failed reports whether the invocation ended in an error.
func (r ExecutionResult) Failed() bool {
	return r.Error != ""
}

// RunConfig is the full configuration snapshot of one fan-out run.
type RunConfig struct {
	Template  Template      `json:"template"`
	Variables Bindings      `json:"variables"`
	Models    []ModelConfig `json:"models"`
}

// RunHistoryEntry is a persisted record of a completed run. Immutable once
// saved; partial failures are recorded like any other terminal state.
type RunHistoryEntry struct {
	ID        string            `json:"id"`
	PromptID  string            `json:"prompt_id"`
	VersionID string            `json:"version_id,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	Config    RunConfig         `json:"config"`
	Results   []ExecutionResult `json:"results"`
}

// CompletionRequest represents a unified LLM request.
type CompletionRequest struct {
	Model           string            `json:"model"`
	Messages        []Message         `json:"messages"`
	Temperature     float64           `json:"temperature,omitempty"`
	MaxTokens       int               `json:"max_tokens,omitempty"`
	ReasoningEffort ReasoningEffort   `json:"reasoning_effort,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// CompletionResponse represents a unified LLM response.
type CompletionResponse struct {
	ID         string    `json:"id"`
	Model      string    `json:"model"`
	Provider   string    `json:"provider"`
	Content    string    `json:"content"`
	Usage      Usage     `json:"usage"`
	FinishTime time.Time `json:"finish_time"`
}
