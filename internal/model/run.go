package model

import "time"

// RunStatus represents the current state of an analysis run.
type RunStatus string

const (
	RunStatusQueued     RunStatus = "queued"
	RunStatusExtracting RunStatus = "extracting"
	RunStatusFetching   RunStatus = "fetching"
	RunStatusScoring    RunStatus = "scoring"
	RunStatusComplete   RunStatus = "complete"
	RunStatusFailed     RunStatus = "failed"
)

// RunMode selects which downstream analysis follows extraction.
type RunMode string

const (
	// RunModeSentiment scores reviews of places near each intersection.
	RunModeSentiment RunMode = "sentiment"
	// RunModeStreetView scores street-level imagery at each intersection.
	RunModeStreetView RunMode = "streetview"
	// RunModeExtract stops after intersection extraction.
	RunModeExtract RunMode = "extract"
)

// Run represents a single analysis run for a study area.
type Run struct {
	ID        string     `json:"id"`
	Area      StudyArea  `json:"area"`
	Mode      RunMode    `json:"mode"`
	Status    RunStatus  `json:"status"`
	Result    *RunResult `json:"result,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// RunResult holds the final outcome of a run.
type RunResult struct {
	Intersections   int                `json:"intersections"`
	Places          int                `json:"places"`
	SentimentScores []SentimentScore   `json:"sentiment_scores,omitempty"`
	Summary         *FiveNumberSummary `json:"summary,omitempty"`
	Images          int                `json:"images,omitempty"`
	Walkability     *WalkabilityReport `json:"walkability,omitempty"`
	TotalTokens     int64              `json:"total_tokens"`
	TotalCost       float64            `json:"total_cost"`
	Phases          []PhaseResult      `json:"phases"`
	Error           string             `json:"error,omitempty"`
	ErrorKind       string             `json:"error_kind,omitempty"`
	OutputDir       string             `json:"output_dir,omitempty"`
}

// RunPhase represents a phase within a run.
type RunPhase struct {
	ID        string       `json:"id"`
	RunID     string       `json:"run_id"`
	Name      string       `json:"name"`
	Status    PhaseStatus  `json:"status"`
	Result    *PhaseResult `json:"result,omitempty"`
	StartedAt time.Time    `json:"started_at"`
}

// PhaseStatus represents the current state of a pipeline phase.
type PhaseStatus string

const (
	PhaseStatusRunning  PhaseStatus = "running"
	PhaseStatusComplete PhaseStatus = "complete"
	PhaseStatusFailed   PhaseStatus = "failed"
	PhaseStatusSkipped  PhaseStatus = "skipped"
)

// PhaseResult holds the outcome of a pipeline phase.
type PhaseResult struct {
	Name       string         `json:"name"`
	Status     PhaseStatus    `json:"status"`
	Duration   int64          `json:"duration_ms"`
	TokenUsage TokenUsage     `json:"token_usage"`
	Error      string         `json:"error,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// TokenUsage tracks LLM token consumption and cost for a phase.
type TokenUsage struct {
	InputTokens  int64   `json:"input_tokens"`
	OutputTokens int64   `json:"output_tokens"`
	Cost         float64 `json:"cost"`
}

// Add accumulates another usage into u.
func (u *TokenUsage) Add(o TokenUsage) {
	u.InputTokens += o.InputTokens
	u.OutputTokens += o.OutputTokens
	u.Cost += o.Cost
}

// Total returns input plus output tokens.
func (u TokenUsage) Total() int64 {
	return u.InputTokens + u.OutputTokens
}

// PlaceCache is a cached place-details lookup.
type PlaceCache struct {
	PlaceID   string       `json:"place_id"`
	Details   PlaceDetails `json:"details"`
	CachedAt  time.Time    `json:"cached_at"`
	ExpiresAt time.Time    `json:"expires_at"`
}
