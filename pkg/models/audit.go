package models

import "time"

// Action is the pipeline that produced a decision.
type Action string

const (
	ActionPost    Action = "post"
	ActionComment Action = "comment"
	ActionReply   Action = "reply"
	ActionScore   Action = "score"
)

// Outcome is how a pipeline invocation ended.
type Outcome string

const (
	OutcomePosted      Outcome = "posted"
	OutcomeSelected    Outcome = "selected"
	OutcomeDeclined    Outcome = "declined"
	OutcomeRejected    Outcome = "rejected"
	OutcomeNoCandidate Outcome = "no_candidate"
	OutcomeDiscarded   Outcome = "discarded"
	OutcomeFailed      Outcome = "failed"
	OutcomeSkipped     Outcome = "skipped"
)

// Decision records one pipeline decision for later inspection.
type Decision struct {
	ID        string    `json:"id"`
	Action    Action    `json:"action"`
	Target    string    `json:"target,omitempty"`
	Model     string    `json:"model,omitempty"`
	Prompt    string    `json:"prompt,omitempty"`
	Output    string    `json:"output,omitempty"`
	Outcome   Outcome   `json:"outcome"`
	Reason    string    `json:"reason,omitempty"`
	Cost      int64     `json:"cost"`
	CreatedAt time.Time `json:"created_at"`
}

// AuditConfig controls the decision log.
type AuditConfig struct {
	Enabled       bool   `yaml:"enabled"`
	DBPath        string `yaml:"db_path"`
	RetentionDays int    `yaml:"retention_days"`
	StorePrompts  bool   `yaml:"store_prompts"`
	MaxBodySize   int    `yaml:"max_body_size"` // bytes
}

// AuditQueryOpts specifies filters for querying decisions.
type AuditQueryOpts struct {
	ID      string
	Action  Action
	Outcome Outcome
	Since   time.Time
	Limit   int
}

// AuditStat holds decision counts for an action/outcome/day combination.
type AuditStat struct {
	Action  Action
	Outcome Outcome
	Day     string
	Count   int
}
