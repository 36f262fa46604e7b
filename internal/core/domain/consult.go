package domain

import "time"

type ConsultStatus string

const (
	ConsultPending  ConsultStatus = "pending"
	ConsultReviewed ConsultStatus = "reviewed"
	ConsultClosed   ConsultStatus = "closed"
)

// Review-flag notes attached to a consult record at creation time.
const (
	NoteInvalidModelOutput = "invalid_json_from_llm"
	NoteFallback           = "fallback"
)

// TriageQuery is one owner-submitted symptom description.
type TriageQuery struct {
	UserID   string
	Symptoms string
	Species  string
	Age      string
	Context  string
}

// ConsultRecord is the durable audit entry for one triage request. It is
// created exactly once per accepted submission and its query/response fields
// are immutable afterwards; only a review may change status and attach
// reviewer fields.
type ConsultRecord struct {
	ID              string        `json:"id"`
	UserID          string        `json:"user_id"`
	Symptoms        string        `json:"symptoms"`
	Species         string        `json:"species,omitempty"`
	Age             string        `json:"age,omitempty"`
	Context         string        `json:"context,omitempty"`
	Sources         []string      `json:"sources"`
	RawResponse     string        `json:"raw_response"`
	ParsedResponse  *TriageResult `json:"parsed_response,omitempty"`
	Status          ConsultStatus `json:"status"`
	Note            string        `json:"note,omitempty"`
	ReviewerID      string        `json:"reviewer_id,omitempty"`
	ReviewerComment string        `json:"reviewer_comment,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// Submission outcomes. Rejected submissions never produce a record.
type SubmitOutcome string

const (
	OutcomeOK               SubmitOutcome = "ok"
	OutcomeDegradedInvalid  SubmitOutcome = "degraded_invalid"
	OutcomeDegradedFallback SubmitOutcome = "degraded_fallback"
)

// Retrieval modes annotated on a submit result.
const (
	RetrievalVector   = "vector"
	RetrievalLexical  = "lexical"
	RetrievalFallback = "fallback"
)

// SubmitResult is what the pipeline hands back to the routing collaborator.
type SubmitResult struct {
	Outcome   SubmitOutcome   `json:"status"`
	ConsultID string          `json:"consult_id"`
	Model     string          `json:"model,omitempty"`
	Retrieval string          `json:"retrieval,omitempty"`
	Result    *TriageResult   `json:"result,omitempty"`
	Fallback  *FallbackResult `json:"fallback,omitempty"`
	Sources   []string        `json:"sources"`
	Message   string          `json:"message,omitempty"`

	// Note mirrors the review-flag note persisted on the consult record for
	// degraded outcomes. Internal observability detail, never serialized.
	Note string `json:"-"`
}
