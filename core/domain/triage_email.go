package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Priority is the triage tier of a message.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// ParsePriority accepts any casing of the three tiers.
func ParsePriority(s string) (Priority, bool) {
	switch Priority(strings.ToLower(strings.TrimSpace(s))) {
	case PriorityHigh:
		return PriorityHigh, true
	case PriorityMedium:
		return PriorityMedium, true
	case PriorityLow:
		return PriorityLow, true
	default:
		return "", false
	}
}

func (p Priority) String() string {
	return string(p)
}

// ResultSource records which path of the pipeline produced a result.
type ResultSource string

const (
	SourceAI       ResultSource = "ai"       // model answer, validated by rules
	SourceRules    ResultSource = "rules"    // skip-AI path
	SourceFallback ResultSource = "fallback" // AI path failed
)

// Storage and prompt windows for message bodies (in runes).
const (
	PromptContentLimit  = 1500
	StoredBodyLimit     = 2000
	SummaryFallbackSize = 200
)

// InboundMessage is the pipeline input. It is never mutated by the pipeline.
type InboundMessage struct {
	ID      string `json:"id"`
	Subject string `json:"subject"`
	Sender  string `json:"from"`
	Body    string `json:"body"`
}

// CacheKey identifies a message for result caching. The content digest
// keeps two messages that share an id and subject from colliding.
func (m *InboundMessage) CacheKey() string {
	h := sha256.New()
	h.Write([]byte(m.Subject))
	h.Write([]byte{0})
	h.Write([]byte(m.Sender))
	h.Write([]byte{0})
	h.Write([]byte(m.Body))
	return m.ID + "\x00" + hex.EncodeToString(h.Sum(nil))
}

// ClassificationResult is the pipeline output.
type ClassificationResult struct {
	Subject  string       `json:"subject"`
	Summary  string       `json:"summary"`
	Priority Priority     `json:"priority"`
	Action   *string      `json:"action"`
	DueDate  *string      `json:"dueDate"` // YYYY-MM-DD
	DueTime  *string      `json:"dueTime"` // HH:MM, only with DueDate
	Source   ResultSource `json:"source"`
}

// HasSchedule reports whether both a due date and a clock time were resolved.
func (r *ClassificationResult) HasSchedule() bool {
	return r.DueDate != nil && r.DueTime != nil
}

// EmailRecord is the persisted form of a fetched message and its triage outcome.
type EmailRecord struct {
	ID         int64
	ProviderID string
	UserID     uuid.UUID
	Subject    string
	Sender     string
	Body       string
	ReceivedAt time.Time
	Processed  bool
	Summary    *string
	Priority   *Priority
	Action     *string
	DueDate    *string
	DueTime    *string
	CreatedAt  time.Time
}

// Message converts the record into pipeline input.
func (r *EmailRecord) Message() *InboundMessage {
	return &InboundMessage{
		ID:      r.ProviderID,
		Subject: r.Subject,
		Sender:  r.Sender,
		Body:    r.Body,
	}
}

// Apply copies a classification outcome onto the record and marks it processed.
func (r *EmailRecord) Apply(res *ClassificationResult) {
	summary := res.Summary
	priority := res.Priority
	r.Summary = &summary
	r.Priority = &priority
	r.Action = res.Action
	r.DueDate = res.DueDate
	r.DueTime = res.DueTime
	r.Processed = true
}

// Account is a mailbox owner with offline provider access.
type Account struct {
	UserID       uuid.UUID
	Email        string
	RefreshToken string
}

// InboxStats summarises processed records for the dashboard.
type InboxStats struct {
	Total        int `json:"total"`
	High         int `json:"high"`
	Medium       int `json:"medium"`
	Low          int `json:"low"`
	WithActions  int `json:"withActions"`
	WithDueDates int `json:"withDueDates"`
}

// ComputeInboxStats counts tiers, actions and due dates.
func ComputeInboxStats(records []*EmailRecord) InboxStats {
	stats := InboxStats{Total: len(records)}
	for _, r := range records {
		if r.Priority != nil {
			switch *r.Priority {
			case PriorityHigh:
				stats.High++
			case PriorityMedium:
				stats.Medium++
			case PriorityLow:
				stats.Low++
			}
		}
		if r.Action != nil && *r.Action != "" {
			stats.WithActions++
		}
		if r.DueDate != nil {
			stats.WithDueDates++
		}
	}
	return stats
}
