package triage

import (
	"context"
	"strings"
	"time"

	"triage_server/core/agent/llm"
	"triage_server/core/domain"
	"triage_server/core/port/out"
	"triage_server/pkg/metrics"

	"github.com/rs/zerolog"
)

// Classifier runs one message through normalization, the skip check, the
// completion endpoint and rule validation. It never fails: every error path
// ends in the rule-only fallback.
type Classifier struct {
	llm     out.LLMPort
	rules   *RuleEngine
	dates   *DateResolver
	metrics *metrics.TriageMetrics
	log     zerolog.Logger
}

// NewClassifier wires a classifier. llm may be nil, in which case every
// message takes the fallback path. m may be nil.
func NewClassifier(llm out.LLMPort, rules *RuleEngine, dates *DateResolver, m *metrics.TriageMetrics, log zerolog.Logger) *Classifier {
	if rules == nil {
		rules = NewRuleEngine(nil)
	}
	if dates == nil {
		dates = NewDateResolver(rules)
	}
	if m == nil {
		m = metrics.NewTriageMetrics()
	}
	return &Classifier{
		llm:     llm,
		rules:   rules,
		dates:   dates,
		metrics: m,
		log:     log.With().Str("component", "triage_classifier").Logger(),
	}
}

// Rules exposes the engine for callers that need IsMeetingEmail.
func (c *Classifier) Rules() *RuleEngine {
	return c.rules
}

// Classify returns a result for msg. msg is not modified. A nil msg is
// treated as an empty message.
func (c *Classifier) Classify(ctx context.Context, msg *domain.InboundMessage) (result *domain.ClassificationResult) {
	if msg == nil {
		msg = &domain.InboundMessage{}
	}
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			c.log.Error().Interface("panic", r).Str("message_id", msg.ID).Msg("classification panicked")
			result = c.Fallback(msg)
		}
		c.metrics.RecordResult(string(result.Source), time.Since(start))
	}()

	content := NormalizeContent(msg.Body, domain.PromptContentLimit)

	if c.llm == nil || c.rules.ShouldSkipAI(msg.Subject, content, msg.Sender) {
		res := c.fallbackFor(msg, content)
		res.Source = domain.SourceRules
		return res
	}

	res, err := c.classifyWithAI(ctx, msg, content)
	if err != nil {
		c.metrics.RecordAIError()
		c.log.Warn().Err(err).Str("message_id", msg.ID).Msg("ai classification failed, using fallback")
		return c.fallbackFor(msg, content)
	}
	return res
}

func (c *Classifier) classifyWithAI(ctx context.Context, msg *domain.InboundMessage, content string) (*domain.ClassificationResult, error) {
	text, err := c.llm.CompleteWithSystem(ctx, SystemPrompt, BuildUserPrompt(msg.Subject, msg.Sender, content))
	if err != nil {
		return nil, err
	}

	answer, err := llm.DecodeTriageAnswer(text)
	if err != nil {
		return nil, err
	}

	summary := answer.Summary
	if summary == "" {
		summary = truncateRunes(content, domain.SummaryFallbackSize)
	}

	dueDate, dueTime := c.dates.Resolve(msg.Subject, content, msg.Sender, answer.DueDate)

	return &domain.ClassificationResult{
		Subject:  msg.Subject,
		Summary:  nonEmptySummary(summary, msg.Subject),
		Priority: c.rules.ValidatePriority(msg.Subject, content, msg.Sender, answer.Priority),
		Action:   c.rules.ValidateAction(content, answer.Action),
		DueDate:  dueDate,
		DueTime:  dueTime,
		Source:   domain.SourceAI,
	}, nil
}

// Fallback classifies msg with rules only. It is deterministic for a fixed
// clock.
func (c *Classifier) Fallback(msg *domain.InboundMessage) *domain.ClassificationResult {
	if msg == nil {
		msg = &domain.InboundMessage{}
	}
	return c.fallbackFor(msg, NormalizeContent(msg.Body, domain.PromptContentLimit))
}

func (c *Classifier) fallbackFor(msg *domain.InboundMessage, content string) *domain.ClassificationResult {
	summary := truncateRunes(content, domain.SummaryFallbackSize)
	if runeLen(content) > domain.SummaryFallbackSize {
		summary += "..."
	}

	dueDate, dueTime := c.dates.Resolve(msg.Subject, content, msg.Sender, nil)

	return &domain.ClassificationResult{
		Subject:  msg.Subject,
		Summary:  nonEmptySummary(summary, msg.Subject),
		Priority: c.rules.DeterminePriority(msg.Subject, content, msg.Sender),
		Action:   c.rules.ExtractAction(content),
		DueDate:  dueDate,
		DueTime:  dueTime,
		Source:   domain.SourceFallback,
	}
}

func nonEmptySummary(summary, subject string) string {
	if strings.TrimSpace(summary) != "" {
		return summary
	}
	if strings.TrimSpace(subject) != "" {
		return subject
	}
	return "(empty message)"
}
