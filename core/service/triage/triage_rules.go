package triage

import (
	"strings"

	"triage_server/core/domain"
)

const (
	minAIActionLen    = 10  // shorter AI actions are replaced by extraction
	minKeptActionLen  = 5   // after filler stripping, shorter actions are dropped
	maxExtractedRunes = 100 // cap for extracted actions
)

// RuleEngine applies a Policy. All methods are pure and safe for concurrent use.
type RuleEngine struct {
	policy *Policy
}

// NewRuleEngine creates an engine. A nil policy uses the built-in one.
func NewRuleEngine(policy *Policy) *RuleEngine {
	if policy == nil {
		policy = DefaultPolicy()
	}
	return &RuleEngine{policy: policy}
}

// Policy returns the compiled policy in use.
func (e *RuleEngine) Policy() *Policy {
	return e.policy
}

func combinedText(subject, content, sender string) string {
	return strings.ToLower(subject + " " + content + " " + sender)
}

// ShouldSkipAI reports whether the message is machine-generated enough that
// the completion endpoint is not worth calling.
func (e *RuleEngine) ShouldSkipAI(subject, content, sender string) bool {
	return matchAny(e.policy.skipAI, combinedText(subject, content, sender))
}

// ValidatePriority applies the override table, then trusts a well-formed AI
// value, then defaults to medium.
func (e *RuleEngine) ValidatePriority(subject, content, sender, aiPriority string) domain.Priority {
	text := combinedText(subject, content, sender)
	if p, ok := e.firstVerdict(e.policy.override, text); ok {
		return p
	}
	if p, ok := domain.ParsePriority(aiPriority); ok {
		return p
	}
	return domain.PriorityMedium
}

// DeterminePriority is the rule-only priority used when no AI answer exists.
func (e *RuleEngine) DeterminePriority(subject, content, sender string) domain.Priority {
	if p, ok := e.firstVerdict(e.policy.fallback, combinedText(subject, content, sender)); ok {
		return p
	}
	return domain.PriorityMedium
}

func (e *RuleEngine) firstVerdict(rules []priorityRule, text string) (domain.Priority, bool) {
	noReply := e.policy.noReply != nil && e.policy.noReply.MatchString(text)
	for _, r := range rules {
		if r.suppressedByNoReply && noReply {
			continue
		}
		if r.re.MatchString(text) {
			return r.verdict, true
		}
	}
	return "", false
}

// ValidateAction cleans an AI-suggested action, or extracts one from content
// when the suggestion is missing or too short.
func (e *RuleEngine) ValidateAction(content string, aiAction *string) *string {
	if aiAction == nil || *aiAction == "null" || runeLen(*aiAction) < minAIActionLen {
		return e.ExtractAction(content)
	}

	action := e.stripFiller(*aiAction)
	if runeLen(action) <= minKeptActionLen {
		return nil
	}
	return &action
}

// stripFiller removes leading courtesy phrases until none remain.
func (e *RuleEngine) stripFiller(action string) string {
	action = strings.TrimSpace(action)
	if e.policy.actionFiller == nil {
		return action
	}
	for e.policy.actionFiller.MatchString(action) {
		action = strings.TrimSpace(e.policy.actionFiller.ReplaceAllString(action, ""))
	}
	return action
}

// ExtractAction returns the first capture of the first matching extraction
// pattern, trimmed and capped at 100 runes.
func (e *RuleEngine) ExtractAction(content string) *string {
	for _, re := range e.policy.actionExtract {
		m := re.FindStringSubmatch(content)
		if len(m) < 2 {
			continue
		}
		action := strings.TrimSpace(m[1])
		if action == "" {
			continue
		}
		action = e.stripFiller(truncateRunes(action, maxExtractedRunes))
		if action == "" {
			continue
		}
		return &action
	}
	return nil
}

// IsMeetingEmail reports whether subject or body mention a meeting keyword as
// a whole word.
func (e *RuleEngine) IsMeetingEmail(subject, body string) bool {
	if e.policy.meeting == nil {
		return false
	}
	return e.policy.meeting.MatchString(subject + " " + body)
}

// HasActionableContext reports whether the combined text suggests a real
// deadline, which gates date extraction from the body.
func (e *RuleEngine) HasActionableContext(subject, content, sender string) bool {
	return matchAny(e.policy.actionable, combinedText(subject, content, sender))
}

// DateBlocked reports whether due dates must not be derived for this message.
func (e *RuleEngine) DateBlocked(subject, content, sender string) bool {
	return matchAny(e.policy.dateBlock, combinedText(subject, content, sender))
}
