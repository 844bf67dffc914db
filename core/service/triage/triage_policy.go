package triage

import (
	"fmt"
	"regexp"
	"strings"

	"triage_server/core/domain"
	"triage_server/pkg/apperr"

	"github.com/spf13/viper"
)

// =============================================================================
// Policy Spec (plain data, loadable from a config file)
// =============================================================================

// PriorityRuleSpec is one row of a priority table. Rows are evaluated in
// order and the first match wins.
type PriorityRuleSpec struct {
	Name                string `mapstructure:"name"`
	Pattern             string `mapstructure:"pattern"`
	Verdict             string `mapstructure:"verdict"`
	SuppressedByNoReply bool   `mapstructure:"suppressed_by_no_reply"`
}

// PolicySpec holds every keyword list the rule engine and date resolver use.
// Patterns are matched case-insensitively against
// lower(subject + " " + content + " " + sender).
type PolicySpec struct {
	Version          string             `mapstructure:"version"`
	SkipAI           []string           `mapstructure:"skip_ai"`
	PriorityOverride []PriorityRuleSpec `mapstructure:"priority_override"`
	PriorityFallback []PriorityRuleSpec `mapstructure:"priority_fallback"`
	DateBlock        []string           `mapstructure:"date_block"`
	Actionable       []string           `mapstructure:"actionable"`
	ActionExtract    []string           `mapstructure:"action_extract"` // first capture group is the action
	ActionFiller     string             `mapstructure:"action_filler"`
	NoReply          string             `mapstructure:"no_reply"`
	MeetingKeywords  []string           `mapstructure:"meeting_keywords"`
}

// DefaultPolicySpec returns the built-in policy.
func DefaultPolicySpec() *PolicySpec {
	return &PolicySpec{
		Version: "builtin-1",
		SkipAI: []string{
			`\b(otp|verification code|2fa|tpin|auth code)\b`,
			`\bvalid for \d+ (min|hour)`,
			`no-?reply@|noreply@`,
			`unsubscribe|promotional`,
			`(newsletter|digest|weekly update)`,
			`(linkedin|facebook|instagram) (notification|connection)`,
			`transaction (statement|receipt|confirmation)`,
		},
		PriorityOverride: []PriorityRuleSpec{
			{Name: "one-time-code", Pattern: `\b(otp|verification code|tpin|2fa)\b`, Verdict: "low"},
			{Name: "short-validity", Pattern: `\bvalid for \d+`, Verdict: "low"},
			{Name: "no-reply-sender", Pattern: `no-?reply@|noreply@`, Verdict: "low"},
			{Name: "marketing", Pattern: `unsubscribe|promotional`, Verdict: "low"},
			{Name: "statement", Pattern: `(transaction|statement) (generated|available)`, Verdict: "low"},
			{Name: "newsletter", Pattern: `(newsletter|digest)`, Verdict: "low"},
			{Name: "urgent", Pattern: `\b(urgent|asap|critical|immediate action)\b`, Verdict: "high", SuppressedByNoReply: true},
			{Name: "due-today", Pattern: `\b(deadline today|due today|interview today)\b`, Verdict: "high", SuppressedByNoReply: true},
			{Name: "final-notice", Pattern: `\bfinal (notice|reminder|warning)\b`, Verdict: "high", SuppressedByNoReply: true},
		},
		PriorityFallback: []PriorityRuleSpec{
			{Name: "one-time-code", Pattern: `\b(otp|verification code|tpin|2fa)\b`, Verdict: "low"},
			{Name: "no-reply-sender", Pattern: `no-?reply@`, Verdict: "low"},
			{Name: "marketing", Pattern: `unsubscribe|promotional|newsletter`, Verdict: "low"},
			{Name: "statement", Pattern: `transaction (statement|receipt)`, Verdict: "low"},
			{Name: "urgent", Pattern: `\b(urgent|asap|critical)\b`, Verdict: "high", SuppressedByNoReply: true},
			{Name: "near-deadline", Pattern: `\bdeadline (today|tomorrow)\b`, Verdict: "high", SuppressedByNoReply: true},
			{Name: "final-notice", Pattern: `\bfinal (notice|warning)\b`, Verdict: "high", SuppressedByNoReply: true},
		},
		DateBlock: []string{
			`\b(otp|verification code|tpin)\b`,
			`\bvalid for \d+`,
			`\bexpires in \d+`,
			`no-?reply@|noreply@`,
			`(transaction|statement) (generated|sent|available)`,
			`promotional|marketing|newsletter`,
			`(sale|offer|deal) (ends|expires)`,
		},
		Actionable: []string{
			`\b(meeting|appointment|deadline|due date|submission|interview)\b`,
			`\b(scheduled for|set for|by|before|until)\b`,
			`\b(rsvp|confirm|register|attend)\b`,
		},
		ActionExtract: []string{
			`action required:?\s*([^.!?\n]+)`,
			`please\s+([^.!?\n]{10,100})`,
			`you (?:need|must|should)\s+([^.!?\n]{10,100})`,
			`(?:confirm|review|approve|respond|reply)\s+([^.!?\n]{10,100})`,
		},
		ActionFiller: `^(please|kindly|you need to|you should)\s+`,
		NoReply:      `no-?reply`,
		MeetingKeywords: []string{
			"meeting", "call", "appointment", "discussion",
			"conference", "join via", "zoom", "google meet",
		},
	}
}

// LoadPolicy reads a YAML, JSON or TOML policy file. Keys missing from the
// file keep their built-in values. An empty path returns the built-in policy.
func LoadPolicy(path string) (*Policy, error) {
	spec := DefaultPolicySpec()
	if path == "" {
		return CompilePolicy(spec)
	}

	v := viper.New()
	v.SetDefault("version", spec.Version)
	v.SetDefault("skip_ai", spec.SkipAI)
	v.SetDefault("priority_override", spec.PriorityOverride)
	v.SetDefault("priority_fallback", spec.PriorityFallback)
	v.SetDefault("date_block", spec.DateBlock)
	v.SetDefault("actionable", spec.Actionable)
	v.SetDefault("action_extract", spec.ActionExtract)
	v.SetDefault("action_filler", spec.ActionFiller)
	v.SetDefault("no_reply", spec.NoReply)
	v.SetDefault("meeting_keywords", spec.MeetingKeywords)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, apperr.ConfigError(fmt.Sprintf("read triage policy %s", path)).WithDetail("cause", err.Error())
	}

	var loaded PolicySpec
	if err := v.Unmarshal(&loaded); err != nil {
		return nil, apperr.ConfigError(fmt.Sprintf("decode triage policy %s", path)).WithDetail("cause", err.Error())
	}
	return CompilePolicy(&loaded)
}

// =============================================================================
// Compiled Policy
// =============================================================================

type priorityRule struct {
	name                string
	re                  *regexp.Regexp
	verdict             domain.Priority
	suppressedByNoReply bool
}

// Policy is the compiled, immutable form of a PolicySpec.
type Policy struct {
	Version string

	skipAI        []*regexp.Regexp
	override      []priorityRule
	fallback      []priorityRule
	dateBlock     []*regexp.Regexp
	actionable    []*regexp.Regexp
	actionExtract []*regexp.Regexp
	actionFiller  *regexp.Regexp
	noReply       *regexp.Regexp
	meeting       *regexp.Regexp
}

// CompilePolicy validates and compiles spec. Any bad pattern or verdict is a
// configuration error.
func CompilePolicy(spec *PolicySpec) (*Policy, error) {
	if spec == nil {
		spec = DefaultPolicySpec()
	}

	p := &Policy{Version: spec.Version}
	var err error

	if p.skipAI, err = compileAll("skip_ai", spec.SkipAI); err != nil {
		return nil, err
	}
	if p.override, err = compileRules("priority_override", spec.PriorityOverride); err != nil {
		return nil, err
	}
	if p.fallback, err = compileRules("priority_fallback", spec.PriorityFallback); err != nil {
		return nil, err
	}
	if p.dateBlock, err = compileAll("date_block", spec.DateBlock); err != nil {
		return nil, err
	}
	if p.actionable, err = compileAll("actionable", spec.Actionable); err != nil {
		return nil, err
	}
	if p.actionExtract, err = compileAll("action_extract", spec.ActionExtract); err != nil {
		return nil, err
	}
	for i, re := range p.actionExtract {
		if re.NumSubexp() < 1 {
			return nil, apperr.ConfigError("action_extract pattern needs a capture group").
				WithDetail("index", i)
		}
	}
	if p.actionFiller, err = compileOne("action_filler", spec.ActionFiller); err != nil {
		return nil, err
	}
	if p.noReply, err = compileOne("no_reply", spec.NoReply); err != nil {
		return nil, err
	}

	words := make([]string, 0, len(spec.MeetingKeywords))
	for _, kw := range spec.MeetingKeywords {
		if kw = strings.TrimSpace(kw); kw != "" {
			words = append(words, regexp.QuoteMeta(strings.ToLower(kw)))
		}
	}
	if len(words) > 0 {
		p.meeting = regexp.MustCompile(`(?i)\b(?:` + strings.Join(words, "|") + `)\b`)
	}

	return p, nil
}

// DefaultPolicy compiles the built-in policy. It panics only if the built-in
// lists are broken, which the tests guard against.
func DefaultPolicy() *Policy {
	p, err := CompilePolicy(DefaultPolicySpec())
	if err != nil {
		panic(err)
	}
	return p
}

func compileOne(field, pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, nil
	}
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return nil, apperr.ConfigError(fmt.Sprintf("invalid %s pattern", field)).
			WithDetail("pattern", pattern).
			WithDetail("cause", err.Error())
	}
	return re, nil
}

func compileAll(field string, patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, pattern := range patterns {
		re, err := compileOne(field, pattern)
		if err != nil {
			return nil, err
		}
		if re != nil {
			out = append(out, re)
		}
	}
	return out, nil
}

func compileRules(field string, specs []PriorityRuleSpec) ([]priorityRule, error) {
	out := make([]priorityRule, 0, len(specs))
	for _, s := range specs {
		verdict, ok := domain.ParsePriority(s.Verdict)
		if !ok {
			return nil, apperr.ConfigError(fmt.Sprintf("invalid %s verdict", field)).
				WithDetail("rule", s.Name).
				WithDetail("verdict", s.Verdict)
		}
		re, err := compileOne(field, s.Pattern)
		if err != nil {
			return nil, err
		}
		if re == nil {
			continue
		}
		out = append(out, priorityRule{
			name:                s.Name,
			re:                  re,
			verdict:             verdict,
			suppressedByNoReply: s.SuppressedByNoReply,
		})
	}
	return out, nil
}

func matchAny(res []*regexp.Regexp, text string) bool {
	for _, re := range res {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}
