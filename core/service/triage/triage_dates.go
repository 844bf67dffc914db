package triage

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/en"
)

const (
	dateLayout  = "2006-01-02"
	clockLayout = "15:04"
)

var (
	// the two formats the prompt asks the model to use
	promptDueLayouts = []string{"2006-01-02 15:04", "2006-01-02T15:04", dateLayout}

	explicitClockRe = regexp.MustCompile(`(?i)\b\d{1,2}(:\d{2})?\s*(am|pm|a\.m\.|p\.m\.)|\b\d{1,2}:\d{2}\b|\bnoon\b|\bmidnight\b`)
	weekdayRe       = regexp.MustCompile(`(?i)\b(mon|tue|tues|wed|thu|thur|thurs|fri|sat|sun)(day|nesday|sday|rsday|urday)?\b`)
	pastModifierRe  = regexp.MustCompile(`(?i)\b(last|past|previous|ago)\b`)
	monthNameRe     = regexp.MustCompile(`(?i)\b(jan|feb|mar|apr|may|jun|jul|aug|sep|sept|oct|nov|dec)[a-z]*\.?\b`)
	yearRe          = regexp.MustCompile(`\b(19|20)\d{2}\b`)

	// month-first, optional year
	slashDateRe = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})(?:/(\d{4}|\d{2}))?\b`)
	// a 12-hour clock not preceded by a colon, e.g. "4pm" or "4:30 p.m."
	meridiemRe = regexp.MustCompile(`(?i)(?:^|[^:\d])(\d{1,2})(?::(\d{2}))?\s*([ap])\.?m\b\.?`)
)

// DateOption configures a DateResolver.
type DateOption func(*DateResolver)

// WithClock pins "now".
func WithClock(now func() time.Time) DateOption {
	return func(r *DateResolver) {
		if now != nil {
			r.now = now
		}
	}
}

// WithLocation sets the zone in which dates and clock times are reported.
func WithLocation(loc *time.Location) DateOption {
	return func(r *DateResolver) {
		if loc != nil {
			r.loc = loc
		}
	}
}

// DateResolver derives a due date and optional clock time for a message.
type DateResolver struct {
	rules  *RuleEngine
	parser *when.Parser
	now    func() time.Time
	loc    *time.Location
}

// NewDateResolver creates a resolver using rules for block and actionable
// checks. Defaults are time.Now and UTC.
func NewDateResolver(rules *RuleEngine, opts ...DateOption) *DateResolver {
	if rules == nil {
		rules = NewRuleEngine(nil)
	}

	parser := when.New(nil)
	parser.Add(en.All...)

	r := &DateResolver{
		rules:  rules,
		parser: parser,
		now:    time.Now,
		loc:    time.UTC,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns a due date (YYYY-MM-DD) and clock (HH:MM). Clock is only
// set together with date. Candidates are tried in order: the AI value, the
// subject, then the content when it has actionable context. Dates before
// today are rejected.
func (r *DateResolver) Resolve(subject, content, sender string, aiDue *string) (date, clock *string) {
	defer func() {
		if rec := recover(); rec != nil {
			date, clock = nil, nil
		}
	}()

	if r.rules.DateBlocked(subject, content, sender) {
		return nil, nil
	}

	now := r.now().In(r.loc)

	if aiDue != nil {
		if d, c, ok := r.fromAbsolute(*aiDue, now); ok {
			return d, c
		}
	}

	if d, c, ok := r.fromNatural(subject, now); ok {
		return d, c
	}

	if r.rules.HasActionableContext(subject, content, sender) {
		if d, c, ok := r.fromNatural(content, now); ok {
			return d, c
		}
	}

	return nil, nil
}

// fromAbsolute parses a model-supplied timestamp.
func (r *DateResolver) fromAbsolute(raw string, now time.Time) (*string, *string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, "null") {
		return nil, nil, false
	}

	t, certain, ok := r.parseAbsolute(raw)
	if !ok || beforeDay(t, now) {
		return nil, nil, false
	}

	date := t.Format(dateLayout)
	if !certain || (t.Hour() == 0 && t.Minute() == 0) {
		return &date, nil, true
	}
	clock := t.Format(clockLayout)
	return &date, &clock, true
}

// parseAbsolute reports whether the clock part of the result can be trusted.
// A 12-hour token in raw overrides whatever clock the parser produced.
func (r *DateResolver) parseAbsolute(raw string) (time.Time, bool, bool) {
	for _, layout := range promptDueLayouts {
		if t, err := time.ParseInLocation(layout, raw, r.loc); err == nil {
			return t, true, true
		}
	}

	m := meridiemRe.FindStringSubmatchIndex(raw)
	t, err := dateparse.ParseIn(raw, r.loc)
	if err != nil && m != nil {
		t, err = dateparse.ParseIn(strings.TrimSpace(raw[:m[2]]+raw[m[1]:]), r.loc)
	}
	if err != nil {
		return time.Time{}, false, false
	}
	t = t.In(r.loc)
	if m == nil {
		return t, true, true
	}

	hour, minute, ok := meridiemClock(raw, m)
	if !ok {
		return t, false, true
	}
	y, mo, d := t.Date()
	return time.Date(y, mo, d, hour, minute, 0, 0, r.loc), true, true
}

// meridiemClock converts a meridiemRe match to a 24-hour clock.
func meridiemClock(raw string, m []int) (hour, minute int, ok bool) {
	hour, _ = strconv.Atoi(raw[m[2]:m[3]])
	if m[4] >= 0 {
		minute, _ = strconv.Atoi(raw[m[4]:m[5]])
	}
	if hour < 1 || hour > 12 || minute > 59 {
		return 0, 0, false
	}
	hour %= 12
	if strings.EqualFold(raw[m[6]:m[7]], "p") {
		hour += 12
	}
	return hour, minute, true
}

// fromNatural finds the first date expression in text. Slash dates are
// read month first; everything else goes through the natural-language parser.
func (r *DateResolver) fromNatural(text string, now time.Time) (*string, *string, bool) {
	if strings.TrimSpace(text) == "" {
		return nil, nil, false
	}

	slash, slashAt, slashOK := r.slashDate(text, now)

	res, err := r.parser.Parse(text, now)
	if err != nil {
		res = nil
	}

	if slashOK && (res == nil || slashAt <= res.Index) {
		if beforeDay(slash, now) {
			return nil, nil, false
		}
		date := slash.Format(dateLayout)
		return &date, nil, true
	}
	if res == nil {
		return nil, nil, false
	}

	t := forwardDate(res.Text, res.Time.In(r.loc), now)
	if beforeDay(t, now) {
		return nil, nil, false
	}

	date := t.Format(dateLayout)
	if !explicitClockRe.MatchString(res.Text) {
		return &date, nil, true
	}
	clock := t.Format(clockLayout)
	return &date, &clock, true
}

// slashDate returns the first valid M/D or M/D/Y in text and its offset.
// Without a year the next occurrence on or after today is used.
func (r *DateResolver) slashDate(text string, now time.Time) (time.Time, int, bool) {
	for _, m := range slashDateRe.FindAllStringSubmatchIndex(text, -1) {
		month, _ := strconv.Atoi(text[m[2]:m[3]])
		day, _ := strconv.Atoi(text[m[4]:m[5]])
		if month < 1 || month > 12 || day < 1 {
			continue
		}

		year := now.Year()
		hasYear := m[6] >= 0
		if hasYear {
			year, _ = strconv.Atoi(text[m[6]:m[7]])
			if year < 100 {
				year += 2000
			}
		}

		t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, r.loc)
		if t.Day() != day {
			continue // 2/30
		}
		if !hasYear && beforeDay(t, now) {
			t = time.Date(year+1, time.Month(month), day, 0, 0, 0, 0, r.loc)
			if t.Day() != day {
				continue
			}
		}
		return t, m[0], true
	}
	return time.Time{}, -1, false
}

// forwardDate moves bare weekday and month/day matches that resolved into
// the past to their next occurrence.
func forwardDate(matched string, t, now time.Time) time.Time {
	if !beforeDay(t, now) || pastModifierRe.MatchString(matched) {
		return t
	}
	switch {
	case weekdayRe.MatchString(matched):
		for beforeDay(t, now) {
			t = t.AddDate(0, 0, 7)
		}
	case monthNameRe.MatchString(matched) && !yearRe.MatchString(matched):
		t = t.AddDate(1, 0, 0)
	}
	return t
}

// beforeDay reports whether t falls on a calendar day before now's day.
func beforeDay(t, now time.Time) bool {
	ty, tm, td := t.Date()
	ny, nm, nd := now.In(t.Location()).Date()
	if ty != ny {
		return ty < ny
	}
	if tm != nm {
		return tm < nm
	}
	return td < nd
}
