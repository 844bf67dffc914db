package triage

import (
	"testing"
	"time"
)

// Monday 2025-03-10 09:00 UTC
var pinnedNow = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func newPinnedResolver() *DateResolver {
	return NewDateResolver(NewRuleEngine(nil), WithClock(func() time.Time { return pinnedNow }))
}

func deref(s *string) string {
	if s == nil {
		return "<nil>"
	}
	return *s
}

func TestResolve(t *testing.T) {
	r := newPinnedResolver()

	tests := []struct {
		name                  string
		subject, body, sender string
		ai                    *string
		wantDate, wantClock   string
	}{
		{
			name:     "subject with relative day and clock",
			subject:  "Team sync tomorrow 3pm",
			body:     "Let's confirm the agenda for tomorrow's call.",
			sender:   "alice@company.com",
			wantDate: "2025-03-11", wantClock: "15:00",
		},
		{
			name:     "blocked by one-time code",
			subject:  "Your OTP is 482913",
			body:     "Valid for 10 minutes. Expires tomorrow.",
			sender:   "noreply@bank.com",
			ai:       strPtr("2025-03-11"),
			wantDate: "<nil>", wantClock: "<nil>",
		},
		{
			name:     "ai date with time",
			subject:  "Design review",
			sender:   "bob@company.com",
			ai:       strPtr("2025-03-14 10:30"),
			wantDate: "2025-03-14", wantClock: "10:30",
		},
		{
			name:     "ai date only",
			subject:  "Design review",
			sender:   "bob@company.com",
			ai:       strPtr("2025-03-14"),
			wantDate: "2025-03-14", wantClock: "<nil>",
		},
		{
			name:     "ai date in the past is rejected",
			subject:  "Design review",
			sender:   "bob@company.com",
			ai:       strPtr("2025-03-01"),
			wantDate: "<nil>", wantClock: "<nil>",
		},
		{
			name:     "ai literal null is ignored",
			subject:  "Design review",
			sender:   "bob@company.com",
			ai:       strPtr("null"),
			wantDate: "<nil>", wantClock: "<nil>",
		},
		{
			name:     "ai today is accepted",
			subject:  "Design review",
			sender:   "bob@company.com",
			ai:       strPtr("2025-03-10 17:00"),
			wantDate: "2025-03-10", wantClock: "17:00",
		},
		{
			name:     "body parsed when actionable",
			subject:  "Quarterly report",
			body:     "The deadline is tomorrow, send it over.",
			sender:   "carol@company.com",
			wantDate: "2025-03-11", wantClock: "<nil>",
		},
		{
			name:     "body ignored without actionable context",
			subject:  "Hello",
			body:     "See you tomorrow!",
			sender:   "friend@example.com",
			wantDate: "<nil>", wantClock: "<nil>",
		},
		{
			name:     "subject wins over body",
			subject:  "Interview tomorrow at 11:30",
			body:     "The submission deadline is next friday.",
			sender:   "hr@company.com",
			wantDate: "2025-03-11", wantClock: "11:30",
		},
		{
			name:     "ai 12-hour clock without minutes",
			subject:  "Design review",
			sender:   "bob@company.com",
			ai:       strPtr("March 12, 2025 4pm"),
			wantDate: "2025-03-12", wantClock: "16:00",
		},
		{
			name:     "ai 12-hour clock with minutes",
			subject:  "Design review",
			sender:   "bob@company.com",
			ai:       strPtr("March 12, 2025 9:45 AM"),
			wantDate: "2025-03-12", wantClock: "09:45",
		},
		{
			name:     "slash date is month first",
			subject:  "Pay by 3/15/2025",
			sender:   "billing@company.com",
			wantDate: "2025-03-15", wantClock: "<nil>",
		},
		{
			name:     "slash date in the past is rejected",
			subject:  "Pay by 3/5/2025",
			sender:   "billing@company.com",
			wantDate: "<nil>", wantClock: "<nil>",
		},
		{
			name:     "slash date without year rolls forward",
			subject:  "Budget due 3/5",
			sender:   "finance@company.com",
			wantDate: "2026-03-05", wantClock: "<nil>",
		},
		{
			name:     "slash date without year is not read as today",
			subject:  "Ticket 4/7 closed",
			sender:   "support@company.com",
			wantDate: "2025-04-07", wantClock: "<nil>",
		},
		{
			name:     "slash fraction is not a date",
			subject:  "Support rota 24/7",
			sender:   "ops@company.com",
			wantDate: "<nil>", wantClock: "<nil>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			date, clock := r.Resolve(tt.subject, tt.body, tt.sender, tt.ai)
			if deref(date) != tt.wantDate {
				t.Errorf("date = %s, want %s", deref(date), tt.wantDate)
			}
			if deref(clock) != tt.wantClock {
				t.Errorf("clock = %s, want %s", deref(clock), tt.wantClock)
			}
			if date == nil && clock != nil {
				t.Error("clock must not be set without date")
			}
		})
	}
}

func TestResolveInLocation(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	// 2025-03-10 20:00 UTC is already 2025-03-11 in IST
	now := time.Date(2025, 3, 10, 20, 0, 0, 0, time.UTC)
	r := NewDateResolver(NewRuleEngine(nil),
		WithClock(func() time.Time { return now }),
		WithLocation(loc),
	)

	date, _ := r.Resolve("Design review", "", "bob@company.com", strPtr("2025-03-10"))
	if date != nil {
		t.Errorf("2025-03-10 is yesterday in IST, got %s", *date)
	}

	date, clock := r.Resolve("Design review", "", "bob@company.com", strPtr("2025-03-11 09:15"))
	if deref(date) != "2025-03-11" || deref(clock) != "09:15" {
		t.Errorf("unexpected %s %s", deref(date), deref(clock))
	}
}

func TestForwardDate(t *testing.T) {
	now := pinnedNow

	lastWeek := time.Date(2025, 3, 7, 0, 0, 0, 0, time.UTC) // friday before now
	if got := forwardDate("friday", lastWeek, now); got.Format(dateLayout) != "2025-03-14" {
		t.Errorf("weekday should move forward a week, got %s", got.Format(dateLayout))
	}
	if got := forwardDate("last friday", lastWeek, now); !got.Equal(lastWeek) {
		t.Errorf("explicit past should not move, got %s", got.Format(dateLayout))
	}

	feb := time.Date(2025, 2, 3, 0, 0, 0, 0, time.UTC)
	if got := forwardDate("Feb 3", feb, now); got.Format(dateLayout) != "2026-02-03" {
		t.Errorf("month/day should move forward a year, got %s", got.Format(dateLayout))
	}
	if got := forwardDate("Feb 3 2025", feb, now); !got.Equal(feb) {
		t.Errorf("explicit year should not move, got %s", got.Format(dateLayout))
	}
}

func TestBeforeDay(t *testing.T) {
	if beforeDay(pinnedNow.Add(-time.Hour), pinnedNow) {
		t.Error("earlier the same day is not before today")
	}
	if !beforeDay(pinnedNow.AddDate(0, 0, -1), pinnedNow) {
		t.Error("yesterday is before today")
	}
}
