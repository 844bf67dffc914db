package triage

import (
	"testing"

	"triage_server/core/domain"
)

func strPtr(s string) *string { return &s }

func TestShouldSkipAI(t *testing.T) {
	e := NewRuleEngine(nil)

	tests := []struct {
		name                  string
		subject, body, sender string
		want                  bool
	}{
		{"otp", "Your OTP is 482913", "Valid for 10 minutes.", "bank@bank.com", true},
		{"noreply sender", "Welcome", "Thanks for joining", "noreply@service.com", true},
		{"newsletter", "Weekly update from the team", "news", "team@company.com", true},
		{"social", "LinkedIn notification", "someone viewed", "x@linkedin.com", true},
		{"human email", "Project plan", "Can we meet Thursday?", "alice@company.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := e.ShouldSkipAI(tt.subject, tt.body, tt.sender); got != tt.want {
				t.Errorf("ShouldSkipAI() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValidatePriority(t *testing.T) {
	e := NewRuleEngine(nil)

	tests := []struct {
		name                  string
		subject, body, sender string
		ai                    string
		want                  domain.Priority
	}{
		{"force low beats ai high", "Your OTP", "code 1234", "bank@x.com", "high", domain.PriorityLow},
		{"force high beats ai low", "URGENT: server down", "fix now", "ops@x.com", "low", domain.PriorityHigh},
		{"low precedes high", "Urgent newsletter", "read", "a@x.com", "high", domain.PriorityLow},
		{"no-reply never high", "Final notice", "pay now", "no-reply@billing.com", "high", domain.PriorityLow},
		{"no-reply suppresses force high", "Critical update", "see portal", "alerts no-reply team", "medium", domain.PriorityMedium},
		{"trusted ai value", "Lunch?", "Are you free", "bob@x.com", "LOW", domain.PriorityLow},
		{"invalid ai value defaults medium", "Lunch?", "Are you free", "bob@x.com", "urgent-ish", domain.PriorityMedium},
		{"empty ai value defaults medium", "Lunch?", "Are you free", "bob@x.com", "", domain.PriorityMedium},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.ValidatePriority(tt.subject, tt.body, tt.sender, tt.ai)
			if got != tt.want {
				t.Errorf("ValidatePriority() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestDeterminePriority(t *testing.T) {
	e := NewRuleEngine(nil)

	tests := []struct {
		subject, body, sender string
		want                  domain.Priority
	}{
		{"Deadline tomorrow", "submit the form", "hr@x.com", domain.PriorityHigh},
		{"Transaction receipt", "paid", "bank@x.com", domain.PriorityLow},
		{"Hello", "catching up", "friend@x.com", domain.PriorityMedium},
		{"ASAP please", "reply", "no-reply@x.com", domain.PriorityLow},
	}

	for _, tt := range tests {
		if got := e.DeterminePriority(tt.subject, tt.body, tt.sender); got != tt.want {
			t.Errorf("DeterminePriority(%q) = %s, want %s", tt.subject, got, tt.want)
		}
	}
}

func TestValidateAction(t *testing.T) {
	e := NewRuleEngine(nil)
	content := "Hi team. Please send the quarterly report to finance. Thanks."

	tests := []struct {
		name string
		ai   *string
		want *string
	}{
		{"nil falls back to extraction", nil, strPtr("send the quarterly report to finance")},
		{"literal null falls back", strPtr("null"), strPtr("send the quarterly report to finance")},
		{"short falls back", strPtr("Reply"), strPtr("send the quarterly report to finance")},
		{"filler stripped", strPtr("Please review the attached contract"), strPtr("review the attached contract")},
		{"stacked filler stripped", strPtr("please kindly sign the NDA today"), strPtr("sign the NDA today")},
		{"too short after stripping", strPtr("you should   sign"), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.ValidateAction(content, tt.ai)
			switch {
			case tt.want == nil && got != nil:
				t.Errorf("expected nil, got %q", *got)
			case tt.want != nil && got == nil:
				t.Errorf("expected %q, got nil", *tt.want)
			case tt.want != nil && *got != *tt.want:
				t.Errorf("expected %q, got %q", *tt.want, *got)
			}
		})
	}
}

func TestExtractAction(t *testing.T) {
	e := NewRuleEngine(nil)

	tests := []struct {
		name string
		text string
		want *string
	}{
		{"action required", "ACTION REQUIRED: update your billing details. Thanks", strPtr("update your billing details")},
		{"you need", "You need to submit the timesheet by Friday.", strPtr("to submit the timesheet by Friday")},
		{"confirm", "Can you confirm the agenda for tomorrow's call?", strPtr("the agenda for tomorrow's call")},
		{"too short capture", "Please call.", nil},
		{"nothing actionable", "Great seeing you yesterday.", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.ExtractAction(tt.text)
			switch {
			case tt.want == nil && got != nil:
				t.Errorf("expected nil, got %q", *got)
			case tt.want != nil && got == nil:
				t.Errorf("expected %q, got nil", *tt.want)
			case tt.want != nil && *got != *tt.want:
				t.Errorf("expected %q, got %q", *tt.want, *got)
			}
		})
	}
}

func TestExtractActionCapsLength(t *testing.T) {
	e := NewRuleEngine(nil)
	long := "Action required: " +
		"aaaaaaaaaa bbbbbbbbbb cccccccccc dddddddddd eeeeeeeeee ffffffffff gggggggggg hhhhhhhhhh iiiiiiiiii jjjjjjjjjj kkkkkkkkkk"

	got := e.ExtractAction(long)
	if got == nil {
		t.Fatal("expected an action")
	}
	if n := runeLen(*got); n > 100 {
		t.Errorf("expected at most 100 runes, got %d", n)
	}
}

func TestIsMeetingEmail(t *testing.T) {
	e := NewRuleEngine(nil)

	tests := []struct {
		subject, body string
		want          bool
	}{
		{"Team sync", "Join via Zoom at 3", true},
		{"Quick call?", "", true},
		{"Invoice", "Please pay by Friday", false},
		{"Recall notice", "Your vehicle is recalled", false},
		{"Google Meet link", "", true},
	}

	for _, tt := range tests {
		if got := e.IsMeetingEmail(tt.subject, tt.body); got != tt.want {
			t.Errorf("IsMeetingEmail(%q, %q) = %v, want %v", tt.subject, tt.body, got, tt.want)
		}
	}
}
