package out

import (
	"context"
	"time"

	"triage_server/core/domain"
)

// ProviderMessage is a message as fetched from the mail provider.
type ProviderMessage struct {
	ProviderID string
	Subject    string
	Sender     string
	Body       string // plain text, capped at domain.StoredBodyLimit runes
	ReceivedAt time.Time
}

// MailProvider reads a mailbox with an offline refresh token.
type MailProvider interface {
	ListMessageIDs(ctx context.Context, refreshToken string, since time.Time, max int) ([]string, error)
	GetMessage(ctx context.Context, refreshToken, id string) (*ProviderMessage, error)
}

// CalendarProvider creates events on the owner's primary calendar.
type CalendarProvider interface {
	// CreateEvent returns the event's web link.
	CreateEvent(ctx context.Context, refreshToken string, event *domain.CalendarEvent) (string, error)
}
