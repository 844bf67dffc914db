// Package provider implements the Google mail and calendar adapters.
package provider

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"triage_server/core/domain"
	"triage_server/core/port/out"
	"triage_server/pkg/httputil"
	"triage_server/pkg/resilience"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const (
	defaultSubject = "(No Subject)"
	defaultSender  = "(Unknown Sender)"
)

// GoogleConfig holds OAuth client credentials shared by the Google adapters.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
}

// OAuthConfig builds the offline-access client used for refresh tokens.
func (c *GoogleConfig) OAuthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		Scopes:       []string{gmail.GmailReadonlyScope, calendar.CalendarEventsScope},
		Endpoint:     google.Endpoint,
	}
}

// =============================================================================
// Gmail Adapter
// =============================================================================

// GmailAdapter implements out.MailProvider.
type GmailAdapter struct {
	oauth      *oauth2.Config
	httpClient *http.Client
	cb         *gobreaker.CircuitBreaker
	log        zerolog.Logger
}

var _ out.MailProvider = (*GmailAdapter)(nil)

func NewGmailAdapter(cfg *GoogleConfig, log zerolog.Logger) *GmailAdapter {
	return &GmailAdapter{
		oauth:      cfg.OAuthConfig(),
		httpClient: httputil.NewClient(httputil.GoogleClientConfig()),
		cb:         resilience.NewBreaker(resilience.DefaultBreakerConfig("gmail-api"), isSuccessful, log),
		log:        log.With().Str("component", "gmail_adapter").Logger(),
	}
}

// ListMessageIDs lists up to max message ids received after since.
func (a *GmailAdapter) ListMessageIDs(ctx context.Context, refreshToken string, since time.Time, max int) ([]string, error) {
	svc, err := a.service(ctx, refreshToken)
	if err != nil {
		return nil, err
	}

	var ids []string
	err = a.execute(func() error {
		resp, err := svc.Users.Messages.List("me").
			Q(fmt.Sprintf("after:%d", since.Unix())).
			MaxResults(int64(max)).
			Context(ctx).
			Do()
		if err != nil {
			return err
		}
		for _, m := range resp.Messages {
			ids = append(ids, m.Id)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("gmail list: %w", err)
	}
	return ids, nil
}

// GetMessage fetches one message in full format.
func (a *GmailAdapter) GetMessage(ctx context.Context, refreshToken, id string) (*out.ProviderMessage, error) {
	svc, err := a.service(ctx, refreshToken)
	if err != nil {
		return nil, err
	}

	var msg *gmail.Message
	err = a.execute(func() error {
		msg, err = svc.Users.Messages.Get("me", id).Format("full").Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("gmail get %s: %w", id, err)
	}
	return convertMessage(msg), nil
}

func (a *GmailAdapter) service(ctx context.Context, refreshToken string) (*gmail.Service, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, a.httpClient)
	src := a.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	svc, err := gmail.NewService(ctx, option.WithTokenSource(src))
	if err != nil {
		return nil, fmt.Errorf("gmail service: %w", err)
	}
	return svc, nil
}

func (a *GmailAdapter) execute(fn func() error) error {
	_, err := a.cb.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		a.log.Warn().Str("state", a.cb.State().String()).Msg("gmail circuit open")
	}
	return err
}

// isSuccessful reports client-side Google errors as successes so only server
// trouble and throttling open the circuit.
func isSuccessful(err error) bool {
	if err == nil {
		return true
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case 400, 401, 403, 404:
			return true
		}
	}
	return false
}

// =============================================================================
// Message conversion
// =============================================================================

func convertMessage(msg *gmail.Message) *out.ProviderMessage {
	pm := &out.ProviderMessage{
		ProviderID: msg.Id,
		Subject:    defaultSubject,
		Sender:     defaultSender,
		ReceivedAt: time.UnixMilli(msg.InternalDate).UTC(),
	}

	if msg.Payload != nil {
		for _, h := range msg.Payload.Headers {
			switch {
			case strings.EqualFold(h.Name, "Subject") && h.Value != "":
				pm.Subject = h.Value
			case strings.EqualFold(h.Name, "From") && h.Value != "":
				pm.Sender = h.Value
			}
		}
	}

	body := extractBody(msg.Payload)
	if body == "" {
		body = msg.Snippet
	}
	pm.Body = truncate(body, domain.StoredBodyLimit)
	return pm
}

var (
	tagRe   = regexp.MustCompile(`<[^>]*>`)
	spaceRe = regexp.MustCompile(`\s+`)
)

// extractBody prefers the payload's own data, then text/plain at the first
// or second level, then the first top-level text/html part with tags removed.
func extractBody(payload *gmail.MessagePart) string {
	if payload == nil {
		return ""
	}
	if payload.Body != nil && payload.Body.Data != "" {
		return decodePart(payload.Body.Data)
	}

	for _, part := range payload.Parts {
		if text := plainText(part); text != "" {
			return text
		}
		for _, sub := range part.Parts {
			if text := plainText(sub); text != "" {
				return text
			}
		}
	}

	for _, part := range payload.Parts {
		if part.MimeType == "text/html" && part.Body != nil && part.Body.Data != "" {
			html := tagRe.ReplaceAllString(decodePart(part.Body.Data), " ")
			return strings.TrimSpace(spaceRe.ReplaceAllString(html, " "))
		}
	}
	return ""
}

func plainText(part *gmail.MessagePart) string {
	if part.MimeType == "text/plain" && part.Body != nil && part.Body.Data != "" {
		return decodePart(part.Body.Data)
	}
	return ""
}

// decodePart accepts padded and unpadded base64url.
func decodePart(data string) string {
	if b, err := base64.URLEncoding.DecodeString(data); err == nil {
		return string(b)
	}
	if b, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(data, "=")); err == nil {
		return string(b)
	}
	return ""
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
