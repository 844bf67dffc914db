package provider

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"triage_server/core/domain"
	"triage_server/core/port/out"
	"triage_server/pkg/httputil"
	"triage_server/pkg/resilience"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

const (
	primaryCalendar = "primary"
	eventDuration   = time.Hour
)

// GoogleCalendarAdapter implements out.CalendarProvider.
type GoogleCalendarAdapter struct {
	oauth      *oauth2.Config
	httpClient *http.Client
	loc        *time.Location
	cb         *gobreaker.CircuitBreaker
	now        func() time.Time
	log        zerolog.Logger
}

var _ out.CalendarProvider = (*GoogleCalendarAdapter)(nil)

// NewGoogleCalendarAdapter creates the adapter. Event times are interpreted
// in loc (UTC when nil).
func NewGoogleCalendarAdapter(cfg *GoogleConfig, loc *time.Location, log zerolog.Logger) *GoogleCalendarAdapter {
	if loc == nil {
		loc = time.UTC
	}
	return &GoogleCalendarAdapter{
		oauth:      cfg.OAuthConfig(),
		httpClient: httputil.NewClient(httputil.GoogleClientConfig()),
		loc:        loc,
		cb:         resilience.NewBreaker(resilience.DefaultBreakerConfig("google-calendar"), isSuccessful, log),
		now:        time.Now,
		log:        log.With().Str("component", "calendar_adapter").Logger(),
	}
}

// CreateEvent inserts a one-hour event with a conference link request.
func (a *GoogleCalendarAdapter) CreateEvent(ctx context.Context, refreshToken string, ev *domain.CalendarEvent) (string, error) {
	event, err := a.buildEvent(ev)
	if err != nil {
		return "", err
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, a.httpClient)
	src := a.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	svc, err := calendar.NewService(ctx, option.WithTokenSource(src))
	if err != nil {
		return "", fmt.Errorf("calendar service: %w", err)
	}

	res, err := a.cb.Execute(func() (interface{}, error) {
		return svc.Events.Insert(primaryCalendar, event).
			ConferenceDataVersion(1).
			Context(ctx).
			Do()
	})
	if err != nil {
		return "", fmt.Errorf("calendar insert: %w", err)
	}

	created := res.(*calendar.Event)
	a.log.Debug().Str("event_id", created.Id).Msg("calendar event inserted")
	return created.HtmlLink, nil
}

func (a *GoogleCalendarAdapter) buildEvent(ev *domain.CalendarEvent) (*calendar.Event, error) {
	start, err := time.ParseInLocation("2006-01-02 15:04", ev.DueDate+" "+ev.DueTime, a.loc)
	if err != nil {
		return nil, fmt.Errorf("invalid event time %q %q: %w", ev.DueDate, ev.DueTime, err)
	}
	end := start.Add(eventDuration)

	return &calendar.Event{
		Summary:     ev.Summary,
		Description: ev.Description,
		Start:       &calendar.EventDateTime{DateTime: start.Format(time.RFC3339), TimeZone: a.loc.String()},
		End:         &calendar.EventDateTime{DateTime: end.Format(time.RFC3339), TimeZone: a.loc.String()},
		ConferenceData: &calendar.ConferenceData{
			CreateRequest: &calendar.CreateConferenceRequest{
				RequestId: strconv.FormatInt(a.now().UnixNano(), 10),
			},
		},
	}, nil
}
