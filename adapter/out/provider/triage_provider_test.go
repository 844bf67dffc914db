package provider

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"triage_server/core/domain"
	"triage_server/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
)

func enc(s string) string {
	return base64.URLEncoding.EncodeToString([]byte(s))
}

func TestExtractBodyPrefersPlainText(t *testing.T) {
	payload := &gmail.MessagePart{
		MimeType: "multipart/alternative",
		Parts: []*gmail.MessagePart{
			{MimeType: "text/html", Body: &gmail.MessagePartBody{Data: enc("<p>html</p>")}},
			{MimeType: "text/plain", Body: &gmail.MessagePartBody{Data: enc("plain body")}},
		},
	}
	assert.Equal(t, "plain body", extractBody(payload))
}

func TestExtractBodyNestedPlainText(t *testing.T) {
	payload := &gmail.MessagePart{
		MimeType: "multipart/mixed",
		Parts: []*gmail.MessagePart{
			{
				MimeType: "multipart/alternative",
				Parts: []*gmail.MessagePart{
					{MimeType: "text/plain", Body: &gmail.MessagePartBody{Data: enc("nested")}},
				},
			},
		},
	}
	assert.Equal(t, "nested", extractBody(payload))
}

func TestExtractBodyHTMLFallback(t *testing.T) {
	payload := &gmail.MessagePart{
		Parts: []*gmail.MessagePart{
			{MimeType: "text/html", Body: &gmail.MessagePartBody{Data: enc("<div>Hello\n\n<b>world</b></div>")}},
		},
	}
	assert.Equal(t, "Hello world", extractBody(payload))
}

func TestDecodePartUnpadded(t *testing.T) {
	raw := base64.RawURLEncoding.EncodeToString([]byte("ab"))
	assert.Equal(t, "ab", decodePart(raw))
}

func TestConvertMessageDefaults(t *testing.T) {
	msg := &gmail.Message{
		Id:           "m1",
		Snippet:      "snippet text",
		InternalDate: 1741597200000,
		Payload:      &gmail.MessagePart{},
	}
	pm := convertMessage(msg)
	assert.Equal(t, "m1", pm.ProviderID)
	assert.Equal(t, defaultSubject, pm.Subject)
	assert.Equal(t, defaultSender, pm.Sender)
	assert.Equal(t, "snippet text", pm.Body)
	assert.Equal(t, time.UnixMilli(1741597200000).UTC(), pm.ReceivedAt)
}

func TestConvertMessageHeadersAndTruncation(t *testing.T) {
	msg := &gmail.Message{
		Id: "m2",
		Payload: &gmail.MessagePart{
			Headers: []*gmail.MessagePartHeader{
				{Name: "Subject", Value: "Hi"},
				{Name: "From", Value: "A <a@x.com>"},
			},
			Body: &gmail.MessagePartBody{Data: enc(strings.Repeat("ü", domain.StoredBodyLimit+10))},
		},
	}
	pm := convertMessage(msg)
	assert.Equal(t, "Hi", pm.Subject)
	assert.Equal(t, "A <a@x.com>", pm.Sender)
	assert.Equal(t, domain.StoredBodyLimit, utf8.RuneCountInString(pm.Body))
}

func TestIsSuccessful(t *testing.T) {
	assert.True(t, isSuccessful(nil))
	assert.True(t, isSuccessful(&googleapi.Error{Code: 404}))
	assert.False(t, isSuccessful(&googleapi.Error{Code: 503}))
	assert.False(t, isSuccessful(errors.New("dial tcp: timeout")))
}

func TestBuildCalendarEvent(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)

	a := NewGoogleCalendarAdapter(&GoogleConfig{}, loc, logger.Nop())
	a.now = func() time.Time { return time.Unix(100, 0) }

	ev, err := a.buildEvent(&domain.CalendarEvent{Summary: "Sync", DueDate: "2025-03-11", DueTime: "15:00"})
	require.NoError(t, err)
	assert.Equal(t, "Sync", ev.Summary)
	assert.Equal(t, "2025-03-11T15:00:00+05:30", ev.Start.DateTime)
	assert.Equal(t, "2025-03-11T16:00:00+05:30", ev.End.DateTime)
	assert.Equal(t, "Asia/Kolkata", ev.Start.TimeZone)
	require.NotNil(t, ev.ConferenceData)
	assert.NotEmpty(t, ev.ConferenceData.CreateRequest.RequestId)

	_, err = a.buildEvent(&domain.CalendarEvent{DueDate: "soon", DueTime: "15:00"})
	assert.Error(t, err)
}
