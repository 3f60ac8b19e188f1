package mailparse

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
)

func enc(s string) string {
	return base64.URLEncoding.EncodeToString([]byte(s))
}

func rawEnc(s string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(s))
}

func TestParseHeaders(t *testing.T) {
	msg := &Message{
		ID: "msg-1",
		Payload: &Part{
			MimeType: "text/plain",
			Headers: []Header{
				{Name: "subject", Value: "Weekly digest"},
				{Name: "FROM", Value: `"Acme News" <news@acme.com>`},
			},
			Data: enc("hello"),
		},
	}

	parsed := Parse(msg)
	assert.Equal(t, "Weekly digest", parsed.Subject)
	assert.Equal(t, "Acme News", parsed.SenderName)
	assert.Equal(t, "news@acme.com", parsed.SenderEmail)
	assert.Equal(t, "hello", parsed.Body)
	assert.False(t, parsed.HasUnsubscribeLink)
}

func TestParseFallbacks(t *testing.T) {
	parsed := Parse(&Message{Payload: &Part{}})
	assert.Equal(t, "(No Subject)", parsed.Subject)
	assert.Equal(t, "", parsed.Body)

	parsed = Parse(nil)
	assert.Equal(t, "(No Subject)", parsed.Subject)
}

func TestSenderParsing(t *testing.T) {
	tests := []struct {
		from      string
		wantName  string
		wantEmail string
	}{
		{`"Jane Doe" <jane@example.com>`, "Jane Doe", "jane@example.com"},
		{`Jane Doe <jane@example.com>`, "Jane Doe", "jane@example.com"},
		{`jane@example.com`, "jane@example.com", "jane@example.com"},
		{`Mailer Daemon`, "Mailer Daemon", "Mailer Daemon"},
	}
	for _, tt := range tests {
		t.Run(tt.from, func(t *testing.T) {
			assert.Equal(t, tt.wantName, SenderName(tt.from))
			assert.Equal(t, tt.wantEmail, SenderEmail(tt.from))
		})
	}
}

func TestExtractBodyPrefersHTML(t *testing.T) {
	payload := &Part{
		MimeType: "multipart/alternative",
		Parts: []*Part{
			{MimeType: "text/plain", Data: enc("plain body")},
			{MimeType: "text/html", Data: enc("<p>html body</p>")},
		},
	}
	assert.Equal(t, "<p>html body</p>", ExtractBody(payload))
}

func TestExtractBodyNestedAndUnpadded(t *testing.T) {
	payload := &Part{
		MimeType: "multipart/mixed",
		Parts: []*Part{
			{MimeType: "application/pdf", Data: enc("%PDF")},
			{
				MimeType: "multipart/alternative",
				Parts: []*Part{
					{MimeType: "text/plain", Data: rawEnc("nested plain?")},
				},
			},
		},
	}
	assert.Equal(t, "nested plain?", ExtractBody(payload))
}

func TestExtractBodyNothingUsable(t *testing.T) {
	payload := &Part{
		MimeType: "multipart/mixed",
		Parts:    []*Part{{MimeType: "image/png", Data: enc("png")}},
	}
	assert.Equal(t, "", ExtractBody(payload))
}

func TestParseUnsubscribeFromListHeader(t *testing.T) {
	msg := &Message{
		Payload: &Part{
			MimeType: "text/plain",
			Headers: []Header{
				{Name: "List-Unsubscribe", Value: "<mailto:leave@acme.com>, <https://acme.com/leave?u=1>"},
			},
			Data: enc("no links here"),
		},
	}
	parsed := Parse(msg)
	assert.True(t, parsed.HasUnsubscribeLink)
	assert.Equal(t, "https://acme.com/leave?u=1", parsed.UnsubscribeLink)
}
