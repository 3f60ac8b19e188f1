// Package mailparse turns a provider message payload into the fields stored on an Email.
package mailparse

import (
	"encoding/base64"
	"regexp"
	"strings"
)

const noSubject = "(No Subject)"

var (
	senderNamePattern  = regexp.MustCompile(`^"?([^"<]+)"?\s*<.*>$`)
	senderEmailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
)

type Header struct {
	Name  string
	Value string
}

// Part is one node of a MIME tree. Data holds the base64url encoded body.
type Part struct {
	MimeType string
	Headers  []Header
	Data     string
	Parts    []*Part
}

// Message is a provider-neutral raw message.
type Message struct {
	ID           string
	ThreadID     string
	Snippet      string
	InternalDate int64
	Payload      *Part
}

type Parsed struct {
	Subject            string
	SenderName         string
	SenderEmail        string
	Body               string
	HasUnsubscribeLink bool
	UnsubscribeLink    string
}

// Parse extracts subject, sender, body and unsubscribe link from msg.
func Parse(msg *Message) Parsed {
	var parsed Parsed
	if msg == nil || msg.Payload == nil {
		parsed.Subject = noSubject
		return parsed
	}

	headers := msg.Payload.Headers
	parsed.Subject = HeaderValue(headers, "Subject")
	if parsed.Subject == "" {
		parsed.Subject = noSubject
	}

	from := HeaderValue(headers, "From")
	parsed.SenderName = SenderName(from)
	parsed.SenderEmail = SenderEmail(from)
	parsed.Body = ExtractBody(msg.Payload)

	parsed.UnsubscribeLink = FindUnsubscribeLink(parsed.Body)
	if parsed.UnsubscribeLink == "" {
		parsed.UnsubscribeLink = listUnsubscribeHeader(HeaderValue(headers, "List-Unsubscribe"))
	}
	parsed.HasUnsubscribeLink = parsed.UnsubscribeLink != ""
	return parsed
}

// HeaderValue returns the first header called name, compared case-insensitively.
func HeaderValue(headers []Header, name string) string {
	for _, h := range headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// SenderName returns the display name of a From header, or the whole value.
func SenderName(from string) string {
	if m := senderNamePattern.FindStringSubmatch(strings.TrimSpace(from)); m != nil {
		return strings.TrimSpace(m[1])
	}
	return from
}

// SenderEmail returns the address in a From header, or the whole value.
func SenderEmail(from string) string {
	if m := senderEmailPattern.FindString(from); m != "" {
		return m
	}
	return from
}

// ExtractBody prefers the first text/html part, then the first text/plain part,
// searching nested multiparts depth first.
func ExtractBody(payload *Part) string {
	if payload == nil {
		return ""
	}
	if len(payload.Parts) == 0 {
		return decode(payload.Data)
	}
	if part := findPart(payload.Parts, "text/html"); part != nil {
		return decode(part.Data)
	}
	if part := findPart(payload.Parts, "text/plain"); part != nil {
		return decode(part.Data)
	}
	return ""
}

func findPart(parts []*Part, mimeType string) *Part {
	for _, part := range parts {
		if part == nil {
			continue
		}
		if strings.EqualFold(part.MimeType, mimeType) && part.Data != "" {
			return part
		}
		if len(part.Parts) > 0 {
			if nested := findPart(part.Parts, mimeType); nested != nil {
				return nested
			}
		}
	}
	return nil
}

// decode accepts base64url with or without padding. Undecodable data yields "".
func decode(data string) string {
	if data == "" {
		return ""
	}
	trimmed := strings.TrimRight(data, "=")
	if decoded, err := base64.RawURLEncoding.DecodeString(trimmed); err == nil {
		return string(decoded)
	}
	if decoded, err := base64.URLEncoding.DecodeString(data); err == nil {
		return string(decoded)
	}
	if decoded, err := base64.StdEncoding.DecodeString(data); err == nil {
		return string(decoded)
	}
	return ""
}

// listUnsubscribeHeader picks the first http(s) entry of a List-Unsubscribe header.
func listUnsubscribeHeader(value string) string {
	for _, entry := range strings.Split(value, ",") {
		link := strings.Trim(strings.TrimSpace(entry), "<>")
		lower := strings.ToLower(link)
		if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
			return link
		}
	}
	return ""
}
