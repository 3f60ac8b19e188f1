package mailparse

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var unsubscribePhrases = []string{
	"unsubscribe",
	"opt-out",
	"opt out",
	"remove me",
	"stop receiving",
	"cancel subscription",
}

func containsUnsubscribePhrase(s string) bool {
	lower := strings.ToLower(s)
	for _, phrase := range unsubscribePhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// FindUnsubscribeLink returns the first anchor href whose text or href mentions
// unsubscribing, falling back to a list-unsubscribe meta tag. "" when none.
func FindUnsubscribeLink(body string) string {
	if strings.TrimSpace(body) == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return ""
	}

	var link string
	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href := strings.TrimSpace(a.AttrOr("href", ""))
		if href == "" {
			return true
		}
		if containsUnsubscribePhrase(a.Text()) || containsUnsubscribePhrase(href) {
			link = href
			return false
		}
		return true
	})
	if link != "" {
		return link
	}

	doc.Find("meta").EachWithBreak(func(_ int, meta *goquery.Selection) bool {
		if !strings.EqualFold(meta.AttrOr("name", ""), "list-unsubscribe") {
			return true
		}
		content := strings.TrimSpace(meta.AttrOr("content", ""))
		content = strings.TrimSpace(strings.Trim(content, "<>"))
		if content != "" {
			link = content
			return false
		}
		return true
	})
	return link
}

// ExtractText returns the visible text of an HTML document with whitespace collapsed.
// Non-HTML input comes back trimmed.
func ExtractText(body string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return strings.TrimSpace(body)
	}
	doc.Find("script, style, head").Remove()
	return strings.Join(strings.Fields(doc.Text()), " ")
}
