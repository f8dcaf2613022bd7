// Package email renders and delivers reviewer notifications.
package email

import (
	"fmt"
	"html"
	"strings"

	"certflow/internal/port"
)

// Message is a rendered notification.
type Message struct {
	Subject string
	Text    string
	HTML    string
}

// ReviewLink is the reviewer UI address for a queued review.
func ReviewLink(frontendURL string, notice port.ReviewNotice) string {
	return fmt.Sprintf("%s/reviews/%s", strings.TrimRight(frontendURL, "/"), notice.Review.ID)
}

// RenderReviewPending builds the notification for a review awaiting pickup.
func RenderReviewPending(frontendURL string, notice port.ReviewNotice) Message {
	r, run := notice.Review, notice.Run
	link := ReviewLink(frontendURL, notice)
	subject := fmt.Sprintf("[certflow] %s certificate needs review (%s)", run.CertificateType, r.Reason)

	var text strings.Builder
	fmt.Fprintf(&text, "A %s certificate is waiting for review.\n\n", run.CertificateType)
	fmt.Fprintf(&text, "Reason: %s\n", r.Reason)
	if r.FailedRule != "" {
		fmt.Fprintf(&text, "Failed rule: %s\n", r.FailedRule)
	}
	fmt.Fprintf(&text, "Best confidence so far: %.0f%%\n", run.Confidence*100)
	fmt.Fprintf(&text, "\nOpen the review: %s\n", link)
	if notice.DocumentURL != "" {
		fmt.Fprintf(&text, "Document (temporary link): %s\n", notice.DocumentURL)
	}

	var body strings.Builder
	body.WriteString(`<!DOCTYPE html><html><head><meta charset="UTF-8"></head><body style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">`)
	fmt.Fprintf(&body, `<h2 style="color: #333;">%s certificate needs review</h2>`, html.EscapeString(string(run.CertificateType)))
	fmt.Fprintf(&body, `<p>Reason: <strong>%s</strong></p>`, html.EscapeString(string(r.Reason)))
	if r.FailedRule != "" {
		fmt.Fprintf(&body, `<p>Failed rule: <code>%s</code></p>`, html.EscapeString(r.FailedRule))
	}
	fmt.Fprintf(&body, `<p>Best confidence so far: %.0f%%</p>`, run.Confidence*100)
	fmt.Fprintf(&body, `<p style="text-align: center; margin: 30px 0;"><a href="%s" style="background-color: #4F46E5; color: white; padding: 12px 24px; text-decoration: none; border-radius: 6px; display: inline-block;">Open review</a></p>`,
		html.EscapeString(link))
	if notice.DocumentURL != "" {
		fmt.Fprintf(&body, `<p style="color: #999; font-size: 12px;">Document link expires soon: <a href="%s">download</a></p>`, html.EscapeString(notice.DocumentURL))
	}
	body.WriteString(`</body></html>`)

	return Message{Subject: subject, Text: text.String(), HTML: body.String()}
}
