package mail

import (
	"bytes"
	"context"
	"io"

	"github.com/a-h/templ"
)

// AppealReady is the data for the "your appeal letter is ready" email.
type AppealReady struct {
	ClaimNumber string
	PayerName   string
	DocumentURL string
}

func (d AppealReady) Subject() string {
	if d.ClaimNumber == "" {
		return "Your appeal letter is ready"
	}
	return "Your appeal letter for claim " + d.ClaimNumber + " is ready"
}

func appealReadyEmail(d AppealReady) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		parts := []string{
			"<html><body>",
			"<p>Your appeal letter",
		}
		if d.PayerName != "" {
			parts = append(parts, " to ", templ.EscapeString(d.PayerName))
		}
		if d.ClaimNumber != "" {
			parts = append(parts, " for claim <strong>", templ.EscapeString(d.ClaimNumber), "</strong>")
		}
		parts = append(parts, " has been generated.</p>")
		if d.DocumentURL != "" {
			parts = append(parts, `<p><a href="`, templ.EscapeString(d.DocumentURL), `">Download the letter</a></p>`)
		}
		parts = append(parts, "<p>Review it before sending it to the payer.</p>", "</body></html>")
		for _, p := range parts {
			if _, err := io.WriteString(w, p); err != nil {
				return err
			}
		}
		return nil
	})
}

// RenderAppealReady renders the HTML body of the appeal-ready email.
func RenderAppealReady(ctx context.Context, d AppealReady) (string, error) {
	var buf bytes.Buffer
	if err := appealReadyEmail(d).Render(ctx, &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// SendAppealReady renders and sends the appeal-ready email to to.
func SendAppealReady(ctx context.Context, s Sender, to string, d AppealReady) error {
	body, err := RenderAppealReady(ctx, d)
	if err != nil {
		return err
	}
	return s.Send(to, d.Subject(), body)
}
