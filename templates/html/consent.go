package templates

import (
	"fmt"
	"html"
	"strings"
	"time"
)

// ConsentInviteSubject is the subject line of the opposite party invite
func ConsentInviteSubject(caseNumber string) string {
	return fmt.Sprintf("You have been invited to mediation (case %s)", caseNumber)
}

// RenderConsentInvite builds the email asking the opposite party to accept or decline mediation
func RenderConsentInvite(recipientName, caseNumber, url string, expiresAt time.Time) string {
	name := recipientName
	if name == "" {
		name = "there"
	}
	body := fmt.Sprintf(`<p>Hello %s,</p>
      <p>A dispute naming you has been registered with ResolveIt under case number <strong>%s</strong>.
      Mediation is voluntary. Please review the case and tell us whether you agree to take part.</p>
      <p style="text-align: center; margin: 32px 0;"><a class="button" href="%s">Review and respond</a></p>
      <p>This link can be used once and stays valid until %s.</p>`,
		html.EscapeString(name),
		html.EscapeString(caseNumber),
		html.EscapeString(url),
		expiresAt.UTC().Format("2 January 2006 15:04 MST"))
	return renderLayout(ConsentInviteSubject(caseNumber), body)
}

// ConsentInvitePlainText is the text/plain alternative of RenderConsentInvite
func ConsentInvitePlainText(recipientName, caseNumber, url string) string {
	return fmt.Sprintf("Hello %s,\n\nA dispute naming you has been registered with ResolveIt (case %s). "+
		"Review it and accept or decline mediation here: %s\n", strings.TrimSpace(recipientName), caseNumber, url)
}

// DigestRow is one case waiting on the opposite party
type DigestRow struct {
	CaseNumber string
	Title      string
	ExpiresAt  time.Time
	Expired    bool
}

// RenderStaleConsentDigest lists cases whose consent link is expired or about to expire
func RenderStaleConsentDigest(rows []DigestRow) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("<p>%d case(s) are still awaiting a response from the opposite party.</p>", len(rows)))
	b.WriteString(`<table class="digest"><tr><th>Case</th><th>Title</th><th>Link expires</th><th></th></tr>`)
	for _, r := range rows {
		state := "expiring"
		if r.Expired {
			state = "expired"
		}
		b.WriteString(fmt.Sprintf("<tr><td>%s</td><td>%s</td><td>%s</td><td>%s</td></tr>",
			html.EscapeString(r.CaseNumber),
			html.EscapeString(r.Title),
			r.ExpiresAt.UTC().Format("2006-01-02 15:04"),
			state))
	}
	b.WriteString("</table>")
	return renderLayout("Consent links needing attention", b.String())
}
