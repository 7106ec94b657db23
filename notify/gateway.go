package notify

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/linesmerrill/resolveit-api/lifecycle"
	templates "github.com/linesmerrill/resolveit-api/templates/html"
)

// ErrNoContact is returned for an invite with neither email nor phone
var ErrNoContact = errors.New("invite has no email or phone")

// Gateway delivers consent invites. Email goes through the Mailer when one is
// configured. Phone-only invites, and email when no Mailer is set, are written to
// the log so an operator can pass the link on.
type Gateway struct {
	Mailer Mailer

	// ValidFor is shown in the email as the link lifetime
	ValidFor time.Duration
	Clock    func() time.Time
}

var _ lifecycle.Notifier = (*Gateway)(nil)

// Send implements lifecycle.Notifier
func (g *Gateway) Send(ctx context.Context, invite lifecycle.Invite) error {
	if invite.Email == "" && invite.Phone == "" {
		return ErrNoContact
	}

	if invite.Email != "" && g.Mailer != nil {
		now := time.Now
		if g.Clock != nil {
			now = g.Clock
		}
		expires := now().Add(g.ValidFor)
		return g.Mailer.SendEmail(ctx,
			invite.Email,
			invite.RecipientName,
			templates.ConsentInviteSubject(invite.CaseNumber),
			templates.ConsentInvitePlainText(invite.RecipientName, invite.CaseNumber, invite.URL),
			templates.RenderConsentInvite(invite.RecipientName, invite.CaseNumber, invite.URL, expires),
		)
	}

	to := invite.Email
	if to == "" {
		to = invite.Phone
	}
	zap.S().Infow("consent invite ready for manual delivery",
		"to", to,
		"caseNumber", invite.CaseNumber,
		"url", invite.URL)
	return nil
}
