// Package scheduler runs the periodic background jobs
package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/linesmerrill/resolveit-api/databases"
	"github.com/linesmerrill/resolveit-api/models"
	"github.com/linesmerrill/resolveit-api/notify"
	templates "github.com/linesmerrill/resolveit-api/templates/html"
)

// DefaultLookahead includes links that expire within the next day
const DefaultLookahead = 24 * time.Hour

const digestTimeout = 5 * time.Minute

// Scheduler reports consent links that are expired or about to expire. It never
// changes a case: expiry is enforced when a link is used.
type Scheduler struct {
	cron *cron.Cron

	DB        databases.CaseDatabase
	Mailer    notify.Mailer
	Recipient string
	Lookahead time.Duration
	Clock     func() time.Time
}

// NewScheduler creates a new scheduler instance. mailer may be nil, in which case
// the digest is only logged.
func NewScheduler(db databases.CaseDatabase, mailer notify.Mailer, recipient string) *Scheduler {
	return &Scheduler{
		cron:      cron.New(cron.WithLocation(time.UTC)),
		DB:        db,
		Mailer:    mailer,
		Recipient: recipient,
		Lookahead: DefaultLookahead,
	}
}

func (s *Scheduler) now() time.Time {
	if s.Clock != nil {
		return s.Clock()
	}
	return time.Now()
}

// Start registers the digest on spec (standard five field cron syntax, UTC) and
// starts the scheduler
func (s *Scheduler) Start(spec string) error {
	if _, err := s.cron.AddFunc(spec, s.runDigest); err != nil {
		return err
	}
	s.cron.Start()
	zap.S().Infow("stale consent digest scheduled", "schedule", spec)
	return nil
}

// Stop gracefully stops the scheduler and waits for a running job
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	zap.S().Info("scheduler stopped")
}

func (s *Scheduler) runDigest() {
	ctx, cancel := context.WithTimeout(context.Background(), digestTimeout)
	defer cancel()
	if _, err := s.StaleConsentDigest(ctx); err != nil {
		zap.S().Errorw("stale consent digest failed", "error", err)
	}
}

// StaleConsentDigest finds cases still awaiting the opposite party whose link has
// expired or expires within Lookahead, logs them and mails the list to Recipient
func (s *Scheduler) StaleConsentDigest(ctx context.Context) ([]templates.DigestRow, error) {
	now := s.now()
	filter := bson.M{
		"case.status":            models.StatusAwaitingResponse,
		"case.consent.response":  nil,
		"case.consent.expiresAt": bson.M{"$lte": now.Add(s.Lookahead)},
	}
	opts := options.Find().SetSort(bson.D{{Key: "case.consent.expiresAt", Value: 1}})
	cases, err := s.DB.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}

	rows := make([]templates.DigestRow, 0, len(cases))
	for _, c := range cases {
		if c.Details.Consent == nil || c.Details.Consent.ExpiresAt == nil {
			continue
		}
		exp := *c.Details.Consent.ExpiresAt
		row := templates.DigestRow{
			CaseNumber: c.Details.CaseNumber,
			Title:      c.Details.Title,
			ExpiresAt:  exp,
			Expired:    now.After(exp),
		}
		rows = append(rows, row)
		zap.S().Infow("consent link needs attention",
			"caseId", c.ID.Hex(),
			"caseNumber", row.CaseNumber,
			"expiresAt", exp,
			"expired", row.Expired)
	}

	if len(rows) == 0 {
		zap.S().Debug("no stale consent links")
		return rows, nil
	}
	if s.Mailer == nil || s.Recipient == "" {
		return rows, nil
	}
	subject := "Consent links needing attention"
	if err := s.Mailer.SendEmail(ctx, s.Recipient, "ResolveIt admin", subject,
		subject, templates.RenderStaleConsentDigest(rows)); err != nil {
		zap.S().Errorw("failed to mail stale consent digest", "error", err, "to", s.Recipient)
		return rows, err
	}
	zap.S().Infow("stale consent digest sent", "cases", len(rows), "to", s.Recipient)
	return rows, nil
}
