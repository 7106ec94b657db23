// Package lifecycle holds the case workflow: status transitions, witnesses, the
// opposite-party consent round trip and panel formation.
package lifecycle

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/linesmerrill/resolveit-api/consent"
	"github.com/linesmerrill/resolveit-api/databases"
	"github.com/linesmerrill/resolveit-api/models"
)

// saveAttempts bounds the load, check, save loop when another writer wins the race
const saveAttempts = 3

// Engine runs every mutation of a case. Writes are version checked, so a lost race
// is retried from a fresh read rather than overwriting the other writer.
type Engine struct {
	Cases     CaseStore
	Sequencer Sequencer
	Signer    *consent.Signer
	Notifier  Notifier
	Publisher Publisher

	// ClientURL is the web app base the consent link points at
	ClientURL        string
	CaseNumberPrefix string
	ConsentValidDays int

	Clock func() time.Time
}

func (e *Engine) now() time.Time {
	if e.Clock != nil {
		return e.Clock()
	}
	return time.Now()
}

func (e *Engine) prefix() string {
	if e.CaseNumberPrefix == "" {
		return DefaultCaseNumberPrefix
	}
	return e.CaseNumberPrefix
}

func requireAdmin(actor Actor) error {
	if !actor.IsAdmin() {
		return ErrForbidden
	}
	return nil
}

func parseID(kind, id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%s %q: %w", kind, id, ErrNotFound)
	}
	return oid, nil
}

// Get loads a single case
func (e *Engine) Get(ctx context.Context, caseID string) (*models.Case, error) {
	id, err := parseID("case", caseID)
	if err != nil {
		return nil, err
	}
	return e.load(ctx, id)
}

func (e *Engine) load(ctx context.Context, id primitive.ObjectID) (*models.Case, error) {
	c, err := e.Cases.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("case %s: %w", id.Hex(), ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load case %s: %w", id.Hex(), err)
	}
	return c, nil
}

// mutate loads the case, lets apply change it and saves it. apply runs again on a
// fresh copy whenever the save loses a version race.
func (e *Engine) mutate(ctx context.Context, caseID string, apply func(c *models.Case) error) (*models.Case, error) {
	id, err := parseID("case", caseID)
	if err != nil {
		return nil, err
	}
	for attempt := 1; attempt <= saveAttempts; attempt++ {
		c, err := e.load(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := apply(c); err != nil {
			return nil, err
		}
		c.Details.UpdatedAt = e.now()

		err = e.Cases.Save(ctx, c)
		if err == nil {
			return c, nil
		}
		if !errors.Is(err, databases.ErrStaleVersion) {
			return nil, fmt.Errorf("failed to save case %s: %w", caseID, err)
		}
		zap.S().Debugw("case changed while saving, retrying",
			"caseID", caseID,
			"attempt", attempt)
	}
	return nil, fmt.Errorf("case %s kept changing while saving: %w", caseID, ErrConflict)
}

func (e *Engine) record(c *models.Case, action string, from, to models.CaseStatus, actor, notes string) {
	c.Details.History = append(c.Details.History, models.CaseHistoryEntry{
		Action:     action,
		FromStatus: from,
		ToStatus:   to,
		UserID:     actor,
		Notes:      notes,
		Timestamp:  e.now(),
	})
}

// setStatus is the unconditional assignment used by operations whose status side
// effect is part of their own contract rather than a table transition
func (e *Engine) setStatus(c *models.Case, to models.CaseStatus, action, actor string) {
	from := c.Details.Status
	c.Details.Status = to
	e.record(c, action, from, to, actor, "")
}

func (e *Engine) publish(event string, payload interface{}) {
	if e.Publisher == nil {
		return
	}
	if err := e.Publisher.Publish(event, payload); err != nil {
		zap.S().Warnw("failed to publish case event",
			"event", event,
			"error", err)
	}
}

func (e *Engine) publishStatus(c *models.Case, from models.CaseStatus, actor string) {
	if from == c.Details.Status {
		return
	}
	e.publish(EventStatusChanged, StatusChange{
		CaseID:      c.ID.Hex(),
		CaseNumber:  c.Details.CaseNumber,
		From:        from,
		To:          c.Details.Status,
		Actor:       actor,
		Complainant: c.Details.Complainant,
	})
}

// CreateCase validates input and registers a new case owned by complainantID
func (e *Engine) CreateCase(ctx context.Context, input CaseInput, complainantID string) (*models.Case, error) {
	input.normalize()
	if err := input.validate(); err != nil {
		return nil, err
	}

	now := e.now()
	year := now.Year()
	seq, err := e.Sequencer.Next(ctx, CounterKey(e.prefix(), year))
	if err != nil {
		return nil, fmt.Errorf("failed to allocate case number: %w", err)
	}

	documents := input.Documents
	for i := range documents {
		documents[i].UploadedBy = complainantID
		if documents[i].UploadedAt.IsZero() {
			documents[i].UploadedAt = now
		}
	}
	if documents == nil {
		documents = []models.DocumentItem{}
	}
	tags := input.Tags
	if tags == nil {
		tags = []string{}
	}

	c := &models.Case{
		Details: models.CaseDetails{
			CaseNumber:        FormatCaseNumber(e.prefix(), year, seq),
			CaseType:          input.CaseType,
			Title:             input.Title,
			Description:       input.Description,
			Complainant:       complainantID,
			OppositeParty:     input.OppositeParty,
			IsInCourt:         input.IsInCourt,
			CourtDetails:      input.CourtDetails,
			Status:            models.StatusRegistered,
			Documents:         documents,
			Witnesses:         []models.Witness{},
			MediationSessions: []models.MediationSession{},
			Priority:          input.Priority,
			Tags:              tags,
			Notes:             input.Notes,
			CreatedAt:         now,
			UpdatedAt:         now,
		},
	}
	e.record(c, "registered", "", models.StatusRegistered, complainantID, "")

	if err := e.Cases.Insert(ctx, c); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("case number %s already taken: %w", c.Details.CaseNumber, ErrConflict)
		}
		return nil, fmt.Errorf("failed to insert case: %w", err)
	}
	zap.S().Infow("case registered",
		"caseID", c.ID.Hex(),
		"caseNumber", c.Details.CaseNumber,
		"complainant", complainantID)
	return c, nil
}

func canEdit(c *models.Case, actor Actor) bool {
	return actor.IsAdmin() || (actor.ID != "" && c.Details.Complainant == actor.ID)
}

// UpdateDetails edits the descriptive fields of a case. Only the complainant or an
// admin may do so. Status, parties' consent and panel are untouched.
func (e *Engine) UpdateDetails(ctx context.Context, caseID string, update CaseUpdate, actor Actor) (*models.Case, error) {
	return e.mutate(ctx, caseID, func(c *models.Case) error {
		if !canEdit(c, actor) {
			return ErrForbidden
		}
		if err := update.apply(&c.Details); err != nil {
			return err
		}
		e.record(c, "updated", "", "", actor.ID, "")
		return nil
	})
}

// AddDocuments appends document metadata. Only the complainant may add documents.
func (e *Engine) AddDocuments(ctx context.Context, caseID string, docs []models.DocumentItem, actor Actor) (*models.Case, error) {
	if len(docs) == 0 {
		return nil, validationError([]string{"no documents given"})
	}
	return e.mutate(ctx, caseID, func(c *models.Case) error {
		if c.Details.Complainant != actor.ID {
			return ErrForbidden
		}
		now := e.now()
		for _, d := range docs {
			if strings.TrimSpace(d.FileName) == "" {
				return validationError([]string{"document fileName is required"})
			}
			d.UploadedBy = actor.ID
			d.UploadedAt = now
			c.Details.Documents = append(c.Details.Documents, d)
		}
		e.record(c, "documents_added", "", "", actor.ID, fmt.Sprintf("%d document(s)", len(docs)))
		return nil
	})
}

// Transition moves a case along one edge of the workflow table
func (e *Engine) Transition(ctx context.Context, caseID, status, notes string, actor Actor) (*models.Case, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	to := models.CaseStatus(status)
	var from models.CaseStatus

	c, err := e.mutate(ctx, caseID, func(c *models.Case) error {
		if !to.Valid() {
			return fmt.Errorf("%q: %w", status, ErrInvalidStatus)
		}
		from = c.Details.Status
		if !CanTransition(from, to) {
			return fmt.Errorf("%s -> %s: %w", from, to, ErrInvalidTransition)
		}
		c.Details.Status = to
		if notes != "" {
			c.Details.Notes = notes
		}
		e.record(c, "status_changed", from, to, actor.ID, notes)
		return nil
	})
	if err != nil {
		return nil, err
	}

	zap.S().Infow("case status changed",
		"caseID", caseID,
		"from", from,
		"to", to,
		"actor", actor.ID)
	e.publishStatus(c, from, actor.ID)
	return c, nil
}

// AddWitnesses nominates witnesses while the case is accepted or already in
// nomination. The first nomination moves an accepted case to witness_nomination.
func (e *Engine) AddWitnesses(ctx context.Context, caseID string, witnesses []WitnessInput, actor Actor) (*models.Case, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	var problems []string
	if len(witnesses) == 0 {
		problems = append(problems, "at least one witness is required")
	}
	for i, w := range witnesses {
		problems = append(problems, w.validate(i)...)
	}

	var from models.CaseStatus
	c, err := e.mutate(ctx, caseID, func(c *models.Case) error {
		from = c.Details.Status
		if from != models.StatusAccepted && from != models.StatusWitnessNomination {
			return fmt.Errorf("cannot add witnesses while %s: %w", from, ErrInvalidState)
		}
		if len(problems) > 0 {
			return validationError(problems)
		}
		for _, w := range witnesses {
			c.Details.Witnesses = append(c.Details.Witnesses, models.Witness{
				ID:       primitive.NewObjectID(),
				Name:     strings.TrimSpace(w.Name),
				Email:    strings.ToLower(strings.TrimSpace(w.Email)),
				Phone:    strings.TrimSpace(w.Phone),
				Relation: strings.TrimSpace(w.Relation),
				Side:     w.Side,
			})
		}
		e.record(c, "witnesses_added", "", "", actor.ID, fmt.Sprintf("%d witness(es)", len(witnesses)))
		if from == models.StatusAccepted {
			e.setStatus(c, models.StatusWitnessNomination, "status_changed", actor.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.publishStatus(c, from, actor.ID)
	return c, nil
}

// RemoveWitness drops one witness. The case status is left alone.
func (e *Engine) RemoveWitness(ctx context.Context, caseID, witnessID string, actor Actor) (*models.Case, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	wid, err := parseID("witness", witnessID)
	if err != nil {
		return nil, err
	}
	return e.mutate(ctx, caseID, func(c *models.Case) error {
		for i, w := range c.Details.Witnesses {
			if w.ID == wid {
				c.Details.Witnesses = append(c.Details.Witnesses[:i:i], c.Details.Witnesses[i+1:]...)
				e.record(c, "witness_removed", "", "", actor.ID, w.Name)
				return nil
			}
		}
		return fmt.Errorf("witness %s: %w", witnessID, ErrNotFound)
	})
}

// NotifyOppositeParty issues a fresh consent link, replacing any earlier one, and
// hands it to the notifier once the case is saved. Delivery failures are logged only.
func (e *Engine) NotifyOppositeParty(ctx context.Context, caseID string, actor Actor) (*models.Case, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	var (
		from     models.CaseStatus
		token    string
		prevExp  *time.Time
		replaced bool
	)
	c, err := e.mutate(ctx, caseID, func(c *models.Case) error {
		if !c.Details.OppositeParty.HasContact() {
			return ErrMissingContact
		}
		from = c.Details.Status

		tok, exp, err := e.Signer.Issue(c.ID.Hex(), e.ConsentValidDays)
		if err != nil {
			return fmt.Errorf("failed to issue consent token: %w", err)
		}
		token = tok

		prevExp, replaced = nil, false
		if prev := c.Details.Consent; prev != nil && prev.Token != nil && prev.Response == nil {
			prevExp, replaced = prev.ExpiresAt, true
		}
		c.Details.Consent = &models.Consent{Token: &tok, ExpiresAt: &exp}
		c.Details.OppositePartyNotified = true
		e.record(c, "opposite_party_notified", "", "", actor.ID, "")

		if from == models.StatusRegistered || from == models.StatusUnderReview {
			e.setStatus(c, models.StatusAwaitingResponse, "status_changed", actor.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if replaced {
		zap.S().Infow("replaced outstanding consent link",
			"caseID", caseID,
			"previousExpiry", prevExp)
	}
	e.publishStatus(c, from, actor.ID)

	invite := Invite{
		Email:         c.Details.OppositeParty.Email,
		Phone:         c.Details.OppositeParty.Phone,
		URL:           strings.TrimRight(e.ClientURL, "/") + "/consent/" + token,
		CaseNumber:    c.Details.CaseNumber,
		RecipientName: c.Details.OppositeParty.Name,
	}
	if e.Notifier != nil {
		if err := e.Notifier.Send(ctx, invite); err != nil {
			zap.S().Errorw("failed to deliver consent invite",
				"caseID", caseID,
				"caseNumber", c.Details.CaseNumber,
				"error", err)
		}
	}
	return c, nil
}

// ConsentView is what the opposite party sees before answering
type ConsentView struct {
	CaseNumber    string               `json:"caseNumber"`
	CaseType      string               `json:"caseType"`
	Description   string               `json:"description"`
	OppositeParty models.OppositeParty `json:"oppositeParty"`
	ExpiresAt     *time.Time           `json:"expiresAt"`
}

func (e *Engine) verifyToken(token string) (string, error) {
	caseID, err := e.Signer.Verify(token)
	if err != nil {
		if errors.Is(err, consent.ErrExpired) {
			return "", ErrExpired
		}
		return "", err
	}
	return caseID, nil
}

// checkConsent applies the single-use rules to the token stored on c
func (e *Engine) checkConsent(c *models.Case, token string) error {
	stored := c.Details.Consent
	if stored == nil {
		return ErrMismatch
	}
	if stored.Token == nil || *stored.Token == "" {
		if stored.Response != nil {
			return ErrAlreadyResponded
		}
		return ErrMismatch
	}
	if subtle.ConstantTimeCompare([]byte(*stored.Token), []byte(token)) != 1 {
		return ErrMismatch
	}
	if stored.Response != nil {
		return ErrAlreadyResponded
	}
	if stored.ExpiresAt != nil && e.now().After(*stored.ExpiresAt) {
		return ErrExpired
	}
	return nil
}

// ConsentDetails returns the case summary behind a consent link
func (e *Engine) ConsentDetails(ctx context.Context, token string) (*ConsentView, error) {
	caseID, err := e.verifyToken(token)
	if err != nil {
		return nil, err
	}
	c, err := e.Get(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if err := e.checkConsent(c, token); err != nil {
		return nil, err
	}
	return &ConsentView{
		CaseNumber:    c.Details.CaseNumber,
		CaseType:      c.Details.CaseType,
		Description:   c.Details.Description,
		OppositeParty: c.Details.OppositeParty,
		ExpiresAt:     c.Details.Consent.ExpiresAt,
	}, nil
}

// Consume records the opposite party's answer and burns the token
func (e *Engine) Consume(ctx context.Context, token, action string) (*models.Case, error) {
	var response string
	switch action {
	case "accept":
		response = models.ConsentAccepted
	case "decline":
		response = models.ConsentDeclined
	default:
		return nil, fmt.Errorf("%q: %w", action, ErrInvalidAction)
	}

	caseID, err := e.verifyToken(token)
	if err != nil {
		return nil, err
	}

	var from models.CaseStatus
	c, err := e.mutate(ctx, caseID, func(c *models.Case) error {
		if err := e.checkConsent(c, token); err != nil {
			return err
		}
		from = c.Details.Status

		now := e.now()
		resp := response
		c.Details.Consent.Response = &resp
		c.Details.Consent.RespondedAt = &now
		c.Details.Consent.Token = nil
		c.Details.OppositePartyResponse = response
		c.Details.OppositePartyResponseAt = &now
		e.record(c, "consent_"+response, "", "", "", "")

		switch {
		case response == models.ConsentAccepted && from == models.StatusAwaitingResponse:
			e.setStatus(c, models.StatusAccepted, "status_changed", "")
		case response == models.ConsentDeclined && from != models.StatusResolved && from != models.StatusUnresolved:
			e.setStatus(c, models.StatusUnresolved, "status_changed", "")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	zap.S().Infow("opposite party responded",
		"caseID", caseID,
		"response", response,
		"status", c.Details.Status)
	e.publish(EventConsentResponded, ConsentResponse{
		CaseID:     caseID,
		CaseNumber: c.Details.CaseNumber,
		Response:   response,

		Complainant: c.Details.Complainant,
	})
	e.publishStatus(c, from, "")
	return c, nil
}
