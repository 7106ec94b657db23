package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/linesmerrill/resolveit-api/databases"
	"github.com/linesmerrill/resolveit-api/models"
)

// PanelService forms and activates the three person mediation panel of a case
type PanelService struct {
	Cases     CaseStore
	Panels    PanelStore
	Directory Directory
	Publisher Publisher

	// Tx is optional. Without it the panel insert and the case update are two
	// separate writes and a failure between them is reported as ErrInconsistent.
	Tx TxRunner

	Clock func() time.Time
}

// MemberInput names one panel member
type MemberInput struct {
	User string `json:"user"`
	Role string `json:"role"`
}

func (s *PanelService) now() time.Time {
	if s.Clock != nil {
		return s.Clock()
	}
	return time.Now()
}

func (s *PanelService) loadCase(ctx context.Context, id primitive.ObjectID) (*models.Case, error) {
	c, err := s.Cases.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("case %s: %w", id.Hex(), ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load case %s: %w", id.Hex(), err)
	}
	return c, nil
}

// checkMembers enforces one member per role and distinct users
func checkMembers(members []MemberInput) error {
	if len(members) != len(models.PanelRoles) {
		return validationError([]string{fmt.Sprintf("a panel needs exactly %d members, got %d", len(models.PanelRoles), len(members))})
	}
	var problems []string
	roles := map[string]int{}
	users := map[string]bool{}
	for i, m := range members {
		if strings.TrimSpace(m.User) == "" {
			problems = append(problems, fmt.Sprintf("members[%d].user is required", i))
		} else if users[m.User] {
			problems = append(problems, fmt.Sprintf("user %s is listed more than once", m.User))
		}
		users[m.User] = true
		roles[m.Role]++
	}
	for _, r := range models.PanelRoles {
		if roles[r] != 1 {
			problems = append(problems, fmt.Sprintf("role %s must appear exactly once", r))
		}
	}
	if len(problems) > 0 {
		return validationError(problems)
	}
	return nil
}

// CreatePanel validates the members, stores the panel and moves the case to
// panel_formation
func (s *PanelService) CreatePanel(ctx context.Context, caseID string, members []MemberInput, actor Actor) (*models.Panel, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	cid, err := parseID("case", caseID)
	if err != nil {
		return nil, err
	}
	c, err := s.loadCase(ctx, cid)
	if err != nil {
		return nil, err
	}

	from := c.Details.Status
	if from != models.StatusWitnessNomination && from != models.StatusPanelFormation {
		return nil, fmt.Errorf("cannot form a panel while %s: %w", from, ErrInvalidState)
	}
	if c.Details.PanelID != nil {
		return nil, fmt.Errorf("case %s already has panel %s: %w", caseID, c.Details.PanelID.Hex(), ErrConflict)
	}
	if existing, err := s.Panels.FindByCase(ctx, cid); err == nil && existing != nil {
		return nil, fmt.Errorf("case %s already has panel %s: %w", caseID, existing.ID.Hex(), ErrConflict)
	} else if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("failed to look up panel for case %s: %w", caseID, err)
	}

	if err := checkMembers(members); err != nil {
		return nil, err
	}
	ids := make([]string, len(members))
	for i, m := range members {
		ids[i] = m.User
	}
	roles, err := s.Directory.ResolveUsers(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve panel members: %w", err)
	}
	var problems []string
	for _, id := range ids {
		if roles[id] != models.UserRolePanelMember {
			problems = append(problems, fmt.Sprintf("user %s is not a panel member", id))
		}
	}
	if len(problems) > 0 {
		return nil, validationError(problems)
	}

	now := s.now()
	panel := &models.Panel{
		ID: primitive.NewObjectID(),
		Details: models.PanelDetails{
			Case:      cid,
			Status:    models.PanelCreated,
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
	for _, m := range members {
		panel.Details.Members = append(panel.Details.Members, models.PanelMember{User: m.User, Role: m.Role})
	}

	pid := panel.ID
	c.Details.PanelID = &pid
	c.Details.Status = models.StatusPanelFormation
	c.Details.UpdatedAt = now
	c.Details.History = append(c.Details.History, models.CaseHistoryEntry{
		Action:     "panel_created",
		FromStatus: from,
		ToStatus:   models.StatusPanelFormation,
		UserID:     actor.ID,
		Notes:      pid.Hex(),
		Timestamp:  now,
	})

	if err := s.writePanelAndCase(ctx, panel, c); err != nil {
		return nil, err
	}

	zap.S().Infow("panel created",
		"caseID", caseID,
		"panelID", pid.Hex(),
		"actor", actor.ID)
	if from != models.StatusPanelFormation {
		publishTo(s.Publisher, EventStatusChanged, StatusChange{
			CaseID:      caseID,
			CaseNumber:  c.Details.CaseNumber,
			From:        from,
			To:          models.StatusPanelFormation,
			Actor:       actor.ID,
			Complainant: c.Details.Complainant,
		})
	}
	return panel, nil
}

func (s *PanelService) writePanelAndCase(ctx context.Context, panel *models.Panel, c *models.Case) error {
	write := func(ctx context.Context) error {
		if err := s.Panels.Insert(ctx, panel); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return fmt.Errorf("case %s already has a panel: %w", c.ID.Hex(), ErrConflict)
			}
			return fmt.Errorf("failed to insert panel: %w", err)
		}
		return s.Cases.Save(ctx, c)
	}

	if s.Tx != nil {
		err := s.Tx.WithTransaction(ctx, write)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, databases.ErrStaleVersion):
			return fmt.Errorf("case %s changed while forming the panel: %w", c.ID.Hex(), ErrConflict)
		default:
			return err
		}
	}

	if err := s.Panels.Insert(ctx, panel); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("case %s already has a panel: %w", c.ID.Hex(), ErrConflict)
		}
		return fmt.Errorf("failed to insert panel: %w", err)
	}
	if err := s.Cases.Save(ctx, c); err != nil {
		zap.S().Errorw("panel/case inconsistency",
			"caseID", c.ID.Hex(),
			"panelID", panel.ID.Hex(),
			"error", err)
		return fmt.Errorf("panel %s stored but case %s not updated: %w", panel.ID.Hex(), c.ID.Hex(), ErrInconsistent)
	}
	return nil
}

// ActivatePanel starts mediation. A case still in panel_formation moves to
// mediation_in_progress.
func (s *PanelService) ActivatePanel(ctx context.Context, panelID string, actor Actor) (*models.Panel, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	pid, err := parseID("panel", panelID)
	if err != nil {
		return nil, err
	}

	for attempt := 1; attempt <= saveAttempts; attempt++ {
		panel, err := s.Panels.FindByID(ctx, pid)
		if err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return nil, fmt.Errorf("panel %s: %w", panelID, ErrNotFound)
			}
			return nil, fmt.Errorf("failed to load panel %s: %w", panelID, err)
		}
		c, err := s.loadCase(ctx, panel.Details.Case)
		if err != nil {
			return nil, err
		}

		now := s.now()
		from := c.Details.Status
		panel.Details.Status = models.PanelActive
		panel.Details.UpdatedAt = now
		if from == models.StatusPanelFormation {
			c.Details.Status = models.StatusMediationInProgress
		}
		c.Details.UpdatedAt = now
		c.Details.History = append(c.Details.History, models.CaseHistoryEntry{
			Action:     "panel_activated",
			FromStatus: from,
			ToStatus:   c.Details.Status,
			UserID:     actor.ID,
			Notes:      panelID,
			Timestamp:  now,
		})

		write := func(ctx context.Context) error {
			if err := s.Cases.Save(ctx, c); err != nil {
				return err
			}
			return s.Panels.Save(ctx, panel)
		}
		if s.Tx != nil {
			err = s.Tx.WithTransaction(ctx, write)
		} else {
			err = write(ctx)
		}
		if errors.Is(err, databases.ErrStaleVersion) {
			zap.S().Debugw("panel or case changed while activating, retrying",
				"panelID", panelID,
				"attempt", attempt)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to activate panel %s: %w", panelID, err)
		}

		zap.S().Infow("panel activated",
			"panelID", panelID,
			"caseID", c.ID.Hex(),
			"actor", actor.ID)
		if from != c.Details.Status {
			publishTo(s.Publisher, EventStatusChanged, StatusChange{
				CaseID:      c.ID.Hex(),
				CaseNumber:  c.Details.CaseNumber,
				From:        from,
				To:          c.Details.Status,
				Actor:       actor.ID,
				Complainant: c.Details.Complainant,
			})
		}
		return panel, nil
	}
	return nil, fmt.Errorf("panel %s kept changing while activating: %w", panelID, ErrConflict)
}

// CandidateMembers lists the accounts that can sit on a panel. A non-empty role
// keeps members whose preferred panel role is that role or unset.
func (s *PanelService) CandidateMembers(ctx context.Context, role string) ([]models.PanelCandidate, error) {
	if role != "" && !oneOf(role, models.PanelRoles) {
		return nil, validationError([]string{"role must be one of: " + strings.Join(models.PanelRoles, ", ")})
	}
	users, err := s.Directory.FindByRole(ctx, models.UserRolePanelMember)
	if err != nil {
		return nil, fmt.Errorf("failed to list panel members: %w", err)
	}
	out := make([]models.PanelCandidate, 0, len(users))
	for _, u := range users {
		if role != "" && u.Details.PanelRole != "" && u.Details.PanelRole != role {
			continue
		}
		out = append(out, models.PanelCandidate{
			ID:        u.ID.Hex(),
			Name:      u.Details.Name,
			Email:     u.Details.Email,
			PanelRole: u.Details.PanelRole,
		})
	}
	return out, nil
}

func publishTo(p Publisher, event string, payload interface{}) {
	if p == nil {
		return
	}
	if err := p.Publish(event, payload); err != nil {
		zap.S().Warnw("failed to publish case event",
			"event", event,
			"error", err)
	}
}
