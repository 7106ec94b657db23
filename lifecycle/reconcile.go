package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/linesmerrill/resolveit-api/models"
)

// Reconcile outcomes
const (
	ReconcileInSync   = "in_sync"
	ReconcileRepaired = "repaired"
	ReconcileOrphaned = "orphaned"
	ReconcileClash    = "clash"
)

// Repair describes what ReconcilePanel found for one panel
type Repair struct {
	PanelID    string
	CaseID     string
	CaseNumber string
	Outcome    string
	From       models.CaseStatus
	To         models.CaseStatus
}

// ReconcilePanel finishes a panel creation whose case write was lost: the case gets
// the panel id and, when still before panel_formation, moves there. Orphaned panels
// and cases that point at a different panel are reported and left alone. dryRun
// reports without writing.
func (s *PanelService) ReconcilePanel(ctx context.Context, panel models.Panel, dryRun bool) (Repair, error) {
	rep := Repair{
		PanelID: panel.ID.Hex(),
		CaseID:  panel.Details.Case.Hex(),
	}

	c, err := s.Cases.FindByID(ctx, panel.Details.Case)
	if errors.Is(err, mongo.ErrNoDocuments) {
		rep.Outcome = ReconcileOrphaned
		return rep, nil
	}
	if err != nil {
		return rep, fmt.Errorf("failed to load case %s: %w", rep.CaseID, err)
	}
	rep.CaseNumber = c.Details.CaseNumber
	rep.From = c.Details.Status
	rep.To = c.Details.Status

	switch {
	case c.Details.PanelID != nil && *c.Details.PanelID == panel.ID:
		rep.Outcome = ReconcileInSync
		return rep, nil
	case c.Details.PanelID != nil:
		rep.Outcome = ReconcileClash
		return rep, nil
	}

	rep.Outcome = ReconcileRepaired
	if rep.From == models.StatusAccepted || rep.From == models.StatusWitnessNomination {
		rep.To = models.StatusPanelFormation
	}
	if dryRun {
		return rep, nil
	}

	now := s.now()
	pid := panel.ID
	c.Details.PanelID = &pid
	c.Details.Status = rep.To
	c.Details.UpdatedAt = now
	c.Details.History = append(c.Details.History, models.CaseHistoryEntry{
		Action:     "panel_reconciled",
		FromStatus: rep.From,
		ToStatus:   rep.To,
		Notes:      rep.PanelID,
		Timestamp:  now,
	})
	if err := s.Cases.Save(ctx, c); err != nil {
		return rep, fmt.Errorf("failed to save case %s: %w", rep.CaseID, err)
	}
	zap.S().Infow("panel reconciled",
		"panelID", rep.PanelID,
		"caseID", rep.CaseID,
		"from", rep.From,
		"to", rep.To)
	if rep.From != rep.To {
		publishTo(s.Publisher, EventStatusChanged, StatusChange{
			CaseID:      rep.CaseID,
			CaseNumber:  rep.CaseNumber,
			From:        rep.From,
			To:          rep.To,
			Complainant: c.Details.Complainant,
		})
	}
	return rep, nil
}
