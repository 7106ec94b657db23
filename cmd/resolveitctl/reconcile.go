package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/linesmerrill/resolveit-api/lifecycle"
)

const commandTimeout = 5 * time.Minute

func reconcilePanelsCommand() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "reconcile-panels",
		Short: "Point cases at panels whose creation was interrupted",
		Long: "Walks every panel and makes sure its case references it. A case that\n" +
			"lost the write gets the panel id and moves to panel_formation.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()

			st, err := connect(ctx, configFrom(cmd))
			if err != nil {
				return err
			}
			defer st.close(ctx)
			return reconcilePanels(ctx, st, dryRun, cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what would change without writing")
	return cmd
}

func reconcilePanels(ctx context.Context, st *stores, dryRun bool, out io.Writer) error {
	svc := &lifecycle.PanelService{
		Cases:     st.cases,
		Panels:    st.panels,
		Directory: st.users,
	}
	panels, err := st.panels.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "panel.createdAt", Value: 1}}))
	if err != nil {
		return fmt.Errorf("failed to list panels: %w", err)
	}

	var (
		errs   []error
		counts = map[string]int{}
	)
	for _, p := range panels {
		rep, err := svc.ReconcilePanel(ctx, p, dryRun)
		if err != nil {
			zap.S().Errorw("failed to reconcile panel", "panelID", p.ID.Hex(), "error", err)
			errs = append(errs, err)
			continue
		}
		counts[rep.Outcome]++
		if rep.Outcome == lifecycle.ReconcileInSync {
			continue
		}
		fmt.Fprintf(out, "%s\tcase=%s\t%s\t%s -> %s\n", rep.PanelID, rep.CaseNumber, rep.Outcome, rep.From, rep.To)
	}

	verb := "repaired"
	if dryRun {
		verb = "would repair"
	}
	fmt.Fprintf(out, "%d panels checked: %s %d, %d orphaned, %d clashing\n",
		len(panels), verb, counts[lifecycle.ReconcileRepaired],
		counts[lifecycle.ReconcileOrphaned], counts[lifecycle.ReconcileClash])
	return errors.Join(errs...)
}
