package main

import (
	"encoding/json"
	"time"

	"github.com/spf13/cobra"

	"fork-harvester/internal/activity"
	"fork-harvester/internal/model"
	"fork-harvester/internal/output"
)

func newHealthyCmd(a *app) *cobra.Command {
	var inPath, activePath, healthyPath string

	cmd := &cobra.Command{
		Use:   "healthy",
		Short: "Split series or enriched records into active and healthy sets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			items, err := output.ReadArray(inPath)
			if err != nil {
				return err
			}

			active, healthy := classifyRecords(a, items, a.cfg.HealthyMinCommit)

			if err := output.WriteArray(activePath, active); err != nil {
				return err
			}
			if err := output.WriteArray(healthyPath, healthy); err != nil {
				return err
			}
			a.logger.Info("Classified records",
				"records", len(items), "active", len(active), "healthy", len(healthy),
				"healthy_min_commits", a.cfg.HealthyMinCommit)
			return nil
		},
	}

	cmd.Flags().StringVarP(&inPath, "in", "i", "commit_series.json", "JSON array of series or enriched records")
	cmd.Flags().StringVar(&activePath, "active-out", "active.json", "records with at least one commit month")
	cmd.Flags().StringVar(&healthyPath, "healthy-out", "healthy.json", "active records above the commit threshold")
	cmd.Flags().Int("healthy-min", 5, "commits in the first three months must exceed this")
	return cmd
}

// classifyRecords keeps each item verbatim, so enriched fields survive the
// pass. Items that are not records, such as failure placeholders, are
// neither active nor healthy.
func classifyRecords(a *app, items []json.RawMessage, minCommits int) (active, healthy []json.RawMessage) {
	active = make([]json.RawMessage, 0)
	healthy = make([]json.RawMessage, 0)

	for i, raw := range items {
		var rec model.SeriesRecord
		if err := json.Unmarshal(raw, &rec); err != nil || rec.ForkTime == "" {
			a.logger.Debug("Skipping item without a series", "index", i)
			continue
		}
		forkTime, err := time.Parse(time.RFC3339, rec.ForkTime)
		if err != nil {
			a.logger.Warn("Skipping item with unparseable fork time", "index", i, "fork_time", rec.ForkTime)
			continue
		}

		h := activity.Classify(rec.CommitTimes, forkTime, minCommits)
		if h.Active {
			active = append(active, raw)
		}
		if h.Healthy {
			healthy = append(healthy, raw)
		}
	}
	return active, healthy
}
