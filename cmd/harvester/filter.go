package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"fork-harvester/internal/events"
	"fork-harvester/internal/github"
	"fork-harvester/internal/harvester"
	"fork-harvester/internal/output"
)

func newFilterCmd(a *app) *cobra.Command {
	var inPath, outPath string

	cmd := &cobra.Command{
		Use:   "filter",
		Short: "Keep forks with enough commits in their first three calendar months",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			if err := a.cfg.RequireToken(); err != nil {
				return err
			}
			in, err := openInput(inPath)
			if err != nil {
				return err
			}
			defer in.Close()

			out, err := output.CreateLines(outPath)
			if err != nil {
				return err
			}
			defer closeWith(&err, out)

			client := github.NewClient(a.githubOptions(), a.logger)
			qualifier := harvester.NewQualifier(client, a.cfg.MinCommits, a.logger)
			runner := harvester.NewRunner(a.batchOptions(), a.logger)

			stats, err := runner.Run(cmd.Context(), events.NewReader(in), qualifier.QualifyProcessor(), harvester.QualifiedLineEmitter(out))
			a.logger.Info("Filter finished",
				"processed", stats.Processed, "kept", out.Count(), "malformed", stats.Malformed,
				"min_commits", a.cfg.MinCommits, "output", outPath)
			if err != nil {
				return fmt.Errorf("filter stopped after %d batches: %w", stats.Batches, err)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&inPath, "in", "i", "forked.json", "fork event lines to read")
	cmd.Flags().StringVarP(&outPath, "out", "o", "filtered_forks.json", "qualifying event lines to write")
	cmd.Flags().Int("min-commits", 15, "minimum commits in the first three months, inclusive")
	addGitHubFlags(cmd)
	addBatchFlags(cmd)
	return cmd
}
