package main

import (
	"fmt"

	gogithub "github.com/google/go-github/v62/github"
	"github.com/spf13/cobra"

	"fork-harvester/internal/events"
	"fork-harvester/internal/github"
	"fork-harvester/internal/output"
)

func newCollectCmd(a *app) *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "collect OWNER/NAME",
		Short: "List the forks of a repository and write them as fork events",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			if err := a.cfg.RequireToken(); err != nil {
				return err
			}
			owner, name, err := events.SplitRepo(args[0])
			if err != nil {
				return err
			}

			lister, err := github.NewForkLister(a.githubOptions(), a.logger)
			if err != nil {
				return err
			}
			out, err := output.CreateLines(outPath)
			if err != nil {
				return err
			}
			defer closeWith(&err, out)

			parent := owner + "/" + name
			total, err := lister.ListForks(cmd.Context(), owner, name, func(page []*gogithub.Repository) error {
				lines := make([][]byte, 0, len(page))
				for _, forkee := range page {
					line, err := events.Encode(parent, forkee)
					if err != nil {
						return fmt.Errorf("encode fork %s: %w", forkee.GetFullName(), err)
					}
					lines = append(lines, line)
				}
				return out.WriteLines(lines)
			})
			if err != nil {
				return err
			}

			a.logger.Info("Collected forks", "parent", parent, "forks", total, "output", outPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outPath, "out", "o", "forked.json", "fork event lines to write")
	addGitHubFlags(cmd)
	return cmd
}
