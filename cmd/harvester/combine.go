package main

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"fork-harvester/internal/output"
)

func newCombineCmd(a *app) *cobra.Command {
	var outPath, pattern string

	cmd := &cobra.Command{
		Use:   "combine [FILE...]",
		Short: "Concatenate numbered JSON array files into one array",
		RunE: func(cmd *cobra.Command, args []string) error {
			paths := append([]string(nil), args...)
			if pattern != "" {
				matches, err := filepath.Glob(pattern)
				if err != nil {
					return fmt.Errorf("bad pattern %q: %w", pattern, err)
				}
				paths = append(paths, matches...)
			}
			if len(paths) == 0 {
				return errors.New("no input files: pass files or --glob")
			}

			items, err := output.Combine(paths)
			if err != nil {
				return err
			}
			if err := output.WriteArray(outPath, items); err != nil {
				return err
			}

			a.logger.Info("Combined files",
				"files", len(paths), "items", len(items), "duplicates", output.CountDuplicates(items), "output", outPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outPath, "out", "o", "combined.json", "JSON array to write")
	cmd.Flags().StringVar(&pattern, "glob", "", "also combine files matching this pattern, e.g. 'enriched_*.json'")
	return cmd
}
