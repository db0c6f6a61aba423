package main

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"leasecheck-backend/service"
)

func askCmd(root *rootOptions) *cobra.Command {
	var jurisdiction, job string

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a tenancy question from legislation and an optional analysis job",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var jobID uuid.UUID
			if job != "" {
				id, err := uuid.Parse(job)
				if err != nil {
					return fmt.Errorf("invalid job id %q: %w", job, err)
				}
				jobID = id
			}

			a, logger, err := root.newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			defer logger.Sync() //nolint:errcheck

			result, err := a.Service.Ask(cmd.Context(), service.AskRequest{
				Question:     strings.Join(args, " "),
				Jurisdiction: jurisdiction,
				JobID:        jobID,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if result.Answer != "" {
				fmt.Fprintf(out, "%s\n\n", result.Answer)
			}
			if result.Degraded {
				fmt.Fprintln(out, "Legislation index unavailable; no passages retrieved.")
				return nil
			}
			if len(result.Passages) == 0 {
				fmt.Fprintln(out, "No relevant legislation found.")
				return nil
			}
			for i, p := range result.Passages {
				label := p.SourceCitation
				if p.CrossJurisdiction {
					label += " (other jurisdiction)"
				}
				fmt.Fprintf(out, "%d. %s [%.2f]\n   %s\n", i+1, label, p.Similarity, p.Text)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&jurisdiction, "jurisdiction", "j", "", "jurisdiction code (default from DEFAULT_JURISDICTION)")
	cmd.Flags().StringVar(&job, "job", "", "analysis job whose findings inform the answer")
	return cmd
}
