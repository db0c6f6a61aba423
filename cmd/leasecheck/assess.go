package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"leasecheck-backend/models"
	"leasecheck-backend/service"
)

func assessCmd(root *rootOptions) *cobra.Command {
	var (
		jurisdiction string
		asJSON       bool
	)

	cmd := &cobra.Command{
		Use:   "assess <file>",
		Short: "Assess a contract and print its report",
		Long: `Reads contract text from a file ("-" for stdin), assesses every clause and
prints the report. The jurisdiction is detected from the text unless given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}

			a, logger, err := root.newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			defer logger.Sync() //nolint:errcheck

			result, err := a.Service.Analyze(cmd.Context(), service.AnalyzeRequest{
				DocID:        docIDFor(args[0]),
				Text:         text,
				Jurisdiction: jurisdiction,
			})
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(result.Report)
			}
			printReport(cmd.OutOrStdout(), result.Report)
			return nil
		},
	}

	cmd.Flags().StringVarP(&jurisdiction, "jurisdiction", "j", "", "jurisdiction code (NSW, VIC, QLD, ...)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	return cmd
}

func readInput(stdin io.Reader, path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read contract: %w", err)
	}
	return string(data), nil
}

func docIDFor(path string) string {
	if path == "-" {
		return ""
	}
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

func printReport(w io.Writer, r *models.Report) {
	fmt.Fprintf(w, "%s\n", r.OverallVerdict)
	fmt.Fprintf(w, "Risk level: %s\n", r.RiskLevel)
	fmt.Fprintf(w, "Clauses reviewed: %d (legal %d, illegal %d, questionable %d)\n",
		r.Statistics.Total, r.Statistics.Legal, r.Statistics.Illegal, r.Statistics.Questionable)
	fmt.Fprintf(w, "Bond: %s\n", r.QuickFacts.Bond)

	if len(r.Issues) > 0 {
		fmt.Fprintln(w, "\nIssues:")
		for _, issue := range r.Issues {
			fmt.Fprintf(w, "  [%s] %s\n", issue.Severity, issue.Title)
			fmt.Fprintf(w, "      %s\n", issue.Description)
			if len(issue.Citations) > 0 {
				fmt.Fprintf(w, "      See: %s\n", strings.Join(issue.Citations, "; "))
			}
		}
	}

	for _, note := range r.Notes {
		fmt.Fprintf(w, "\nNote: %s\n", note)
	}
	fmt.Fprintf(w, "\n%s\n", r.Recommendation)
}
