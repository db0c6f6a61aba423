package main

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"leasecheck-backend/models"
	"leasecheck-backend/rules"
)

func rulesCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Inspect and validate rule tables",
	}

	cmd.AddCommand(rulesValidateCmd())
	cmd.AddCommand(rulesShowCmd(root))
	return cmd
}

func rulesValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "Check a rule table YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			table, err := rules.LoadTable(f)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Rule table %s is valid (version %s)\n", args[0], table.Version())
			for _, j := range table.Jurisdictions() {
				status := "verified"
				if !j.Verified {
					status = "unverified"
				}
				fmt.Fprintf(out, "  %-4s %-28s %2d rules  %s\n", j.Code, j.Name, len(j.Rules), status)
			}
			return nil
		},
	}
}

func rulesShowCmd(root *rootOptions) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "show [jurisdiction]",
		Short: "Print the rules in effect",
		Long: `Prints the rules of the configured table (RULE_TABLE_PATH, or the built-in
table), or of --file. With a jurisdiction argument only that jurisdiction is shown;
unknown codes show the placeholder rules used for unverified jurisdictions.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := loadTableForShow(cmd, root, file)
			if err != nil {
				return err
			}

			var sets []*rules.JurisdictionRules
			if len(args) == 1 {
				jr, _ := table.Lookup(args[0])
				sets = append(sets, jr)
			} else {
				sets = table.Jurisdictions()
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "JURISDICTION\tCLAUSE\tRULE\tSEVERITY\tBASIS\n")
			for _, jr := range sets {
				for _, r := range jr.Rules {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", jr.Code, r.ClauseType, describeRule(r), r.Severity, r.LegalBasis)
				}
				categories := make([]string, 0, len(jr.ProhibitedTerms))
				for category := range jr.ProhibitedTerms {
					categories = append(categories, category)
				}
				sort.Strings(categories)
				for _, category := range categories {
					fmt.Fprintf(w, "%s\t%s\tprohibited term\t%s\t%s\n",
						jr.Code, category, models.RuleSeverityIllegal, jr.ProhibitedTerms[category])
				}
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "rule table YAML file to show instead of the configured one")
	return cmd
}

func loadTableForShow(cmd *cobra.Command, root *rootOptions, file string) (*rules.Table, error) {
	if file != "" {
		f, err := os.Open(file)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return rules.LoadTable(f)
	}

	a, logger, err := root.newApp(cmd.Context())
	if err != nil {
		return nil, err
	}
	defer a.Close()
	defer logger.Sync() //nolint:errcheck
	return a.Table, nil
}

func describeRule(r models.Rule) string {
	threshold := strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.2f", r.Threshold), "0"), ".")
	if r.Comparator == models.CompareFrequencyMax {
		return fmt.Sprintf("at most once per %s %s", threshold, r.Unit)
	}
	return fmt.Sprintf("%s %s %s", r.Comparator, threshold, r.Unit)
}
