package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	inquiryScope       string
	inquiryCategory    string
	inquiryTitle       string
	inquiryDescription string
)

var inquiryCmd = &cobra.Command{
	Use:   "inquiry",
	Short: "Inquiry tools",
}

var inquiryDuplicatesCmd = &cobra.Command{
	Use:   "duplicates",
	Short: "Find active inquiries similar to a proposed one",
	Long: `Rank the active inquiries of a scope and category by similarity to a
proposed title and description. Matches above the duplicate threshold
would require a justification to create the inquiry.

Example:
  veracity inquiry duplicates --scope water --title "Does water boil at 100C?"`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if inquiryScope == "" || inquiryTitle == "" {
			return errors.New("--scope and --title are required")
		}
		ctx := context.Background()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		report, err := a.engine.FindDuplicates(ctx, inquiryTitle, inquiryDescription, inquiryScope, inquiryCategory)
		if err != nil {
			return err
		}
		if report.Degraded {
			fmt.Fprintf(os.Stderr, "⚠️  Duplicate check degraded: %s\n", report.Reason)
		}
		for _, m := range report.Matches {
			marker := " "
			if m.Similarity > report.Threshold {
				marker = "!"
			}
			fmt.Fprintf(os.Stderr, "%s %.3f  %s  %s\n", marker, m.Similarity, m.ExistingID, m.Title)
		}
		return printJSON(report)
	},
}

func init() {
	rootCmd.AddCommand(inquiryCmd)
	inquiryCmd.AddCommand(inquiryDuplicatesCmd)

	f := inquiryDuplicatesCmd.Flags()
	f.StringVar(&inquiryScope, "scope", "", "scope id")
	f.StringVar(&inquiryCategory, "category", "", "category (default: default)")
	f.StringVar(&inquiryTitle, "title", "", "proposed title")
	f.StringVar(&inquiryDescription, "description", "", "proposed description")
}
