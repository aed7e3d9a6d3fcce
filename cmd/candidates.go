package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mirrorhop/mirrorhop/pkg/candidates"
)

var candidatesCmd = &cobra.Command{
	Use:   "candidates",
	Short: "Print the candidate URLs for a date without probing them",
	RunE: func(cmd *cobra.Command, args []string) error {
		template := viper.GetString("template")
		if err := candidates.ValidateTemplate(template); err != nil {
			return fmt.Errorf("invalid template %q: %w", template, err)
		}

		ref := time.Now()
		if date, _ := cmd.Flags().GetString("date"); date != "" {
			parsed, err := time.ParseInLocation("2006-01-02", date, time.Local)
			if err != nil {
				return fmt.Errorf("invalid --date %q, expected YYYY-MM-DD", date)
			}
			ref = parsed
		}

		window, _ := cmd.Flags().GetInt("window")
		if window <= 0 {
			window = viper.GetInt("window")
		}

		printCandidates(os.Stdout, candidates.Generate(template, ref, window))
		return nil
	},
}

func printCandidates(w io.Writer, cands []candidates.Candidate) {
	for _, c := range cands {
		fmt.Fprintf(w, "%s\t%s\t%s\n", c.Date.Format("2006-01-02"), candidates.Token(c.Date), c.URL)
	}
}

func init() {
	rootCmd.AddCommand(candidatesCmd)
	candidatesCmd.Flags().String("date", "", "Reference date (YYYY-MM-DD, default today)")
	candidatesCmd.Flags().IntP("window", "w", 0, "Number of days to look back (default from config)")
}
