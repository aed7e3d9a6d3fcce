package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mirrorhop/mirrorhop/internal/utils"
	"github.com/mirrorhop/mirrorhop/pkg/storage"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded scans, or the outcomes of one scan",
	RunE: func(cmd *cobra.Command, args []string) error {
		dbPath, err := utils.GetAbsDBPath(viper.GetString("dbpath"))
		if err != nil {
			return err
		}
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return fmt.Errorf("database file not found: %s", dbPath)
		}

		db, err := storage.Open(dbPath)
		if err != nil {
			return err
		}
		defer db.Close()

		ctx := context.Background()
		if scanID, _ := cmd.Flags().GetString("scan"); scanID != "" {
			outcomes, err := db.ListOutcomes(ctx, scanID)
			if err != nil {
				return err
			}
			if len(outcomes) == 0 {
				return fmt.Errorf("no outcomes recorded for scan %s", scanID)
			}
			printStoredOutcomes(os.Stdout, outcomes)
			return nil
		}

		limit, _ := cmd.Flags().GetInt("limit")
		scans, err := db.ListScans(ctx, limit)
		if err != nil {
			return err
		}
		if len(scans) == 0 {
			fmt.Println("No scans recorded yet.")
			return nil
		}
		printScans(os.Stdout, scans)
		return nil
	},
}

func printScans(out io.Writer, scans []storage.Scan) {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "SCAN\tSTARTED\tDAYS\tACCEPTED\tDURATION\tSELECTED\t")
	for _, s := range scans {
		selected := s.SelectedURL
		if selected == "" {
			selected = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%s\t\n",
			s.ID, s.StartedAt.Local().Format("2006-01-02 15:04:05"), s.WindowDays,
			s.Accepted, s.Duration.Round(time.Millisecond), selected)
	}
	w.Flush()
}

func printStoredOutcomes(out io.Writer, outcomes []storage.Outcome) {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "#\tURL\tRESULT\tSTATUS\tREAD\tELAPSED\tDETAIL\t")
	for _, o := range outcomes {
		detail := o.Title
		if o.Error != "" {
			detail = o.Error
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\t%s\t%s\t\n",
			o.Position, o.URL, o.Kind, o.StatusCode, humanize.IBytes(uint64(o.BytesRead)),
			o.Elapsed.Round(time.Millisecond), detail)
	}
	w.Flush()
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().String("scan", "", "Show the candidate outcomes of this scan id")
	historyCmd.Flags().IntP("limit", "n", 20, "Number of scans to list")
}
