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
	"github.com/mirrorhop/mirrorhop/pkg/probe"
	"github.com/mirrorhop/mirrorhop/pkg/scanner"
)

// checkCmd runs a single scan round and prints the outcome of every candidate.
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Probe the candidate domains once and print the result",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := loadOptions()
		if err != nil {
			return err
		}
		// A single round never benefits from the cache.
		opts.CacheEnabled = false
		if window, _ := cmd.Flags().GetInt("window"); window > 0 {
			opts.Window = window
		}

		svcOpts := []scanner.Option{scanner.WithLogger(utils.Log)}
		recordHistory, _ := cmd.Flags().GetBool("db")
		if recordHistory {
			hist, err := openHistory(viper.GetString("dbpath"))
			if err != nil {
				return err
			}
			defer hist.Close()
			svcOpts = append(svcOpts, scanner.OnScan(hist.record))
		}

		svc, err := scanner.New(opts, svcOpts...)
		if err != nil {
			return err
		}

		res := svc.TriggerScan(context.Background())
		printOutcomes(os.Stdout, res.Outcomes)
		fmt.Println()

		if !res.Found() {
			return fmt.Errorf("no domain available among %d candidates", len(res.Candidates))
		}
		fmt.Printf("Selected %s (%s)\n", res.Selected, res.Duration.Round(time.Millisecond))
		return nil
	},
}

func printOutcomes(out io.Writer, outcomes []probe.Outcome) {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "URL\tRESULT\tSTATUS\tREAD\tELAPSED\tDETAIL\t")
	for _, o := range outcomes {
		status := "-"
		if o.StatusCode != 0 {
			status = fmt.Sprint(o.StatusCode)
		}
		detail := o.Title
		if !o.Accepted() {
			detail = o.ErrorString()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t\n",
			o.URL, o.Kind, status, humanize.IBytes(uint64(o.BytesRead)),
			o.Elapsed.Round(time.Millisecond), detail)
	}
	w.Flush()
}

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().IntP("window", "w", 0, "Number of days to look back (default from config)")
	checkCmd.Flags().Bool("db", false, "Record the scan in the history database")
}
