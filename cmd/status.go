package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mirrorhop/mirrorhop/internal/utils"
	"github.com/mirrorhop/mirrorhop/pkg/client"
)

// statusCmd asks a running mirrorhop server what it currently serves.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Query a running mirrorhop server",
	RunE: func(cmd *cobra.Command, args []string) error {
		serverURL, _ := cmd.Flags().GetString("server")
		showLogs, _ := cmd.Flags().GetBool("logs")

		c := client.New(serverURL,
			client.WithLogger(utils.Log),
			client.WithBasicAuth(viper.GetString("auth.username"), viper.GetString("auth.password")),
		)
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		if showLogs {
			entries, err := c.Logs(ctx)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "TIME\tLEVEL\tEVENT\tMESSAGE\t")
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t\n", humanize.Time(e.Timestamp), e.Level, e.Event, e.Message)
			}
			w.Flush()
			return nil
		}

		res, err := c.Check(ctx)
		if err != nil {
			return err
		}
		if !res.OK {
			return fmt.Errorf("%s reports no domain available", serverURL)
		}
		if res.Cached {
			fmt.Printf("%s (cached)\n", res.URL)
			return nil
		}
		fmt.Printf("%s (scan %s, %d candidates)\n", res.URL, res.ScanID, len(res.Outcomes))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().StringP("server", "s", "http://localhost:9999", "Base URL of the mirrorhop server")
	statusCmd.Flags().Bool("logs", false, "Print the server's event log instead of checking")
}
