package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mirrorhop/mirrorhop/internal/server"
	"github.com/mirrorhop/mirrorhop/internal/utils"
	"github.com/mirrorhop/mirrorhop/pkg/polling"
	"github.com/mirrorhop/mirrorhop/pkg/scanner"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the redirect and check web server",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := loadOptions()
		if err != nil {
			return err
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

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		srv := server.New(svc, viper.GetString("auth.username"), viper.GetString("auth.password"))
		srv.Log = utils.Log

		if interval := viper.GetDuration("poll_interval"); interval > 0 {
			if !opts.CacheEnabled {
				utils.Log.Warn("poll_interval is set but the cache is disabled; background scans will not be served")
			}
			poller := &polling.Poller{Refresher: svc, Interval: interval, Log: utils.Log}
			srv.Poller = poller
			go poller.Run(ctx)
		}

		utils.Log.Infof("Scanning %d candidates from %s (cache %v)", opts.Window, opts.Template, opts.CacheEnabled)
		return srv.Start(ctx, viper.GetString("listen"))
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("listen", ":9999", "HTTP listen address")
	serveCmd.Flags().Duration("poll-interval", 0, "Refresh the cached mirror in the background at this interval (0 to disable)")
	serveCmd.Flags().Bool("cache", false, "Serve the last found mirror without probing again")
	serveCmd.Flags().Bool("db", false, "Record every scan in the history database")
	viper.BindPFlag("listen", serveCmd.Flags().Lookup("listen"))
	viper.BindPFlag("poll_interval", serveCmd.Flags().Lookup("poll-interval"))
	viper.BindPFlag("cache", serveCmd.Flags().Lookup("cache"))
}
