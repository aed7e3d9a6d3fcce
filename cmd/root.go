package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mirrorhop/mirrorhop/internal/utils"
	"github.com/mirrorhop/mirrorhop/pkg/eventlog"
	"github.com/mirrorhop/mirrorhop/pkg/probe"
	"github.com/mirrorhop/mirrorhop/pkg/scanner"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "mirrorhop",
	Short: "Find the freshest live mirror among date-rotated domains.",
	Long: `mirrorhop probes a handful of date-derived candidate hosts, picks the most
recent one that is up and serving a real page, and hands it out as a redirect,
as JSON or on the command line.`,
	SilenceUsage: true,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.mirrorhop.yaml)")

	// Global flags
	rootCmd.PersistentFlags().StringP("loglevel", "l", "info", "Set log level. Available: debug, info, warn, error, fatal")
	rootCmd.PersistentFlags().String("dbpath", "", "Path to the scan history SQLite file (default is ~/.config/mirrorhop/history.sqlite)")
	viper.BindPFlag("dbpath", rootCmd.PersistentFlags().Lookup("dbpath"))

	setDefaults()
}

func setDefaults() {
	def := scanner.DefaultOptions()
	viper.SetDefault("template", def.Template)
	viper.SetDefault("window", def.Window)
	viper.SetDefault("status_timeout", def.Probe.StatusTimeout.String())
	viper.SetDefault("body_timeout", def.Probe.BodyTimeout.String())
	viper.SetDefault("min_bytes", def.Probe.MinBytes)
	viper.SetDefault("cache", false)
	viper.SetDefault("max_logs", eventlog.DefaultMaxLogs)
	viper.SetDefault("listen", ":9999")
	viper.SetDefault("poll_interval", "0s")
	viper.SetDefault("dbpath", "")
	viper.SetDefault("auth.username", "")
	viper.SetDefault("auth.password", "")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		viper.AddConfigPath(home)
		viper.SetConfigName(".mirrorhop")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("mirrorhop")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok && cfgFile == "" {
			// Config file not found; create it with defaults.
			home, _ := homedir.Dir()
			configPath := home + "/.mirrorhop.yaml"
			if err := viper.SafeWriteConfigAs(configPath); err != nil {
				fmt.Printf("Error creating config file: %s\n", err)
			}
		}
	}

	// Init log library
	levelString, _ := rootCmd.PersistentFlags().GetString("loglevel")
	if err := utils.SetLogLevel(levelString); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// loadOptions builds scanner options from viper.
func loadOptions() (scanner.Options, error) {
	opts := scanner.Options{
		Template: viper.GetString("template"),
		Window:   viper.GetInt("window"),
		Probe: probe.Config{
			StatusTimeout: viper.GetDuration("status_timeout"),
			BodyTimeout:   viper.GetDuration("body_timeout"),
			MinBytes:      viper.GetInt64("min_bytes"),
			ChunkSize:     probe.DefaultConfig().ChunkSize,
		},
		CacheEnabled: viper.GetBool("cache"),
		MaxLogs:      viper.GetInt("max_logs"),
	}
	if err := opts.Validate(); err != nil {
		return scanner.Options{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return opts, nil
}
