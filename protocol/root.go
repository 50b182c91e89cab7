package protocol

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/datazip-inc/kvrdd/constants"
	"github.com/datazip-inc/kvrdd/utils"
	"github.com/datazip-inc/kvrdd/utils/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	// registers the parquet writer
	_ "github.com/datazip-inc/kvrdd/destination/parquet"
)

var (
	configPath            string
	destinationConfigPath string
	logLevel              string
	noSave                bool
	maxThreads            int
	partitions            int
	timeout               int64 // timeout in seconds

	commands = []*cobra.Command{}
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "kvrdd",
	Short: "query key/value buckets as partitioned collections",
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		viper.SetEnvPrefix(constants.EnvPrefix)
		viper.AutomaticEnv()

		viper.SetDefault(constants.ConfigFolder, os.TempDir())
		viper.SetDefault(constants.MaxThreads, constants.DefaultThreadCount)
		viper.SetDefault(constants.Partitions, constants.DefaultPartitionCount)
		if configPath != "not-set" {
			viper.Set(constants.ConfigFolder, filepath.Dir(configPath))
		}
		if logLevel != "" {
			viper.Set(constants.LogLevel, logLevel)
		}
		if noSave {
			viper.Set(constants.NoSave, true)
		}

		// logger uses CONFIG_FOLDER
		logger.Init()
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return cmd.Help()
		}
		if ok := utils.IsValidSubcommand(commands, args[0]); !ok {
			return fmt.Errorf("'%s' is an invalid command. Use 'kvrdd --help' to display usage guide", args[0])
		}
		return nil
	},
}

func init() {
	commands = append(commands, checkCmd, queryCmd, putCmd, loadCmd)
	RootCmd.AddCommand(commands...)
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "", "not-set", "(Required) Store config")
	RootCmd.PersistentFlags().StringVarP(&destinationConfigPath, "destination", "", "not-set", "(Optional) Destination config, json lines on stdout when not set")
	RootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "", "", "(Optional) Log level (debug, info, warn, error)")
	RootCmd.PersistentFlags().BoolVarP(&noSave, "no-save", "", false, "(Optional) Flag to skip logging artifacts in file")
	RootCmd.PersistentFlags().IntVarP(&maxThreads, "max-threads", "", 0, "(Optional) Partitions computed concurrently")
	RootCmd.PersistentFlags().IntVarP(&partitions, "partitions", "", 0, "(Optional) Partitions each query is split into")
	RootCmd.PersistentFlags().Int64VarP(&timeout, "timeout", "", -1, "(Optional) Timeout to override default timeouts (in seconds)")
	// Disable Cobra CLI's built-in usage and error handling
	RootCmd.SilenceUsage = true
	RootCmd.SilenceErrors = true
}

// Execute runs the root command and exits on failure
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		logger.Fatal(err)
	}
}
