package protocol

import (
	"context"
	"time"

	"github.com/datazip-inc/kvrdd/constants"
	"github.com/datazip-inc/kvrdd/pkg/kv/store"
	"github.com/datazip-inc/kvrdd/utils"
	"github.com/datazip-inc/kvrdd/utils/logger"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"
)

var config *Config

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "check store connectivity",
	PreRunE: func(_ *cobra.Command, _ []string) error {
		return setupConfig()
	},
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := withTimeout(cmd.Context(), constants.DefaultCheckTimeout)
		defer cancel()

		opened, err := store.Open(ctx, config.Store)
		if err != nil {
			return err
		}

		var result *multierror.Error
		if err := opened.Ping(ctx); err != nil {
			result = multierror.Append(result, err)
		}
		if err := opened.Close(); err != nil {
			result = multierror.Append(result, err)
		}
		if err := result.ErrorOrNil(); err != nil {
			return err
		}
		logger.Infof("%s store is reachable", opened.Type())
		return nil
	},
}

func setupConfig() error {
	loaded, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	config = loaded
	return nil
}

// withTimeout applies --timeout when set, otherwise fallback
func withTimeout(ctx context.Context, fallback time.Duration) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	duration := utils.Ternary(timeout == -1, fallback, time.Duration(timeout)*time.Second).(time.Duration)
	return context.WithTimeout(ctx, duration)
}
