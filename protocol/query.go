package protocol

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/datazip-inc/kvrdd/constants"
	"github.com/datazip-inc/kvrdd/destination"
	"github.com/datazip-inc/kvrdd/pkg/kv"
	"github.com/datazip-inc/kvrdd/pkg/kv/store"
	"github.com/datazip-inc/kvrdd/pkg/kv/typed"
	"github.com/datazip-inc/kvrdd/pkg/rdd"
	"github.com/datazip-inc/kvrdd/types"
	"github.com/datazip-inc/kvrdd/utils"
	"github.com/datazip-inc/kvrdd/utils/logger"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	bucket     string
	indexName  string
	rangeFrom  int64
	rangeTo    int64
	writerConf *types.WriterConfig
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "query a bucket and write the matching objects to the destination",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// cobra runs only the closest persistent pre-run
		if err := RootCmd.PersistentPreRunE(cmd, args); err != nil {
			return err
		}
		if err := setupConfig(); err != nil {
			return err
		}
		loaded, err := loadWriterConfig(destinationConfigPath)
		if err != nil {
			return err
		}
		writerConf = loaded
		return nil
	},
}

var queryRangeCmd = &cobra.Command{
	Use:   "range",
	Short: "objects whose integer secondary index lies in [from, to]",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runQuery(cmd.Context(), func(bucketRDD *typed.RDD[types.Row]) *typed.RDD[types.Row] {
			return bucketRDD.Query2iRange(indexName, rangeFrom, rangeTo)
		})
	},
}

var queryKeysCmd = &cobra.Command{
	Use:   "keys [key...]",
	Short: "objects stored under the given keys, in argument order",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runQuery(cmd.Context(), func(bucketRDD *typed.RDD[types.Row]) *typed.RDD[types.Row] {
			return bucketRDD.QueryBucketKeys(args...)
		})
	},
}

var queryAllCmd = &cobra.Command{
	Use:   "all",
	Short: "every object of the bucket, ordered by key",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runQuery(cmd.Context(), func(bucketRDD *typed.RDD[types.Row]) *typed.RDD[types.Row] {
			return bucketRDD.QueryAll()
		})
	},
}

func init() {
	queryCmd.PersistentFlags().StringVarP(&bucket, "bucket", "b", "", "(Required) Bucket to query")
	_ = queryCmd.MarkPersistentFlagRequired("bucket")

	queryRangeCmd.Flags().StringVarP(&indexName, "index", "i", "", "(Required) Integer secondary index")
	queryRangeCmd.Flags().Int64VarP(&rangeFrom, "from", "", 0, "Lower bound, inclusive")
	queryRangeCmd.Flags().Int64VarP(&rangeTo, "to", "", 0, "Upper bound, inclusive")
	_ = queryRangeCmd.MarkFlagRequired("index")
	_ = queryRangeCmd.MarkFlagRequired("from")
	_ = queryRangeCmd.MarkFlagRequired("to")

	queryCmd.AddCommand(queryRangeCmd, queryKeysCmd, queryAllCmd)
}

// resolvedSettings picks flag values first, then the config file, then
// environment and defaults
func resolvedSettings() (threads, parts int) {
	threads = utils.Ternary(maxThreads > 0, maxThreads, utils.Ternary(config.MaxThreads > 0, config.MaxThreads, viper.GetInt(constants.MaxThreads)).(int)).(int)
	parts = utils.Ternary(partitions > 0, partitions, utils.Ternary(config.Partitions > 0, config.Partitions, viper.GetInt(constants.Partitions)).(int)).(int)
	return threads, parts
}

func runQuery(parent context.Context, derive func(*typed.RDD[types.Row]) *typed.RDD[types.Row]) (err error) {
	ctx, cancel := withTimeout(parent, constants.DefaultQueryTimeout)
	defer cancel()

	threads, parts := resolvedSettings()

	opened, err := store.Open(ctx, config.Store)
	if err != nil {
		return err
	}
	connector := kv.NewConnector(opened, kv.WithPartitions(parts))

	writer, err := destination.NewWriter(ctx, writerConf)
	if err != nil {
		return multierror.Append(err, connector.Close()).ErrorOrNil()
	}

	defer func() {
		var result *multierror.Error
		if err != nil {
			result = multierror.Append(result, err)
		}
		if cerr := writer.Close(ctx); cerr != nil {
			result = multierror.Append(result, fmt.Errorf("failed to close writer: %s", cerr))
		}
		if cerr := connector.Close(); cerr != nil {
			result = multierror.Append(result, fmt.Errorf("failed to close store: %s", cerr))
		}
		err = result.ErrorOrNil()
	}()

	query := derive(typed.Bucket[types.Row](connector, bucket))
	handle := query.Handle()
	logger.Infof("running %s on bucket[%s] with %d partitions and %d threads", handle.Query(), bucket, parts, threads)

	if err := writer.Setup(ctx, filepath.Join(bucket, fmt.Sprint(handle.Fingerprint()))); err != nil {
		return fmt.Errorf("failed to setup writer: %s", err)
	}

	start := time.Now()
	rows, err := query.Collect(ctx, rdd.WithMaxThreads(threads))
	if err != nil {
		return err
	}
	if err := writer.Write(ctx, rows); err != nil {
		return fmt.Errorf("failed to write rows: %s", err)
	}
	logger.Infof("query[%s] returned %d objects in %s", handle.ID(), len(rows), time.Since(start).Round(time.Millisecond))
	return nil
}
