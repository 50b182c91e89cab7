package protocol

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/datazip-inc/kvrdd/constants"
	"github.com/datazip-inc/kvrdd/pkg/kv/store"
	"github.com/datazip-inc/kvrdd/pkg/parser"
	"github.com/datazip-inc/kvrdd/types"
	"github.com/datazip-inc/kvrdd/utils/logger"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"
)

var (
	loadFile     string
	parserConfig = parser.Config{}
)

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "store every record of a json, csv or exported parquet file",
	Args:  cobra.NoArgs,
	PreRunE: func(_ *cobra.Command, _ []string) error {
		if err := setupConfig(); err != nil {
			return err
		}
		return parserConfig.Validate()
	},
	RunE: func(cmd *cobra.Command, _ []string) (err error) {
		ctx, cancel := withTimeout(cmd.Context(), constants.DefaultQueryTimeout)
		defer cancel()

		opened, err := store.Open(ctx, config.Store)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := opened.Close(); cerr != nil {
				err = multierror.Append(err, fmt.Errorf("failed to close store: %s", cerr)).ErrorOrNil()
			}
		}()

		return loadObjects(ctx, opened, loadFile, parserConfig)
	},
}

func loadObjects(ctx context.Context, target store.Store, path string, config parser.Config) error {
	fileParser, err := parser.New(config)
	if err != nil {
		return err
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %s", path, err)
	}
	defer file.Close()

	start := time.Now()
	stored := 0
	err = fileParser.StreamObjects(ctx, file, func(ctx context.Context, obj types.Object) error {
		if err := target.Put(ctx, obj); err != nil {
			return fmt.Errorf("failed to put %s/%s: %s", obj.Bucket, obj.Key, err)
		}
		stored++
		return nil
	})
	if err != nil {
		return err
	}
	logger.Infof("loaded %d objects from %s in %s", stored, path, time.Since(start).Round(time.Millisecond))
	return nil
}

func init() {
	loadCmd.Flags().StringVarP(&loadFile, "file", "f", "", "(Required) File to load")
	loadCmd.Flags().StringVarP((*string)(&parserConfig.Format), "format", "", string(parser.JSON), "(Optional) File format: json, csv or parquet")
	loadCmd.Flags().StringVarP(&parserConfig.Bucket, "bucket", "b", "", "Bucket to store objects in, parquet exports keep their bucket when empty")
	loadCmd.Flags().StringVarP(&parserConfig.KeyField, "key-field", "", "", "Record field holding the key, required for json and csv")
	loadCmd.Flags().StringSliceVarP(&parserConfig.IndexFields, "index-field", "", nil, "(Optional) Record fields stored as integer secondary indexes")
	loadCmd.Flags().StringVarP(&parserConfig.CSV.Delimiter, "delimiter", "", ",", "(Optional) CSV delimiter")
	loadCmd.Flags().BoolVarP(&parserConfig.CSV.HasHeader, "has-header", "", true, "(Optional) CSV files start with a header row")
	loadCmd.Flags().IntVarP(&parserConfig.CSV.SkipRows, "skip-rows", "", 0, "(Optional) CSV rows skipped before the header")
	_ = loadCmd.MarkFlagRequired("file")
}
