package protocol

import (
	"fmt"
	"time"

	"github.com/datazip-inc/kvrdd/constants"
	"github.com/datazip-inc/kvrdd/pkg/kv/store"
	"github.com/datazip-inc/kvrdd/types"
	"github.com/datazip-inc/kvrdd/utils/logger"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"
)

var (
	putBucket   string
	putKey      string
	contentType string
	indexPairs  []string
)

var putCmd = &cobra.Command{
	Use:   "put VALUE",
	Short: "store a value under bucket/key with optional integer indexes",
	Args:  cobra.ExactArgs(1),
	PreRunE: func(_ *cobra.Command, _ []string) error {
		return setupConfig()
	},
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		indexes, err := parseIndexes(indexPairs)
		if err != nil {
			return err
		}
		obj := types.Object{
			Bucket:       putBucket,
			Key:          putKey,
			ContentType:  contentType,
			Value:        []byte(args[0]),
			Indexes:      indexes,
			LastModified: time.Now().UTC(),
		}
		if obj.ContentType == "" && obj.JSONValue() {
			obj.ContentType = "application/json"
		}

		ctx, cancel := withTimeout(cmd.Context(), constants.DefaultCheckTimeout)
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

		if err := opened.Put(ctx, obj); err != nil {
			return fmt.Errorf("failed to put %s/%s: %s", obj.Bucket, obj.Key, err)
		}
		logger.Infof("stored %s/%s with %d indexes", obj.Bucket, obj.Key, len(obj.Indexes))
		return nil
	},
}

func init() {
	putCmd.Flags().StringVarP(&putBucket, "bucket", "b", "", "(Required) Bucket to write to")
	putCmd.Flags().StringVarP(&putKey, "key", "k", "", "(Required) Key of the value")
	putCmd.Flags().StringVarP(&contentType, "content-type", "", "", "(Optional) Content type, detected for json values")
	putCmd.Flags().StringArrayVarP(&indexPairs, "index", "i", nil, "(Optional) Integer secondary index as name=value, repeatable")
	_ = putCmd.MarkFlagRequired("bucket")
	_ = putCmd.MarkFlagRequired("key")
}
