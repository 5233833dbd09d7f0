package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/sells-group/connections-insights/internal/ingest"
	"github.com/sells-group/connections-insights/internal/model"
	"github.com/sells-group/connections-insights/internal/store"
)

var (
	enqueueBucket string
	enqueueUpload string
)

var enqueueCmd = &cobra.Command{
	Use:   "enqueue <key>",
	Short: "Queue a stored document for ingestion",
	Long:  "Posts the document message onto the FIFO ingestion queue. With --upload, the local file is written to the blob store first under the given key.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		bucket := enqueueBucket
		if bucket == "" {
			bucket = cfg.Blob.DocumentBucket
		}
		key := args[0]

		if enqueueUpload != "" {
			data, err := os.ReadFile(enqueueUpload)
			if err != nil {
				return fmt.Errorf("read %s: %w", enqueueUpload, err)
			}
			if err := env.Blobs.Put(ctx, bucket, key, data); err != nil {
				return err
			}
		}

		body, err := json.Marshal(model.DocumentPayload{
			S3Bucket: bucket,
			S3Key:    url.QueryEscape(key),
		})
		if err != nil {
			return err
		}
		id, err := env.Store.Enqueue(ctx, store.DocumentQueue, model.IngestionGroup, string(body))
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "queued %s/%s as message %s\n", bucket, key, id)
		return nil
	},
}

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>",
	Short: "Ingest a local document end to end, without workers",
	Long:  "Uploads the file, queues it, then claims the message and runs the full pipeline in-process. Useful for local runs against the embedded graph.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		path := args[0]
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		bucket := cfg.Blob.DocumentBucket
		key := filepath.Base(path)
		if err := env.Blobs.Put(ctx, bucket, key, data); err != nil {
			return err
		}

		body, err := json.Marshal(model.DocumentPayload{S3Bucket: bucket, S3Key: key})
		if err != nil {
			return err
		}
		if _, err := env.Store.Enqueue(ctx, store.DocumentQueue, model.IngestionGroup, string(body)); err != nil {
			return err
		}

		msg, err := env.Store.Receive(ctx, store.DocumentQueue, ingest.DefaultVisibility, cfg.Ingest.MaxReceives)
		if err != nil {
			return err
		}
		if msg == nil {
			return fmt.Errorf("queued message was not claimable")
		}
		if err := env.Pipeline.Execute(ctx, msg); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "ingested %s\n", key)
		return nil
	},
}

func init() {
	enqueueCmd.Flags().StringVar(&enqueueBucket, "bucket", "", "source bucket (default: configured document bucket)")
	enqueueCmd.Flags().StringVar(&enqueueUpload, "upload", "", "local file to upload under the key before queueing")
	rootCmd.AddCommand(enqueueCmd)
	rootCmd.AddCommand(ingestCmd)
}
