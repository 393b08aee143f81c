package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/baldanca/mongo-ddb-export/attrvalue"
	"github.com/baldanca/mongo-ddb-export/config"
	"github.com/baldanca/mongo-ddb-export/encoder"
	"github.com/baldanca/mongo-ddb-export/exporter"
	"github.com/baldanca/mongo-ddb-export/notify"
	"github.com/baldanca/mongo-ddb-export/sink"
	"github.com/baldanca/mongo-ddb-export/source"
	"github.com/baldanca/mongo-ddb-export/transformer"
)

func newExportCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export all collections (default command)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd, v)
		},
	}
	addExportFlags(cmd, v)
	return cmd
}

// addExportFlags registers export flags on cmd. Flags are bound to v when
// the command runs so the root and export commands can share keys.
func addExportFlags(cmd *cobra.Command, v *viper.Viper) {
	f := cmd.Flags()
	f.String(config.KeyURI, v.GetString(config.KeyURI), "MongoDB connection string")
	f.StringP(config.KeyOutput, "o", v.GetString(config.KeyOutput), "output directory for the file sink")
	f.StringSlice(config.KeyExclude, v.GetStringSlice(config.KeyExclude), "databases to skip")
	f.String(config.KeyIDField, v.GetString(config.KeyIDField), "identifier field left out of every record")
	f.String(config.KeyFormat, v.GetString(config.KeyFormat), "output format (ndjson|parquet)")
	f.String(config.KeySink, v.GetString(config.KeySink), "destination (file|s3)")
	f.String(config.KeyS3Bucket, "", "S3 bucket for the s3 sink")
	f.String(config.KeyS3Prefix, "", "S3 key prefix")
	f.String(config.KeyS3Region, "", "AWS region override")
	f.String(config.KeyS3Endpoint, "", "S3 endpoint override (path-style)")
	f.String(config.KeySQSQueueURL, "", "SQS queue notified after each collection")
	f.Int(config.KeyRetryAttempts, v.GetInt(config.KeyRetryAttempts), "retries for S3 writes")
	f.Duration(config.KeyConnectTimeout, v.GetDuration(config.KeyConnectTimeout), "MongoDB connect timeout")
	f.Int32(config.KeyBatchSize, 0, "MongoDB cursor batch size (0 = server default)")
	f.Int64(config.KeyMaxBatchBytes, v.GetInt64(config.KeyMaxBatchBytes), "flush after this many source bytes")
	f.Int(config.KeyMaxBatchItems, v.GetInt(config.KeyMaxBatchItems), "flush after this many records (0 = no limit)")
	f.Int(config.KeyProgress, v.GetInt(config.KeyProgress), "log progress every N documents (0 = off)")
}

func runExport(cmd *cobra.Command, v *viper.Viper) error {
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	if err := config.ReadFile(v, v.GetString(config.KeyConfig)); err != nil {
		return err
	}
	s, err := config.Load(v)
	if err != nil {
		return err
	}

	logger := config.NewLogger(cmd.ErrOrStderr(), s.LogLevel, s.LogFormat)
	slog.SetDefault(logger)

	ctx := cmd.Context()

	var awsCfg aws.Config
	if s.Sink == config.SinkS3 || s.SQSQueueURL != "" {
		awsCfg, err = loadAWSConfig(ctx, s)
		if err != nil {
			return err
		}
	}

	snk, closeSink, err := openSink(s, awsCfg)
	if err != nil {
		return err
	}
	defer closeSink()

	catalog, err := source.Connect(ctx, s.MongoConfig(), logger)
	if err != nil {
		return err
	}

	exp, err := exporter.New[attrvalue.Record](
		s.ExporterConfig(),
		catalog,
		transformer.NewDynamoDB(s.IdentifierField, logger),
		newEncoder(s.Format),
		snk,
	)
	if err != nil {
		_ = catalog.Close(context.WithoutCancel(ctx))
		return err
	}
	exp.SetLogger(logger)
	if s.Sink == config.SinkS3 {
		exp.SetRetryPolicy(s.RetryPolicy())
	}
	if s.SQSQueueURL != "" {
		exp.SetNotifier(notify.NewSQS(sqs.NewFromConfig(awsCfg), s.SQSQueueURL, notify.DefaultSQSConfig))
	}

	m, err := exp.Run(ctx)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(cmd.OutOrStdout(), "exported %d documents from %d collections (run %s, %d repaired)\n",
		m.Documents(), len(m.Collections), m.RunID, m.Repaired())
	return err
}

func loadAWSConfig(ctx context.Context, s config.Settings) (aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if s.S3Region != "" {
		opts = append(opts, awsconfig.WithRegion(s.S3Region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	return cfg, nil
}

func openSink(s config.Settings, awsCfg aws.Config) (sink.Sinkr, func(), error) {
	switch s.Sink {
	case config.SinkS3:
		client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			if s.S3Endpoint != "" {
				o.BaseEndpoint = aws.String(s.S3Endpoint)
				o.UsePathStyle = true
			}
		})
		return sink.NewS3(client, s.S3Bucket, s.S3Prefix), func() {}, nil
	default:
		fs, err := sink.NewFile(s.Output)
		if err != nil {
			return nil, nil, err
		}
		return fs, func() { _ = fs.Close() }, nil
	}
}

func newEncoder(format string) encoder.Encoder[attrvalue.Record] {
	if format == config.FormatParquet {
		return encoder.ParquetEncoder[attrvalue.Record]{}
	}
	return encoder.NDJSONEncoder[attrvalue.Record]{}
}
