// Package config resolves command settings from flags, environment
// variables and an optional config file.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/baldanca/mongo-ddb-export/attrvalue"
	"github.com/baldanca/mongo-ddb-export/exporter"
	"github.com/baldanca/mongo-ddb-export/sink"
	"github.com/baldanca/mongo-ddb-export/source"
)

// EnvPrefix prefixes every environment variable, e.g. MDE_OUTPUT.
const EnvPrefix = "MDE"

// Keys shared by flags, environment variables and config files.
const (
	KeyConfig         = "config"
	KeyURI            = "uri"
	KeyOutput         = "output"
	KeyExclude        = "exclude"
	KeyIDField        = "id-field"
	KeyFormat         = "format"
	KeySink           = "sink"
	KeyS3Bucket       = "s3-bucket"
	KeyS3Prefix       = "s3-prefix"
	KeyS3Region       = "s3-region"
	KeyS3Endpoint     = "s3-endpoint"
	KeySQSQueueURL    = "sqs-queue-url"
	KeyRetryAttempts  = "retry-attempts"
	KeyConnectTimeout = "connect-timeout"
	KeyBatchSize      = "batch-size"
	KeyMaxBatchBytes  = "max-batch-bytes"
	KeyMaxBatchItems  = "max-batch-items"
	KeyProgress       = "progress"
	KeyLogLevel       = "log-level"
	KeyLogFormat      = "log-format"
)

const (
	FormatNDJSON  = "ndjson"
	FormatParquet = "parquet"

	SinkFile = "file"
	SinkS3   = "s3"
)

// Settings is everything the export command needs.
type Settings struct {
	URI             string
	Output          string
	Exclude         []string
	IdentifierField string

	Format string
	Sink   string

	S3Bucket   string
	S3Prefix   string
	S3Region   string
	S3Endpoint string

	SQSQueueURL string

	RetryAttempts  int
	ConnectTimeout time.Duration
	BatchSize      int32
	MaxBatchBytes  int64
	MaxBatchItems  int
	Progress       int

	LogLevel  string
	LogFormat string
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyURI, source.DefaultMongoConfig.URI)
	v.SetDefault(KeyOutput, exporter.DefaultConfig.OutputDirectory)
	v.SetDefault(KeyExclude, exporter.DefaultConfig.ExcludedDatabaseNames)
	v.SetDefault(KeyIDField, attrvalue.DefaultIdentifierField)
	v.SetDefault(KeyFormat, FormatNDJSON)
	v.SetDefault(KeySink, SinkFile)
	v.SetDefault(KeyRetryAttempts, 3)
	v.SetDefault(KeyConnectTimeout, source.DefaultMongoConfig.ConnectTimeout)
	v.SetDefault(KeyBatchSize, 0)
	v.SetDefault(KeyMaxBatchBytes, exporter.DefaultConfig.MaxBatchBytes)
	v.SetDefault(KeyMaxBatchItems, exporter.DefaultConfig.MaxBatchItems)
	v.SetDefault(KeyProgress, exporter.DefaultConfig.ProgressEvery)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "text")
}

// BindEnv maps keys to MDE_* variables. The connection string also honours
// MONGODB_URI.
func BindEnv(v *viper.Viper) error {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v.BindEnv(KeyURI, EnvPrefix+"_URI", "MONGODB_URI")
}

// ReadFile loads path into v. With an empty path it looks for
// mongo-ddb-export.{yaml,json,...} in the working directory and ignores
// a missing file.
func ReadFile(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", path, err)
		}
		return nil
	}

	v.SetConfigName("mongo-ddb-export")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// Load resolves Settings from v and validates them.
func Load(v *viper.Viper) (Settings, error) {
	s := Settings{
		URI:             strings.TrimSpace(v.GetString(KeyURI)),
		Output:          v.GetString(KeyOutput),
		Exclude:         stringList(v.Get(KeyExclude)),
		IdentifierField: v.GetString(KeyIDField),
		Format:          strings.ToLower(v.GetString(KeyFormat)),
		Sink:            strings.ToLower(v.GetString(KeySink)),
		S3Bucket:        v.GetString(KeyS3Bucket),
		S3Prefix:        v.GetString(KeyS3Prefix),
		S3Region:        v.GetString(KeyS3Region),
		S3Endpoint:      v.GetString(KeyS3Endpoint),
		SQSQueueURL:     v.GetString(KeySQSQueueURL),
		RetryAttempts:   v.GetInt(KeyRetryAttempts),
		ConnectTimeout:  v.GetDuration(KeyConnectTimeout),
		BatchSize:       v.GetInt32(KeyBatchSize),
		MaxBatchBytes:   v.GetInt64(KeyMaxBatchBytes),
		MaxBatchItems:   v.GetInt(KeyMaxBatchItems),
		Progress:        v.GetInt(KeyProgress),
		LogLevel:        strings.ToLower(v.GetString(KeyLogLevel)),
		LogFormat:       strings.ToLower(v.GetString(KeyLogFormat)),
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

func (s Settings) Validate() error {
	switch s.Format {
	case FormatNDJSON, FormatParquet:
	default:
		return fmt.Errorf("format must be %s or %s, got %q", FormatNDJSON, FormatParquet, s.Format)
	}
	switch s.Sink {
	case SinkFile:
		if strings.TrimSpace(s.Output) == "" {
			return errors.New("output directory is required for the file sink")
		}
	case SinkS3:
		if strings.TrimSpace(s.S3Bucket) == "" {
			return errors.New("s3-bucket is required for the s3 sink")
		}
	default:
		return fmt.Errorf("sink must be %s or %s, got %q", SinkFile, SinkS3, s.Sink)
	}
	if s.IdentifierField == "" {
		return errors.New("id-field must not be empty")
	}
	if s.RetryAttempts < 0 {
		return errors.New("retry-attempts must be >= 0")
	}
	switch s.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("log-format must be text or json, got %q", s.LogFormat)
	}
	if _, ok := LogLevels[s.LogLevel]; !ok {
		return fmt.Errorf("unknown log-level %q", s.LogLevel)
	}
	if err := s.MongoConfig().Validate(); err != nil {
		return err
	}
	return s.ExporterConfig().Validate()
}

func (s Settings) MongoConfig() source.MongoConfig {
	cfg := source.DefaultMongoConfig
	cfg.URI = s.URI
	cfg.ConnectTimeout = s.ConnectTimeout
	cfg.BatchSize = s.BatchSize
	return cfg
}

func (s Settings) ExporterConfig() exporter.Config {
	return exporter.Config{
		SourceURI:             s.URI,
		OutputDirectory:       s.Output,
		ExcludedDatabaseNames: s.Exclude,
		IdentifierField:       s.IdentifierField,
		ProgressEvery:         s.Progress,
		MaxBatchBytes:         s.MaxBatchBytes,
		MaxBatchItems:         s.MaxBatchItems,
	}
}

// RetryPolicy is used for object-store writes only.
func (s Settings) RetryPolicy() exporter.SimpleRetry {
	return exporter.SimpleRetry{
		Attempts:  s.RetryAttempts + 1,
		BaseDelay: 200 * time.Millisecond,
		MaxDelay:  5 * time.Second,
		Jitter:    true,
		Retryable: sink.RetryableS3Error,
	}
}

// stringList accepts lists from config files and comma separated strings
// from flags or the environment.
func stringList(v any) []string {
	var raw []string
	switch x := v.(type) {
	case nil:
		return nil
	case string:
		raw = strings.Split(x, ",")
	case []string:
		raw = x
	case []any:
		for _, e := range x {
			raw = append(raw, fmt.Sprint(e))
		}
	default:
		raw = []string{fmt.Sprint(x)}
	}

	out := make([]string, 0, len(raw))
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
