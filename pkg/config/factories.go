package config

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/mitchellh/mapstructure"

	"github.com/squawkhq/squawk/internal/logger"
	"github.com/squawkhq/squawk/pkg/directory"
	badgerstore "github.com/squawkhq/squawk/pkg/directory/badger"
	memorystore "github.com/squawkhq/squawk/pkg/directory/memory"
	s3store "github.com/squawkhq/squawk/pkg/directory/s3"
)

// CreateDirectoryStore creates a directory store based on configuration.
//
// This factory uses the Type field to determine which implementation to
// create, then decodes the type-specific configuration from the
// corresponding map and passes it to the store's constructor.
func CreateDirectoryStore(ctx context.Context, cfg *Config) (directory.Store, error) {
	switch cfg.Directory.Type {
	case "memory":
		return createMemoryDirectoryStore()
	case "badger":
		return createBadgerDirectoryStore(ctx, cfg.Directory.Badger)
	case "s3":
		return createS3DirectoryStore(ctx, cfg.Directory.S3)
	default:
		return nil, fmt.Errorf("unknown directory store type: %s", cfg.Directory.Type)
	}
}

func createMemoryDirectoryStore() (directory.Store, error) {
	logger.Info("Memory directory store initialized")
	return memorystore.New(), nil
}

func createBadgerDirectoryStore(ctx context.Context, options map[string]any) (directory.Store, error) {
	type BadgerDirectoryConfig struct {
		DBPath string `mapstructure:"db_path"`
	}

	var storeCfg BadgerDirectoryConfig
	if err := mapstructure.Decode(options, &storeCfg); err != nil {
		return nil, fmt.Errorf("failed to decode badger directory store config: %w", err)
	}

	if storeCfg.DBPath == "" {
		return nil, fmt.Errorf("badger directory store: db_path is required")
	}

	store, err := badgerstore.New(ctx, badgerstore.Config{DBPath: storeCfg.DBPath})
	if err != nil {
		return nil, fmt.Errorf("failed to create badger directory store: %w", err)
	}

	logger.Info("Badger directory store initialized: path=%s", storeCfg.DBPath)
	return store, nil
}

func createS3DirectoryStore(ctx context.Context, options map[string]any) (directory.Store, error) {
	type S3DirectoryConfig struct {
		Bucket            string        `mapstructure:"bucket"`
		Region            string        `mapstructure:"region"`
		KeyPrefix         string        `mapstructure:"key_prefix"`
		Endpoint          string        `mapstructure:"endpoint"`
		AccessKeyID       string        `mapstructure:"access_key_id"`
		SecretAccessKey   string        `mapstructure:"secret_access_key"`
		MaxRetries        int           `mapstructure:"max_retries"`
		RequestsPerSecond uint          `mapstructure:"requests_per_second"`
		Burst             uint          `mapstructure:"burst"`
		OpTimeout         time.Duration `mapstructure:"op_timeout"`
	}

	var storeCfg S3DirectoryConfig
	if err := mapstructure.Decode(options, &storeCfg); err != nil {
		return nil, fmt.Errorf("failed to decode S3 directory store config: %w", err)
	}

	if storeCfg.Bucket == "" {
		return nil, fmt.Errorf("S3 directory store: bucket is required")
	}
	if storeCfg.Region == "" {
		return nil, fmt.Errorf("S3 directory store: region is required")
	}

	var configOptions []func(*awsConfig.LoadOptions) error
	configOptions = append(configOptions, awsConfig.WithRegion(storeCfg.Region))

	// Custom endpoint for S3-compatible stores (MinIO, Localstack, etc.)
	if storeCfg.Endpoint != "" {
		//nolint:staticcheck // TODO: migrate to BaseEndpoint when AWS SDK v2 stabilizes the new API
		customResolver := aws.EndpointResolverWithOptionsFunc(
			func(service, region string, options ...interface{}) (aws.Endpoint, error) {
				//nolint:staticcheck // TODO: migrate to BaseEndpoint when AWS SDK v2 stabilizes the new API
				return aws.Endpoint{
					URL:               storeCfg.Endpoint,
					HostnameImmutable: true,
					Source:            aws.EndpointSourceCustom,
				}, nil
			},
		)
		//nolint:staticcheck // TODO: migrate to BaseEndpoint when AWS SDK v2 stabilizes the new API
		configOptions = append(configOptions, awsConfig.WithEndpointResolverWithOptions(customResolver))
	}

	// Static credentials if provided, default credential chain otherwise.
	if storeCfg.AccessKeyID != "" && storeCfg.SecretAccessKey != "" {
		credProvider := credentials.NewStaticCredentialsProvider(
			storeCfg.AccessKeyID,
			storeCfg.SecretAccessKey,
			"",
		)
		configOptions = append(configOptions, awsConfig.WithCredentialsProvider(credProvider))
	}

	maxRetries := storeCfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = 10
	}
	configOptions = append(configOptions, awsConfig.WithRetryer(func() aws.Retryer {
		return retry.NewStandard(func(o *retry.StandardOptions) {
			o.MaxAttempts = maxRetries
		})
	}))

	awsCfg, err := awsConfig.LoadDefaultConfig(ctx, configOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		// Path-style addressing for MinIO/Localstack compatibility.
		if storeCfg.Endpoint != "" {
			o.UsePathStyle = true
		}
	})

	store, err := s3store.New(ctx, s3store.Config{
		Client:            client,
		Bucket:            storeCfg.Bucket,
		KeyPrefix:         storeCfg.KeyPrefix,
		RequestsPerSecond: storeCfg.RequestsPerSecond,
		Burst:             storeCfg.Burst,
		OpTimeout:         storeCfg.OpTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 directory store: %w", err)
	}

	logger.Info("S3 directory store initialized: bucket=%s, region=%s, prefix=%s",
		storeCfg.Bucket, storeCfg.Region, storeCfg.KeyPrefix)
	return store, nil
}
