// Package s3 implements the remote-cloud provider over an
// S3-compatible object store (AWS S3, MinIO). Files map to objects
// under a per-workspace key prefix; directories map to zero-byte
// marker objects with a trailing slash.
package s3

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/chyke007/boltfs"
	"github.com/gostratum/core/logx"
)

// Session wraps one remote workspace connection: the configured client
// plus the workspace namespace all keys are scoped under.
type Session struct {
	client    *s3.Client
	config    *boltfs.Config
	logger    logx.Logger
	id        string
	workspace string
}

// NewSession builds the client, scopes a workspace namespace and
// validates bucket access. On a validation failure the partial session
// is returned alongside the error so the caller can keep it for
// unhealthy-state reporting.
func NewSession(ctx context.Context, cfg *boltfs.Config, logger logx.Logger) (*Session, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if logger == nil {
		logger = logx.NewNoopLogger()
	}

	logger.Debug("Creating remote session", boltfs.ArgsToFields(
		"bucket", cfg.Bucket,
		"region", cfg.Region,
		"endpoint", cfg.Endpoint,
		"use_path_style", cfg.UsePathStyle,
	)...)

	awsConfig, err := buildAWSConfig(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.UsePathStyle {
			o.UsePathStyle = true
		}
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.GetEndpointURL())
		}

		o.RetryMaxAttempts = cfg.MaxRetries
		o.RetryMode = aws.RetryModeAdaptive

		o.HTTPClient = &http.Client{
			Timeout: cfg.RequestTimeout,
		}
	})

	workspace := cfg.WorkspaceID
	if workspace == "" {
		workspace = "ws-" + uuid.NewString()
	}

	session := &Session{
		client:    client,
		config:    cfg,
		logger:    logger,
		id:        uuid.NewString(),
		workspace: workspace,
	}

	if err := session.validate(ctx); err != nil {
		return session, err
	}

	logger.Info("Remote session established", boltfs.ArgsToFields(
		"bucket", cfg.Bucket,
		"workspace", workspace,
		"session_id", session.id,
	)...)

	return session, nil
}

// buildAWSConfig assembles the AWS config from static credentials, with
// optional STS AssumeRole on top.
func buildAWSConfig(ctx context.Context, cfg *boltfs.Config, logger logx.Logger) (aws.Config, error) {
	var options []func(*config.LoadOptions) error

	if cfg.Region != "" {
		options = append(options, config.WithRegion(cfg.Region))
	}

	// Only explicit static credentials are honored. The SDK default
	// chain would defeat credential-presence gating of the fallback.
	options = append(options, config.WithCredentialsProvider(
		credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, cfg.SessionToken),
	))

	options = append(options, config.WithRetryer(func() aws.Retryer {
		return retry.NewStandard(func(o *retry.StandardOptions) {
			o.MaxAttempts = cfg.MaxRetries
			o.MaxBackoff = cfg.BackoffMax
			o.Backoff = createBackoffStrategy(cfg)
		})
	}))

	awsConfig, err := config.LoadDefaultConfig(ctx, options...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("unable to load AWS SDK config: %w", err)
	}

	// RoleARN is not a credential by itself: it instructs STS to mint
	// temporary credentials using the static pair as the source.
	if cfg.RoleARN != "" {
		logger.Info("Config requests STS AssumeRole", boltfs.ArgsToFields("role_arn", cfg.RoleARN)...)

		stsClient := sts.NewFromConfig(awsConfig)
		provider := stscreds.NewAssumeRoleProvider(stsClient, cfg.RoleARN, func(o *stscreds.AssumeRoleOptions) {
			if cfg.ExternalID != "" {
				o.ExternalID = &cfg.ExternalID
			}
			o.RoleSessionName = "boltfs-assume-role"
		})
		awsConfig.Credentials = aws.NewCredentialsCache(provider)
	}

	return awsConfig, nil
}

// createBackoffStrategy builds the exponential-with-jitter retry delays
func createBackoffStrategy(cfg *boltfs.Config) retry.BackoffDelayerFunc {
	return func(attempt int, err error) (time.Duration, error) {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = cfg.BackoffInitial
		b.MaxInterval = cfg.BackoffMax
		b.MaxElapsedTime = 0
		b.Multiplier = 2.0
		b.RandomizationFactor = 0.1
		b.Reset()

		var delay time.Duration
		for i := 0; i < attempt; i++ {
			delay = b.NextBackOff()
			if delay == backoff.Stop {
				break
			}
		}
		return delay, nil
	}
}

// validate heads the bucket to verify access and connectivity
func (s *Session) validate(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.config.Bucket),
	})
	if err != nil {
		s.logger.Warn("Failed to validate bucket access", boltfs.ArgsToFields(
			"bucket", s.config.Bucket,
			"error", err,
		)...)
		return fmt.Errorf("cannot access bucket %q: %w", s.config.Bucket, err)
	}
	return nil
}

// Client returns the configured S3 client
func (s *Session) Client() *s3.Client { return s.client }

// Workspace returns the key namespace this session is scoped to
func (s *Session) Workspace() string { return s.workspace }

// ID returns the session identifier
func (s *Session) ID() string { return s.id }
