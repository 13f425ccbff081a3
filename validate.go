package boltfs

import (
	"fmt"
	"strings"
	"time"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid config field %q: %s", e.Field, e.Message)
}

// ValidateConfig performs comprehensive validation of chain configuration
func ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return &ValidationError{Field: "config", Message: "configuration cannot be nil"}
	}

	var errs []string

	// Disallow partially-specified explicit credentials. A fully absent
	// pair is fine: the remote provider is skipped, not misconfigured.
	if (cfg.AccessKey == "" && cfg.SecretKey != "") || (cfg.AccessKey != "" && cfg.SecretKey == "") {
		errs = append(errs, "both access_key and secret_key must be set together; do not provide only one")
	}

	// The remote provider needs a bucket when credentials are present
	if cfg.HasRemoteCredentials() {
		if cfg.Bucket == "" {
			errs = append(errs, "bucket is required when remote credentials are set")
		} else if err := validateBucketName(cfg.Bucket); err != nil {
			errs = append(errs, fmt.Sprintf("invalid bucket name: %v", err))
		}

		if cfg.Region == "" && cfg.Endpoint == "" {
			errs = append(errs, "region is required when endpoint is not specified")
		}
	}

	// Validate timeouts
	if cfg.InitTimeout <= 0 {
		errs = append(errs, "init_timeout must be positive")
	}
	if cfg.InitTimeout > 2*time.Minute {
		errs = append(errs, "init_timeout should not exceed 2 minutes")
	}
	if cfg.RequestTimeout <= 0 {
		errs = append(errs, "request_timeout must be positive")
	}
	if cfg.RequestTimeout > 10*time.Minute {
		errs = append(errs, "request_timeout should not exceed 10 minutes")
	}

	// Validate retry configuration
	if cfg.MaxRetries < 0 {
		errs = append(errs, "max_retries cannot be negative")
	}
	if cfg.MaxRetries > 10 {
		errs = append(errs, "max_retries should not exceed 10")
	}

	if cfg.BackoffInitial <= 0 {
		errs = append(errs, "backoff_initial must be positive")
	}
	if cfg.BackoffMax <= cfg.BackoffInitial {
		errs = append(errs, "backoff_max must be greater than backoff_initial")
	}

	if cfg.SearchResultLimit <= 0 {
		errs = append(errs, "search_result_limit must be positive")
	}

	// Validate endpoint format if provided
	if cfg.Endpoint != "" {
		if err := validateEndpoint(cfg.Endpoint); err != nil {
			errs = append(errs, fmt.Sprintf("invalid endpoint: %v", err))
		}
	}

	// Validate WorkspaceID format
	if cfg.WorkspaceID != "" {
		if err := validateWorkspaceID(cfg.WorkspaceID); err != nil {
			errs = append(errs, fmt.Sprintf("invalid workspace_id: %v", err))
		}
	}

	// Validate RoleARN basic format if provided
	if cfg.RoleARN != "" && !isPlausibleRoleARN(cfg.RoleARN) {
		errs = append(errs, "role_arn looks invalid: must be a valid IAM role ARN (e.g., arn:aws:iam::123456789012:role/RoleName)")
	}

	if len(errs) > 0 {
		return &ValidationError{
			Field:   "config",
			Message: strings.Join(errs, "; "),
		}
	}

	return nil
}

// isPlausibleRoleARN performs a light-weight validation of an IAM role ARN
func isPlausibleRoleARN(arn string) bool {
	// Expected form: arn:partition:service:region:account-id:resource
	parts := strings.SplitN(arn, ":", 6)
	if len(parts) != 6 {
		return false
	}
	if parts[0] != "arn" {
		return false
	}
	if parts[2] != "iam" {
		return false
	}
	acct := parts[4]
	if acct == "" {
		return false
	}
	for _, r := range acct {
		if r < '0' || r > '9' {
			return false
		}
	}
	return strings.HasPrefix(parts[5], "role/")
}

// validateBucketName validates S3-compatible bucket naming rules
func validateBucketName(bucket string) error {
	if len(bucket) < 3 || len(bucket) > 63 {
		return fmt.Errorf("bucket name must be between 3 and 63 characters")
	}

	if strings.HasPrefix(bucket, "-") || strings.HasSuffix(bucket, "-") {
		return fmt.Errorf("bucket name cannot start or end with a hyphen")
	}

	if strings.HasPrefix(bucket, ".") || strings.HasSuffix(bucket, ".") {
		return fmt.Errorf("bucket name cannot start or end with a period")
	}

	if strings.Contains(bucket, "..") || strings.Contains(bucket, "--") {
		return fmt.Errorf("bucket name cannot contain consecutive periods or hyphens")
	}

	for _, char := range bucket {
		if !isValidBucketChar(char) {
			return fmt.Errorf("bucket name contains invalid character: %c", char)
		}
	}

	return nil
}

// isValidBucketChar checks if a character is valid in bucket names
func isValidBucketChar(char rune) bool {
	return (char >= 'a' && char <= 'z') ||
		(char >= '0' && char <= '9') ||
		char == '-' || char == '.'
}

// validateEndpoint validates the endpoint URL format
func validateEndpoint(endpoint string) error {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return fmt.Errorf("endpoint cannot be empty")
	}

	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return nil
	}

	if strings.Contains(endpoint, "://") {
		return fmt.Errorf("endpoint protocol must be http or https")
	}

	if strings.Contains(endpoint, " ") {
		return fmt.Errorf("endpoint cannot contain spaces")
	}

	return nil
}

// validateWorkspaceID validates the workspace namespace format
func validateWorkspaceID(id string) error {
	if strings.HasPrefix(id, "/") || strings.HasSuffix(id, "/") {
		return fmt.Errorf("workspace_id should not start or end with '/'")
	}

	if strings.Contains(id, "..") {
		return fmt.Errorf("workspace_id cannot contain '..' patterns")
	}

	if strings.Contains(id, "//") {
		return fmt.Errorf("workspace_id cannot contain consecutive slashes")
	}

	return nil
}

// Normalize applies automatic fixes to configuration where possible and
// returns a normalized copy without mutating the receiver.
func (c *Config) Normalize() *Config {
	if c == nil {
		return DefaultConfig()
	}

	normalized := *c

	if normalized.Region == "" && normalized.Endpoint == "" {
		normalized.Region = "us-east-1"
	}

	if normalized.InitTimeout == 0 {
		normalized.InitTimeout = 10 * time.Second
	}

	if normalized.RequestTimeout == 0 {
		normalized.RequestTimeout = 30 * time.Second
	}

	if normalized.MaxRetries == 0 {
		normalized.MaxRetries = 3
	}

	if normalized.BackoffInitial == 0 {
		normalized.BackoffInitial = 200 * time.Millisecond
	}

	if normalized.BackoffMax == 0 {
		normalized.BackoffMax = 5 * time.Second
	}

	if normalized.SearchResultLimit == 0 {
		normalized.SearchResultLimit = 500
	}

	if normalized.Endpoint != "" {
		normalized.Endpoint = strings.TrimSpace(normalized.Endpoint)
		normalized.Endpoint = strings.TrimSuffix(normalized.Endpoint, "/")
	}

	if normalized.WorkspaceID != "" {
		normalized.WorkspaceID = strings.Trim(normalized.WorkspaceID, "/")
	}

	return &normalized
}
