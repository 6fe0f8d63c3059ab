// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"storagemcp/platform/connectors/base"
)

// Environment variables read by Load
const (
	EnvAccessKeyID          = "S3_ACCESS_KEY_ID"
	EnvSecretAccessKey      = "S3_SECRET_ACCESS_KEY"
	EnvRegion               = "S3_REGION"
	EnvEndpoint             = "S3_ENDPOINT"
	EnvForcePathStyle       = "S3_FORCE_PATH_STYLE"
	EnvCredentialsSecretARN = "S3_CREDENTIALS_SECRET_ARN"
	EnvPort                 = "PORT"
	EnvConfigFile           = "STORAGE_MCP_CONFIG_FILE"
	EnvRedisURL             = "REDIS_URL"
	EnvRateLimitPerMinute   = "RATE_LIMIT_PER_MINUTE"
)

const (
	DefaultPort               = 8080
	DefaultRateLimitPerMinute = 600
)

// S3Config holds the storage backend settings
type S3Config struct {
	AccessKeyID          string
	SecretAccessKey      string
	Region               string
	Endpoint             string
	ForcePathStyle       bool
	CredentialsSecretARN string
}

// ServerConfig is the fully resolved process configuration
type ServerConfig struct {
	Port               int
	S3                 S3Config
	RedisURL           string
	RateLimitPerMinute int
	ConfigFile         string
}

// MissingConfigError names every required setting that could not be resolved.
type MissingConfigError struct {
	Vars []string
}

func (e *MissingConfigError) Error() string {
	return "missing required configuration: " + strings.Join(e.Vars, ", ")
}

// LoadOptions customizes Load
type LoadOptions struct {
	// FilePath overrides STORAGE_MCP_CONFIG_FILE
	FilePath string
	// Secrets resolves S3_CREDENTIALS_SECRET_ARN. Nil means AWS Secrets Manager.
	Secrets SecretsManager
}

// Load resolves the server configuration. Values come from the optional
// YAML file first and are overridden by any non-empty environment variable.
// Credentials still missing after that are read from the secret named by
// S3_CREDENTIALS_SECRET_ARN when set.
func Load(ctx context.Context, opts LoadOptions) (*ServerConfig, error) {
	cfg := &ServerConfig{
		Port:               DefaultPort,
		RateLimitPerMinute: DefaultRateLimitPerMinute,
	}

	path := opts.FilePath
	if path == "" {
		path = os.Getenv(EnvConfigFile)
	}
	if path != "" {
		loader, err := NewYAMLConfigFileLoader(path)
		if err != nil {
			return nil, err
		}
		if err := loader.Apply(cfg); err != nil {
			return nil, err
		}
		cfg.ConfigFile = path
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if cfg.S3.CredentialsSecretARN != "" && (cfg.S3.AccessKeyID == "" || cfg.S3.SecretAccessKey == "") {
		if err := applySecret(ctx, cfg, opts.Secrets); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *ServerConfig) error {
	overrideString(&cfg.S3.AccessKeyID, EnvAccessKeyID)
	overrideString(&cfg.S3.SecretAccessKey, EnvSecretAccessKey)
	overrideString(&cfg.S3.Region, EnvRegion)
	overrideString(&cfg.S3.Endpoint, EnvEndpoint)
	overrideString(&cfg.S3.CredentialsSecretARN, EnvCredentialsSecretARN)
	overrideString(&cfg.RedisURL, EnvRedisURL)

	if v := os.Getenv(EnvForcePathStyle); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvForcePathStyle, v, err)
		}
		cfg.S3.ForcePathStyle = b
	}

	if v := os.Getenv(EnvPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvPort, v, err)
		}
		cfg.Port = port
	}

	if v := os.Getenv(EnvRateLimitPerMinute); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvRateLimitPerMinute, v, err)
		}
		cfg.RateLimitPerMinute = limit
	}

	return nil
}

func applySecret(ctx context.Context, cfg *ServerConfig, secrets SecretsManager) error {
	if secrets == nil {
		mgr, err := NewAWSSecretsManager(ctx, AWSSecretsManagerOptions{
			Region: regionFromARN(cfg.S3.CredentialsSecretARN),
		})
		if err != nil {
			return err
		}
		secrets = mgr
	}

	values, err := secrets.GetSecret(ctx, cfg.S3.CredentialsSecretARN)
	if err != nil {
		return err
	}

	if cfg.S3.AccessKeyID == "" {
		cfg.S3.AccessKeyID = firstNonEmpty(values, "access_key_id", EnvAccessKeyID, "AWS_ACCESS_KEY_ID")
	}
	if cfg.S3.SecretAccessKey == "" {
		cfg.S3.SecretAccessKey = firstNonEmpty(values, "secret_access_key", EnvSecretAccessKey, "AWS_SECRET_ACCESS_KEY")
	}
	return nil
}

// Validate checks required settings and ranges
func (c *ServerConfig) Validate() error {
	var missing []string
	if c.S3.AccessKeyID == "" {
		missing = append(missing, EnvAccessKeyID)
	}
	if c.S3.SecretAccessKey == "" {
		missing = append(missing, EnvSecretAccessKey)
	}
	if c.S3.Region == "" {
		missing = append(missing, EnvRegion)
	}
	if c.S3.Endpoint == "" {
		missing = append(missing, EnvEndpoint)
	}
	if len(missing) > 0 {
		return &MissingConfigError{Vars: missing}
	}

	if err := base.ValidateEndpoint(c.S3.Endpoint); err != nil {
		return fmt.Errorf("invalid %s: %w", EnvEndpoint, err)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid %s %d: must be between 1 and 65535", EnvPort, c.Port)
	}
	if c.RateLimitPerMinute <= 0 {
		return fmt.Errorf("invalid %s %d: must be positive", EnvRateLimitPerMinute, c.RateLimitPerMinute)
	}
	return nil
}

// ConnectorConfig builds the storage connector configuration
func (c *ServerConfig) ConnectorConfig() *base.ConnectorConfig {
	return &base.ConnectorConfig{
		Name:          "s3",
		Type:          "s3",
		ConnectionURL: c.S3.Endpoint,
		Credentials: map[string]string{
			"access_key_id":     c.S3.AccessKeyID,
			"secret_access_key": c.S3.SecretAccessKey,
		},
		Options: map[string]interface{}{
			"region":           c.S3.Region,
			"force_path_style": c.S3.ForcePathStyle,
		},
		Timeout: 30 * time.Second,
	}
}

func overrideString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func firstNonEmpty(values map[string]string, keys ...string) string {
	for _, k := range keys {
		if v := values[k]; v != "" {
			return v
		}
	}
	return ""
}

// regionFromARN extracts the region from arn:aws:secretsmanager:<region>:...
func regionFromARN(arn string) string {
	parts := strings.Split(arn, ":")
	if len(parts) > 3 && parts[0] == "arn" {
		return parts[3]
	}
	return ""
}
