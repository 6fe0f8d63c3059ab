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
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// ConfigFile represents the root structure of a configuration file
type ConfigFile struct {
	Version   string              `yaml:"version"`
	Server    ServerFileConfig    `yaml:"server,omitempty"`
	S3        S3FileConfig        `yaml:"s3,omitempty"`
	RateLimit RateLimitFileConfig `yaml:"rate_limit,omitempty"`
}

// ServerFileConfig is the server section of the config file
type ServerFileConfig struct {
	Port int `yaml:"port,omitempty"`
}

// S3FileConfig is the storage backend section of the config file
type S3FileConfig struct {
	AccessKeyID          string `yaml:"access_key_id,omitempty"`
	SecretAccessKey      string `yaml:"secret_access_key,omitempty"`
	Region               string `yaml:"region,omitempty"`
	Endpoint             string `yaml:"endpoint,omitempty"`
	ForcePathStyle       *bool  `yaml:"force_path_style,omitempty"`
	CredentialsSecretARN string `yaml:"credentials_secret_arn,omitempty"`
}

// RateLimitFileConfig is the per-session rate limit section of the config file
type RateLimitFileConfig struct {
	RedisURL  string `yaml:"redis_url,omitempty"`
	PerMinute int    `yaml:"per_minute,omitempty"`
}

// YAMLConfigFileLoader loads configurations from a YAML file
type YAMLConfigFileLoader struct {
	filePath string
	config   *ConfigFile
}

// NewYAMLConfigFileLoader creates a new YAML config file loader
func NewYAMLConfigFileLoader(filePath string) (*YAMLConfigFileLoader, error) {
	loader := &YAMLConfigFileLoader{
		filePath: filePath,
	}

	if err := loader.load(); err != nil {
		return nil, err
	}

	return loader, nil
}

// load reads and parses the configuration file
func (l *YAMLConfigFileLoader) load() error {
	data, err := os.ReadFile(l.filePath)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", l.filePath, err)
	}

	expanded := expandEnvVars(string(data))

	var config ConfigFile
	if err := yaml.Unmarshal([]byte(expanded), &config); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := ValidateConfigFile(&config); err != nil {
		return err
	}

	l.config = &config
	return nil
}

// Apply copies every value set in the file onto cfg
func (l *YAMLConfigFileLoader) Apply(cfg *ServerConfig) error {
	if l.config == nil {
		return fmt.Errorf("config not loaded")
	}

	f := l.config
	if f.Server.Port != 0 {
		cfg.Port = f.Server.Port
	}
	setIfNotEmpty(&cfg.S3.AccessKeyID, f.S3.AccessKeyID)
	setIfNotEmpty(&cfg.S3.SecretAccessKey, f.S3.SecretAccessKey)
	setIfNotEmpty(&cfg.S3.Region, f.S3.Region)
	setIfNotEmpty(&cfg.S3.Endpoint, f.S3.Endpoint)
	setIfNotEmpty(&cfg.S3.CredentialsSecretARN, f.S3.CredentialsSecretARN)
	if f.S3.ForcePathStyle != nil {
		cfg.S3.ForcePathStyle = *f.S3.ForcePathStyle
	}
	setIfNotEmpty(&cfg.RedisURL, f.RateLimit.RedisURL)
	if f.RateLimit.PerMinute != 0 {
		cfg.RateLimitPerMinute = f.RateLimit.PerMinute
	}
	return nil
}

func setIfNotEmpty(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// envVarRegex matches ${VAR_NAME} or $VAR_NAME patterns
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// expandEnvVars expands environment variable references in the string.
// Supports ${VAR_NAME}, ${VAR_NAME:-default} and $VAR_NAME; undefined
// variables expand to the empty string.
func expandEnvVars(content string) string {
	return envVarRegex.ReplaceAllStringFunc(content, func(match string) string {
		var varName string
		if strings.HasPrefix(match, "${") {
			varName = match[2 : len(match)-1]
		} else {
			varName = match[1:]
		}

		defaultVal := ""
		if idx := strings.Index(varName, ":-"); idx != -1 {
			defaultVal = varName[idx+2:]
			varName = varName[:idx]
		}

		if value := os.Getenv(varName); value != "" {
			return value
		}
		return defaultVal
	})
}

// ValidateConfigFile validates the structure of a config file
func ValidateConfigFile(config *ConfigFile) error {
	if config.Version == "" {
		return fmt.Errorf("config file must specify a version")
	}
	if config.Server.Port < 0 || config.Server.Port > 65535 {
		return fmt.Errorf("server.port %d is out of range", config.Server.Port)
	}
	if config.RateLimit.PerMinute < 0 {
		return fmt.Errorf("rate_limit.per_minute must not be negative")
	}
	return nil
}

// GenerateExampleConfigFile generates an example configuration file
func GenerateExampleConfigFile() string {
	return `# Storage MCP server configuration
# Environment variables can be referenced using ${VAR_NAME} or ${VAR_NAME:-default} syntax.
# Non-empty environment variables (S3_REGION, PORT, ...) override values in this file.

version: "1.0"

server:
  port: ${PORT:-8080}

s3:
  access_key_id: ${S3_ACCESS_KEY_ID}
  secret_access_key: ${S3_SECRET_ACCESS_KEY}
  region: ${S3_REGION:-us-east-1}
  endpoint: ${S3_ENDPOINT:-http://localhost:9000}
  force_path_style: true
  # credentials_secret_arn: arn:aws:secretsmanager:us-east-1:123456789012:secret:storage-mcp

rate_limit:
  # redis_url: redis://localhost:6379/0
  per_minute: 600
`
}
