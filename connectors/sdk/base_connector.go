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

package sdk

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"storagemcp/platform/connectors/base"
)

// BaseConnector provides the lifecycle bookkeeping shared by storage
// connectors. Embed it and override Connect, Disconnect and HealthCheck.
type BaseConnector struct {
	name      string
	connType  string
	version   string
	required  []string
	config    *base.ConnectorConfig
	connected bool
	logger    *log.Logger
	metrics   *ConnectorMetrics
	mu        sync.RWMutex
}

// NewBaseConnector creates a new base connector with the given type.
// The logger writes to stderr so stdout stays free for protocol traffic.
func NewBaseConnector(connType string) *BaseConnector {
	return &BaseConnector{
		connType: connType,
		version:  "1.0.0",
		logger:   log.New(os.Stderr, fmt.Sprintf("[MCP_%s] ", connType), log.LstdFlags),
		metrics:  NewConnectorMetrics(connType),
	}
}

// RequireCredentials lists credential keys that Connect must find non-empty.
func (c *BaseConnector) RequireCredentials(keys ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.required = keys
}

// Connect validates and stores the configuration.
func (c *BaseConnector) Connect(ctx context.Context, config *base.ConnectorConfig) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if config == nil {
		return base.NewConnectorError(c.connType, "Connect", "configuration is required", nil)
	}

	var missing []string
	for _, key := range c.required {
		if strings.TrimSpace(config.Credentials[key]) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return base.NewConnectorError(config.Name, "Connect", "configuration validation failed",
			fmt.Errorf("missing credentials: %s", strings.Join(missing, ", ")))
	}

	c.config = config
	c.name = config.Name

	if c.config.Timeout == 0 {
		c.config.Timeout = 30 * time.Second
	}

	c.connected = true
	c.logger.Printf("Base connector initialized: %s (type: %s)", config.Name, c.connType)

	return nil
}

// Disconnect marks the connector disconnected.
func (c *BaseConnector) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return nil
	}
	c.connected = false

	if c.config != nil {
		c.logger.Printf("Disconnected: %s", c.config.Name)
	}

	return nil
}

// HealthCheck reports connection state only. Override in your connector.
func (c *BaseConnector) HealthCheck(ctx context.Context) (*base.HealthStatus, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	status := &base.HealthStatus{
		Healthy:   c.connected,
		Timestamp: time.Now(),
		Details:   map[string]string{"connector_type": c.connType, "version": c.version},
	}
	if !c.connected {
		status.Error = "not connected"
	}
	return status, nil
}

// Name returns the connector instance name
func (c *BaseConnector) Name() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.name != "" {
		return c.name
	}
	return c.connType
}

// Type returns the connector type
func (c *BaseConnector) Type() string {
	return c.connType
}

// Version returns the connector version
func (c *BaseConnector) Version() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}

// SetVersion sets the connector version
func (c *BaseConnector) SetVersion(version string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.version = version
}

// GetMetrics returns the connector metrics
func (c *BaseConnector) GetMetrics() *ConnectorMetrics {
	return c.metrics
}

// IsConnected returns the connection status
func (c *BaseConnector) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// Log writes a log message with the connector prefix
func (c *BaseConnector) Log(format string, args ...interface{}) {
	c.mu.RLock()
	logger := c.logger
	c.mu.RUnlock()
	logger.Printf(format, args...)
}

// GetOption retrieves an option value from config
func (c *BaseConnector) GetOption(key string, defaultValue interface{}) interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.config == nil || c.config.Options == nil {
		return defaultValue
	}
	if val, ok := c.config.Options[key]; ok {
		return val
	}
	return defaultValue
}

// GetStringOption retrieves a string option
func (c *BaseConnector) GetStringOption(key, defaultValue string) string {
	if s, ok := c.GetOption(key, defaultValue).(string); ok {
		return s
	}
	return defaultValue
}

// GetBoolOption retrieves a boolean option
func (c *BaseConnector) GetBoolOption(key string, defaultValue bool) bool {
	if b, ok := c.GetOption(key, defaultValue).(bool); ok {
		return b
	}
	return defaultValue
}

// GetCredential retrieves a credential value
func (c *BaseConnector) GetCredential(key string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.config == nil || c.config.Credentials == nil {
		return ""
	}
	return c.config.Credentials[key]
}
