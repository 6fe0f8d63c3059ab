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

// Package main is the entry point for the storage MCP server.
//
// Usage:
//
//	storage-mcp serve [--port 8080] [--config storage-mcp.yaml]
//	storage-mcp stdio [--config storage-mcp.yaml]
//	storage-mcp example-config > storage-mcp.yaml
//
// Environment Variables:
//
//	S3_ACCESS_KEY_ID, S3_SECRET_ACCESS_KEY - backend credentials
//	S3_REGION, S3_ENDPOINT - backend location
//	S3_FORCE_PATH_STYLE - path-style addressing (default: false)
//	S3_CREDENTIALS_SECRET_ARN - read credentials from AWS Secrets Manager
//	PORT - HTTP server port (default: 8080)
//	REDIS_URL - enables per-session rate limiting
//	RATE_LIMIT_PER_MINUTE - tool calls per session per minute (default: 600)
//	STORAGE_MCP_CONFIG_FILE - YAML configuration file
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"storagemcp/platform/agent"
	"storagemcp/platform/connectors/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "storage-mcp",
		Short:         "MCP server for S3-compatible object storage",
		Long:          `storage-mcp exposes bucket, object and presign tools to MCP clients over streamable HTTP or stdio.`,
		Version:       agent.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().String("config", "", "YAML configuration file (overrides "+config.EnvConfigFile+")")

	cmd.AddCommand(serveCmd())
	cmd.AddCommand(stdioCmd())
	cmd.AddCommand(exampleConfigCmd())

	return cmd
}

// serveCmd runs the streamable HTTP transport.
func serveCmd() *cobra.Command {
	var (
		port        int
		idleTimeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve MCP over streamable HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			configFile, _ := cmd.Flags().GetString("config")
			return agent.Run(cmd.Context(), agent.Options{
				Port:        port,
				ConfigFile:  configFile,
				IdleTimeout: idleTimeout,
			})
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "HTTP port (overrides "+config.EnvPort+")")
	cmd.Flags().DurationVar(&idleTimeout, "session-idle-timeout", agent.DefaultIdleTimeout, "terminate sessions idle for this long")
	return cmd
}

func stdioCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stdio",
		Short: "Serve MCP over stdin and stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			configFile, _ := cmd.Flags().GetString("config")
			return agent.RunStdio(cmd.Context(), agent.Options{ConfigFile: configFile}, cmd.InOrStdin(), os.Stdout)
		},
	}
}

func exampleConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "example-config",
		Short: "Print an example YAML configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprint(cmd.OutOrStdout(), config.GenerateExampleConfigFile())
			return err
		},
	}
}
