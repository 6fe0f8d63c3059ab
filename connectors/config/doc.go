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

/*
Package config loads the storage MCP server configuration.

# Sources

Configuration is assembled in three layers, later layers winning:

 1. An optional YAML file (--config or STORAGE_MCP_CONFIG_FILE).
    Values may reference ${VAR} or ${VAR:-default}.
 2. Environment variables. Empty values count as unset.
 3. When S3_CREDENTIALS_SECRET_ARN is set and a credential is still
    missing, the secret is read from AWS Secrets Manager and cached.

# Required Variables

	S3_ACCESS_KEY_ID
	S3_SECRET_ACCESS_KEY
	S3_REGION
	S3_ENDPOINT

A missing variable yields a *MissingConfigError naming every absent one.

# Optional Variables

	S3_FORCE_PATH_STYLE     true for MinIO and other path-style stores
	PORT                    HTTP listen port (default 8080)
	REDIS_URL               enables per-session rate limiting
	RATE_LIMIT_PER_MINUTE   tool calls per session per minute (default 600)

# Usage

	cfg, err := config.Load(ctx, config.LoadOptions{FilePath: path})
	if err != nil {
	    log.Fatal(err)
	}
	conn := s3.NewS3Connector()
	err = conn.Connect(ctx, cfg.ConnectorConfig())
*/
package config
