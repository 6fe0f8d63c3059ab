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

package base

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var ansiRegex = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// ValidateEndpoint checks that a backend endpoint is an absolute http(s) URL.
// Private addresses are allowed: S3-compatible stores commonly run on the
// local network.
func ValidateEndpoint(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("endpoint cannot be empty")
	}

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid endpoint %q: %w", rawURL, err)
	}

	scheme := strings.ToLower(parsedURL.Scheme)
	if scheme != "http" && scheme != "https" {
		return fmt.Errorf("endpoint scheme %q is not allowed; permitted schemes: [https http]", parsedURL.Scheme)
	}

	if parsedURL.Hostname() == "" {
		return fmt.Errorf("endpoint %q has no host", rawURL)
	}

	return nil
}

// SanitizeLogString removes or escapes characters that could be used for log injection
func SanitizeLogString(s string) string {
	s = strings.ReplaceAll(s, "\n", "\\n")
	s = strings.ReplaceAll(s, "\r", "\\r")
	s = ansiRegex.ReplaceAllString(s, "")
	const maxLogLength = 500
	if len(s) > maxLogLength {
		s = s[:maxLogLength] + "...[truncated]"
	}
	return s
}

// ValidateLocalPath rejects local paths that cannot name a regular file
// the server should touch.
func ValidateLocalPath(path string) error {
	if path == "" {
		return fmt.Errorf("path cannot be empty")
	}

	if strings.Contains(path, "\x00") {
		return fmt.Errorf("null bytes not allowed in path")
	}

	lowerPath := strings.ToLower(path)
	for _, dangerous := range []string{"/proc/", "/sys/", "/dev/"} {
		if strings.HasPrefix(lowerPath, dangerous) {
			return fmt.Errorf("access to system path not allowed: %q", path)
		}
	}

	return nil
}
