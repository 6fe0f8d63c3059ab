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

package tools

import (
	"math"
	"strings"

	"storagemcp/platform/agent/protocol"
)

// Call is a validated tool call with defaults applied.
type Call struct {
	Tool   string
	Action string
	args   map[string]interface{}
}

// String returns a string argument, or "" when absent.
func (c *Call) String(name string) string {
	s, _ := c.args[name].(string)
	return s
}

// Int returns a numeric argument, or 0 when absent.
func (c *Call) Int(name string) int64 {
	n, _ := toInt(c.args[name])
	return n
}

// Has reports whether an argument was supplied or defaulted.
func (c *Call) Has(name string) bool {
	return present(c.args[name])
}

// Validate checks args against the named tool's schema. Checks run in a
// fixed order: tool exists, tool-level required parameters, enumerations,
// action-level required parameters, then types and bounds. The returned
// error is always a *protocol.Error.
func (r *Registry) Validate(name string, args map[string]interface{}) (*Call, error) {
	d, ok := r.Lookup(name)
	if !ok {
		return nil, protocol.NewError(protocol.KindMethodNotFound, "unknown tool: %s", name)
	}

	for _, p := range d.Params {
		if p.Required && !present(args[p.Name]) {
			return nil, protocol.NewError(protocol.KindInvalidParams, "missing required parameter: %s", p.Name)
		}
	}

	for _, p := range d.Params {
		if len(p.Enum) == 0 || !present(args[p.Name]) {
			continue
		}
		s, _ := args[p.Name].(string)
		if !contains(p.Enum, s) {
			return nil, protocol.NewError(protocol.KindInvalidParams,
				"invalid %s %v: must be one of %s", p.Name, args[p.Name], strings.Join(p.Enum, ", "))
		}
	}

	action, _ := args["action"].(string)
	if d.Actions != nil {
		for _, req := range d.Actions[action] {
			if !present(args[req]) {
				return nil, protocol.NewError(protocol.KindInvalidParams,
					"missing required parameter for %s %s: %s", name, action, req)
			}
		}
	}

	call := &Call{Tool: name, Action: action, args: make(map[string]interface{}, len(d.Params))}
	for _, p := range d.Params {
		v := args[p.Name]
		if !present(v) {
			if p.Default != nil {
				call.args[p.Name] = p.Default
			}
			continue
		}
		if err := checkType(p, v); err != nil {
			return nil, err
		}
		call.args[p.Name] = v
	}
	return call, nil
}

func checkType(p Param, v interface{}) *protocol.Error {
	switch p.Type {
	case TypeString:
		if _, ok := v.(string); !ok {
			return protocol.NewError(protocol.KindInvalidParams, "parameter %s must be a string", p.Name)
		}
	case TypeNumber:
		n, ok := toInt(v)
		if !ok {
			return protocol.NewError(protocol.KindInvalidParams, "parameter %s must be an integer", p.Name)
		}
		if p.Min != nil && n < *p.Min {
			return protocol.NewError(protocol.KindInvalidParams, "parameter %s must be at least %d", p.Name, *p.Min)
		}
		if p.Max != nil && n > *p.Max {
			return protocol.NewError(protocol.KindInvalidParams, "parameter %s must be at most %d", p.Name, *p.Max)
		}
	}
	return nil
}

// present treats nil and the empty string as absent.
func present(v interface{}) bool {
	if v == nil {
		return false
	}
	if s, ok := v.(string); ok {
		return s != ""
	}
	return true
}

func toInt(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) || n != math.Trunc(n) || math.Abs(n) > 1<<53 {
			return 0, false
		}
		return int64(n), true
	}
	return 0, false
}

func contains(values []string, s string) bool {
	for _, v := range values {
		if v == s {
			return true
		}
	}
	return false
}
