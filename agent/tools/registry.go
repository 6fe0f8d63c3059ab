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
	"sort"

	"storagemcp/platform/agent/protocol"
)

// Tool names
const (
	ToolBucket  = "bucket"
	ToolObject  = "object"
	ToolPresign = "presign"
)

// Bucket actions
const (
	ActionList     = "list"
	ActionCreate   = "create"
	ActionDelete   = "delete"
	ActionLocation = "location"
)

// Object actions. list and delete are shared with the bucket tool.
const (
	ActionUpload   = "upload"
	ActionDownload = "download"
	ActionMetadata = "metadata"
)

// Defaults applied by Validate
const (
	DefaultMaxKeys   = 1000
	MaxListKeys      = math.MaxInt32
	DefaultOperation = "get"
	DefaultExpiresIn = 3600
	MaxExpiresIn     = 604800
)

// ParamType is the wire type of a parameter.
type ParamType string

const (
	TypeString ParamType = "string"
	TypeNumber ParamType = "number"
)

// Param declares one tool argument.
type Param struct {
	Name        string
	Type        ParamType
	Description string
	Required    bool
	Enum        []string
	Default     interface{}
	Min         *int64
	Max         *int64
}

// Descriptor is an immutable tool definition.
type Descriptor struct {
	Name        string
	Description string
	Params      []Param
	// Actions maps each action to the parameters it additionally requires.
	// Nil for tools without an action selector.
	Actions map[string][]string
}

// Param returns the declared parameter named name.
func (d *Descriptor) Param(name string) (Param, bool) {
	for _, p := range d.Params {
		if p.Name == name {
			return p, true
		}
	}
	return Param{}, false
}

// ActionNames returns the tool's actions sorted by name.
func (d *Descriptor) ActionNames() []string {
	names := make([]string, 0, len(d.Actions))
	for a := range d.Actions {
		names = append(names, a)
	}
	sort.Strings(names)
	return names
}

// Tool renders the descriptor in wire form.
func (d *Descriptor) Tool() protocol.Tool {
	schema := protocol.InputSchema{
		Type:       "object",
		Properties: make(map[string]protocol.Property, len(d.Params)),
	}
	for _, p := range d.Params {
		schema.Properties[p.Name] = protocol.Property{
			Type:        string(p.Type),
			Description: p.Description,
			Enum:        p.Enum,
			Default:     p.Default,
			Minimum:     p.Min,
			Maximum:     p.Max,
		}
		if p.Required {
			schema.Required = append(schema.Required, p.Name)
		}
	}
	return protocol.Tool{Name: d.Name, Description: d.Description, InputSchema: schema}
}

// Registry holds the tool set. It is built once and never mutated.
type Registry struct {
	ordered []*Descriptor
	byName  map[string]*Descriptor
	wire    []protocol.Tool
}

// NewRegistry builds the registry of storage tools.
func NewRegistry() *Registry {
	r := &Registry{byName: make(map[string]*Descriptor)}
	for _, d := range storageTools() {
		r.ordered = append(r.ordered, d)
		r.byName[d.Name] = d
		r.wire = append(r.wire, d.Tool())
	}
	return r
}

// List returns the wire descriptors in registration order.
func (r *Registry) List() []protocol.Tool {
	out := make([]protocol.Tool, len(r.wire))
	copy(out, r.wire)
	return out
}

// Descriptors returns the tool definitions in registration order.
func (r *Registry) Descriptors() []*Descriptor {
	out := make([]*Descriptor, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// Lookup returns the descriptor for name.
func (r *Registry) Lookup(name string) (*Descriptor, bool) {
	d, ok := r.byName[name]
	return d, ok
}

func bound(v int64) *int64 { return &v }

func storageTools() []*Descriptor {
	return []*Descriptor{
		{
			Name:        ToolBucket,
			Description: "Manage S3 buckets: list all buckets, create or delete a bucket, or get a bucket's region.",
			Params: []Param{
				{Name: "action", Type: TypeString, Required: true, Description: "Operation to perform",
					Enum: []string{ActionList, ActionCreate, ActionDelete, ActionLocation}},
				{Name: "name", Type: TypeString, Description: "Bucket name (required for create, delete and location)"},
			},
			Actions: map[string][]string{
				ActionList:     nil,
				ActionCreate:   {"name"},
				ActionDelete:   {"name"},
				ActionLocation: {"name"},
			},
		},
		{
			Name:        ToolObject,
			Description: "Manage S3 objects: list objects, upload a local file, download to a local file, delete an object, or read its metadata.",
			Params: []Param{
				{Name: "action", Type: TypeString, Required: true, Description: "Operation to perform",
					Enum: []string{ActionList, ActionUpload, ActionDownload, ActionDelete, ActionMetadata}},
				{Name: "bucket", Type: TypeString, Required: true, Description: "Bucket name"},
				{Name: "key", Type: TypeString, Description: "Object key (required for upload, download, delete and metadata)"},
				{Name: "local_path", Type: TypeString, Description: "Local file path (required for upload and download)"},
				{Name: "prefix", Type: TypeString, Description: "Only list keys starting with this prefix"},
				{Name: "max_keys", Type: TypeNumber, Description: "Maximum number of keys to list",
					Default: DefaultMaxKeys, Min: bound(1), Max: bound(MaxListKeys)},
				{Name: "content_type", Type: TypeString, Description: "Content type for upload (guessed from the file name when omitted)"},
				{Name: "continuation_token", Type: TypeString, Description: "Token from a previous truncated list to fetch the next page"},
			},
			Actions: map[string][]string{
				ActionList:     nil,
				ActionUpload:   {"key", "local_path"},
				ActionDownload: {"key", "local_path"},
				ActionDelete:   {"key"},
				ActionMetadata: {"key"},
			},
		},
		{
			Name:        ToolPresign,
			Description: "Generate a presigned URL granting temporary access to an object.",
			Params: []Param{
				{Name: "bucket", Type: TypeString, Required: true, Description: "Bucket name"},
				{Name: "key", Type: TypeString, Required: true, Description: "Object key"},
				{Name: "operation", Type: TypeString, Description: "get to download, put to upload",
					Enum: []string{"get", "put"}, Default: DefaultOperation},
				{Name: "expires_in", Type: TypeNumber, Description: "URL lifetime in seconds",
					Default: DefaultExpiresIn, Min: bound(1), Max: bound(MaxExpiresIn)},
				{Name: "content_type", Type: TypeString, Description: "Content type the upload must use (put only)"},
			},
		},
	}
}
