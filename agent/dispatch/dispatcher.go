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

package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"storagemcp/platform/agent/protocol"
	"storagemcp/platform/agent/tools"
	"storagemcp/platform/connectors/base"
	"storagemcp/platform/connectors/localfs"
	"storagemcp/platform/shared/logger"
)

// Result is the outcome of one tool call: a content envelope or a typed
// error, never both.
type Result struct {
	Value *protocol.CallToolResult
	Err   *protocol.Error
}

// OK reports whether the call succeeded.
func (r Result) OK() bool {
	return r.Err == nil
}

// handler performs one (tool, action). A string return is sent as a plain
// confirmation, anything else as JSON text.
type handler func(ctx context.Context, call *tools.Call) (interface{}, error)

type route struct {
	tool   string
	action string
}

// Dispatcher routes validated tool calls to the storage gateway.
type Dispatcher struct {
	registry *tools.Registry
	store    base.ObjectStore
	fs       localfs.FileSystem
	logger   *logger.Logger
	routes   map[route]handler
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithFileSystem replaces the local file system used by upload and download.
func WithFileSystem(fs localfs.FileSystem) Option {
	return func(d *Dispatcher) { d.fs = fs }
}

// WithLogger sets the logger used for recovered panics.
func WithLogger(l *logger.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

// New builds a dispatcher. It panics if the route table does not cover
// every (tool, action) in the registry exactly.
func New(registry *tools.Registry, store base.ObjectStore, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		registry: registry,
		store:    store,
		fs:       localfs.OS{},
		logger:   logger.New("dispatch"),
	}
	for _, opt := range opts {
		opt(d)
	}

	d.routes = map[route]handler{
		{tools.ToolBucket, tools.ActionList}:     d.listBuckets,
		{tools.ToolBucket, tools.ActionCreate}:   d.createBucket,
		{tools.ToolBucket, tools.ActionDelete}:   d.deleteBucket,
		{tools.ToolBucket, tools.ActionLocation}: d.locateBucket,
		{tools.ToolObject, tools.ActionList}:     d.listObjects,
		{tools.ToolObject, tools.ActionUpload}:   d.uploadObject,
		{tools.ToolObject, tools.ActionDownload}: d.downloadObject,
		{tools.ToolObject, tools.ActionDelete}:   d.deleteObject,
		{tools.ToolObject, tools.ActionMetadata}: d.objectMetadata,
		{tools.ToolPresign, ""}:                  d.presign,
	}
	if err := checkRoutes(registry, d.routes); err != nil {
		panic(err)
	}
	return d
}

func checkRoutes(registry *tools.Registry, routes map[route]handler) error {
	want := make(map[route]bool)
	for _, desc := range registry.Descriptors() {
		if desc.Actions == nil {
			want[route{desc.Name, ""}] = true
			continue
		}
		for _, action := range desc.ActionNames() {
			want[route{desc.Name, action}] = true
		}
	}

	var missing, extra []string
	for r := range want {
		if _, ok := routes[r]; !ok {
			missing = append(missing, r.tool+"/"+r.action)
		}
	}
	for r := range routes {
		if !want[r] {
			extra = append(extra, r.tool+"/"+r.action)
		}
	}
	if len(missing) > 0 || len(extra) > 0 {
		sort.Strings(missing)
		sort.Strings(extra)
		return fmt.Errorf("dispatch: route table mismatch: missing=%v extra=%v", missing, extra)
	}
	return nil
}

// Dispatch validates and executes one tool call. It never returns a raw
// error: every failure, including a handler panic, is a typed Result.Err.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, args map[string]interface{}) (res Result) {
	call, err := d.registry.Validate(name, args)
	if err != nil {
		return Result{Err: classify(err)}
	}

	h, ok := d.routes[route{call.Tool, call.Action}]
	if !ok {
		return Result{Err: protocol.NewError(protocol.KindInvalidParams, "unsupported action %q for tool %s", call.Action, call.Tool)}
	}

	defer func() {
		if p := recover(); p != nil {
			d.logger.Error("", "", "recovered panic in tool handler", map[string]interface{}{
				"tool":   call.Tool,
				"action": call.Action,
				"panic":  fmt.Sprint(p),
			})
			res = Result{Err: protocol.NewError(protocol.KindInternalError, "internal error: %v", p)}
		}
	}()

	value, err := h(ctx, call)
	if err != nil {
		return Result{Err: classify(err)}
	}

	if s, ok := value.(string); ok {
		return Result{Value: protocol.TextResult(s)}
	}
	text, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return Result{Err: protocol.NewError(protocol.KindInternalError, "failed to encode result: %v", err)}
	}
	return Result{Value: protocol.TextResult(string(text))}
}

// classify maps any error onto the wire taxonomy. Backend messages are
// preserved verbatim.
func classify(err error) *protocol.Error {
	var perr *protocol.Error
	if errors.As(err, &perr) {
		return perr
	}
	if errors.Is(err, base.ErrNotFound) {
		return &protocol.Error{Kind: protocol.KindNotFound, Message: base.BackendMessage(err)}
	}
	return &protocol.Error{Kind: protocol.KindInternalError, Message: base.BackendMessage(err)}
}
