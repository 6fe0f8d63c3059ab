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

// Package localfs is the local byte source and sink used by object upload
// and download. Downloads are written to a temporary file next to the
// destination and only renamed into place on Commit.
package localfs

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"storagemcp/platform/connectors/base"
)

// Source is an open local file with a known size.
type Source interface {
	io.ReadCloser
	Size() int64
}

// Sink receives downloaded bytes. Exactly one of Commit or Abort must be called.
type Sink interface {
	io.Writer
	Commit() error
	Abort() error
}

// FileSystem opens sources and creates sinks by path.
type FileSystem interface {
	Open(path string) (Source, error)
	Create(path string) (Sink, error)
}

// OS is the FileSystem backed by the host file system.
type OS struct{}

type osSource struct {
	*os.File
	size int64
}

func (s *osSource) Size() int64 { return s.size }

// Open opens a regular file for reading.
func (OS) Open(path string) (Source, error) {
	if err := base.ValidateLocalPath(path); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.IsDir() {
		f.Close()
		return nil, fmt.Errorf("%s is a directory", path)
	}
	return &osSource{File: f, size: info.Size()}, nil
}

type osSink struct {
	tmp  *os.File
	dest string
	done bool
}

// Create prepares a sink for path, creating parent directories as needed.
func (OS) Create(path string) (Sink, error) {
	if err := base.ValidateLocalPath(path); err != nil {
		return nil, err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create directory %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".part-*")
	if err != nil {
		return nil, err
	}
	return &osSink{tmp: tmp, dest: path}, nil
}

func (s *osSink) Write(p []byte) (int, error) {
	return s.tmp.Write(p)
}

func (s *osSink) Commit() error {
	if s.done {
		return fmt.Errorf("sink for %s already closed", s.dest)
	}
	s.done = true
	if err := s.tmp.Close(); err != nil {
		os.Remove(s.tmp.Name())
		return err
	}
	if err := os.Rename(s.tmp.Name(), s.dest); err != nil {
		os.Remove(s.tmp.Name())
		return err
	}
	return nil
}

func (s *osSink) Abort() error {
	if s.done {
		return nil
	}
	s.done = true
	s.tmp.Close()
	return os.Remove(s.tmp.Name())
}

// Memory is an in-memory FileSystem for tests.
type Memory struct {
	mu    sync.Mutex
	files map[string][]byte
}

// NewMemory returns an empty in-memory file system.
func NewMemory() *Memory {
	return &Memory{files: make(map[string][]byte)}
}

// WriteFile stores data at path.
func (m *Memory) WriteFile(path string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = append([]byte(nil), data...)
}

// ReadFile returns the data stored at path.
func (m *Memory) ReadFile(path string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[path]
	return data, ok
}

type memSource struct {
	*bytes.Reader
}

func (memSource) Close() error { return nil }

func (m *Memory) Open(path string) (Source, error) {
	data, ok := m.ReadFile(path)
	if !ok {
		return nil, &os.PathError{Op: "open", Path: path, Err: os.ErrNotExist}
	}
	return memSource{bytes.NewReader(data)}, nil
}

type memSink struct {
	fs   *Memory
	path string
	buf  bytes.Buffer
	done bool
}

func (m *Memory) Create(path string) (Sink, error) {
	return &memSink{fs: m, path: path}, nil
}

func (s *memSink) Write(p []byte) (int, error) { return s.buf.Write(p) }

func (s *memSink) Commit() error {
	if s.done {
		return fmt.Errorf("sink for %s already closed", s.path)
	}
	s.done = true
	s.fs.WriteFile(s.path, s.buf.Bytes())
	return nil
}

func (s *memSink) Abort() error {
	s.done = true
	return nil
}
