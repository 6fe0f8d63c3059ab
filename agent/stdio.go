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

package agent

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
)

const maxStdioLine = 10 << 20

// lineWriter serializes newline-terminated writes.
type lineWriter struct {
	mu  sync.Mutex
	out io.Writer
}

func (w *lineWriter) writeLine(data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.out.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write to stdout: %w", err)
	}
	return nil
}

// ServeStdio runs the newline-delimited JSON-RPC transport on in and out.
// The process is one implicit session. Requests are handled concurrently
// and responses may be written in any order. It returns when in reaches
// EOF or ctx is cancelled, after in-flight requests finish.
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	sess := s.sessions.Resolve("")
	_ = s.sessions.MarkActive(sess.ID())
	defer func() { _ = s.sessions.Terminate(sess.ID()) }()

	w := &lineWriter{out: out}

	stream, err := s.sessions.AttachStream(sess.ID())
	if err != nil {
		return err
	}
	pushDone := make(chan struct{})
	go func() {
		defer close(pushDone)
		for {
			select {
			case msg := <-stream.Messages():
				_ = w.writeLine(msg)
			case <-stream.Done():
				for {
					select {
					case msg := <-stream.Messages():
						_ = w.writeLine(msg)
					default:
						return
					}
				}
			}
		}
	}()

	s.logger.Info(sess.ID(), "", "stdio transport ready", nil)

	lines := make(chan []byte)
	scanErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 64*1024), maxStdioLine)
		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}
			select {
			case lines <- append([]byte(nil), line...):
			case <-ctx.Done():
				scanErr <- nil
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	var wg sync.WaitGroup
	var result error
loop:
	for {
		select {
		case line := <-lines:
			wg.Add(1)
			go func(line []byte) {
				defer wg.Done()
				if resp := s.HandleMessage(ctx, sess, line); resp != nil {
					if err := w.writeLine(resp); err != nil {
						s.logger.Error(sess.ID(), "", "stdio write failed", map[string]interface{}{"error": err.Error()})
					}
				}
			}(line)
		case err := <-scanErr:
			result = err
			break loop
		case <-ctx.Done():
			break loop
		}
	}

	wg.Wait()
	stream.Close()
	<-pushDone
	return result
}
