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

package session

import (
	"errors"
	"sync"
	"time"
)

var (
	// ErrNotFound is returned for ids that name no live session.
	ErrNotFound = errors.New("session not found")
	// ErrStreamBusy is returned when a push stream is already attached.
	ErrStreamBusy = errors.New("session already has an attached stream")
	// ErrTerminated is returned for operations on a terminated session.
	ErrTerminated = errors.New("session terminated")
)

// State is the liveness state of a session.
type State int

const (
	StateInitializing State = iota
	StateActive
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateActive:
		return "active"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Session is one logical client connection. It is created and torn down
// only by a Manager.
type Session struct {
	id      string
	created time.Time
	alias   string

	mu       sync.Mutex
	state    State
	lastSeen time.Time
	stream   *Stream
	done     chan struct{}
}

func newSession(id string, now time.Time) *Session {
	return &Session{
		id:       id,
		created:  now,
		state:    StateInitializing,
		lastSeen: now,
		done:     make(chan struct{}),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// CreatedAt returns the creation time.
func (s *Session) CreatedAt() time.Time { return s.created }

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastSeen returns the time of the last Touch.
func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// Touch records activity at t.
func (s *Session) Touch(t time.Time) {
	s.mu.Lock()
	if t.After(s.lastSeen) {
		s.lastSeen = t
	}
	s.mu.Unlock()
}

// Done is closed when the session is terminated.
func (s *Session) Done() <-chan struct{} { return s.done }

// Terminated reports whether the session has been terminated.
func (s *Session) Terminated() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *Session) activate() {
	s.mu.Lock()
	if s.state == StateInitializing {
		s.state = StateActive
	}
	s.mu.Unlock()
}

// terminate is idempotent and closes any attached stream.
func (s *Session) terminate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateTerminated {
		return
	}
	s.state = StateTerminated
	close(s.done)
	if s.stream != nil {
		s.stream.shut()
		s.stream = nil
	}
}

func (s *Session) hasStream() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stream != nil
}

// AttachStream opens the push stream. At most one stream is live per session.
func (s *Session) AttachStream(buffer int) (*Stream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateTerminated {
		return nil, ErrTerminated
	}
	if s.stream != nil {
		return nil, ErrStreamBusy
	}
	if buffer <= 0 {
		buffer = 1
	}
	st := &Stream{
		session:  s,
		messages: make(chan []byte, buffer),
		closed:   make(chan struct{}),
	}
	s.stream = st
	return st, nil
}

// Notify queues msg on the attached stream. It reports false when no
// stream is attached or its buffer is full.
func (s *Session) Notify(msg []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream == nil {
		return false
	}
	select {
	case s.stream.messages <- msg:
		return true
	default:
		return false
	}
}

// Stream is the server-push channel of a session.
type Stream struct {
	session  *Session
	messages chan []byte
	closed   chan struct{}
	once     sync.Once
}

// Messages yields queued messages.
func (st *Stream) Messages() <-chan []byte { return st.messages }

// Done is closed when the stream is detached or the session terminated.
func (st *Stream) Done() <-chan struct{} { return st.closed }

// Close detaches the stream from its session.
func (st *Stream) Close() {
	s := st.session
	s.mu.Lock()
	if s.stream == st {
		s.stream = nil
	}
	s.mu.Unlock()
	st.shut()
}

func (st *Stream) shut() {
	st.once.Do(func() { close(st.closed) })
}
