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
	"log"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultStreamBuffer is the number of pushed messages held per stream.
const DefaultStreamBuffer = 64

// Manager owns the session registry. All registry mutations happen under
// one mutex, so concurrent Resolve calls presenting the same unknown id
// bind it to exactly one new session.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	// aliases maps a stale id presented by a client to the session
	// created for it.
	aliases map[string]string

	now      func() time.Time
	newID    func() string
	buffer   int
	logger   *log.Logger
	observer func(active int)
	onEnd    func(id string)
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithStreamBuffer sets the per-stream message buffer.
func WithStreamBuffer(n int) Option {
	return func(m *Manager) { m.buffer = n }
}

// WithLogger sets the lifecycle logger.
func WithLogger(l *log.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithObserver registers a callback receiving the live session count
// after every create and terminate.
func WithObserver(fn func(active int)) Option {
	return func(m *Manager) { m.observer = fn }
}

// WithTerminateHook registers a callback run with the id of every session
// that ends, whether terminated, reaped or closed. It runs outside the
// registry lock.
func WithTerminateHook(fn func(id string)) Option {
	return func(m *Manager) { m.onEnd = fn }
}

// NewManager creates an empty registry.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		sessions: make(map[string]*Session),
		aliases:  make(map[string]string),
		now:      time.Now,
		newID:    uuid.NewString,
		buffer:   DefaultStreamBuffer,
		logger:   log.New(os.Stderr, "[MCP_SESSION] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Resolve returns the live session for id, or registers a new session in
// the initializing state. An unknown or terminated id is bound to the new
// session so that later Resolve calls with it observe the same object.
func (m *Manager) Resolve(id string) *Session {
	m.mu.Lock()

	now := m.now()
	if id != "" {
		if s, ok := m.sessions[id]; ok {
			m.mu.Unlock()
			s.Touch(now)
			return s
		}
		if target, ok := m.aliases[id]; ok {
			if s, ok := m.sessions[target]; ok {
				m.mu.Unlock()
				s.Touch(now)
				return s
			}
			delete(m.aliases, id)
		}
	}

	s := newSession(m.newID(), now)
	m.sessions[s.id] = s
	if id != "" {
		s.alias = id
		m.aliases[id] = s.id
	}
	count := len(m.sessions)
	m.mu.Unlock()

	m.logger.Printf("Session created: %s", s.id)
	m.notify(count)
	return s
}

// Get returns the live session registered under id. It never creates one.
func (m *Manager) Get(id string) (*Session, error) {
	if id == "" {
		return nil, ErrNotFound
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// MarkActive moves an initializing session to active.
func (m *Manager) MarkActive(id string) error {
	s, err := m.Get(id)
	if err != nil {
		return err
	}
	s.activate()
	return nil
}

// Terminate removes the session from the registry and closes its stream.
func (m *Manager) Terminate(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	m.remove(s)
	count := len(m.sessions)
	m.mu.Unlock()

	s.terminate()
	m.logger.Printf("Session terminated: %s", id)
	m.ended(s)
	m.notify(count)
	return nil
}

// remove must be called with m.mu held.
func (m *Manager) remove(s *Session) {
	delete(m.sessions, s.id)
	if s.alias != "" && m.aliases[s.alias] == s.id {
		delete(m.aliases, s.alias)
	}
}

// AttachStream opens the push stream of a live session.
func (m *Manager) AttachStream(id string) (*Stream, error) {
	s, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	return s.AttachStream(m.buffer)
}

// DetachStream closes st. It is safe to call more than once.
func (m *Manager) DetachStream(st *Stream) {
	if st != nil {
		st.Close()
	}
}

// Notify pushes msg to the session's stream. Messages are dropped when no
// stream is attached.
func (m *Manager) Notify(id string, msg []byte) bool {
	s, err := m.Get(id)
	if err != nil {
		return false
	}
	return s.Notify(msg)
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// ReapIdle terminates sessions without an attached stream that have been
// idle longer than maxIdle, and returns how many were reaped.
func (m *Manager) ReapIdle(maxIdle time.Duration) int {
	cutoff := m.now().Add(-maxIdle)

	m.mu.Lock()
	var idle []*Session
	for _, s := range m.sessions {
		if s.LastSeen().Before(cutoff) && !s.hasStream() {
			idle = append(idle, s)
			m.remove(s)
		}
	}
	count := len(m.sessions)
	m.mu.Unlock()

	for _, s := range idle {
		s.terminate()
		m.logger.Printf("Session reaped after idle timeout: %s", s.id)
		m.ended(s)
	}
	if len(idle) > 0 {
		m.notify(count)
	}
	return len(idle)
}

// Close terminates every session.
func (m *Manager) Close() {
	m.mu.Lock()
	all := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		all = append(all, s)
	}
	m.sessions = make(map[string]*Session)
	m.aliases = make(map[string]string)
	m.mu.Unlock()

	for _, s := range all {
		s.terminate()
		m.ended(s)
	}
	if len(all) > 0 {
		m.logger.Printf("Closed %d sessions", len(all))
	}
	m.notify(0)
}

func (m *Manager) ended(s *Session) {
	if m.onEnd != nil {
		m.onEnd(s.id)
	}
}

func (m *Manager) notify(count int) {
	if m.observer != nil {
		m.observer(count)
	}
}
