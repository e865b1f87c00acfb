package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kennybix/Shuttle/pkg/event"
	"github.com/kennybix/Shuttle/pkg/models"
	"github.com/kennybix/Shuttle/pkg/utils"
)

// ClientSession is the server-side state bound to one gateway connection.
// It owns the session's Transport, its bounded activity log, and the
// ordered event queue drained by the connection's single writer.
type ClientSession struct {
	ID        string
	CreatedAt time.Time

	ctx    context.Context
	cancel context.CancelFunc

	transport *Transport
	events    chan event.WSMessage

	mu     sync.Mutex
	log    []models.LogEntry
	logCap int

	closeOnce sync.Once
}

// Context is canceled when the session is closed.
func (s *ClientSession) Context() context.Context { return s.ctx }

// Transport returns the session's transport. The transport object lives
// as long as the session; its connection state cycles independently.
func (s *ClientSession) Transport() *Transport { return s.transport }

// Events is the queue the session's writer drains. Messages appear in
// emission order.
func (s *ClientSession) Events() <-chan event.WSMessage { return s.events }

// Emit queues an event for delivery to this session's client. It blocks
// when the queue is full rather than dropping or reordering, and gives up
// only when the session closes. The return value reports delivery into
// the queue.
func (s *ClientSession) Emit(ev event.Event) bool {
	msg := event.NewWSMessage(ev)
	select {
	case s.events <- msg:
		return true
	case <-s.ctx.Done():
		return false
	}
}

// Log appends one entry to the session's activity log and mirrors it to
// the client. The log keeps only the most recent entries.
func (s *ClientSession) Log(level models.LogLevel, message string) {
	entry := models.LogEntry{Timestamp: time.Now(), Message: message, Level: level}

	s.mu.Lock()
	s.log = append(s.log, entry)
	if s.logCap > 0 && len(s.log) > s.logCap {
		s.log = s.log[len(s.log)-s.logCap:]
	}
	s.mu.Unlock()

	s.Emit(event.LogEntryEvent{Timestamp: entry.Timestamp, Message: entry.Message, Level: entry.Level})
}

// LogEntries returns a snapshot of the activity log.
func (s *ClientSession) LogEntries() []models.LogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.LogEntry, len(s.log))
	copy(out, s.log)
	return out
}

// ClearLog empties the activity log.
func (s *ClientSession) ClearLog() {
	s.mu.Lock()
	s.log = nil
	s.mu.Unlock()
}

// Close cancels the session and tears down its transport. Idempotent.
// The event queue is never closed; pending emitters unblock through the
// canceled context.
func (s *ClientSession) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		s.transport.Disconnect()
	})
}

// Registry is the process-wide table of live sessions. It is constructed
// once at startup and handed to the gateway explicitly; nothing reaches
// it as ambient global state.
type Registry struct {
	logger *slog.Logger

	dialTimeout time.Duration
	keepalive   time.Duration
	logCap      int

	mu       sync.Mutex
	sessions map[string]*ClientSession
}

func NewRegistry(dialTimeout, keepalive time.Duration, logCap int) *Registry {
	return &Registry{
		logger:      utils.GetLogger(),
		dialTimeout: dialTimeout,
		keepalive:   keepalive,
		logCap:      logCap,
		sessions:    make(map[string]*ClientSession),
	}
}

// CreateSession registers a new session whose lifetime is bounded by
// parent. Each session gets its own Transport; transports are never
// shared between sessions.
func (r *Registry) CreateSession(parent context.Context) *ClientSession {
	ctx, cancel := context.WithCancel(parent)
	s := &ClientSession{
		ID:        uuid.NewString(),
		CreatedAt: time.Now(),
		ctx:       ctx,
		cancel:    cancel,
		transport: NewTransport(r.dialTimeout, r.keepalive),
		events:    make(chan event.WSMessage, 256),
		logCap:    r.logCap,
	}

	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()

	r.logger.Info("session created", "session", s.ID)
	return s
}

// Get looks up a live session by id.
func (r *Registry) Get(id string) (*ClientSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Remove closes a session and drops it from the table. Safe to call for
// ids that are already gone.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	if ok {
		s.Close()
		r.logger.Info("session removed", "session", id)
	}
}

// Count reports the number of live sessions.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// CloseAll tears down every session. Used on shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	sessions := make([]*ClientSession, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.sessions = make(map[string]*ClientSession)
	r.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}
