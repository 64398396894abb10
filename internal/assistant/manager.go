package assistant

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/tour-assistant/pkg/logger"
	"github.com/capitalize-ai/tour-assistant/pkg/metrics"
)

// initTimeout bounds loading a session's rooms on first use.
const initTimeout = 15 * time.Second

// SessionFactory builds a session for a user.
type SessionFactory func(userID string) *Session

type managedSession struct {
	session  *Session
	lastUsed time.Time

	initMu sync.Mutex
	ready  bool
}

// Manager keeps one session per user and closes sessions that stay idle.
type Manager struct {
	mu          sync.Mutex
	sessions    map[string]*managedSession
	newSession  SessionFactory
	idleTimeout time.Duration
	now         func() time.Time
	logger      *logger.Logger
}

// NewManager creates a session manager.
func NewManager(factory SessionFactory, idleTimeout time.Duration, log *logger.Logger) *Manager {
	if log == nil {
		log = logger.NewNop()
	}
	return &Manager{
		sessions:    make(map[string]*managedSession),
		newSession:  factory,
		idleTimeout: idleTimeout,
		now:         time.Now,
		logger:      log.Named("sessions"),
	}
}

// Get returns the user's session, creating and initializing it on first use.
// Init outlives the calling request. An Init failure is logged and the
// session is returned with its local fallback conversation; the next Get
// retries until Init succeeds or the user has sent a message.
func (m *Manager) Get(ctx context.Context, userID string) *Session {
	m.mu.Lock()
	ms, ok := m.sessions[userID]
	if !ok {
		ms = &managedSession{session: m.newSession(userID)}
		m.sessions[userID] = ms
		metrics.SessionsActive.Set(float64(len(m.sessions)))
	}
	ms.lastUsed = m.now()
	m.mu.Unlock()

	ms.init(ctx, m.logger)
	return ms.session
}

func (ms *managedSession) init(ctx context.Context, log *logger.Logger) {
	ms.initMu.Lock()
	defer ms.initMu.Unlock()
	if ms.ready {
		return
	}
	if ms.session.Started() {
		ms.ready = true
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), initTimeout)
	defer cancel()
	if err := ms.session.Init(ctx); err != nil {
		log.Warn("session init failed", zap.String("user_id", ms.session.UserID()), zap.Error(err))
		ms.ready = errors.Is(err, ErrClosed)
		return
	}
	ms.ready = true
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep closes sessions idle for longer than the idle timeout. Sessions with
// a cycle in flight are kept.
func (m *Manager) Sweep() int {
	if m.idleTimeout <= 0 {
		return 0
	}
	cutoff := m.now().Add(-m.idleTimeout)

	m.mu.Lock()
	var expired []*Session
	for userID, ms := range m.sessions {
		if ms.lastUsed.After(cutoff) || ms.session.State().InFlight() {
			continue
		}
		expired = append(expired, ms.session)
		delete(m.sessions, userID)
	}
	metrics.SessionsActive.Set(float64(len(m.sessions)))
	m.mu.Unlock()

	for _, s := range expired {
		s.Close()
	}
	if len(expired) > 0 {
		m.logger.Debug("closed idle sessions", zap.Int("count", len(expired)))
	}
	return len(expired)
}

// Run sweeps periodically until ctx is done, then closes every session.
func (m *Manager) Run(ctx context.Context) {
	interval := m.idleTimeout / 2
	if interval <= 0 || interval > time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.CloseAll()
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}

// CloseAll closes every session.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*managedSession)
	metrics.SessionsActive.Set(0)
	m.mu.Unlock()

	for _, ms := range sessions {
		ms.session.Close()
	}
}
