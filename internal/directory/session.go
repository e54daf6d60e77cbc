package directory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/providerhub/internal/platform/notification"
)

var (
	ErrSessionNotFound = errors.New("directory session not found")
	ErrInvalidToken    = errors.New("invalid session token")
)

const (
	DefaultSessionTTL = 30 * time.Minute
	sessionFeedSize   = 50
	tokenSubject      = "directory-session"
)

// Session pairs a View with the notifications it has raised.
type Session struct {
	ID        string
	View      *View
	Feed      *notification.Feed
	CreatedAt time.Time

	lastSeen time.Time
}

type sessionClaims struct {
	jwt.RegisteredClaims
}

// Sessions keeps one View per client, addressed by an HS256-signed token
// whose jti is the session id. A session expires once it has been idle for
// the configured TTL.
type Sessions struct {
	source Source
	center *notification.Center
	secret []byte
	ttl    time.Duration
	logger zerolog.Logger
	now    func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewSessions(source Source, center *notification.Center, secret []byte, ttl time.Duration, logger zerolog.Logger) *Sessions {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Sessions{
		source:   source,
		center:   center,
		secret:   secret,
		ttl:      ttl,
		logger:   logger.With().Str("component", "directory").Logger(),
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Create starts a session with a freshly loaded View and returns its token.
func (s *Sessions) Create(ctx context.Context) (*Session, string, error) {
	sid := uuid.NewString()
	feed := notification.NewFeed(sessionFeedSize)
	notifier := s.center.Scoped("directory", feed, map[string]string{"session_id": sid})

	view := NewView(s.source, notifier)
	if err := view.Load(ctx); err != nil {
		return nil, "", fmt.Errorf("load providers: %w", err)
	}

	now := s.now()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       sid,
			Subject:  tokenSubject,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}).SignedString(s.secret)
	if err != nil {
		return nil, "", fmt.Errorf("sign session token: %w", err)
	}

	sess := &Session{ID: sid, View: view, Feed: feed, CreatedAt: now, lastSeen: now}
	s.mu.Lock()
	s.sessions[sid] = sess
	s.mu.Unlock()

	s.logger.Debug().Str("session_id", sid).Int("providers", len(view.Providers())).Msg("directory session created")
	return sess, token, nil
}

// Resolve returns the live session for token and marks it as used.
func (s *Sessions) Resolve(token string) (*Session, error) {
	sid, err := s.parse(token)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sid]
	if !ok {
		return nil, ErrSessionNotFound
	}
	now := s.now()
	if now.Sub(sess.lastSeen) > s.ttl {
		delete(s.sessions, sid)
		return nil, ErrSessionNotFound
	}
	sess.lastSeen = now
	return sess, nil
}

// Close ends the session for token.
func (s *Sessions) Close(token string) error {
	sid, err := s.parse(token)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sid]; !ok {
		return ErrSessionNotFound
	}
	delete(s.sessions, sid)
	return nil
}

func (s *Sessions) parse(token string) (string, error) {
	claims := &sessionClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithSubject(tokenSubject), jwt.WithIssuedAt())
	if err != nil || !parsed.Valid || claims.ID == "" {
		return "", ErrInvalidToken
	}
	return claims.ID, nil
}

// Len returns the number of live sessions.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep drops idle sessions and returns how many were removed.
func (s *Sessions) Sweep() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for sid, sess := range s.sessions {
		if now.Sub(sess.lastSeen) > s.ttl {
			delete(s.sessions, sid)
			removed++
		}
	}
	return removed
}

// StartCleanup sweeps idle sessions every interval until ctx is done.
func (s *Sessions) StartCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := s.Sweep(); n > 0 {
					s.logger.Debug().Int("removed", n).Msg("expired directory sessions")
				}
			}
		}
	}()
}
