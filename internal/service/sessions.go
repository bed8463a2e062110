package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fjod/go_cart/pos-service/domain"
	"github.com/fjod/go_cart/pos-service/internal/session"
	"golang.org/x/sync/singleflight"
)

// SessionManager loads and saves POS sessions. A missing session starts as an
// empty cart with no customer.
type SessionManager struct {
	store session.Store
	log   *slog.Logger
	sfg   singleflight.Group // coalesces concurrent loads of one session id
}

func NewSessionManager(store session.Store, log *slog.Logger) *SessionManager {
	return &SessionManager{store: store, log: log}
}

// Load returns a private copy of the session that the caller may mutate.
func (m *SessionManager) Load(ctx context.Context, sessionID string) (*domain.Session, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session id is required: %w", domain.ErrValidation)
	}

	// the shared load must not fail because the first caller went away
	loadCtx := context.WithoutCancel(ctx)
	v, err, _ := m.sfg.Do(sessionID, func() (interface{}, error) {
		s, err := m.store.Get(loadCtx, sessionID)
		if errors.Is(err, session.ErrSessionMiss) {
			m.log.DebugContext(ctx, "starting new pos session", "session_id", sessionID)
			return domain.NewSession(sessionID), nil
		}
		if err != nil {
			return nil, fmt.Errorf("load session: %w", err)
		}
		return s, nil
	})
	if err != nil {
		return nil, err
	}

	s := v.(*domain.Session).Clone()
	return &s, nil
}

func (m *SessionManager) Save(ctx context.Context, s *domain.Session) error {
	s.UpdatedAt = time.Now()
	if err := m.store.Set(ctx, s); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}
