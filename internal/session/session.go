package session

import (
	"context"
	"errors"

	"github.com/fjod/go_cart/pos-service/domain"
)

// Store keeps the cart and selected customer of each admin session.
type Store interface {
	Get(ctx context.Context, sessionID string) (*domain.Session, error)
	Set(ctx context.Context, s *domain.Session) error
	Delete(ctx context.Context, sessionID string) error
}

var ErrSessionMiss = errors.New("session not found")
