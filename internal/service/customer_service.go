package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fjod/go_cart/pos-service/domain"
	"github.com/fjod/go_cart/pos-service/internal/store"
)

type CustomerService struct {
	customers store.Customers
	sessions  *SessionManager
	log       *slog.Logger
}

func NewCustomerService(customers store.Customers, sessions *SessionManager, log *slog.Logger) *CustomerService {
	return &CustomerService{customers: customers, sessions: sessions, log: log}
}

// SelectCustomer attaches a buyer and their saved addresses to the session.
// A customer id of 0 switches back to a walk-in sale.
func (s *CustomerService) SelectCustomer(ctx context.Context, sessionID string, customerID int64) (*domain.SelectedCustomer, error) {
	if customerID < 0 {
		return nil, fmt.Errorf("customer id must not be negative: %w", domain.ErrValidation)
	}

	sess, err := s.sessions.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	var selected *domain.SelectedCustomer
	if customerID > 0 {
		customer, err := s.customers.GetCustomer(ctx, customerID)
		if err != nil {
			return nil, err
		}
		addresses, err := s.customers.GetCustomerAddresses(ctx, customerID)
		if err != nil {
			return nil, err
		}
		selected = &domain.SelectedCustomer{Customer: *customer, Addresses: addresses}
	}

	sess.Customer = selected
	if err := s.sessions.Save(ctx, sess); err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "pos customer selected", "session_id", sessionID, "customer_id", customerID)
	return selected, nil
}
