package domain

import "time"

type Customer struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type Address struct {
	ID         int64  `json:"id"`
	UserID     int64  `json:"user_id"`
	Address    string `json:"address"`
	Country    string `json:"country"`
	State      string `json:"state"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	Phone      string `json:"phone"`
}

// SelectedCustomer is the buyer picked on the POS screen, denormalized into
// the session together with their saved addresses.
type SelectedCustomer struct {
	Customer
	Addresses []Address `json:"addresses"`
}

func (c *SelectedCustomer) Address(id int64) (Address, bool) {
	for _, a := range c.Addresses {
		if a.ID == id {
			return a, true
		}
	}
	return Address{}, false
}

// Session is everything the POS keeps for one admin session id.
type Session struct {
	ID        string            `json:"id"`
	Cart      Cart              `json:"cart"`
	Customer  *SelectedCustomer `json:"customer,omitempty"`
	UpdatedAt time.Time         `json:"updated_at"`
}

func NewSession(id string) *Session {
	return &Session{ID: id, Cart: NewCart(), UpdatedAt: time.Now()}
}

// Clone returns a deep copy of the session.
func (s Session) Clone() Session {
	s.Cart = s.Cart.Clone()
	if s.Customer != nil {
		c := *s.Customer
		c.Addresses = append([]Address(nil), s.Customer.Addresses...)
		s.Customer = &c
	}
	return s
}
