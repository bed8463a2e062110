package domain

type CheckoutState string

const (
	CheckoutIdle       CheckoutState = "IDLE"
	CheckoutValidating CheckoutState = "VALIDATING"
	CheckoutCommitting CheckoutState = "COMMITTING"
	CheckoutCommitted  CheckoutState = "COMMITTED"
	CheckoutFailed     CheckoutState = "FAILED"
)

func (s CheckoutState) IsTerminal() bool {
	return s == CheckoutCommitted || s == CheckoutFailed
}

// String representation (for logging)
func (s CheckoutState) String() string {
	return string(s)
}

var checkoutTransitions = map[CheckoutState][]CheckoutState{
	CheckoutIdle:       {CheckoutValidating},
	CheckoutValidating: {CheckoutCommitting, CheckoutFailed},
	CheckoutCommitting: {CheckoutCommitted, CheckoutFailed},
}

func CanTransitionTo(from, to CheckoutState) bool {
	for _, next := range checkoutTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
