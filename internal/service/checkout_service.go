package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fjod/go_cart/pos-service/domain"
	"github.com/fjod/go_cart/pos-service/internal/pricing"
	"github.com/fjod/go_cart/pos-service/internal/store"
	"github.com/google/uuid"
)

// SellerPolicy decides which seller an order is attributed to.
type SellerPolicy interface {
	ResolveSeller(ctx context.Context, tx store.OrderTx, shopID *int64) (int64, error)
}

// ShopOwnerPolicy attributes the order to the owner of the given shop and
// falls back to DefaultSellerID when no shop is given.
type ShopOwnerPolicy struct {
	DefaultSellerID int64
}

func (p ShopOwnerPolicy) ResolveSeller(ctx context.Context, tx store.OrderTx, shopID *int64) (int64, error) {
	if shopID == nil || *shopID == 0 {
		return p.DefaultSellerID, nil
	}
	return tx.ShopOwner(ctx, *shopID)
}

// CodeGenerator returns a human readable order code for the given time.
type CodeGenerator func(now time.Time) string

func DefaultOrderCode(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return now.Format("20060102-150405") + "-" + suffix
}

type CheckoutService struct {
	orders   store.Orders
	sessions *SessionManager
	pricing  *pricing.Engine
	sellers  SellerPolicy
	codes    CodeGenerator
	log      *slog.Logger
	now      func() time.Time
}

func NewCheckoutService(orders store.Orders, sessions *SessionManager, engine *pricing.Engine, sellers SellerPolicy, log *slog.Logger) *CheckoutService {
	return &CheckoutService{
		orders:   orders,
		sessions: sessions,
		pricing:  engine,
		sellers:  sellers,
		codes:    DefaultOrderCode,
		log:      log,
		now:      time.Now,
	}
}

// checkoutRun tracks the state of one CreateOrder call.
type checkoutRun struct {
	state domain.CheckoutState
}

func (r *checkoutRun) advance(to domain.CheckoutState) error {
	if !domain.CanTransitionTo(r.state, to) {
		return fmt.Errorf("%s -> %s: %w", r.state, to, ErrIllegalTransition)
	}
	r.state = to
	return nil
}

// fail moves the run to FAILED and returns cause.
func (r *checkoutRun) fail(cause error) error {
	if err := r.advance(domain.CheckoutFailed); err != nil {
		return errors.Join(cause, err)
	}
	return cause
}

// CreateOrder turns the session cart into a persisted order. Everything from
// the combined order to the stock decrements happens in one transaction, and
// the cart is only cleared after it committed.
func (s *CheckoutService) CreateOrder(ctx context.Context, req *domain.CreateOrderRequest) (*domain.CreateOrderResponse, error) {
	run := &checkoutRun{state: domain.CheckoutIdle}
	if err := run.advance(domain.CheckoutValidating); err != nil {
		return nil, err
	}

	sess, err := s.sessions.Load(ctx, req.SessionID)
	if err != nil {
		return nil, run.fail(err)
	}
	if err := validateCheckout(req, sess); err != nil {
		s.log.InfoContext(ctx, "checkout rejected", "session_id", req.SessionID, "error", err)
		return nil, run.fail(err)
	}

	if err := run.advance(domain.CheckoutCommitting); err != nil {
		return nil, err
	}

	var resp *domain.CreateOrderResponse
	err = s.orders.WithTx(ctx, func(tx store.OrderTx) error {
		var errCommit error
		resp, errCommit = s.commit(ctx, tx, req, sess)
		return errCommit
	})
	if err != nil {
		s.log.WarnContext(ctx, "checkout failed", "session_id", req.SessionID, "error", err)
		return nil, run.fail(err)
	}

	if err := run.advance(domain.CheckoutCommitted); err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "order created",
		"session_id", req.SessionID,
		"order_id", resp.OrderID,
		"order_code", resp.OrderCode,
		"grand_total", resp.Totals.GrandTotal.String())

	sess.Cart.Clear()
	if errSave := s.sessions.Save(ctx, sess); errSave != nil {
		// the order exists, so the call still succeeds
		s.log.ErrorContext(ctx, "failed to clear cart after checkout",
			"session_id", req.SessionID, "order_id", resp.OrderID, "error", errSave)
	}
	return resp, nil
}

func validateCheckout(req *domain.CreateOrderRequest, sess *domain.Session) error {
	if sess.Cart.IsEmpty() {
		return domain.ErrEmptyCart
	}
	if !req.ShippingType.Valid() {
		return fmt.Errorf("unknown shipping type %q: %w", req.ShippingType, domain.ErrValidation)
	}
	if !req.PaymentStatus.Valid() {
		return fmt.Errorf("unknown payment status %q: %w", req.PaymentStatus, domain.ErrValidation)
	}
	if strings.TrimSpace(req.PaymentType) == "" {
		return fmt.Errorf("payment type is required: %w", domain.ErrValidation)
	}
	if req.ShippingType == domain.ShippingHomeDelivery && sess.Customer != nil && req.ShippingAddressID == nil {
		return domain.ErrMissingShippingAddress
	}
	return nil
}

func (s *CheckoutService) commit(ctx context.Context, tx store.OrderTx, req *domain.CreateOrderRequest, sess *domain.Session) (*domain.CreateOrderResponse, error) {
	shipping, err := shippingSnapshot(ctx, tx, req.ShippingAddressID, sess.Customer)
	if err != nil {
		return nil, err
	}

	cart, variants, err := reprice(ctx, tx, sess.Cart)
	if err != nil {
		return nil, err
	}
	totals := s.pricing.ComputeTotals(cart)

	var buyer *int64
	if sess.Customer != nil {
		id := sess.Customer.ID
		buyer = &id
	}

	combined := &domain.CombinedOrder{
		UserID:          buyer,
		ShippingAddress: shipping,
		GrandTotal:      totals.GrandTotal,
	}
	if err := tx.InsertCombinedOrder(ctx, combined); err != nil {
		return nil, err
	}

	sellerID, err := s.sellers.ResolveSeller(ctx, tx, req.ShopID)
	if err != nil {
		return nil, err
	}

	order := &domain.Order{
		CombinedOrderID: combined.ID,
		UserID:          buyer,
		SellerID:        sellerID,
		Code:            s.codes(s.now()),
		ShippingAddress: shipping,
		AdditionalInfo:  req.AdditionalInfo,
		ShippingType:    req.ShippingType,
		PaymentType:     req.PaymentType,
		PaymentStatus:   req.PaymentStatus,
		DeliveryStatus:  domain.DeliveryStatusPending,
		OrderFrom:       domain.OrderFromPOS,
		GrandTotal:      totals.GrandTotal,
		CouponDiscount:  totals.Discount,
	}
	if err := tx.InsertOrder(ctx, order); err != nil {
		return nil, err
	}

	lineTotals := make(map[string]domain.LineTotals, len(totals.Lines))
	for _, lt := range totals.Lines {
		lineTotals[lt.Key] = lt
	}

	for _, line := range cart.Sorted() {
		lt := lineTotals[line.Key]
		detail := &domain.OrderDetail{
			OrderID:        order.ID,
			SellerID:       sellerID,
			ProductID:      line.ProductID,
			VariationID:    line.VariationID,
			Variation:      line.Variation,
			Price:          s.pricing.Currency().Round(line.UnitPrice),
			Tax:            lt.Tax,
			ShippingCost:   lt.Shipping,
			Quantity:       line.Quantity,
			PaymentStatus:  req.PaymentStatus,
			DeliveryStatus: domain.DeliveryStatusPending,
			ShippingType:   req.ShippingType,
			ReferralCode:   line.ReferralCode,
		}
		if err := tx.InsertOrderDetail(ctx, detail); err != nil {
			return nil, err
		}
		order.Details = append(order.Details, *detail)

		if _, isVariant := variants[line.Key]; isVariant {
			err = tx.DecrementVariantStock(ctx, line.VariationID, line.Quantity)
		} else {
			err = tx.DecrementProductStock(ctx, line.ProductID, line.Quantity)
		}
		if err != nil {
			return nil, err
		}
		if err := tx.IncrementSales(ctx, line.ProductID, line.Quantity); err != nil {
			return nil, err
		}
	}

	event, err := orderCreatedEvent(order, totals)
	if err != nil {
		return nil, err
	}
	if err := tx.EnqueueEvent(ctx, event); err != nil {
		return nil, err
	}

	return &domain.CreateOrderResponse{
		OrderID:         order.ID,
		CombinedOrderID: combined.ID,
		OrderCode:       order.Code,
		Totals:          totals,
	}, nil
}

// shippingSnapshot copies the chosen address verbatim. The address has to
// belong to the selected customer.
func shippingSnapshot(ctx context.Context, tx store.OrderTx, addressID *int64, customer *domain.SelectedCustomer) (domain.Snapshot, error) {
	if addressID == nil {
		return nil, nil
	}

	address, err := tx.GetAddress(ctx, *addressID)
	if err != nil {
		return nil, err
	}
	if customer == nil || address.UserID != customer.ID {
		return nil, fmt.Errorf("address %d does not belong to the selected customer: %w", *addressID, domain.ErrNotFound)
	}

	return domain.Snapshot{
		"name":        customer.Name,
		"email":       customer.Email,
		"address":     address.Address,
		"country":     address.Country,
		"state":       address.State,
		"city":        address.City,
		"postal_code": address.PostalCode,
		"phone":       address.Phone,
	}, nil
}

// reprice rebuilds every line from catalog data read inside the transaction,
// keeping quantity and referral code. The returned set holds the keys of
// lines that decrement variant stock.
func reprice(ctx context.Context, tx store.OrderTx, cart domain.Cart) (domain.Cart, map[string]struct{}, error) {
	out := domain.NewCart()
	variants := make(map[string]struct{})

	for _, line := range cart.Sorted() {
		if line.Quantity < 1 {
			return domain.Cart{}, nil, fmt.Errorf("cart line %s has quantity %d: %w", line.Key, line.Quantity, domain.ErrValidation)
		}
		product, err := tx.GetProduct(ctx, line.ProductID)
		if err != nil {
			return domain.Cart{}, nil, err
		}
		if !product.Published {
			return domain.Cart{}, nil, fmt.Errorf("product %d is not published: %w", product.ID, domain.ErrNotFound)
		}

		var variant *domain.Variant
		if line.VariationID > 0 {
			variant, err = tx.GetVariant(ctx, line.ProductID, line.VariationID)
			if err != nil {
				return domain.Cart{}, nil, err
			}
			variants[line.Key] = struct{}{}
		}

		priced := priceLine(product, variant)
		priced.Quantity = line.Quantity
		priced.ReferralCode = line.ReferralCode
		out.Put(priced)
	}
	return out, variants, nil
}

type orderCreatedItem struct {
	ProductID   int64  `json:"product_id"`
	VariationID int64  `json:"variation_id,omitempty"`
	Quantity    int    `json:"quantity"`
	Price       string `json:"price"`
}

func orderCreatedEvent(order *domain.Order, totals domain.Totals) (*domain.OutboxEvent, error) {
	items := make([]orderCreatedItem, 0, len(order.Details))
	for _, d := range order.Details {
		items = append(items, orderCreatedItem{
			ProductID:   d.ProductID,
			VariationID: d.VariationID,
			Quantity:    d.Quantity,
			Price:       d.Price.String(),
		})
	}

	payload := map[string]interface{}{
		"order_id":          order.ID,
		"combined_order_id": order.CombinedOrderID,
		"code":              order.Code,
		"user_id":           order.UserID,
		"seller_id":         order.SellerID,
		"grand_total":       totals.GrandTotal.String(),
		"currency":          totals.Currency,
		"payment_status":    order.PaymentStatus,
		"items":             items,
		"created_at":        order.CreatedAt,
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal order payload: %w", err)
	}

	return &domain.OutboxEvent{
		AggregateID: order.Code,
		EventType:   domain.EventOrderCreated,
		Payload:     payloadJSON,
	}, nil
}

func (s *CheckoutService) GetOrder(ctx context.Context, id int64) (*domain.Order, error) {
	if id <= 0 {
		return nil, fmt.Errorf("order id must be positive: %w", domain.ErrValidation)
	}
	return s.orders.GetOrder(ctx, id)
}
