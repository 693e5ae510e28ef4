package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/example/foodhall/pkg/apperr"
	"github.com/example/foodhall/pkg/config"
	"github.com/example/foodhall/pkg/events"
	"github.com/example/foodhall/pkg/ledger"
	"github.com/example/foodhall/pkg/models"
	"github.com/example/foodhall/pkg/payment"
	"github.com/example/foodhall/pkg/repository"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const (
	defaultFollowUpLimit = 100
	defaultHistoryLimit  = 50
)

type OrderLineInput struct {
	ItemID   string `json:"itemId"`
	Quantity int    `json:"quantity"`
}

// CreateOrderInput is the checkout form. Subtotal, Tax and Total are what the client
// displayed; the stored figures are always recomputed from catalog prices.
type CreateOrderInput struct {
	models.Contact
	models.Shipping
	PaymentMethod models.PaymentMethod
	Items         []OrderLineInput
	Subtotal      float64
	Tax           float64
	Total         float64
}

// normalize trims the contact and shipping fields and lower-cases the email, then
// requires every one of them.
func (in *CreateOrderInput) normalize() error {
	fields := []struct {
		value *string
		name  string
	}{
		{&in.FirstName, "First name"},
		{&in.LastName, "Last name"},
		{&in.Phone, "Phone"},
		{&in.Email, "Email"},
		{&in.Address, "Address"},
		{&in.City, "City"},
		{&in.Zipcode, "Zipcode"},
	}
	for _, f := range fields {
		*f.value = strings.TrimSpace(*f.value)
		if *f.value == "" {
			return apperr.InvalidInput(f.name + " is required")
		}
	}
	in.Email = strings.ToLower(in.Email)
	if !emailPattern.MatchString(in.Email) {
		return apperr.InvalidInput("Invalid email")
	}
	return nil
}

type CreateOrderResult struct {
	Order       *models.Order `json:"order"`
	CheckoutURL *string       `json:"checkoutUrl"`
}

// ContactUpdate holds the fields an owner may change after checkout.
type ContactUpdate struct {
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	Phone     *string `json:"phone"`
	Email     *string `json:"email"`
	Address   *string `json:"address"`
	City      *string `json:"city"`
	Zipcode   *string `json:"zipcode"`
}

// normalize applies the checkout rules to the fields being changed: none may be blank
// and the email is lower-cased and pattern checked.
func (u *ContactUpdate) normalize() error {
	fields := []struct {
		value *string
		name  string
	}{
		{u.FirstName, "First name"},
		{u.LastName, "Last name"},
		{u.Phone, "Phone"},
		{u.Email, "Email"},
		{u.Address, "Address"},
		{u.City, "City"},
		{u.Zipcode, "Zipcode"},
	}
	for _, f := range fields {
		if f.value == nil {
			continue
		}
		*f.value = strings.TrimSpace(*f.value)
		if *f.value == "" {
			return apperr.InvalidInput(f.name + " must not be empty")
		}
	}
	if u.Email != nil {
		*u.Email = strings.ToLower(*u.Email)
		if !emailPattern.MatchString(*u.Email) {
			return apperr.InvalidInput("Invalid email")
		}
	}
	return nil
}

func (u ContactUpdate) patch() repository.OrderPatch {
	return repository.OrderPatch{
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Phone:     u.Phone,
		Email:     u.Email,
		Address:   u.Address,
		City:      u.City,
		Zipcode:   u.Zipcode,
	}
}

type AdminOrderUpdate struct {
	ContactUpdate
	Status           *models.OrderStatus `json:"status"`
	ExpectedDelivery *time.Time          `json:"expectedDelivery"`
}

// AuditReader returns the audit trail of one entity, newest first.
type AuditReader interface {
	GetAuditLogs(ctx context.Context, entityID string, limit int64) ([]*repository.AuditLog, error)
}

type OrderDeps struct {
	Orders  repository.OrderRepository
	Items   repository.ItemRepository
	Gateway payment.Gateway
	Ledger  ledger.Recorder
	Events  events.Publisher
	Audit   AuditReader
}

type OrderService struct {
	orders  repository.OrderRepository
	items   repository.ItemRepository
	gateway payment.Gateway
	ledger  ledger.Recorder
	events  events.Publisher
	audit   AuditReader
	logger  *zap.Logger

	pricing        Pricing
	currency       string
	successURL     string
	cancelURL      string
	gatewayTimeout time.Duration
	now            func() time.Time
}

func NewOrderService(deps OrderDeps, cfg *config.Config, logger *zap.Logger) *OrderService {
	timeout := cfg.Payment.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &OrderService{
		orders:         deps.Orders,
		items:          deps.Items,
		gateway:        deps.Gateway,
		ledger:         deps.Ledger,
		events:         deps.Events,
		audit:          deps.Audit,
		logger:         logger.Named("order-service"),
		pricing:        NewPricing(cfg.Order.TaxRate, cfg.Order.Shipping),
		currency:       cfg.Payment.Currency,
		successURL:     cfg.SuccessURL(),
		cancelURL:      cfg.CancelURL(),
		gatewayTimeout: timeout,
		now:            time.Now,
	}
}

// CreateOrder persists the order before anything else. Cash orders are settled at once;
// gateway orders stay pending and get a checkout URL.
func (s *OrderService) CreateOrder(ctx context.Context, userID string, in CreateOrderInput) (*CreateOrderResult, error) {
	user, err := userIDFrom(userID)
	if err != nil {
		return nil, err
	}
	if len(in.Items) == 0 {
		return nil, apperr.InvalidInput("Invalid or empty items array")
	}
	if err := in.normalize(); err != nil {
		return nil, err
	}
	if in.PaymentMethod == "" {
		in.PaymentMethod = models.PaymentCOD
	}
	if !in.PaymentMethod.Valid() {
		return nil, apperr.InvalidInput("Invalid payment method")
	}

	lines, err := s.snapshotLines(ctx, in.Items)
	if err != nil {
		return nil, err
	}
	totals := s.pricing.Compute(lines)
	if !totals.Matches(in.Subtotal, in.Tax, in.Total) {
		s.logger.Warn("Client totals differ from computed totals",
			zap.String("user_id", userID),
			zap.Float64("client_total", in.Total),
			zap.String("total", totals.Total.StringFixed(2)))
	}

	order := &models.Order{
		User:          user,
		Contact:       in.Contact,
		Shipping:      in.Shipping,
		Items:         lines,
		PaymentMethod: in.PaymentMethod,
		PaymentStatus: models.PaymentSucceeded,
		Status:        models.StatusProcessing,
	}
	totals.apply(order)
	if in.PaymentMethod.RequiresGateway() {
		order.PaymentStatus = models.PaymentPending
	}

	if err := s.orders.Create(ctx, order); err != nil {
		return nil, storeErr(err, "order")
	}
	s.logger.Info("Order created",
		zap.String("order_id", order.ID.Hex()),
		zap.String("user_id", userID),
		zap.String("payment_method", string(order.PaymentMethod)),
		zap.Float64("total", order.Total))

	if !in.PaymentMethod.RequiresGateway() {
		s.publish(events.OrderPlaced, order, nil)
		return &CreateOrderResult{Order: order}, nil
	}

	url, err := s.openSession(ctx, order)
	if err != nil {
		return nil, err
	}
	s.publish(events.OrderPlaced, order, map[string]interface{}{"session_id": order.SessionID})
	return &CreateOrderResult{Order: order, CheckoutURL: &url}, nil
}

func (s *OrderService) snapshotLines(ctx context.Context, in []OrderLineInput) ([]models.OrderLine, error) {
	ids := make([]primitive.ObjectID, 0, len(in))
	for _, l := range in {
		if l.Quantity < 1 {
			return nil, apperr.InvalidInput("Quantity must be at least 1")
		}
		oid, err := primitive.ObjectIDFromHex(l.ItemID)
		if err != nil {
			return nil, apperr.InvalidInput("Invalid item id " + l.ItemID)
		}
		ids = append(ids, oid)
	}

	items, err := s.items.GetByIDs(ctx, ids)
	if err != nil {
		return nil, storeErr(err, "items")
	}

	lines := make([]models.OrderLine, 0, len(in))
	for i, id := range ids {
		item, ok := items[id]
		if !ok {
			return nil, apperr.InvalidInput("Item " + in[i].ItemID + " is no longer available")
		}
		lines = append(lines, models.OrderLine{
			ID:     primitive.NewObjectID(),
			ItemID: id,
			Item: models.OrderItemSnapshot{
				Name:     item.Name,
				Price:    item.Price,
				ImageURL: item.ImageURL,
			},
			Quantity: in[i].Quantity,
		})
	}
	return lines, nil
}

// openSession creates the checkout session for a persisted order. A gateway failure marks
// the order failed and is recorded for follow-up.
func (s *OrderService) openSession(ctx context.Context, order *models.Order) (string, error) {
	req := payment.SessionRequest{
		OrderID:       order.ID.Hex(),
		CustomerEmail: order.Email,
		SuccessURL:    s.successURL,
		CancelURL:     s.cancelURL,
		Metadata: map[string]string{
			"orderId":   order.ID.Hex(),
			"firstName": order.FirstName,
			"lastName":  order.LastName,
			"email":     order.Email,
			"phone":     order.Phone,
		},
	}
	for _, l := range order.Items {
		req.Items = append(req.Items, payment.LineItem{Name: l.Item.Name, UnitPrice: l.Item.Price, Quantity: l.Quantity})
	}
	// The charged amount has to equal the stored total.
	if order.Tax > 0 {
		req.Items = append(req.Items, payment.LineItem{Name: "Tax", UnitPrice: order.Tax, Quantity: 1})
	}
	if order.ShippingCost > 0 {
		req.Items = append(req.Items, payment.LineItem{Name: "Shipping", UnitPrice: order.ShippingCost, Quantity: 1})
	}

	gctx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
	defer cancel()

	session, err := s.gateway.CreateSession(gctx, req)
	if err != nil {
		s.logger.Error("Failed to create payment session", zap.String("order_id", order.ID.Hex()), zap.Error(err))
		s.record(ctx, order, "", ledger.AttemptGatewayError, err.Error())
		if serr := s.orders.SetPaymentStatus(ctx, order.ID, models.PaymentFailed); serr != nil {
			s.logger.Error("Failed to mark order failed", zap.String("order_id", order.ID.Hex()), zap.Error(serr))
		} else {
			order.PaymentStatus = models.PaymentFailed
		}
		s.publish(events.PaymentFailed, order, map[string]interface{}{"reason": err.Error()})
		return "", apperr.Wrap(apperr.KindGateway, "Payment gateway unavailable, please try again", err)
	}

	if err := s.orders.AttachSession(ctx, order.ID, session.ID, session.PaymentIntentID); err != nil {
		s.record(ctx, order, session.ID, ledger.AttemptGatewayError, "session created but not attached: "+err.Error())
		return "", storeErr(err, "order")
	}
	order.SessionID = session.ID
	order.PaymentIntentID = session.PaymentIntentID
	s.record(ctx, order, session.ID, ledger.AttemptSessionCreated, "")
	return session.URL, nil
}

// ConfirmPayment settles the order behind a paid checkout session. Calling it again for
// the same session returns the same order without repeating any side effect.
func (s *OrderService) ConfirmPayment(ctx context.Context, userID, sessionID string) (*models.Order, error) {
	user, err := userIDFrom(userID)
	if err != nil {
		return nil, err
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, apperr.InvalidInput("session_id required")
	}

	gctx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
	session, err := s.gateway.GetSession(gctx, sessionID)
	cancel()
	if err != nil {
		if errors.Is(err, payment.ErrSessionNotFound) {
			return nil, apperr.NotFound("Payment session not found")
		}
		s.logger.Error("Failed to resolve payment session", zap.String("session_id", sessionID), zap.Error(err))
		s.record(ctx, &models.Order{User: user}, sessionID, ledger.AttemptGatewayError, err.Error())
		return nil, apperr.Wrap(apperr.KindGateway, "Could not verify payment, please contact support", err)
	}

	order, err := s.orders.GetBySession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) && session.Paid {
			s.logger.Error("Paid session has no order", zap.String("session_id", sessionID))
			s.record(ctx, &models.Order{User: user}, sessionID, ledger.AttemptOrphaned, "paid session without order")
		}
		return nil, storeErr(err, "Order")
	}
	if order.User != user {
		return nil, apperr.Forbidden("Access Denied")
	}

	if !session.Paid {
		s.record(ctx, order, sessionID, ledger.AttemptUnpaid, "")
		return nil, apperr.InvalidInput("Payment not complete")
	}

	order, transitioned, err := s.orders.MarkPaid(ctx, sessionID)
	if err != nil {
		return nil, storeErr(err, "Order")
	}
	if transitioned {
		s.logger.Info("Payment confirmed", zap.String("order_id", order.ID.Hex()), zap.String("session_id", sessionID))
		s.record(ctx, order, sessionID, ledger.AttemptPaid, "")
		s.publish(events.PaymentConfirmed, order, map[string]interface{}{"session_id": sessionID})
	}
	return order, nil
}

func (s *OrderService) GetOrders(ctx context.Context, userID string) ([]models.Order, error) {
	user, err := userIDFrom(userID)
	if err != nil {
		return nil, err
	}
	orders, err := s.orders.ListByUser(ctx, user)
	if err != nil {
		return nil, storeErr(err, "orders")
	}
	return orders, nil
}

// GetOrder enforces ownership. A non-empty email must also match the order's contact email.
func (s *OrderService) GetOrder(ctx context.Context, userID, orderID, email string) (*models.Order, error) {
	user, err := userIDFrom(userID)
	if err != nil {
		return nil, err
	}
	id, err := objectID(orderID, "Order")
	if err != nil {
		return nil, err
	}
	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, "Order")
	}
	if order.User != user || (email != "" && !strings.EqualFold(order.Email, strings.TrimSpace(email))) {
		return nil, apperr.Forbidden("Access Denied")
	}
	return order, nil
}

func (s *OrderService) UpdateOrder(ctx context.Context, userID, orderID, email string, in ContactUpdate) (*models.Order, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	order, err := s.GetOrder(ctx, userID, orderID, email)
	if err != nil {
		return nil, err
	}
	updated, err := s.orders.Update(ctx, order.ID, in.patch())
	if err != nil {
		return nil, storeErr(err, "Order")
	}
	s.publish(events.OrderUpdated, updated, map[string]interface{}{"by": "owner"})
	return updated, nil
}

func (s *OrderService) ListAll(ctx context.Context) ([]models.Order, error) {
	orders, err := s.orders.ListAll(ctx)
	if err != nil {
		return nil, storeErr(err, "orders")
	}
	return orders, nil
}

// UpdateAnyOrder is the admin override; any status from the enum may be set at any time.
func (s *OrderService) UpdateAnyOrder(ctx context.Context, orderID string, in AdminOrderUpdate) (*models.Order, error) {
	id, err := objectID(orderID, "Order")
	if err != nil {
		return nil, err
	}

	if err := in.ContactUpdate.normalize(); err != nil {
		return nil, err
	}
	patch := in.ContactUpdate.patch()
	if in.Status != nil {
		if !in.Status.Valid() {
			return nil, apperr.InvalidInput("Invalid order status")
		}
		patch.Status = in.Status
		if *in.Status == models.StatusDelivered {
			now := s.now()
			patch.DeliveredAt = &now
		}
	}
	patch.ExpectedDelivery = in.ExpectedDelivery

	order, err := s.orders.Update(ctx, id, patch)
	if err != nil {
		return nil, storeErr(err, "Order")
	}
	s.logger.Info("Order updated by admin", zap.String("order_id", orderID), zap.String("status", string(order.Status)))
	s.publish(events.OrderUpdated, order, map[string]interface{}{"by": "admin", "status": string(order.Status)})
	return order, nil
}

// FollowUps lists payment attempts that need a person to look at them.
func (s *OrderService) FollowUps(ctx context.Context, limit int) ([]ledger.PaymentAttempt, error) {
	if limit <= 0 {
		limit = defaultFollowUpLimit
	}
	attempts, err := s.ledger.FollowUps(ctx, limit)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to list payment follow ups", err)
	}
	return attempts, nil
}

// History lists the audit entries written for an order.
func (s *OrderService) History(ctx context.Context, orderID string, limit int) ([]*repository.AuditLog, error) {
	oid, err := objectID(orderID, "Order")
	if err != nil {
		return nil, err
	}
	if _, err := s.orders.GetByID(ctx, oid); err != nil {
		return nil, storeErr(err, "Order")
	}
	if s.audit == nil {
		return []*repository.AuditLog{}, nil
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	logs, err := s.audit.GetAuditLogs(ctx, oid.Hex(), int64(limit))
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to load order history", err)
	}
	return logs, nil
}

// record never fails the request; a lost ledger row is logged instead.
func (s *OrderService) record(ctx context.Context, order *models.Order, sessionID string, status ledger.AttemptStatus, detail string) {
	attempt := &ledger.PaymentAttempt{
		UserID:    order.User.Hex(),
		SessionID: sessionID,
		Status:    status,
		Amount:    order.Total,
		Currency:  s.currency,
		Detail:    detail,
	}
	if !order.ID.IsZero() {
		attempt.OrderID = order.ID.Hex()
	}
	if err := s.ledger.Record(ctx, attempt); err != nil {
		s.logger.Error("Failed to record payment attempt",
			zap.String("session_id", sessionID),
			zap.String("status", string(status)),
			zap.Error(err))
	}
}

func (s *OrderService) publish(kind events.Kind, order *models.Order, data map[string]interface{}) {
	if data == nil {
		data = map[string]interface{}{}
	}
	data["payment_status"] = string(order.PaymentStatus)
	data["total"] = order.Total
	s.events.Publish(events.Event{
		Kind:     kind,
		EntityID: order.ID.Hex(),
		UserID:   order.User.Hex(),
		Data:     data,
	})
}
