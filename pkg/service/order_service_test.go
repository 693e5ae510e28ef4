package service

import (
	"context"
	"errors"
	"testing"

	"github.com/example/foodhall/pkg/apperr"
	"github.com/example/foodhall/pkg/events"
	"github.com/example/foodhall/pkg/ledger"
	"github.com/example/foodhall/pkg/models"
	"github.com/example/foodhall/pkg/payment"
	"github.com/example/foodhall/pkg/repository"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap/zaptest"
)

type orderFixture struct {
	svc     *OrderService
	orders  *fakeOrders
	gateway *fakeGateway
	ledger  *fakeLedger
	events  *recordingPublisher
	audit   *fakeAudit
	item    *models.Item
	user    string
}

func newOrderFixture(t *testing.T) *orderFixture {
	item := &models.Item{Name: "Thali", Price: 100, Category: models.CategoryLunch, ImageURL: "thali.png"}
	f := &orderFixture{
		orders:  newFakeOrders(),
		gateway: newFakeGateway(),
		ledger:  &fakeLedger{},
		events:  &recordingPublisher{},
		audit:   &fakeAudit{},
		item:    item,
		user:    primitive.NewObjectID().Hex(),
	}
	f.svc = NewOrderService(OrderDeps{
		Orders:  f.orders,
		Items:   newFakeItems(item),
		Gateway: f.gateway,
		Ledger:  f.ledger,
		Events:  f.events,
		Audit:   f.audit,
	}, testConfig(), zaptest.NewLogger(t))
	return f
}

func (f *orderFixture) input(method models.PaymentMethod) CreateOrderInput {
	return CreateOrderInput{
		Contact:       models.Contact{FirstName: "Asha", LastName: "K", Phone: "999", Email: "a@x.com"},
		Shipping:      models.Shipping{Address: "1 Main St", City: "Pune", Zipcode: "411001"},
		PaymentMethod: method,
		Items:         []OrderLineInput{{ItemID: f.item.ID.Hex(), Quantity: 2}},
		Subtotal:      200,
		Tax:           30,
		Total:         230,
	}
}

func TestCreateCashOrder(t *testing.T) {
	f := newOrderFixture(t)

	res, err := f.svc.CreateOrder(context.Background(), f.user, f.input(models.PaymentCOD))
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if res.CheckoutURL != nil {
		t.Errorf("cash order got checkout url %q", *res.CheckoutURL)
	}
	stored := f.orders.get(res.Order.ID)
	if stored.PaymentStatus != models.PaymentSucceeded {
		t.Errorf("payment status = %s, want succeeded", stored.PaymentStatus)
	}
	if stored.Total != 230 || stored.Subtotal != 200 || stored.Tax != 30 {
		t.Errorf("totals = %v/%v/%v", stored.Subtotal, stored.Tax, stored.Total)
	}
	if stored.Status != models.StatusProcessing {
		t.Errorf("status = %s", stored.Status)
	}
	if stored.Items[0].Item.Name != "Thali" || stored.Items[0].Item.ImageURL != "thali.png" {
		t.Errorf("snapshot = %+v", stored.Items[0])
	}
	if len(f.gateway.requests) != 0 {
		t.Errorf("cash order must not call the gateway")
	}
	if f.events.count(events.OrderPlaced) != 1 {
		t.Errorf("expected one order_placed event")
	}
}

func TestCreateOrderIgnoresClientTotals(t *testing.T) {
	f := newOrderFixture(t)
	in := f.input(models.PaymentCOD)
	in.Subtotal, in.Tax, in.Total = 1, 0, 1

	res, err := f.svc.CreateOrder(context.Background(), f.user, in)
	if err != nil {
		t.Fatal(err)
	}
	if res.Order.Total != 230 {
		t.Errorf("total = %v, want server computed 230", res.Order.Total)
	}
	if res.Order.Total != res.Order.Subtotal+res.Order.Tax+res.Order.ShippingCost {
		t.Errorf("total does not add up: %+v", res.Order)
	}
}

func TestCreateOrderValidation(t *testing.T) {
	f := newOrderFixture(t)
	tests := []struct {
		name   string
		mutate func(in *CreateOrderInput)
	}{
		{"no items", func(in *CreateOrderInput) { in.Items = nil }},
		{"zero quantity", func(in *CreateOrderInput) { in.Items[0].Quantity = 0 }},
		{"unknown item", func(in *CreateOrderInput) { in.Items[0].ItemID = primitive.NewObjectID().Hex() }},
		{"bad item id", func(in *CreateOrderInput) { in.Items[0].ItemID = "nope" }},
		{"bad payment method", func(in *CreateOrderInput) { in.PaymentMethod = "barter" }},
		{"blank contact and shipping", func(in *CreateOrderInput) { in.Contact, in.Shipping = models.Contact{}, models.Shipping{} }},
		{"missing first name", func(in *CreateOrderInput) { in.FirstName = "" }},
		{"whitespace last name", func(in *CreateOrderInput) { in.LastName = "   " }},
		{"missing phone", func(in *CreateOrderInput) { in.Phone = "" }},
		{"missing email", func(in *CreateOrderInput) { in.Email = "" }},
		{"malformed email", func(in *CreateOrderInput) { in.Email = "not-an-email" }},
		{"missing address", func(in *CreateOrderInput) { in.Address = "" }},
		{"missing city", func(in *CreateOrderInput) { in.City = "" }},
		{"missing zipcode", func(in *CreateOrderInput) { in.Zipcode = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := f.input(models.PaymentCOD)
			tt.mutate(&in)
			_, err := f.svc.CreateOrder(context.Background(), f.user, in)
			if apperr.KindOf(err) != apperr.KindInvalidInput {
				t.Errorf("got %v, want invalid input", err)
			}
		})
	}
	if len(f.orders.orders) != 0 {
		t.Errorf("invalid input persisted %d orders", len(f.orders.orders))
	}
}

func TestOnlineOrderThenConfirm(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	res, err := f.svc.CreateOrder(ctx, f.user, f.input(models.PaymentOnline))
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if res.CheckoutURL == nil || *res.CheckoutURL == "" {
		t.Fatal("expected checkout url")
	}
	if res.Order.PaymentStatus != models.PaymentPending {
		t.Errorf("payment status = %s, want pending", res.Order.PaymentStatus)
	}
	sessionID := res.Order.SessionID
	if f.orders.get(res.Order.ID).SessionID != sessionID || sessionID == "" {
		t.Fatalf("session id not persisted on order")
	}
	req := f.gateway.requests[0]
	if req.Items[0].UnitPrice != 100 || req.Items[0].Quantity != 2 {
		t.Errorf("gateway line items = %+v", req.Items)
	}
	if req.SuccessURL != "http://shop.test/myorder/verify?success=true&session_id={CHECKOUT_SESSION_ID}" {
		t.Errorf("success url = %q", req.SuccessURL)
	}

	f.gateway.pay(sessionID)
	first, err := f.svc.ConfirmPayment(ctx, f.user, sessionID)
	if err != nil {
		t.Fatalf("ConfirmPayment: %v", err)
	}
	if first.PaymentStatus != models.PaymentSucceeded {
		t.Errorf("payment status = %s, want succeeded", first.PaymentStatus)
	}
	writes := f.orders.writes

	second, err := f.svc.ConfirmPayment(ctx, f.user, sessionID)
	if err != nil {
		t.Fatalf("second ConfirmPayment: %v", err)
	}
	if second.PaymentStatus != first.PaymentStatus || second.ID != first.ID || second.Status != first.Status {
		t.Errorf("second confirm changed the order: %+v vs %+v", second, first)
	}
	if f.orders.writes != writes {
		t.Errorf("second confirm wrote to the store")
	}
	if f.events.count(events.PaymentConfirmed) != 1 {
		t.Errorf("payment_confirmed emitted %d times, want 1", f.events.count(events.PaymentConfirmed))
	}
	want := []ledger.AttemptStatus{ledger.AttemptSessionCreated, ledger.AttemptPaid}
	if got := f.ledger.statuses(); len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("ledger = %v, want %v", got, want)
	}
}

func TestConfirmUnpaidSession(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	res, err := f.svc.CreateOrder(ctx, f.user, f.input(models.PaymentCard))
	if err != nil {
		t.Fatal(err)
	}

	_, err = f.svc.ConfirmPayment(ctx, f.user, res.Order.SessionID)
	if apperr.KindOf(err) != apperr.KindInvalidInput {
		t.Fatalf("got %v, want payment not complete", err)
	}
	if f.orders.get(res.Order.ID).PaymentStatus != models.PaymentPending {
		t.Errorf("unpaid confirm mutated the order")
	}
}

func TestConfirmPaymentErrors(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	res, err := f.svc.CreateOrder(ctx, f.user, f.input(models.PaymentOnline))
	if err != nil {
		t.Fatal(err)
	}
	f.gateway.pay(res.Order.SessionID)

	if _, err := f.svc.ConfirmPayment(ctx, f.user, ""); apperr.KindOf(err) != apperr.KindInvalidInput {
		t.Errorf("empty session: got %v", err)
	}
	if _, err := f.svc.ConfirmPayment(ctx, f.user, "cs_unknown"); apperr.KindOf(err) != apperr.KindNotFound {
		t.Errorf("unknown session: got %v", err)
	}
	other := primitive.NewObjectID().Hex()
	if _, err := f.svc.ConfirmPayment(ctx, other, res.Order.SessionID); apperr.KindOf(err) != apperr.KindForbidden {
		t.Errorf("foreign session: got %v", err)
	}
	if f.orders.get(res.Order.ID).PaymentStatus != models.PaymentPending {
		t.Errorf("foreign confirm mutated the order")
	}
}

func TestConfirmOrphanedSessionIsFlagged(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	res, err := f.svc.CreateOrder(ctx, f.user, f.input(models.PaymentOnline))
	if err != nil {
		t.Fatal(err)
	}
	f.gateway.pay(res.Order.SessionID)
	delete(f.orders.orders, res.Order.ID)

	_, err = f.svc.ConfirmPayment(ctx, f.user, res.Order.SessionID)
	if apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("got %v, want not found", err)
	}
	followUps, err := f.svc.FollowUps(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(followUps) != 1 || followUps[0].Status != ledger.AttemptOrphaned {
		t.Errorf("follow ups = %+v", followUps)
	}
}

func TestGatewayFailureMarksOrderFailed(t *testing.T) {
	f := newOrderFixture(t)
	f.gateway.createErr = errors.New("connection reset")

	_, err := f.svc.CreateOrder(context.Background(), f.user, f.input(models.PaymentOnline))
	if apperr.KindOf(err) != apperr.KindGateway {
		t.Fatalf("got %v, want gateway error", err)
	}
	if len(f.orders.orders) != 1 {
		t.Fatalf("order must be persisted before the gateway call")
	}
	for _, o := range f.orders.orders {
		if o.PaymentStatus != models.PaymentFailed {
			t.Errorf("payment status = %s, want failed", o.PaymentStatus)
		}
	}
	if got := f.ledger.statuses(); len(got) != 1 || got[0] != ledger.AttemptGatewayError {
		t.Errorf("ledger = %v", got)
	}
	if f.events.count(events.PaymentFailed) != 1 {
		t.Errorf("expected payment_failed event")
	}
}

func TestGetOrderOwnership(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	res, err := f.svc.CreateOrder(ctx, f.user, f.input(models.PaymentCOD))
	if err != nil {
		t.Fatal(err)
	}
	id := res.Order.ID.Hex()

	tests := []struct {
		name  string
		user  string
		email string
		want  apperr.Kind
		ok    bool
	}{
		{name: "owner", user: f.user, ok: true},
		{name: "owner with matching email", user: f.user, email: "a@x.com", ok: true},
		{name: "owner with other email", user: f.user, email: "b@x.com", want: apperr.KindForbidden},
		{name: "someone else", user: primitive.NewObjectID().Hex(), want: apperr.KindForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.GetOrder(ctx, tt.user, id, tt.email)
			if tt.ok {
				if err != nil {
					t.Errorf("unexpected error %v", err)
				}
				return
			}
			if apperr.KindOf(err) != tt.want {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}

	if _, err := f.svc.GetOrder(ctx, f.user, id, " A@X.com "); err != nil {
		t.Errorf("email match should ignore case: %v", err)
	}
	if _, err := f.svc.GetOrder(ctx, f.user, primitive.NewObjectID().Hex(), ""); apperr.KindOf(err) != apperr.KindNotFound {
		t.Errorf("missing order: got %v", err)
	}
}

func TestOwnerAndAdminUpdates(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	res, err := f.svc.CreateOrder(ctx, f.user, f.input(models.PaymentCOD))
	if err != nil {
		t.Fatal(err)
	}
	id := res.Order.ID.Hex()

	city := "Mumbai"
	updated, err := f.svc.UpdateOrder(ctx, f.user, id, "", ContactUpdate{City: &city})
	if err != nil {
		t.Fatalf("UpdateOrder: %v", err)
	}
	if updated.City != "Mumbai" || updated.Address != "1 Main St" {
		t.Errorf("owner update merged badly: %+v", updated.Shipping)
	}
	if _, err := f.svc.UpdateOrder(ctx, primitive.NewObjectID().Hex(), id, "", ContactUpdate{City: &city}); apperr.KindOf(err) != apperr.KindForbidden {
		t.Errorf("foreign update: got %v", err)
	}

	delivered := models.StatusDelivered
	updated, err = f.svc.UpdateAnyOrder(ctx, id, AdminOrderUpdate{Status: &delivered})
	if err != nil {
		t.Fatalf("UpdateAnyOrder: %v", err)
	}
	if updated.Status != models.StatusDelivered || updated.DeliveredAt == nil {
		t.Errorf("admin update = status %s delivered at %v", updated.Status, updated.DeliveredAt)
	}

	processing := models.StatusProcessing
	if updated, err = f.svc.UpdateAnyOrder(ctx, id, AdminOrderUpdate{Status: &processing}); err != nil || updated.Status != models.StatusProcessing {
		t.Errorf("admin may move status backwards: %v", err)
	}

	blank := "  "
	if _, err := f.svc.UpdateOrder(ctx, f.user, id, "", ContactUpdate{City: &blank}); apperr.KindOf(err) != apperr.KindInvalidInput {
		t.Errorf("blank city: got %v", err)
	}
	badEmail := "nope"
	if _, err := f.svc.UpdateAnyOrder(ctx, id, AdminOrderUpdate{ContactUpdate: ContactUpdate{Email: &badEmail}}); apperr.KindOf(err) != apperr.KindInvalidInput {
		t.Errorf("bad email: got %v", err)
	}
	newEmail := " Asha@Example.COM"
	updated, err = f.svc.UpdateOrder(ctx, f.user, id, "", ContactUpdate{Email: &newEmail})
	if err != nil {
		t.Fatalf("email update: %v", err)
	}
	if updated.Email != "asha@example.com" {
		t.Errorf("email = %q", updated.Email)
	}

	bogus := models.OrderStatus("shipped")
	if _, err := f.svc.UpdateAnyOrder(ctx, id, AdminOrderUpdate{Status: &bogus}); apperr.KindOf(err) != apperr.KindInvalidInput {
		t.Errorf("unknown status: got %v", err)
	}
	if f.orders.get(res.Order.ID).PaymentStatus != models.PaymentSucceeded {
		t.Errorf("updates must not touch payment status")
	}
}

func TestListOrders(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := f.svc.CreateOrder(ctx, f.user, f.input(models.PaymentCOD)); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := f.svc.CreateOrder(ctx, primitive.NewObjectID().Hex(), f.input(models.PaymentCOD)); err != nil {
		t.Fatal(err)
	}

	mine, err := f.svc.GetOrders(ctx, f.user)
	if err != nil || len(mine) != 2 {
		t.Errorf("GetOrders = %d, %v", len(mine), err)
	}
	all, err := f.svc.ListAll(ctx)
	if err != nil || len(all) != 3 {
		t.Errorf("ListAll = %d, %v", len(all), err)
	}
}

type fakeAudit struct {
	entity string
	limit  int64
}

func (a *fakeAudit) GetAuditLogs(_ context.Context, entityID string, limit int64) ([]*repository.AuditLog, error) {
	a.entity, a.limit = entityID, limit
	return []*repository.AuditLog{
		{Action: string(events.PaymentConfirmed), EntityID: entityID},
		{Action: string(events.OrderPlaced), EntityID: entityID},
	}, nil
}

func TestOrderHistory(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	res, err := f.svc.CreateOrder(ctx, f.user, f.input(models.PaymentCOD))
	if err != nil {
		t.Fatal(err)
	}

	logs, err := f.svc.History(ctx, res.Order.ID.Hex(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(logs) != 2 || f.audit.entity != res.Order.ID.Hex() || f.audit.limit != defaultHistoryLimit {
		t.Errorf("logs = %d, entity %q, limit %d", len(logs), f.audit.entity, f.audit.limit)
	}

	for _, id := range []string{"not-an-id", primitive.NewObjectID().Hex()} {
		if _, err := f.svc.History(ctx, id, 10); apperr.KindOf(err) != apperr.KindNotFound {
			t.Errorf("History(%q) kind = %v", id, apperr.KindOf(err))
		}
	}
}

func TestCreateOrderNormalizesContact(t *testing.T) {
	f := newOrderFixture(t)
	in := f.input(models.PaymentCOD)
	in.Email = "  Asha@X.COM "
	in.City = " Pune "

	res, err := f.svc.CreateOrder(context.Background(), f.user, in)
	if err != nil {
		t.Fatal(err)
	}
	if res.Order.Email != "asha@x.com" || res.Order.City != "Pune" {
		t.Errorf("contact = %q / %q", res.Order.Email, res.Order.City)
	}
}

func TestCheckoutChargesStoredTotal(t *testing.T) {
	f := newOrderFixture(t)
	in := f.input(models.PaymentCard)
	in.Items[0].Quantity = 3

	res, err := f.svc.CreateOrder(context.Background(), f.user, in)
	if err != nil {
		t.Fatal(err)
	}
	req := f.gateway.requests[0]

	var charged int64
	for _, it := range req.Items {
		charged += payment.MinorUnits(it.UnitPrice) * int64(it.Quantity)
	}
	if charged != payment.MinorUnits(res.Order.Total) {
		t.Errorf("charged %d minor units, order total %v", charged, res.Order.Total)
	}
	last := req.Items[len(req.Items)-1]
	if last.Name != "Tax" || last.UnitPrice != 45 || last.Quantity != 1 {
		t.Errorf("tax line = %+v", last)
	}
}
