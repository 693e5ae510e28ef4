package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/example/foodhall/pkg/config"
	"github.com/example/foodhall/pkg/events"
	"github.com/example/foodhall/pkg/ledger"
	"github.com/example/foodhall/pkg/models"
	"github.com/example/foodhall/pkg/payment"
	"github.com/example/foodhall/pkg/repository"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func testConfig() *config.Config {
	return &config.Config{
		Payment: config.PaymentConfig{
			Currency:    "inr",
			Timeout:     time.Second,
			SuccessPath: "/myorder/verify?success=true&session_id={CHECKOUT_SESSION_ID}",
			CancelPath:  "/checkout?payment_status=cancel",
		},
		URLs:  config.URLConfig{Frontend: "http://shop.test"},
		Order: config.OrderConfig{TaxRate: 0.15},
	}
}

type fakeItems struct {
	mu    sync.Mutex
	items map[primitive.ObjectID]*models.Item
}

func newFakeItems(items ...*models.Item) *fakeItems {
	f := &fakeItems{items: map[primitive.ObjectID]*models.Item{}}
	for _, it := range items {
		if it.ID.IsZero() {
			it.ID = primitive.NewObjectID()
		}
		f.items[it.ID] = it
	}
	return f
}

func (f *fakeItems) Create(_ context.Context, item *models.Item) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	item.ID = primitive.NewObjectID()
	f.items[item.ID] = item
	return nil
}

func (f *fakeItems) List(context.Context) ([]models.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.Item{}
	for _, it := range f.items {
		out = append(out, *it)
	}
	return out, nil
}

func (f *fakeItems) GetByID(_ context.Context, id primitive.ObjectID) (*models.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	it, ok := f.items[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *it
	return &cp, nil
}

func (f *fakeItems) GetByIDs(_ context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]*models.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[primitive.ObjectID]*models.Item{}
	for _, id := range ids {
		if it, ok := f.items[id]; ok {
			cp := *it
			out[id] = &cp
		}
	}
	return out, nil
}

func (f *fakeItems) Delete(_ context.Context, id primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.items[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.items, id)
	return nil
}

func (f *fakeItems) IncrementHearts(_ context.Context, id primitive.ObjectID) (*models.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	it, ok := f.items[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	it.Hearts++
	cp := *it
	return &cp, nil
}

type fakeUsers struct {
	mu    sync.Mutex
	users map[primitive.ObjectID]*models.User
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{users: map[primitive.ObjectID]*models.User{}}
}

func (f *fakeUsers) Create(_ context.Context, u *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.users {
		if existing.Email == u.Email {
			return repository.ErrDuplicate
		}
	}
	u.ID = primitive.NewObjectID()
	cp := *u
	f.users[u.ID] = &cp
	return nil
}

func (f *fakeUsers) GetByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

// fakeCart enforces the (user, item) uniqueness the mongo index provides.
type fakeCart struct {
	mu      sync.Mutex
	entries map[primitive.ObjectID]*models.CartEntry
	seq     int
}

func newFakeCart() *fakeCart {
	return &fakeCart{entries: map[primitive.ObjectID]*models.CartEntry{}}
}

func (f *fakeCart) ListByUser(_ context.Context, user primitive.ObjectID) ([]models.CartEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.CartEntry{}
	for _, e := range f.entries {
		if e.User == user {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeCart) Upsert(_ context.Context, user, item primitive.ObjectID, quantity int) (*models.CartEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.entries {
		if e.User == user && e.Item == item {
			e.Quantity = quantity
			cp := *e
			return &cp, nil
		}
	}
	f.seq++
	e := &models.CartEntry{
		ID:        primitive.NewObjectID(),
		User:      user,
		Item:      item,
		Quantity:  quantity,
		CreatedAt: time.Unix(int64(f.seq), 0),
	}
	f.entries[e.ID] = e
	cp := *e
	return &cp, nil
}

func (f *fakeCart) SetQuantity(_ context.Context, id, user primitive.ObjectID, quantity int) (*models.CartEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[id]
	if !ok || e.User != user {
		return nil, repository.ErrNotFound
	}
	e.Quantity = quantity
	cp := *e
	return &cp, nil
}

func (f *fakeCart) Delete(_ context.Context, id, user primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[id]
	if !ok || e.User != user {
		return repository.ErrNotFound
	}
	delete(f.entries, id)
	return nil
}

func (f *fakeCart) DeleteByUser(_ context.Context, user primitive.ObjectID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for id, e := range f.entries {
		if e.User == user {
			delete(f.entries, id)
			n++
		}
	}
	return n, nil
}

type fakeOrders struct {
	mu     sync.Mutex
	orders map[primitive.ObjectID]*models.Order
	writes int
}

func newFakeOrders() *fakeOrders {
	return &fakeOrders{orders: map[primitive.ObjectID]*models.Order{}}
}

func (f *fakeOrders) Create(_ context.Context, o *models.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o.ID = primitive.NewObjectID()
	o.CreatedAt = time.Now()
	cp := *o
	f.orders[o.ID] = &cp
	f.writes++
	return nil
}

func (f *fakeOrders) get(id primitive.ObjectID) *models.Order {
	f.mu.Lock()
	defer f.mu.Unlock()
	if o, ok := f.orders[id]; ok {
		cp := *o
		return &cp
	}
	return nil
}

func (f *fakeOrders) GetByID(_ context.Context, id primitive.ObjectID) (*models.Order, error) {
	if o := f.get(id); o != nil {
		return o, nil
	}
	return nil, repository.ErrNotFound
}

func (f *fakeOrders) GetBySession(_ context.Context, sessionID string) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.orders {
		if o.SessionID == sessionID {
			cp := *o
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeOrders) ListByUser(_ context.Context, user primitive.ObjectID) ([]models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.Order{}
	for _, o := range f.orders {
		if o.User == user {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (f *fakeOrders) ListAll(context.Context) ([]models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.Order{}
	for _, o := range f.orders {
		out = append(out, *o)
	}
	return out, nil
}

func (f *fakeOrders) AttachSession(_ context.Context, id primitive.ObjectID, sessionID, intentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return repository.ErrNotFound
	}
	o.SessionID, o.PaymentIntentID = sessionID, intentID
	f.writes++
	return nil
}

func (f *fakeOrders) SetPaymentStatus(_ context.Context, id primitive.ObjectID, status models.PaymentStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return repository.ErrNotFound
	}
	o.PaymentStatus = status
	f.writes++
	return nil
}

func (f *fakeOrders) MarkPaid(_ context.Context, sessionID string) (*models.Order, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.orders {
		if o.SessionID != sessionID {
			continue
		}
		transitioned := o.PaymentStatus != models.PaymentSucceeded
		if transitioned {
			o.PaymentStatus = models.PaymentSucceeded
			f.writes++
		}
		cp := *o
		return &cp, transitioned, nil
	}
	return nil, false, repository.ErrNotFound
}

func (f *fakeOrders) Update(_ context.Context, id primitive.ObjectID, p repository.OrderPatch) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	set(&o.FirstName, p.FirstName)
	set(&o.LastName, p.LastName)
	set(&o.Phone, p.Phone)
	set(&o.Email, p.Email)
	set(&o.Address, p.Address)
	set(&o.City, p.City)
	set(&o.Zipcode, p.Zipcode)
	if p.Status != nil {
		o.Status = *p.Status
	}
	if p.ExpectedDelivery != nil {
		o.ExpectedDelivery = p.ExpectedDelivery
	}
	if p.DeliveredAt != nil {
		o.DeliveredAt = p.DeliveredAt
	}
	f.writes++
	cp := *o
	return &cp, nil
}

type fakeGateway struct {
	mu        sync.Mutex
	sessions  map[string]*payment.Session
	createErr error
	getErr    error
	requests  []payment.SessionRequest
	seq       int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{sessions: map[string]*payment.Session{}}
}

func (g *fakeGateway) CreateSession(_ context.Context, req payment.SessionRequest) (*payment.Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.createErr != nil {
		return nil, g.createErr
	}
	g.seq++
	id := fmt.Sprintf("cs_test_%d", g.seq)
	s := &payment.Session{ID: id, URL: "https://checkout.test/" + id, PaymentIntentID: "pi_" + id}
	g.sessions[id] = s
	g.requests = append(g.requests, req)
	return s, nil
}

func (g *fakeGateway) GetSession(_ context.Context, id string) (*payment.Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.getErr != nil {
		return nil, g.getErr
	}
	s, ok := g.sessions[id]
	if !ok {
		return nil, payment.ErrSessionNotFound
	}
	cp := *s
	return &cp, nil
}

func (g *fakeGateway) pay(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sessions[id].Paid = true
}

type fakeLedger struct {
	mu       sync.Mutex
	attempts []ledger.PaymentAttempt
}

func (l *fakeLedger) Record(_ context.Context, a *ledger.PaymentAttempt) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	a.FollowUp = a.Status.NeedsFollowUp()
	l.attempts = append(l.attempts, *a)
	return nil
}

func (l *fakeLedger) FollowUps(_ context.Context, limit int) ([]ledger.PaymentAttempt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := []ledger.PaymentAttempt{}
	for _, a := range l.attempts {
		if a.FollowUp && len(out) < limit {
			out = append(out, a)
		}
	}
	return out, nil
}

func (l *fakeLedger) statuses() []ledger.AttemptStatus {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := []ledger.AttemptStatus{}
	for _, a := range l.attempts {
		out = append(out, a.Status)
	}
	return out
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(ev events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func (p *recordingPublisher) count(kind events.Kind) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, ev := range p.events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

type fakeImages struct {
	saved   map[string]string
	deleted []string
}

func newFakeImages() *fakeImages {
	return &fakeImages{saved: map[string]string{}}
}

func (f *fakeImages) Save(_ context.Context, filename, _ string, body io.Reader) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	key := "img-" + filename
	f.saved[key] = string(data)
	return key, nil
}

func (f *fakeImages) Delete(_ context.Context, key string) error {
	if _, ok := f.saved[key]; !ok {
		return errors.New("no such image")
	}
	delete(f.saved, key)
	f.deleted = append(f.deleted, key)
	return nil
}

// countingCache records menu invalidations on top of NopCache.
type countingCache struct {
	repository.NopCache
	invalidations int
}

func (c *countingCache) InvalidateMenu(context.Context) error {
	c.invalidations++
	return nil
}
