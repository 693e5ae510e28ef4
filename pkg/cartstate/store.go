package cartstate

import (
	"context"
	"errors"
	"sync"

	"github.com/example/foodhall/pkg/client"
	"github.com/example/foodhall/pkg/models"
	"go.uber.org/zap"
)

const sessionExpiredMessage = "Session expired, please log in again"

// ErrNotReady is returned by mutations once the store has been torn down.
var ErrNotReady = errors.New("cart store is not initialised")

// CartAPI is the server side of the cart, satisfied by *client.Client.
type CartAPI interface {
	GetCart(ctx context.Context) ([]models.CartLine, error)
	AddToCart(ctx context.Context, itemID string, quantity int) (*models.CartLine, error)
	UpdateCartItem(ctx context.Context, entryID string, quantity int) (*models.CartLine, error)
	RemoveCartItem(ctx context.Context, entryID string) error
	ClearCart(ctx context.Context) (int64, error)
}

// Store owns the cart state for one signed-in user.
//
// Lifecycle: Init hydrates from the server, mutations go to the server
// first and apply its answer, Teardown clears everything on logout.
// Mutations block until Init has finished, successfully or not.
type Store struct {
	api     CartAPI
	persist Persister
	logger  *zap.Logger

	mu        sync.Mutex
	state     State
	observers []func(Action, State)

	ready     chan struct{}
	readyOnce sync.Once
	closed    bool
}

func NewStore(api CartAPI, persist Persister, logger *zap.Logger) *Store {
	if persist == nil {
		persist = &memoryPersister{}
	}
	s := &Store{
		api:     api,
		persist: persist,
		logger:  logger.Named("cartstate"),
		ready:   make(chan struct{}),
	}
	if saved, err := persist.Load(); err != nil {
		s.logger.Warn("Discarding saved cart state", zap.Error(err))
	} else {
		s.state = saved
	}
	return s
}

// Subscribe registers fn to be called after every dispatch.
func (s *Store) Subscribe(fn func(Action, State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, fn)
}

func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state
	st.Entries = append([]models.CartLine(nil), s.state.Entries...)
	return st
}

// Ready is closed once Init has completed.
func (s *Store) Ready() <-chan struct{} {
	return s.ready
}

// Init replaces the local mirror with the server cart.
func (s *Store) Init(ctx context.Context) error {
	defer s.readyOnce.Do(func() { close(s.ready) })

	s.dispatch(SetLoading(true))
	defer s.dispatch(SetLoading(false))

	entries, err := s.api.GetCart(ctx)
	if err != nil {
		return s.fail(err)
	}
	s.dispatch(SetCart(entries))
	s.dispatch(ClearError())
	return nil
}

func (s *Store) Add(ctx context.Context, itemID string, quantity int) (*models.CartLine, error) {
	return s.mutateLine(ctx, func(ctx context.Context) (*models.CartLine, error) {
		return s.api.AddToCart(ctx, itemID, quantity)
	}, AddItem)
}

func (s *Store) Update(ctx context.Context, entryID string, quantity int) (*models.CartLine, error) {
	return s.mutateLine(ctx, func(ctx context.Context) (*models.CartLine, error) {
		return s.api.UpdateCartItem(ctx, entryID, quantity)
	}, UpdateQuantity)
}

func (s *Store) Remove(ctx context.Context, entryID string) error {
	if err := s.begin(ctx); err != nil {
		return err
	}
	defer s.dispatch(SetLoading(false))

	if err := s.api.RemoveCartItem(ctx, entryID); err != nil {
		return s.fail(err)
	}
	s.dispatch(RemoveItem(entryID))
	s.dispatch(ClearError())
	return nil
}

func (s *Store) Clear(ctx context.Context) error {
	if err := s.begin(ctx); err != nil {
		return err
	}
	defer s.dispatch(SetLoading(false))

	if _, err := s.api.ClearCart(ctx); err != nil {
		return s.fail(err)
	}
	s.dispatch(ClearCart())
	s.dispatch(ClearError())
	return nil
}

// Teardown drops the local cart and its saved copy. The store cannot be
// mutated afterwards.
func (s *Store) Teardown() error {
	s.dispatch(ClearCart())
	s.dispatch(ClearError())

	s.mu.Lock()
	s.closed = true
	err := s.persist.Clear()
	s.mu.Unlock()
	s.readyOnce.Do(func() { close(s.ready) })

	return err
}

func (s *Store) mutateLine(ctx context.Context, call func(context.Context) (*models.CartLine, error), action func(models.CartLine) Action) (*models.CartLine, error) {
	if err := s.begin(ctx); err != nil {
		return nil, err
	}
	defer s.dispatch(SetLoading(false))

	line, err := call(ctx)
	if err != nil {
		return nil, s.fail(err)
	}
	s.dispatch(action(*line))
	s.dispatch(ClearError())
	return line, nil
}

// begin waits for hydration and marks the store busy.
func (s *Store) begin(ctx context.Context) error {
	select {
	case <-s.ready:
	case <-ctx.Done():
		return ctx.Err()
	}
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrNotReady
	}
	s.dispatch(SetLoading(true))
	return nil
}

func (s *Store) fail(err error) error {
	if client.IsSessionExpired(err) {
		s.dispatch(ClearCart())
		s.dispatch(SessionExpiredError(sessionExpiredMessage))
		return err
	}
	msg := err.Error()
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		msg = apiErr.Message
	}
	s.dispatch(SetError(msg))
	return err
}

func (s *Store) dispatch(a Action) {
	s.mu.Lock()
	s.state = Reduce(s.state, a)
	st := s.state
	var saveErr error
	if a.Type != ActionSetLoading {
		saveErr = s.persist.Save(st)
	}
	observers := append([]func(Action, State){}, s.observers...)
	s.mu.Unlock()

	s.logger.Debug("Cart action",
		zap.String("action", string(a.Type)),
		zap.Int("entries", len(st.Entries)),
		zap.Int("total_items", st.TotalItems),
		zap.Float64("total_amount", st.TotalAmount))
	if saveErr != nil {
		s.logger.Warn("Failed to persist cart state", zap.Error(saveErr))
	}

	for _, fn := range observers {
		fn(a, st)
	}
}
