package cartstate

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/example/foodhall/pkg/client"
	"github.com/example/foodhall/pkg/models"
	"go.uber.org/zap/zaptest"
)

type fakeAPI struct {
	mu    sync.Mutex
	lines []models.CartLine
	err   error
	gate  chan struct{}
	calls []string
}

func (f *fakeAPI) record(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	return f.err
}

func (f *fakeAPI) GetCart(ctx context.Context) ([]models.CartLine, error) {
	if f.gate != nil {
		<-f.gate
	}
	if err := f.record("get"); err != nil {
		return nil, err
	}
	return f.lines, nil
}

func (f *fakeAPI) AddToCart(_ context.Context, itemID string, quantity int) (*models.CartLine, error) {
	if err := f.record("add"); err != nil {
		return nil, err
	}
	l := line("srv-"+itemID, itemID, 50, quantity)
	return &l, nil
}

func (f *fakeAPI) UpdateCartItem(_ context.Context, entryID string, quantity int) (*models.CartLine, error) {
	if err := f.record("update"); err != nil {
		return nil, err
	}
	if quantity < 1 {
		quantity = 1
	}
	for _, l := range f.lines {
		if l.ID == entryID {
			l.Quantity = quantity
			return &l, nil
		}
	}
	return nil, &client.APIError{Status: http.StatusNotFound, Message: "Cart item not found"}
}

func (f *fakeAPI) RemoveCartItem(_ context.Context, entryID string) error {
	return f.record("remove")
}

func (f *fakeAPI) ClearCart(context.Context) (int64, error) {
	if err := f.record("clear"); err != nil {
		return 0, err
	}
	return int64(len(f.lines)), nil
}

func (f *fakeAPI) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func TestInitHydratesFromServer(t *testing.T) {
	persist := &memoryPersister{state: State{Entries: []models.CartLine{line("stale", "i0", 1, 1)}}}
	api := &fakeAPI{lines: []models.CartLine{line("e1", "i1", 100, 2)}}
	s := NewStore(api, persist, zaptest.NewLogger(t))

	if got := s.State(); len(got.Entries) != 1 || got.Entries[0].ID != "stale" {
		t.Fatalf("saved state not loaded: %+v", got)
	}
	if err := s.Init(context.Background()); err != nil {
		t.Fatal(err)
	}
	got := s.State()
	if len(got.Entries) != 1 || got.Entries[0].ID != "e1" || got.TotalAmount != 200 || got.IsLoading {
		t.Errorf("state = %+v", got)
	}
	if persist.state.TotalItems != 2 {
		t.Errorf("persisted = %+v", persist.state)
	}
}

func TestMutationsWaitForHydration(t *testing.T) {
	api := &fakeAPI{gate: make(chan struct{})}
	s := NewStore(api, nil, zaptest.NewLogger(t))

	initDone := make(chan error, 1)
	go func() { initDone <- s.Init(context.Background()) }()

	addDone := make(chan error, 1)
	go func() {
		_, err := s.Add(context.Background(), "i1", 2)
		addDone <- err
	}()

	select {
	case <-addDone:
		t.Fatal("add finished before hydration")
	case <-time.After(50 * time.Millisecond):
	}

	close(api.gate)
	if err := <-initDone; err != nil {
		t.Fatal(err)
	}
	if err := <-addDone; err != nil {
		t.Fatal(err)
	}

	calls := api.callLog()
	if len(calls) != 2 || calls[0] != "get" || calls[1] != "add" {
		t.Errorf("calls = %v", calls)
	}
	if st := s.State(); st.TotalItems != 2 || st.Entries[0].ID != "srv-i1" {
		t.Errorf("state = %+v", st)
	}
}

func TestMutationRespectsContextWhileWaiting(t *testing.T) {
	s := NewStore(&fakeAPI{}, nil, zaptest.NewLogger(t))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := s.Add(ctx, "i1", 1); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v", err)
	}
}

func TestServerFirstMutations(t *testing.T) {
	api := &fakeAPI{lines: []models.CartLine{line("e1", "i1", 100, 2), line("e2", "i2", 10, 1)}}
	s := NewStore(api, nil, zaptest.NewLogger(t))
	ctx := context.Background()
	if err := s.Init(ctx); err != nil {
		t.Fatal(err)
	}

	if _, err := s.Update(ctx, "e1", 0); err != nil {
		t.Fatal(err)
	}
	if st := s.State(); st.Entries[0].Quantity != 1 || st.TotalAmount != 110 {
		t.Errorf("after update = %+v", st)
	}

	if _, err := s.Update(ctx, "missing", 3); err == nil {
		t.Fatal("expected not found")
	}
	if st := s.State(); st.Error != "Cart item not found" || st.SessionExpired || len(st.Entries) != 2 {
		t.Errorf("after failed update = %+v", st)
	}

	if err := s.Remove(ctx, "e2"); err != nil {
		t.Fatal(err)
	}
	if st := s.State(); len(st.Entries) != 1 || st.Error != "" {
		t.Errorf("after remove = %+v", st)
	}

	if err := s.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	if st := s.State(); len(st.Entries) != 0 || st.TotalAmount != 0 {
		t.Errorf("after clear = %+v", st)
	}
}

func TestFailedMutationLeavesStateUntouched(t *testing.T) {
	api := &fakeAPI{lines: []models.CartLine{line("e1", "i1", 100, 2)}}
	s := NewStore(api, nil, zaptest.NewLogger(t))
	ctx := context.Background()
	if err := s.Init(ctx); err != nil {
		t.Fatal(err)
	}

	api.err = errors.New("connection refused")
	if _, err := s.Add(ctx, "i2", 1); err == nil {
		t.Fatal("expected error")
	}
	st := s.State()
	if len(st.Entries) != 1 || st.Error != "connection refused" || st.IsLoading {
		t.Errorf("state = %+v", st)
	}
}

func TestSessionExpiryClearsCart(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		api := &fakeAPI{lines: []models.CartLine{line("e1", "i1", 100, 2)}}
		s := NewStore(api, nil, zaptest.NewLogger(t))
		ctx := context.Background()
		if err := s.Init(ctx); err != nil {
			t.Fatal(err)
		}

		api.err = &client.APIError{Status: status, Message: "Token expired"}
		if err := s.Remove(ctx, "e1"); !client.IsSessionExpired(err) {
			t.Fatalf("err = %v", err)
		}
		st := s.State()
		if len(st.Entries) != 0 || !st.SessionExpired || st.Error != sessionExpiredMessage {
			t.Errorf("status %d: state = %+v", status, st)
		}
		if calls := api.callLog(); len(calls) != 2 {
			t.Errorf("status %d: expected no retry, calls = %v", status, calls)
		}
	}
}

func TestTeardown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cart.json")
	persist := NewFilePersister(path)
	api := &fakeAPI{lines: []models.CartLine{line("e1", "i1", 100, 2)}}
	s := NewStore(api, persist, zaptest.NewLogger(t))
	ctx := context.Background()
	if err := s.Init(ctx); err != nil {
		t.Fatal(err)
	}

	reloaded := NewStore(api, NewFilePersister(path), zaptest.NewLogger(t))
	if st := reloaded.State(); st.TotalItems != 2 {
		t.Fatalf("persisted state not reloaded: %+v", st)
	}

	if err := s.Teardown(); err != nil {
		t.Fatal(err)
	}
	if st := s.State(); len(st.Entries) != 0 {
		t.Errorf("state = %+v", st)
	}
	if saved, err := persist.Load(); err != nil || len(saved.Entries) != 0 {
		t.Errorf("saved = %+v, %v", saved, err)
	}
	if _, err := s.Add(ctx, "i1", 1); !errors.Is(err, ErrNotReady) {
		t.Errorf("add after teardown = %v", err)
	}
}

func TestSubscribeSeesEveryAction(t *testing.T) {
	s := NewStore(&fakeAPI{}, nil, zaptest.NewLogger(t))
	var seen []ActionType
	s.Subscribe(func(a Action, _ State) { seen = append(seen, a.Type) })
	if err := s.Init(context.Background()); err != nil {
		t.Fatal(err)
	}
	want := []ActionType{ActionSetLoading, ActionSetCart, ActionClearError, ActionSetLoading}
	if len(seen) != len(want) {
		t.Fatalf("seen = %v", seen)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("seen = %v, want %v", seen, want)
			break
		}
	}
}
