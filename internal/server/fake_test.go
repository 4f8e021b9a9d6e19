package server

import (
	"context"
	"sync"

	"github.com/Sternrassler/bistro-cache/internal/store"
)

// fakeRepo is an in-memory Repository that counts calls. When gate is set,
// reads block until it is closed or their context ends.
type fakeRepo struct {
	mu         sync.Mutex
	calls      map[string]int
	categories []store.Category
	items      []store.MenuItem
	orders     []store.Order
	nextID     int64
	lastPage   int
	lastLimit  int

	gate    chan struct{}
	started chan struct{}
	err     error
	pingErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		calls: make(map[string]int),
		categories: []store.Category{
			{ID: 1, Name: "Starters", Position: 1},
			{ID: 2, Name: "Mains", Position: 2},
		},
		items: []store.MenuItem{
			{ID: 1, CategoryID: 1, Name: "Tomato soup", PriceCents: 650, Available: true},
			{ID: 2, CategoryID: 2, Name: "Risotto", PriceCents: 1650, Available: true},
		},
		orders: []store.Order{
			{ID: 1, Customer: "Table 4", Status: store.StatusPending},
		},
		nextID:  100,
		started: make(chan struct{}, 64),
	}
}

func (f *fakeRepo) Calls(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *fakeRepo) read(ctx context.Context, method string) error {
	f.mu.Lock()
	f.calls[method]++
	gate, err := f.gate, f.err
	f.mu.Unlock()

	if gate != nil {
		select {
		case f.started <- struct{}{}:
		default:
		}
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (f *fakeRepo) write(method string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[method]++
	return f.err
}

func (f *fakeRepo) Ping(ctx context.Context) error {
	return f.pingErr
}

func (f *fakeRepo) ListCategories(ctx context.Context) ([]store.Category, error) {
	if err := f.read(ctx, "ListCategories"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]store.Category(nil), f.categories...), nil
}

func (f *fakeRepo) ListMenuItems(ctx context.Context, categoryID int64) ([]store.MenuItem, error) {
	if err := f.read(ctx, "ListMenuItems"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]store.MenuItem, 0, len(f.items))
	for _, m := range f.items {
		if categoryID == 0 || m.CategoryID == categoryID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeRepo) ListOrders(ctx context.Context, page, limit int) (store.OrderPage, error) {
	if err := f.read(ctx, "ListOrders"); err != nil {
		return store.OrderPage{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastPage, f.lastLimit = page, limit
	return store.OrderPage{Orders: append([]store.Order(nil), f.orders...), Total: len(f.orders), Page: page, Limit: limit}, nil
}

func (f *fakeRepo) AllOrders(ctx context.Context) ([]store.Order, error) {
	if err := f.read(ctx, "AllOrders"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]store.Order(nil), f.orders...), nil
}

func (f *fakeRepo) CreateCategory(ctx context.Context, c store.Category) (store.Category, error) {
	if err := f.write("CreateCategory"); err != nil {
		return store.Category{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	c.ID = f.nextID
	f.categories = append(f.categories, c)
	return c, nil
}

func (f *fakeRepo) CreateMenuItem(ctx context.Context, m store.MenuItem) (store.MenuItem, error) {
	if err := f.write("CreateMenuItem"); err != nil {
		return store.MenuItem{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	m.ID = f.nextID
	f.items = append(f.items, m)
	return m, nil
}

func (f *fakeRepo) UpdateMenuItem(ctx context.Context, m store.MenuItem) (store.MenuItem, error) {
	if err := f.write("UpdateMenuItem"); err != nil {
		return store.MenuItem{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.items {
		if f.items[i].ID == m.ID {
			f.items[i] = m
			return m, nil
		}
	}
	return store.MenuItem{}, store.ErrNotFound
}

func (f *fakeRepo) DeleteMenuItem(ctx context.Context, id int64) error {
	if err := f.write("DeleteMenuItem"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.items {
		if f.items[i].ID == id {
			f.items = append(f.items[:i], f.items[i+1:]...)
			return nil
		}
	}
	return store.ErrNotFound
}

func (f *fakeRepo) CreateOrder(ctx context.Context, o store.Order) (store.Order, error) {
	if err := f.write("CreateOrder"); err != nil {
		return store.Order{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	o.ID = f.nextID
	o.Status = store.StatusPending
	f.orders = append(f.orders, o)
	return o, nil
}

func (f *fakeRepo) UpdateOrderStatus(ctx context.Context, id int64, status string) (store.Order, error) {
	if err := f.write("UpdateOrderStatus"); err != nil {
		return store.Order{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.orders {
		if f.orders[i].ID == id {
			f.orders[i].Status = status
			return f.orders[i], nil
		}
	}
	return store.Order{}, store.ErrNotFound
}
