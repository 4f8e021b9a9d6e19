// Package store is the SQLite-backed repository behind the cached read paths.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	_ "github.com/glebarez/go-sqlite"
	"github.com/rs/zerolog"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

// MaxNameLength bounds category, item and customer names.
const MaxNameLength = 120

// Store wraps a bun database handle.
type Store struct {
	db     *bun.DB
	logger zerolog.Logger
	now    func() time.Time
}

// Open connects to the SQLite database at dsn. In-memory databases are pinned
// to a single connection so every query sees the same data.
func Open(ctx context.Context, dsn string, logger zerolog.Logger) (*Store, error) {
	sqldb, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", dsn, err)
	}
	if isMemory(dsn) {
		sqldb.SetMaxOpenConns(1)
	}

	if err := sqldb.PingContext(ctx); err != nil {
		_ = sqldb.Close()
		return nil, fmt.Errorf("ping sqlite %q: %w", dsn, err)
	}

	db := bun.NewDB(sqldb, sqlitedialect.New())
	db.AddQueryHook(&queryLogger{logger: logger})

	return &Store{
		db:     db,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

func isMemory(dsn string) bool {
	return dsn == ":memory:" || strings.Contains(dsn, "mode=memory")
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Migrate creates the schema if it does not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	models := []any{
		(*Category)(nil),
		(*MenuItem)(nil),
		(*Order)(nil),
	}
	for _, model := range models {
		if _, err := s.db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table for %T: %w", model, err)
		}
	}

	if _, err := s.db.NewCreateIndex().
		Model((*MenuItem)(nil)).
		Index("menu_items_category_idx").
		IfNotExists().
		Column("category_id").
		Exec(ctx); err != nil {
		return fmt.Errorf("create menu item index: %w", err)
	}

	s.logger.Info().Msg("Schema migrated")
	return nil
}

// ListCategories returns every category ordered by position.
func (s *Store) ListCategories(ctx context.Context) ([]Category, error) {
	categories := make([]Category, 0)
	if err := s.db.NewSelect().Model(&categories).Order("position ASC", "id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return categories, nil
}

// ListMenuItems returns the menu items of one category, or all of them when
// categoryID is 0.
func (s *Store) ListMenuItems(ctx context.Context, categoryID int64) ([]MenuItem, error) {
	items := make([]MenuItem, 0)
	q := s.db.NewSelect().Model(&items).Order("id ASC")
	if categoryID != 0 {
		q = q.Where("category_id = ?", categoryID)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("list menu items: %w", err)
	}
	return items, nil
}

// MaxPage is the highest page whose offset fits in an int for the given limit.
func MaxPage(limit int) int {
	if limit < 1 {
		return 0
	}
	return math.MaxInt/limit + 1
}

// ListOrders returns one page of orders, newest first. page is 1-based.
func (s *Store) ListOrders(ctx context.Context, page, limit int) (OrderPage, error) {
	if page < 1 {
		return OrderPage{}, invalid("page", "must be at least 1")
	}
	if limit < 1 {
		return OrderPage{}, invalid("limit", "must be at least 1")
	}
	if page > MaxPage(limit) {
		return OrderPage{}, invalid("page", "out of range")
	}

	orders := make([]Order, 0, limit)
	total, err := s.db.NewSelect().
		Model(&orders).
		Order("id DESC").
		Limit(limit).
		Offset((page - 1) * limit).
		ScanAndCount(ctx)
	if err != nil {
		return OrderPage{}, fmt.Errorf("list orders page %d: %w", page, err)
	}

	return OrderPage{Orders: orders, Total: total, Page: page, Limit: limit}, nil
}

// AllOrders returns every order, newest first.
func (s *Store) AllOrders(ctx context.Context) ([]Order, error) {
	orders := make([]Order, 0)
	if err := s.db.NewSelect().Model(&orders).Order("id DESC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list all orders: %w", err)
	}
	return orders, nil
}

// CreateCategory inserts a category and returns it with its ID.
func (s *Store) CreateCategory(ctx context.Context, c Category) (Category, error) {
	c.Name = strings.TrimSpace(c.Name)
	if err := validateName("name", c.Name); err != nil {
		return Category{}, err
	}

	c.ID = 0
	c.CreatedAt = s.now()
	if _, err := s.db.NewInsert().Model(&c).Exec(ctx); err != nil {
		return Category{}, fmt.Errorf("insert category: %w", err)
	}
	return c, nil
}

// CreateMenuItem inserts a menu item into an existing category.
func (s *Store) CreateMenuItem(ctx context.Context, m MenuItem) (MenuItem, error) {
	if err := s.validateMenuItem(ctx, &m); err != nil {
		return MenuItem{}, err
	}

	now := s.now()
	m.ID = 0
	m.CreatedAt = now
	m.UpdatedAt = now
	if _, err := s.db.NewInsert().Model(&m).Exec(ctx); err != nil {
		return MenuItem{}, fmt.Errorf("insert menu item: %w", err)
	}
	return m, nil
}

// UpdateMenuItem replaces the editable fields of menu item m.ID.
func (s *Store) UpdateMenuItem(ctx context.Context, m MenuItem) (MenuItem, error) {
	var existing MenuItem
	if err := s.db.NewSelect().Model(&existing).Where("id = ?", m.ID).Scan(ctx); err != nil {
		return MenuItem{}, notFound(err, "menu item", m.ID)
	}
	if err := s.validateMenuItem(ctx, &m); err != nil {
		return MenuItem{}, err
	}

	m.CreatedAt = existing.CreatedAt
	m.UpdatedAt = s.now()
	if _, err := s.db.NewUpdate().Model(&m).WherePK().Exec(ctx); err != nil {
		return MenuItem{}, fmt.Errorf("update menu item %d: %w", m.ID, err)
	}
	return m, nil
}

// DeleteMenuItem removes a menu item.
func (s *Store) DeleteMenuItem(ctx context.Context, id int64) error {
	res, err := s.db.NewDelete().Model((*MenuItem)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete menu item %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("menu item %d: %w", id, ErrNotFound)
	}
	return nil
}

// CreateOrder prices the order lines from the current menu and inserts the
// order as pending.
func (s *Store) CreateOrder(ctx context.Context, o Order) (Order, error) {
	o.Customer = strings.TrimSpace(o.Customer)
	if err := validateName("customer", o.Customer); err != nil {
		return Order{}, err
	}
	if len(o.Lines) == 0 {
		return Order{}, invalid("lines", "order needs at least one line")
	}

	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		o.TotalCents = 0
		for i := range o.Lines {
			line := &o.Lines[i]
			if line.Quantity < 1 {
				return invalid("quantity", "must be at least 1")
			}

			var item MenuItem
			if err := tx.NewSelect().Model(&item).Where("id = ?", line.MenuItemID).Scan(ctx); err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return invalid("menu_item_id", fmt.Sprintf("menu item %d does not exist", line.MenuItemID))
				}
				return fmt.Errorf("load menu item %d: %w", line.MenuItemID, err)
			}
			if !item.Available {
				return invalid("menu_item_id", fmt.Sprintf("menu item %d is not available", item.ID))
			}

			line.PriceCents = item.PriceCents
			o.TotalCents += item.PriceCents * int64(line.Quantity)
		}

		now := s.now()
		o.ID = 0
		o.Status = StatusPending
		o.CreatedAt = now
		o.UpdatedAt = now
		if _, err := tx.NewInsert().Model(&o).Exec(ctx); err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		return nil
	})
	if err != nil {
		return Order{}, err
	}
	return o, nil
}

// UpdateOrderStatus moves an order to status.
func (s *Store) UpdateOrderStatus(ctx context.Context, id int64, status string) (Order, error) {
	status = strings.ToLower(strings.TrimSpace(status))
	if !validStatuses[status] {
		return Order{}, invalid("status", fmt.Sprintf("unknown status %q", status))
	}

	res, err := s.db.NewUpdate().
		Model((*Order)(nil)).
		Set("status = ?", status).
		Set("updated_at = ?", s.now()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return Order{}, fmt.Errorf("update order %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return Order{}, fmt.Errorf("order %d: %w", id, ErrNotFound)
	}

	var o Order
	if err := s.db.NewSelect().Model(&o).Where("id = ?", id).Scan(ctx); err != nil {
		return Order{}, notFound(err, "order", id)
	}
	return o, nil
}

func (s *Store) validateMenuItem(ctx context.Context, m *MenuItem) error {
	m.Name = strings.TrimSpace(m.Name)
	if err := validateName("name", m.Name); err != nil {
		return err
	}
	if m.PriceCents < 0 {
		return invalid("price_cents", "must not be negative")
	}
	if strings.ContainsAny(m.Image, `/\`) {
		return invalid("image", "must be a bare file name")
	}

	exists, err := s.db.NewSelect().Model((*Category)(nil)).Where("id = ?", m.CategoryID).Exists(ctx)
	if err != nil {
		return fmt.Errorf("check category %d: %w", m.CategoryID, err)
	}
	if !exists {
		return invalid("category_id", fmt.Sprintf("category %d does not exist", m.CategoryID))
	}
	return nil
}

func validateName(field, name string) error {
	if name == "" {
		return invalid(field, "must not be empty")
	}
	if len(name) > MaxNameLength {
		return invalid(field, fmt.Sprintf("must be at most %d characters", MaxNameLength))
	}
	return nil
}
