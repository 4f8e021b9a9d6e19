package store

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

type seedItem struct {
	category    string
	name        string
	description string
	priceCents  int64
	image       string
}

var seedCategories = []string{"Starters", "Mains", "Desserts", "Drinks"}

var seedItems = []seedItem{
	{"Starters", "Tomato soup", "Roasted tomatoes, basil oil", 650, "tomato-soup.jpg"},
	{"Starters", "Bruschetta", "Sourdough, garlic, cherry tomatoes", 750, "bruschetta.jpg"},
	{"Mains", "Mushroom risotto", "Arborio rice, porcini, parmesan", 1650, "risotto.jpg"},
	{"Mains", "Grilled trout", "Lemon butter, new potatoes", 1950, "trout.jpg"},
	{"Mains", "Bistro burger", "Beef patty, cheddar, fries", 1550, "burger.jpg"},
	{"Desserts", "Tiramisu", "Mascarpone, espresso, cocoa", 700, "tiramisu.jpg"},
	{"Desserts", "Crème brûlée", "Vanilla custard, burnt sugar", 750, ""},
	{"Drinks", "Lemonade", "House-made, mint", 400, ""},
	{"Drinks", "Espresso", "", 280, ""},
}

// Seed fills an empty database with a sample menu and a few orders. It does
// nothing when categories already exist.
func (s *Store) Seed(ctx context.Context) error {
	count, err := s.db.NewSelect().Model((*Category)(nil)).Count(ctx)
	if err != nil {
		return fmt.Errorf("count categories: %w", err)
	}
	if count > 0 {
		s.logger.Debug().Int("categories", count).Msg("Database already seeded")
		return nil
	}

	now := s.now()
	err = s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		ids := make(map[string]int64, len(seedCategories))
		for i, name := range seedCategories {
			c := Category{Name: name, Position: i + 1, CreatedAt: now}
			if _, err := tx.NewInsert().Model(&c).Exec(ctx); err != nil {
				return fmt.Errorf("seed category %q: %w", name, err)
			}
			ids[name] = c.ID
		}

		items := make([]MenuItem, 0, len(seedItems))
		for _, si := range seedItems {
			m := MenuItem{
				CategoryID:  ids[si.category],
				Name:        si.name,
				Description: si.description,
				PriceCents:  si.priceCents,
				Available:   true,
				Image:       si.image,
				CreatedAt:   now,
				UpdatedAt:   now,
			}
			if _, err := tx.NewInsert().Model(&m).Exec(ctx); err != nil {
				return fmt.Errorf("seed menu item %q: %w", si.name, err)
			}
			items = append(items, m)
		}

		orders := []Order{
			{
				Customer:   "Table 4",
				Lines:      []OrderLine{{MenuItemID: items[0].ID, Quantity: 2, PriceCents: items[0].PriceCents}},
				TotalCents: 2 * items[0].PriceCents,
				Status:     StatusServed,
			},
			{
				Customer:   "Table 7",
				Lines:      []OrderLine{{MenuItemID: items[2].ID, Quantity: 1, PriceCents: items[2].PriceCents}},
				TotalCents: items[2].PriceCents,
				Status:     StatusPreparing,
			},
		}
		for i := range orders {
			orders[i].CreatedAt = now
			orders[i].UpdatedAt = now
		}
		if _, err := tx.NewInsert().Model(&orders).Exec(ctx); err != nil {
			return fmt.Errorf("seed orders: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info().
		Int("categories", len(seedCategories)).
		Int("menu_items", len(seedItems)).
		Msg("Database seeded")
	return nil
}
