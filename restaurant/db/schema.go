package db

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/noeguerin/bistro-concierge/restaurant/model"
)

// ResetSchema drops and recreates all tables. Test helper.
func ResetSchema(ctx context.Context, database *bun.DB) error {
	for _, m := range modelsNewestFirst() {
		if _, err := database.NewDropTable().Model(m).IfExists().Exec(ctx); err != nil {
			return fmt.Errorf("drop table for %T: %w", m, err)
		}
	}
	return InitSchema(ctx, database)
}

// InitSchema creates the tables and the uniqueness guarantees the core
// relies on: clients.phone, tables.table_number, and the slot index that
// serializes concurrent bookings of the same (table, date, time).
func InitSchema(ctx context.Context, database *bun.DB) error {
	models := []any{
		(*model.Client)(nil),
		(*model.Table)(nil),
		(*model.MenuItem)(nil),
		(*model.Reservation)(nil),
		(*model.Order)(nil),
		(*model.OrderItem)(nil),
	}
	for _, m := range models {
		if _, err := database.NewCreateTable().Model(m).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table for %T: %w", m, err)
		}
	}

	// Partial unique index: only pending/confirmed reservations hold a slot,
	// so cancelling frees it. First committer wins; the loser sees a unique
	// violation. Valid on both Postgres and SQLite.
	if _, err := database.ExecContext(ctx, `
		CREATE UNIQUE INDEX IF NOT EXISTS uq_reservation_slot
		ON reservations (table_id, date, time)
		WHERE status IN ('pending', 'confirmed')
	`); err != nil {
		return fmt.Errorf("create reservation slot index: %w", err)
	}

	if _, err := database.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS ix_order_items_order
		ON order_items (order_id)
	`); err != nil {
		return fmt.Errorf("create order items index: %w", err)
	}

	return nil
}

func modelsNewestFirst() []any {
	return []any{
		(*model.OrderItem)(nil),
		(*model.Order)(nil),
		(*model.Reservation)(nil),
		(*model.MenuItem)(nil),
		(*model.Table)(nil),
		(*model.Client)(nil),
	}
}
