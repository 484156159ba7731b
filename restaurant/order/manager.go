package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"

	contractx "github.com/noeguerin/bistro-concierge/agent/contract"
	dbx "github.com/noeguerin/bistro-concierge/restaurant/db"
	"github.com/noeguerin/bistro-concierge/restaurant/events"
	"github.com/noeguerin/bistro-concierge/restaurant/model"
)

var (
	ErrOrderNotOpen    = fmt.Errorf("%w: order is not open", contractx.ErrConflict)
	ErrItemUnavailable = fmt.Errorf("%w: menu item unavailable", contractx.ErrConflict)
	ErrEmptyOrder      = fmt.Errorf("%w: order has no items", contractx.ErrValidation)
	ErrCannotCancel    = fmt.Errorf("%w: order can no longer be cancelled", contractx.ErrConflict)
	ErrNotFound        = fmt.Errorf("%w: order", contractx.ErrNotFound)
	ErrItemNotFound    = fmt.Errorf("%w: menu item", contractx.ErrNotFound)
)

// Kitchen estimate used in finalize replies: five minutes per line item.
const prepMinutesPerItem = 5

// Line is an order item joined with its menu item name for display.
type Line struct {
	model.OrderItem `bun:",inherit"`

	ItemName string `bun:"item_name"`
}

// Manager owns the cart/order lifecycle. Every mutation runs in one
// transaction that recomputes the stored total from the line items, so the
// total is always Σ(unit_price × quantity).
type Manager struct {
	db  *bun.DB
	pub *events.Publisher
	now func() time.Time
}

func NewManager(database *bun.DB, pub *events.Publisher) *Manager {
	return &Manager{db: database, pub: pub, now: time.Now}
}

// Create opens a new cart for the client resolved (or created) by phone.
func (m *Manager) Create(ctx context.Context, customerName, phone, orderType string) (*model.Order, error) {
	orderType = strings.ToLower(strings.TrimSpace(orderType))
	if !model.ValidOrderType(orderType) {
		return nil, fmt.Errorf("%w: order type must be takeaway or delivery, got %q", contractx.ErrValidation, orderType)
	}
	if strings.TrimSpace(phone) == "" {
		return nil, fmt.Errorf("%w: phone is required", contractx.ErrValidation)
	}

	now := m.now().UTC()
	ord := new(model.Order)
	err := m.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		client, err := dbx.GetOrCreateClient(ctx, tx, customerName, phone, now)
		if err != nil {
			return err
		}
		*ord = model.Order{
			ClientID:  client.ID,
			Date:      now.Format("2006-01-02"),
			Status:    model.OrderOpen,
			Total:     0,
			OrderType: model.OrderType(orderType),
			CreatedAt: now,
			UpdatedAt: now,
		}
		_, err = tx.NewInsert().Model(ord).Exec(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return ord, nil
}

// AddItem adds quantity of the named menu item to an open order, capturing
// the current menu price as the line's immutable unit price. Adding an item
// already in the cart increases its quantity.
func (m *Manager) AddItem(ctx context.Context, orderID int64, itemName string, quantity int, note string) (*model.Order, *model.MenuItem, error) {
	if quantity <= 0 {
		return nil, nil, fmt.Errorf("%w: quantity must be positive", contractx.ErrValidation)
	}

	var item model.MenuItem
	ord := new(model.Order)
	err := m.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if err := m.loadOpenOrder(ctx, tx, orderID, ord); err != nil {
			return err
		}

		found, err := findMenuItem(ctx, tx, itemName)
		if err != nil {
			return err
		}
		item = *found

		existing := new(model.OrderItem)
		err = tx.NewSelect().Model(existing).
			Where("oi.order_id = ?", orderID).
			Where("oi.menu_item_id = ?", item.ID).
			Scan(ctx)
		switch {
		case err == nil:
			existing.Quantity += quantity
			if note = strings.TrimSpace(note); note != "" {
				existing.Note = note
			}
			if _, err := tx.NewUpdate().Model(existing).
				Column("quantity", "note").
				WherePK().
				Exec(ctx); err != nil {
				return fmt.Errorf("update line item: %w", err)
			}
		case errors.Is(err, sql.ErrNoRows):
			line := &model.OrderItem{
				OrderID:    orderID,
				MenuItemID: item.ID,
				Quantity:   quantity,
				UnitPrice:  item.Price,
				Note:       strings.TrimSpace(note),
			}
			if _, err := tx.NewInsert().Model(line).Exec(ctx); err != nil {
				return fmt.Errorf("insert line item: %w", err)
			}
		default:
			return fmt.Errorf("lookup line item: %w", err)
		}

		return m.recomputeTotal(ctx, tx, ord)
	})
	if err != nil {
		return nil, nil, err
	}
	return ord, &item, nil
}

// UpdateItem sets the quantity of a line item on an open order. Quantity
// zero removes the line. The captured unit price never changes.
func (m *Manager) UpdateItem(ctx context.Context, orderID int64, itemName string, quantity int) (*model.Order, *model.MenuItem, error) {
	if quantity < 0 {
		return nil, nil, fmt.Errorf("%w: quantity must not be negative", contractx.ErrValidation)
	}

	var item model.MenuItem
	ord := new(model.Order)
	err := m.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if err := m.loadOpenOrder(ctx, tx, orderID, ord); err != nil {
			return err
		}

		found, err := findMenuItem(ctx, tx, itemName)
		if err != nil {
			return err
		}
		item = *found

		line := new(model.OrderItem)
		err = tx.NewSelect().Model(line).
			Where("oi.order_id = ?", orderID).
			Where("oi.menu_item_id = ?", item.ID).
			Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s is not in order #%d", ErrItemNotFound, item.Name, orderID)
		}
		if err != nil {
			return fmt.Errorf("lookup line item: %w", err)
		}

		if quantity == 0 {
			if _, err := tx.NewDelete().Model(line).WherePK().Exec(ctx); err != nil {
				return fmt.Errorf("delete line item: %w", err)
			}
		} else {
			line.Quantity = quantity
			if _, err := tx.NewUpdate().Model(line).
				Column("quantity").
				WherePK().
				Exec(ctx); err != nil {
				return fmt.Errorf("update line item: %w", err)
			}
		}

		return m.recomputeTotal(ctx, tx, ord)
	})
	if err != nil {
		return nil, nil, err
	}
	return ord, &item, nil
}

// RemoveItem deletes a line item from an open order.
func (m *Manager) RemoveItem(ctx context.Context, orderID int64, itemName string) (*model.Order, *model.MenuItem, error) {
	return m.UpdateItem(ctx, orderID, itemName, 0)
}

// Finalize submits an open order to the kitchen (open → pending). Returns
// the estimated preparation minutes alongside the order.
func (m *Manager) Finalize(ctx context.Context, orderID int64, instructions string) (*model.Order, int, error) {
	ord := new(model.Order)
	lineCount := 0
	err := m.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if err := m.loadOpenOrder(ctx, tx, orderID, ord); err != nil {
			return err
		}

		n, err := tx.NewSelect().Model((*model.OrderItem)(nil)).
			Where("oi.order_id = ?", orderID).
			Count(ctx)
		if err != nil {
			return fmt.Errorf("count line items: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("%w: #%d", ErrEmptyOrder, orderID)
		}
		lineCount = n

		ord.Status = model.OrderPending
		if instructions = strings.TrimSpace(instructions); instructions != "" {
			ord.Instructions = instructions
		}
		ord.UpdatedAt = m.now().UTC()
		out, err := tx.NewUpdate().Model(ord).
			Column("status", "instructions", "updated_at").
			WherePK().
			Where("status = ?", model.OrderOpen).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("finalize order: %w", err)
		}
		if rows, _ := out.RowsAffected(); rows == 0 {
			return fmt.Errorf("%w: #%d", ErrOrderNotOpen, orderID)
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	m.pub.Publish(ctx, events.OrderFinalized, ord.Date, ord)
	return ord, lineCount * prepMinutesPerItem, nil
}

// Get returns the order row. Read-only.
func (m *Manager) Get(ctx context.Context, orderID int64) (*model.Order, error) {
	ord := new(model.Order)
	err := m.db.NewSelect().Model(ord).Where("o.id = ?", orderID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: #%d", ErrNotFound, orderID)
	}
	if err != nil {
		return nil, fmt.Errorf("load order: %w", err)
	}
	return ord, nil
}

// Lines returns the order's line items joined with menu item names.
func (m *Manager) Lines(ctx context.Context, orderID int64) ([]Line, error) {
	var lines []Line
	err := m.db.NewSelect().Model(&lines).
		ColumnExpr("oi.*").
		ColumnExpr("mi.name AS item_name").
		Join("JOIN menu_items AS mi ON mi.id = oi.menu_item_id").
		Where("oi.order_id = ?", orderID).
		Order("oi.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("load order lines: %w", err)
	}
	return lines, nil
}

// Cancel transitions an order to cancelled. Allowed from open, pending and
// preparing; once the kitchen marks it ready it cannot be taken back.
func (m *Manager) Cancel(ctx context.Context, orderID int64) (*model.Order, error) {
	ord := new(model.Order)
	err := m.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		err := tx.NewSelect().Model(ord).Where("o.id = ?", orderID).Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: #%d", ErrNotFound, orderID)
		}
		if err != nil {
			return fmt.Errorf("load order: %w", err)
		}
		if !ord.Status.Cancellable() {
			return fmt.Errorf("%w: #%d is %s", ErrCannotCancel, orderID, ord.Status)
		}

		ord.Status = model.OrderCancelled
		ord.UpdatedAt = m.now().UTC()
		out, err := tx.NewUpdate().Model(ord).
			Column("status", "updated_at").
			WherePK().
			Where("status IN (?)", bun.In([]model.OrderStatus{model.OrderOpen, model.OrderPending, model.OrderPreparing})).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("cancel order: %w", err)
		}
		if rows, _ := out.RowsAffected(); rows == 0 {
			return fmt.Errorf("%w: #%d", ErrCannotCancel, orderID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.pub.Publish(ctx, events.OrderCancelled, ord.Date, ord)
	return ord, nil
}

// Advance moves a submitted order one step along
// pending → preparing → ready → completed. Kitchen side; not exposed as a
// caller tool.
func (m *Manager) Advance(ctx context.Context, orderID int64) (*model.Order, error) {
	next := map[model.OrderStatus]model.OrderStatus{
		model.OrderPending:   model.OrderPreparing,
		model.OrderPreparing: model.OrderReady,
		model.OrderReady:     model.OrderCompleted,
	}

	ord := new(model.Order)
	err := m.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		err := tx.NewSelect().Model(ord).Where("o.id = ?", orderID).Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: #%d", ErrNotFound, orderID)
		}
		if err != nil {
			return fmt.Errorf("load order: %w", err)
		}

		to, ok := next[ord.Status]
		if !ok {
			return fmt.Errorf("%w: cannot advance order #%d from %s", contractx.ErrConflict, orderID, ord.Status)
		}

		from := ord.Status
		ord.Status = to
		ord.UpdatedAt = m.now().UTC()
		out, err := tx.NewUpdate().Model(ord).
			Column("status", "updated_at").
			WherePK().
			Where("status = ?", from).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("advance order: %w", err)
		}
		if rows, _ := out.RowsAffected(); rows == 0 {
			return fmt.Errorf("%w: order #%d changed status concurrently", contractx.ErrConflict, orderID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ord, nil
}

// Menu lists available menu items, optionally filtered by category.
func (m *Manager) Menu(ctx context.Context, category string) ([]model.MenuItem, error) {
	var items []model.MenuItem
	q := m.db.NewSelect().Model(&items).
		Where("mi.available").
		Order("mi.category ASC", "mi.name ASC")
	if category = strings.TrimSpace(category); category != "" {
		q = q.Where("lower(mi.category) = lower(?)", category)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("list menu: %w", err)
	}
	return items, nil
}

// loadOpenOrder fetches the order and enforces the open-state precondition
// shared by every cart mutation.
func (m *Manager) loadOpenOrder(ctx context.Context, tx bun.Tx, orderID int64, ord *model.Order) error {
	err := tx.NewSelect().Model(ord).Where("o.id = ?", orderID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: #%d", ErrNotFound, orderID)
	}
	if err != nil {
		return fmt.Errorf("load order: %w", err)
	}
	if ord.Status != model.OrderOpen {
		return fmt.Errorf("%w: #%d is %s", ErrOrderNotOpen, orderID, ord.Status)
	}
	return nil
}

// recomputeTotal derives the order total from its line items inside the
// mutating transaction. The total is never adjusted independently.
func (m *Manager) recomputeTotal(ctx context.Context, tx bun.Tx, ord *model.Order) error {
	var total sql.NullFloat64
	err := tx.NewSelect().Model((*model.OrderItem)(nil)).
		ColumnExpr("SUM(oi.unit_price * oi.quantity)").
		Where("oi.order_id = ?", ord.ID).
		Scan(ctx, &total)
	if err != nil {
		return fmt.Errorf("sum line items: %w", err)
	}

	ord.Total = total.Float64
	ord.UpdatedAt = m.now().UTC()
	out, err := tx.NewUpdate().Model(ord).
		Column("total", "updated_at").
		WherePK().
		Where("status = ?", model.OrderOpen).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("persist total: %w", err)
	}
	// The open check at transaction start can be stale under read
	// committed; a finalize committed in between must fail the mutation.
	if rows, _ := out.RowsAffected(); rows == 0 {
		return fmt.Errorf("%w: #%d", ErrOrderNotOpen, ord.ID)
	}
	return nil
}

func findMenuItem(ctx context.Context, tx bun.Tx, name string) (*model.MenuItem, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: menu item name is required", contractx.ErrValidation)
	}

	// Case-insensitive partial match so "margherita" finds "Pizza
	// Margherita". Exact-name matches win over partial ones.
	var items []model.MenuItem
	err := tx.NewSelect().Model(&items).
		Where("lower(mi.name) LIKE lower(?)", "%"+name+"%").
		Order("mi.name ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("lookup menu item: %w", err)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrItemNotFound, name)
	}

	match := &items[0]
	for i := range items {
		if strings.EqualFold(items[i].Name, name) {
			match = &items[i]
			break
		}
	}
	if !match.Available {
		return nil, fmt.Errorf("%w: %s", ErrItemUnavailable, match.Name)
	}
	return match, nil
}
