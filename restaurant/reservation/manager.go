package reservation

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"

	contractx "github.com/noeguerin/bistro-concierge/agent/contract"
	dbx "github.com/noeguerin/bistro-concierge/restaurant/db"
	"github.com/noeguerin/bistro-concierge/restaurant/events"
	"github.com/noeguerin/bistro-concierge/restaurant/model"
)

var (
	ErrNoAvailability   = fmt.Errorf("%w: no table available", contractx.ErrConflict)
	ErrAlreadyCancelled = fmt.Errorf("%w: reservation already cancelled", contractx.ErrConflict)
	ErrNotFound         = fmt.Errorf("%w: reservation", contractx.ErrNotFound)
)

// Retried on the unique-violation race: a concurrent booking can consume
// the chosen table between the availability check and commit.
const maxBookAttempts = 3

type BookParams struct {
	Date           string
	Time           string
	CustomerName   string
	Phone          string
	PartySize      int
	SpecialRequest string
}

// View is a reservation joined with its client and table for display.
type View struct {
	model.Reservation `bun:",inherit"`

	ClientName  string `bun:"client_name"`
	Phone       string `bun:"phone"`
	TableNumber int    `bun:"table_number"`
}

// Manager owns availability search and the reservation lifecycle.
type Manager struct {
	db     *bun.DB
	pub    *events.Publisher
	now    func() time.Time
	status model.ReservationStatus
}

func NewManager(database *bun.DB, pub *events.Publisher) *Manager {
	return &Manager{
		db:     database,
		pub:    pub,
		now:    time.Now,
		status: model.ReservationConfirmed,
	}
}

// CheckAvailability returns active tables with sufficient capacity and no
// holding reservation at (date, time), smallest capacity first so booking
// wastes as little capacity as possible. Ties break on table number.
func (m *Manager) CheckAvailability(ctx context.Context, date, timeOfDay string, partySize int) ([]model.Table, error) {
	date, timeOfDay, err := normalizeSlot(date, timeOfDay)
	if err != nil {
		return nil, err
	}
	if partySize <= 0 {
		return nil, fmt.Errorf("%w: party size must be positive", contractx.ErrValidation)
	}
	return eligibleTables(ctx, m.db, date, timeOfDay, partySize)
}

// Book resolves or creates the client, picks the smallest eligible table
// and inserts the reservation in one transaction. The partial unique index
// on (table_id, date, time) makes the first committer win; the loser
// re-runs the availability check and, when nothing is left, gets
// ErrNoAvailability.
func (m *Manager) Book(ctx context.Context, p BookParams) (*model.Reservation, error) {
	date, timeOfDay, err := normalizeSlot(p.Date, p.Time)
	if err != nil {
		return nil, err
	}
	if p.PartySize <= 0 {
		return nil, fmt.Errorf("%w: party size must be positive", contractx.ErrValidation)
	}
	if strings.TrimSpace(p.Phone) == "" {
		return nil, fmt.Errorf("%w: phone is required", contractx.ErrValidation)
	}

	for attempt := 0; attempt < maxBookAttempts; attempt++ {
		res, err := m.bookOnce(ctx, p, date, timeOfDay)
		if err == nil {
			m.pub.Publish(ctx, events.ReservationCreated, date, res)
			return res, nil
		}
		if dbx.IsUniqueViolation(err) {
			log.Warn().
				Str("date", date).
				Str("time", timeOfDay).
				Int("attempt", attempt+1).
				Msg("booking lost slot race, retrying")
			continue
		}
		return nil, err
	}
	return nil, ErrNoAvailability
}

func (m *Manager) bookOnce(ctx context.Context, p BookParams, date, timeOfDay string) (*model.Reservation, error) {
	now := m.now().UTC()
	res := new(model.Reservation)

	err := m.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		client, err := dbx.GetOrCreateClient(ctx, tx, p.CustomerName, p.Phone, now)
		if err != nil {
			return err
		}

		tables, err := eligibleTables(ctx, tx, date, timeOfDay, p.PartySize)
		if err != nil {
			return err
		}
		if len(tables) == 0 {
			return ErrNoAvailability
		}

		*res = model.Reservation{
			ClientID:       client.ID,
			TableID:        tables[0].ID,
			Date:           date,
			Time:           timeOfDay,
			PartySize:      p.PartySize,
			Status:         m.status,
			SpecialRequest: strings.TrimSpace(p.SpecialRequest),
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if _, err := tx.NewInsert().Model(res).Exec(ctx); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Cancel finds the reservation identified by (date, time, customer name)
// and transitions it to cancelled. A reservation already cancelled yields
// ErrAlreadyCancelled, distinct from ErrNotFound.
func (m *Manager) Cancel(ctx context.Context, date, timeOfDay, customerName string) (*model.Reservation, error) {
	date, timeOfDay, err := normalizeSlot(date, timeOfDay)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(customerName) == "" {
		return nil, fmt.Errorf("%w: customer name is required", contractx.ErrValidation)
	}

	res := new(model.Reservation)
	err = m.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		var matches []model.Reservation
		err := tx.NewSelect().Model(&matches).
			Join("JOIN clients AS c ON c.id = r.client_id").
			Where("r.date = ?", date).
			Where("r.time = ?", timeOfDay).
			Where("lower(c.name) = lower(?)", strings.TrimSpace(customerName)).
			Order("r.id ASC").
			Scan(ctx)
		if err != nil {
			return fmt.Errorf("lookup reservation: %w", err)
		}
		if len(matches) == 0 {
			return fmt.Errorf("%w for %s at %s %s", ErrNotFound, customerName, date, timeOfDay)
		}

		target := pickCancellable(matches)
		if target == nil {
			return ErrAlreadyCancelled
		}

		target.Status = model.ReservationCancelled
		target.UpdatedAt = m.now().UTC()
		out, err := tx.NewUpdate().Model(target).
			Column("status", "updated_at").
			WherePK().
			Where("status IN (?)", bun.In([]model.ReservationStatus{model.ReservationPending, model.ReservationConfirmed})).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("cancel reservation: %w", err)
		}
		if n, _ := out.RowsAffected(); n == 0 {
			// Lost a race with a concurrent cancel.
			return ErrAlreadyCancelled
		}
		*res = *target
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.pub.Publish(ctx, events.ReservationCancelled, res.Date, res)
	return res, nil
}

// Complete marks a kept reservation as completed. Admin/kitchen side; not
// part of the caller tool surface.
func (m *Manager) Complete(ctx context.Context, reservationID int64) error {
	out, err := m.db.NewUpdate().Model((*model.Reservation)(nil)).
		Set("status = ?", model.ReservationCompleted).
		Set("updated_at = ?", m.now().UTC()).
		Where("r.id = ?", reservationID).
		Where("r.status IN (?)", bun.In([]model.ReservationStatus{model.ReservationPending, model.ReservationConfirmed})).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("complete reservation: %w", err)
	}
	if n, _ := out.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: id=%d not in a completable status", ErrNotFound, reservationID)
	}
	return nil
}

// List returns reservations joined with client and table data, optionally
// filtered by date. Read-only.
func (m *Manager) List(ctx context.Context, date string) ([]View, error) {
	var views []View
	q := m.db.NewSelect().Model(&views).
		ColumnExpr("r.*").
		ColumnExpr("c.name AS client_name").
		ColumnExpr("c.phone AS phone").
		ColumnExpr("t.table_number AS table_number").
		Join("JOIN clients AS c ON c.id = r.client_id").
		Join("JOIN tables AS t ON t.id = r.table_id").
		Order("r.date ASC", "r.time ASC", "r.id ASC")

	if date = strings.TrimSpace(date); date != "" {
		if _, err := time.Parse("2006-01-02", date); err != nil {
			return nil, fmt.Errorf("%w: date must be YYYY-MM-DD", contractx.ErrValidation)
		}
		q = q.Where("r.date = ?", date)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	return views, nil
}

func eligibleTables(ctx context.Context, idb bun.IDB, date, timeOfDay string, partySize int) ([]model.Table, error) {
	var tables []model.Table
	err := idb.NewSelect().Model(&tables).
		Where("t.active").
		Where("t.capacity >= ?", partySize).
		Where(`NOT EXISTS (
			SELECT 1 FROM reservations AS r
			WHERE r.table_id = t.id AND r.date = ? AND r.time = ?
			AND r.status IN ('pending', 'confirmed')
		)`, date, timeOfDay).
		Order("t.capacity ASC", "t.table_number ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("availability query: %w", err)
	}
	return tables, nil
}

func pickCancellable(matches []model.Reservation) *model.Reservation {
	for i := range matches {
		if matches[i].Status.Cancellable() {
			return &matches[i]
		}
	}
	return nil
}

func normalizeSlot(date, timeOfDay string) (string, string, error) {
	date = strings.TrimSpace(date)
	timeOfDay = strings.TrimSpace(timeOfDay)
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return "", "", fmt.Errorf("%w: date must be YYYY-MM-DD, got %q", contractx.ErrValidation, date)
	}
	if _, err := time.Parse("15:04", timeOfDay); err != nil {
		return "", "", fmt.Errorf("%w: time must be HH:MM, got %q", contractx.ErrValidation, timeOfDay)
	}
	return date, timeOfDay, nil
}
