package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"github.com/noeguerin/bistro-concierge/restaurant/model"
)

// GetOrCreateClient resolves a client by phone, creating one on first
// contact. Clients are never deleted, only referenced. Runs on idb so it
// can join the caller's transaction.
func GetOrCreateClient(ctx context.Context, idb bun.IDB, name, phone string, now time.Time) (*model.Client, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return nil, fmt.Errorf("client phone is required")
	}

	client := new(model.Client)
	err := idb.NewSelect().Model(client).Where("c.phone = ?", phone).Scan(ctx)
	if err == nil {
		// Keep the stored name current if the caller supplied one.
		if name = strings.TrimSpace(name); name != "" && name != client.Name {
			client.Name = name
			client.UpdatedAt = now
			if _, err := idb.NewUpdate().Model(client).
				Column("name", "updated_at").
				WherePK().
				Exec(ctx); err != nil {
				return nil, fmt.Errorf("update client name: %w", err)
			}
		}
		return client, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("lookup client by phone: %w", err)
	}

	client = &model.Client{
		Name:      strings.TrimSpace(name),
		Phone:     phone,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if client.Name == "" {
		client.Name = "Guest"
	}
	if _, err := idb.NewInsert().Model(client).Exec(ctx); err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}
	return client, nil
}

// FindClientsByName returns clients whose stored name matches name
// case-insensitively. Used by cancellation, which identifies callers by
// (date, time, name).
func FindClientsByName(ctx context.Context, idb bun.IDB, name string) ([]model.Client, error) {
	var clients []model.Client
	err := idb.NewSelect().Model(&clients).
		Where("lower(c.name) = lower(?)", strings.TrimSpace(name)).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("lookup clients by name: %w", err)
	}
	return clients, nil
}
