package order

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/uptrace/bun"

	dbx "github.com/noeguerin/bistro-concierge/restaurant/db"
	"github.com/noeguerin/bistro-concierge/restaurant/model"
)

// A cart mutation checks the open status when its transaction starts, but
// a concurrent finalize can commit in between. The total write itself must
// then refuse, rolling the whole mutation back.
func TestTotalUpdateRefusesClosedOrder(t *testing.T) {
	t.Parallel()

	database, err := dbx.NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	ctx := context.Background()
	if err := dbx.InitSchema(ctx, database); err != nil {
		t.Fatalf("init schema: %v", err)
	}
	item := model.MenuItem{Name: "Tiramisu", Category: "desserts", Price: 5.00, Available: true}
	if _, err := database.NewInsert().Model(&item).Exec(ctx); err != nil {
		t.Fatalf("seed menu: %v", err)
	}

	mgr := NewManager(database, nil)
	ord, err := mgr.Create(ctx, "Nora", "+33611111112", "takeaway")
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if _, _, err := mgr.AddItem(ctx, ord.ID, "Tiramisu", 2, ""); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, _, err := mgr.Finalize(ctx, ord.ID, ""); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	// Skew the line so an unguarded recompute would visibly change the
	// stored total (2 x 5.00 = 10.00 became 3 x 5.00 = 15.00).
	if _, err := database.NewUpdate().Model((*model.OrderItem)(nil)).
		Set("quantity = ?", 3).
		Where("oi.order_id = ?", ord.ID).
		Exec(ctx); err != nil {
		t.Fatalf("skew line: %v", err)
	}

	// Replay the write phase of a mutation that loaded the order while it
	// was still open.
	stale := &model.Order{ID: ord.ID, Status: model.OrderOpen}
	err = database.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		return mgr.recomputeTotal(ctx, tx, stale)
	})
	if !errors.Is(err, ErrOrderNotOpen) {
		t.Fatalf("err = %v, want ErrOrderNotOpen", err)
	}

	after, err := mgr.Get(ctx, ord.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if after.Total != 10.00 {
		t.Fatalf("total = %.2f, want the finalized 10.00 untouched", after.Total)
	}
}
