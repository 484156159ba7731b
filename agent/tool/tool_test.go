package tool

import (
	"context"
	"errors"
	"testing"

	contractx "github.com/noeguerin/bistro-concierge/agent/contract"
)

func TestStringArg(t *testing.T) {
	t.Parallel()

	args := map[string]any{"name": "  Ana  ", "count": 2.0}

	got, err := stringArg(args, "name", true)
	if err != nil || got != "Ana" {
		t.Fatalf("stringArg = %q, %v", got, err)
	}

	if _, err := stringArg(args, "missing", true); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("missing required err = %v, want validation error", err)
	}
	if got, err := stringArg(args, "missing", false); err != nil || got != "" {
		t.Fatalf("missing optional = %q, %v", got, err)
	}
	if _, err := stringArg(args, "count", true); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("wrong type err = %v, want validation error", err)
	}
}

func TestIntArg(t *testing.T) {
	t.Parallel()

	// JSON decoding hands numbers over as float64.
	args := map[string]any{"qty": 3.0, "frac": 2.5, "label": "two"}

	got, err := intArg(args, "qty", true)
	if err != nil || got != 3 {
		t.Fatalf("intArg = %d, %v", got, err)
	}

	for _, key := range []string{"frac", "label", "missing"} {
		if _, err := intArg(args, key, true); !errors.Is(err, contractx.ErrValidation) {
			t.Fatalf("key %s: err = %v, want validation error", key, err)
		}
	}
}

func TestToolArgsValidatedBeforeAnyWork(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	// Nil managers prove the tools reject bad arguments before touching
	// anything downstream.
	cases := []struct {
		tool contractx.Tool
		args map[string]any
	}{
		{NewCheckAvailabilityTool(nil), map[string]any{"date": "2026-09-01", "time": "19:00"}},
		{NewMakeReservationTool(nil), map[string]any{"date": "2026-09-01"}},
		{NewAddItemTool(nil), map[string]any{"order_id": 1.0, "item_name": "pizza", "quantity": 1.5}},
		{NewFinalizeOrderTool(nil), map[string]any{"order_id": "first"}},
		{NewSearchKnowledgeBaseTool(nil), map[string]any{}},
	}
	for _, tc := range cases {
		name := tc.tool.Spec().Name
		if _, err := tc.tool.Invoke(ctx, tc.args); !errors.Is(err, contractx.ErrValidation) {
			t.Fatalf("%s: err = %v, want validation error", name, err)
		}
	}
}

func TestRegistryToolsetsPerIntent(t *testing.T) {
	t.Parallel()

	set := NewSet(nil, nil, nil)

	names := func(intent contractx.Intent) map[string]contractx.ToolSpec {
		out := make(map[string]contractx.ToolSpec)
		for _, tl := range set.Toolset(intent) {
			spec := tl.Spec()
			out[spec.Name] = spec
		}
		return out
	}

	reservationSet := names(contractx.IntentReservation)
	for _, want := range []string{ToolCheckAvailability, ToolMakeReservation, ToolCancelReservation, ToolViewReservations} {
		if _, ok := reservationSet[want]; !ok {
			t.Fatalf("reservation toolset missing %s", want)
		}
	}
	if _, ok := reservationSet[ToolAddItem]; ok {
		t.Fatal("reservation toolset leaks order tools")
	}

	orderSet := names(contractx.IntentOrder)
	for _, want := range []string{
		ToolListMenu, ToolCreateOrder, ToolAddItem, ToolUpdateItem, ToolRemoveItem,
		ToolViewOrder, ToolFinalizeOrder, ToolCheckStatus, ToolCancelOrder,
	} {
		if _, ok := orderSet[want]; !ok {
			t.Fatalf("order toolset missing %s", want)
		}
	}

	inquirySet := names(contractx.IntentGeneralInquiry)
	if _, ok := inquirySet[ToolSearchKnowledgeBase]; !ok {
		t.Fatal("inquiry toolset missing the knowledge base search")
	}
	if _, ok := inquirySet[ToolMakeReservation]; ok {
		t.Fatal("inquiry toolset leaks reservation tools")
	}

	if set.Toolset(contractx.Intent("smalltalk")) != nil {
		t.Fatal("unknown intent should have no toolset")
	}
}

func TestTerminalFlags(t *testing.T) {
	t.Parallel()

	set := NewSet(nil, nil, nil)
	terminal := map[string]bool{
		ToolMakeReservation:   true,
		ToolCancelReservation: true,
		ToolFinalizeOrder:     true,
		ToolCancelOrder:       true,
	}

	for _, intent := range []contractx.Intent{contractx.IntentReservation, contractx.IntentOrder, contractx.IntentGeneralInquiry} {
		for _, tl := range set.Toolset(intent) {
			spec := tl.Spec()
			if spec.Terminal != terminal[spec.Name] {
				t.Fatalf("%s: terminal = %v, want %v", spec.Name, spec.Terminal, terminal[spec.Name])
			}
		}
	}
}
