package tool

import (
	contractx "github.com/noeguerin/bistro-concierge/agent/contract"
	"github.com/noeguerin/bistro-concierge/restaurant/order"
	"github.com/noeguerin/bistro-concierge/restaurant/reservation"
)

// Set maps each intent to the tools its handler may call. It implements
// contract.Registry. Toolsets are built once at construction; the
// orchestrator never sees tools outside the routed intent's set.
type Set struct {
	byIntent map[contractx.Intent][]contractx.Tool
}

func NewSet(res *reservation.Manager, ord *order.Manager, retriever contractx.Retriever) *Set {
	reservationTools := []contractx.Tool{
		NewCheckAvailabilityTool(res),
		NewMakeReservationTool(res),
		NewCancelReservationTool(res),
		NewViewReservationsTool(res),
	}
	orderTools := []contractx.Tool{
		NewListMenuTool(ord),
		NewCreateOrderTool(ord),
		NewAddItemTool(ord),
		NewUpdateItemTool(ord),
		NewRemoveItemTool(ord),
		NewViewOrderTool(ord),
		NewFinalizeOrderTool(ord),
		NewCheckStatusTool(ord),
		NewCancelOrderTool(ord),
	}
	inquiryTools := []contractx.Tool{
		NewSearchKnowledgeBaseTool(retriever),
		NewListMenuTool(ord),
	}

	return &Set{byIntent: map[contractx.Intent][]contractx.Tool{
		contractx.IntentReservation:    reservationTools,
		contractx.IntentOrder:          orderTools,
		contractx.IntentGeneralInquiry: inquiryTools,
	}}
}

func (s *Set) Toolset(intent contractx.Intent) []contractx.Tool {
	return s.byIntent[intent]
}
