package tool

import (
	"context"
	"fmt"
	"strings"

	contractx "github.com/noeguerin/bistro-concierge/agent/contract"
	"github.com/noeguerin/bistro-concierge/restaurant/reservation"
)

const (
	ToolCheckAvailability = "check_availability"
	ToolMakeReservation   = "make_reservation"
	ToolCancelReservation = "cancel_reservation"
	ToolViewReservations  = "view_reservations"
)

// CheckAvailabilityTool lists tables free at a slot for a party size.
type CheckAvailabilityTool struct {
	mgr *reservation.Manager
}

func NewCheckAvailabilityTool(mgr *reservation.Manager) *CheckAvailabilityTool {
	return &CheckAvailabilityTool{mgr: mgr}
}

func (t *CheckAvailabilityTool) Spec() contractx.ToolSpec {
	return contractx.ToolSpec{
		Name:        ToolCheckAvailability,
		Description: "Check which tables are free for a given date, time and party size.",
		Params: []contractx.ToolParam{
			{Name: "date", Type: contractx.ParamString, Required: true, Description: "Date in YYYY-MM-DD"},
			{Name: "time", Type: contractx.ParamString, Required: true, Description: "Time in HH:MM, 24h"},
			{Name: "party_size", Type: contractx.ParamInt, Required: true, Description: "Number of guests"},
		},
	}
}

func (t *CheckAvailabilityTool) Invoke(ctx context.Context, args map[string]any) (contractx.ToolOutcome, error) {
	date, err := stringArg(args, "date", true)
	if err != nil {
		return contractx.ToolOutcome{}, err
	}
	timeOfDay, err := stringArg(args, "time", true)
	if err != nil {
		return contractx.ToolOutcome{}, err
	}
	partySize, err := intArg(args, "party_size", true)
	if err != nil {
		return contractx.ToolOutcome{}, err
	}

	tables, err := t.mgr.CheckAvailability(ctx, date, timeOfDay, partySize)
	if err != nil {
		return contractx.ToolOutcome{}, err
	}
	if len(tables) == 0 {
		return contractx.ToolOutcome{
			Text: fmt.Sprintf("No table for %d guests is available on %s at %s.", partySize, date, timeOfDay),
		}, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d table(s) available on %s at %s for %d guests:", len(tables), date, timeOfDay, partySize)
	for _, tb := range tables {
		fmt.Fprintf(&b, "\n- table %d (seats %d)", tb.TableNumber, tb.Capacity)
	}
	return contractx.ToolOutcome{Text: b.String(), Success: true}, nil
}

// MakeReservationTool books the best-fitting free table. Terminal: a
// successful booking completes the caller's request.
type MakeReservationTool struct {
	mgr *reservation.Manager
}

func NewMakeReservationTool(mgr *reservation.Manager) *MakeReservationTool {
	return &MakeReservationTool{mgr: mgr}
}

func (t *MakeReservationTool) Spec() contractx.ToolSpec {
	return contractx.ToolSpec{
		Name:        ToolMakeReservation,
		Description: "Book a table for the customer. Confirm date, time, party size, name and phone first.",
		Params: []contractx.ToolParam{
			{Name: "date", Type: contractx.ParamString, Required: true, Description: "Date in YYYY-MM-DD"},
			{Name: "time", Type: contractx.ParamString, Required: true, Description: "Time in HH:MM, 24h"},
			{Name: "party_size", Type: contractx.ParamInt, Required: true, Description: "Number of guests"},
			{Name: "customer_name", Type: contractx.ParamString, Required: true, Description: "Name the booking is under"},
			{Name: "phone", Type: contractx.ParamString, Required: true, Description: "Contact phone number"},
			{Name: "special_request", Type: contractx.ParamString, Description: "Optional request, e.g. window seat"},
		},
		Terminal: true,
	}
}

func (t *MakeReservationTool) Invoke(ctx context.Context, args map[string]any) (contractx.ToolOutcome, error) {
	var p reservation.BookParams
	var err error
	if p.Date, err = stringArg(args, "date", true); err != nil {
		return contractx.ToolOutcome{}, err
	}
	if p.Time, err = stringArg(args, "time", true); err != nil {
		return contractx.ToolOutcome{}, err
	}
	if p.PartySize, err = intArg(args, "party_size", true); err != nil {
		return contractx.ToolOutcome{}, err
	}
	if p.CustomerName, err = stringArg(args, "customer_name", true); err != nil {
		return contractx.ToolOutcome{}, err
	}
	if p.Phone, err = stringArg(args, "phone", true); err != nil {
		return contractx.ToolOutcome{}, err
	}
	if p.SpecialRequest, err = stringArg(args, "special_request", false); err != nil {
		return contractx.ToolOutcome{}, err
	}

	res, err := t.mgr.Book(ctx, p)
	if err != nil {
		return contractx.ToolOutcome{}, err
	}
	return contractx.ToolOutcome{
		Text: fmt.Sprintf("Reservation #%d confirmed for %s, %d guests on %s at %s.",
			res.ID, p.CustomerName, res.PartySize, res.Date, res.Time),
		Success: true,
	}, nil
}

// CancelReservationTool cancels a booking looked up by slot and name.
type CancelReservationTool struct {
	mgr *reservation.Manager
}

func NewCancelReservationTool(mgr *reservation.Manager) *CancelReservationTool {
	return &CancelReservationTool{mgr: mgr}
}

func (t *CancelReservationTool) Spec() contractx.ToolSpec {
	return contractx.ToolSpec{
		Name:        ToolCancelReservation,
		Description: "Cancel an existing reservation identified by date, time and customer name.",
		Params: []contractx.ToolParam{
			{Name: "date", Type: contractx.ParamString, Required: true, Description: "Date in YYYY-MM-DD"},
			{Name: "time", Type: contractx.ParamString, Required: true, Description: "Time in HH:MM, 24h"},
			{Name: "customer_name", Type: contractx.ParamString, Required: true, Description: "Name the booking is under"},
		},
		Terminal: true,
	}
}

func (t *CancelReservationTool) Invoke(ctx context.Context, args map[string]any) (contractx.ToolOutcome, error) {
	date, err := stringArg(args, "date", true)
	if err != nil {
		return contractx.ToolOutcome{}, err
	}
	timeOfDay, err := stringArg(args, "time", true)
	if err != nil {
		return contractx.ToolOutcome{}, err
	}
	name, err := stringArg(args, "customer_name", true)
	if err != nil {
		return contractx.ToolOutcome{}, err
	}

	res, err := t.mgr.Cancel(ctx, date, timeOfDay, name)
	if err != nil {
		return contractx.ToolOutcome{}, err
	}
	return contractx.ToolOutcome{
		Text:    fmt.Sprintf("Reservation #%d for %s on %s at %s has been cancelled.", res.ID, name, res.Date, res.Time),
		Success: true,
	}, nil
}

// ViewReservationsTool lists reservations, optionally for one date.
type ViewReservationsTool struct {
	mgr *reservation.Manager
}

func NewViewReservationsTool(mgr *reservation.Manager) *ViewReservationsTool {
	return &ViewReservationsTool{mgr: mgr}
}

func (t *ViewReservationsTool) Spec() contractx.ToolSpec {
	return contractx.ToolSpec{
		Name:        ToolViewReservations,
		Description: "List reservations, optionally filtered by date.",
		Params: []contractx.ToolParam{
			{Name: "date", Type: contractx.ParamString, Description: "Optional date filter in YYYY-MM-DD"},
		},
	}
}

func (t *ViewReservationsTool) Invoke(ctx context.Context, args map[string]any) (contractx.ToolOutcome, error) {
	date, err := stringArg(args, "date", false)
	if err != nil {
		return contractx.ToolOutcome{}, err
	}

	views, err := t.mgr.List(ctx, date)
	if err != nil {
		return contractx.ToolOutcome{}, err
	}
	if len(views) == 0 {
		return contractx.ToolOutcome{Text: "No reservations found.", Success: true}, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d reservation(s):", len(views))
	for _, v := range views {
		fmt.Fprintf(&b, "\n- #%d %s at %s, table %d, %d guests, %s (%s)",
			v.ID, v.Date, v.Time, v.TableNumber, v.PartySize, v.ClientName, v.Status)
	}
	return contractx.ToolOutcome{Text: b.String(), Success: true}, nil
}
