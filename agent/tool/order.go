package tool

import (
	"context"
	"fmt"
	"strings"

	contractx "github.com/noeguerin/bistro-concierge/agent/contract"
	"github.com/noeguerin/bistro-concierge/restaurant/order"
)

const (
	ToolListMenu      = "list_menu"
	ToolCreateOrder   = "create_order"
	ToolAddItem       = "add_item"
	ToolUpdateItem    = "update_item"
	ToolRemoveItem    = "remove_item"
	ToolViewOrder     = "view_order"
	ToolFinalizeOrder = "finalize_order"
	ToolCheckStatus   = "check_status"
	ToolCancelOrder   = "cancel_order"
)

// ListMenuTool lists available menu items, optionally by category.
type ListMenuTool struct {
	mgr *order.Manager
}

func NewListMenuTool(mgr *order.Manager) *ListMenuTool {
	return &ListMenuTool{mgr: mgr}
}

func (t *ListMenuTool) Spec() contractx.ToolSpec {
	return contractx.ToolSpec{
		Name:        ToolListMenu,
		Description: "List the menu items currently available, optionally filtered by category.",
		Params: []contractx.ToolParam{
			{Name: "category", Type: contractx.ParamString, Description: "Optional category, e.g. starters, mains, desserts, drinks"},
		},
	}
}

func (t *ListMenuTool) Invoke(ctx context.Context, args map[string]any) (contractx.ToolOutcome, error) {
	category, err := stringArg(args, "category", false)
	if err != nil {
		return contractx.ToolOutcome{}, err
	}

	items, err := t.mgr.Menu(ctx, category)
	if err != nil {
		return contractx.ToolOutcome{}, err
	}
	if len(items) == 0 {
		return contractx.ToolOutcome{Text: "No menu items are available right now.", Success: true}, nil
	}

	var b strings.Builder
	b.WriteString("Available menu items:")
	for _, it := range items {
		fmt.Fprintf(&b, "\n- %s (%s) %.2f EUR", it.Name, it.Category, it.Price)
	}
	return contractx.ToolOutcome{Text: b.String(), Success: true}, nil
}

// CreateOrderTool opens an empty takeaway or delivery order.
type CreateOrderTool struct {
	mgr *order.Manager
}

func NewCreateOrderTool(mgr *order.Manager) *CreateOrderTool {
	return &CreateOrderTool{mgr: mgr}
}

func (t *CreateOrderTool) Spec() contractx.ToolSpec {
	return contractx.ToolSpec{
		Name:        ToolCreateOrder,
		Description: "Open a new order for the customer. Items are added afterwards with add_item.",
		Params: []contractx.ToolParam{
			{Name: "customer_name", Type: contractx.ParamString, Required: true, Description: "Customer name"},
			{Name: "phone", Type: contractx.ParamString, Required: true, Description: "Contact phone number"},
			{Name: "order_type", Type: contractx.ParamString, Required: true, Description: "takeaway or delivery"},
		},
	}
}

func (t *CreateOrderTool) Invoke(ctx context.Context, args map[string]any) (contractx.ToolOutcome, error) {
	name, err := stringArg(args, "customer_name", true)
	if err != nil {
		return contractx.ToolOutcome{}, err
	}
	phone, err := stringArg(args, "phone", true)
	if err != nil {
		return contractx.ToolOutcome{}, err
	}
	orderType, err := stringArg(args, "order_type", true)
	if err != nil {
		return contractx.ToolOutcome{}, err
	}

	ord, err := t.mgr.Create(ctx, name, phone, orderType)
	if err != nil {
		return contractx.ToolOutcome{}, err
	}
	return contractx.ToolOutcome{
		Text:    fmt.Sprintf("Order #%d opened (%s) for %s. Add items with add_item.", ord.ID, ord.OrderType, name),
		Success: true,
	}, nil
}

// AddItemTool puts quantity of a menu item into an open order.
type AddItemTool struct {
	mgr *order.Manager
}

func NewAddItemTool(mgr *order.Manager) *AddItemTool {
	return &AddItemTool{mgr: mgr}
}

func (t *AddItemTool) Spec() contractx.ToolSpec {
	return contractx.ToolSpec{
		Name:        ToolAddItem,
		Description: "Add a menu item to an open order. Adding an item already in the order increases its quantity.",
		Params: []contractx.ToolParam{
			{Name: "order_id", Type: contractx.ParamInt, Required: true, Description: "Order number"},
			{Name: "item_name", Type: contractx.ParamString, Required: true, Description: "Menu item name, partial names match"},
			{Name: "quantity", Type: contractx.ParamInt, Required: true, Description: "How many"},
			{Name: "note", Type: contractx.ParamString, Description: "Optional preparation note, e.g. no onions"},
		},
	}
}

func (t *AddItemTool) Invoke(ctx context.Context, args map[string]any) (contractx.ToolOutcome, error) {
	orderID, err := int64Arg(args, "order_id", true)
	if err != nil {
		return contractx.ToolOutcome{}, err
	}
	itemName, err := stringArg(args, "item_name", true)
	if err != nil {
		return contractx.ToolOutcome{}, err
	}
	quantity, err := intArg(args, "quantity", true)
	if err != nil {
		return contractx.ToolOutcome{}, err
	}
	note, err := stringArg(args, "note", false)
	if err != nil {
		return contractx.ToolOutcome{}, err
	}

	ord, item, err := t.mgr.AddItem(ctx, orderID, itemName, quantity, note)
	if err != nil {
		return contractx.ToolOutcome{}, err
	}
	return contractx.ToolOutcome{
		Text: fmt.Sprintf("Added %d x %s (%.2f EUR each) to order #%d. Total is now %.2f EUR.",
			quantity, item.Name, item.Price, ord.ID, ord.Total),
		Success: true,
	}, nil
}

// UpdateItemTool changes a line's quantity; zero removes the line.
type UpdateItemTool struct {
	mgr *order.Manager
}

func NewUpdateItemTool(mgr *order.Manager) *UpdateItemTool {
	return &UpdateItemTool{mgr: mgr}
}

func (t *UpdateItemTool) Spec() contractx.ToolSpec {
	return contractx.ToolSpec{
		Name:        ToolUpdateItem,
		Description: "Set the quantity of an item already in an open order. Quantity 0 removes it.",
		Params: []contractx.ToolParam{
			{Name: "order_id", Type: contractx.ParamInt, Required: true, Description: "Order number"},
			{Name: "item_name", Type: contractx.ParamString, Required: true, Description: "Menu item name"},
			{Name: "quantity", Type: contractx.ParamInt, Required: true, Description: "New quantity, 0 removes the item"},
		},
	}
}

func (t *UpdateItemTool) Invoke(ctx context.Context, args map[string]any) (contractx.ToolOutcome, error) {
	orderID, err := int64Arg(args, "order_id", true)
	if err != nil {
		return contractx.ToolOutcome{}, err
	}
	itemName, err := stringArg(args, "item_name", true)
	if err != nil {
		return contractx.ToolOutcome{}, err
	}
	quantity, err := intArg(args, "quantity", true)
	if err != nil {
		return contractx.ToolOutcome{}, err
	}

	ord, item, err := t.mgr.UpdateItem(ctx, orderID, itemName, quantity)
	if err != nil {
		return contractx.ToolOutcome{}, err
	}
	if quantity == 0 {
		return contractx.ToolOutcome{
			Text:    fmt.Sprintf("Removed %s from order #%d. Total is now %.2f EUR.", item.Name, ord.ID, ord.Total),
			Success: true,
		}, nil
	}
	return contractx.ToolOutcome{
		Text:    fmt.Sprintf("Set %s to %d on order #%d. Total is now %.2f EUR.", item.Name, quantity, ord.ID, ord.Total),
		Success: true,
	}, nil
}

// RemoveItemTool deletes a line from an open order.
type RemoveItemTool struct {
	mgr *order.Manager
}

func NewRemoveItemTool(mgr *order.Manager) *RemoveItemTool {
	return &RemoveItemTool{mgr: mgr}
}

func (t *RemoveItemTool) Spec() contractx.ToolSpec {
	return contractx.ToolSpec{
		Name:        ToolRemoveItem,
		Description: "Remove an item from an open order entirely.",
		Params: []contractx.ToolParam{
			{Name: "order_id", Type: contractx.ParamInt, Required: true, Description: "Order number"},
			{Name: "item_name", Type: contractx.ParamString, Required: true, Description: "Menu item name"},
		},
	}
}

func (t *RemoveItemTool) Invoke(ctx context.Context, args map[string]any) (contractx.ToolOutcome, error) {
	orderID, err := int64Arg(args, "order_id", true)
	if err != nil {
		return contractx.ToolOutcome{}, err
	}
	itemName, err := stringArg(args, "item_name", true)
	if err != nil {
		return contractx.ToolOutcome{}, err
	}

	ord, item, err := t.mgr.RemoveItem(ctx, orderID, itemName)
	if err != nil {
		return contractx.ToolOutcome{}, err
	}
	return contractx.ToolOutcome{
		Text:    fmt.Sprintf("Removed %s from order #%d. Total is now %.2f EUR.", item.Name, ord.ID, ord.Total),
		Success: true,
	}, nil
}

// ViewOrderTool shows an order's lines and total.
type ViewOrderTool struct {
	mgr *order.Manager
}

func NewViewOrderTool(mgr *order.Manager) *ViewOrderTool {
	return &ViewOrderTool{mgr: mgr}
}

func (t *ViewOrderTool) Spec() contractx.ToolSpec {
	return contractx.ToolSpec{
		Name:        ToolViewOrder,
		Description: "Show the current contents and total of an order.",
		Params: []contractx.ToolParam{
			{Name: "order_id", Type: contractx.ParamInt, Required: true, Description: "Order number"},
		},
	}
}

func (t *ViewOrderTool) Invoke(ctx context.Context, args map[string]any) (contractx.ToolOutcome, error) {
	orderID, err := int64Arg(args, "order_id", true)
	if err != nil {
		return contractx.ToolOutcome{}, err
	}

	ord, err := t.mgr.Get(ctx, orderID)
	if err != nil {
		return contractx.ToolOutcome{}, err
	}
	lines, err := t.mgr.Lines(ctx, orderID)
	if err != nil {
		return contractx.ToolOutcome{}, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Order #%d (%s, %s):", ord.ID, ord.OrderType, ord.Status)
	if len(lines) == 0 {
		b.WriteString("\n(empty)")
	}
	for _, l := range lines {
		fmt.Fprintf(&b, "\n- %d x %s @ %.2f EUR = %.2f EUR", l.Quantity, l.ItemName, l.UnitPrice, l.Subtotal())
		if l.Note != "" {
			fmt.Fprintf(&b, " (%s)", l.Note)
		}
	}
	fmt.Fprintf(&b, "\nTotal: %.2f EUR", ord.Total)
	return contractx.ToolOutcome{Text: b.String(), Success: true}, nil
}

// FinalizeOrderTool submits an open order to the kitchen. Terminal.
type FinalizeOrderTool struct {
	mgr *order.Manager
}

func NewFinalizeOrderTool(mgr *order.Manager) *FinalizeOrderTool {
	return &FinalizeOrderTool{mgr: mgr}
}

func (t *FinalizeOrderTool) Spec() contractx.ToolSpec {
	return contractx.ToolSpec{
		Name:        ToolFinalizeOrder,
		Description: "Submit the order to the kitchen. Confirm the contents with the customer first.",
		Params: []contractx.ToolParam{
			{Name: "order_id", Type: contractx.ParamInt, Required: true, Description: "Order number"},
			{Name: "instructions", Type: contractx.ParamString, Description: "Optional instructions for the whole order"},
		},
		Terminal: true,
	}
}

func (t *FinalizeOrderTool) Invoke(ctx context.Context, args map[string]any) (contractx.ToolOutcome, error) {
	orderID, err := int64Arg(args, "order_id", true)
	if err != nil {
		return contractx.ToolOutcome{}, err
	}
	instructions, err := stringArg(args, "instructions", false)
	if err != nil {
		return contractx.ToolOutcome{}, err
	}

	ord, estimate, err := t.mgr.Finalize(ctx, orderID, instructions)
	if err != nil {
		return contractx.ToolOutcome{}, err
	}
	return contractx.ToolOutcome{
		Text: fmt.Sprintf("Order #%d confirmed, total %.2f EUR. Estimated preparation time: about %d minutes.",
			ord.ID, ord.Total, estimate),
		Success: true,
	}, nil
}

// CheckStatusTool reports where an order is in the kitchen pipeline.
type CheckStatusTool struct {
	mgr *order.Manager
}

func NewCheckStatusTool(mgr *order.Manager) *CheckStatusTool {
	return &CheckStatusTool{mgr: mgr}
}

func (t *CheckStatusTool) Spec() contractx.ToolSpec {
	return contractx.ToolSpec{
		Name:        ToolCheckStatus,
		Description: "Check the current status of an order.",
		Params: []contractx.ToolParam{
			{Name: "order_id", Type: contractx.ParamInt, Required: true, Description: "Order number"},
		},
	}
}

func (t *CheckStatusTool) Invoke(ctx context.Context, args map[string]any) (contractx.ToolOutcome, error) {
	orderID, err := int64Arg(args, "order_id", true)
	if err != nil {
		return contractx.ToolOutcome{}, err
	}

	ord, err := t.mgr.Get(ctx, orderID)
	if err != nil {
		return contractx.ToolOutcome{}, err
	}
	return contractx.ToolOutcome{
		Text:    fmt.Sprintf("Order #%d is %s. Total %.2f EUR.", ord.ID, ord.Status, ord.Total),
		Success: true,
	}, nil
}

// CancelOrderTool cancels an order not yet marked ready. Terminal.
type CancelOrderTool struct {
	mgr *order.Manager
}

func NewCancelOrderTool(mgr *order.Manager) *CancelOrderTool {
	return &CancelOrderTool{mgr: mgr}
}

func (t *CancelOrderTool) Spec() contractx.ToolSpec {
	return contractx.ToolSpec{
		Name:        ToolCancelOrder,
		Description: "Cancel an order that has not yet been prepared.",
		Params: []contractx.ToolParam{
			{Name: "order_id", Type: contractx.ParamInt, Required: true, Description: "Order number"},
		},
		Terminal: true,
	}
}

func (t *CancelOrderTool) Invoke(ctx context.Context, args map[string]any) (contractx.ToolOutcome, error) {
	orderID, err := int64Arg(args, "order_id", true)
	if err != nil {
		return contractx.ToolOutcome{}, err
	}

	ord, err := t.mgr.Cancel(ctx, orderID)
	if err != nil {
		return contractx.ToolOutcome{}, err
	}
	return contractx.ToolOutcome{
		Text:    fmt.Sprintf("Order #%d has been cancelled.", ord.ID),
		Success: true,
	}, nil
}
