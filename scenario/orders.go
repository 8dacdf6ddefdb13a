// Package scenario wires venomqa/fakeapi into full agent.Config setups for
// spec.md §8.2's worked scenarios: A (double refund), B (delete-then-read),
// and C (no-op loop detection) run fakeapi entirely in-process via
// httptest.Server; D/E are documented in doc_scenarios_de.go since they need
// a real Postgres adapter, and F, which needs real wall-clock timing, is a
// test of its own in cancellation_test.go. These
// double as both demonstration and integration coverage for the action,
// invariant, world, and scheduler packages together.
package scenario

import (
	"context"
	"fmt"
	"net/http/httptest"

	"venomqa.dev/venomqa/action"
	"venomqa.dev/venomqa/httpapi"
	"venomqa.dev/venomqa/invariant"
	"venomqa.dev/venomqa/respview"
	"venomqa.dev/venomqa/value"
	"venomqa.dev/venomqa/venomqa"
	"venomqa.dev/venomqa/venomqa/fakeapi"
	"venomqa.dev/venomqa/world"
)

// OrdersHarness bundles a running fakeapi server with the World factory an
// agent.Config needs, and a teardown func.
type OrdersHarness struct {
	Server   *httptest.Server
	NewWorld func(ctx context.Context) (*world.World, error)
	Close    func()
}

// NewOrdersHarness starts a fakeapi.Server with the given bug toggles on an
// httptest.Server, and returns a World factory that opens one venomqa
// control-plane session per World (spec.md §6.3), giving that World's HTTP
// client the session's pinned headers as defaults so every action's call
// is automatically routed to the right connection.
func NewOrdersHarness(bugs fakeapi.Bugs, stateFromContext []string) *OrdersHarness {
	fake := fakeapi.New(bugs)
	srv := httptest.NewServer(fake.Echo)

	seq := 0
	newWorld := func(ctx context.Context) (*world.World, error) {
		seq++
		ctrlAPI := httpapi.New(httpapi.Config{BaseURL: srv.URL})
		ctrl, err := venomqa.Open(ctx, ctrlAPI, fmt.Sprintf("scenario-%d", seq))
		if err != nil {
			return nil, fmt.Errorf("scenario: opening venomqa session: %w", err)
		}

		dataAPI := httpapi.New(httpapi.Config{BaseURL: srv.URL, DefaultHeaders: ctrl.Headers()})
		w, err := world.New(world.Config{
			API:               dataAPI,
			StateFromContext:  stateFromContext,
			IncludeLastAction: true,
		})
		if err != nil {
			return nil, err
		}
		w.Register("venomqa", ctrl)
		return w, nil
	}

	return &OrdersHarness{Server: srv, NewWorld: newWorld, Close: srv.Close}
}

// CreateOrderAction is Scenario A's create_order: POST /orders {amount:100},
// stores the resulting order_id in the World's Context.
func CreateOrderAction() action.Action {
	return action.Action{
		Name: "create_order",
		Execute: func(ctx context.Context, w *world.World) (*respview.ResponseView, error) {
			resp, err := w.API().Do(ctx, "POST", "/orders", nil, []byte(`{"amount":100}`))
			if err != nil {
				return resp, err
			}
			if err := resp.ExpectStatus(201); err != nil {
				return resp, err
			}
			idVal, err := resp.ExpectJSONField("id")
			if err != nil {
				return resp, err
			}
			id, _ := idVal.String()
			w.Context().Set("order_id", value.Of(id), "create_order")
			recordOrderFields(w, resp, "create_order")
			return resp, nil
		},
	}
}

// RefundOrderAction is Scenario A's refund_order: POST
// /orders/{order_id}/refund, skipped if no order has been created yet. The
// response's amount/refunded fields are re-recorded into Context so the
// fingerprint changes across refund attempts — otherwise the state graph
// would never distinguish "refunded once" from "refunded twice".
func RefundOrderAction() action.Action {
	return action.Action{
		Name: "refund_order",
		Precond: func(ctx context.Context, w *world.World) bool {
			_, ok := w.Context().Get("order_id")
			return ok
		},
		Execute: func(ctx context.Context, w *world.World) (*respview.ResponseView, error) {
			idVal, _ := w.Context().Get("order_id")
			id, _ := idVal.String()
			resp, err := w.API().Do(ctx, "POST", "/orders/"+id+"/refund", nil, nil)
			if err != nil {
				return resp, err
			}
			if err := resp.ExpectStatus(200); err != nil {
				return resp, err
			}
			recordOrderFields(w, resp, "refund_order")
			return resp, nil
		},
	}
}

// recordOrderFields copies amount/refunded from resp's JSON body into
// Context, so Fingerprint's context projection reflects the order's current
// refund state.
func recordOrderFields(w *world.World, resp *respview.ResponseView, actionName string) {
	v, err := resp.JSON()
	if err != nil {
		return
	}
	if amountV, ok := v.Get("amount"); ok {
		if f, ok := amountV.Float(); ok {
			w.Context().Set("order_amount", value.Of(f), actionName)
		}
	}
	if refundedV, ok := v.Get("refunded"); ok {
		if f, ok := refundedV.Float(); ok {
			w.Context().Set("order_refunded", value.Of(f), actionName)
		}
	}
}

// OrdersActionTable is Scenario A's action table.
func OrdersActionTable() (*action.Table, error) {
	return action.NewTable([]action.Action{CreateOrderAction(), RefundOrderAction()})
}

// NoOverRefund is Scenario A's invariant: for the order created by
// create_order, refunded must never exceed amount.
func NoOverRefund() invariant.Invariant {
	return invariant.Invariant{
		Name:     "no_over_refund",
		Severity: invariant.Critical,
		Check: func(ctx context.Context, w *world.World) (bool, string) {
			idVal, ok := w.Context().Get("order_id")
			if !ok {
				return false, ""
			}
			refundedV, ok := w.Context().Get("order_refunded")
			if !ok {
				return false, ""
			}
			amountV, ok := w.Context().Get("order_amount")
			if !ok {
				return false, ""
			}
			id, _ := idVal.String()
			refunded, _ := refundedV.Float()
			amount, _ := amountV.Float()
			if refunded > amount {
				return true, fmt.Sprintf("order %s refunded %.0f exceeds amount %.0f", id, refunded, amount)
			}
			return false, ""
		},
	}
}

// CreateItemAction is Scenario B's create_item: POST /items, stores the
// resulting id in Context as item_id.
func CreateItemAction() action.Action {
	return action.Action{
		Name: "create_item",
		Execute: func(ctx context.Context, w *world.World) (*respview.ResponseView, error) {
			resp, err := w.API().Do(ctx, "POST", "/items", nil, []byte(`{"body":"fixture"}`))
			if err != nil {
				return resp, err
			}
			if err := resp.ExpectStatus(201); err != nil {
				return resp, err
			}
			idVal, err := resp.ExpectJSONField("id")
			if err != nil {
				return resp, err
			}
			id, _ := idVal.String()
			w.Context().Set("item_id", value.Of(id), "create_item")
			return resp, nil
		},
	}
}

// DeleteItemAction is Scenario B's delete_item: DELETE /items/{item_id},
// and on success records item_id as deleted_item_id for the invariant.
func DeleteItemAction() action.Action {
	return action.Action{
		Name: "delete_item",
		Precond: func(ctx context.Context, w *world.World) bool {
			_, ok := w.Context().Get("item_id")
			return ok
		},
		Execute: func(ctx context.Context, w *world.World) (*respview.ResponseView, error) {
			idVal, _ := w.Context().Get("item_id")
			id, _ := idVal.String()
			resp, err := w.API().Do(ctx, "DELETE", "/items/"+id, nil, nil)
			if err != nil {
				return resp, err
			}
			if err := resp.ExpectStatus(204); err != nil {
				return resp, err
			}
			w.Context().Set("deleted_item_id", value.Of(id), "delete_item")
			w.Context().Delete("item_id")
			return resp, nil
		},
	}
}

// ReadItemAction is Scenario B's read_item: GET /items/{deleted_item_id}.
// This action makes no assertion of its own — deleted_returns_404 is the
// invariant that judges the response.
func ReadItemAction() action.Action {
	return action.Action{
		Name: "read_item",
		Precond: func(ctx context.Context, w *world.World) bool {
			_, ok := w.Context().Get("deleted_item_id")
			return ok
		},
		Execute: func(ctx context.Context, w *world.World) (*respview.ResponseView, error) {
			idVal, _ := w.Context().Get("deleted_item_id")
			id, _ := idVal.String()
			return w.API().Do(ctx, "GET", "/items/"+id, nil, nil)
		},
	}
}

// ItemsActionTable is Scenario B's action table.
func ItemsActionTable() (*action.Table, error) {
	return action.NewTable([]action.Action{CreateItemAction(), DeleteItemAction(), ReadItemAction()})
}

// DeletedReturns404 is Scenario B's invariant: after a successful
// delete_item, any read of that id must 404.
func DeletedReturns404() invariant.Invariant {
	return invariant.Invariant{
		Name:     "deleted_returns_404",
		Severity: invariant.High,
		Check: func(ctx context.Context, w *world.World) (bool, string) {
			idVal, ok := w.Context().Get("deleted_item_id")
			if !ok {
				return false, ""
			}
			id, _ := idVal.String()
			if id == "" {
				return false, ""
			}

			resp, err := w.API().Do(ctx, "GET", "/items/"+id, nil, nil)
			if err != nil {
				return false, ""
			}
			if resp.Status() != 404 {
				return true, fmt.Sprintf("item %s was deleted but read returned %d", id, resp.Status())
			}
			return false, ""
		},
	}
}

// PollStatusAction is Scenario C's single no-op action: it never changes
// any observable state, so the scheduler's loop-threshold detection (spec.md
// §4.5) should stop re-scheduling it from the same fingerprint after a few
// attempts.
func PollStatusAction() action.Action {
	return action.Action{
		Name: "poll_status",
		Execute: func(ctx context.Context, w *world.World) (*respview.ResponseView, error) {
			return w.API().Do(ctx, "GET", "/status", nil, nil)
		},
	}
}

// PollActionTable is Scenario C's action table.
func PollActionTable() (*action.Table, error) {
	return action.NewTable([]action.Action{PollStatusAction()})
}
