package client

import (
	"context"

	"github.com/google/uuid"

	"github.com/cbgift/api/internal/projection"
	"github.com/cbgift/api/internal/status"
)

// Board binds a projection.View to the API for the designer task board. A
// status change is applied to the view immediately and the authoritative
// state is re-fetched once the server answers, so the UI never waits on the
// network to render and never drifts from the backend for longer than one
// round trip.
//
// Board inherits View's threading model: all calls happen on one logical
// thread. The Client underneath still serializes submits per detail, so a
// second Board (or a raw Client) sharing it cannot double-submit.
type Board struct {
	client *Client
	view   *projection.View
}

// NewBoard creates a Board over c with an empty view. Call Refresh before
// rendering.
func NewBoard(c *Client, pageSize int) *Board {
	return &Board{
		client: c,
		view:   projection.NewView(nil, pageSize),
	}
}

// View exposes the projection for filtering, pagination and rendering.
func (b *Board) View() *projection.View {
	return b.view
}

// Refresh replaces the view's backing set with a fresh fetch.
func (b *Board) Refresh(ctx context.Context) error {
	details, err := b.client.Tasks(ctx)
	if err != nil {
		return err
	}
	b.view.Reconcile(details)
	return nil
}

// ChangeStatus moves one detail to target. The view is patched before the
// request is sent; whatever the outcome, a re-fetch reconciles the view so
// a rejected change rolls back and an accepted one picks up server-computed
// fields. When the submit is rejected and the re-fetch fails too, the patch
// is undone locally so the view never keeps a status the server refused. A
// submit already in flight for the detail returns ErrSubmitInFlight without
// patching or sending anything.
func (b *Board) ChangeStatus(ctx context.Context, detailID uuid.UUID, target status.Code) error {
	if err := b.client.beginSubmit(detailID); err != nil {
		return err
	}

	prev, hadPrev := b.view.Get(detailID)
	b.view.Patch(detailID, target)
	_, submitErr := b.client.submitTaskStatus(ctx, detailID, target)
	b.client.endSubmit(detailID)

	details, fetchErr := b.client.Tasks(ctx)
	switch {
	case fetchErr == nil:
		b.view.Reconcile(details)
	case submitErr != nil && hadPrev:
		b.view.Patch(detailID, prev.ProductionStatus)
	}
	if submitErr != nil {
		return submitErr
	}
	return fetchErr
}
