package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmehdipour/subhub/internal/model"
	"github.com/stripe/stripe-go/v82"
)

// Client is the subset of the payment provider used by projections and the
// reconciliation sweep. All calls are idempotent reads.
type Client interface {
	GetCustomer(ctx context.Context, id string) (*model.Customer, error)
	GetInvoice(ctx context.Context, id string) (*model.Invoice, error)
	GetCharge(ctx context.Context, id string) (*model.Charge, error)
	GetProduct(ctx context.Context, id string) (*model.Product, error)
	ListEvents(ctx context.Context, q model.EventQuery) (model.EventPage, error)
}

// FromStripe converts an SDK event into the service's event model.
func FromStripe(ev *stripe.Event) (model.Event, error) {
	if ev == nil {
		return model.Event{}, errors.New("stripe event is nil")
	}
	out := model.Event{ID: ev.ID, Type: string(ev.Type), Created: ev.Created}
	if ev.Data == nil || len(ev.Data.Raw) == 0 {
		return out, fmt.Errorf("event %s has no data.object", ev.ID)
	}
	out.Data.Object = append(json.RawMessage(nil), ev.Data.Raw...)

	if len(ev.Data.PreviousAttributes) > 0 {
		prev, err := json.Marshal(ev.Data.PreviousAttributes)
		if err != nil {
			return out, fmt.Errorf("encode previous_attributes: %w", err)
		}
		out.Data.PreviousAttributes = prev
	}
	return out, nil
}
