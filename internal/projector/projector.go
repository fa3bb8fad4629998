// Package projector turns provider events into destination-shaped payloads.
package projector

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmehdipour/subhub/internal/model"
	"github.com/jmehdipour/subhub/internal/payments"
	"go.uber.org/zap"
)

// Projection holds one JSON-serializable payload per destination.
type Projection map[model.Destination]any

// Accounts is the deleted-account lookup used by customer.deleted.
type Accounts interface {
	GetDeleted(ctx context.Context, userID, customerID string) (*model.DeletedAccount, error)
}

type projectFunc func(p *Projector, ctx context.Context, ev model.Event) (Projection, error)

var projections = map[model.EventKind]projectFunc{
	model.KindCustomerCreated:        (*Projector).customerCreated,
	model.KindCustomerUpdated:        (*Projector).customerUpdated,
	model.KindCustomerDeleted:        (*Projector).customerDeleted,
	model.KindCustomerSourceExpiring: (*Projector).sourceExpiring,
	model.KindSubscriptionCreated:    (*Projector).subscriptionCreated,
	model.KindSubscriptionUpdated:    (*Projector).subscriptionUpdated,
	model.KindSubscriptionDeleted:    (*Projector).subscriptionDeleted,
	model.KindInvoiceFinalized:       (*Projector).invoiceFinalized,
	model.KindInvoicePaymentFailed:   (*Projector).invoicePaymentFailed,
	model.KindPaymentIntentSucceeded: (*Projector).paymentIntentSucceeded,
	model.KindChargeSucceeded:        (*Projector).chargeSucceeded,
}

type Projector struct {
	billing  payments.Client
	accounts Accounts
	log      *zap.Logger
	now      func() time.Time
}

func New(billing payments.Client, accounts Accounts, log *zap.Logger) *Projector {
	if log == nil {
		log = zap.NewNop()
	}
	return &Projector{billing: billing, accounts: accounts, log: log, now: time.Now}
}

// Project builds the payloads for ev. Any lookup failure aborts the whole
// projection; an empty projection is a valid outcome.
func (p *Projector) Project(ctx context.Context, kind model.EventKind, ev model.Event) (Projection, error) {
	fn, ok := projections[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnhandled, ev.Type)
	}
	out, err := fn(p, ctx, ev)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = Projection{}
	}
	return out, nil
}

func decodeObject[T any](kind model.EventKind, ev model.Event) (T, error) {
	var obj T
	if len(ev.Data.Object) == 0 || string(ev.Data.Object) == "null" {
		return obj, &MissingFieldError{Kind: kind, EventID: ev.ID, Field: "data.object"}
	}
	if err := json.Unmarshal(ev.Data.Object, &obj); err != nil {
		return obj, fmt.Errorf("decode %s object for %s: %w", kind, ev.ID, err)
	}
	return obj, nil
}

// required checks fields in name/value pairs.
func required(kind model.EventKind, ev model.Event, pairs ...string) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		if pairs[i+1] == "" {
			return &MissingFieldError{Kind: kind, EventID: ev.ID, Field: pairs[i]}
		}
	}
	return nil
}

// previousBool reads a boolean from previous_attributes.
func previousBool(ev model.Event, field string) (val, present bool, err error) {
	if len(ev.Data.PreviousAttributes) == 0 {
		return false, false, nil
	}
	var prev map[string]json.RawMessage
	if err := json.Unmarshal(ev.Data.PreviousAttributes, &prev); err != nil {
		return false, false, fmt.Errorf("decode previous_attributes for %s: %w", ev.ID, err)
	}
	raw, ok := prev[field]
	if !ok || string(raw) == "null" {
		return false, false, nil
	}
	if err := json.Unmarshal(raw, &val); err != nil {
		return false, false, fmt.Errorf("decode previous %s for %s: %w", field, ev.ID, err)
	}
	return val, true, nil
}

func previousString(ev model.Event, field string) string {
	if len(ev.Data.PreviousAttributes) == 0 {
		return ""
	}
	var prev map[string]any
	if err := json.Unmarshal(ev.Data.PreviousAttributes, &prev); err != nil {
		return ""
	}
	s, _ := prev[field].(string)
	return s
}

func header(ev model.Event) model.MarketingHeader {
	return model.MarketingHeader{EventID: ev.ID, EventType: ev.Type, Created: ev.Created}
}

func (p *Projector) identity(ev model.Event, uid string, active bool) model.IdentityPayload {
	return model.IdentityPayload{
		UID:              uid,
		Active:           active,
		EventType:        ev.Type,
		EventID:          ev.ID,
		EventCreatedAt:   ev.Created,
		MessageCreatedAt: p.now().Unix(),
	}
}

// liveCustomer fetches the customer and returns it when it is active and
// linked to a user. A deleted customer yields (nil, nil); an active one
// without a user id is a ClientError.
func (p *Projector) liveCustomer(ctx context.Context, kind model.EventKind, ev model.Event, customerID string) (*model.Customer, error) {
	cu, err := p.billing.GetCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if cu.Deleted {
		p.log.Info("customer deleted, nothing to route",
			zap.String("event_id", ev.ID),
			zap.String("customer_id", customerID),
		)
		return nil, nil
	}
	if cu.UserID() == "" {
		return nil, &ClientError{Kind: kind, EventID: ev.ID, Reason: fmt.Sprintf("customer %s has no user id", customerID)}
	}
	return cu, nil
}

func (p *Projector) productName(ctx context.Context, productID string) (string, error) {
	if productID == "" {
		return "", nil
	}
	prod, err := p.billing.GetProduct(ctx, productID)
	if err != nil {
		return "", err
	}
	return prod.Name, nil
}
