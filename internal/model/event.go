package model

import (
	"encoding/json"
	"time"
)

// Event is a provider event as received by the webhook or returned by the
// provider's event listing. It is never mutated after construction.
type Event struct {
	ID      string    `json:"id"`
	Type    string    `json:"type"`
	Created int64     `json:"created"`
	Data    EventData `json:"data"`
}

type EventData struct {
	Object             json.RawMessage `json:"object"`
	PreviousAttributes json.RawMessage `json:"previous_attributes,omitempty"`
}

func (e Event) CreatedAt() time.Time { return time.Unix(e.Created, 0).UTC() }

// EventKind is the closed set of provider event types this service routes.
type EventKind string

const (
	KindUnhandled              EventKind = ""
	KindCustomerCreated        EventKind = "customer.created"
	KindCustomerUpdated        EventKind = "customer.updated"
	KindCustomerDeleted        EventKind = "customer.deleted"
	KindCustomerSourceExpiring EventKind = "customer.source.expiring"
	KindSubscriptionCreated    EventKind = "customer.subscription.created"
	KindSubscriptionUpdated    EventKind = "customer.subscription.updated"
	KindSubscriptionDeleted    EventKind = "customer.subscription.deleted"
	KindInvoiceFinalized       EventKind = "invoice.finalized"
	KindInvoicePaymentFailed   EventKind = "invoice.payment_failed"
	KindPaymentIntentSucceeded EventKind = "payment_intent.succeeded"
	KindChargeSucceeded        EventKind = "charge.succeeded"
)

// KnownKinds lists every handled kind in a stable order. The reconciliation
// sweep uses it as the provider-side type filter.
var KnownKinds = []EventKind{
	KindCustomerCreated,
	KindCustomerUpdated,
	KindCustomerDeleted,
	KindCustomerSourceExpiring,
	KindSubscriptionCreated,
	KindSubscriptionUpdated,
	KindSubscriptionDeleted,
	KindInvoiceFinalized,
	KindInvoicePaymentFailed,
	KindPaymentIntentSucceeded,
	KindChargeSucceeded,
}

func (k EventKind) String() string {
	if k == KindUnhandled {
		return "unhandled"
	}
	return string(k)
}

// KnownTypes returns KnownKinds as provider type strings.
func KnownTypes() []string {
	out := make([]string, 0, len(KnownKinds))
	for _, k := range KnownKinds {
		out = append(out, string(k))
	}
	return out
}

// EventQuery selects one page of provider events.
type EventQuery struct {
	Types         []string
	CreatedAfter  int64 // exclusive, unix seconds
	StartingAfter string
	Limit         int
}

type EventPage struct {
	Events  []Event
	HasMore bool
}
