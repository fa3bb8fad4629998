package routing

import "github.com/jmehdipour/subhub/internal/model"

// Table maps an event kind to the ordered destinations that receive it.
type Table map[model.EventKind][]model.Destination

var (
	marketingOnly = []model.Destination{model.DestinationMarketing}
	identityOnly  = []model.Destination{model.DestinationIdentityQueue}
)

// DefaultTable is the production routing. Recurring-charge projections of
// customer.subscription.updated go to marketing only.
func DefaultTable() Table {
	return Table{
		model.KindCustomerCreated:        marketingOnly,
		model.KindCustomerUpdated:        marketingOnly,
		model.KindCustomerDeleted:        {model.DestinationIdentityQueue, model.DestinationMarketing},
		model.KindCustomerSourceExpiring: marketingOnly,
		model.KindSubscriptionCreated:    {model.DestinationMarketing, model.DestinationIdentityQueue},
		model.KindSubscriptionUpdated:    marketingOnly,
		model.KindSubscriptionDeleted:    identityOnly,
		model.KindInvoiceFinalized:       marketingOnly,
		model.KindInvoicePaymentFailed:   marketingOnly,
		model.KindPaymentIntentSucceeded: marketingOnly,
		model.KindChargeSucceeded:        marketingOnly,
	}
}

// DestinationsFor returns a copy of the destinations for kind; unknown kinds
// yield an empty list.
func (t Table) DestinationsFor(kind model.EventKind) []model.Destination {
	ds := t[kind]
	out := make([]model.Destination, len(ds))
	copy(out, ds)
	return out
}
