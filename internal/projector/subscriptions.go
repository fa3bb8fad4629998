package projector

import (
	"context"

	"github.com/jmehdipour/subhub/internal/model"
	"go.uber.org/zap"
)

// Event types carried by the derived subscription-updated payloads.
const (
	TypeSubscriptionCancelled   = "customer.subscription.cancel_scheduled"
	TypeRecurringCharge         = "customer.subscription.recurring_charge"
	TypeSubscriptionReactivated = "customer.subscription.reactivated"
)

func (p *Projector) subscriptionCreated(ctx context.Context, ev model.Event) (Projection, error) {
	const kind = model.KindSubscriptionCreated
	sub, err := decodeObject[model.SubscriptionObject](kind, ev)
	if err != nil {
		return nil, err
	}
	if err := required(kind, ev, "id", sub.ID, "customer", sub.Customer); err != nil {
		return nil, err
	}

	cu, err := p.liveCustomer(ctx, kind, ev, sub.Customer)
	if err != nil || cu == nil {
		return nil, err
	}
	plan := sub.ActivePlan()
	product, err := p.productName(ctx, plan.Product)
	if err != nil {
		return nil, err
	}
	start, end := sub.Period()

	id := p.identity(ev, cu.UserID(), true)
	id.SubscriptionID = sub.ID
	id.ProductID = plan.Product
	id.ProductName = product

	return Projection{
		model.DestinationMarketing: model.SubscriptionCreatedPayload{
			MarketingHeader:    header(ev),
			CustomerID:         sub.Customer,
			UserID:             cu.UserID(),
			Email:              cu.Email,
			SubscriptionID:     sub.ID,
			PlanID:             plan.ID,
			PlanName:           plan.Nickname,
			ProductID:          plan.Product,
			ProductName:        product,
			PlanAmount:         plan.Amount,
			Currency:           plan.Currency,
			Interval:           plan.Interval,
			Status:             sub.Status,
			CurrentPeriodStart: start,
			CurrentPeriodEnd:   end,
			InvoiceID:          sub.LatestInvoice,
		},
		model.DestinationIdentityQueue: id,
	}, nil
}

// subscriptionUpdated compares cancel_at_period_end against its previous
// value. A previous value absent from the event counts as unchanged.
func (p *Projector) subscriptionUpdated(ctx context.Context, ev model.Event) (Projection, error) {
	const kind = model.KindSubscriptionUpdated
	sub, err := decodeObject[model.SubscriptionObject](kind, ev)
	if err != nil {
		return nil, err
	}
	if err := required(kind, ev, "id", sub.ID, "customer", sub.Customer); err != nil {
		return nil, err
	}

	cur := sub.CancelAtPeriodEnd
	prev, ok, err := previousBool(ev, "cancel_at_period_end")
	if err != nil {
		return nil, err
	}
	if !ok {
		prev = cur
	}

	switch {
	case cur && !prev:
		return p.cancellationScheduled(ev, sub)
	case !cur && !prev && sub.Status == "active":
		return p.recurringCharge(ctx, ev, sub)
	case !cur && prev:
		return p.reactivated(ctx, ev, sub)
	}
	p.log.Debug("subscription update carries nothing to route",
		zap.String("event_id", ev.ID),
		zap.String("subscription_id", sub.ID),
		zap.String("status", sub.Status),
	)
	return Projection{}, nil
}

func (p *Projector) cancellationScheduled(ev model.Event, sub model.SubscriptionObject) (Projection, error) {
	plan := sub.ActivePlan()
	_, end := sub.Period()
	h := header(ev)
	h.EventType = TypeSubscriptionCancelled

	return Projection{
		model.DestinationMarketing: model.SubscriptionCancelledPayload{
			MarketingHeader:  h,
			CustomerID:       sub.Customer,
			SubscriptionID:   sub.ID,
			PlanName:         plan.Nickname,
			ProductID:        plan.Product,
			CancelAt:         sub.CancelAt,
			CanceledAt:       sub.CanceledAt,
			CurrentPeriodEnd: end,
		},
	}, nil
}

func (p *Projector) recurringCharge(ctx context.Context, ev model.Event, sub model.SubscriptionObject) (Projection, error) {
	const kind = model.KindSubscriptionUpdated
	if err := required(kind, ev, "latest_invoice", sub.LatestInvoice); err != nil {
		return nil, err
	}

	inv, err := p.billing.GetInvoice(ctx, sub.LatestInvoice)
	if err != nil {
		return nil, err
	}
	var ch model.Charge
	if inv.ChargeID != "" {
		c, err := p.billing.GetCharge(ctx, inv.ChargeID)
		if err != nil {
			return nil, err
		}
		ch = *c
	}
	plan := sub.ActivePlan()
	product, err := p.productName(ctx, plan.Product)
	if err != nil {
		return nil, err
	}
	start, end := sub.Period()
	h := header(ev)
	h.EventType = TypeRecurringCharge

	return Projection{
		model.DestinationMarketing: model.RecurringChargePayload{
			MarketingHeader:    h,
			CustomerID:         sub.Customer,
			SubscriptionID:     sub.ID,
			PlanName:           plan.Nickname,
			ProductID:          plan.Product,
			ProductName:        product,
			InvoiceID:          inv.ID,
			InvoiceNumber:      inv.Number,
			ChargeID:           ch.ID,
			AmountPaid:         inv.AmountPaid,
			Currency:           inv.Currency,
			Brand:              ch.Brand,
			Last4:              ch.Last4,
			CurrentPeriodStart: start,
			CurrentPeriodEnd:   end,
		},
	}, nil
}

func (p *Projector) reactivated(ctx context.Context, ev model.Event, sub model.SubscriptionObject) (Projection, error) {
	plan := sub.ActivePlan()
	product, err := p.productName(ctx, plan.Product)
	if err != nil {
		return nil, err
	}
	_, end := sub.Period()
	h := header(ev)
	h.EventType = TypeSubscriptionReactivated

	return Projection{
		model.DestinationMarketing: model.SubscriptionReactivatedPayload{
			MarketingHeader:  h,
			CustomerID:       sub.Customer,
			SubscriptionID:   sub.ID,
			PlanName:         plan.Nickname,
			PlanAmount:       plan.Amount,
			ProductID:        plan.Product,
			ProductName:      product,
			CurrentPeriodEnd: end,
		},
	}, nil
}

// subscriptionDeleted uses the plan carried by the event, no product lookup.
func (p *Projector) subscriptionDeleted(ctx context.Context, ev model.Event) (Projection, error) {
	const kind = model.KindSubscriptionDeleted
	sub, err := decodeObject[model.SubscriptionObject](kind, ev)
	if err != nil {
		return nil, err
	}
	if err := required(kind, ev, "id", sub.ID, "customer", sub.Customer); err != nil {
		return nil, err
	}

	cu, err := p.liveCustomer(ctx, kind, ev, sub.Customer)
	if err != nil || cu == nil {
		return nil, err
	}
	plan := sub.ActivePlan()

	id := p.identity(ev, cu.UserID(), false)
	id.SubscriptionID = sub.ID
	id.ProductID = plan.Product
	id.ProductName = plan.Nickname

	return Projection{model.DestinationIdentityQueue: id}, nil
}
