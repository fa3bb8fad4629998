package projector

import (
	"context"

	"github.com/jmehdipour/subhub/internal/model"
)

func (p *Projector) invoiceFinalized(_ context.Context, ev model.Event) (Projection, error) {
	const kind = model.KindInvoiceFinalized
	inv, err := decodeObject[model.InvoiceObject](kind, ev)
	if err != nil {
		return nil, err
	}
	if err := required(kind, ev, "id", inv.ID, "customer", inv.Customer); err != nil {
		return nil, err
	}
	return Projection{model.DestinationMarketing: invoicePayload(ev, inv)}, nil
}

func (p *Projector) invoicePaymentFailed(_ context.Context, ev model.Event) (Projection, error) {
	const kind = model.KindInvoicePaymentFailed
	inv, err := decodeObject[model.InvoiceObject](kind, ev)
	if err != nil {
		return nil, err
	}
	if err := required(kind, ev, "id", inv.ID, "customer", inv.Customer); err != nil {
		return nil, err
	}

	out := invoicePayload(ev, inv)
	out.ChargeID = inv.Charge
	out.AttemptCount = inv.AttemptCount
	out.NextPaymentAttempt = inv.NextPaymentAttempt
	return Projection{model.DestinationMarketing: out}, nil
}

func invoicePayload(ev model.Event, inv model.InvoiceObject) model.InvoicePayload {
	return model.InvoicePayload{
		MarketingHeader: header(ev),
		CustomerID:      inv.Customer,
		SubscriptionID:  inv.SubscriptionID(),
		InvoiceID:       inv.ID,
		InvoiceNumber:   inv.Number,
		PlanName:        inv.PlanNickname(),
		Status:          inv.Status,
		AmountDue:       inv.AmountDue,
		Currency:        inv.Currency,
		PeriodStart:     inv.PeriodStart,
		PeriodEnd:       inv.PeriodEnd,
	}
}

func (p *Projector) paymentIntentSucceeded(ctx context.Context, ev model.Event) (Projection, error) {
	const kind = model.KindPaymentIntentSucceeded
	pi, err := decodeObject[model.PaymentIntentObject](kind, ev)
	if err != nil {
		return nil, err
	}
	if err := required(kind, ev, "id", pi.ID, "customer", pi.Customer); err != nil {
		return nil, err
	}

	out := model.PaymentPayload{
		MarketingHeader: header(ev),
		CustomerID:      pi.Customer,
		PaymentIntentID: pi.ID,
		ChargeID:        pi.LatestCharge,
		InvoiceID:       pi.Invoice,
		Amount:          pi.Amount,
		Currency:        pi.Currency,
	}
	if pi.LatestCharge != "" {
		ch, err := p.billing.GetCharge(ctx, pi.LatestCharge)
		if err != nil {
			return nil, err
		}
		out.Brand, out.Last4 = ch.Brand, ch.Last4
	}
	if pi.Invoice != "" {
		inv, err := p.billing.GetInvoice(ctx, pi.Invoice)
		if err != nil {
			return nil, err
		}
		out.InvoiceNumber = inv.Number
	}
	return Projection{model.DestinationMarketing: out}, nil
}

func (p *Projector) chargeSucceeded(_ context.Context, ev model.Event) (Projection, error) {
	const kind = model.KindChargeSucceeded
	ch, err := decodeObject[model.ChargeObject](kind, ev)
	if err != nil {
		return nil, err
	}
	if err := required(kind, ev, "id", ch.ID, "customer", ch.Customer); err != nil {
		return nil, err
	}

	out := model.PaymentPayload{
		MarketingHeader: header(ev),
		CustomerID:      ch.Customer,
		ChargeID:        ch.ID,
		InvoiceID:       ch.Invoice,
		Amount:          ch.Amount,
		Currency:        ch.Currency,
		Description:     ch.Description,
	}
	if d := ch.PaymentMethodDetails; d != nil && d.Card != nil {
		out.Brand, out.Last4 = d.Card.Brand, d.Card.Last4
	}
	return Projection{model.DestinationMarketing: out}, nil
}
