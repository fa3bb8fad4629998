package payments

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jmehdipour/subhub/internal/model"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"go.uber.org/zap"
)

// StripeClient implements Client on top of stripe-go with retries.
type StripeClient struct {
	api    *client.API
	policy RetryPolicy
	log    *zap.Logger
}

var _ Client = (*StripeClient)(nil)

func NewStripeClient(apiKey string, timeout time.Duration, policy RetryPolicy, log *zap.Logger) *StripeClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	backends := stripe.NewBackends(&http.Client{Timeout: timeout})
	return &StripeClient{
		api:    client.New(apiKey, backends),
		policy: policy,
		log:    log.Named("stripe"),
	}
}

func (c *StripeClient) GetCustomer(ctx context.Context, id string) (*model.Customer, error) {
	cu, err := retry(ctx, c.policy, c.log, "customer.get", func() (*stripe.Customer, error) {
		return c.api.Customers.Get(id, &stripe.CustomerParams{Params: stripe.Params{Context: ctx}})
	})
	if err != nil {
		return nil, fmt.Errorf("get customer %s: %w", id, err)
	}
	return &model.Customer{
		ID:       cu.ID,
		Email:    cu.Email,
		Name:     cu.Name,
		Deleted:  cu.Deleted,
		Metadata: cu.Metadata,
	}, nil
}

func (c *StripeClient) GetInvoice(ctx context.Context, id string) (*model.Invoice, error) {
	inv, err := retry(ctx, c.policy, c.log, "invoice.get", func() (*stripe.Invoice, error) {
		params := &stripe.InvoiceParams{Params: stripe.Params{Context: ctx}}
		params.AddExpand("payments")
		return c.api.Invoices.Get(id, params)
	})
	if err != nil {
		return nil, fmt.Errorf("get invoice %s: %w", id, err)
	}
	return &model.Invoice{
		ID:          inv.ID,
		Number:      inv.Number,
		Status:      string(inv.Status),
		Currency:    string(inv.Currency),
		AmountDue:   inv.AmountDue,
		AmountPaid:  inv.AmountPaid,
		Created:     inv.Created,
		PeriodStart: inv.PeriodStart,
		PeriodEnd:   inv.PeriodEnd,
		ChargeID:    invoiceChargeID(inv),
	}, nil
}

// invoiceChargeID picks the charge behind the invoice's first payment.
func invoiceChargeID(inv *stripe.Invoice) string {
	if inv.Payments == nil {
		return ""
	}
	for _, p := range inv.Payments.Data {
		if p == nil || p.Payment == nil {
			continue
		}
		if p.Payment.Charge != nil && p.Payment.Charge.ID != "" {
			return p.Payment.Charge.ID
		}
		if pi := p.Payment.PaymentIntent; pi != nil && pi.LatestCharge != nil {
			return pi.LatestCharge.ID
		}
	}
	return ""
}

func (c *StripeClient) GetCharge(ctx context.Context, id string) (*model.Charge, error) {
	ch, err := retry(ctx, c.policy, c.log, "charge.get", func() (*stripe.Charge, error) {
		return c.api.Charges.Get(id, &stripe.ChargeParams{Params: stripe.Params{Context: ctx}})
	})
	if err != nil {
		return nil, fmt.Errorf("get charge %s: %w", id, err)
	}
	out := &model.Charge{ID: ch.ID, Amount: ch.Amount, Currency: string(ch.Currency)}
	if pmd := ch.PaymentMethodDetails; pmd != nil && pmd.Card != nil {
		out.Brand = string(pmd.Card.Brand)
		out.Last4 = pmd.Card.Last4
	}
	return out, nil
}

func (c *StripeClient) GetProduct(ctx context.Context, id string) (*model.Product, error) {
	p, err := retry(ctx, c.policy, c.log, "product.get", func() (*stripe.Product, error) {
		return c.api.Products.Get(id, &stripe.ProductParams{Params: stripe.Params{Context: ctx}})
	})
	if err != nil {
		return nil, fmt.Errorf("get product %s: %w", id, err)
	}
	return &model.Product{ID: p.ID, Name: p.Name}, nil
}

// ListEvents fetches exactly one page of events.
func (c *StripeClient) ListEvents(ctx context.Context, q model.EventQuery) (model.EventPage, error) {
	page, err := retry(ctx, c.policy, c.log, "event.list", func() (model.EventPage, error) {
		params := &stripe.EventListParams{
			Types:        stripe.StringSlice(q.Types),
			CreatedRange: &stripe.RangeQueryParams{GreaterThan: q.CreatedAfter},
		}
		params.Context = ctx
		params.Single = true
		if q.Limit > 0 {
			params.Limit = stripe.Int64(int64(q.Limit))
		}
		if q.StartingAfter != "" {
			params.StartingAfter = stripe.String(q.StartingAfter)
		}

		it := c.api.Events.List(params)
		var out model.EventPage
		for it.Next() {
			ev, err := FromStripe(it.Event())
			if err != nil {
				c.log.Warn("skipping malformed event", zap.Error(err))
				continue
			}
			out.Events = append(out.Events, ev)
		}
		if err := it.Err(); err != nil {
			return model.EventPage{}, err
		}
		if meta := it.Meta(); meta != nil {
			out.HasMore = meta.HasMore
		}
		return out, nil
	})
	if err != nil {
		return model.EventPage{}, fmt.Errorf("list events: %w", err)
	}
	return page, nil
}
