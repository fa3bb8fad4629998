package model

// Views of provider objects returned by secondary lookups.

type Customer struct {
	ID       string
	Email    string
	Name     string
	Deleted  bool
	Metadata map[string]string
}

// UserID returns the identity-system user id linked to the customer.
func (c Customer) UserID() string {
	if c.Metadata == nil {
		return ""
	}
	return c.Metadata["userid"]
}

type Invoice struct {
	ID          string
	Number      string
	Status      string
	Currency    string
	AmountDue   int64
	AmountPaid  int64
	Created     int64
	PeriodStart int64
	PeriodEnd   int64
	ChargeID    string
}

type Charge struct {
	ID       string
	Amount   int64
	Currency string
	Brand    string
	Last4    string
}

type Product struct {
	ID   string
	Name string
}

// Shapes of data.object decoded from event payloads.

type Plan struct {
	ID       string `json:"id"`
	Nickname string `json:"nickname"`
	Product  string `json:"product"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Interval string `json:"interval"`
}

type SubscriptionItem struct {
	Plan  *Plan `json:"plan"`
	Price *struct {
		ID         string `json:"id"`
		Nickname   string `json:"nickname"`
		Product    string `json:"product"`
		UnitAmount int64  `json:"unit_amount"`
		Currency   string `json:"currency"`
		Recurring  *struct {
			Interval string `json:"interval"`
		} `json:"recurring"`
	} `json:"price"`
	CurrentPeriodStart int64 `json:"current_period_start"`
	CurrentPeriodEnd   int64 `json:"current_period_end"`
}

type SubscriptionObject struct {
	ID                 string            `json:"id"`
	Customer           string            `json:"customer"`
	Status             string            `json:"status"`
	CancelAtPeriodEnd  bool              `json:"cancel_at_period_end"`
	CancelAt           int64             `json:"cancel_at"`
	CanceledAt         int64             `json:"canceled_at"`
	EndedAt            int64             `json:"ended_at"`
	Created            int64             `json:"created"`
	CurrentPeriodStart int64             `json:"current_period_start"`
	CurrentPeriodEnd   int64             `json:"current_period_end"`
	LatestInvoice      string            `json:"latest_invoice"`
	Plan               *Plan             `json:"plan"`
	Metadata           map[string]string `json:"metadata"`
	Items              struct {
		Data []SubscriptionItem `json:"data"`
	} `json:"items"`
}

// ActivePlan returns the subscription's plan, falling back to the first item
// for payloads that no longer carry the top-level plan.
func (s SubscriptionObject) ActivePlan() Plan {
	if s.Plan != nil {
		return *s.Plan
	}
	if len(s.Items.Data) == 0 {
		return Plan{}
	}
	it := s.Items.Data[0]
	if it.Plan != nil {
		return *it.Plan
	}
	if it.Price != nil {
		p := Plan{
			ID:       it.Price.ID,
			Nickname: it.Price.Nickname,
			Product:  it.Price.Product,
			Amount:   it.Price.UnitAmount,
			Currency: it.Price.Currency,
		}
		if it.Price.Recurring != nil {
			p.Interval = it.Price.Recurring.Interval
		}
		return p
	}
	return Plan{}
}

// Period returns the current billing period bounds.
func (s SubscriptionObject) Period() (start, end int64) {
	if s.CurrentPeriodEnd != 0 || len(s.Items.Data) == 0 {
		return s.CurrentPeriodStart, s.CurrentPeriodEnd
	}
	return s.Items.Data[0].CurrentPeriodStart, s.Items.Data[0].CurrentPeriodEnd
}

type CustomerObject struct {
	ID       string            `json:"id"`
	Email    string            `json:"email"`
	Name     string            `json:"name"`
	Deleted  bool              `json:"deleted"`
	Created  int64             `json:"created"`
	Metadata map[string]string `json:"metadata"`
}

type SourceObject struct {
	ID       string `json:"id"`
	Object   string `json:"object"`
	Customer string `json:"customer"`
	Brand    string `json:"brand"`
	Last4    string `json:"last4"`
	ExpMonth int64  `json:"exp_month"`
	ExpYear  int64  `json:"exp_year"`
}

type InvoiceObject struct {
	ID                 string `json:"id"`
	Customer           string `json:"customer"`
	Subscription       string `json:"subscription"`
	Number             string `json:"number"`
	Status             string `json:"status"`
	Currency           string `json:"currency"`
	AmountDue          int64  `json:"amount_due"`
	AmountPaid         int64  `json:"amount_paid"`
	AttemptCount       int64  `json:"attempt_count"`
	Charge             string `json:"charge"`
	Created            int64  `json:"created"`
	PeriodStart        int64  `json:"period_start"`
	PeriodEnd          int64  `json:"period_end"`
	NextPaymentAttempt int64  `json:"next_payment_attempt"`
	Parent             *struct {
		SubscriptionDetails *struct {
			Subscription string `json:"subscription"`
		} `json:"subscription_details"`
	} `json:"parent"`
	Lines struct {
		Data []struct {
			Plan *Plan `json:"plan"`
		} `json:"data"`
	} `json:"lines"`
}

// SubscriptionID resolves the invoice's subscription across payload versions.
func (i InvoiceObject) SubscriptionID() string {
	if i.Subscription != "" {
		return i.Subscription
	}
	if i.Parent != nil && i.Parent.SubscriptionDetails != nil {
		return i.Parent.SubscriptionDetails.Subscription
	}
	return ""
}

func (i InvoiceObject) PlanNickname() string {
	for _, l := range i.Lines.Data {
		if l.Plan != nil && l.Plan.Nickname != "" {
			return l.Plan.Nickname
		}
	}
	return ""
}

type PaymentIntentObject struct {
	ID           string `json:"id"`
	Customer     string `json:"customer"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
	Status       string `json:"status"`
	Invoice      string `json:"invoice"`
	LatestCharge string `json:"latest_charge"`
	Created      int64  `json:"created"`
}

type ChargeObject struct {
	ID                   string `json:"id"`
	Customer             string `json:"customer"`
	Amount               int64  `json:"amount"`
	Currency             string `json:"currency"`
	Invoice              string `json:"invoice"`
	Description          string `json:"description"`
	Created              int64  `json:"created"`
	PaymentMethodDetails *struct {
		Card *struct {
			Brand string `json:"brand"`
			Last4 string `json:"last4"`
		} `json:"card"`
	} `json:"payment_method_details"`
}
