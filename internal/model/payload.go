package model

// IdentityPayload is consumed by the identity service; field names are
// camelCase as that consumer requires.
type IdentityPayload struct {
	UID              string   `json:"uid"`
	Active           bool     `json:"active"`
	SubscriptionID   string   `json:"subscriptionId,omitempty"`
	SubscriptionIDs  []string `json:"subscriptionIds,omitempty"`
	ProductID        string   `json:"productId,omitempty"`
	ProductName      string   `json:"productName,omitempty"`
	EventType        string   `json:"eventType"`
	EventID          string   `json:"eventId"`
	EventCreatedAt   int64    `json:"eventCreatedAt"`
	MessageCreatedAt int64    `json:"messageCreatedAt"`
}

// Marketing payloads use snake_case.

type MarketingHeader struct {
	EventID   string `json:"event_id"`
	EventType string `json:"event_type"`
	Created   int64  `json:"created"`
}

type CustomerProfilePayload struct {
	MarketingHeader
	CustomerID    string `json:"customer_id"`
	UserID        string `json:"user_id"`
	Email         string `json:"email"`
	Name          string `json:"name,omitempty"`
	PreviousEmail string `json:"previous_email,omitempty"`
}

type CustomerDeletedPayload struct {
	MarketingHeader
	CustomerID      string   `json:"customer_id"`
	UserID          string   `json:"user_id"`
	OriginSystem    string   `json:"origin_system,omitempty"`
	SubscriptionIDs []string `json:"subscription_ids"`
}

type SourceExpiringPayload struct {
	MarketingHeader
	CustomerID string `json:"customer_id"`
	UserID     string `json:"user_id,omitempty"`
	Email      string `json:"email"`
	Brand      string `json:"brand"`
	Last4      string `json:"last4"`
	ExpMonth   int64  `json:"exp_month"`
	ExpYear    int64  `json:"exp_year"`
}

type SubscriptionCreatedPayload struct {
	MarketingHeader
	CustomerID         string `json:"customer_id"`
	UserID             string `json:"user_id"`
	Email              string `json:"email"`
	SubscriptionID     string `json:"subscription_id"`
	PlanID             string `json:"plan_id"`
	PlanName           string `json:"plan_name"`
	ProductID          string `json:"product_id"`
	ProductName        string `json:"product_name"`
	PlanAmount         int64  `json:"plan_amount"`
	Currency           string `json:"currency"`
	Interval           string `json:"interval"`
	Status             string `json:"status"`
	CurrentPeriodStart int64  `json:"current_period_start"`
	CurrentPeriodEnd   int64  `json:"current_period_end"`
	InvoiceID          string `json:"invoice_id,omitempty"`
}

type SubscriptionCancelledPayload struct {
	MarketingHeader
	CustomerID       string `json:"customer_id"`
	SubscriptionID   string `json:"subscription_id"`
	PlanName         string `json:"plan_name"`
	ProductID        string `json:"product_id"`
	CancelAt         int64  `json:"cancel_at"`
	CanceledAt       int64  `json:"canceled_at"`
	CurrentPeriodEnd int64  `json:"current_period_end"`
}

type RecurringChargePayload struct {
	MarketingHeader
	CustomerID         string `json:"customer_id"`
	SubscriptionID     string `json:"subscription_id"`
	PlanName           string `json:"plan_name"`
	ProductID          string `json:"product_id"`
	ProductName        string `json:"product_name"`
	InvoiceID          string `json:"invoice_id"`
	InvoiceNumber      string `json:"invoice_number"`
	ChargeID           string `json:"charge_id,omitempty"`
	AmountPaid         int64  `json:"amount_paid"`
	Currency           string `json:"currency"`
	Brand              string `json:"brand,omitempty"`
	Last4              string `json:"last4,omitempty"`
	CurrentPeriodStart int64  `json:"current_period_start"`
	CurrentPeriodEnd   int64  `json:"current_period_end"`
}

type SubscriptionReactivatedPayload struct {
	MarketingHeader
	CustomerID       string `json:"customer_id"`
	SubscriptionID   string `json:"subscription_id"`
	PlanName         string `json:"plan_name"`
	PlanAmount       int64  `json:"plan_amount"`
	ProductID        string `json:"product_id"`
	ProductName      string `json:"product_name"`
	CurrentPeriodEnd int64  `json:"current_period_end"`
}

type InvoicePayload struct {
	MarketingHeader
	CustomerID         string `json:"customer_id"`
	SubscriptionID     string `json:"subscription_id,omitempty"`
	InvoiceID          string `json:"invoice_id"`
	InvoiceNumber      string `json:"invoice_number,omitempty"`
	PlanName           string `json:"plan_name,omitempty"`
	Status             string `json:"status"`
	AmountDue          int64  `json:"amount_due"`
	Currency           string `json:"currency"`
	ChargeID           string `json:"charge_id,omitempty"`
	AttemptCount       int64  `json:"attempt_count,omitempty"`
	PeriodStart        int64  `json:"period_start"`
	PeriodEnd          int64  `json:"period_end"`
	NextPaymentAttempt int64  `json:"next_payment_attempt,omitempty"`
}

type PaymentPayload struct {
	MarketingHeader
	CustomerID      string `json:"customer_id"`
	PaymentIntentID string `json:"payment_intent_id,omitempty"`
	ChargeID        string `json:"charge_id,omitempty"`
	InvoiceID       string `json:"invoice_id,omitempty"`
	InvoiceNumber   string `json:"invoice_number,omitempty"`
	Amount          int64  `json:"amount"`
	Currency        string `json:"currency"`
	Brand           string `json:"brand,omitempty"`
	Last4           string `json:"last4,omitempty"`
	Description     string `json:"description,omitempty"`
}
