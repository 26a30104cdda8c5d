package entities

import "time"

type Plan struct {
	ID                  int64     `json:"id"`
	Name                string    `json:"name"`
	StripePriceID       string    `json:"stripe_price_id"`
	StripePaymentLinkID string    `json:"stripe_payment_link_id,omitempty"`
	PriceMonthly        int64     `json:"price_monthly"` // cents
	PriceYearly         int64     `json:"price_yearly"`  // cents
	DailyLimit          int       `json:"daily_limit"`
	MonthlyLimit        int       `json:"monthly_limit"`
	Features            []string  `json:"features"`
	IsActive            bool      `json:"is_active"`
	CreatedAt           time.Time `json:"created_at"`
}

type BillingCustomer struct {
	UserID     int    `json:"user_id"`
	CustomerID string `json:"customer_id"`
	Email      string `json:"email"`
}

type Subscription struct {
	UserID             int        `json:"user_id"`
	CustomerID         string     `json:"customer_id"`
	SubscriptionID     string     `json:"subscription_id"`
	PriceID            string     `json:"price_id"`
	PlanID             *int64     `json:"plan_id"`
	Status             string     `json:"status"`
	CancelAtPeriodEnd  bool       `json:"cancel_at_period_end"`
	CurrentPeriodStart *time.Time `json:"current_period_start"`
	CurrentPeriodEnd   *time.Time `json:"current_period_end"`
	CanceledAt         *time.Time `json:"canceled_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// Entitled reports whether the subscription grants the plan's limits.
func (s Subscription) Entitled() bool {
	return s.Status == "active" || s.Status == "trialing"
}

type Invoice struct {
	InvoiceID      string     `json:"invoice_id"`
	UserID         *int       `json:"user_id"`
	CustomerID     string     `json:"customer_id"`
	SubscriptionID string     `json:"subscription_id"`
	Status         string     `json:"status"`
	AmountDue      int64      `json:"amount_due"`
	AmountPaid     int64      `json:"amount_paid"`
	Currency       string     `json:"currency"`
	HostedURL      string     `json:"hosted_invoice_url"`
	PDFURL         string     `json:"invoice_pdf"`
	PeriodStart    *time.Time `json:"period_start"`
	PeriodEnd      *time.Time `json:"period_end"`
}
