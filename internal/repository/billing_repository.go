package repository

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"project_citabot/internal/entities"
)

// BillingRepository mirrors Stripe state: plans, customers, subscriptions,
// invoices and processed webhook events.
type BillingRepository struct {
	db *pgxpool.Pool
}

func NewBillingRepository(db *pgxpool.Pool) *BillingRepository {
	return &BillingRepository{db: db}
}

const planColumns = `id, name, stripe_price_id, stripe_payment_link_id, price_monthly, price_yearly, daily_limit, monthly_limit, features, is_active, created_at`

func scanPlan(row pgx.Row) (*entities.Plan, error) {
	var p entities.Plan
	var link *string
	var features []byte
	err := row.Scan(&p.ID, &p.Name, &p.StripePriceID, &link, &p.PriceMonthly, &p.PriceYearly,
		&p.DailyLimit, &p.MonthlyLimit, &features, &p.IsActive, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if link != nil {
		p.StripePaymentLinkID = *link
	}
	p.Features = []string{}
	if len(features) > 0 {
		_ = json.Unmarshal(features, &p.Features)
	}
	return &p, nil
}

func (r *BillingRepository) ListPlans(ctx context.Context, onlyActive bool) ([]entities.Plan, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+planColumns+` FROM billing_plans
		WHERE (NOT $1 OR is_active)
		ORDER BY price_monthly ASC, id ASC`, onlyActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	plans := []entities.Plan{}
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		plans = append(plans, *p)
	}
	return plans, rows.Err()
}

func (r *BillingRepository) GetPlan(ctx context.Context, id int64) (*entities.Plan, error) {
	return scanPlan(r.db.QueryRow(ctx, "SELECT "+planColumns+" FROM billing_plans WHERE id = $1", id))
}

func (r *BillingRepository) GetPlanByPrice(ctx context.Context, priceID string) (*entities.Plan, error) {
	return scanPlan(r.db.QueryRow(ctx, "SELECT "+planColumns+" FROM billing_plans WHERE stripe_price_id = $1", priceID))
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (r *BillingRepository) CreatePlan(ctx context.Context, p *entities.Plan) error {
	if p.Features == nil {
		p.Features = []string{}
	}
	features, err := json.Marshal(p.Features)
	if err != nil {
		return err
	}
	return r.db.QueryRow(ctx, `
		INSERT INTO billing_plans (name, stripe_price_id, stripe_payment_link_id, price_monthly, price_yearly, daily_limit, monthly_limit, features, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at`,
		p.Name, p.StripePriceID, nullable(p.StripePaymentLinkID), p.PriceMonthly, p.PriceYearly,
		p.DailyLimit, p.MonthlyLimit, features, p.IsActive,
	).Scan(&p.ID, &p.CreatedAt)
}

func (r *BillingRepository) UpdatePlan(ctx context.Context, p *entities.Plan) (bool, error) {
	if p.Features == nil {
		p.Features = []string{}
	}
	features, err := json.Marshal(p.Features)
	if err != nil {
		return false, err
	}
	tag, err := r.db.Exec(ctx, `
		UPDATE billing_plans SET name = $1, stripe_price_id = $2, stripe_payment_link_id = $3, price_monthly = $4,
			price_yearly = $5, daily_limit = $6, monthly_limit = $7, features = $8, is_active = $9
		WHERE id = $10`,
		p.Name, p.StripePriceID, nullable(p.StripePaymentLinkID), p.PriceMonthly, p.PriceYearly,
		p.DailyLimit, p.MonthlyLimit, features, p.IsActive, p.ID)
	return tag.RowsAffected() > 0, err
}

// SetPlanPaymentLinkIfEmpty records the payment link on the plan unless one
// is already stored.
func (r *BillingRepository) SetPlanPaymentLinkIfEmpty(ctx context.Context, priceID, linkID string) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE billing_plans SET stripe_payment_link_id = $1
		WHERE stripe_price_id = $2 AND (stripe_payment_link_id IS NULL OR stripe_payment_link_id = '')`,
		linkID, priceID)
	return tag.RowsAffected() > 0, err
}

func (r *BillingRepository) UpsertCustomer(ctx context.Context, c entities.BillingCustomer) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO billing_customers (user_id, customer_id, email, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			customer_id = EXCLUDED.customer_id,
			email = CASE WHEN EXCLUDED.email <> '' THEN EXCLUDED.email ELSE billing_customers.email END,
			updated_at = NOW()`,
		c.UserID, c.CustomerID, c.Email)
	return err
}

func (r *BillingRepository) GetCustomerByUser(ctx context.Context, userID int) (*entities.BillingCustomer, error) {
	var c entities.BillingCustomer
	err := r.db.QueryRow(ctx, "SELECT user_id, customer_id, email FROM billing_customers WHERE user_id = $1", userID).
		Scan(&c.UserID, &c.CustomerID, &c.Email)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetUserIDByCustomer returns 0 when the customer is unknown.
func (r *BillingRepository) GetUserIDByCustomer(ctx context.Context, customerID string) (int, error) {
	var userID int
	err := r.db.QueryRow(ctx, "SELECT user_id FROM billing_customers WHERE customer_id = $1", customerID).Scan(&userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	return userID, err
}

// UpsertSubscription keys the subscription on the customer.
func (r *BillingRepository) UpsertSubscription(ctx context.Context, s *entities.Subscription) error {
	return r.db.QueryRow(ctx, `
		INSERT INTO billing_subscriptions (customer_id, user_id, subscription_id, price_id, plan_id, status,
			cancel_at_period_end, current_period_start, current_period_end, canceled_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
		ON CONFLICT (customer_id) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			subscription_id = EXCLUDED.subscription_id,
			price_id = EXCLUDED.price_id,
			plan_id = EXCLUDED.plan_id,
			status = EXCLUDED.status,
			cancel_at_period_end = EXCLUDED.cancel_at_period_end,
			current_period_start = EXCLUDED.current_period_start,
			current_period_end = EXCLUDED.current_period_end,
			canceled_at = EXCLUDED.canceled_at,
			updated_at = NOW()
		RETURNING updated_at`,
		s.CustomerID, s.UserID, s.SubscriptionID, s.PriceID, s.PlanID, s.Status,
		s.CancelAtPeriodEnd, s.CurrentPeriodStart, s.CurrentPeriodEnd, s.CanceledAt,
	).Scan(&s.UpdatedAt)
}

func (r *BillingRepository) GetSubscriptionByUser(ctx context.Context, userID int) (*entities.Subscription, error) {
	var s entities.Subscription
	err := r.db.QueryRow(ctx, `
		SELECT user_id, customer_id, subscription_id, price_id, plan_id, status, cancel_at_period_end,
			current_period_start, current_period_end, canceled_at, updated_at
		FROM billing_subscriptions WHERE user_id = $1
		ORDER BY updated_at DESC LIMIT 1`, userID,
	).Scan(&s.UserID, &s.CustomerID, &s.SubscriptionID, &s.PriceID, &s.PlanID, &s.Status, &s.CancelAtPeriodEnd,
		&s.CurrentPeriodStart, &s.CurrentPeriodEnd, &s.CanceledAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *BillingRepository) UpsertInvoice(ctx context.Context, inv entities.Invoice) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO billing_invoices (stripe_invoice_id, user_id, customer_id, subscription_id, status, amount_due,
			amount_paid, currency, hosted_invoice_url, invoice_pdf, period_start, period_end, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW())
		ON CONFLICT (stripe_invoice_id) DO UPDATE SET
			user_id = COALESCE(EXCLUDED.user_id, billing_invoices.user_id),
			status = EXCLUDED.status,
			amount_due = EXCLUDED.amount_due,
			amount_paid = EXCLUDED.amount_paid,
			hosted_invoice_url = EXCLUDED.hosted_invoice_url,
			invoice_pdf = EXCLUDED.invoice_pdf,
			period_start = EXCLUDED.period_start,
			period_end = EXCLUDED.period_end,
			updated_at = NOW()`,
		inv.InvoiceID, inv.UserID, inv.CustomerID, inv.SubscriptionID, inv.Status, inv.AmountDue,
		inv.AmountPaid, inv.Currency, inv.HostedURL, inv.PDFURL, inv.PeriodStart, inv.PeriodEnd)
	return err
}

func (r *BillingRepository) EventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM billing_events WHERE stripe_event_id = $1)", eventID).Scan(&exists)
	return exists, err
}

// RecordEvent stores a processed webhook event with its error text, if any.
func (r *BillingRepository) RecordEvent(ctx context.Context, eventID, eventType string, payload []byte, errText string) error {
	if !json.Valid(payload) {
		payload = []byte("{}")
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO billing_events (stripe_event_id, type, payload, error)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (stripe_event_id) DO NOTHING`,
		eventID, eventType, payload, nullable(errText))
	return err
}
