package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/stripe/stripe-go/v76"

	"project_citabot/internal/entities"
)

// PaymentGateway is the slice of the Stripe API billing needs.
type PaymentGateway interface {
	ConstructEvent(payload []byte, signature string) (stripe.Event, error)
	GetSubscription(ctx context.Context, id string) (*stripe.Subscription, error)
	CreateCustomer(ctx context.Context, userID int, email string) (string, error)
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error)
}

// BillingService keeps subscriptions in sync with Stripe webhooks and
// applies plan limits to users.
type BillingService struct {
	gateway     PaymentGateway
	store       BillingStore
	users       UserStore
	production  bool
	frontendURL string
}

func NewBillingService(gateway PaymentGateway, store BillingStore, users UserStore, production bool, frontendURL string) *BillingService {
	return &BillingService{
		gateway:     gateway,
		store:       store,
		users:       users,
		production:  production,
		frontendURL: strings.TrimRight(frontendURL, "/"),
	}
}

// WebhookResult tells the caller what happened to a delivered event.
type WebhookResult struct {
	EventID   string `json:"event_id"`
	Type      string `json:"type"`
	Ignored   bool   `json:"ignored,omitempty"`
	Duplicate bool   `json:"duplicate,omitempty"`
}

// HandleWebhook verifies and applies one Stripe event. Test mode events are
// ignored in production and redeliveries are acknowledged without changes.
// Processing failures are recorded on the event row, not returned, so Stripe
// does not retry events that will keep failing.
func (s *BillingService) HandleWebhook(ctx context.Context, payload []byte, signature string) (*WebhookResult, error) {
	if s.gateway == nil {
		return nil, newError(ErrNotConfigured, "Stripe no está configurado")
	}
	event, err := s.gateway.ConstructEvent(payload, signature)
	if err != nil {
		return nil, newError(ErrInvalidSignature, "Webhook Error: "+err.Error())
	}
	res := &WebhookResult{EventID: event.ID, Type: string(event.Type)}

	if s.production && !event.Livemode {
		res.Ignored = true
		return res, nil
	}

	seen, err := s.store.EventProcessed(ctx, event.ID)
	if err != nil {
		return nil, err
	}
	if seen {
		res.Duplicate = true
		return res, nil
	}

	errText := ""
	if err := s.apply(ctx, event); err != nil {
		errText = err.Error()
		log.Error().Err(err).Str("event_id", event.ID).Str("type", string(event.Type)).Msg("stripe event handling failed")
	}
	if err := s.store.RecordEvent(ctx, event.ID, string(event.Type), payload, errText); err != nil {
		log.Error().Err(err).Str("event_id", event.ID).Msg("failed to record stripe event")
	}
	return res, nil
}

func (s *BillingService) apply(ctx context.Context, event stripe.Event) error {
	if event.Data == nil {
		return nil
	}
	raw := event.Data.Raw

	switch event.Type {
	case "checkout.session.completed":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(raw, &sess); err != nil {
			return fmt.Errorf("decode checkout session: %w", err)
		}
		return s.checkoutCompleted(ctx, &sess)

	case "customer.subscription.created", "customer.subscription.updated", "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(raw, &sub); err != nil {
			return fmt.Errorf("decode subscription: %w", err)
		}
		if sub.Customer == nil {
			return nil
		}
		userID, err := s.store.GetUserIDByCustomer(ctx, sub.Customer.ID)
		if err != nil {
			return err
		}
		if userID == 0 {
			log.Warn().Str("customer", sub.Customer.ID).Msg("subscription for unknown customer")
			return nil
		}
		return s.syncSubscription(ctx, &sub, userID)

	case "invoice.paid", "invoice.payment_failed":
		var inv stripe.Invoice
		if err := json.Unmarshal(raw, &inv); err != nil {
			return fmt.Errorf("decode invoice: %w", err)
		}
		return s.recordInvoice(ctx, &inv)
	}
	return nil
}

func (s *BillingService) checkoutCompleted(ctx context.Context, sess *stripe.CheckoutSession) error {
	userID := parseUserID(sess.ClientReferenceID)
	customerID := ""
	if sess.Customer != nil {
		customerID = sess.Customer.ID
	}
	if userID != 0 && customerID != "" {
		email := ""
		if sess.CustomerDetails != nil {
			email = sess.CustomerDetails.Email
		}
		if err := s.store.UpsertCustomer(ctx, entities.BillingCustomer{UserID: userID, CustomerID: customerID, Email: email}); err != nil {
			return fmt.Errorf("link customer: %w", err)
		}
	}

	if sess.Mode != stripe.CheckoutSessionModeSubscription || sess.Subscription == nil || userID == 0 {
		return nil
	}
	sub, err := s.gateway.GetSubscription(ctx, sess.Subscription.ID)
	if err != nil {
		return err
	}
	if err := s.syncSubscription(ctx, sub, userID); err != nil {
		return err
	}

	if priceID := subscriptionPrice(sub); priceID != "" && sess.PaymentLink != nil && sess.PaymentLink.ID != "" {
		if _, err := s.store.SetPlanPaymentLinkIfEmpty(ctx, priceID, sess.PaymentLink.ID); err != nil {
			return fmt.Errorf("store payment link: %w", err)
		}
	}
	return nil
}

func (s *BillingService) syncSubscription(ctx context.Context, sub *stripe.Subscription, userID int) error {
	customerID := ""
	if sub.Customer != nil {
		customerID = sub.Customer.ID
	}
	if customerID == "" {
		return nil
	}
	if err := s.store.UpsertCustomer(ctx, entities.BillingCustomer{UserID: userID, CustomerID: customerID}); err != nil {
		return fmt.Errorf("ensure customer: %w", err)
	}

	rec := &entities.Subscription{
		UserID:             userID,
		CustomerID:         customerID,
		SubscriptionID:     sub.ID,
		PriceID:            subscriptionPrice(sub),
		Status:             string(sub.Status),
		CancelAtPeriodEnd:  sub.CancelAtPeriodEnd,
		CurrentPeriodStart: unixTime(sub.CurrentPeriodStart),
		CurrentPeriodEnd:   unixTime(sub.CurrentPeriodEnd),
		CanceledAt:         unixTime(sub.CanceledAt),
	}

	var plan *entities.Plan
	if rec.PriceID != "" {
		p, err := s.store.GetPlanByPrice(ctx, rec.PriceID)
		if err != nil {
			return err
		}
		if p != nil {
			plan = p
			rec.PlanID = &p.ID
		}
	}
	if err := s.store.UpsertSubscription(ctx, rec); err != nil {
		return fmt.Errorf("upsert subscription: %w", err)
	}

	if plan != nil && rec.Entitled() && s.users != nil {
		if _, err := s.users.UpdateUserLimits(ctx, userID, plan.DailyLimit, plan.MonthlyLimit); err != nil {
			return fmt.Errorf("apply plan limits: %w", err)
		}
		log.Info().Int("user_id", userID).Str("plan", plan.Name).Msg("plan limits applied")
	}
	return nil
}

func (s *BillingService) recordInvoice(ctx context.Context, inv *stripe.Invoice) error {
	if inv.Customer == nil || inv.Customer.ID == "" {
		return nil
	}
	userID, err := s.store.GetUserIDByCustomer(ctx, inv.Customer.ID)
	if err != nil {
		return err
	}
	if userID == 0 {
		return nil
	}
	rec := entities.Invoice{
		InvoiceID:   inv.ID,
		UserID:      &userID,
		CustomerID:  inv.Customer.ID,
		Status:      string(inv.Status),
		AmountDue:   inv.AmountDue,
		AmountPaid:  inv.AmountPaid,
		Currency:    string(inv.Currency),
		HostedURL:   inv.HostedInvoiceURL,
		PDFURL:      inv.InvoicePDF,
		PeriodStart: unixTime(inv.PeriodStart),
		PeriodEnd:   unixTime(inv.PeriodEnd),
	}
	if inv.Subscription != nil {
		rec.SubscriptionID = inv.Subscription.ID
	}
	return s.store.UpsertInvoice(ctx, rec)
}

// Portal returns a Stripe billing portal URL, creating the customer first
// when the user has none.
func (s *BillingService) Portal(ctx context.Context, userID int, returnURL string) (string, error) {
	if s.gateway == nil {
		return "", newError(ErrNotConfigured, "Stripe no está configurado")
	}
	cust, err := s.store.GetCustomerByUser(ctx, userID)
	if err != nil {
		return "", err
	}
	var customerID, email string
	if cust != nil {
		customerID, email = cust.CustomerID, cust.Email
	}
	if email == "" && s.users != nil {
		if u, err := s.users.GetByID(ctx, userID); err == nil && u != nil {
			email = u.Email
		}
	}
	if customerID == "" {
		customerID, err = s.gateway.CreateCustomer(ctx, userID, email)
		if err != nil {
			return "", err
		}
		if err := s.store.UpsertCustomer(ctx, entities.BillingCustomer{UserID: userID, CustomerID: customerID, Email: email}); err != nil {
			return "", fmt.Errorf("%w: link customer: %v", ErrPersistence, err)
		}
	}
	if returnURL == "" {
		returnURL = s.frontendURL + "/account"
	}
	return s.gateway.CreatePortalSession(ctx, customerID, returnURL)
}

// MySubscription is the billing state shown to a user.
type MySubscription struct {
	Subscription *entities.Subscription `json:"subscription"`
	Plan         *entities.Plan         `json:"plan"`
}

func (s *BillingService) Me(ctx context.Context, userID int) (*MySubscription, error) {
	sub, err := s.store.GetSubscriptionByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := &MySubscription{Subscription: sub}
	if sub != nil && sub.PlanID != nil {
		if out.Plan, err = s.store.GetPlan(ctx, *sub.PlanID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *BillingService) Plans(ctx context.Context, onlyActive bool) ([]entities.Plan, error) {
	return s.store.ListPlans(ctx, onlyActive)
}

func validatePlan(p *entities.Plan) error {
	p.Name = strings.TrimSpace(p.Name)
	switch {
	case p.Name == "":
		return invalid("name is required")
	case p.PriceMonthly < 0 || p.PriceYearly < 0:
		return invalid("prices must not be negative")
	case p.DailyLimit < 0 || p.MonthlyLimit < 0:
		return invalid("limits must not be negative")
	}
	if p.Features == nil {
		p.Features = []string{}
	}
	return nil
}

func (s *BillingService) CreatePlan(ctx context.Context, p *entities.Plan) error {
	if err := validatePlan(p); err != nil {
		return err
	}
	return s.store.CreatePlan(ctx, p)
}

func (s *BillingService) UpdatePlan(ctx context.Context, p *entities.Plan) error {
	if err := validatePlan(p); err != nil {
		return err
	}
	ok, err := s.store.UpdatePlan(ctx, p)
	if err != nil {
		return err
	}
	if !ok {
		return notFound("Plan no encontrado")
	}
	return nil
}

func subscriptionPrice(sub *stripe.Subscription) string {
	if sub.Items == nil || len(sub.Items.Data) == 0 || sub.Items.Data[0].Price == nil {
		return ""
	}
	return sub.Items.Data[0].Price.ID
}

func unixTime(sec int64) *time.Time {
	if sec == 0 {
		return nil
	}
	t := time.Unix(sec, 0).UTC()
	return &t
}

func parseUserID(ref string) int {
	n, err := strconv.Atoi(strings.TrimSpace(ref))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
