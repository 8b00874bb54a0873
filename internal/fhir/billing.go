package fhir

import (
	"context"
	"encoding/json"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"fhir-gateway/internal/utils"
)

// BillingReport combines the billing resources into one snapshot.
// A section that could not be fetched is an empty bundle.
type BillingReport struct {
	Accounts    json.RawMessage `json:"accounts"`
	Charges     json.RawMessage `json:"charges"`
	Payments    json.RawMessage `json:"payments"`
	GeneratedAt time.Time       `json:"generatedAt"`
}

// Coverage lists insurance coverage
func (c *Client) Coverage(ctx context.Context) (json.RawMessage, error) {
	return c.List(ctx, ResourceCoverage)
}

// Eligibility lists the coverage held by a patient
func (c *Client) Eligibility(ctx context.Context, patientID string) (json.RawMessage, error) {
	if err := requireID(patientID); err != nil {
		return nil, err
	}
	return c.search(ctx, ResourceCoverage, url.Values{"beneficiary": {patientID}}, "Eligibility check")
}

// Balances reads ExplanationOfBenefit, falling back to Account and then Claim.
// When every source fails the Account error is returned.
func (c *Client) Balances(ctx context.Context) (json.RawMessage, error) {
	data, err := c.search(ctx, ResourceExplanation, nil, "Balance fetch")
	if err == nil || !recoverable(err) {
		return data, err
	}
	c.logger.Debug("ExplanationOfBenefit unavailable, trying Account", zap.Error(err))

	data, accountErr := c.search(ctx, ResourceAccount, nil, "Balance fetch")
	if accountErr == nil || !recoverable(accountErr) {
		return data, accountErr
	}
	c.logger.Debug("Account unavailable, trying Claim", zap.Error(accountErr))

	data, err = c.search(ctx, ResourceClaim, nil, "Balance fetch")
	if err == nil {
		return data, nil
	}
	c.logger.Warn("No billing balance resource available", zap.Error(err))
	return nil, accountErr
}

// PaymentHistory lists the payment notices of a patient
func (c *Client) PaymentHistory(ctx context.Context, patientID string) (json.RawMessage, error) {
	if err := requireID(patientID); err != nil {
		return nil, err
	}
	return c.search(ctx, ResourcePaymentNotice, url.Values{"requestor": {patientID}}, "Payment history fetch")
}

// BillingCodes lists charge items
func (c *Client) BillingCodes(ctx context.Context) (json.RawMessage, error) {
	return c.search(ctx, ResourceChargeItem, nil, "Billing codes fetch")
}

// SearchBilling searches ExplanationOfBenefit, falling back to Account with the same parameters
func (c *Client) SearchBilling(ctx context.Context, params map[string]string) (json.RawMessage, error) {
	query := utils.CompactQuery(params)

	data, err := c.search(ctx, ResourceExplanation, query, "Billing search")
	if err == nil || !recoverable(err) {
		return data, err
	}
	c.logger.Debug("ExplanationOfBenefit search unavailable, trying Account", zap.Error(err))

	return c.search(ctx, ResourceAccount, query, "Billing search")
}

// Report fetches accounts, charges and payments concurrently.
// Upstream failures degrade a section to an empty bundle; settings and
// authentication failures fail the whole report.
func (c *Client) Report(ctx context.Context) (*BillingReport, error) {
	report := &BillingReport{
		Accounts: utils.EmptyBundle,
		Charges:  utils.EmptyBundle,
		Payments: utils.EmptyBundle,
	}

	section := func(dst *json.RawMessage, name string, fetch func(context.Context) (json.RawMessage, error)) func() error {
		return func() error {
			data, err := fetch(ctx)
			if err != nil {
				if !recoverable(err) {
					return err
				}
				c.logger.Warn("Billing report section unavailable", zap.String("section", name), zap.Error(err))
				return nil
			}
			*dst = data
			return nil
		}
	}

	var g errgroup.Group
	g.Go(section(&report.Accounts, "accounts", func(ctx context.Context) (json.RawMessage, error) {
		data, err := c.search(ctx, ResourceExplanation, nil, "Billing report")
		if err == nil || !recoverable(err) {
			return data, err
		}
		return c.search(ctx, ResourceAccount, nil, "Billing report")
	}))
	g.Go(section(&report.Charges, "charges", func(ctx context.Context) (json.RawMessage, error) {
		return c.search(ctx, ResourceChargeItem, nil, "Billing report")
	}))
	g.Go(section(&report.Payments, "payments", func(ctx context.Context) (json.RawMessage, error) {
		return c.search(ctx, ResourcePaymentNotice, nil, "Billing report")
	}))
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report.GeneratedAt = c.clock.Now().UTC()
	return report, nil
}
