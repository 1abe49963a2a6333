package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nimbushost/nimbushost/internal/pkg/entitlements"
	"github.com/nimbushost/nimbushost/internal/pkg/env"
)

// PlanMetadata is the resolved plan information handed to the control panel
// when a subscription is provisioned.
type PlanMetadata struct {
	PlanName string `json:"plan_name"`
	Interval string `json:"interval"`
	PriceID  string `json:"price_id"`
}

// ProvisioningResult is the outcome reported by the control panel.
type ProvisioningResult struct {
	Status string `json:"status"`
	Detail string `json:"detail"`
}

// ProvisioningTarget is the boundary to the hosting control panel. The call
// is synchronous and single-attempt; the caller records the outcome in the
// provisioning log and leaves retries to an operator or external retrier.
type ProvisioningTarget interface {
	Apply(ctx context.Context, providerSubscriptionID string, plan PlanMetadata) (*ProvisioningResult, error)
}

// PanelTarget provisions hosting accounts through the control panel HTTP API.
type PanelTarget struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

// NewPanelTargetFromEnv builds the control panel client, or a no-op target
// when no panel URL is configured (local development).
func NewPanelTargetFromEnv() ProvisioningTarget {
	baseURL := strings.TrimRight(env.GetEnv("PANEL_API_URL", ""), "/")
	if baseURL == "" {
		return &NoopTarget{}
	}
	return &PanelTarget{
		BaseURL: baseURL,
		Token:   strings.TrimSpace(env.GetEnv("PANEL_API_TOKEN", "")),
		HTTPClient: &http.Client{
			Timeout: 20 * time.Second,
		},
	}
}

type panelApplyRequest struct {
	RequestID      string                    `json:"request_id"`
	SubscriptionID string                    `json:"subscription_id"`
	Plan           PlanMetadata              `json:"plan"`
	Limits         entitlements.Entitlements `json:"limits"`
}

func (t *PanelTarget) Apply(ctx context.Context, providerSubscriptionID string, plan PlanMetadata) (*ProvisioningResult, error) {
	if strings.TrimSpace(providerSubscriptionID) == "" {
		return nil, errors.New("subscription id is required")
	}

	body, err := json.Marshal(panelApplyRequest{
		RequestID:      uuid.NewString(),
		SubscriptionID: providerSubscriptionID,
		Plan:           plan,
		Limits:         entitlements.ForPlan(plan.PlanName),
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.BaseURL+"/v1/accounts/apply", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if t.Token != "" {
		req.Header.Set("Authorization", "Bearer "+t.Token)
	}

	resp, err := t.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("panel apply failed: status=%d body=%s", resp.StatusCode, string(respBody))
	}

	var out ProvisioningResult
	if err := json.Unmarshal(respBody, &out); err != nil {
		// Panel answered 2xx with a body we cannot decode; treat as applied.
		out = ProvisioningResult{Status: "applied", Detail: string(respBody)}
	}
	return &out, nil
}

// NoopTarget acknowledges provisioning without calling anything. Used when
// PANEL_API_URL is not configured.
type NoopTarget struct{}

func (t *NoopTarget) Apply(_ context.Context, providerSubscriptionID string, plan PlanMetadata) (*ProvisioningResult, error) {
	log.Printf("provisioning noop: subscription=%s plan=%s/%s", providerSubscriptionID, plan.PlanName, plan.Interval)
	return &ProvisioningResult{Status: "applied", Detail: "noop target"}, nil
}
