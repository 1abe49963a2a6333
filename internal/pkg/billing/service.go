package billing

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/nimbushost/nimbushost/app/models"
	"github.com/nimbushost/nimbushost/internal/pkg/env"
	"gorm.io/gorm"
)

// Service runs one webhook delivery through verification, deduplication and
// reconciliation. Each delivery is an independent unit of work; consistency
// across concurrent deliveries comes entirely from the storage layer.
type Service struct {
	repo       Repository
	reconciler *Reconciler

	secret          string
	tolerance       time.Duration
	allowUnverified bool
	now             func() time.Time
}

// NewService wires the webhook pipeline. allowUnverified skips signature
// checks and is only honored in the dev environment; the default
// configuration can never enable it.
func NewService(repo Repository, reconciler *Reconciler, secret string, allowUnverified bool) *Service {
	return &Service{
		repo:            repo,
		reconciler:      reconciler,
		secret:          secret,
		tolerance:       DefaultSignatureTolerance,
		allowUnverified: allowUnverified && env.IsDev(),
		now:             time.Now,
	}
}

// NewServiceFromDB builds the full pipeline from a GORM handle and the
// environment, the way the controllers consume it.
func NewServiceFromDB(db *gorm.DB, plans *PlanRegistry, target ProvisioningTarget) *Service {
	repo := NewRepository(db)
	return NewService(
		repo,
		NewReconciler(repo, plans, target),
		env.GetEnv("STRIPE_WEBHOOK_SECRET", ""),
		env.GetEnv("STRIPE_WEBHOOK_ALLOW_UNVERIFIED", "") == "true",
	)
}

// stuckEventReprocessAfter bounds how long an unprocessed row without a
// recorded failure blocks redeliveries of its event id. A crash between the
// dedup insert and the failure record would otherwise park the event as a
// permanent duplicate.
const stuckEventReprocessAfter = 10 * time.Minute

// WebhookResult describes the outcome of an accepted delivery.
type WebhookResult struct {
	EventID   string
	EventType string
	Duplicate bool
}

// ProcessWebhook verifies, deduplicates and reconciles one raw delivery.
// Rejected payloads (bad signature, malformed body) return an error before
// any row is written. Duplicate deliveries return Duplicate=true and no
// error. Retryable reconciler failures leave the stored event unprocessed
// and come back wrapped in RetryableError.
func (s *Service) ProcessWebhook(ctx context.Context, payload []byte, signatureHeader string) (*WebhookResult, error) {
	if s.allowUnverified && strings.TrimSpace(signatureHeader) == "" {
		log.Printf("billing: accepting unsigned webhook payload (dev bypass)")
	} else if err := VerifyWebhookSignature(payload, signatureHeader, s.secret, s.tolerance, s.now()); err != nil {
		return nil, err
	}

	evt, err := ParseEvent(payload)
	if err != nil {
		return nil, err
	}

	created, stored, err := s.repo.CreateWebhookEventIfNotExists(&models.WebhookEvent{
		ProviderEventID: evt.ID,
		EventType:       evt.Type,
		PayloadJSON:     string(payload),
		ReceivedAt:      s.now(),
	})
	if err != nil {
		return nil, retryable(err)
	}

	result := &WebhookResult{EventID: evt.ID, EventType: evt.Type}

	// A stored-but-unprocessed event with a recorded failure is a redelivery
	// of something that failed retryably; run it again. An unprocessed row
	// without a failure belongs to an in-flight first attempt, unless it is
	// old enough that the attempt must have died before recording anything.
	stuck := !stored.Processed() && s.now().Sub(stored.ReceivedAt) > stuckEventReprocessAfter
	firstSeen := created || (!stored.Processed() && stored.ProcessingError != "") || stuck
	if !firstSeen {
		result.Duplicate = true
		return result, nil
	}

	if err := s.reconciler.Apply(ctx, evt); err != nil {
		if markErr := s.repo.RecordWebhookFailure(stored.ID, err.Error()); markErr != nil {
			log.Printf("billing: failed to record webhook failure for event %s: %v", evt.ID, markErr)
		}
		return nil, err
	}

	if err := s.repo.MarkWebhookProcessed(stored.ID); err != nil {
		return nil, retryable(err)
	}
	return result, nil
}
