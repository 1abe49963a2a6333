package billing

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestVerifyWebhookSignature(t *testing.T) {
	secret := "whsec_test"
	payload := []byte(`{"id":"evt_1","type":"invoice.paid"}`)
	now := time.Now()

	t.Run("valid signature passes", func(t *testing.T) {
		header := SignWebhookPayload(payload, secret, now)
		assert.NoError(t, VerifyWebhookSignature(payload, header, secret, DefaultSignatureTolerance, now))
	})

	t.Run("tampered payload fails", func(t *testing.T) {
		header := SignWebhookPayload(payload, secret, now)
		err := VerifyWebhookSignature([]byte(`{"id":"evt_2"}`), header, secret, DefaultSignatureTolerance, now)
		assert.ErrorIs(t, err, ErrSignatureInvalid)
	})

	t.Run("wrong secret fails", func(t *testing.T) {
		header := SignWebhookPayload(payload, "whsec_other", now)
		err := VerifyWebhookSignature(payload, header, secret, DefaultSignatureTolerance, now)
		assert.ErrorIs(t, err, ErrSignatureInvalid)
	})

	t.Run("timestamp beyond tolerance fails", func(t *testing.T) {
		header := SignWebhookPayload(payload, secret, now.Add(-6*time.Minute))
		err := VerifyWebhookSignature(payload, header, secret, 5*time.Minute, now)
		assert.ErrorIs(t, err, ErrSignatureExpired)
	})

	t.Run("future timestamp beyond tolerance fails", func(t *testing.T) {
		header := SignWebhookPayload(payload, secret, now.Add(6*time.Minute))
		err := VerifyWebhookSignature(payload, header, secret, 5*time.Minute, now)
		assert.ErrorIs(t, err, ErrSignatureExpired)
	})

	t.Run("timestamp just inside tolerance passes", func(t *testing.T) {
		header := SignWebhookPayload(payload, secret, now.Add(-4*time.Minute))
		assert.NoError(t, VerifyWebhookSignature(payload, header, secret, 5*time.Minute, now))
	})

	t.Run("empty header fails", func(t *testing.T) {
		err := VerifyWebhookSignature(payload, "", secret, DefaultSignatureTolerance, now)
		assert.ErrorIs(t, err, ErrSignatureMissing)
	})

	t.Run("empty secret fails", func(t *testing.T) {
		header := SignWebhookPayload(payload, secret, now)
		err := VerifyWebhookSignature(payload, header, "", DefaultSignatureTolerance, now)
		assert.ErrorIs(t, err, ErrSignatureMissing)
	})

	t.Run("header without v1 fails", func(t *testing.T) {
		header := fmt.Sprintf("t=%d", now.Unix())
		err := VerifyWebhookSignature(payload, header, secret, DefaultSignatureTolerance, now)
		assert.ErrorIs(t, err, ErrSignatureMissing)
	})

	t.Run("any matching v1 candidate passes", func(t *testing.T) {
		good := SignWebhookPayload(payload, secret, now)
		header := good + ",v1=" + strings.Repeat("ab", 32)
		assert.NoError(t, VerifyWebhookSignature(payload, header, secret, DefaultSignatureTolerance, now))
	})
}
