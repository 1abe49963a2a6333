package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SignatureHeader is the request header carrying the processor signature.
const SignatureHeader = "Stripe-Signature"

// DefaultSignatureTolerance bounds how old a signed timestamp may be before
// the delivery is rejected as a possible replay.
const DefaultSignatureTolerance = 5 * time.Minute

var (
	ErrSignatureMissing = errors.New("webhook signature header missing or malformed")
	ErrSignatureExpired = errors.New("webhook signature timestamp outside tolerance")
	ErrSignatureInvalid = errors.New("webhook signature mismatch")
)

// VerifyWebhookSignature checks a `t=<unix>,v1=<hex>` signature header against
// the raw body. The expected signature is HMAC-SHA256 over "<t>.<body>" keyed
// with the shared secret; comparison is constant time. Any v1 candidate may
// match, which keeps secret rotation possible on the processor side.
func VerifyWebhookSignature(payload []byte, signatureHeader, secret string, tolerance time.Duration, now time.Time) error {
	header := strings.TrimSpace(signatureHeader)
	if header == "" || strings.TrimSpace(secret) == "" {
		return ErrSignatureMissing
	}
	if tolerance <= 0 {
		tolerance = DefaultSignatureTolerance
	}

	var timestamp int64 = -1
	var candidates [][]byte
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			ts, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return ErrSignatureMissing
			}
			timestamp = ts
		case "v1":
			sig, err := hex.DecodeString(strings.ToLower(v))
			if err != nil {
				continue
			}
			candidates = append(candidates, sig)
		}
	}
	if timestamp < 0 || len(candidates) == 0 {
		return ErrSignatureMissing
	}

	signedAt := time.Unix(timestamp, 0)
	if diff := now.Sub(signedAt); diff > tolerance || diff < -tolerance {
		return ErrSignatureExpired
	}

	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", timestamp)
	mac.Write(payload)
	expected := mac.Sum(nil)
	for _, candidate := range candidates {
		if hmac.Equal(expected, candidate) {
			return nil
		}
	}
	return ErrSignatureInvalid
}

// SignWebhookPayload produces a signature header for the given payload, used
// by tests and the dev event replay tooling.
func SignWebhookPayload(payload []byte, secret string, signedAt time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", signedAt.Unix())
	mac.Write(payload)
	return fmt.Sprintf("t=%d,v1=%s", signedAt.Unix(), hex.EncodeToString(mac.Sum(nil)))
}
