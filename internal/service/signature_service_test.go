package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHMACSignatureService_SignAndVerify(t *testing.T) {
	svc := NewHMACSignatureService()
	secretKey := "whsec_payments"
	payload := `{"eventId":"evt_1","eventType":"payment.captured","referenceId":"ord_1","amount":50000}`

	signature := svc.Sign(secretKey, payload)

	assert.Regexp(t, `^[0-9a-f]{64}$`, signature, "signature should be 64-char lowercase hex (SHA-256)")
	assert.True(t, svc.Verify(secretKey, payload, signature))
}

func TestHMACSignatureService_VerifyFails_WrongKey(t *testing.T) {
	svc := NewHMACSignatureService()
	payload := "test payload"

	signature := svc.Sign("correct-key", payload)
	assert.False(t, svc.Verify("wrong-key", payload, signature))
}

func TestHMACSignatureService_VerifyFails_WrongPayload(t *testing.T) {
	svc := NewHMACSignatureService()
	secretKey := "my-key"

	signature := svc.Sign(secretKey, "original payload")
	assert.False(t, svc.Verify(secretKey, "tampered payload", signature))
}

func TestHMACSignatureService_VerifyFails_WrongSignature(t *testing.T) {
	svc := NewHMACSignatureService()
	assert.False(t, svc.Verify("key", "payload", "invalidsignature"))
	assert.False(t, svc.Verify("key", "payload", ""))
}

func TestHMACSignatureService_VerifyFails_EmptySecret(t *testing.T) {
	svc := NewHMACSignatureService()
	signature := svc.Sign("", "payload")
	assert.False(t, svc.Verify("", "payload", signature))
}

func TestHMACSignatureService_AcceptsHeaderForms(t *testing.T) {
	svc := NewHMACSignatureService()
	signature := svc.Sign("key", "data")

	assert.True(t, svc.Verify("key", "data", "sha256="+signature))
	assert.True(t, svc.Verify("key", "data", strings.ToUpper(signature)))
	assert.True(t, svc.Verify("key", "data", " "+signature+"\n"))
}

func TestHMACSignatureService_DeterministicSign(t *testing.T) {
	svc := NewHMACSignatureService()

	sig1 := svc.Sign("key", "data")
	sig2 := svc.Sign("key", "data")

	assert.Equal(t, sig1, sig2, "same key+payload should produce same signature")
}
