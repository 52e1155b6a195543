package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// ErrSignatureMismatch means the callback could not be proven to come from
// the gateway. Callers must never mark a payment complete on this error.
var ErrSignatureMismatch = errors.New("gateway: signature mismatch")

// Sign computes the hex HMAC-SHA256 the gateway attaches to callbacks:
// the key is the shared webhook secret, the message is
// "<gatewayOrderID>|<gatewayPaymentID>".
func Sign(secret, gatewayOrderID, gatewayPaymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(gatewayOrderID + "|" + gatewayPaymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature recomputes the callback signature and compares it in
// constant time. Any empty field is treated as a mismatch.
func VerifySignature(secret, gatewayOrderID, gatewayPaymentID, signature string) error {
	if secret == "" || gatewayOrderID == "" || gatewayPaymentID == "" || signature == "" {
		return ErrSignatureMismatch
	}
	expected := Sign(secret, gatewayOrderID, gatewayPaymentID)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrSignatureMismatch
	}
	return nil
}
