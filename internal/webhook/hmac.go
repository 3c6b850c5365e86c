package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

// errVerification is deliberately uninformative; callers answer 403.
var errVerification = errors.New("webhook verification failed")

// verifyHMACSignature checks an HMAC-SHA256 signature of body. The signature
// is hex, optionally prefixed "sha256=".
func verifyHMACSignature(body []byte, signature, secret string) error {
	if secret == "" || signature == "" {
		return errVerification
	}
	actual, err := hex.DecodeString(strings.TrimPrefix(signature, "sha256="))
	if err != nil {
		return errVerification
	}
	if !hmac.Equal(signBody(body, secret), actual) {
		return errVerification
	}
	return nil
}

func signBody(body []byte, secret string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return mac.Sum(nil)
}

// Sign returns the "sha256=<hex>" signature a sender puts in the signature
// header.
func Sign(body []byte, secret string) string {
	return "sha256=" + hex.EncodeToString(signBody(body, secret))
}
