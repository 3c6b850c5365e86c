package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"
)

// computeExpectedSignature computes the plain hex HMAC-SHA256 of body.
func computeExpectedSignature(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifyHMACSignature(t *testing.T) {
	secret := "test-secret-key"
	body := []byte(`{"symbol":"AAPL","quantity":5,"side":"buy"}`)
	expectedSig := computeExpectedSignature(body, secret)

	tests := []struct {
		name      string
		body      []byte
		signature string
		secret    string
		wantErr   bool
	}{
		{name: "plain hex", body: body, signature: expectedSig, secret: secret},
		{name: "sha256 prefix", body: body, signature: "sha256=" + expectedSig, secret: secret},
		{name: "wrong signature", body: body, signature: strings.Repeat("0", 64), secret: secret, wantErr: true},
		{name: "wrong secret", body: body, signature: expectedSig, secret: "other", wantErr: true},
		{name: "tampered body", body: []byte(`{"symbol":"AAPL","quantity":500,"side":"buy"}`), signature: expectedSig, secret: secret, wantErr: true},
		{name: "not hex", body: body, signature: "sha256=zz", secret: secret, wantErr: true},
		{name: "empty signature", body: body, signature: "", secret: secret, wantErr: true},
		{name: "empty secret", body: body, signature: expectedSig, secret: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := verifyHMACSignature(tt.body, tt.signature, tt.secret)
			if (err != nil) != tt.wantErr {
				t.Errorf("verifyHMACSignature() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && err != errVerification {
				t.Errorf("error = %v, want the generic verification error", err)
			}
		})
	}
}

func TestSignMatchesVerify(t *testing.T) {
	body := []byte(`{"orders":[]}`)
	sig := Sign(body, "s3cret")
	if !strings.HasPrefix(sig, "sha256=") {
		t.Fatalf("Sign() = %q, want sha256= prefix", sig)
	}
	if err := verifyHMACSignature(body, sig, "s3cret"); err != nil {
		t.Errorf("verifyHMACSignature(Sign()) = %v", err)
	}
}
