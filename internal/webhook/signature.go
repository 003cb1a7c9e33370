package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// VerifySignature validates a Meta X-Hub-Signature-256 header against the raw
// request body. The header is formatted "sha256=<hex digest>"; any malformed
// header (missing prefix, wrong algorithm tag, non-hex payload) yields false.
func VerifySignature(body []byte, header, secret string) bool {
	if header == "" || secret == "" {
		return false
	}
	algo, digest, ok := strings.Cut(header, "=")
	if !ok || algo != "sha256" {
		return false
	}
	provided, err := hex.DecodeString(digest)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), provided)
}
