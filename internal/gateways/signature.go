package gateway

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base64"
	"sort"
)

// ComputeCallbackSignature reproduces the vendor's status-callback signature:
// HMAC-SHA1 over the full callback URL concatenated with the POST parameters
// sorted by key, base64 encoded.
func ComputeCallbackSignature(authToken, callbackURL string, params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	payload := callbackURL
	for _, k := range keys {
		payload += k + params[k]
	}

	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(payload))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// VerifyCallbackSignature checks an inbound status callback before it is
// trusted. Constant-time comparison, the signature comes off the wire.
func VerifyCallbackSignature(authToken, callbackURL string, params map[string]string, signature string) bool {
	expected := ComputeCallbackSignature(authToken, callbackURL, params)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}
