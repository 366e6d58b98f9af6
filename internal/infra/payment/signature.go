// Package payment は決済事業者のwebhook署名を検証する。
//
// 署名は signature 以外の全フィールドをキー順に並べた
// form-encoded 文字列の HMAC-SHA256（hex）。
package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
)

const SignatureField = "signature"

type HMACVerifier struct {
	secret []byte
}

func NewHMACVerifier(secret string) *HMACVerifier {
	return &HMACVerifier{secret: []byte(secret)}
}

// 署名対象の文字列（url.Values.Encodeはキー順）
func CanonicalPayload(fields url.Values) string {
	c := make(url.Values, len(fields))
	for k, v := range fields {
		if k == SignatureField {
			continue
		}
		c[k] = v
	}
	return c.Encode()
}

func (v *HMACVerifier) Sign(fields url.Values) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(CanonicalPayload(fields)))
	return hex.EncodeToString(mac.Sum(nil))
}

func (v *HMACVerifier) Verify(fields url.Values, signature string) bool {
	if len(v.secret) == 0 {
		return false
	}
	got, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil || len(got) == 0 {
		return false
	}
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(CanonicalPayload(fields)))
	return hmac.Equal(got, mac.Sum(nil))
}
