package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strings"
)

// TokenSigner はセッションIDにHMAC-SHA256署名を付与・検証する。
// Cookie値の形式は "<sessionID>.<base64url(署名)>"。
type TokenSigner struct {
	secret []byte
}

// NewTokenSigner はTokenSignerを生成する。
func NewTokenSigner(secret string) *TokenSigner {
	return &TokenSigner{secret: []byte(secret)}
}

// Sign はセッションIDに署名を付与したCookie値を返す。
func (s *TokenSigner) Sign(sessionID string) string {
	return sessionID + "." + base64.RawURLEncoding.EncodeToString(s.mac(sessionID))
}

// Verify はCookie値の署名を検証し、セッションIDを返す。
// 形式不正または署名不一致の場合はokがfalseになる。
func (s *TokenSigner) Verify(token string) (sessionID string, ok bool) {
	i := strings.LastIndexByte(token, '.')
	if i <= 0 || i == len(token)-1 {
		return "", false
	}
	id, encoded := token[:i], token[i+1:]

	sig, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", false
	}
	if !hmac.Equal(sig, s.mac(id)) {
		return "", false
	}
	return id, true
}

func (s *TokenSigner) mac(sessionID string) []byte {
	h := hmac.New(sha256.New, s.secret)
	h.Write([]byte(sessionID))
	return h.Sum(nil)
}
