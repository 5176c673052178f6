package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidToken is returned for malformed, tampered or expired image tokens.
var ErrInvalidToken = errors.New("invalid image token")

// SignedURLSigner issues short-lived tokens that let a browser fetch a stored
// image without an Authorization header.
type SignedURLSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSignedURLSigner constructs a signer with the provided secret and TTL.
func NewSignedURLSigner(secret string, ttl time.Duration) *SignedURLSigner {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &SignedURLSigner{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Generate returns a token binding the owner to a storage-relative path.
func (s *SignedURLSigner) Generate(ownerID int64, relPath string) (string, time.Time, error) {
	if relPath == "" {
		return "", time.Time{}, fmt.Errorf("path required")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("signing secret missing")
	}
	expiresAt := s.now().Add(s.ttl)
	owner := strconv.FormatInt(ownerID, 10)
	ts := strconv.FormatInt(expiresAt.Unix(), 10)
	encodedPath := base64.RawURLEncoding.EncodeToString([]byte(relPath))
	token := strings.Join([]string{owner, ts, encodedPath, s.sign(owner, ts, encodedPath)}, ".")
	return token, expiresAt, nil
}

// Parse validates a token and returns the owner and path it grants.
func (s *SignedURLSigner) Parse(token string) (ownerID int64, relPath string, err error) {
	parts := strings.Split(token, ".")
	if len(parts) != 4 {
		return 0, "", ErrInvalidToken
	}
	owner, ts, encodedPath, signature := parts[0], parts[1], parts[2], parts[3]

	if !hmac.Equal([]byte(s.sign(owner, ts, encodedPath)), []byte(signature)) {
		return 0, "", ErrInvalidToken
	}
	expUnix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return 0, "", ErrInvalidToken
	}
	if s.now().After(time.Unix(expUnix, 0)) {
		return 0, "", fmt.Errorf("%w: expired", ErrInvalidToken)
	}
	ownerID, err = strconv.ParseInt(owner, 10, 64)
	if err != nil {
		return 0, "", ErrInvalidToken
	}
	raw, err := base64.RawURLEncoding.DecodeString(encodedPath)
	if err != nil {
		return 0, "", ErrInvalidToken
	}
	return ownerID, string(raw), nil
}

func (s *SignedURLSigner) sign(owner, ts, encodedPath string) string {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(owner + "|" + ts + "|" + encodedPath))
	return hex.EncodeToString(mac.Sum(nil))
}
