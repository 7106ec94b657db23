// Package consent issues and verifies the signed one-time links sent to the
// opposite party of a case.
package consent

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Verification failures
var (
	ErrBadFormat    = errors.New("consent token is malformed")
	ErrBadSignature = errors.New("consent token signature does not match")
	ErrExpired      = errors.New("consent token has expired")
)

// DefaultValidDays is how long an issued link stays usable
const DefaultValidDays = 7

const nonceBytes = 8

// Signer creates and checks tokens of the form caseID.exp.nonce.sig, where exp is
// unix seconds and sig is the hex HMAC-SHA256 of the first three parts.
type Signer struct {
	secret []byte
	now    func() time.Time
}

// Option configures a Signer
type Option func(*Signer)

// WithClock replaces time.Now, mostly for tests
func WithClock(now func() time.Time) Option {
	return func(s *Signer) {
		s.now = now
	}
}

// NewSigner returns a Signer keyed with secret. The secret is fixed for the life of
// the process.
func NewSigner(secret string, opts ...Option) *Signer {
	s := &Signer{
		secret: []byte(secret),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issue returns a new token for caseID and the moment it stops being valid.
// A non-positive validDays falls back to DefaultValidDays.
func (s *Signer) Issue(caseID string, validDays int) (string, time.Time, error) {
	if validDays <= 0 {
		validDays = DefaultValidDays
	}
	exp := s.now().Add(time.Duration(validDays) * 24 * time.Hour).Truncate(time.Second)

	nonce := make([]byte, nonceBytes)
	if _, err := rand.Read(nonce); err != nil {
		return "", time.Time{}, fmt.Errorf("failed to read nonce: %w", err)
	}

	payload := caseID + "." + strconv.FormatInt(exp.Unix(), 10) + "." + hex.EncodeToString(nonce)
	return payload + "." + s.sign(payload), exp, nil
}

// Verify checks the structure, signature and expiry of token and returns the case
// id it was issued for. The expiry is checked last so a forged token never
// reports ErrExpired.
func (s *Signer) Verify(token string) (string, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 4 {
		return "", ErrBadFormat
	}
	caseID, expStr, nonce, sig := parts[0], parts[1], parts[2], parts[3]

	given, err := hex.DecodeString(sig)
	if err != nil {
		return "", ErrBadSignature
	}
	expected, _ := hex.DecodeString(s.sign(caseID + "." + expStr + "." + nonce))
	if !hmac.Equal(expected, given) {
		return "", ErrBadSignature
	}

	exp, err := strconv.ParseInt(expStr, 10, 64)
	if err != nil || s.now().Unix() > exp {
		return "", ErrExpired
	}
	return caseID, nil
}

func (s *Signer) sign(payload string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}
