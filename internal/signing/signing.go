// Package signing issues and verifies time-bound HMAC grants for individual
// chunk fetches. Grants are stateless: validity is signature plus expiry,
// with no revocation list.
package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrGrantExpired is reported once expiry has passed, regardless of
	// whether the signature would have matched, so an expired grant does not
	// leak whether it was ever valid.
	ErrGrantExpired = errors.New("grant expired")

	// ErrSignatureMismatch is reported for an unexpired grant whose
	// signature does not verify.
	ErrSignatureMismatch = errors.New("signature mismatch")
)

// Grant authorizes one specific chunk fetch until ExpiresAt (unix seconds).
type Grant struct {
	VideoID   string `json:"videoId"`
	Quality   string `json:"quality"`
	Index     int    `json:"index"`
	ExpiresAt int64  `json:"expiresAt"`
	Signature string `json:"signature"`
}

// Signer derives chunk grants from a shared secret and a clock.
type Signer struct {
	secret []byte
	now    func() time.Time
}

func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret), now: time.Now}
}

// WithClock overrides the clock, for tests.
func (s *Signer) WithClock(now func() time.Time) *Signer {
	s.now = now
	return s
}

// Issue creates a grant for one chunk valid for ttl.
func (s *Signer) Issue(videoID, quality string, index int, ttl time.Duration) Grant {
	expiresAt := s.now().Add(ttl).Unix()
	return Grant{
		VideoID:   videoID,
		Quality:   quality,
		Index:     index,
		ExpiresAt: expiresAt,
		Signature: s.sign(videoID, quality, index, expiresAt),
	}
}

// IssueBatch issues grants for a contiguous index window. There is no
// cross-grant atomicity; each grant stands alone.
func (s *Signer) IssueBatch(videoID, quality string, startIndex, count int, ttl time.Duration) []Grant {
	grants := make([]Grant, 0, count)
	for i := startIndex; i < startIndex+count; i++ {
		grants = append(grants, s.Issue(videoID, quality, i, ttl))
	}
	return grants
}

// Verify checks a presented grant. The signature comparison runs
// unconditionally and in constant time; expiry is reported with precedence
// once time has passed.
func (s *Signer) Verify(videoID, quality string, index int, expiresAt int64, signature string) error {
	expected := s.sign(videoID, quality, index, expiresAt)
	match := hmac.Equal([]byte(expected), []byte(signature))

	if s.now().Unix() > expiresAt {
		return ErrGrantExpired
	}
	if !match {
		return ErrSignatureMismatch
	}
	return nil
}

func (s *Signer) sign(videoID, quality string, index int, expiresAt int64) string {
	mac := hmac.New(sha256.New, s.secret)
	fmt.Fprintf(mac, "%s:%s:%d:%d", videoID, quality, index, expiresAt)
	return hex.EncodeToString(mac.Sum(nil))
}
