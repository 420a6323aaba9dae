package signer

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"
)

// delimiter separates the signed fields. File IDs are generated hex and can
// never contain a newline; Sign still refuses such IDs so a forged record
// cannot shift field boundaries.
const delimiter = "\n"

var ErrAmbiguousFileID = errors.New("file id contains the signing delimiter")

// Service mints and verifies HMAC-signed download references.
// Stateless: the same (fileID, exp, uid) always yields the same signature,
// so verification needs only the shared secret.
type Service struct {
	secret []byte
	now    func() time.Time
}

func New(secret string) *Service {
	return &Service{secret: []byte(secret), now: time.Now}
}

// NewWithClock is used by tests to pin the verification clock.
func NewWithClock(secret string, now func() time.Time) *Service {
	return &Service{secret: []byte(secret), now: now}
}

// Sign returns the hex MAC over (fileID, exp, uid). uid is empty for
// references not bound to a specific user.
func (s *Service) Sign(fileID string, exp int64, uid string) (string, error) {
	if strings.Contains(fileID, delimiter) || strings.Contains(uid, delimiter) {
		return "", ErrAmbiguousFileID
	}
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(fileID + delimiter + strconv.FormatInt(exp, 10) + delimiter + uid))
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// Verify reports whether sig is a valid, unexpired signature for the given
// fields. Expired references are always rejected: now > exp fails, now == exp
// still passes. A reference signed with a uid only verifies with that same
// uid; one signed unbound only verifies unbound.
func (s *Service) Verify(fileID string, exp int64, sig string, uid string) bool {
	if s.now().Unix() > exp {
		return false
	}
	expected, err := s.Sign(fileID, exp, uid)
	if err != nil {
		return false
	}
	got, err := hex.DecodeString(sig)
	if err != nil {
		return false
	}
	want, _ := hex.DecodeString(expected)
	return hmac.Equal(want, got)
}
