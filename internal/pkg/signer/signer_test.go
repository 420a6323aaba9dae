package signer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(unix int64) func() time.Time {
	return func() time.Time { return time.Unix(unix, 0) }
}

func TestSignVerify_RoundTrip(t *testing.T) {
	s := NewWithClock("test-secret", fixedClock(1000))

	sig, err := s.Sign("file_abc123", 2000, "")
	require.NoError(t, err)

	assert.True(t, s.Verify("file_abc123", 2000, sig, ""))
}

func TestSign_Deterministic(t *testing.T) {
	s := New("test-secret")

	a, err := s.Sign("file_abc123", 2000, "42")
	require.NoError(t, err)
	b, err := s.Sign("file_abc123", 2000, "42")
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestVerify_TamperedFieldsFail(t *testing.T) {
	s := NewWithClock("test-secret", fixedClock(1000))
	sig, err := s.Sign("file_abc123", 2000, "42")
	require.NoError(t, err)

	assert.False(t, s.Verify("file_other", 2000, sig, "42"), "changed file id")
	assert.False(t, s.Verify("file_abc123", 3000, sig, "42"), "changed expiry")
	assert.False(t, s.Verify("file_abc123", 2000, sig, "7"), "changed uid")
	assert.False(t, s.Verify("file_abc123", 2000, sig, ""), "dropped uid")
}

func TestVerify_SubjectBinding(t *testing.T) {
	s := NewWithClock("test-secret", fixedClock(1000))

	bound, err := s.Sign("file_abc123", 2000, "userA")
	require.NoError(t, err)
	unbound, err := s.Sign("file_abc123", 2000, "")
	require.NoError(t, err)

	assert.True(t, s.Verify("file_abc123", 2000, bound, "userA"))
	assert.False(t, s.Verify("file_abc123", 2000, bound, "userB"))
	assert.False(t, s.Verify("file_abc123", 2000, bound, ""))

	// unbound verifies for anyone who also verifies unbound
	assert.True(t, s.Verify("file_abc123", 2000, unbound, ""))
	assert.False(t, s.Verify("file_abc123", 2000, unbound, "userA"))
}

func TestVerify_ExpiryBoundary(t *testing.T) {
	s := NewWithClock("test-secret", fixedClock(2000))
	sig, err := s.Sign("file_abc123", 2000, "")
	require.NoError(t, err)

	// now == exp still accepted
	assert.True(t, s.Verify("file_abc123", 2000, sig, ""))

	late := NewWithClock("test-secret", fixedClock(2001))
	assert.False(t, late.Verify("file_abc123", 2000, sig, ""))
}

func TestVerify_MalformedSignature(t *testing.T) {
	s := NewWithClock("test-secret", fixedClock(1000))

	assert.False(t, s.Verify("file_abc123", 2000, "not-hex", ""))
	assert.False(t, s.Verify("file_abc123", 2000, "", ""))
}

func TestSign_RejectsDelimiterInFileID(t *testing.T) {
	s := New("test-secret")

	_, err := s.Sign("file\n2000", 1, "")
	assert.ErrorIs(t, err, ErrAmbiguousFileID)
}

func TestVerify_DifferentSecretFails(t *testing.T) {
	a := NewWithClock("secret-a", fixedClock(1000))
	b := NewWithClock("secret-b", fixedClock(1000))

	sig, err := a.Sign("file_abc123", 2000, "")
	require.NoError(t, err)

	assert.False(t, b.Verify("file_abc123", 2000, sig, ""))
}
