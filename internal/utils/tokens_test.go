package utils

import (
	"encoding/hex"
	"regexp"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sixDigits = regexp.MustCompile(`^[1-9][0-9]{5}$`)

func TestNewVerificationCode(t *testing.T) {
	g := NewTokenGenerator(0, 0)
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	for i := 0; i < 500; i++ {
		code, exp, err := g.NewVerificationCode(now)
		require.NoError(t, err)
		require.Regexp(t, sixDigits, code)

		n, err := strconv.Atoi(code)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, 100000)
		assert.LessOrEqual(t, n, 999999)
		assert.Equal(t, now.Add(60*time.Second), exp)
	}
}

func TestNewResetToken(t *testing.T) {
	g := NewTokenGenerator(0, 0)
	now := time.Now()

	t.Run("160 bits of hex", func(t *testing.T) {
		token, exp, err := g.NewResetToken(now)
		require.NoError(t, err)
		assert.Len(t, token, 40)
		raw, err := hex.DecodeString(token)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, len(raw)*8, 128)
		assert.Equal(t, now.Add(time.Hour), exp)
	})

	t.Run("tokens differ", func(t *testing.T) {
		a, _, err := g.NewResetToken(now)
		require.NoError(t, err)
		b, _, err := g.NewResetToken(now)
		require.NoError(t, err)
		assert.NotEqual(t, a, b)
	})
}

func TestCustomTTL(t *testing.T) {
	g := NewTokenGenerator(5*time.Minute, 2*time.Hour)
	now := time.Now()

	_, exp, err := g.NewVerificationCode(now)
	require.NoError(t, err)
	assert.Equal(t, now.Add(5*time.Minute), exp)

	_, exp, err = g.NewResetToken(now)
	require.NoError(t, err)
	assert.Equal(t, now.Add(2*time.Hour), exp)
}

func TestIsUnexpired(t *testing.T) {
	exp := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	assert.True(t, IsUnexpired(&exp, exp.Add(-time.Millisecond)))
	assert.False(t, IsUnexpired(&exp, exp))
	assert.False(t, IsUnexpired(&exp, exp.Add(time.Millisecond)))
	assert.False(t, IsUnexpired(nil, exp))
}
