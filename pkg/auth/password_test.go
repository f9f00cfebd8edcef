package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndComparePassword(t *testing.T) {
	hash, err := HashPassword("Str0ngPassw0rd!")
	require.NoError(t, err)
	assert.NotEqual(t, "Str0ngPassw0rd!", hash)

	assert.NoError(t, ComparePassword(hash, "Str0ngPassw0rd!"))
	assert.Error(t, ComparePassword(hash, "wrong"))
}

func TestHashPassword_Empty(t *testing.T) {
	_, err := HashPassword("")
	assert.Error(t, err)
}

func TestValidateStrength(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantOK   bool
	}{
		{"acceptable", "Str0ngPassw0rd!", true},
		{"too short", "Sh0rt!aA", false},
		{"no uppercase", "l0ngpassword!!!!", false},
		{"no lowercase", "L0NGPASSWORD!!!!", false},
		{"no digit", "LongPassword!!!!", false},
		{"no symbol", "LongPassword1234", false},
		{"long enough with all classes", "Xy9$Xy9$Xy9$", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := ValidateStrength(tt.password)
			if tt.wantOK {
				assert.Empty(t, msg)
			} else {
				assert.NotEmpty(t, msg)
			}
		})
	}
}

func TestNeedsReset(t *testing.T) {
	now := time.Now()
	recent := now.Add(-time.Hour)
	future := now.Add(24 * time.Hour)
	past := now.Add(-24 * time.Hour)

	// Never changed: reset required regardless of expiry.
	assert.True(t, NeedsReset(nil, &future, now))
	assert.True(t, NeedsReset(nil, nil, now))

	// Changed and unexpired.
	assert.False(t, NeedsReset(&recent, &future, now))
	assert.False(t, NeedsReset(&recent, nil, now))

	// Expired.
	assert.True(t, NeedsReset(&recent, &past, now))
}
