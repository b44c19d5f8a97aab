package usecases

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOperatorTokenRoundTrip(t *testing.T) {
	auth := NewOperatorAuth("s3cret")

	token, err := auth.Issue("ops", RoleTenant, 4, time.Hour)
	require.NoError(t, err)

	claims, err := auth.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "ops", claims.Subject)
	assert.True(t, claims.CanAccess(4))
	assert.False(t, claims.CanAccess(5))
}

func TestOperatorTokenRejected(t *testing.T) {
	auth := NewOperatorAuth("s3cret")
	token, err := auth.Issue("ops", RoleAdmin, 0, time.Hour)
	require.NoError(t, err)

	_, err = NewOperatorAuth("other").Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	auth.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = auth.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = auth.Verify("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestIssueValidatesRole(t *testing.T) {
	auth := NewOperatorAuth("s3cret")

	_, err := auth.Issue("ops", "root", 0, time.Hour)
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = auth.Issue("ops", RoleTenant, 0, time.Hour)
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = NewOperatorAuth("").Issue("ops", RoleAdmin, 0, time.Hour)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
