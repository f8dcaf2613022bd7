package auth_test

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"certflow/internal/auth"
	"certflow/internal/config"
	"certflow/internal/domain"
)

var jwtCfg = config.JWTConfig{Secret: "test-secret", Issuer: "certflow"}

func TestVerify_RoundTrip(t *testing.T) {
	orgID, userID := uuid.New(), uuid.New()
	token, err := auth.Sign(jwtCfg, orgID, userID, auth.RoleReviewer, time.Minute)
	require.NoError(t, err)

	claims, err := auth.NewVerifier(jwtCfg).Verify(token)

	require.NoError(t, err)
	assert.Equal(t, orgID, claims.OrgID)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, auth.RoleReviewer, claims.Role)
}

func TestVerify_Rejects(t *testing.T) {
	orgID, userID := uuid.New(), uuid.New()
	expired, err := auth.Sign(jwtCfg, orgID, userID, auth.RoleAdmin, -time.Minute)
	require.NoError(t, err)
	otherSecret, err := auth.Sign(config.JWTConfig{Secret: "other", Issuer: "certflow"}, orgID, userID, auth.RoleAdmin, time.Minute)
	require.NoError(t, err)
	otherIssuer, err := auth.Sign(config.JWTConfig{Secret: "test-secret", Issuer: "someone-else"}, orgID, userID, auth.RoleAdmin, time.Minute)
	require.NoError(t, err)
	noOrg, err := auth.Sign(jwtCfg, uuid.Nil, userID, auth.RoleAdmin, time.Minute)
	require.NoError(t, err)

	v := auth.NewVerifier(jwtCfg)
	for name, token := range map[string]string{
		"expired":      expired,
		"wrong secret": otherSecret,
		"wrong issuer": otherIssuer,
		"no org":       noOrg,
		"garbage":      "not.a.token",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := v.Verify(token)
			assert.True(t, errors.Is(err, domain.ErrUnauthorized))
		})
	}
}
