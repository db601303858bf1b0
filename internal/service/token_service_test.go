package service

import (
	"testing"
	"time"

	"marketplace-settlement/internal/core/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testJWTSecret = "test-jwt-secret-key-for-unit-tests"

func TestJWTTokenService_GenerateAndValidate(t *testing.T) {
	svc := NewJWTTokenService(testJWTSecret, "test-issuer")
	principal := domain.Principal{UserID: uuid.New(), Role: domain.RoleSeller}

	tokenStr, err := svc.Generate(principal, time.Hour)
	require.NoError(t, err)
	assert.NotEmpty(t, tokenStr)

	got, err := svc.Validate(tokenStr)
	require.NoError(t, err)
	assert.Equal(t, principal, *got)
}

func TestJWTTokenService_ExpiredToken(t *testing.T) {
	svc := NewJWTTokenService(testJWTSecret, "test-issuer")

	tokenStr, err := svc.Generate(domain.Principal{UserID: uuid.New(), Role: domain.RoleBuyer}, -time.Hour)
	require.NoError(t, err)

	_, err = svc.Validate(tokenStr)
	assert.Error(t, err, "expired token should fail validation")
}

func TestJWTTokenService_InvalidSignature(t *testing.T) {
	svc1 := NewJWTTokenService("secret-1", "issuer")
	svc2 := NewJWTTokenService("secret-2", "issuer")

	tokenStr, err := svc1.Generate(domain.Principal{UserID: uuid.New(), Role: domain.RoleAdmin}, time.Hour)
	require.NoError(t, err)

	_, err = svc2.Validate(tokenStr)
	assert.Error(t, err, "token signed with different secret should fail")
}

func TestJWTTokenService_WrongIssuer(t *testing.T) {
	issued := NewJWTTokenService(testJWTSecret, "someone-else")
	svc := NewJWTTokenService(testJWTSecret, "marketplace-auth")

	tokenStr, err := issued.Generate(domain.Principal{UserID: uuid.New(), Role: domain.RoleSeller}, time.Hour)
	require.NoError(t, err)

	_, err = svc.Validate(tokenStr)
	assert.Error(t, err)
}

func TestJWTTokenService_RejectsBadClaims(t *testing.T) {
	svc := NewJWTTokenService(testJWTSecret, "")

	sign := func(claims principalClaims) string {
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testJWTSecret))
		require.NoError(t, err)
		return s
	}
	exp := jwt.NewNumericDate(time.Now().Add(time.Hour))

	_, err := svc.Validate(sign(principalClaims{Role: "superuser", RegisteredClaims: jwt.RegisteredClaims{Subject: uuid.NewString(), ExpiresAt: exp}}))
	assert.Error(t, err, "unknown role")

	_, err = svc.Validate(sign(principalClaims{Role: "seller", RegisteredClaims: jwt.RegisteredClaims{Subject: "user-42", ExpiresAt: exp}}))
	assert.Error(t, err, "subject must be a uuid")
}

func TestJWTTokenService_RejectsOtherAlgorithms(t *testing.T) {
	svc := NewJWTTokenService(testJWTSecret, "")

	tokenStr, err := jwt.NewWithClaims(jwt.SigningMethodHS512, principalClaims{
		Role:             "admin",
		RegisteredClaims: jwt.RegisteredClaims{Subject: uuid.NewString()},
	}).SignedString([]byte(testJWTSecret))
	require.NoError(t, err)

	_, err = svc.Validate(tokenStr)
	assert.Error(t, err)
}

func TestJWTTokenService_InvalidTokenString(t *testing.T) {
	svc := NewJWTTokenService(testJWTSecret, "issuer")

	_, err := svc.Validate("not.a.valid.jwt")
	assert.Error(t, err)

	_, err = svc.Validate("")
	assert.Error(t, err)
}
