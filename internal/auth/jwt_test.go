package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/firasmosbehi/microservice-chatapp/internal/domain"
)

const (
	testSecret = "test-secret"
	testIssuer = "chatapp-user-service"
)

func TestJWTVerifier_RoundTrip(t *testing.T) {
	p := domain.Principal{UserID: "u1", DisplayName: "alice"}
	token, err := MintToken(testSecret, testIssuer, p, time.Minute)
	require.NoError(t, err)

	got, err := NewJWTVerifier(testSecret, testIssuer).Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestJWTVerifier_Rejections(t *testing.T) {
	p := domain.Principal{UserID: "u1", DisplayName: "alice"}
	good, err := MintToken(testSecret, testIssuer, p, time.Minute)
	require.NoError(t, err)

	wrongSecret, err := MintToken("other-secret", testIssuer, p, time.Minute)
	require.NoError(t, err)
	wrongIssuer, err := MintToken(testSecret, "someone-else", p, time.Minute)
	require.NoError(t, err)
	expired, err := MintToken(testSecret, testIssuer, p, time.Nanosecond)
	require.NoError(t, err)
	time.Sleep(10 * time.Millisecond)

	v := NewJWTVerifier(testSecret, testIssuer)
	cases := []struct {
		name  string
		token string
	}{
		{"empty token", ""},
		{"garbage", "not.a.jwt"},
		{"wrong secret", wrongSecret},
		{"wrong issuer", wrongIssuer},
		{"expired", expired},
		{"tampered", good[:len(good)-2] + "xx"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := v.Verify(context.Background(), tc.token)
			assert.ErrorIs(t, err, domain.ErrUnauthenticated)
		})
	}
}

func TestJWTVerifier_SubjectFallback(t *testing.T) {
	// Tokens minted without the custom user_id claim still resolve via sub.
	p := domain.Principal{UserID: "u1"}
	token, err := MintToken(testSecret, testIssuer, p, time.Minute)
	require.NoError(t, err)

	got, err := NewJWTVerifier(testSecret, testIssuer).Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, domain.UserID("u1"), got.UserID)
	assert.Equal(t, "u1", got.DisplayName, "display name defaults to the user id")
}

func TestJWTVerifier_TruncatesLongDisplayName(t *testing.T) {
	long := strings.Repeat("x", domain.MaxDisplayNameLen+20)
	token, err := MintToken(testSecret, testIssuer, domain.Principal{UserID: "u1", DisplayName: long}, time.Minute)
	require.NoError(t, err)

	got, err := NewJWTVerifier(testSecret, testIssuer).Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Len(t, got.DisplayName, domain.MaxDisplayNameLen)
}

func TestMintToken_RequiresPositiveTTL(t *testing.T) {
	_, err := MintToken(testSecret, testIssuer, domain.Principal{UserID: "u1"}, 0)
	assert.Error(t, err)
}
