package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/fathima-sithara/chaty/internal/apperr"
)

func newResolver(t *testing.T) *Resolver {
	t.Helper()
	r, err := NewResolver("test-secret", time.Hour)
	require.NoError(t, err)
	return r
}

func TestNewResolverRequiresSecret(t *testing.T) {
	_, err := NewResolver("", time.Hour)
	require.Error(t, err)
}

func TestResolveRoundTrip(t *testing.T) {
	r := newResolver(t)
	uid := primitive.NewObjectID()

	token, exp, err := r.Issue(uid.Hex())
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	for _, header := range []string{"Bearer " + token, "bearer " + token, token} {
		id, err := r.Resolve(header)
		require.NoError(t, err, header)
		assert.Equal(t, uid, id.OID)
		assert.Equal(t, uid.Hex(), id.ID)
	}
}

func TestResolveMissingHeader(t *testing.T) {
	r := newResolver(t)
	for _, h := range []string{"", "   ", "Bearer ", "bearer", "  BEARER  "} {
		_, err := r.Resolve(h)
		assert.True(t, apperr.Is(err, apperr.Unauthenticated), "header %q", h)
	}
}

func TestResolveNormalizesSubject(t *testing.T) {
	r := newResolver(t)
	uid := primitive.NewObjectID()

	token, _, err := r.Issue(strings.ToUpper(uid.Hex()))
	require.NoError(t, err)

	id, err := r.Resolve("Bearer " + token)
	require.NoError(t, err)
	assert.Equal(t, uid, id.OID)
	assert.Equal(t, uid.Hex(), id.ID)
	assert.Equal(t, id.OID.Hex(), id.ID)
}

func TestResolveRejectsBadTokens(t *testing.T) {
	r := newResolver(t)
	other, err := NewResolver("other-secret", time.Hour)
	require.NoError(t, err)
	foreign, _, err := other.Issue(primitive.NewObjectID().Hex())
	require.NoError(t, err)

	badSubject, _, err := r.Issue("not-an-object-id")
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{UserID: primitive.NewObjectID().Hex()}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	cases := map[string]string{
		"garbage":      "Bearer abc.def.ghi",
		"wrong secret": "Bearer " + foreign,
		"bad subject":  "Bearer " + badSubject,
		"alg none":     "Bearer " + none,
	}
	for name, header := range cases {
		_, err := r.Resolve(header)
		assert.True(t, apperr.Is(err, apperr.InvalidCredential), name)
	}
}

func TestResolveExpired(t *testing.T) {
	r := newResolver(t)
	r.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, _, err := r.Issue(primitive.NewObjectID().Hex())
	require.NoError(t, err)

	r.now = time.Now
	_, err = r.Resolve("Bearer " + token)
	require.True(t, apperr.Is(err, apperr.InvalidCredential))
	assert.Equal(t, "token expired", apperr.Message(err))
}

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("s3cret", 4)
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret", hash)
	assert.True(t, CheckPassword(hash, "s3cret"))
	assert.False(t, CheckPassword(hash, "wrong"))
}
