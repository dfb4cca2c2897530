package rpc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waddlebot/core/pkg/authn"
)

// Engine-backed success paths require a live Postgres pool and are not
// tested here; pkg/storage's integration tests cover only the repository
// underneath (RecordEvent's clamp and dedupe). These cover the
// auth-boundary behavior, which never touches the engine.

func TestServerRecordEventRejectsInvalidToken(t *testing.T) {
	verifier := authn.NewTokenVerifier("shared-secret")
	srv := NewServer(nil, verifier)

	resp, err := srv.RecordEvent(context.Background(), &RecordEventRequest{Token: "not-a-jwt"})
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "authentication failed")
}

func TestServerGetScoreRejectsInvalidToken(t *testing.T) {
	verifier := authn.NewTokenVerifier("shared-secret")
	srv := NewServer(nil, verifier)

	resp, err := srv.GetScore(context.Background(), &GetScoreRequest{Token: ""})
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "authentication failed")
}

func TestServerRejectsTokenFromWrongSecret(t *testing.T) {
	issuer := authn.NewTokenIssuer("issuer-secret", time.Minute)
	verifier := authn.NewTokenVerifier("different-secret")
	srv := NewServer(nil, verifier)

	token, err := issuer.Issue("router")
	require.NoError(t, err)

	resp, err := srv.GetScore(context.Background(), &GetScoreRequest{Token: token})
	require.NoError(t, err)
	assert.False(t, resp.Success)
}

func TestJSONCodecRoundTrip(t *testing.T) {
	c := jsonCodec{}
	assert.Equal(t, "json", c.Name())

	req := &GetScoreRequest{Token: "t", CommunityID: "c1", UserID: "u1"}
	data, err := c.Marshal(req)
	require.NoError(t, err)

	var out GetScoreRequest
	require.NoError(t, c.Unmarshal(data, &out))
	assert.Equal(t, *req, out)
}
