package kernel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeIdentityTokenRoundTrip(t *testing.T) {
	header := EncodeIdentityToken(123, "abc123")
	tok, err := DecodeIdentityToken(header)
	require.NoError(t, err)
	assert.Equal(t, int64(123), tok.UserID)
	assert.Equal(t, "abc123", tok.ScopesHash)
}

func TestDecodeIdentityTokenDefaultScopesHash(t *testing.T) {
	header := EncodeIdentityToken(1, "")
	tok, err := DecodeIdentityToken(header)
	require.NoError(t, err)
	assert.Equal(t, "default_scopes_hash", tok.ScopesHash)
}

func TestDecodeIdentityTokenRejectsMissingPrefix(t *testing.T) {
	_, err := DecodeIdentityToken("not-a-bearer-token")
	require.Error(t, err)
}

func TestDecodeIdentityTokenRejectsBadBase64(t *testing.T) {
	_, err := DecodeIdentityToken("Bearer ***not-base64***")
	require.Error(t, err)
}

func TestDecodeIdentityTokenRejectsMissingFields(t *testing.T) {
	_, err := DecodeIdentityToken("Bearer eyJmb28iOiAiYmFyIn0=")
	require.Error(t, err)
}
