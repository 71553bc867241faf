package verification

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewToken(t *testing.T) {
	tok, err := NewToken()
	require.NoError(t, err)
	require.Len(t, tok, 64)

	_, err = hex.DecodeString(tok)
	require.NoError(t, err)

	other, err := NewToken()
	require.NoError(t, err)
	require.NotEqual(t, tok, other)
}

func TestLink(t *testing.T) {
	link := Link("https://community.example.com", "abc123")
	require.Equal(t, "https://community.example.com/verify-email?token=abc123", link)
}

func TestEmailBody_ContainsLink(t *testing.T) {
	link := Link("http://localhost:8080", "tok")
	body := EmailBody(link)
	require.Contains(t, body, link)
}
