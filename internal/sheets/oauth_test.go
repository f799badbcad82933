package sheets

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestSaveToken_LoadToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "token.json")
	token := &oauth2.Token{
		AccessToken:  "access",
		RefreshToken: "refresh",
		TokenType:    "Bearer",
		Expiry:       time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	require.NoError(t, SaveToken(path, token))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := LoadToken(path)
	require.NoError(t, err)
	assert.Equal(t, "refresh", loaded.RefreshToken)
	assert.True(t, token.Expiry.Equal(loaded.Expiry))
}

func TestLoadToken_Missing(t *testing.T) {
	_, err := LoadToken(filepath.Join(t.TempDir(), "absent.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestGetOrCreateToken_UsesSavedToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	require.NoError(t, SaveToken(path, &oauth2.Token{RefreshToken: "saved"}))

	announced := false
	token, err := GetOrCreateToken(context.Background(), OAuth2Config{TokenFile: path}, func(string) { announced = true })
	require.NoError(t, err)
	assert.Equal(t, "saved", token.RefreshToken)
	assert.False(t, announced)
}

func TestAuthenticateOAuth2Interactive_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var url string
	_, err := AuthenticateOAuth2Interactive(ctx, OAuth2Config{
		ClientID:     "client",
		ClientSecret: "secret",
		CallbackAddr: "127.0.0.1:0",
	}, func(u string) {
		url = u
		cancel()
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Contains(t, url, "client_id=client")
	assert.Contains(t, url, "access_type=offline")
}
