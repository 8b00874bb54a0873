package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap/zaptest"

	"fhir-gateway/internal/interfaces/mock"
	"fhir-gateway/internal/models"
)

func newFileStore(t *testing.T) (*Store, string) {
	dir := filepath.Join(t.TempDir(), "session")
	kv, err := NewFileKV(dir)
	require.NoError(t, err)
	return NewStore(kv, zaptest.NewLogger(t)), dir
}

func TestFileKV_RoundTrip(t *testing.T) {
	kv, err := NewFileKV(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	_, found, err := kv.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, kv.Put(ctx, "k", []byte(`{"a":1}`)))
	require.NoError(t, kv.Put(ctx, "k", []byte(`{"a":2}`)))

	data, found, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, `{"a":2}`, string(data))

	require.NoError(t, kv.Delete(ctx, "k"))
	require.NoError(t, kv.Delete(ctx, "k"))
	_, found, err = kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestFileKV_NoTempFilesLeft(t *testing.T) {
	dir := t.TempDir()
	kv, err := NewFileKV(dir)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, kv.Put(context.Background(), "k", []byte(`{"v":1}`)))
		}()
	}
	wg.Wait()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "k.json", entries[0].Name())
}

func TestStore_Credentials(t *testing.T) {
	store, dir := newFileStore(t)
	ctx := context.Background()

	creds, err := store.LoadCredentials(ctx)
	require.NoError(t, err)
	assert.Nil(t, creds)

	saved := &models.Credentials{
		AccessToken:  "AT1",
		TokenType:    "Bearer",
		ExpiresIn:    3600,
		RefreshToken: "RT1",
		Expiry:       time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.SaveCredentials(ctx, saved))

	raw, err := os.ReadFile(filepath.Join(dir, CredentialsKey+".json"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"access_token":"AT1"`)

	loaded, err := store.LoadCredentials(ctx)
	require.NoError(t, err)
	assert.Equal(t, saved.AccessToken, loaded.AccessToken)
	assert.Equal(t, saved.RefreshToken, loaded.RefreshToken)
	assert.True(t, saved.Expiry.Equal(loaded.Expiry))

	require.NoError(t, store.DeleteCredentials(ctx))
	loaded, err = store.LoadCredentials(ctx)
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestStore_CorruptedCredentials(t *testing.T) {
	store, dir := newFileStore(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, CredentialsKey+".json"), []byte("{"), 0o600))

	_, err := store.LoadCredentials(context.Background())
	assert.Error(t, err)
}

func TestLayeredSource(t *testing.T) {
	store, _ := newFileStore(t)
	ctx := context.Background()
	base := models.Settings{
		BaseURL:       "https://env.example.test",
		FirmPrefix:    "/firm1",
		APIKey:        "env-key",
		OAuthEndpoint: "/oauth2/grant",
		Username:      "env-user",
		Password:      "env-pass",
	}
	source := NewLayeredSource(base, store)

	settings, err := source.Settings(ctx)
	require.NoError(t, err)
	assert.Equal(t, base, *settings)

	require.NoError(t, store.SaveSettings(ctx, &models.Settings{
		BaseURL:  "https://saved.example.test",
		APIKey:   "saved-key",
		Username: "saved-user",
	}))

	settings, err = source.Settings(ctx)
	require.NoError(t, err)
	assert.Equal(t, "https://saved.example.test", settings.BaseURL)
	assert.Equal(t, "saved-key", settings.APIKey)
	assert.Equal(t, "saved-user", settings.Username)
	assert.Equal(t, "/firm1", settings.FirmPrefix)
	assert.Equal(t, "/oauth2/grant", settings.OAuthEndpoint)
	assert.Equal(t, "env-pass", settings.Password)

	require.NoError(t, store.DeleteSettings(ctx))
	settings, err = source.Settings(ctx)
	require.NoError(t, err)
	assert.Equal(t, base, *settings)
}

func TestKeyDBKV(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mock.NewMockKeyDbClient(ctrl)
	kv := NewKeyDBKV(client, "gw:", time.Second)
	ctx := context.Background()

	client.EXPECT().Get(gomock.Any(), "gw:session:oauth_tokens").Return(redis.NewStringResult("", redis.Nil))
	_, found, err := kv.Get(ctx, "oauth_tokens")
	require.NoError(t, err)
	assert.False(t, found)

	client.EXPECT().Set(gomock.Any(), "gw:session:oauth_tokens", []byte(`{"a":1}`), time.Duration(0)).
		Return(redis.NewStatusResult("OK", nil))
	require.NoError(t, kv.Put(ctx, "oauth_tokens", []byte(`{"a":1}`)))

	client.EXPECT().Get(gomock.Any(), "gw:session:oauth_tokens").Return(redis.NewStringResult(`{"a":1}`, nil))
	data, found, err := kv.Get(ctx, "oauth_tokens")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, `{"a":1}`, string(data))

	client.EXPECT().Del(gomock.Any(), "gw:session:oauth_tokens").Return(redis.NewIntResult(1, nil))
	require.NoError(t, kv.Delete(ctx, "oauth_tokens"))
}

func TestKeyDBKV_Errors(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mock.NewMockKeyDbClient(ctrl)
	kv := NewKeyDBKV(client, "gw:", time.Second)
	ctx := context.Background()
	boom := errors.New("connection reset")

	client.EXPECT().Get(gomock.Any(), gomock.Any()).Return(redis.NewStringResult("", boom))
	_, _, err := kv.Get(ctx, "k")
	assert.ErrorIs(t, err, boom)

	client.EXPECT().Set(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(redis.NewStatusResult("", boom))
	assert.ErrorIs(t, kv.Put(ctx, "k", []byte("{}")), boom)

	client.EXPECT().Del(gomock.Any(), gomock.Any()).Return(redis.NewIntResult(0, boom))
	assert.ErrorIs(t, kv.Delete(ctx, "k"), boom)
}

func TestStore_OverKeyDB(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mock.NewMockKeyDbClient(ctrl)
	store := NewStore(NewKeyDBKV(client, "gw:", time.Second), zaptest.NewLogger(t))

	client.EXPECT().Get(gomock.Any(), "gw:session:api_credentials").
		Return(redis.NewStringResult(`{"baseUrl":"https://saved.example.test","apiKey":"k"}`, nil))

	settings, err := store.LoadSettings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://saved.example.test", settings.BaseURL)
	assert.Equal(t, "k", settings.APIKey)
}
