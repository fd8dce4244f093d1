package redis

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConfigOptions_HostPort(t *testing.T) {
	opts, err := Config{Addr: "localhost:6379", DB: 2, Password: "pw"}.options()
	require.NoError(t, err)
	require.Equal(t, "localhost:6379", opts.Addr)
	require.Equal(t, 2, opts.DB)
	require.Equal(t, "pw", opts.Password)
}

func TestConfigOptions_URL(t *testing.T) {
	opts, err := Config{Addr: "redis://:secret@cache:6380/3", DB: 9}.options()
	require.NoError(t, err)
	require.Equal(t, "cache:6380", opts.Addr)
	require.Equal(t, 3, opts.DB)
	require.Equal(t, "secret", opts.Password)
}

func TestConfigOptions_BadURL(t *testing.T) {
	_, err := Config{Addr: "redis://cache:6380/not-a-db"}.options()
	require.Error(t, err)
}

func TestTokenStoreKey(t *testing.T) {
	s := NewTokenStore(nil)
	require.Equal(t, "token:password_reset:42", s.key("password_reset", "42"))
}
