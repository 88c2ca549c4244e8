package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1ureka/abxclient/internal/transport"
)

func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse(args))
	return fs
}

// emptyEnvFile keeps Load from picking up a stray ./.env.
func emptyEnvFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "empty.env")
	require.NoError(t, os.WriteFile(path, nil, 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(newFlags(t, "--host", "127.0.0.1", "--port", "3000"), emptyEnvFile(t))
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Host)
	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, transport.SchemeTCP, cfg.Transport)
	assert.Equal(t, 10*time.Second, cfg.ReadTimeout)
	assert.Equal(t, 5*time.Second, cfg.DialTimeout)
	assert.Equal(t, time.Duration(0), cfg.Timeout)
	assert.Equal(t, "output.json", cfg.Output)
	assert.Equal(t, "abx:packets", cfg.Redis.Key)
	assert.Equal(t, 100000, cfg.MaxGaps)
	assert.Empty(t, cfg.Redis.Addr)
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, "127.0.0.1:3000", cfg.Address())
}

func TestLoadNoAddressDefaults(t *testing.T) {
	cfg, err := Load(newFlags(t), emptyEnvFile(t))
	require.NoError(t, err)

	assert.Empty(t, cfg.Host)
	assert.Zero(t, cfg.Port)

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing host")
	assert.Contains(t, err.Error(), "invalid port 0")
}

func TestLoadEnvironment(t *testing.T) {
	t.Setenv("ABX_HOST", "feed.example")
	t.Setenv("ABX_PORT", "4000")
	t.Setenv("ABX_READ_TIMEOUT", "2s")
	t.Setenv("ABX_TRANSPORT", "ws")
	t.Setenv("ABX_REDIS_ADDR", "localhost:6379")
	t.Setenv("ABX_REDIS_DB", "3")
	t.Setenv("ABX_MAX_GAPS", "50")

	cfg, err := Load(newFlags(t), emptyEnvFile(t))
	require.NoError(t, err)

	assert.Equal(t, "feed.example", cfg.Host)
	assert.Equal(t, 4000, cfg.Port)
	assert.Equal(t, 2*time.Second, cfg.ReadTimeout)
	assert.Equal(t, transport.SchemeWebSocket, cfg.Transport)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 3, cfg.Redis.DB)
	assert.Equal(t, 50, cfg.MaxGaps)
}

func TestLoadFlagsOverrideEnvironment(t *testing.T) {
	t.Setenv("ABX_HOST", "from-env")
	t.Setenv("ABX_PORT", "4000")

	cfg, err := Load(newFlags(t, "--port", "3000", "--redis-key", "custom"), emptyEnvFile(t))
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Host)
	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, "custom", cfg.Redis.Key)
}

func TestLoadDotEnvFile(t *testing.T) {
	// register restore, then clear so godotenv may set them
	for _, k := range []string{"ABX_HOST", "ABX_PORT", "ABX_TIMEOUT"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	path := filepath.Join(t.TempDir(), "client.env")
	require.NoError(t, os.WriteFile(path, []byte("ABX_HOST=dotenv.local\nABX_PORT=3100\nABX_TIMEOUT=1m\n"), 0o644))

	cfg, err := Load(newFlags(t), path)
	require.NoError(t, err)

	assert.Equal(t, "dotenv.local", cfg.Host)
	assert.Equal(t, 3100, cfg.Port)
	assert.Equal(t, time.Minute, cfg.Timeout)
}

func TestLoadMissingEnvFile(t *testing.T) {
	_, err := Load(newFlags(t), filepath.Join(t.TempDir(), "nope.env"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{Host: "localhost", Port: 3000, Transport: transport.SchemeTCP}
	}

	testCases := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"port too large", func(c *Config) { c.Port = 70000 }, "invalid port 70000"},
		{"blank host", func(c *Config) { c.Host = "  " }, "missing host"},
		{"bad transport", func(c *Config) { c.Transport = "udp" }, `invalid transport "udp"`},
		{"negative timeout", func(c *Config) { c.ReadTimeout = -time.Second }, "read-timeout must not be negative"},
		{"negative max gaps", func(c *Config) { c.MaxGaps = -1 }, "max-gaps must not be negative"},
		{"redis without key", func(c *Config) { c.Redis.Addr = "localhost:6379" }, "redis-key must be set"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := base()
			tc.mutate(c)
			err := c.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestDialer(t *testing.T) {
	c := &Config{
		Host: "::1", Port: 3000,
		Transport: transport.SchemeWebSocket, WSPath: "/feed",
		ReadTimeout: time.Second,
	}
	d := c.Dialer()
	assert.Equal(t, "[::1]:3000", d.Addr)
	assert.Equal(t, transport.SchemeWebSocket, d.Scheme)
	assert.Equal(t, time.Second, d.Options.ReadTimeout)
	assert.Equal(t, "ws://[::1]:3000/feed", d.URL())
}
