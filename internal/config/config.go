// Package config holds the client configuration and its loading from flags,
// environment variables and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/1ureka/abxclient/internal/transport"
)

// EnvPrefix prefixes every environment variable, e.g. ABX_HOST.
const EnvPrefix = "ABX"

// Config stores all parameters of one client run.
type Config struct {
	Host      string           `mapstructure:"host"`
	Port      int              `mapstructure:"port"`
	Transport transport.Scheme `mapstructure:"transport"`
	WSPath    string           `mapstructure:"ws_path"`

	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	Timeout      time.Duration `mapstructure:"timeout"` // whole run, 0 = unlimited

	ReconnectPerResend bool `mapstructure:"resend_reconnect"`
	MaxGaps            int  `mapstructure:"max_gaps"` // 0 = unlimited

	Output      string      `mapstructure:"output"` // JSON path, "-" for stdout, "" to skip
	Table       bool        `mapstructure:"table"`
	MetricsFile string      `mapstructure:"metrics_file"`
	Redis       RedisConfig `mapstructure:"redis"`

	Debug bool `mapstructure:"debug"`
}

// RedisConfig enables the Redis sink when Addr is set.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Key      string        `mapstructure:"key"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// Address returns host:port.
func (c *Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// TransportOptions returns the per-connection timeouts.
func (c *Config) TransportOptions() transport.Options {
	return transport.Options{
		DialTimeout:  c.DialTimeout,
		ReadTimeout:  c.ReadTimeout,
		WriteTimeout: c.WriteTimeout,
	}
}

// Dialer builds the transport dialer for the configured server.
func (c *Config) Dialer() *transport.Dialer {
	return &transport.Dialer{
		Addr:    c.Address(),
		Scheme:  c.Transport,
		WSPath:  c.WSPath,
		Options: c.TransportOptions(),
	}
}

// RegisterFlags declares every setting on fs. Host and port have no
// defaults: the server address is always supplied by the user.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("host", "", "feed server host (required)")
	fs.Int("port", 0, "feed server port, 1~65535 (required)")
	fs.String("transport", string(transport.SchemeTCP), "byte stream transport: tcp or ws")
	fs.String("ws-path", "/", "request path when --transport=ws")

	fs.Duration("dial-timeout", 5*time.Second, "timeout for establishing a connection")
	fs.Duration("read-timeout", 10*time.Second, "timeout for each read (0 disables)")
	fs.Duration("write-timeout", 5*time.Second, "timeout for each write (0 disables)")
	fs.Duration("timeout", 0, "timeout for the whole run (0 disables)")
	fs.Bool("resend-reconnect", false, "open a new connection for every resend request")
	fs.Int("max-gaps", 100000, "abort when more sequences than this are missing (0 disables)")

	fs.StringP("output", "o", "output.json", `JSON output path ("-" for stdout, "" to skip)`)
	fs.Bool("table", false, "print the packets as a table")
	fs.String("metrics-file", "", "write Prometheus metrics to this textfile")

	fs.String("redis-addr", "", "also store packets in this Redis server")
	fs.String("redis-password", "", "Redis password")
	fs.Int("redis-db", 0, "Redis database number")
	fs.String("redis-key", "abx:packets", "Redis key for the packet index")
	fs.Duration("redis-ttl", 0, "expiry for stored packets (0 keeps them)")

	fs.Bool("debug", false, "enable debug logging")
}

// flagKeys maps flag names onto nested config keys.
var flagKeys = map[string]string{
	"redis-addr":     "redis.addr",
	"redis-password": "redis.password",
	"redis-db":       "redis.db",
	"redis-key":      "redis.key",
	"redis-ttl":      "redis.ttl",
}

// Load resolves the configuration from (highest first) explicitly set flags,
// ABX_* environment variables, the .env files given (or ./.env when none),
// and flag defaults. It does not validate; call Validate.
func Load(fs *pflag.FlagSet, envFiles ...string) (*Config, error) {
	if err := loadDotEnv(envFiles...); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	var bindErr error
	fs.VisitAll(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok {
			key = strings.ReplaceAll(f.Name, "-", "_")
		}
		if err := v.BindPFlag(key, f); err != nil {
			bindErr = errors.Join(bindErr, err)
		}
		// nested keys are not picked up by AutomaticEnv during Unmarshal
		if err := v.BindEnv(key); err != nil {
			bindErr = errors.Join(bindErr, err)
		}
	})
	if bindErr != nil {
		return nil, fmt.Errorf("failed to bind flags: %w", bindErr)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	return &cfg, nil
}

// loadDotEnv copies .env entries into the process environment without
// overriding variables that are already set. A missing default file is fine.
func loadDotEnv(files ...string) error {
	if len(files) == 0 {
		if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to read .env: %w", err)
		}
		return nil
	}
	if err := godotenv.Load(files...); err != nil {
		return fmt.Errorf("failed to read env file: %w", err)
	}
	return nil
}

// Validate reports every problem with the configuration at once.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Host) == "" {
		errs = append(errs, errors.New("missing host"))
	}
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid port %d: must be 1~65535", c.Port))
	}
	switch c.Transport {
	case transport.SchemeTCP, transport.SchemeWebSocket:
	default:
		errs = append(errs, fmt.Errorf("invalid transport %q: must be tcp or ws", c.Transport))
	}
	for name, d := range map[string]time.Duration{
		"dial-timeout":  c.DialTimeout,
		"read-timeout":  c.ReadTimeout,
		"write-timeout": c.WriteTimeout,
		"timeout":       c.Timeout,
		"redis-ttl":     c.Redis.TTL,
	} {
		if d < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative", name))
		}
	}
	if c.MaxGaps < 0 {
		errs = append(errs, errors.New("max-gaps must not be negative"))
	}
	if c.Redis.Addr != "" && c.Redis.Key == "" {
		errs = append(errs, errors.New("redis-key must be set when redis-addr is"))
	}
	return errors.Join(errs...)
}
