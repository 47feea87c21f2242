package conf

import (
	"encoding/json"
	"fmt"
	"time"
)

// Bootstrap is the root of the configuration tree.
type Bootstrap struct {
	Server    *Server    `json:"server"`
	Data      *Data      `json:"data"`
	Auth      *Auth      `json:"auth"`
	Shortener *Shortener `json:"shortener"`
}

type Server struct {
	Http *Server_HTTP `json:"http"`
	Grpc *Server_GRPC `json:"grpc"`
	// TrustProxyHeaders makes the client IP come from X-Forwarded-For / X-Real-IP.
	TrustProxyHeaders bool `json:"trust_proxy_headers"`
}

type Server_HTTP struct {
	Network string    `json:"network"`
	Addr    string    `json:"addr"`
	Timeout *Duration `json:"timeout"`
}

type Server_GRPC struct {
	Network string    `json:"network"`
	Addr    string    `json:"addr"`
	Timeout *Duration `json:"timeout"`
}

type Data struct {
	Database *Data_Database `json:"database"`
	Redis    *Data_Redis    `json:"redis"`
	// GeoipDatabase is an optional path to a MaxMind country database.
	GeoipDatabase string `json:"geoip_database"`
}

type Data_Database struct {
	// Driver is either "postgres" or "sqlite3".
	Driver       string `json:"driver"`
	Source       string `json:"source"`
	MaxOpenConns int    `json:"max_open_conns"`
	AutoMigrate  bool   `json:"auto_migrate"`
}

type Data_Redis struct {
	Network      string    `json:"network"`
	Addr         string    `json:"addr"`
	Password     string    `json:"password"`
	Db           int       `json:"db"`
	ReadTimeout  *Duration `json:"read_timeout"`
	WriteTimeout *Duration `json:"write_timeout"`
}

type Auth struct {
	JwtSecret string `json:"jwt_secret"`
	Issuer    string `json:"issuer"`
}

type Shortener struct {
	// ReservedWords extends the built-in reserved short codes.
	ReservedWords         []string   `json:"reserved_words"`
	MaxAllocationAttempts int        `json:"max_allocation_attempts"`
	Quota                 *Quota     `json:"quota"`
	RateLimit             *RateLimit `json:"rate_limit"`
	Reconcile             *Reconcile `json:"reconcile"`
}

type Quota struct {
	// DefaultMonthlyLimit applies to organizations without a tier row. Null means unlimited.
	DefaultMonthlyLimit *int64 `json:"default_monthly_limit"`
}

type RateLimit struct {
	Redirect *RateLimitPolicy `json:"redirect"`
	Create   *RateLimitPolicy `json:"create"`
	Auth     *RateLimitPolicy `json:"auth"`
}

// RateLimitPolicy is a fixed window budget. A zero limit disables the policy.
type RateLimitPolicy struct {
	Limit         int64 `json:"limit"`
	WindowSeconds int64 `json:"window_seconds"`
}

func (p *RateLimitPolicy) GetLimit() int64 {
	if p == nil {
		return 0
	}
	return p.Limit
}

func (p *RateLimitPolicy) Window() time.Duration {
	if p == nil || p.WindowSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(p.WindowSeconds) * time.Second
}

type Reconcile struct {
	Interval  *Duration `json:"interval"`
	BatchSize int       `json:"batch_size"`
}

// Duration decodes "1.5s" style strings as well as integer nanoseconds.
type Duration struct {
	time.Duration
}

func NewDuration(d time.Duration) *Duration {
	return &Duration{Duration: d}
}

// AsDuration mirrors durationpb so call sites read the same as with generated config.
func (d *Duration) AsDuration() time.Duration {
	if d == nil {
		return 0
	}
	return d.Duration
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		d.Duration = time.Duration(value)
	case string:
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("conf: invalid duration %q: %w", value, err)
		}
		d.Duration = parsed
	case nil:
		d.Duration = 0
	default:
		return fmt.Errorf("conf: invalid duration %v", v)
	}
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (x *Data) GetDatabase() *Data_Database {
	if x != nil {
		return x.Database
	}
	return nil
}

func (x *Data) GetRedis() *Data_Redis {
	if x != nil {
		return x.Redis
	}
	return nil
}

func (x *Shortener) GetRateLimit() *RateLimit {
	if x != nil && x.RateLimit != nil {
		return x.RateLimit
	}
	return &RateLimit{}
}
