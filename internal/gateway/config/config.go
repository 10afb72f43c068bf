package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	Port        string
	Env         string
	DatabaseURL string
	// AdminUserIDs are the verified user ids allowed on /api/admin.
	AdminUserIDs    []string
	SessionCapacity int
	CatalogCacheTTL time.Duration
	LLM             LLMConfig
	Render          RenderConfig
	Shop            ShopConfig
}

type LLMConfig struct {
	Fake       bool
	APIKey     string
	TextModel  string
	ImageModel string
	RPS        float64
	Burst      int
}

type RenderConfig struct {
	Enabled   bool
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// CanUseS3 reports whether the object store is configured well enough to dial.
func (c RenderConfig) CanUseS3() bool {
	return c.Enabled && c.Endpoint != "" && c.AccessKey != "" && c.SecretKey != "" && c.Bucket != ""
}

type ShopConfig struct {
	Currency         string
	PointValue       decimal.Decimal
	EarnRate         decimal.Decimal
	ShippingStandard decimal.Decimal
	ShippingExpress  decimal.Decimal
}

func (c Config) IsLocal() bool {
	return strings.EqualFold(c.Env, "local")
}

func Load() (*Config, error) {
	_ = godotenv.Load()
	return load(os.Args[1:], os.Getenv)
}

func load(args []string, getenv func(string) string) (*Config, error) {
	fs := flag.NewFlagSet("gateway", flag.ContinueOnError)
	port := fs.String("port", ":8081", "server port")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	env := func(key string) string { return strings.TrimSpace(getenv(key)) }
	if envPort := env("PORT"); envPort != "" {
		if strings.HasPrefix(envPort, ":") {
			*port = envPort
		} else {
			*port = ":" + envPort
		}
	}
	appEnv := firstNonEmpty(env("APP_ENV"), "local")

	p := parser{env: env}
	cfg := &Config{
		Port:            *port,
		Env:             appEnv,
		DatabaseURL:     env("DATABASE_URL"),
		AdminUserIDs:    splitList(env("ADMIN_USER_IDS")),
		SessionCapacity: p.int("SESSION_CAPACITY", 1024),
		CatalogCacheTTL: p.duration("CATALOG_CACHE_TTL", 30*time.Second),
		LLM: LLMConfig{
			Fake:       p.bool("LLM_FAKE", false),
			APIKey:     env("GEMINI_API_KEY"),
			TextModel:  firstNonEmpty(env("GEMINI_TEXT_MODEL"), "gemini-2.5-flash"),
			ImageModel: firstNonEmpty(env("GEMINI_IMAGE_MODEL"), "gemini-2.5-flash-image"),
			RPS:        p.float("LLM_RPS", 2),
			Burst:      p.int("LLM_BURST", 4),
		},
		Render: loadRenderConfig(appEnv, env, &p),
		Shop: ShopConfig{
			Currency:         strings.ToUpper(firstNonEmpty(env("CURRENCY"), "EUR")),
			PointValue:       p.decimal("LOYALTY_POINT_VALUE", "0.01"),
			EarnRate:         p.decimal("LOYALTY_EARN_RATE", "1"),
			ShippingStandard: p.decimal("SHIPPING_STANDARD", "4.90"),
			ShippingExpress:  p.decimal("SHIPPING_EXPRESS", "9.90"),
		},
	}
	if err := p.err(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadRenderConfig(appEnv string, env func(string) string, p *parser) RenderConfig {
	local := strings.EqualFold(appEnv, "local")
	endpoint := env("RENDER_S3_ENDPOINT")
	if local {
		endpoint = firstNonEmpty(endpoint, "minio:9000")
	}
	useSSL := !local
	if env("RENDER_S3_USE_SSL") != "" {
		useSSL = p.bool("RENDER_S3_USE_SSL", useSSL)
	}
	return RenderConfig{
		Enabled:   local || endpoint != "",
		Endpoint:  endpoint,
		Region:    firstNonEmpty(env("RENDER_S3_REGION"), "us-east-1"),
		AccessKey: firstNonEmpty(env("RENDER_S3_ACCESS_KEY"), env("MINIO_ROOT_USER")),
		SecretKey: firstNonEmpty(env("RENDER_S3_SECRET_KEY"), env("MINIO_ROOT_PASSWORD")),
		Bucket:    firstNonEmpty(env("RENDER_S3_BUCKET"), "charmstudio-renders"),
		UseSSL:    useSSL,
	}
}

// parser reads typed values and remembers every malformed one, so a bad
// price or rate never falls back to a default silently.
type parser struct {
	env  func(string) string
	errs []error
}

func (p *parser) fail(key, raw string, err error) {
	p.errs = append(p.errs, fmt.Errorf("%s=%q: %w", key, raw, err))
}

func (p *parser) err() error { return errors.Join(p.errs...) }

func (p *parser) int(key string, def int) int {
	raw := p.env(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err == nil && v <= 0 {
		err = errors.New("must be positive")
	}
	if err != nil {
		p.fail(key, raw, err)
		return def
	}
	return v
}

func (p *parser) float(key string, def float64) float64 {
	raw := p.env(key)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err == nil && v <= 0 {
		err = errors.New("must be positive")
	}
	if err != nil {
		p.fail(key, raw, err)
		return def
	}
	return v
}

func (p *parser) bool(key string, def bool) bool {
	raw := p.env(key)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		p.fail(key, raw, err)
		return def
	}
	return v
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	raw := p.env(key)
	if raw == "" {
		return def
	}
	v, err := time.ParseDuration(raw)
	if err == nil && v < 0 {
		err = errors.New("cannot be negative")
	}
	if err != nil {
		p.fail(key, raw, err)
		return def
	}
	return v
}

func (p *parser) decimal(key, def string) decimal.Decimal {
	raw := firstNonEmpty(p.env(key), def)
	v, err := decimal.NewFromString(raw)
	if err == nil && v.IsNegative() {
		err = errors.New("cannot be negative")
	}
	if err != nil {
		p.fail(key, raw, err)
		return decimal.RequireFromString(def)
	}
	return v
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if v := strings.TrimSpace(part); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
