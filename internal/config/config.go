package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig
	DB         DBConfig
	JWT        JWTConfig
	S3         S3Config
	Log        LogConfig
	Redis      RedisConfig
	Cache      CacheConfig
	RateLimit  RateLimitConfig
	Extraction ExtractionConfig
	Layout     LayoutConfig
	Vision     VisionConfig
	Pattern    PatternConfig
	Risk       RiskConfig
	Email      EmailConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	Environment  string        `mapstructure:"environment"`
	// AllowedOrigins lists browser origins accepted by the CORS middleware.
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// DBConfig holds PostgreSQL connection settings.
type DBConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxOpen  int    `mapstructure:"max_open"`
	MaxIdle  int    `mapstructure:"max_idle"`
}

// DSN returns the PostgreSQL connection string.
func (d *DBConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// JWTConfig holds settings for verifying caller tokens.
type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Issuer string `mapstructure:"issuer"`
}

// S3Config holds AWS S3 settings.
type S3Config struct {
	Region        string `mapstructure:"region"`
	Bucket        string `mapstructure:"bucket"`
	Endpoint      string `mapstructure:"endpoint"`
	AccessKey     string `mapstructure:"access_key"`
	SecretKey     string `mapstructure:"secret_key"`
	PresignExpiry int64  `mapstructure:"presign_expiry"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// RedisConfig holds the Redis connection used by the cache and rate limiter.
// An empty Addr selects the in-process implementations.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// CacheConfig holds TTLs for cached lookups.
type CacheConfig struct {
	RulesTTL       time.Duration `mapstructure:"rules_ttl"`
	ActiveModelTTL time.Duration `mapstructure:"active_model_ttl"`
}

// RateLimitConfig holds fixed window limits for operator-triggered actions.
type RateLimitConfig struct {
	Window           time.Duration `mapstructure:"window"`
	AnalysisRequests int           `mapstructure:"analysis_requests"`
	TrainingRequests int           `mapstructure:"training_requests"`
}

// ExtractionConfig holds orchestrator, worker and sweeper settings.
type ExtractionConfig struct {
	Tier1Threshold   float64       `mapstructure:"tier1_threshold"`
	Tier2Threshold   float64       `mapstructure:"tier2_threshold"`
	Tier1Timeout     time.Duration `mapstructure:"tier1_timeout"`
	Tier2Timeout     time.Duration `mapstructure:"tier2_timeout"`
	PollAttempts     int           `mapstructure:"poll_attempts"`
	PollInterval     time.Duration `mapstructure:"poll_interval"`
	WorkerInterval   time.Duration `mapstructure:"worker_interval"`
	Concurrency      int           `mapstructure:"concurrency"`
	SweepInterval    time.Duration `mapstructure:"sweep_interval"`
	StaleRunTimeout  time.Duration `mapstructure:"stale_run_timeout"`
	ReviewTimeout    time.Duration `mapstructure:"review_timeout"`
	ReviewLinkExpiry int64         `mapstructure:"review_link_expiry"`
}

// LayoutConfig holds the tier-1 layout analysis service settings.
type LayoutConfig struct {
	Endpoint     string  `mapstructure:"endpoint"`
	APIKey       string  `mapstructure:"api_key"`
	ModelID      string  `mapstructure:"model_id"`
	APIVersion   string  `mapstructure:"api_version"`
	CostPerPage  float64 `mapstructure:"cost_per_page"`
	RequestsPerS float64 `mapstructure:"requests_per_second"`
}

// VisionProviderConfig holds settings for a single vision model provider.
type VisionProviderConfig struct {
	Provider     string `mapstructure:"provider"`
	APIKey       string `mapstructure:"api_key"`
	DefaultModel string `mapstructure:"default_model"`
	MaxRetries   int    `mapstructure:"max_retries"`
	TimeoutSecs  int    `mapstructure:"timeout_secs"`
}

// VisionConfig holds tier-2 provider settings.
type VisionConfig struct {
	Primary   VisionProviderConfig `mapstructure:"primary"`
	Secondary VisionProviderConfig `mapstructure:"secondary"`
}

// SecondaryConfig returns the secondary provider config, or nil if not configured.
func (v *VisionConfig) SecondaryConfig() *VisionProviderConfig {
	if v.Secondary.Provider != "" {
		return &v.Secondary
	}
	return nil
}

// PatternConfig holds pattern analysis settings.
type PatternConfig struct {
	SupportThreshold int           `mapstructure:"support_threshold"`
	TargetErrorRate  float64       `mapstructure:"target_error_rate"`
	Window           time.Duration `mapstructure:"window"`
}

// RiskConfig holds risk scoring and training settings.
type RiskConfig struct {
	ExpiryWeight       float64 `mapstructure:"expiry_weight"`
	DefectWeight       float64 `mapstructure:"defect_weight"`
	AssetWeight        float64 `mapstructure:"asset_weight"`
	CoverageWeight     float64 `mapstructure:"coverage_weight"`
	ExternalWeight     float64 `mapstructure:"external_weight"`
	MinBenchmark       float64 `mapstructure:"min_benchmark"`
	MinTrainingSamples int     `mapstructure:"min_training_samples"`
	BulkCap            int     `mapstructure:"bulk_cap"`
	BulkConcurrency    int     `mapstructure:"bulk_concurrency"`
	RescoreOnPromote   bool    `mapstructure:"rescore_on_promote"`
	RescoreLimit       int     `mapstructure:"rescore_limit"`
	// TrainingTimeout is how long a training run may stay RUNNING before
	// the sweeper fails it.
	TrainingTimeout time.Duration `mapstructure:"training_timeout"`
}

// EmailConfig holds reviewer notification settings.
type EmailConfig struct {
	Provider      string `mapstructure:"provider"`
	Region        string `mapstructure:"region"`
	FromAddress   string `mapstructure:"from_address"`
	FromName      string `mapstructure:"from_name"`
	ReviewAddress string `mapstructure:"review_address"`
	FrontendURL   string `mapstructure:"frontend_url"`
}

// Load reads configuration from environment variables with the CERTFLOW_ prefix.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CERTFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Bind environment variables explicitly for nested keys
	for _, key := range v.AllKeys() {
		_ = v.BindEnv(key, "CERTFLOW_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")))
	}

	cfg := &Config{}

	// Platforms that inject PORT win unless CERTFLOW_SERVER_PORT is set.
	serverPort := v.GetString("server.port")
	if port := os.Getenv("PORT"); port != "" && os.Getenv("CERTFLOW_SERVER_PORT") == "" {
		serverPort = ":" + port
	}

	cfg.Server = ServerConfig{
		Port:         serverPort,
		ReadTimeout:  v.GetDuration("server.read_timeout"),
		WriteTimeout: v.GetDuration("server.write_timeout"),
		Environment:  v.GetString("server.environment"),
		// Comma separated in the environment.
		AllowedOrigins: splitList(v.GetString("server.allowed_origins")),
	}
	cfg.DB = DBConfig{
		Host:     v.GetString("db.host"),
		Port:     v.GetInt("db.port"),
		User:     v.GetString("db.user"),
		Password: v.GetString("db.password"),
		Name:     v.GetString("db.name"),
		SSLMode:  v.GetString("db.sslmode"),
		MaxOpen:  v.GetInt("db.max_open"),
		MaxIdle:  v.GetInt("db.max_idle"),
	}
	cfg.JWT = JWTConfig{
		Secret: v.GetString("jwt.secret"),
		Issuer: v.GetString("jwt.issuer"),
	}
	cfg.S3 = S3Config{
		Region:        v.GetString("s3.region"),
		Bucket:        v.GetString("s3.bucket"),
		Endpoint:      v.GetString("s3.endpoint"),
		AccessKey:     v.GetString("s3.access_key"),
		SecretKey:     v.GetString("s3.secret_key"),
		PresignExpiry: v.GetInt64("s3.presign_expiry"),
	}
	cfg.Log = LogConfig{
		Level:  v.GetString("log.level"),
		Format: v.GetString("log.format"),
	}
	cfg.Redis = RedisConfig{
		Addr:     v.GetString("redis.addr"),
		Password: v.GetString("redis.password"),
		DB:       v.GetInt("redis.db"),
	}
	cfg.Cache = CacheConfig{
		RulesTTL:       v.GetDuration("cache.rules_ttl"),
		ActiveModelTTL: v.GetDuration("cache.active_model_ttl"),
	}
	cfg.RateLimit = RateLimitConfig{
		Window:           v.GetDuration("rate_limit.window"),
		AnalysisRequests: v.GetInt("rate_limit.analysis_requests"),
		TrainingRequests: v.GetInt("rate_limit.training_requests"),
	}
	cfg.Extraction = ExtractionConfig{
		Tier1Threshold:   v.GetFloat64("extraction.tier1_threshold"),
		Tier2Threshold:   v.GetFloat64("extraction.tier2_threshold"),
		Tier1Timeout:     v.GetDuration("extraction.tier1_timeout"),
		Tier2Timeout:     v.GetDuration("extraction.tier2_timeout"),
		PollAttempts:     v.GetInt("extraction.poll_attempts"),
		PollInterval:     v.GetDuration("extraction.poll_interval"),
		WorkerInterval:   v.GetDuration("extraction.worker_interval"),
		Concurrency:      v.GetInt("extraction.concurrency"),
		SweepInterval:    v.GetDuration("extraction.sweep_interval"),
		StaleRunTimeout:  v.GetDuration("extraction.stale_run_timeout"),
		ReviewTimeout:    v.GetDuration("extraction.review_timeout"),
		ReviewLinkExpiry: v.GetInt64("extraction.review_link_expiry"),
	}
	cfg.Layout = LayoutConfig{
		Endpoint:     v.GetString("layout.endpoint"),
		APIKey:       v.GetString("layout.api_key"),
		ModelID:      v.GetString("layout.model_id"),
		APIVersion:   v.GetString("layout.api_version"),
		CostPerPage:  v.GetFloat64("layout.cost_per_page"),
		RequestsPerS: v.GetFloat64("layout.requests_per_second"),
	}
	cfg.Vision = VisionConfig{
		Primary:   providerConfig(v, "vision.primary"),
		Secondary: providerConfig(v, "vision.secondary"),
	}
	cfg.Pattern = PatternConfig{
		SupportThreshold: v.GetInt("pattern.support_threshold"),
		TargetErrorRate:  v.GetFloat64("pattern.target_error_rate"),
		Window:           v.GetDuration("pattern.window"),
	}
	cfg.Risk = RiskConfig{
		ExpiryWeight:       v.GetFloat64("risk.expiry_weight"),
		DefectWeight:       v.GetFloat64("risk.defect_weight"),
		AssetWeight:        v.GetFloat64("risk.asset_weight"),
		CoverageWeight:     v.GetFloat64("risk.coverage_weight"),
		ExternalWeight:     v.GetFloat64("risk.external_weight"),
		MinBenchmark:       v.GetFloat64("risk.min_benchmark"),
		MinTrainingSamples: v.GetInt("risk.min_training_samples"),
		BulkCap:            v.GetInt("risk.bulk_cap"),
		BulkConcurrency:    v.GetInt("risk.bulk_concurrency"),
		RescoreOnPromote:   v.GetBool("risk.rescore_on_promote"),
		RescoreLimit:       v.GetInt("risk.rescore_limit"),
		TrainingTimeout:    v.GetDuration("risk.training_timeout"),
	}
	cfg.Email = EmailConfig{
		Provider:      v.GetString("email.provider"),
		Region:        v.GetString("email.region"),
		FromAddress:   v.GetString("email.from_address"),
		FromName:      v.GetString("email.from_name"),
		ReviewAddress: v.GetString("email.review_address"),
		FrontendURL:   v.GetString("email.frontend_url"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func providerConfig(v *viper.Viper, prefix string) VisionProviderConfig {
	return VisionProviderConfig{
		Provider:     v.GetString(prefix + ".provider"),
		APIKey:       v.GetString(prefix + ".api_key"),
		DefaultModel: v.GetString(prefix + ".default_model"),
		MaxRetries:   v.GetInt(prefix + ".max_retries"),
		TimeoutSecs:  v.GetInt(prefix + ".timeout_secs"),
	}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", "http://localhost:3000,http://127.0.0.1:3000")

	// DB defaults
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "certflow")
	v.SetDefault("db.password", "certflow_secret")
	v.SetDefault("db.name", "certflow_db")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.max_open", 25)
	v.SetDefault("db.max_idle", 10)

	v.SetDefault("jwt.secret", "change-me-in-production")
	v.SetDefault("jwt.issuer", "certflow")

	v.SetDefault("s3.region", "eu-west-2")
	v.SetDefault("s3.bucket", "certflow-certificates")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.access_key", "")
	v.SetDefault("s3.secret_key", "")
	v.SetDefault("s3.presign_expiry", 3600)

	v.SetDefault("log.level", "debug")
	v.SetDefault("log.format", "console")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("cache.rules_ttl", "5m")
	v.SetDefault("cache.active_model_ttl", "1m")

	v.SetDefault("rate_limit.window", "1h")
	v.SetDefault("rate_limit.analysis_requests", 10)
	v.SetDefault("rate_limit.training_requests", 3)

	// Extraction defaults. Thresholds are operational settings with no
	// canonical value; tune per deployment.
	v.SetDefault("extraction.tier1_threshold", 0.85)
	v.SetDefault("extraction.tier2_threshold", 0.80)
	v.SetDefault("extraction.tier1_timeout", "75s")
	v.SetDefault("extraction.tier2_timeout", "150s")
	v.SetDefault("extraction.poll_attempts", 30)
	v.SetDefault("extraction.poll_interval", "2s")
	v.SetDefault("extraction.worker_interval", "5s")
	v.SetDefault("extraction.concurrency", 4)
	v.SetDefault("extraction.sweep_interval", "5m")
	v.SetDefault("extraction.stale_run_timeout", "15m")
	v.SetDefault("extraction.review_timeout", "0s")
	v.SetDefault("extraction.review_link_expiry", 86400)

	v.SetDefault("layout.endpoint", "")
	v.SetDefault("layout.api_key", "")
	v.SetDefault("layout.model_id", "prebuilt-layout")
	v.SetDefault("layout.api_version", "2024-11-30")
	v.SetDefault("layout.cost_per_page", 0.01)
	v.SetDefault("layout.requests_per_second", 10)

	v.SetDefault("vision.primary.provider", "claude")
	v.SetDefault("vision.primary.api_key", "")
	v.SetDefault("vision.primary.default_model", "claude-sonnet-4-20250514")
	v.SetDefault("vision.primary.max_retries", 2)
	v.SetDefault("vision.primary.timeout_secs", 120)
	v.SetDefault("vision.secondary.provider", "")
	v.SetDefault("vision.secondary.api_key", "")
	v.SetDefault("vision.secondary.default_model", "")
	v.SetDefault("vision.secondary.max_retries", 2)
	v.SetDefault("vision.secondary.timeout_secs", 120)

	v.SetDefault("pattern.support_threshold", 3)
	v.SetDefault("pattern.target_error_rate", 0.05)
	v.SetDefault("pattern.window", "720h")

	v.SetDefault("risk.expiry_weight", 0.30)
	v.SetDefault("risk.defect_weight", 0.25)
	v.SetDefault("risk.asset_weight", 0.15)
	v.SetDefault("risk.coverage_weight", 0.20)
	v.SetDefault("risk.external_weight", 0.10)
	v.SetDefault("risk.min_benchmark", 80.0)
	v.SetDefault("risk.min_training_samples", 20)
	v.SetDefault("risk.bulk_cap", 500)
	v.SetDefault("risk.bulk_concurrency", 8)
	v.SetDefault("risk.rescore_on_promote", true)
	v.SetDefault("risk.rescore_limit", 1000)
	v.SetDefault("risk.training_timeout", "30m")

	v.SetDefault("email.provider", "noop")
	v.SetDefault("email.region", "eu-west-2")
	v.SetDefault("email.from_address", "noreply@certflow.local")
	v.SetDefault("email.from_name", "Certflow")
	v.SetDefault("email.review_address", "")
	v.SetDefault("email.frontend_url", "http://localhost:3000")
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	for name, t := range map[string]float64{
		"extraction.tier1_threshold": c.Extraction.Tier1Threshold,
		"extraction.tier2_threshold": c.Extraction.Tier2Threshold,
	} {
		if t < 0 || t > 1 {
			return eris.Errorf("config: %s must be within [0,1], got %v", name, t)
		}
	}
	if c.Extraction.PollAttempts < 1 {
		return eris.New("config: extraction.poll_attempts must be at least 1")
	}
	if c.Extraction.Concurrency < 1 {
		return eris.New("config: extraction.concurrency must be at least 1")
	}
	r := c.Risk
	if r.ExpiryWeight+r.DefectWeight+r.AssetWeight+r.CoverageWeight+r.ExternalWeight <= 0 {
		return eris.New("config: risk factor weights must sum to a positive value")
	}
	if c.Pattern.SupportThreshold < 1 {
		return eris.New("config: pattern.support_threshold must be at least 1")
	}
	return nil
}
