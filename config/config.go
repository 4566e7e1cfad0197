package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full service configuration, loaded from a toml file
// with OSINT_-prefixed environment overrides. Policy values (fees,
// limits, tokens) live here, not in code.
type Config struct {
	Api       ApiConfig            `mapstructure:"api"`
	Database  DatabaseConfig       `mapstructure:"database"`
	Escrow    EscrowConfig         `mapstructure:"escrow"`
	Solana    SolanaConfig         `mapstructure:"solana"`
	Resolver  ResolverConfig       `mapstructure:"resolver"`
	RateLimit map[string]RateLimit `mapstructure:"rate_limit"`
	Alerts    AlertsConfig         `mapstructure:"alerts"`
	Admin     AdminConfig          `mapstructure:"admin"`
	Archive   ArchiveConfig        `mapstructure:"archive"`
}

type ApiConfig struct {
	Port           string   `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

type EscrowConfig struct {
	CreationFeePercent float64            `mapstructure:"creation_fee_percent"`
	PayoutFeePercent   float64            `mapstructure:"payout_fee_percent"`
	TreasuryWallet     string             `mapstructure:"treasury_wallet"`
	MinimumDeposit     map[string]float64 `mapstructure:"minimum_deposit"`
	SupportedTokens    []string           `mapstructure:"supported_tokens"`
}

type SolanaConfig struct {
	RPCURL          string        `mapstructure:"rpc_url"`
	PayoutSignerURL string        `mapstructure:"payout_signer_url"`
	SignerToken     string        `mapstructure:"signer_token"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	// AmountTolerance is the accepted relative deviation when matching
	// an incoming deposit against the expected amount.
	AmountTolerance float64 `mapstructure:"amount_tolerance"`
}

type ResolverConfig struct {
	APIKey     string        `mapstructure:"api_key"`
	Model      string        `mapstructure:"model"`
	BaseURL    string        `mapstructure:"base_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries uint64        `mapstructure:"max_retries"`
	QueueSize  int           `mapstructure:"queue_size"`
	// Delay before a freshly submitted bounty is evaluated.
	Delay time.Duration `mapstructure:"delay"`
}

type RateLimit struct {
	Window      time.Duration `mapstructure:"window"`
	MaxRequests int           `mapstructure:"max_requests"`
}

type AlertsConfig struct {
	DiscordWebhook string `mapstructure:"discord_webhook"`
	SlackWebhook   string `mapstructure:"slack_webhook"`
}

type AdminConfig struct {
	Secret string `mapstructure:"secret"`
}

type ArchiveConfig struct {
	AccountID       string `mapstructure:"account_id"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	AccessKeySecret string `mapstructure:"access_key_secret"`
	Bucket          string `mapstructure:"bucket"`
	PublicBaseURL   string `mapstructure:"public_base_url"`
}

// UnmarshalConfig reads the toml file at path and applies environment
// overrides (OSINT_ESCROW_TREASURY_WALLET and friends).
func UnmarshalConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("OSINT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, err
	}
	return &c, nil
}

// Default reflects the original platform policy; a config file only
// needs to override what differs.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var c Config
	_ = v.Unmarshal(&c)
	c.RateLimit = DefaultRateLimits()
	c.Escrow.MinimumDeposit = map[string]float64{"SOL": 0.1}
	c.Escrow.SupportedTokens = []string{"SOL", "USDC", "META", "ORE"}
	return &c
}

func DefaultRateLimits() map[string]RateLimit {
	return map[string]RateLimit{
		"bounty-create":  {Window: time.Minute, MaxRequests: 5},
		"bounty-submit":  {Window: time.Minute, MaxRequests: 10},
		"bounty-claim":   {Window: time.Minute, MaxRequests: 20},
		"api-general":    {Window: time.Minute, MaxRequests: 100},
		"bounty-dispute": {Window: time.Hour, MaxRequests: 3},
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.port", ":5300")
	v.SetDefault("escrow.creation_fee_percent", 2.5)
	v.SetDefault("escrow.payout_fee_percent", 2.5)
	v.SetDefault("escrow.minimum_deposit", map[string]float64{"SOL": 0.1})
	v.SetDefault("escrow.supported_tokens", []string{"SOL", "USDC", "META", "ORE"})
	v.SetDefault("solana.rpc_url", "https://api.mainnet-beta.solana.com")
	v.SetDefault("solana.request_timeout", 30*time.Second)
	v.SetDefault("solana.amount_tolerance", 0.005)
	v.SetDefault("resolver.model", "claude-sonnet-4-20250514")
	v.SetDefault("resolver.base_url", "https://api.anthropic.com")
	v.SetDefault("resolver.timeout", 60*time.Second)
	v.SetDefault("resolver.max_retries", 3)
	v.SetDefault("resolver.queue_size", 256)
	v.SetDefault("resolver.delay", time.Second)
	for action, rl := range DefaultRateLimits() {
		v.SetDefault("rate_limit."+action+".window", rl.Window)
		v.SetDefault("rate_limit."+action+".max_requests", rl.MaxRequests)
	}
}
