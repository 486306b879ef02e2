package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DryRun bool `yaml:"dry_run"`

	Binance struct {
		ApiKey       string  `yaml:"api_key"`
		ApiSecret    string  `yaml:"api_secret"`
		RestURL      string  `yaml:"rest_url"`
		WsURL        string  `yaml:"ws_url"`
		TakerFeeRate float64 `yaml:"taker_fee_rate"`
	} `yaml:"binance"`

	Trade struct {
		InitialAmount     float64 `yaml:"initial_amount"`
		SlippageTolerance float64 `yaml:"slippage_tolerance"`
		TopK              int     `yaml:"top_k"`
	} `yaml:"trade"`

	Risk struct {
		MinProfitPct   float64 `yaml:"min_profit_pct"`
		MaxTradeAmount float64 `yaml:"max_trade_amount"`
	} `yaml:"risk"`

	Universe struct {
		QuoteAssets    []string `yaml:"quote_assets"`
		Symbols        []string `yaml:"symbols"`
		MaxSymbols     int      `yaml:"max_symbols"`
		MinQuoteVolume float64  `yaml:"min_quote_volume"`
	} `yaml:"universe"`

	Cache struct {
		Streaming          bool `yaml:"streaming"`
		StalenessWindowMs  int  `yaml:"staleness_window_ms"`
		FetchRetries       int  `yaml:"fetch_retries"`
		RetryBackoffMs     int  `yaml:"retry_backoff_ms"`
		ReconnectBackoffMs int  `yaml:"reconnect_backoff_ms"`
	} `yaml:"cache"`

	Timings struct {
		LoopIntervalMs int `yaml:"loop_interval_ms"`
	} `yaml:"timings"`

	Redis struct {
		Addr      string `yaml:"addr"`
		DB        int    `yaml:"db"`
		Username  string `yaml:"username"`
		Password  string `yaml:"password"`
		Stream    string `yaml:"stream"`
		ActiveKey string `yaml:"active_key"`
		MetaNS    string `yaml:"meta_ns"`
	} `yaml:"redis"`

	Telegram struct {
		Token  string   `yaml:"token"`
		ChatID string   `yaml:"chat_id"`
		Events []string `yaml:"events"`
	} `yaml:"telegram"`

	Metrics struct {
		ListenAddr string `yaml:"listen_addr"`
	} `yaml:"metrics"`

	Dash struct {
		ListenAddr string `yaml:"listen_addr"`
	} `yaml:"dash"`
}

func Load(path string) (*Config, error) {
	// Secrets may live in a .env next to the binary; absence is fine.
	_ = godotenv.Load()

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}

	if c.Binance.RestURL == "" {
		c.Binance.RestURL = "https://api.binance.com"
	}
	if c.Binance.WsURL == "" {
		c.Binance.WsURL = "wss://stream.binance.com:9443/ws/!miniTicker@arr"
	}
	if c.Binance.TakerFeeRate == 0 {
		c.Binance.TakerFeeRate = 0.001
	}
	if c.Trade.InitialAmount == 0 {
		c.Trade.InitialAmount = 0.001
	}
	if c.Trade.SlippageTolerance == 0 {
		c.Trade.SlippageTolerance = 0.01
	}
	if c.Trade.TopK == 0 {
		c.Trade.TopK = 5
	}
	if c.Risk.MinProfitPct == 0 {
		c.Risk.MinProfitPct = 0.5
	}
	if len(c.Universe.QuoteAssets) == 0 {
		c.Universe.QuoteAssets = []string{"USDT", "USDC", "BTC", "ETH", "BNB"}
	}
	if c.Universe.MaxSymbols == 0 {
		c.Universe.MaxSymbols = 120
	}
	if c.Cache.StalenessWindowMs == 0 {
		c.Cache.StalenessWindowMs = 10000
	}
	if c.Cache.FetchRetries == 0 {
		c.Cache.FetchRetries = 5
	}
	if c.Cache.RetryBackoffMs == 0 {
		c.Cache.RetryBackoffMs = 5000
	}
	if c.Cache.ReconnectBackoffMs == 0 {
		c.Cache.ReconnectBackoffMs = 2000
	}
	if c.Timings.LoopIntervalMs == 0 {
		c.Timings.LoopIntervalMs = 10000
	}
	if c.Redis.Stream == "" {
		c.Redis.Stream = "opp:stream"
	}
	if c.Redis.ActiveKey == "" {
		c.Redis.ActiveKey = "opp:active"
	}
	if c.Redis.MetaNS == "" {
		c.Redis.MetaNS = "opp:last:"
	}

	if v := os.Getenv("BINANCE_API_KEY"); v != "" {
		c.Binance.ApiKey = v
	}
	if v := os.Getenv("BINANCE_API_SECRET"); v != "" {
		c.Binance.ApiSecret = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Telegram.Token = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		c.Telegram.ChatID = v
	}

	return &c, nil
}

func (c *Config) LoopInterval() time.Duration {
	return time.Duration(c.Timings.LoopIntervalMs) * time.Millisecond
}
func (c *Config) StalenessWindow() time.Duration {
	return time.Duration(c.Cache.StalenessWindowMs) * time.Millisecond
}
func (c *Config) RetryBackoff() time.Duration {
	return time.Duration(c.Cache.RetryBackoffMs) * time.Millisecond
}
func (c *Config) ReconnectBackoff() time.Duration {
	return time.Duration(c.Cache.ReconnectBackoffMs) * time.Millisecond
}
