package config

import (
	"fmt"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

// Config carries every tunable of the weekly pipeline. All thresholds are
// external configuration; no package reads the environment directly.
type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"local"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	DBMinConns  int32  `envconfig:"WK_DB_MIN_CONNS" default:"1"`
	DBMaxConns  int32  `envconfig:"WK_DB_MAX_CONNS" default:"8"`

	SiteTitle   string `envconfig:"SITE_TITLE" default:"行业周报"`
	Timezone    string `envconfig:"TIMEZONE" default:"Asia/Shanghai"`
	BaseFeed    string `envconfig:"BASE_FEED" default:""`
	SourcesFile string `envconfig:"SOURCES_FILE" default:"config/sources.yml"`
	DocsDir     string `envconfig:"DOCS_DIR" default:"docs"`
	DaysBack    int    `envconfig:"DAYS_BACK" default:"7"`

	UseLLM     bool   `envconfig:"USE_LLM" default:"true"`
	LLMBaseURL string `envconfig:"LLM_BASE_URL" default:"https://api.deepseek.com"`
	LLMAPIKey  string `envconfig:"LLM_API_KEY" default:""`
	LLMModel   string `envconfig:"LLM_MODEL" default:"deepseek-chat"`
	TextMaxLen int    `envconfig:"TEXT_MAXLEN" default:"1600"`

	MinTextLength    int  `envconfig:"MIN_TEXT_LENGTH" default:"200"`
	EnableAdFilter   bool `envconfig:"ENABLE_AD_SCORE_FILTER" default:"true"`
	AdScoreThreshold int  `envconfig:"AD_SCORE_THRESHOLD" default:"5"`
	EnableLLMIgnore  bool `envconfig:"ENABLE_LLM_IGNORE" default:"true"`

	EnableNearDupDrop    bool   `envconfig:"ENABLE_NEAR_DUP_DROP" default:"true"`
	HammingThreshold     int    `envconfig:"SIMHASH_HAMMING_THRESHOLD" default:"4"`
	NearDupKeepPolicy    string `envconfig:"NEAR_DUP_KEEP_POLICY" default:"earliest"`
	EnableCrossDupDrop   bool   `envconfig:"ENABLE_CROSS_SOURCE_DUP_DROP" default:"true"`
	CrossHammingOverride int    `envconfig:"CROSS_SIMHASH_HAMMING_THRESHOLD" default:"-1"`
	CrossKeepPolicy      string `envconfig:"CROSS_KEEP_POLICY" default:"prefer_weight_then_earliest"`

	HardWeight float64 `envconfig:"HARD_WEIGHT" default:"3.0"`

	JaccardThreshold      float64 `envconfig:"JACCARD_TH" default:"0.62"`
	BatchHammingThreshold int     `envconfig:"SIMHASH_HAM_TH" default:"8"`
	BatchKeepPolicy       string  `envconfig:"KEEP_POLICY" default:"earliest"`
	MaxConfirmPairs       int     `envconfig:"MAX_PAIRS" default:"200"`
	GlobalPairCap         int     `envconfig:"GLOBAL_PAIR_CAP" default:"400"`

	AggregateLookbackDays int `envconfig:"AGGREGATE_LOOKBACK_DAYS" default:"60"`
	RankedLookbackDays    int `envconfig:"RANKED_LOOKBACK_DAYS" default:"30"`
	PerWeekCap            int `envconfig:"PER_WEEK_CAP" default:"200"`

	HTTPHost string `envconfig:"HTTP_HOST" default:"0.0.0.0"`
	HTTPPort int    `envconfig:"HTTP_PORT" default:"8090"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.DBMinConns < 0 {
		return fmt.Errorf("WK_DB_MIN_CONNS must be >= 0")
	}
	if c.DBMaxConns < 1 {
		return fmt.Errorf("WK_DB_MAX_CONNS must be >= 1")
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("WK_DB_MIN_CONNS (%d) cannot exceed WK_DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if c.DaysBack < 1 {
		return fmt.Errorf("DAYS_BACK must be >= 1")
	}
	if c.MinTextLength < 0 {
		return fmt.Errorf("MIN_TEXT_LENGTH must be >= 0")
	}
	if c.HammingThreshold < 0 || c.BatchHammingThreshold < 0 {
		return fmt.Errorf("hamming thresholds must be >= 0")
	}
	if c.JaccardThreshold < 0 || c.JaccardThreshold > 1 {
		return fmt.Errorf("JACCARD_TH must be within [0,1]")
	}
	if c.HardWeight <= 0 {
		return fmt.Errorf("HARD_WEIGHT must be > 0")
	}
	if c.PerWeekCap < 1 {
		return fmt.Errorf("PER_WEEK_CAP must be >= 1")
	}
	if c.AggregateLookbackDays < 1 || c.RankedLookbackDays < 1 {
		return fmt.Errorf("refresh lookback windows must be >= 1 day")
	}
	if _, err := ParseKeepPolicy(c.NearDupKeepPolicy); err != nil {
		return fmt.Errorf("NEAR_DUP_KEEP_POLICY: %w", err)
	}
	if _, err := ParseKeepPolicy(c.CrossKeepPolicy); err != nil {
		return fmt.Errorf("CROSS_KEEP_POLICY: %w", err)
	}
	if _, err := ParseKeepPolicy(c.BatchKeepPolicy); err != nil {
		return fmt.Errorf("KEEP_POLICY: %w", err)
	}
	return nil
}

// CrossHammingThreshold resolves the cross-source threshold, falling back to
// the within-source value when no override is configured.
func (c *Config) CrossHammingThreshold() int {
	if c.CrossHammingOverride >= 0 {
		return c.CrossHammingOverride
	}
	return c.HammingThreshold
}

// KeepPolicy selects the canonical survivor among near-duplicate items.
type KeepPolicy string

const (
	KeepEarliest           KeepPolicy = "earliest"
	KeepLatest             KeepPolicy = "latest"
	KeepLongest            KeepPolicy = "longest"
	KeepWeightThenEarliest KeepPolicy = "prefer_weight_then_earliest"
)

func ParseKeepPolicy(raw string) (KeepPolicy, error) {
	switch KeepPolicy(strings.ToLower(strings.TrimSpace(raw))) {
	case KeepEarliest:
		return KeepEarliest, nil
	case KeepLatest:
		return KeepLatest, nil
	case KeepLongest:
		return KeepLongest, nil
	case KeepWeightThenEarliest:
		return KeepWeightThenEarliest, nil
	default:
		return "", fmt.Errorf("unknown keep policy %q", raw)
	}
}
