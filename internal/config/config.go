package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"inspectmetrics/internal/domain"
)

const defaultExternalHTTPTimeout = 90 * time.Second
const defaultExternalHTTPTimeoutSeconds = int(defaultExternalHTTPTimeout / time.Second)

type Config struct {
	DBPath          string    `yaml:"db_path"`
	Timezone        string    `yaml:"timezone"`
	RankBreakpoints []float64 `yaml:"rank_breakpoints"`

	SlackBotToken   string `yaml:"slack_bot_token"`
	DigestChannelID string `yaml:"digest_channel_id"`

	DigestSchedule     string  `yaml:"digest_schedule"`
	DigestUseCaseIDs   []int64 `yaml:"digest_use_case_ids"`
	DigestUnit         string  `yaml:"digest_unit"`
	DigestTimeFunction string  `yaml:"digest_time_function"`
	DigestLookbackDays int     `yaml:"digest_lookback_days"`
	DigestOutputDir    string  `yaml:"digest_output_dir"`

	LLMProvider     string `yaml:"llm_provider"`
	LLMModel        string `yaml:"llm_model"`
	AnthropicAPIKey string `yaml:"anthropic_api_key"`

	ExternalHTTPTimeoutSeconds int    `yaml:"external_http_timeout_seconds"`
	MetricsAddr                string `yaml:"metrics_addr"`

	Location *time.Location `yaml:"-"` // computed from Timezone, not from YAML
}

func LoadConfig() Config {
	var cfg Config

	configPath := "config.yaml"
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		configPath = envPath
	}
	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			log.Fatalf("Error parsing %s: %v", configPath, err)
		}
		log.Printf("Loaded config from %s", configPath)
	}

	envOverride(&cfg.DBPath, "DB_PATH")
	envOverride(&cfg.Timezone, "TIMEZONE")
	envOverrideFloats(&cfg.RankBreakpoints, "RANK_BREAKPOINTS")
	envOverride(&cfg.SlackBotToken, "SLACK_BOT_TOKEN")
	envOverride(&cfg.DigestChannelID, "DIGEST_CHANNEL_ID")
	envOverrideAllowEmpty(&cfg.DigestSchedule, "DIGEST_SCHEDULE")
	envOverrideInts(&cfg.DigestUseCaseIDs, "DIGEST_USE_CASE_IDS")
	envOverride(&cfg.DigestUnit, "DIGEST_UNIT")
	envOverride(&cfg.DigestTimeFunction, "DIGEST_TIME_FUNCTION")
	envOverrideInt(&cfg.DigestLookbackDays, "DIGEST_LOOKBACK_DAYS")
	envOverride(&cfg.DigestOutputDir, "DIGEST_OUTPUT_DIR")
	envOverride(&cfg.LLMProvider, "LLM_PROVIDER")
	envOverride(&cfg.LLMModel, "LLM_MODEL")
	envOverride(&cfg.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	envOverrideInt(&cfg.ExternalHTTPTimeoutSeconds, "EXTERNAL_HTTP_TIMEOUT_SECONDS")
	envOverrideAllowEmpty(&cfg.MetricsAddr, "METRICS_ADDR")

	if cfg.DBPath == "" {
		cfg.DBPath = "./inspectmetrics.db"
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "Local"
	}
	if len(cfg.RankBreakpoints) == 0 {
		cfg.RankBreakpoints = []float64{0.5, 0.7, 1.0}
	}
	if cfg.DigestUnit == "" {
		cfg.DigestUnit = string(domain.UnitFile)
	}
	if cfg.DigestTimeFunction == "" {
		cfg.DigestTimeFunction = string(domain.TimeDay)
	}
	if cfg.DigestLookbackDays == 0 {
		cfg.DigestLookbackDays = 7
	}
	if cfg.DigestOutputDir == "" {
		cfg.DigestOutputDir = "./digests"
	}
	if cfg.LLMProvider == "" {
		cfg.LLMProvider = "anthropic"
	}
	if cfg.ExternalHTTPTimeoutSeconds == 0 {
		cfg.ExternalHTTPTimeoutSeconds = defaultExternalHTTPTimeoutSeconds
	}

	switch cfg.LLMProvider {
	case "anthropic":
		if cfg.AnthropicAPIKey == "" {
			log.Printf("WARNING: anthropic_api_key is not set. Digests will be sent without a narrative.")
		}
	case "none":
	default:
		log.Fatalf("llm_provider must be 'anthropic' or 'none', got '%s'", cfg.LLMProvider)
	}

	if cfg.DigestChannelID != "" && cfg.SlackBotToken == "" {
		log.Fatalf("digest_channel_id is set but slack_bot_token is not")
	}

	if strings.EqualFold(cfg.Timezone, "Local") {
		cfg.Location = time.Local
	} else {
		loc, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			log.Fatalf("invalid timezone '%s': %v", cfg.Timezone, err)
		}
		cfg.Location = loc
	}

	if err := validateBreakpoints(cfg.RankBreakpoints); err != nil {
		log.Fatalf("invalid rank_breakpoints %v: %v", cfg.RankBreakpoints, err)
	}
	if _, err := domain.ParseUnit(cfg.DigestUnit); err != nil {
		log.Fatalf("invalid digest_unit '%s': %v", cfg.DigestUnit, err)
	}
	if _, err := domain.ParseTimeFunction(cfg.DigestTimeFunction); err != nil {
		log.Fatalf("invalid digest_time_function '%s': %v", cfg.DigestTimeFunction, err)
	}
	if cfg.DigestLookbackDays < 1 {
		log.Fatalf("invalid digest_lookback_days '%d': must be >= 1", cfg.DigestLookbackDays)
	}
	if cfg.ExternalHTTPTimeoutSeconds < 5 {
		log.Fatalf("invalid external_http_timeout_seconds '%d': must be >= 5", cfg.ExternalHTTPTimeoutSeconds)
	}

	return cfg
}

func envOverride(field *string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}

func envOverrideAllowEmpty(field *string, envKey string) {
	if val, ok := os.LookupEnv(envKey); ok {
		*field = val
	}
}

func envOverrideInt(field *int, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.Atoi(val)
		if err != nil {
			log.Fatalf("invalid %s '%s': %v", envKey, val, err)
		}
		*field = parsed
	}
}

// envOverrideInts reads a comma-separated id list.
func envOverrideInts(field *[]int64, envKey string) {
	val := os.Getenv(envKey)
	if val == "" {
		return
	}
	*field = nil
	for _, part := range strings.Split(val, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		parsed, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			log.Fatalf("invalid %s '%s': %v", envKey, val, err)
		}
		*field = append(*field, parsed)
	}
}

func envOverrideFloats(field *[]float64, envKey string) {
	val := os.Getenv(envKey)
	if val == "" {
		return
	}
	*field = nil
	for _, part := range strings.Split(val, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		parsed, err := strconv.ParseFloat(part, 64)
		if err != nil {
			log.Fatalf("invalid %s '%s': %v", envKey, val, err)
		}
		*field = append(*field, parsed)
	}
}

func (c Config) SlackConfigured() bool {
	return c.SlackBotToken != "" && c.DigestChannelID != ""
}

func (c Config) LLMConfigured() bool {
	return c.LLMProvider == "anthropic" && c.AnthropicAPIKey != ""
}

// validateBreakpoints requires strictly ascending shares in (0, 1].
func validateBreakpoints(bp []float64) error {
	for i, v := range bp {
		if v <= 0 || v > 1 {
			return fmt.Errorf("breakpoint %v out of range (0, 1]", v)
		}
		if i > 0 && v <= bp[i-1] {
			return fmt.Errorf("breakpoints must be strictly ascending")
		}
	}
	return nil
}
