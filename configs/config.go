package configs

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"nanobot/internal/infrastructure/config"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// maxRetriesLimit は、MAX_RETRIES に指定できる上限です
const maxRetriesLimit = 10

// Config は、アプリケーション全体の設定を定義します
type Config struct {
	Discord  config.DiscordConfig
	Endpoint config.EndpointConfig
	Image    config.ImageConfig
	Bot      config.BotConfig
}

// LoadConfig は、環境変数から設定を読み込みます
func LoadConfig() (*Config, error) {
	// .envファイルを読み込み（ファイルが存在しない場合は無視）
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg(".envファイルの読み込みに失敗しました")
	}

	cfg := FromEnv()

	// 必須設定の検証
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// FromEnv は、現在の環境変数から設定を組み立てます（検証は行いません）
func FromEnv() *Config {
	endpoint := config.DefaultEndpointConfig()
	image := config.DefaultImageConfig()
	bot := config.DefaultBotConfig()

	return &Config{
		Discord: config.DiscordConfig{
			BotToken: getEnvOrDefault("DISCORD_BOT_TOKEN", ""),
		},
		Endpoint: config.EndpointConfig{
			BaseURL:        strings.TrimRight(getEnvOrDefault("BASE_URL", endpoint.BaseURL), "/"),
			APIKey:         getEnvOrDefault("API_KEY", ""),
			Model:          getEnvOrDefault("MODEL", endpoint.Model),
			MaxRetries:     getEnvAsIntOrDefault("MAX_RETRIES", endpoint.MaxRetries),
			BackoffBase:    getEnvAsDurationOrDefault("BACKOFF_BASE", endpoint.BackoffBase),
			RequestTimeout: getEnvAsDurationOrDefault("REQUEST_TIMEOUT", endpoint.RequestTimeout),
		},
		Image: config.ImageConfig{
			CompressMaxBytes:       getEnvAsIntOrDefault("COMPRESS_MAX_BYTES", image.CompressMaxBytes),
			CompressMaxDimension:   getEnvAsIntOrDefault("COMPRESS_MAX_DIMENSION", image.CompressMaxDimension),
			AllowInsecureDowngrade: getEnvAsBoolOrDefault("ALLOW_INSECURE_DOWNGRADE", false),
			AvatarURLTemplate:      getEnvOrDefault("AVATAR_URL_TEMPLATE", image.AvatarURLTemplate),
			AvatarTimeout:          getEnvAsDurationOrDefault("AVATAR_TIMEOUT", image.AvatarTimeout),
		},
		Bot: config.BotConfig{
			DefaultPrompt:  getEnvOrDefault("DEFAULT_PROMPT", bot.DefaultPrompt),
			TriggerWords:   getEnvAsListOrDefault("TRIGGER_WORDS", bot.TriggerWords),
			CommandTimeout: getEnvAsDurationOrDefault("COMMAND_TIMEOUT", bot.CommandTimeout),
			SaveImage:      getEnvAsBoolOrDefault("SAVE_IMAGE", false),
			SaveDir:        getEnvOrDefault("SAVE_DIR", bot.SaveDir),
			LogLevel:       getEnvOrDefault("LOG_LEVEL", bot.LogLevel),
		},
	}
}

// Validate は、設定の妥当性を検証します
func (c *Config) Validate() error {
	if c.Discord.BotToken == "" {
		return fmt.Errorf("DISCORD_BOT_TOKEN が設定されていません")
	}

	u, err := url.Parse(c.Endpoint.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("BASE_URL は http:// または https:// で始まるURLである必要があります: %q", c.Endpoint.BaseURL)
	}

	if c.Endpoint.Model == "" {
		return fmt.Errorf("MODEL が設定されていません")
	}

	if c.Endpoint.MaxRetries < 0 || c.Endpoint.MaxRetries > maxRetriesLimit {
		return fmt.Errorf("MAX_RETRIES は0以上%d以下の整数である必要があります", maxRetriesLimit)
	}

	if c.Endpoint.BackoffBase <= 0 {
		return fmt.Errorf("BACKOFF_BASE は正の値である必要があります")
	}

	if c.Endpoint.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT は正の値である必要があります")
	}

	if c.Image.CompressMaxBytes <= 0 {
		return fmt.Errorf("COMPRESS_MAX_BYTES は正の整数である必要があります")
	}

	if c.Image.CompressMaxDimension < 0 {
		return fmt.Errorf("COMPRESS_MAX_DIMENSION は0以上の整数である必要があります")
	}

	if strings.Count(c.Image.AvatarURLTemplate, "%s") != 1 {
		return fmt.Errorf("AVATAR_URL_TEMPLATE にはユーザーIDの位置を示す %%s が1つ必要です")
	}

	if len(c.Bot.TriggerWords) == 0 {
		return fmt.Errorf("TRIGGER_WORDS が設定されていません")
	}

	if c.Bot.CommandTimeout <= 0 {
		return fmt.Errorf("COMMAND_TIMEOUT は正の値である必要があります")
	}

	if c.Bot.SaveImage && c.Bot.SaveDir == "" {
		return fmt.Errorf("SAVE_IMAGE が有効な場合は SAVE_DIR が必要です")
	}

	if _, err := zerolog.ParseLevel(c.Bot.LogLevel); err != nil {
		return fmt.Errorf("LOG_LEVEL が不正です: %w", err)
	}

	return nil
}

// getEnvOrDefault は、環境変数を取得し、存在しない場合はデフォルト値を返します
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntOrDefault は、環境変数を整数として取得し、存在しない場合はデフォルト値を返します
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsDurationOrDefault は、環境変数を時間として取得し、存在しない場合はデフォルト値を返します
// 単位のない数値は秒として扱います
func getEnvAsDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		if seconds, err := strconv.ParseFloat(value, 64); err == nil {
			return time.Duration(seconds * float64(time.Second))
		}
	}
	return defaultValue
}

// getEnvAsBoolOrDefault は、環境変数を真偽値として取得し、存在しない場合はデフォルト値を返します
func getEnvAsBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvAsListOrDefault は、カンマ区切りの環境変数をリストとして取得します
func getEnvAsListOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
