package config

import (
	"log"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration values.
type Config struct {
	AppPort           string `mapstructure:"APP_PORT"`
	DatabaseURL       string `mapstructure:"DATABASE_URL"`
	DatabaseName      string `mapstructure:"DATABASE_NAME"`
	Env               string `mapstructure:"ENV"`
	JWTSecret         string `mapstructure:"JWT_SECRET"`
	LogLevel          string `mapstructure:"LOG_LEVEL"`
	MaxRequestsPerMin int    `mapstructure:"MAX_REQUESTS_PER_MIN"`

	// Redis configuration.
	RedisAddr       string `mapstructure:"REDIS_ADDR"`
	RedisPassword   string `mapstructure:"REDIS_PASSWORD"`
	RedisStateDB    int    `mapstructure:"REDIS_STATE_DB"`
	RedisReminderDB int    `mapstructure:"REDIS_REMINDER_DB"`

	// Gemini API key for the intent classifier.
	GeminiAPIKey string `mapstructure:"GEMINI_API_KEY"`

	// Google Calendar OAuth.
	GoogleClientID     string `mapstructure:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `mapstructure:"GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURL  string `mapstructure:"GOOGLE_REDIRECT_URL"`

	// Microsoft Outlook OAuth.
	OutlookClientID     string `mapstructure:"OUTLOOK_CLIENT_ID"`
	OutlookClientSecret string `mapstructure:"OUTLOOK_CLIENT_SECRET"`
	OutlookRedirectURL  string `mapstructure:"OUTLOOK_REDIRECT_URL"`
	OutlookTenant       string `mapstructure:"OUTLOOK_TENANT"`

	// Scheduling defaults.
	BusinessHoursStart     string `mapstructure:"BUSINESS_HOURS_START"`
	BusinessHoursEnd       string `mapstructure:"BUSINESS_HOURS_END"`
	SlotIncrementMinutes   int    `mapstructure:"SLOT_INCREMENT_MINUTES"`
	MaxSlotResults         int    `mapstructure:"MAX_SLOT_RESULTS"`
	DefaultDurationMinutes int    `mapstructure:"DEFAULT_DURATION_MINUTES"`
	StateTTLMinutes        int    `mapstructure:"STATE_TTL_MINUTES"`
	ReminderLeadMinutes    int    `mapstructure:"REMINDER_LEAD_MINUTES"`

	// Provider preference when more than one calendar is connected.
	// Comma-separated, first entry wins.
	ProviderOrder string `mapstructure:"PROVIDER_ORDER"`
}

var AppConfig Config

func LoadConfig() {
	// Look for a config file named "config.yaml" in the current and "config" directory.
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	// Automatically use environment variables where available.
	viper.AutomaticEnv()

	// Set default values.
	viper.SetDefault("APP_PORT", "8080")
	viper.SetDefault("ENV", "development")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("MAX_REQUESTS_PER_MIN", 100)
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_STATE_DB", 0)
	viper.SetDefault("REDIS_REMINDER_DB", 1)
	viper.SetDefault("DATABASE_URL", "mongodb://localhost:27017")
	viper.SetDefault("DATABASE_NAME", "convene")
	viper.SetDefault("GEMINI_API_KEY", "")
	viper.SetDefault("OUTLOOK_TENANT", "common")
	viper.SetDefault("BUSINESS_HOURS_START", "09:00")
	viper.SetDefault("BUSINESS_HOURS_END", "17:00")
	viper.SetDefault("SLOT_INCREMENT_MINUTES", 30)
	viper.SetDefault("MAX_SLOT_RESULTS", 4)
	viper.SetDefault("DEFAULT_DURATION_MINUTES", 30)
	viper.SetDefault("STATE_TTL_MINUTES", 30)
	viper.SetDefault("REMINDER_LEAD_MINUTES", 15)
	viper.SetDefault("PROVIDER_ORDER", "google,outlook")

	if err := viper.ReadInConfig(); err != nil {
		log.Println("No config file found, using environment variables only")
	}

	if err := viper.Unmarshal(&AppConfig); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
}

func GetEnv() string {
	return AppConfig.Env
}

func IsProduction() bool {
	return GetEnv() == "production"
}

// ProviderPreference returns the configured provider order, normalized.
func ProviderPreference() []string {
	parts := strings.Split(AppConfig.ProviderOrder, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
