package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	JWTSecret    string
	Port         string
	DatabasePath string
	LogLevel     string
	CSRFAuthKey  []byte

	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration

	// Market-hours policy for the stock price staleness window.
	MarketTimezone string
	MarketOpen     string // "HH:MM" in MarketTimezone
	MarketClose    string // "HH:MM" in MarketTimezone

	// Staleness windows for cached quotes.
	StockPriceMaxAge   time.Duration // applies inside market hours
	CurrencyRateMaxAge time.Duration

	// Ordered list of exchanges tried when a ticker's exchange is unknown.
	// The order is fixed so symbol resolution stays deterministic.
	ExchangeOrder []string

	// Scraped price sources.
	StockQuoteBaseURL   string
	CurrencyRateBaseURL string
	ProviderTimeout     time.Duration

	DefaultHomeCurrency string
}

var Cfg *AppConfig

func LoadConfig() {
	if err := godotenv.Load(); err != nil {
		log.Println("Info: No .env file found. Relying on OS environment variables and defaults.")
	}

	log.Println("Loading application configuration...")

	jwtSecret := getEnv("JWT_SECRET", "your-very-secure-and-long-jwt-secret-key-for-hs256-minimum-32-bytes")
	if jwtSecret == "your-very-secure-and-long-jwt-secret-key-for-hs256-minimum-32-bytes" {
		log.Println("WARNING: Using default insecure JWT_SECRET. Set JWT_SECRET environment variable for production.")
	}

	csrfAuthKeyStr := getEnv("CSRF_AUTH_KEY", "a-very-secure-32-byte-long-key-must-be-32-bytes!")
	if len(csrfAuthKeyStr) < 32 {
		log.Fatalf("FATAL: CSRF_AUTH_KEY must be at least 32 bytes long. Current length: %d", len(csrfAuthKeyStr))
	}

	exchangeOrder := strings.Split(getEnv("EXCHANGE_ORDER", "NASDAQ,NYSE,NYSEARCA,SGX"), ",")
	for i := range exchangeOrder {
		exchangeOrder[i] = strings.ToUpper(strings.TrimSpace(exchangeOrder[i]))
	}

	Cfg = &AppConfig{
		JWTSecret:    jwtSecret,
		Port:         getEnv("PORT", "8080"),
		DatabasePath: getEnv("DATABASE_PATH", "./stockfolio.db"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		CSRFAuthKey:  []byte(csrfAuthKeyStr),

		AccessTokenExpiry:  getEnvAsDuration("ACCESS_TOKEN_EXPIRY", 60*time.Minute),
		RefreshTokenExpiry: getEnvAsDuration("REFRESH_TOKEN_EXPIRY", 168*time.Hour),

		MarketTimezone: getEnv("MARKET_TIMEZONE", "America/New_York"),
		MarketOpen:     getEnv("MARKET_OPEN", "09:30"),
		MarketClose:    getEnv("MARKET_CLOSE", "16:00"),

		StockPriceMaxAge:   getEnvAsDuration("STOCK_PRICE_MAX_AGE", 5*time.Minute),
		CurrencyRateMaxAge: getEnvAsDuration("CURRENCY_RATE_MAX_AGE", 30*time.Minute),

		ExchangeOrder: exchangeOrder,

		StockQuoteBaseURL:   getEnv("STOCK_QUOTE_BASE_URL", "https://www.google.com/finance/quote"),
		CurrencyRateBaseURL: getEnv("CURRENCY_RATE_BASE_URL", "https://www.xe.com/currencyconverter/convert/"),
		ProviderTimeout:     getEnvAsDuration("PROVIDER_TIMEOUT", 20*time.Second),

		DefaultHomeCurrency: getEnv("DEFAULT_HOME_CURRENCY", "USD"),
	}

	log.Printf("Configuration loaded: Port=%s, LogLevel=%s, DBPath=%s, MarketTZ=%s",
		Cfg.Port, Cfg.LogLevel, Cfg.DatabasePath, Cfg.MarketTimezone)
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid integer value for %s ('%s'), using default: %d", key, valueStr, fallback)
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid duration value for %s ('%s'), using default: %s", key, valueStr, fallback.String())
	return fallback
}
