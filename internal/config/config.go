package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config centraliza a configuração carregada do ambiente.
type Config struct {
	Port     int
	DBDSN    string
	RedisURL string

	// JWTSecret habilita HS256; JWTRSAKeyPath habilita RS256 e JWKS.
	// Exatamente um dos dois deve estar configurado.
	JWTSecret     string
	JWTRSAKeyPath string
	JWTIssuer     string
	JWTAccessTTL  time.Duration

	JWTRefreshTTL  time.Duration
	RefreshEnabled bool

	OTPLength     int
	OTPTTL        time.Duration
	PendingTTL    time.Duration
	ConfirmTTL    time.Duration
	ApplicationID string

	GatewayAPIToken string
	GatewayAPIBase  string
	GatewaySender   string
	EventWebhookURL string

	AllowOrigins    []string
	RateLimitPublic RateLimitConfig
	RateLimitAuth   RateLimitConfig
}

// RateLimitConfig representa limites simples para throttling.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// Load carrega variáveis de ambiente e aplica defaults seguros.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	portStr := getEnv("PORT", "8080")
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 {
		return nil, errors.New("PORT inválida")
	}
	cfg.Port = port

	cfg.DBDSN = getEnv("DB_DSN", "")
	if cfg.DBDSN == "" {
		return nil, errors.New("DB_DSN obrigatório")
	}

	cfg.RedisURL = getEnv("REDIS_URL", "")
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL obrigatório")
	}

	cfg.JWTSecret = strings.TrimSpace(getEnv("JWT_SECRET", ""))
	cfg.JWTRSAKeyPath = strings.TrimSpace(getEnv("JWT_RSA_KEY_PATH", ""))
	switch {
	case cfg.JWTSecret == "" && cfg.JWTRSAKeyPath == "":
		return nil, errors.New("JWT_SECRET ou JWT_RSA_KEY_PATH obrigatório")
	case cfg.JWTSecret != "" && cfg.JWTRSAKeyPath != "":
		return nil, errors.New("JWT_SECRET e JWT_RSA_KEY_PATH são mutuamente exclusivos")
	case cfg.JWTSecret != "" && len(cfg.JWTSecret) < 32:
		return nil, errors.New("JWT_SECRET deve ter pelo menos 32 caracteres")
	}

	cfg.JWTIssuer = strings.TrimSpace(getEnv("JWT_ISSUER", "identidade"))

	accessTTL, err := parseDurationEnv("JWT_ACCESS_TTL", 15*time.Minute)
	if err != nil {
		return nil, err
	}
	cfg.JWTAccessTTL = accessTTL

	refreshTTL, err := parseDurationEnv("JWT_REFRESH_TTL", 30*24*time.Hour)
	if err != nil {
		return nil, err
	}
	cfg.JWTRefreshTTL = refreshTTL

	cfg.RefreshEnabled = parseBoolEnv("REFRESH_ENABLED", true)

	otpLength, err := strconv.Atoi(getEnv("OTP_LENGTH", "6"))
	if err != nil || otpLength < 4 || otpLength > 10 {
		return nil, errors.New("OTP_LENGTH inválido")
	}
	cfg.OTPLength = otpLength

	otpTTL, err := parseDurationEnv("OTP_TTL", 5*time.Minute)
	if err != nil {
		return nil, err
	}
	cfg.OTPTTL = otpTTL

	pendingTTL, err := parseDurationEnv("PENDING_2FA_TTL", 10*time.Minute)
	if err != nil {
		return nil, err
	}
	cfg.PendingTTL = pendingTTL

	confirmTTL, err := parseDurationEnv("CONFIRM_EMAIL_TTL", 24*time.Hour)
	if err != nil {
		return nil, err
	}
	cfg.ConfirmTTL = confirmTTL

	cfg.ApplicationID = strings.TrimSpace(getEnv("APPLICATION_ID", "identidade"))

	cfg.GatewayAPIToken = strings.TrimSpace(getEnv("GATEWAY_API_TOKEN", ""))
	cfg.GatewayAPIBase = strings.TrimSpace(getEnv("GATEWAY_API_BASE", ""))
	cfg.GatewaySender = strings.TrimSpace(getEnv("GATEWAY_SENDER", ""))
	cfg.EventWebhookURL = strings.TrimSpace(getEnv("EVENT_WEBHOOK_URL", ""))

	allowOrigins := strings.Split(getEnv("ALLOW_ORIGINS", ""), ",")
	cfg.AllowOrigins = nil
	for _, origin := range allowOrigins {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			cfg.AllowOrigins = append(cfg.AllowOrigins, origin)
		}
	}

	cfg.RateLimitPublic = RateLimitConfig{RequestsPerSecond: 10, Burst: 20}
	cfg.RateLimitAuth = RateLimitConfig{RequestsPerSecond: 5, Burst: 10}

	return cfg, nil
}

func getEnv(key, def string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return def
}

func parseDurationEnv(key string, def time.Duration) (time.Duration, error) {
	val := getEnv(key, "")
	if val == "" {
		return def, nil
	}
	dur, err := time.ParseDuration(val)
	if err != nil {
		return 0, errors.New(key + " inválido")
	}
	return dur, nil
}

func parseBoolEnv(key string, def bool) bool {
	val := strings.TrimSpace(getEnv(key, ""))
	if val == "" {
		return def
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return def
	}
	return parsed
}
