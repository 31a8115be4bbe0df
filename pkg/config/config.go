package config

import (
	"os"
	"strconv"
)

// Config holds server configuration.
type Config struct {
	Port         string
	LogLevel     string
	DatabaseURL  string // postgres report archive; empty runs without one
	SQLitePath   string // work item database
	DataDir      string
	ProfilesDir  string
	OpenAIAPIKey string
	OpenAIBase   string
	OpenAIModel  string
	JWTSecret    string
	MasterSecret string // seals stored ALM credentials
	RateLimitRPS float64
	RateBurst    int
}

// Load loads configuration from environment variables.
func Load() *Config {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "INFO"
	}

	sqlitePath := os.Getenv("SQLITE_PATH")
	if sqlitePath == "" {
		sqlitePath = "conformance.db"
	}

	dataDir := os.Getenv("DATA_DIR")
	if dataDir == "" {
		dataDir = "data"
	}

	profilesDir := os.Getenv("PROFILES_DIR")
	if profilesDir == "" {
		profilesDir = "profiles"
	}

	model := os.Getenv("OPENAI_MODEL")
	if model == "" {
		model = "gpt-4o-mini"
	}

	rps := 10.0
	if v := os.Getenv("RATE_LIMIT_RPS"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil && parsed > 0 {
			rps = parsed
		}
	}
	burst := 20
	if v := os.Getenv("RATE_LIMIT_BURST"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			burst = parsed
		}
	}

	return &Config{
		Port:         port,
		LogLevel:     logLevel,
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		SQLitePath:   sqlitePath,
		DataDir:      dataDir,
		ProfilesDir:  profilesDir,
		OpenAIAPIKey: os.Getenv("OPENAI_API_KEY"),
		OpenAIBase:   os.Getenv("OPENAI_BASE_URL"),
		OpenAIModel:  model,
		JWTSecret:    os.Getenv("JWT_SECRET"),
		MasterSecret: os.Getenv("MASTER_SECRET"),
		RateLimitRPS: rps,
		RateBurst:    burst,
	}
}
