package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config carries every tunable the server reads at boot. Values come from
// the environment, optionally seeded from a .env file in the working
// directory.
type Config struct {
	Host      string
	Port      int
	ClientDir string

	SessionSecret   []byte
	GeneratedSecret bool
	AdminKey        string

	TickRate  int
	WorldSeed string

	LogLevel    string
	LogFormat   string
	LogSinks    []string
	LogJSONPath string

	SecurityAutoBan bool
}

// Load reads the environment and returns a normalized Config. A missing
// SESSION_SECRET is replaced with 32 random bytes; that keeps single-node
// runs working but invalidates sessions across restarts.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Host:      envString("HOST", "0.0.0.0"),
		Port:      envInt("PORT", 8080),
		ClientDir: envString("CLIENT_DIR", ""),

		AdminKey: os.Getenv("ADMIN_KEY"),

		TickRate:  envInt("TICK_RATE", 60),
		WorldSeed: envString("WORLD_SEED", "mine-land"),

		LogLevel:    envString("LOG_LEVEL", "info"),
		LogFormat:   envString("LOG_FORMAT", "text"),
		LogSinks:    envList("LOG_SINKS", []string{"console"}),
		LogJSONPath: envString("LOG_JSON_PATH", ""),

		SecurityAutoBan: envBool("SECURITY_AUTO_BAN", false),
	}

	secret, generated, err := loadSecret(os.Getenv("SESSION_SECRET"))
	if err != nil {
		return Config{}, err
	}
	cfg.SessionSecret = secret
	cfg.GeneratedSecret = generated

	return cfg.normalized(), nil
}

// Addr joins host and port for net/http.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c Config) normalized() Config {
	if strings.TrimSpace(c.Host) == "" {
		c.Host = "0.0.0.0"
	}
	if c.Port <= 0 || c.Port > 65535 {
		c.Port = 8080
	}
	if c.TickRate <= 0 || c.TickRate > 240 {
		c.TickRate = 60
	}
	if strings.TrimSpace(c.WorldSeed) == "" {
		c.WorldSeed = "mine-land"
	}
	if len(c.LogSinks) == 0 {
		c.LogSinks = []string{"console"}
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		c.LogFormat = "text"
	}
	return c
}

func loadSecret(raw string) ([]byte, bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		secret := make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, false, fmt.Errorf("generate session secret: %w", err)
		}
		return secret, true, nil
	}
	// A 64-char hex string is taken as raw key material; anything else is
	// used verbatim.
	if len(raw) == 64 {
		if decoded, err := hex.DecodeString(raw); err == nil {
			return decoded, false, nil
		}
	}
	return []byte(raw), false, nil
}

func envString(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func envBool(key string, fallback bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return value
}

func envList(key string, fallback []string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	if len(values) == 0 {
		return fallback
	}
	return values
}
