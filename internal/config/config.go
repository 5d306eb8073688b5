package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port string
	Env  string

	// Gemini AI
	GeminiAPIKey         string
	GeminiModel          string
	GeminiConcurrentReqs int

	// Uploads
	UploadPath string

	// Static assets (optional browser client)
	StaticPath string

	// CORS
	FrontendURL string
}

// ClientConfig holds settings consumed by the terminal client.
type ClientConfig struct {
	ServerURL string
	StatePath string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:                 getEnvOrDefault("PORT", "8080"),
		Env:                  getEnvOrDefault("ENV", "development"),
		GeminiAPIKey:         mustGetEnv("GEMINI_API_KEY"),
		GeminiModel:          getEnvOrDefault("GEMINI_MODEL", "gemini-2.5-flash"),
		GeminiConcurrentReqs: getEnvAsIntOrDefault("GEMINI_CONCURRENT_REQUESTS", 5),
		UploadPath:           getEnvOrDefault("UPLOAD_PATH", "./uploads"),
		StaticPath:           getEnvOrDefault("STATIC_PATH", "./public"),
		FrontendURL:          getEnvOrDefault("FRONTEND_URL", "*"),
	}

	return cfg
}

// LoadClient reads the terminal client settings. The state file defaults to a
// dotfile under the user's home directory so conversations survive restarts.
func LoadClient() *ClientConfig {
	godotenv.Load()

	statePath := os.Getenv("GEMCHAT_STATE_PATH")
	if statePath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		statePath = filepath.Join(home, ".gemchat", "conversations.json")
	}

	return &ClientConfig{
		ServerURL: getEnvOrDefault("GEMCHAT_SERVER_URL", "http://localhost:8080"),
		StatePath: statePath,
	}
}

func mustGetEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return val
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}
