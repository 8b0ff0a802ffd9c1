package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
)

const (
	// Invite chain bounds. The propagation guard rejects any chain that would
	// exceed these; they are deliberate, explicit constants rather than values
	// inferred from call sites.
	DefaultInviteMaxDepth = 3
	DefaultInviteMaxUses  = 5
)

const (
	defaultInviteQueueSize  = 100
	defaultNumInviteWorkers = 2
	defaultJWTExpiryHours   = 24
)

type Config struct {
	// database path
	DatabasePath string

	// HTTP settings
	ListenAddr    string
	AllowedOrigin string

	// auth
	JWTSecret      string
	JWTExpiryHours int

	// invite propagation bounds
	InviteMaxDepth int
	InviteMaxUses  int

	// invite delivery worker settings
	InviteQueueSize  int
	NumInviteWorkers int

	// chat answerer (LLM collaborator)
	OpenAIKey   string
	OpenAIModel string
}

func getEnvOrDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvIntOrDefault(envVar string, defaultVal int) int {
	valStr := os.Getenv(envVar)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(valStr)
	if err != nil || val <= 0 {
		log.Printf("Warning: Invalid %s '%s'. Using default %d. Error: %v", envVar, valStr, defaultVal, err)
		return defaultVal
	}
	return val
}

func LoadConfig() (Config, error) {
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET must be set")
	}

	cfg := Config{
		DatabasePath:     getEnvOrDefault("DATABASE_PATH", "kindred.db"),
		ListenAddr:       getEnvOrDefault("LISTEN_ADDR", ":8080"),
		AllowedOrigin:    getEnvOrDefault("ALLOWED_ORIGIN", "http://localhost:5173"),
		JWTSecret:        jwtSecret,
		JWTExpiryHours:   getEnvIntOrDefault("JWT_EXPIRY_HOURS", defaultJWTExpiryHours),
		InviteMaxDepth:   getEnvIntOrDefault("INVITE_MAX_DEPTH", DefaultInviteMaxDepth),
		InviteMaxUses:    getEnvIntOrDefault("INVITE_MAX_USES", DefaultInviteMaxUses),
		InviteQueueSize:  getEnvIntOrDefault("INVITE_QUEUE_SIZE", defaultInviteQueueSize),
		NumInviteWorkers: getEnvIntOrDefault("NUM_INVITE_WORKERS", defaultNumInviteWorkers),
		OpenAIKey:        os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:      getEnvOrDefault("OPENAI_MODEL", "gpt-4o-mini"),
	}

	return cfg, nil
}
