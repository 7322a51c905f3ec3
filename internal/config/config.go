package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	ServerAddress string
	JWTSecret     string
	JWTExpiration time.Duration

	// AdminEmail bootstraps governance: the account registered under this
	// email carries the admin claim. Empty disables HTTP governance entirely
	// (cmd/genesis can still seed the whitelists).
	AdminEmail string

	// StoreBackend selects where the slot words live: memory, mongo, redis.
	StoreBackend string
	DataDir      string

	MongoURI string
	MongoDB  string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisTLS      bool

	// Addresses the built-in follow modules are registered under. Governance
	// still has to whitelist them before they can be bound.
	OpenModuleAddress string
	FeeModuleAddress  string
}

func Load() *Config {
	return &Config{
		ServerAddress: getEnv("SERVER_ADDRESS", ":8080"),
		JWTSecret:     getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
		JWTExpiration: 24 * time.Hour,
		AdminEmail:    getEnv("ADMIN_EMAIL", ""),
		StoreBackend:  getEnv("STORE_BACKEND", "memory"),
		DataDir:       getEnv("DATA_DIR", "./data"),
		MongoURI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:       getEnv("MONGO_DB", "profilehub"),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		RedisTLS:      getEnvBool("REDIS_TLS", false),

		OpenModuleAddress: getEnv("OPEN_MODULE_ADDRESS", "0x0000000000000000000000000000000000000101"),
		FeeModuleAddress:  getEnv("FEE_MODULE_ADDRESS", "0x0000000000000000000000000000000000000102"),
	}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
