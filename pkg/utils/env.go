package utils

import (
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// LoadConfig reads a .env file (if present) and wires viper to the
// process environment so flags and env vars share one namespace.
func LoadConfig(path string) {
	_ = godotenv.Load(strings.TrimSuffix(path, "/") + "/.env")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
}
