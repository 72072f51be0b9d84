package utils

import (
	"os"

	"go.uber.org/zap"
)

// NewLogger builds a development logger when ENV=dev (or unset), production otherwise.
func NewLogger() (*zap.Logger, error) {
	env, ok := os.LookupEnv("ENV")
	if !ok || env == "dev" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
