package config

import (
	"go.uber.org/zap"
)

// setLogger picks a zap configuration for the given environment name
func setLogger(env string) (*zap.Logger, error) {
	switch env {
	case "production":
		return zap.NewProduction()
	case "development":
		return zap.NewDevelopment()
	default:
		return zap.NewExample(), nil
	}
}
