package config

import "go.uber.org/zap"

// NewLogger returns the production encoder for ENV=production and the
// development one otherwise.
func NewLogger(env string) (*zap.Logger, error) {
	if env == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
