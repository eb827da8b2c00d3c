// Package logging constructs the zap logger used across sheetrag, switching
// between zap's development and production presets based on configured
// level.
package logging

import "go.uber.org/zap"

// New builds a *zap.Logger. level "debug" gets zap's human-readable
// development encoder; anything else gets the production JSON encoder.
func New(level string) (*zap.Logger, error) {
	if level == "debug" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
