// Package logging builds the zap logger used by the operator commands
package logging

import "go.uber.org/zap"

// New creates a new zap logger and installs it as the global one. debug switches to
// the development encoder at debug level.
func New(debug bool) (*zap.SugaredLogger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if debug {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)
	return logger.Sugar(), nil
}
