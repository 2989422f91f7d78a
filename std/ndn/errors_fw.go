package ndn

import "errors"

// ErrFaceExists is returned when add_reserved is called with an id already in use.
var ErrFaceExists = errors.New("face id already in use")

// ErrStrategyNotInstalled is returned when StrategyChoice.insert names a strategy
// that has not been registered via install.
var ErrStrategyNotInstalled = errors.New("strategy not installed")

// ErrStrategyVersion is returned when a strategy Name names an unsupported version.
var ErrStrategyVersion = errors.New("unsupported strategy version")
