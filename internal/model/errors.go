package model

import (
	"errors"
	"fmt"
)

var (
	ErrDuplicateScript = errors.New("duplicate script id")
	ErrNoFields        = errors.New("result pattern declares no fields")
	ErrFieldMismatch   = errors.New("field has no matching capture group")
)

// ConfigError reports an invalid entry in one of the two configuration
// sources. Configuration errors are fatal, they abort before any script runs.
type ConfigError struct {
	Source string // "scripts" or "patterns"
	Path   string // e.g. patterns[2].regex
	Err    error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s config: %s: %v", e.Source, e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }
