package catalog

import (
	"errors"
	"fmt"

	"github.com/jonwraymond/ncmat/factory"
)

// Sentinel errors for catalog operations.
var (
	// ErrNotFound indicates no material file matches a configuration string.
	ErrNotFound = fmt.Errorf("%w: material file not found", factory.ErrBadInput)

	// ErrUnsetVariable indicates a ${VAR} reference to an unset variable.
	ErrUnsetVariable = errors.New("catalog: unset environment variable")
)
