package client

import (
	"errors"
	"fmt"
	"strings"

	"github.com/leakix-tools/leakix-go/pkg/keystore"
)

// ErrInvalidAPIKey signals a credential that cannot possibly be accepted
// upstream (wrong length or blank).
var ErrInvalidAPIKey = fmt.Errorf("API key must be %d characters", keystore.KeyLength)

// UnknownPluginError reports requested plugin names that the upstream
// plugin list does not contain. The search is rejected before any page is
// fetched.
type UnknownPluginError struct {
	// Names are the rejected plugin names, in request order.
	Names []string
	// Known is the upstream plugin list, for error messages.
	Known []string
}

func (e *UnknownPluginError) Error() string {
	return fmt.Sprintf("unknown plugins: %s (valid: %s)",
		strings.Join(e.Names, ", "), strings.Join(e.Known, ", "))
}

// IsUnknownPlugin reports whether err is an UnknownPluginError.
func IsUnknownPlugin(err error) bool {
	var upe *UnknownPluginError
	return errors.As(err, &upe)
}
