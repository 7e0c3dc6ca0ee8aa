// Package errmsg provides consistent error formatting for user-facing messages.
package errmsg

import "fmt"

// Op represents an operation that can fail.
type Op string

// Operation constants - grouped by domain.
const (
	// Configuration
	OpConfigLoad   Op = "load configuration"
	OpConfigReload Op = "reload configuration"
	OpRulesLoad    Op = "load event rules"
	OpWatch        Op = "watch configuration files"

	// Bus
	OpBusConnect   Op = "connect to message bus"
	OpBusSubscribe Op = "subscribe to bus signals"
	OpBatteryQuery Op = "query battery"

	// Remote control
	OpControlRegister Op = "register control service"
	OpControlShow     Op = "show notification"
	OpControlHide     Op = "hide notification"
	OpControlReload   Op = "reload daemon"
	OpControlState    Op = "read daemon state"
	OpControlVersion  Op = "read daemon version"

	// Output
	OpRender    Op = "render notification"
	OpSoundPlay Op = "play sound"

	// State
	OpStateOpen Op = "open state database"

	// Metrics
	OpMetricsServe Op = "serve metrics"

	// Initialization
	OpInitialize Op = "initialize daemon"
)

// Format creates a user-friendly error message.
func Format(op Op, err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("Failed to %s: %v", op, err)
}

// FormatWith creates an error message with additional context.
func FormatWith(op Op, context string, err error) string {
	if err == nil {
		return ""
	}
	if context == "" {
		return Format(op, err)
	}
	return fmt.Sprintf("Failed to %s '%s': %v", op, context, err)
}
