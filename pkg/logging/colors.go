// Package logging provides colorized, leveled console output for the bridge
package logging

import (
	"fmt"
	"os"

	"github.com/fatih/color"
)

var (
	// Color functions
	errorColor   = color.New(color.FgRed, color.Bold)
	warningColor = color.New(color.FgYellow)
	successColor = color.New(color.FgGreen)
	infoColor    = color.New(color.FgBlue)
	subsysColor  = color.New(color.FgCyan, color.Bold)
	connColor    = color.New(color.FgMagenta)
	debugColor   = color.New(color.FgWhite, color.Faint)

	// Control flags
	colorsEnabled = true
)

// InitColors initializes the color system
func InitColors(enabled bool) {
	colorsEnabled = enabled

	// Respect NO_COLOR environment variable (https://no-color.org/)
	if os.Getenv("NO_COLOR") != "" {
		colorsEnabled = false
	}

	color.NoColor = !colorsEnabled
}

// AreColorsEnabled returns whether colors are currently enabled
func AreColorsEnabled() bool {
	return colorsEnabled
}

// Error prints an error message in red and records it in the ring buffer
func Error(format string, args ...interface{}) {
	line := fmt.Sprintf(format, args...)
	recordLine("ERROR", line)
	if colorsEnabled {
		errorColor.Printf("ERROR: %s\n", line)
	} else {
		fmt.Printf("ERROR: %s\n", line)
	}
}

// Warning prints a warning message in yellow and records it in the ring buffer
func Warning(format string, args ...interface{}) {
	line := fmt.Sprintf(format, args...)
	recordLine("WARN", line)
	if colorsEnabled {
		warningColor.Printf("WARN: %s\n", line)
	} else {
		fmt.Printf("WARN: %s\n", line)
	}
}

// Success prints a success message in green
func Success(format string, args ...interface{}) {
	if colorsEnabled {
		successColor.Printf("✓ "+format+"\n", args...)
	} else {
		fmt.Printf("✓ "+format+"\n", args...)
	}
}

// Info prints an info message in blue
func Info(format string, args ...interface{}) {
	if colorsEnabled {
		infoColor.Printf(format+"\n", args...)
	} else {
		fmt.Printf(format+"\n", args...)
	}
}

// Debug prints a debug message in faint white
func Debug(format string, args ...interface{}) {
	if colorsEnabled {
		debugColor.Printf(format+"\n", args...)
	} else {
		fmt.Printf(format+"\n", args...)
	}
}

// Subsystem prints a message tagged with a bridge subsystem name (frame, hci,
// advertising, hop, ...) in cyan
func Subsystem(subsystem string, format string, args ...interface{}) {
	if colorsEnabled {
		subsysColor.Printf("[%s] ", subsystem)
		fmt.Printf(format+"\n", args...)
	} else {
		fmt.Printf("[%s] "+format+"\n", append([]interface{}{subsystem}, args...)...)
	}
}

// Conn prints a message tagged with a connection identifier (handle or
// access address) in magenta
func Conn(conn string, format string, args ...interface{}) {
	if colorsEnabled {
		connColor.Printf("[%s] ", conn)
		fmt.Printf(format+"\n", args...)
	} else {
		fmt.Printf("[%s] "+format+"\n", append([]interface{}{conn}, args...)...)
	}
}

// SubsystemDebug prints a debug message for a specific subsystem, gated by level
func SubsystemDebug(subsystem string, debugLevel int, minLevel int, format string, args ...interface{}) {
	if debugLevel >= minLevel {
		Subsystem(subsystem, format, args...)
	}
}
