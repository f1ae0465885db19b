package core

import "fmt"

// Mode is the tool execution policy for a run. Planning permits only
// read-only tools; building permits every registered tool (subject to any
// configured allow-list).
type Mode int

const (
	// ModePlanning restricts tool execution to read-only tools.
	ModePlanning Mode = iota
	// ModeBuilding permits all registered tools.
	ModeBuilding
)

// String returns the CLI-facing name of the mode.
func (m Mode) String() string {
	switch m {
	case ModePlanning:
		return "planning"
	case ModeBuilding:
		return "building"
	default:
		return "unknown"
	}
}

// ParseMode converts a CLI/config string into a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "planning":
		return ModePlanning, nil
	case "building":
		return ModeBuilding, nil
	default:
		return ModePlanning, fmt.Errorf("unknown mode %q (want planning or building)", s)
	}
}
