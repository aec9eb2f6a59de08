package output

import "fmt"

// Format selects how a command renders its result.
type Format int

const (
	FormatTable Format = iota
	FormatJSON
	FormatYAML
)

// ParseFormat parses the --output flag value.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "", "table":
		return FormatTable, nil
	case "json":
		return FormatJSON, nil
	case "yaml":
		return FormatYAML, nil
	default:
		return FormatTable, fmt.Errorf("unknown output format %q (want table, json, or yaml)", s)
	}
}
