package cmdutil

import (
	"fmt"
	"io"

	"github.com/novabloom/capsulecore/internal/cli/output"
)

// PrintOutput renders data in the format selected by --output: a table
// via tableRenderer, or JSON/YAML of data directly.
func PrintOutput(w io.Writer, data any, isEmpty bool, emptyMsg string, tableRenderer output.TableRenderer) error {
	format, err := output.ParseFormat(Flags.Output)
	if err != nil {
		return err
	}

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(w, data)
	case output.FormatYAML:
		return output.PrintYAML(w, data)
	default:
		if isEmpty {
			_, _ = fmt.Fprintln(w, emptyMsg)
			return nil
		}
		return output.PrintTable(w, tableRenderer)
	}
}
