package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pterm/pterm"

	"github.com/gear6io/lattice/server/cube"
)

// renderTable prints rows under a header row.
func renderTable(headers []string, rows [][]string) error {
	data := make([][]string, 0, len(rows)+1)
	data = append(data, headers)
	data = append(data, rows...)
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

// formatPeriods renders a period set the way entity files spell it.
func formatPeriods(periods []cube.UpdatePeriod) string {
	return strings.ToLower(cube.FormatUpdatePeriods(periods))
}

// formatDumpPeriod renders a dimension storage's dump period; the zero
// period means the storage is append-only.
func formatDumpPeriod(period cube.UpdatePeriod) string {
	if period == cube.UpdatePeriodUnknown {
		return "append-only"
	}
	return strings.ToLower(period.String())
}

// formatProperties renders a property map as sorted k=v pairs.
func formatProperties(props map[string]string) string {
	if len(props) == 0 {
		return "-"
	}
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, fmt.Sprintf("%s=%s", k, props[k]))
	}
	return strings.Join(pairs, ", ")
}

// sortedKeys returns the keys of a string-keyed map, sorted.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
