package cli

import (
	"sort"
	"strconv"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/gear6io/lattice/server/cube"
)

var tablesCmd = &cobra.Command{
	Use:   "tables",
	Short: "Inspect raw catalog tables",
}

var tablesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every catalog table with its classification",
	Long: `List every table in the catalog: cubes, facts, dimension tables and
the storage tables they materialize (shown as OTHER).`,
	RunE: runTablesList,
}

func init() {
	rootCmd.AddCommand(tablesCmd)
	tablesCmd.AddCommand(tablesListCmd)
}

func runTablesList(cmd *cobra.Command, args []string) error {
	ms, err := openMetastore(cmd)
	if err != nil {
		return err
	}
	defer ms.Close()

	names, err := ms.AllTableNames(cmd.Context())
	if err != nil {
		return err
	}
	if len(names) == 0 {
		pterm.Info.Println("Catalog is empty")
		return nil
	}
	sort.Strings(names)

	rows := make([][]string, 0, len(names))
	for _, name := range names {
		row, err := ms.GetTable(cmd.Context(), name)
		if err != nil {
			return err
		}
		if row == nil {
			continue
		}
		rows = append(rows, []string{
			name,
			cube.ClassifyRow(row).String(),
			strconv.Itoa(len(row.Columns)),
			strings.Join(row.PartitionColumnNames(), ", "),
		})
	}
	return renderTable([]string{"NAME", "TYPE", "COLUMNS", "PARTITIONED BY"}, rows)
}
