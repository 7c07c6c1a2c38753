package cli

import (
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var dimensionsCmd = &cobra.Command{
	Use:   "dimensions",
	Short: "Manage dimension tables",
	Long: `Manage dimension tables: the lookup tables cubes slice by, tracked per
storage with an optional snapshot dump period.

Examples:
  lattice dimensions list
  lattice dimensions describe regions
  lattice dimensions create -f regions.yml
  lattice dimensions drop regions --cascade`,
}

var dimensionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List dimension tables",
	RunE:  runDimensionsList,
}

var dimensionsDescribeCmd = &cobra.Command{
	Use:   "describe <name>",
	Short: "Show a dimension table's schema, references and storage tracking",
	Args:  cobra.ExactArgs(1),
	RunE:  runDimensionsDescribe,
}

var dimensionsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a dimension table and its storage tables from a definition file",
	RunE:  runDimensionsCreate,
}

var dimensionsDropCmd = &cobra.Command{
	Use:   "drop <name>",
	Short: "Drop a dimension table",
	Long: `Drop a dimension table. With --cascade its storage tables and their
partitions are dropped too; without it they are left behind.`,
	Args: cobra.ExactArgs(1),
	RunE: runDimensionsDrop,
}

type dimensionsCreateOptions struct {
	file string
}

type dimensionsDropOptions struct {
	cascade bool
}

var (
	dimensionsCreateOpts = &dimensionsCreateOptions{}
	dimensionsDropOpts   = &dimensionsDropOptions{}
)

func init() {
	rootCmd.AddCommand(dimensionsCmd)

	dimensionsCmd.AddCommand(dimensionsListCmd)
	dimensionsCmd.AddCommand(dimensionsDescribeCmd)
	dimensionsCmd.AddCommand(dimensionsCreateCmd)
	dimensionsCmd.AddCommand(dimensionsDropCmd)

	dimensionsCreateCmd.Flags().StringVarP(&dimensionsCreateOpts.file, "file", "f", "", "path to the dimension definition file")
	_ = dimensionsCreateCmd.MarkFlagRequired("file")

	dimensionsDropCmd.Flags().BoolVar(&dimensionsDropOpts.cascade, "cascade", false, "also drop the dimension's storage tables")
}

func runDimensionsList(cmd *cobra.Command, args []string) error {
	ms, err := openMetastore(cmd)
	if err != nil {
		return err
	}
	defer ms.Close()

	dims, err := ms.AllDimensionTables(cmd.Context())
	if err != nil {
		return err
	}
	if len(dims) == 0 {
		pterm.Info.Println("No dimension tables defined")
		return nil
	}

	rows := make([][]string, 0, len(dims))
	for _, dim := range dims {
		storages := make([]string, 0, len(dim.SnapshotDumpPeriods))
		for _, storage := range dim.Storages() {
			storages = append(storages, storage+" ("+formatDumpPeriod(dim.SnapshotDumpPeriods[storage])+")")
		}
		rows = append(rows, []string{
			dim.Name,
			strings.Join(storages, ", "),
		})
	}
	return renderTable([]string{"NAME", "STORAGES"}, rows)
}

func runDimensionsDescribe(cmd *cobra.Command, args []string) error {
	ms, err := openMetastore(cmd)
	if err != nil {
		return err
	}
	defer ms.Close()

	dim, err := ms.GetDimensionTable(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	pterm.DefaultSection.Printf("Dimension table %s", dim.Name)

	pterm.Println("Columns:")
	columnRows := make([][]string, 0, len(dim.Columns))
	for _, col := range dim.Columns {
		refs := "-"
		if columnRefs, ok := dim.References[col.Name]; ok && len(columnRefs) > 0 {
			parts := make([]string, 0, len(columnRefs))
			for _, ref := range columnRefs {
				parts = append(parts, ref.String())
			}
			refs = strings.Join(parts, ", ")
		}
		columnRows = append(columnRows, []string{col.Name, col.Type, refs})
	}
	if err := renderTable([]string{"NAME", "TYPE", "REFERENCES"}, columnRows); err != nil {
		return err
	}

	pterm.Println("Storages:")
	storageRows := make([][]string, 0, len(dim.SnapshotDumpPeriods))
	for _, storage := range dim.Storages() {
		storageRows = append(storageRows, []string{
			storage,
			formatDumpPeriod(dim.SnapshotDumpPeriods[storage]),
		})
	}
	if err := renderTable([]string{"STORAGE", "DUMP PERIOD"}, storageRows); err != nil {
		return err
	}

	pterm.Printf("Properties: %s\n", formatProperties(dim.Properties))
	return nil
}

func runDimensionsCreate(cmd *cobra.Command, args []string) error {
	dim, bindings, err := loadDimensionFile(dimensionsCreateOpts.file)
	if err != nil {
		return err
	}

	ms, err := openMetastore(cmd)
	if err != nil {
		return err
	}
	defer ms.Close()

	if err := ms.CreateDimensionTable(cmd.Context(), dim, bindings); err != nil {
		return err
	}
	pterm.Success.Printf("Created dimension table %s with %d storage table(s)\n", dim.Name, len(bindings))
	return nil
}

func runDimensionsDrop(cmd *cobra.Command, args []string) error {
	ms, err := openMetastore(cmd)
	if err != nil {
		return err
	}
	defer ms.Close()

	if err := ms.DropDimensionTable(cmd.Context(), args[0], dimensionsDropOpts.cascade); err != nil {
		return err
	}
	pterm.Success.Printf("Dropped dimension table %s\n", args[0])
	return nil
}
