package cli

import (
	"strconv"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/gear6io/lattice/server/cube"
)

var factsCmd = &cobra.Command{
	Use:   "facts",
	Short: "Manage fact tables",
	Long: `Manage fact tables: the raw event tables feeding cubes, tracked per
storage with the update periods data arrives at.

Examples:
  lattice facts list
  lattice facts list --cube sales
  lattice facts describe sales_raw
  lattice facts create -f sales-raw.yml
  lattice facts drop sales_raw --cascade`,
}

var factsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List fact tables, optionally only those of one cube",
	RunE:  runFactsList,
}

var factsDescribeCmd = &cobra.Command{
	Use:   "describe <name>",
	Short: "Show a fact table's schema and storage tracking",
	Args:  cobra.ExactArgs(1),
	RunE:  runFactsDescribe,
}

var factsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a fact table and its storage tables from a definition file",
	RunE:  runFactsCreate,
}

var factsDropCmd = &cobra.Command{
	Use:   "drop <name>",
	Short: "Drop a fact table",
	Long: `Drop a fact table. With --cascade its storage tables and their
partitions are dropped too; without it they are left behind.`,
	Args: cobra.ExactArgs(1),
	RunE: runFactsDrop,
}

type factsListOptions struct {
	cube string
}

type factsCreateOptions struct {
	file string
}

type factsDropOptions struct {
	cascade bool
}

var (
	factsListOpts   = &factsListOptions{}
	factsCreateOpts = &factsCreateOptions{}
	factsDropOpts   = &factsDropOptions{}
)

func init() {
	rootCmd.AddCommand(factsCmd)

	factsCmd.AddCommand(factsListCmd)
	factsCmd.AddCommand(factsDescribeCmd)
	factsCmd.AddCommand(factsCreateCmd)
	factsCmd.AddCommand(factsDropCmd)

	factsListCmd.Flags().StringVar(&factsListOpts.cube, "cube", "", "only list facts of this cube")

	factsCreateCmd.Flags().StringVarP(&factsCreateOpts.file, "file", "f", "", "path to the fact definition file")
	_ = factsCreateCmd.MarkFlagRequired("file")

	factsDropCmd.Flags().BoolVar(&factsDropOpts.cascade, "cascade", false, "also drop the fact's storage tables")
}

func runFactsList(cmd *cobra.Command, args []string) error {
	ms, err := openMetastore(cmd)
	if err != nil {
		return err
	}
	defer ms.Close()

	var facts []*cube.FactTable
	if factsListOpts.cube != "" {
		facts, err = ms.AllFactTablesForCube(cmd.Context(), factsListOpts.cube)
	} else {
		facts, err = ms.AllFactTables(cmd.Context())
	}
	if err != nil {
		return err
	}
	if len(facts) == 0 {
		pterm.Info.Println("No fact tables defined")
		return nil
	}

	rows := make([][]string, 0, len(facts))
	for _, fact := range facts {
		rows = append(rows, []string{
			fact.Name,
			strings.Join(fact.CubeNames, ", "),
			strings.Join(fact.Storages(), ", "),
			strconv.FormatFloat(fact.Weight, 'f', -1, 64),
		})
	}
	return renderTable([]string{"NAME", "CUBES", "STORAGES", "WEIGHT"}, rows)
}

func runFactsDescribe(cmd *cobra.Command, args []string) error {
	ms, err := openMetastore(cmd)
	if err != nil {
		return err
	}
	defer ms.Close()

	fact, err := ms.GetFactTable(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	pterm.DefaultSection.Printf("Fact table %s", fact.Name)
	pterm.Printf("Cubes: %s\n", strings.Join(fact.CubeNames, ", "))

	pterm.Println("Columns:")
	columnRows := make([][]string, 0, len(fact.Columns))
	for _, col := range fact.Columns {
		columnRows = append(columnRows, []string{col.Name, col.Type})
	}
	if err := renderTable([]string{"NAME", "TYPE"}, columnRows); err != nil {
		return err
	}

	pterm.Println("Storages:")
	storageRows := make([][]string, 0, len(fact.StorageUpdatePeriods))
	for _, storage := range fact.Storages() {
		storageRows = append(storageRows, []string{
			storage,
			formatPeriods(fact.StorageUpdatePeriods[storage]),
		})
	}
	if err := renderTable([]string{"STORAGE", "UPDATE PERIODS"}, storageRows); err != nil {
		return err
	}

	pterm.Printf("Properties: %s\n", formatProperties(fact.Properties))
	return nil
}

func runFactsCreate(cmd *cobra.Command, args []string) error {
	fact, bindings, err := loadFactFile(factsCreateOpts.file)
	if err != nil {
		return err
	}

	ms, err := openMetastore(cmd)
	if err != nil {
		return err
	}
	defer ms.Close()

	if err := ms.CreateFactTable(cmd.Context(), fact, bindings); err != nil {
		return err
	}
	pterm.Success.Printf("Created fact table %s with %d storage table(s)\n", fact.Name, len(bindings))
	return nil
}

func runFactsDrop(cmd *cobra.Command, args []string) error {
	ms, err := openMetastore(cmd)
	if err != nil {
		return err
	}
	defer ms.Close()

	if err := ms.DropFactTable(cmd.Context(), args[0], factsDropOpts.cascade); err != nil {
		return err
	}
	pterm.Success.Printf("Dropped fact table %s\n", args[0])
	return nil
}
