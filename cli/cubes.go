package cli

import (
	"strconv"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var cubesCmd = &cobra.Command{
	Use:   "cubes",
	Short: "Manage cubes",
	Long: `Manage cube definitions: the logical measure/dimension schemas fact
tables feed into.

Examples:
  lattice cubes list
  lattice cubes describe sales
  lattice cubes create -f sales-cube.yml
  lattice cubes drop sales`,
}

var cubesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all cubes",
	RunE:  runCubesList,
}

var cubesDescribeCmd = &cobra.Command{
	Use:   "describe <name>",
	Short: "Show a cube's measures, dimensions and properties",
	Args:  cobra.ExactArgs(1),
	RunE:  runCubesDescribe,
}

var cubesCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a cube from a definition file",
	RunE:  runCubesCreate,
}

var cubesDropCmd = &cobra.Command{
	Use:   "drop <name>",
	Short: "Drop a cube",
	Args:  cobra.ExactArgs(1),
	RunE:  runCubesDrop,
}

type cubesCreateOptions struct {
	file string
}

var cubesCreateOpts = &cubesCreateOptions{}

func init() {
	rootCmd.AddCommand(cubesCmd)

	cubesCmd.AddCommand(cubesListCmd)
	cubesCmd.AddCommand(cubesDescribeCmd)
	cubesCmd.AddCommand(cubesCreateCmd)
	cubesCmd.AddCommand(cubesDropCmd)

	cubesCreateCmd.Flags().StringVarP(&cubesCreateOpts.file, "file", "f", "", "path to the cube definition file")
	_ = cubesCreateCmd.MarkFlagRequired("file")
}

func runCubesList(cmd *cobra.Command, args []string) error {
	ms, err := openMetastore(cmd)
	if err != nil {
		return err
	}
	defer ms.Close()

	cubes, err := ms.AllCubes(cmd.Context())
	if err != nil {
		return err
	}
	if len(cubes) == 0 {
		pterm.Info.Println("No cubes defined")
		return nil
	}

	rows := make([][]string, 0, len(cubes))
	for _, cb := range cubes {
		rows = append(rows, []string{
			cb.Name,
			strconv.Itoa(len(cb.Measures)),
			strconv.Itoa(len(cb.Dimensions)),
			strconv.FormatFloat(cb.Weight, 'f', -1, 64),
		})
	}
	return renderTable([]string{"NAME", "MEASURES", "DIMENSIONS", "WEIGHT"}, rows)
}

func runCubesDescribe(cmd *cobra.Command, args []string) error {
	ms, err := openMetastore(cmd)
	if err != nil {
		return err
	}
	defer ms.Close()

	cb, err := ms.GetCube(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	pterm.DefaultSection.Printf("Cube %s", cb.Name)

	pterm.Println("Measures:")
	measureRows := make([][]string, 0, len(cb.Measures))
	for _, m := range cb.Measures {
		measureRows = append(measureRows, []string{m.Name, m.Type, m.Aggregate, m.Unit})
	}
	if err := renderTable([]string{"NAME", "TYPE", "AGGREGATE", "UNIT"}, measureRows); err != nil {
		return err
	}

	pterm.Println("Dimensions:")
	dimensionRows := make([][]string, 0, len(cb.Dimensions))
	for _, d := range cb.Dimensions {
		refs := make([]string, 0, len(d.References))
		for _, ref := range d.References {
			refs = append(refs, ref.String())
		}
		refCell := "-"
		if len(refs) > 0 {
			refCell = strings.Join(refs, ", ")
		}
		dimensionRows = append(dimensionRows, []string{d.Name, d.Type, refCell})
	}
	if err := renderTable([]string{"NAME", "TYPE", "REFERENCES"}, dimensionRows); err != nil {
		return err
	}

	pterm.Printf("Properties: %s\n", formatProperties(cb.Properties))
	return nil
}

func runCubesCreate(cmd *cobra.Command, args []string) error {
	cb, err := loadCubeFile(cubesCreateOpts.file)
	if err != nil {
		return err
	}

	ms, err := openMetastore(cmd)
	if err != nil {
		return err
	}
	defer ms.Close()

	if err := ms.CreateCube(cmd.Context(), cb); err != nil {
		return err
	}
	pterm.Success.Printf("Created cube %s\n", cb.Name)
	return nil
}

func runCubesDrop(cmd *cobra.Command, args []string) error {
	ms, err := openMetastore(cmd)
	if err != nil {
		return err
	}
	defer ms.Close()

	if err := ms.DropCube(cmd.Context(), args[0]); err != nil {
		return err
	}
	pterm.Success.Printf("Dropped cube %s\n", args[0])
	return nil
}
