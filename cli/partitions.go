package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/gear6io/lattice/server/catalog/cattypes"
	"github.com/gear6io/lattice/server/cube"
	"github.com/gear6io/lattice/server/metastore"
)

var partitionsCmd = &cobra.Command{
	Use:   "partitions",
	Short: "Register partitions on storage tables",
}

var partitionsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Register a partition for a fact or dimension on one storage",
	Long: `Register a partition. Time partition values are written in the update
period's own layout (hourly 2006-01-02-15, daily 2006-01-02, weekly
2006-W02, ...); the latest markers of the written time columns advance
automatically when the write is newer.

For dimensions the period defaults to the snapshot dump period the
dimension tracks for the storage.

Examples:
  lattice partitions add --fact sales_raw --storage prod --period hourly \
      --time dt=2024-05-01-10 --spec region=emea
  lattice partitions add --dimension regions --storage prod --time dt=2024-05-01
  lattice partitions add --fact sales_raw --storage prod --period daily \
      --time dt=2024-05-01 --param source=backfill`,
	RunE: runPartitionsAdd,
}

type partitionsAddOptions struct {
	fact      string
	dimension string
	storage   string
	period    string
	times     []string
	spec      []string
	params    []string
}

var partitionsAddOpts = &partitionsAddOptions{}

func init() {
	rootCmd.AddCommand(partitionsCmd)
	partitionsCmd.AddCommand(partitionsAddCmd)

	flags := partitionsAddCmd.Flags()
	flags.StringVar(&partitionsAddOpts.fact, "fact", "", "fact table the partition belongs to")
	flags.StringVar(&partitionsAddOpts.dimension, "dimension", "", "dimension table the partition belongs to")
	flags.StringVar(&partitionsAddOpts.storage, "storage", "", "storage the partition lands on")
	flags.StringVar(&partitionsAddOpts.period, "period", "", "update period the time values are bucketed at")
	flags.StringArrayVar(&partitionsAddOpts.times, "time", nil, "time partition value as column=value (repeatable)")
	flags.StringArrayVar(&partitionsAddOpts.spec, "spec", nil, "non-time partition value as column=value (repeatable)")
	flags.StringArrayVar(&partitionsAddOpts.params, "param", nil, "partition parameter as key=value (repeatable)")
	_ = partitionsAddCmd.MarkFlagRequired("storage")
	partitionsAddCmd.MarkFlagsMutuallyExclusive("fact", "dimension")
	partitionsAddCmd.MarkFlagsOneRequired("fact", "dimension")
}

func runPartitionsAdd(cmd *cobra.Command, args []string) error {
	opts := partitionsAddOpts

	ms, err := openMetastore(cmd)
	if err != nil {
		return err
	}
	defer ms.Close()

	entityName := opts.fact
	period := cube.UpdatePeriodUnknown
	if opts.fact != "" {
		if opts.period == "" {
			return fmt.Errorf("--period is required when adding a fact partition")
		}
		period, err = cube.ParseUpdatePeriod(opts.period)
		if err != nil {
			return err
		}
	} else {
		entityName = opts.dimension
		period, err = resolveDimensionPeriod(cmd, ms, opts)
		if err != nil {
			return err
		}
	}

	timeSpec, err := parseTimeValues(opts.times, period)
	if err != nil {
		return err
	}
	nonTimeSpec, err := parseKeyValues(opts.spec)
	if err != nil {
		return err
	}
	params, err := parseKeyValues(opts.params)
	if err != nil {
		return err
	}

	desc := &cube.StoragePartitionDesc{
		EntityName:   entityName,
		TimeSpec:     timeSpec,
		NonTimeSpec:  nonTimeSpec,
		UpdatePeriod: period,
		Parameters:   params,
	}
	storage := cube.NewStorage(opts.storage)

	if err := ms.AddPartition(cmd.Context(), desc, storage); err != nil {
		return err
	}
	pterm.Success.Printf("Registered partition %s on %s\n",
		cattypes.CanonicalSpec(desc.PartitionSpec()), storage.TableName(entityName))
	return nil
}

// resolveDimensionPeriod picks the period for a dimension partition: the
// explicit --period when given, otherwise the dump period the dimension
// tracks for the storage.
func resolveDimensionPeriod(cmd *cobra.Command, ms *metastore.Metastore, opts *partitionsAddOptions) (cube.UpdatePeriod, error) {
	if opts.period != "" {
		return cube.ParseUpdatePeriod(opts.period)
	}

	dim, err := ms.GetDimensionTable(cmd.Context(), opts.dimension)
	if err != nil {
		return cube.UpdatePeriodUnknown, err
	}
	period, ok := dim.SnapshotDumpPeriods[strings.ToLower(opts.storage)]
	if !ok {
		return cube.UpdatePeriodUnknown, fmt.Errorf("dimension %s is not tracked on storage %s", dim.Name, opts.storage)
	}
	return period, nil
}

// parseTimeValues reads --time column=value pairs, parsing each value with
// the period's own layout.
func parseTimeValues(values []string, period cube.UpdatePeriod) (map[string]time.Time, error) {
	if len(values) == 0 {
		return nil, nil
	}
	spec := make(map[string]time.Time, len(values))
	for _, value := range values {
		column, raw, err := splitKeyValue(value)
		if err != nil {
			return nil, err
		}
		t, err := period.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("time value %q does not match the %s layout: %w", raw, period, err)
		}
		spec[column] = t
	}
	return spec, nil
}

func parseKeyValues(values []string) (map[string]string, error) {
	if len(values) == 0 {
		return nil, nil
	}
	kv := make(map[string]string, len(values))
	for _, value := range values {
		k, v, err := splitKeyValue(value)
		if err != nil {
			return nil, err
		}
		kv[k] = v
	}
	return kv, nil
}

func splitKeyValue(value string) (string, string, error) {
	parts := strings.SplitN(value, "=", 2)
	if len(parts) != 2 || parts[0] == "" {
		return "", "", fmt.Errorf("expected key=value, got %q", value)
	}
	return parts[0], parts[1], nil
}
