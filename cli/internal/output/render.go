package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/pkg/errors"

	"github.com/zhaobenny/slurmusage/internal/model"
)

// Format selects how a report is rendered
type Format string

const (
	FormatAuto Format = "auto"
	FormatGrid Format = "grid"
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// ParseFormat validates a --format value
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatAuto, FormatGrid, FormatCSV, FormatJSON:
		return f, nil
	case "":
		return FormatAuto, nil
	}
	return "", fmt.Errorf("unknown format %q (want auto, grid, csv or json)", s)
}

// Resolve turns FormatAuto into grid for terminals and csv otherwise
func (f Format) Resolve(w io.Writer) Format {
	if f != FormatAuto {
		return f
	}
	if IsTerminal(w) {
		return FormatGrid
	}
	return FormatCSV
}

// Print writes the report in the given format. Grid and CSV output are
// preceded by the metric explanation.
func Print(w io.Writer, report *model.Report, opts Options, format Format) error {
	switch format.Resolve(w) {
	case FormatJSON:
		return PrintJSON(w, report, opts)
	case FormatGrid:
		if _, err := fmt.Fprintln(w, Explanation); err != nil {
			return err
		}
		return PrintGrid(w, Build(report, opts))
	default:
		if _, err := fmt.Fprintln(w, Explanation); err != nil {
			return err
		}
		return PrintCSV(w, Build(report, opts))
	}
}

// PrintGrid renders the table as a boxed grid
func PrintGrid(w io.Writer, t Table) error {
	table := tablewriter.NewTable(w,
		tablewriter.WithRenderer(renderer.NewBlueprint(tw.Rendition{
			Settings: tw.Settings{Separators: tw.Separators{BetweenRows: tw.On}},
		})))

	alignments := make([]tw.Align, len(t.Columns))
	for i := range alignments {
		if i == 0 {
			alignments[i] = tw.AlignLeft
		} else {
			alignments[i] = tw.AlignRight
		}
	}
	table.Configure(func(c *tablewriter.Config) {
		// Column names such as CPU_Hours must be shown verbatim
		c.Header.Formatting.AutoFormat = tw.Off
		c.Row.Alignment.PerColumn = alignments
	})

	headers := make([]any, len(t.Columns))
	for i, c := range t.Columns {
		headers[i] = c
	}
	table.Header(headers...)

	if err := table.Bulk(t.Strings()); err != nil {
		return errors.Wrap(err, "building grid")
	}
	return errors.Wrap(table.Render(), "rendering grid")
}

// PrintCSV renders the table as comma-separated text with a header row
func PrintCSV(w io.Writer, t Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return err
	}
	if err := cw.WriteAll(t.Strings()); err != nil {
		return err
	}
	return cw.Error()
}

// JSONOutput represents the JSON output structure
type JSONOutput struct {
	Partitions []string  `json:"partitions,omitempty"`
	Rows       []JSONRow `json:"rows"`
}

// JSONRow represents a single report row in JSON format
type JSONRow struct {
	UserID     string                   `json:"user_id"`
	CPUHours   float64                  `json:"cpu_hours"`
	GPUHours   float64                  `json:"gpu_hours"`
	RAMHours   float64                  `json:"ram_hours_gb"`
	EnergyWh   *float64                 `json:"energy_wh,omitempty"`
	CostEUR    *float64                 `json:"cost_eur,omitempty"`
	Partitions map[string]JSONPartition `json:"partitions,omitempty"`
}

// JSONPartition holds one row's usage on one partition
type JSONPartition struct {
	CPUHours float64 `json:"cpu_hours"`
	GPUHours float64 `json:"gpu_hours"`
	RAMHours float64 `json:"ram_hours_gb"`
}

// BuildJSON converts the structured report into its JSON shape
func BuildJSON(report *model.Report, opts Options) JSONOutput {
	out := JSONOutput{
		Partitions: report.Partitions,
		Rows:       make([]JSONRow, 0, len(report.Keys)),
	}
	withCost := opts.Cost && !CostDropped(report, opts)
	rates := opts.Rates.WithDefaults()

	for _, key := range report.Keys {
		total := report.Total(key)
		row := JSONRow{
			UserID:   key,
			CPUHours: Round1(total.CPUHours),
			GPUHours: Round1(total.GPUHours),
			RAMHours: Round1(total.RAMHours),
		}
		if withCost {
			o := rates.Calculate(total)
			energy := Round1(o.EnergyWh)
			cost := roundCents(o.CostEUR)
			row.EnergyWh, row.CostEUR = &energy, &cost
		}
		if len(report.Partitions) > 0 {
			row.Partitions = make(map[string]JSONPartition, len(report.Partitions))
			for _, p := range report.Partitions {
				pm := report.PartitionTotal(key, p)
				row.Partitions[p] = JSONPartition{
					CPUHours: Round1(pm.CPUHours),
					GPUHours: Round1(pm.GPUHours),
					RAMHours: Round1(pm.RAMHours),
				}
			}
		}
		out.Rows = append(out.Rows, row)
	}
	return out
}

// PrintJSON outputs the report as indented JSON
func PrintJSON(w io.Writer, report *model.Report, opts Options) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(BuildJSON(report, opts))
}
