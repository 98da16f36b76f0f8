package output

import (
	"fmt"
	"math"
	"strconv"

	"github.com/zhaobenny/slurmusage/internal/model"
	"github.com/zhaobenny/slurmusage/internal/pricing"
)

const (
	ColUserID   = "UserID"
	ColEnergyWh = "Energy_Wh"

	ramUnitSuffix = "(GB-h)"
)

// Explanation describes how the metric columns are derived
const Explanation = "CPU_Hours = ElapsedHours * AllocCPUS\n" +
	"GPU_Hours = ElapsedHours * AllocGPUs\n" +
	"RAM_Hours(GB-h) = ElapsedHours * AllocRAM_GB"

// Options controls which optional columns are built
type Options struct {
	Cost  bool
	Rates pricing.Rates
}

// Cell is one table value. Numeric cells are already rounded.
type Cell struct {
	Text    string
	Value   float64
	Numeric bool
}

func (c Cell) String() string {
	if c.Numeric {
		return strconv.FormatFloat(c.Value, 'f', 1, 64)
	}
	return c.Text
}

// Table is the presentation-ready report
type Table struct {
	Columns []string
	Rows    [][]Cell
}

// Strings returns the rows as display strings
func (t Table) Strings() [][]string {
	out := make([][]string, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = make([]string, len(row))
		for j, c := range row {
			out[i][j] = c.String()
		}
	}
	return out
}

// CostDropped reports whether a requested cost column is left out because
// the report carries a partition breakdown
func CostDropped(report *model.Report, opts Options) bool {
	return opts.Cost && len(report.Partitions) > 0
}

// ColumnName returns the display name of a metric, with the RAM unit appended
func ColumnName(m model.Metric) string {
	if m == model.RAMHours {
		return string(m) + ramUnitSuffix
	}
	return string(m)
}

// PartitionColumnName returns the two-line label of a per-partition column
func PartitionColumnName(m model.Metric, partition string) string {
	return ColumnName(m) + "\n" + partition
}

// Round1 rounds to one decimal, ties to even
func Round1(v float64) float64 {
	return math.RoundToEven(v*10) / 10
}

// Build flattens an aggregated report into a table. Rows keep the report's
// order. The cost column is only built when there is no partition breakdown.
func Build(report *model.Report, opts Options) Table {
	t := Table{Columns: []string{ColUserID}}
	if report.Empty() {
		return t
	}

	withCost := opts.Cost && !CostDropped(report, opts)
	rates := opts.Rates.WithDefaults()

	for _, m := range model.MetricOrder {
		t.Columns = append(t.Columns, ColumnName(m))
	}
	if withCost {
		t.Columns = append(t.Columns, ColEnergyWh)
	}
	for _, p := range report.Partitions {
		for _, m := range model.MetricOrder {
			t.Columns = append(t.Columns, PartitionColumnName(m, p))
		}
	}

	for _, key := range report.Keys {
		total := report.Total(key)
		row := []Cell{{Text: key}}
		for _, m := range model.MetricOrder {
			row = append(row, number(total.Get(m)))
		}
		if withCost {
			row = append(row, costCell(rates.Calculate(total)))
		}
		for _, p := range report.Partitions {
			pm := report.PartitionTotal(key, p)
			for _, m := range model.MetricOrder {
				row = append(row, number(pm.Get(m)))
			}
		}
		t.Rows = append(t.Rows, row)
	}

	return t
}

func roundCents(v float64) float64 {
	return math.RoundToEven(v*100) / 100
}

func number(v float64) Cell {
	return Cell{Value: Round1(v), Numeric: true}
}

// costCell merges energy and cost into one cell. Both are rounded to one
// decimal like every other numeric column before being formatted.
func costCell(o pricing.Overlay) Cell {
	return Cell{Text: fmt.Sprintf("%.1f (%.2f€)", Round1(o.EnergyWh), Round1(o.CostEUR))}
}
