package aggregator

import (
	"sort"

	"github.com/zhaobenny/slurmusage/internal/model"
)

// Options for aggregation
type Options struct {
	ByPartition bool
}

// Aggregate sums job metrics into a grand total, per-user totals and,
// optionally, per-user-per-partition totals.
// An empty job list yields an empty report.
func Aggregate(jobs []model.Job, opts Options) *model.Report {
	report := &model.Report{
		Totals: make(map[string]model.Metrics),
	}
	if len(jobs) == 0 {
		return report
	}

	var total model.Metrics
	byUser := make(map[string]*model.Metrics)
	var byPartition map[string]map[string]*model.Metrics
	if opts.ByPartition {
		byPartition = map[string]map[string]*model.Metrics{
			model.AllKey: {},
		}
	}

	for _, j := range jobs {
		user := j.Record.User

		total.Add(j.Metrics)

		acc, ok := byUser[user]
		if !ok {
			acc = &model.Metrics{}
			byUser[user] = acc
		}
		acc.Add(j.Metrics)

		if opts.ByPartition {
			addTo(byPartition, model.AllKey, j.Record.Partition, j.Metrics)
			if user != model.AllKey {
				addTo(byPartition, user, j.Record.Partition, j.Metrics)
			}
		}
	}

	// Sort users; the grand total always comes first. An account literally
	// named "All" is only counted in the grand total.
	users := make([]string, 0, len(byUser))
	for u, acc := range byUser {
		if u == model.AllKey {
			continue
		}
		users = append(users, u)
		report.Totals[u] = *acc
	}
	sort.Strings(users)

	report.Keys = append([]string{model.AllKey}, users...)
	report.Totals[model.AllKey] = total

	if opts.ByPartition {
		report.Partitions = sortedPartitions(byPartition[model.AllKey])
		report.ByPartition = make(map[string]map[string]model.Metrics, len(report.Keys))
		for _, key := range report.Keys {
			row := make(map[string]model.Metrics, len(report.Partitions))
			for _, p := range report.Partitions {
				if acc, ok := byPartition[key][p]; ok {
					row[p] = *acc
				} else {
					row[p] = model.Metrics{}
				}
			}
			report.ByPartition[key] = row
		}
	}

	return report
}

func addTo(grouped map[string]map[string]*model.Metrics, key, partition string, m model.Metrics) {
	parts, ok := grouped[key]
	if !ok {
		parts = make(map[string]*model.Metrics)
		grouped[key] = parts
	}
	acc, ok := parts[partition]
	if !ok {
		acc = &model.Metrics{}
		parts[partition] = acc
	}
	acc.Add(m)
}

func sortedPartitions(parts map[string]*model.Metrics) []string {
	names := make([]string, 0, len(parts))
	for p := range parts {
		names = append(names, p)
	}
	sort.Strings(names)
	return names
}
