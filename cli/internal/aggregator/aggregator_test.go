package aggregator

import (
	"fmt"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhaobenny/slurmusage/internal/model"
	"github.com/zhaobenny/slurmusage/internal/parser"
)

func scenarioJobs(t *testing.T) []model.Job {
	t.Helper()
	records, err := parser.ParseText(`alice|normal|1:00:00|4|cpu=4,mem=8G
alice|gpu|2:00:00|4|cpu=4,gres/gpu=1,mem=8G
bob|normal|1-00:00:00|2|cpu=2,mem=16G
`)
	require.NoError(t, err)
	return model.DeriveAll(records)
}

func TestAggregateScenario(t *testing.T) {
	report := Aggregate(scenarioJobs(t), Options{})

	assert.Equal(t, []string{"All", "alice", "bob"}, report.Keys)
	assert.Empty(t, report.Partitions)
	assert.Nil(t, report.ByPartition)

	assert.Equal(t, model.Metrics{CPUHours: 12, GPUHours: 2, RAMHours: 24}, report.Total("alice"))
	assert.Equal(t, model.Metrics{CPUHours: 48, GPUHours: 0, RAMHours: 384}, report.Total("bob"))
	assert.Equal(t, model.Metrics{CPUHours: 60, GPUHours: 2, RAMHours: 408}, report.Total("All"))
}

func TestAggregateByPartition(t *testing.T) {
	report := Aggregate(scenarioJobs(t), Options{ByPartition: true})

	assert.Equal(t, []string{"gpu", "normal"}, report.Partitions)

	assert.Equal(t, model.Metrics{CPUHours: 8, GPUHours: 2, RAMHours: 16}, report.PartitionTotal("alice", "gpu"))
	assert.Equal(t, model.Metrics{CPUHours: 4, RAMHours: 8}, report.PartitionTotal("alice", "normal"))
	assert.Equal(t, model.Metrics{CPUHours: 48, RAMHours: 384}, report.PartitionTotal("bob", "normal"))
	assert.Equal(t, model.Metrics{CPUHours: 52, RAMHours: 392}, report.PartitionTotal("All", "normal"))

	// bob never ran on gpu but still has an explicit zero entry
	row, ok := report.ByPartition["bob"]
	require.True(t, ok)
	gpu, ok := row["gpu"]
	require.True(t, ok)
	assert.Equal(t, model.Metrics{}, gpu)

	// Per-user totals are unaffected by the breakdown
	assert.Equal(t, model.Metrics{CPUHours: 60, GPUHours: 2, RAMHours: 408}, report.Total("All"))
}

func TestAggregateEmpty(t *testing.T) {
	for _, opts := range []Options{{}, {ByPartition: true}} {
		report := Aggregate(nil, opts)
		assert.True(t, report.Empty())
		assert.Empty(t, report.Keys)
		assert.Empty(t, report.Partitions)
	}
}

func TestAggregateKeepsFullPrecision(t *testing.T) {
	jobs := model.DeriveAll([]model.JobRecord{
		{User: "u", Partition: "p", ElapsedHours: 1.05, AllocCPUs: 1},
		{User: "u", Partition: "p", ElapsedHours: 1.05, AllocCPUs: 1},
	})
	report := Aggregate(jobs, Options{})
	assert.InDelta(t, 2.1, report.Total("u").CPUHours, 1e-12)
}

func TestAggregateAllKeyUser(t *testing.T) {
	jobs := model.DeriveAll([]model.JobRecord{
		{User: "All", Partition: "p", ElapsedHours: 1, AllocCPUs: 1},
		{User: "zed", Partition: "p", ElapsedHours: 1, AllocCPUs: 2},
	})
	report := Aggregate(jobs, Options{ByPartition: true})
	assert.Equal(t, []string{"All", "zed"}, report.Keys)
	assert.Equal(t, 3.0, report.Total("All").CPUHours)
	assert.Equal(t, 3.0, report.PartitionTotal("All", "p").CPUHours)
}

func randomJobs(rng *rand.Rand, n int) []model.Job {
	users := []string{"alice", "bob", "carol", "dave", "Zed", "_svc"}
	parts := []string{"normal", "gpu", "bigmem", "debug"}
	records := make([]model.JobRecord, n)
	for i := range records {
		records[i] = model.JobRecord{
			User:         users[rng.Intn(len(users))],
			Partition:    parts[rng.Intn(len(parts))],
			ElapsedHours: rng.Float64() * 48,
			AllocCPUs:    int64(rng.Intn(128)),
			AllocGPUs:    int64(rng.Intn(8)),
			AllocRAMGB:   rng.Float64() * 512,
		}
	}
	return model.DeriveAll(records)
}

func TestAggregateProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for round := 0; round < 20; round++ {
		jobs := randomJobs(rng, 1+rng.Intn(200))
		for _, byPartition := range []bool{false, true} {
			t.Run(fmt.Sprintf("round%d/partitions=%v", round, byPartition), func(t *testing.T) {
				report := Aggregate(jobs, Options{ByPartition: byPartition})

				// Row order: All first, then strictly ascending users
				require.NotEmpty(t, report.Keys)
				assert.Equal(t, model.AllKey, report.Keys[0])
				users := report.Users()
				assert.True(t, sort.StringsAreSorted(users))
				for i := 1; i < len(users); i++ {
					assert.NotEqual(t, users[i-1], users[i])
				}

				// Grouping neither drops nor double-counts
				want := make(map[string]model.Metrics)
				for _, j := range jobs {
					m := want[j.Record.User]
					m.Add(j.Metrics)
					want[j.Record.User] = m
				}
				var sumOfUsers model.Metrics
				for _, u := range users {
					assertMetricsNear(t, want[u], report.Total(u))
					sumOfUsers.Add(report.Total(u))
				}
				assertMetricsNear(t, sumOfUsers, report.Total(model.AllKey))

				if !byPartition {
					return
				}
				// Every row carries every partition and the partitions add up
				for _, key := range report.Keys {
					row := report.ByPartition[key]
					assert.Len(t, row, len(report.Partitions))
					var sum model.Metrics
					for _, p := range report.Partitions {
						_, ok := row[p]
						assert.True(t, ok, "%s missing partition %s", key, p)
						sum.Add(row[p])
					}
					assertMetricsNear(t, report.Total(key), sum)
				}
			})
		}
	}
}

func assertMetricsNear(t *testing.T, want, got model.Metrics) {
	t.Helper()
	assert.InDelta(t, want.CPUHours, got.CPUHours, 1e-6)
	assert.InDelta(t, want.GPUHours, got.GPUHours, 1e-6)
	assert.InDelta(t, want.RAMHours, got.RAMHours, 1e-6)
}
