package report

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhaobenny/slurmusage/cli/internal/daterange"
	"github.com/zhaobenny/slurmusage/cli/internal/sacct"
	"github.com/zhaobenny/slurmusage/internal/model"
)

var january = daterange.Range{
	Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	End:   time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
}

type mapSource map[string]string

func (m mapSource) Fetch(ctx context.Context, user string, r daterange.Range) (string, error) {
	out, ok := m[user]
	if !ok {
		return "", &sacct.FetchError{User: user, ExitCode: 1, Stderr: "unknown user"}
	}
	return out, nil
}

func scenarioSource() mapSource {
	return mapSource{
		"alice": "alice|normal|01:00:00|4|cpu=4,mem=8G\nalice|gpu|02:00:00|4|cpu=4,gres/gpu=1,mem=8G\n",
		"bob":   "bob|normal|1-00:00:00|2|cpu=2,mem=16G\n",
	}
}

func TestGenerate(t *testing.T) {
	g := &Generator{Source: scenarioSource()}

	report, err := g.Generate(context.Background(), Request{
		Users: []string{"bob", " alice ", "bob"},
		Range: january,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{model.AllKey, "alice", "bob"}, report.Keys)
	assert.Equal(t, model.Metrics{CPUHours: 12, GPUHours: 2, RAMHours: 24}, report.Total("alice"))
	assert.Equal(t, model.Metrics{CPUHours: 48, GPUHours: 0, RAMHours: 384}, report.Total("bob"))
	assert.Equal(t, model.Metrics{CPUHours: 60, GPUHours: 2, RAMHours: 408}, report.Total(model.AllKey))
	assert.Empty(t, report.Partitions)
}

func TestGenerateByPartition(t *testing.T) {
	g := &Generator{Source: scenarioSource()}

	report, err := g.Generate(context.Background(), Request{
		Users:       []string{"alice", "bob"},
		Range:       january,
		ByPartition: true,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"gpu", "normal"}, report.Partitions)
	assert.Equal(t, model.Metrics{CPUHours: 8, GPUHours: 2, RAMHours: 16}, report.PartitionTotal("alice", "gpu"))
	assert.Equal(t, model.Metrics{}, report.PartitionTotal("bob", "gpu"))
	assert.Equal(t, model.Metrics{CPUHours: 52, RAMHours: 392}, report.PartitionTotal(model.AllKey, "normal"))
}

func TestGenerateNoJobs(t *testing.T) {
	g := &Generator{Source: mapSource{"alice": ""}}

	report, err := g.Generate(context.Background(), Request{Users: []string{"alice"}, Range: january})
	require.NoError(t, err)
	assert.True(t, report.Empty())
}

func TestGenerateNoUsers(t *testing.T) {
	g := &Generator{Source: scenarioSource()}

	_, err := g.Generate(context.Background(), Request{Users: []string{" ", ""}, Range: january})
	assert.True(t, errors.Is(err, ErrNoUsers))
}

func TestGenerateFetchFailure(t *testing.T) {
	g := &Generator{Source: scenarioSource()}

	report, err := g.Generate(context.Background(), Request{Users: []string{"alice", "carol"}, Range: january})
	require.Error(t, err)
	assert.Nil(t, report)
	assert.True(t, errors.Is(err, sacct.ErrUpstreamFetch))
	assert.Contains(t, err.Error(), "carol")
}

func TestNormalizeUsers(t *testing.T) {
	assert.Equal(t, []string{"bob", "alice"}, NormalizeUsers([]string{" bob", "", "alice ", "bob", "\t"}))
	assert.Empty(t, NormalizeUsers(nil))
}

func TestSplitUsers(t *testing.T) {
	assert.Equal(t, []string{"alice", "bob"}, SplitUsers("alice, bob,,alice"))
}

func TestReadUserFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.txt")
	require.NoError(t, os.WriteFile(path, []byte("# staff\nalice\n\n bob \nalice\n"), 0600))

	users, err := ReadUserFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, users)

	_, err = ReadUserFile(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}
