package schedule

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhaobenny/slurmusage/cli/internal/daterange"
	"github.com/zhaobenny/slurmusage/cli/internal/output"
	"github.com/zhaobenny/slurmusage/cli/internal/report"
	"github.com/zhaobenny/slurmusage/cli/internal/sacct"
	"github.com/zhaobenny/slurmusage/internal/pricing"
)

type recordingSource struct {
	ranges []daterange.Range
	out    map[string]string
}

func (s *recordingSource) Fetch(ctx context.Context, user string, r daterange.Range) (string, error) {
	s.ranges = append(s.ranges, r)
	if out, ok := s.out[user]; ok {
		return out, nil
	}
	return "", &sacct.FetchError{User: user, ExitCode: 1, Stderr: "invalid user"}
}

func fixedNow() time.Time {
	return time.Date(2024, 3, 14, 9, 30, 0, 0, time.UTC)
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "usage-2024-03.csv", FileName(fixedNow()))
}

func TestRunOnce(t *testing.T) {
	src := &recordingSource{out: map[string]string{
		"alice": "alice|normal|01:00:00|4|cpu=4,mem=8G\n",
	}}
	dir := filepath.Join(t.TempDir(), "reports")
	r := &Runner{
		Generator: &report.Generator{Source: src},
		Users:     []string{"alice"},
		OutDir:    dir,
		Cost:      true,
		Rates:     pricing.DefaultRates(),
		Now:       fixedNow,
	}

	path, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "usage-2024-03.csv"), path)

	require.Len(t, src.ranges, 1)
	assert.Equal(t, "2024-03-01", src.ranges[0].StartArg())
	assert.Equal(t, "2024-03-15", src.ranges[0].EndArg())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.True(t, strings.HasPrefix(text, output.Explanation))
	assert.Contains(t, text, "UserID,CPU_Hours,GPU_Hours,RAM_Hours(GB-h),Energy_Wh\n")
	assert.Contains(t, text, "All,4.0,0.0,8.0,600.0 (0.20€)\n")
	assert.Contains(t, text, "alice,4.0,0.0,8.0,600.0 (0.20€)\n")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files are cleaned up")
}

func TestRunOnceFailureKeepsPreviousFile(t *testing.T) {
	dir := t.TempDir()
	previous := filepath.Join(dir, "usage-2024-03.csv")
	require.NoError(t, os.WriteFile(previous, []byte("old"), 0600))

	r := &Runner{
		Generator: &report.Generator{Source: &recordingSource{}},
		Users:     []string{"ghost"},
		OutDir:    dir,
		Now:       fixedNow,
	}

	_, err := r.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ghost")

	data, err := os.ReadFile(previous)
	require.NoError(t, err)
	assert.Equal(t, "old", string(data))
}

func TestRunStopsWithContext(t *testing.T) {
	src := &recordingSource{out: map[string]string{"alice": ""}}
	r := &Runner{
		Generator: &report.Generator{Source: src},
		Users:     []string{"alice"},
		OutDir:    t.TempDir(),
		Now:       fixedNow,
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx, time.Hour)
		close(done)
	}()

	require.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(r.OutDir, "usage-2024-03.csv"))
		return err == nil
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
