package sacct

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	pkgerrors "github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/zhaobenny/slurmusage/cli/internal/daterange"
	"github.com/zhaobenny/slurmusage/internal/parser"
)

// ErrUpstreamFetch marks failures of the accounting query itself
var ErrUpstreamFetch = errors.New("accounting query failed")

// FetchError describes a failed sacct invocation
type FetchError struct {
	User     string
	ExitCode int // -1 if the process did not exit normally
	Stderr   string
	Err      error
}

func (e *FetchError) Error() string {
	msg := fmt.Sprintf("SLURM query for user %s failed", e.User)
	if e.ExitCode >= 0 {
		msg += fmt.Sprintf(" (exit %d)", e.ExitCode)
	}
	if e.Stderr != "" {
		return msg + ": " + e.Stderr
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *FetchError) Is(target error) bool {
	return target == ErrUpstreamFetch
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Source returns the raw accounting lines of one user for a date range
type Source interface {
	Fetch(ctx context.Context, user string, r daterange.Range) (string, error)
}

// Client runs sacct
type Client struct {
	path    string
	timeout time.Duration
	logger  *zap.Logger
}

// NewClient creates a client running the sacct binary at path.
// A zero timeout disables the per-query deadline.
func NewClient(path string, timeout time.Duration, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		path:    path,
		timeout: timeout,
		logger:  logger,
	}
}

// Args returns the sacct arguments for one user and range
func Args(user string, r daterange.Range) []string {
	return []string{
		"-u", user,
		"--starttime", r.StartArg(),
		"--endtime", r.EndArg(),
		"--format=" + strings.Join(parser.Fields, ","),
		"--parsable2",
		"--noheader",
		"--allocations",
	}
}

// Fetch runs sacct for one user. A non-zero exit, a timeout or a missing
// binary all surface as a *FetchError.
func (c *Client) Fetch(ctx context.Context, user string, r daterange.Range) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	args := Args(user, r)
	c.logger.Debug("running sacct", zap.String("user", user), zap.String("path", c.path), zap.Strings("args", args))

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.path, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	started := time.Now()
	err := cmd.Run()
	if err != nil {
		fe := &FetchError{
			User:     user,
			ExitCode: -1,
			Stderr:   strings.TrimSpace(stderr.String()),
			Err:      err,
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			fe.ExitCode = exitErr.ExitCode()
		}
		if ctxErr := ctx.Err(); errors.Is(ctxErr, context.DeadlineExceeded) {
			fe.Err = pkgerrors.Wrapf(ctxErr, "timed out after %s", c.timeout)
			fe.Stderr = ""
		}
		return "", fe
	}

	c.logger.Debug("sacct finished",
		zap.String("user", user),
		zap.Duration("took", time.Since(started)),
		zap.Int("bytes", stdout.Len()))
	return stdout.String(), nil
}

// FileSource reads previously captured sacct output from a file instead of
// running sacct. Lines are selected by their user field only: the date range
// is not applied, so every job of the user in the file is reported. Lines
// without any field separator are passed through so the parser can reject
// them.
type FileSource struct {
	Path string
}

func (f FileSource) Fetch(ctx context.Context, user string, r daterange.Range) (string, error) {
	file, err := os.Open(f.Path)
	if err != nil {
		return "", &FetchError{User: user, ExitCode: -1, Err: err}
	}
	defer file.Close()

	var out strings.Builder
	scanner := bufio.NewScanner(file)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	prefix := user + "|"
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, prefix) || (strings.TrimSpace(line) != "" && !strings.Contains(line, "|")) {
			out.WriteString(line)
			out.WriteByte('\n')
		}
	}
	if err := scanner.Err(); err != nil {
		return "", &FetchError{User: user, ExitCode: -1, Err: err}
	}
	return out.String(), nil
}
