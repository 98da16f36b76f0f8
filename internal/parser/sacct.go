package parser

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/zhaobenny/slurmusage/internal/model"
)

// Fields requested from sacct, in the order they appear on each line
var Fields = []string{"User", "Partition", "Elapsed", "AllocCPUS", "AllocTRES"}

const (
	gresGPUPrefix = "gres/gpu"
	memPrefix     = "mem"
)

// ParseLine parses one `--parsable2` line of the form
// user|partition|elapsed|alloc_cpus|alloc_tres
func ParseLine(line string) (model.JobRecord, error) {
	fields := strings.Split(line, "|")
	if len(fields) != len(Fields) {
		return model.JobRecord{}, &ParseError{
			Kind:   ErrMalformedLine,
			Line:   line,
			Reason: fmt.Sprintf("expected %d fields, got %d", len(Fields), len(fields)),
		}
	}

	user, partition := fields[0], fields[1]
	if user == "" {
		return model.JobRecord{}, &ParseError{Kind: ErrMalformedLine, Field: "User", Line: line, Reason: "empty"}
	}
	if partition == "" {
		return model.JobRecord{}, &ParseError{Kind: ErrMalformedLine, Field: "Partition", Line: line, Reason: "empty"}
	}

	elapsed, err := ParseElapsed(fields[2])
	if err != nil {
		return model.JobRecord{}, withLine(err, line)
	}

	cpus, err := strconv.ParseInt(fields[3], 10, 64)
	if err != nil || cpus < 0 {
		return model.JobRecord{}, &ParseError{
			Kind:   ErrMalformedLine,
			Field:  "AllocCPUS",
			Value:  fields[3],
			Line:   line,
			Reason: "not a non-negative integer",
		}
	}

	gpus, ramGB, err := ParseAllocTRES(fields[4])
	if err != nil {
		return model.JobRecord{}, withLine(err, line)
	}

	return model.JobRecord{
		User:         user,
		Partition:    partition,
		ElapsedHours: elapsed,
		AllocCPUs:    cpus,
		AllocGPUs:    gpus,
		AllocRAMGB:   ramGB,
	}, nil
}

// ParseElapsed converts a sacct Elapsed value ([D-]HH:MM:SS or [D-]MM:SS)
// into fractional hours
func ParseElapsed(s string) (float64, error) {
	fail := func(reason string) (float64, error) {
		return 0, &ParseError{Kind: ErrMalformedDuration, Field: "Elapsed", Value: s, Reason: reason}
	}

	rest := s
	var days uint64
	if before, after, found := strings.Cut(s, "-"); found {
		if strings.Contains(after, "-") {
			return fail("more than one day separator")
		}
		d, err := strconv.ParseUint(before, 10, 32)
		if err != nil {
			return fail("non-numeric day component")
		}
		days, rest = d, after
	}

	parts := strings.Split(rest, ":")
	var hours, minutes uint64
	var secStr string
	var err error
	switch len(parts) {
	case 3:
		if hours, err = strconv.ParseUint(parts[0], 10, 32); err != nil {
			return fail("non-numeric hour component")
		}
		if minutes, err = strconv.ParseUint(parts[1], 10, 32); err != nil {
			return fail("non-numeric minute component")
		}
		secStr = parts[2]
	case 2:
		if minutes, err = strconv.ParseUint(parts[0], 10, 32); err != nil {
			return fail("non-numeric minute component")
		}
		secStr = parts[1]
	default:
		return fail(fmt.Sprintf("expected 2 or 3 time components, got %d", len(parts)))
	}

	seconds, err := strconv.ParseFloat(secStr, 64)
	if err != nil || seconds < 0 || math.IsInf(seconds, 0) || math.IsNaN(seconds) {
		return fail("non-numeric second component")
	}

	return float64(days)*24 + float64(hours) + float64(minutes)/60 + seconds/3600, nil
}

// ParseAllocTRES extracts the GPU count and memory (GB) from an AllocTRES
// string such as "cpu=30,gres/gpu=1,mem=200G,node=1". The first gres/gpu and
// the first mem entry win; other keys are ignored.
func ParseAllocTRES(tres string) (gpus int64, ramGB float64, err error) {
	var haveGPU, haveMem bool
	for _, tok := range strings.Split(tres, ",") {
		if tok == "" {
			continue
		}
		key, val, found := strings.Cut(tok, "=")
		switch {
		case !haveGPU && strings.HasPrefix(key, gresGPUPrefix):
			n, perr := strconv.ParseInt(val, 10, 64)
			if !found || perr != nil || n < 0 {
				return 0, 0, &ParseError{
					Kind:   ErrMalformedResourceField,
					Field:  key,
					Value:  val,
					Reason: "GPU count is not a non-negative integer",
				}
			}
			gpus, haveGPU = n, true
		case !haveMem && strings.HasPrefix(key, memPrefix):
			gb, perr := parseMemGB(val)
			if !found || perr != nil {
				reason := "missing value"
				if perr != nil {
					reason = perr.Error()
				}
				return 0, 0, &ParseError{Kind: ErrMalformedResourceField, Field: key, Value: val, Reason: reason}
			}
			ramGB, haveMem = gb, true
		}
	}
	return gpus, ramGB, nil
}

// parseMemGB converts a sacct memory amount with unit suffix into gigabytes
func parseMemGB(val string) (float64, error) {
	if val == "" {
		return 0, errors.New("missing value")
	}
	var scale float64
	switch val[len(val)-1] {
	case 'G', 'g':
		scale = 1
	case 'M', 'm':
		scale = 1.0 / 1024
	case 'K', 'k':
		scale = 1.0 / (1024 * 1024)
	case 'T', 't':
		scale = 1024
	default:
		return 0, fmt.Errorf("unknown unit in %q", val)
	}
	n, err := strconv.ParseFloat(val[:len(val)-1], 64)
	if err != nil || n < 0 || math.IsInf(n, 0) || math.IsNaN(n) {
		return 0, fmt.Errorf("non-numeric amount %q", val[:len(val)-1])
	}
	return n * scale, nil
}

// ParseLines parses every non-blank line from r. The first bad line aborts
// parsing and is reported with its line number.
func ParseLines(r io.Reader) ([]model.JobRecord, error) {
	var records []model.JobRecord
	scanner := bufio.NewScanner(r)

	// Increase buffer size for long AllocTRES strings
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		record, err := ParseLine(line)
		if err != nil {
			var pe *ParseError
			if errors.As(err, &pe) {
				pe.LineNo = lineNo
				pe.Line = line
			}
			return nil, err
		}
		records = append(records, record)
	}

	return records, scanner.Err()
}

// ParseText is ParseLines over an in-memory string
func ParseText(text string) ([]model.JobRecord, error) {
	return ParseLines(strings.NewReader(text))
}

func withLine(err error, line string) error {
	var pe *ParseError
	if errors.As(err, &pe) {
		pe.Line = line
	}
	return err
}
