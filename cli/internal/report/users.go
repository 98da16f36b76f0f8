package report

import (
	"bufio"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// NormalizeUsers trims names, drops blank entries and removes duplicates,
// keeping the first occurrence order
func NormalizeUsers(users []string) []string {
	trimmed := lo.Map(users, func(u string, _ int) string {
		return strings.TrimSpace(u)
	})
	return lo.Uniq(lo.Compact(trimmed))
}

// SplitUsers splits a comma separated user list
func SplitUsers(list string) []string {
	return NormalizeUsers(strings.Split(list, ","))
}

// ReadUserFile reads one user per line. Lines starting with # are ignored.
func ReadUserFile(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening user file")
	}
	defer file.Close()

	var users []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, "#") {
			continue
		}
		users = append(users, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "reading user file %s", path)
	}
	return NormalizeUsers(users), nil
}
