package cli

import (
	"bufio"
	"io"
	"strings"
)

// Read returns the non-empty lines of r, trimmed. Lines starting with # are
// skipped.
func Read(r io.Reader) []string {
	args := []string{}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		args = append(args, line)
	}
	return args
}
