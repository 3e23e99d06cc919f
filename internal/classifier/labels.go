package classifier

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
)

var labelLine = regexp.MustCompile(`^(\d+)[:\s]\s*(.+)$`)

// LabelTable maps class ids to label names.
type LabelTable struct {
	labels map[int]string
}

// LoadLabels reads a label file. Each non-empty line is either
// "<id> <label>", "<id>: <label>" or a bare label whose id is its line
// index.
func LoadLabels(path string) (*LabelTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open label file: %w", err)
	}
	defer f.Close()

	return ParseLabels(f)
}

// ParseLabels parses a label file from r. Numbered and bare lines may be
// mixed; a bare line takes its zero-based line index as id.
func ParseLabels(r io.Reader) (*LabelTable, error) {
	table := &LabelTable{labels: make(map[int]string)}

	scanner := bufio.NewScanner(r)
	for row := 0; scanner.Scan(); row++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		m := labelLine.FindStringSubmatch(line)
		if m == nil {
			table.labels[row] = line
			continue
		}
		id, err := strconv.Atoi(m[1])
		if err != nil {
			return nil, fmt.Errorf("label line %d: invalid class id %q: %w", row+1, m[1], err)
		}
		table.labels[id] = strings.TrimSpace(m[2])
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read labels: %w", err)
	}

	if len(table.labels) == 0 {
		return nil, fmt.Errorf("label file is empty")
	}
	return table, nil
}

// LabelFor returns the label for id, or the id itself when unknown.
func (t *LabelTable) LabelFor(id int) string {
	if label, ok := t.labels[id]; ok {
		return label
	}
	return strconv.Itoa(id)
}

// Len returns the number of labels.
func (t *LabelTable) Len() int {
	return len(t.labels)
}
