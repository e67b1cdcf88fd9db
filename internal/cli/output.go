package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"
)

// Table renders data as a formatted table.
type Table struct {
	headers []string
	rows    [][]string
	writer  io.Writer
}

// NewTable creates a new table with the given headers.
func NewTable(w io.Writer, headers ...string) *Table {
	return &Table{
		headers: headers,
		writer:  w,
	}
}

// AddRow adds a row to the table.
func (t *Table) AddRow(cols ...string) {
	t.rows = append(t.rows, cols)
}

// Render writes the table.
func (t *Table) Render() {
	w := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)

	fmt.Fprintln(w, strings.Join(t.headers, "\t"))

	sep := make([]string, len(t.headers))
	for i, h := range t.headers {
		sep[i] = strings.Repeat("-", len(h))
	}
	fmt.Fprintln(w, strings.Join(sep, "\t"))

	for _, row := range t.rows {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}

	w.Flush()
}

// printOutput prints data as json or yaml. Table output is built by each
// command.
func (a *app) printOutput(w io.Writer, data interface{}) error {
	switch a.format() {
	case "yaml":
		return printYAML(w, data)
	case "json":
		return printJSON(w, data)
	default:
		return fmt.Errorf("unknown output format %q", a.format())
	}
}

func printJSON(w io.Writer, data interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

// printYAML goes through JSON first so field names match the json output.
func printYAML(w io.Writer, data interface{}) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return err
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(generic)
}

// maskKey keeps the tier prefix and the last group of a license key
func maskKey(key string) string {
	parts := strings.Split(key, "-")
	if len(parts) < 4 {
		if len(key) <= 4 {
			return "****"
		}
		return key[:2] + strings.Repeat("*", len(key)-4) + key[len(key)-2:]
	}
	for i := 2; i < len(parts)-1; i++ {
		parts[i] = "****"
	}
	return strings.Join(parts, "-")
}

func formatStatus(status string, valid bool) string {
	if valid {
		return "[+] " + status
	}
	return "[-] " + status
}

func formatUsage(usage, limit int) string {
	if limit < 0 {
		return fmt.Sprintf("%d (unlimited)", usage)
	}
	return fmt.Sprintf("%d/%d", usage, limit)
}
