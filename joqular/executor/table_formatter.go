package executor

import (
	"fmt"
	"sort"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/wbrown/janus-joqular/joqular"
)

// TableFormatter provides utilities for formatting tuples as tables
type TableFormatter struct {
	// MaxWidth is the maximum width for a column
	MaxWidth int
	// TruncateString is the string to append when truncating
	TruncateString string
}

// NewTableFormatter creates a new table formatter with default settings
func NewTableFormatter() *TableFormatter {
	return &TableFormatter{
		MaxWidth:       50,
		TruncateString: "...",
	}
}

// FormatTuples formats tuples as a markdown table with one column per alias
// property, named "alias.property".
func (tf *TableFormatter) FormatTuples(tuples []Tuple) string {
	if len(tuples) == 0 {
		return "_No rows_"
	}

	var columns []string
	seen := make(map[string]bool)
	for _, m := range tuples[0] {
		for _, key := range sortedKeys(tuples, m.Alias) {
			col := m.Alias + "." + key
			if !seen[col] {
				seen[col] = true
				columns = append(columns, col)
			}
		}
	}

	rows := make([][]interface{}, len(tuples))
	for i, t := range tuples {
		row := make([]interface{}, len(columns))
		for j, col := range columns {
			alias, key, _ := strings.Cut(col, ".")
			inst, _ := t.Instance(alias)
			if v, ok := inst[key]; ok {
				row[j] = v
			} else {
				row[j] = joqular.Undefined
			}
		}
		rows[i] = row
	}
	return tf.formatTable(columns, rows)
}

// FormatIDs formats identifier rows, one column per alias.
func (tf *TableFormatter) FormatIDs(aliases []string, ids [][]string) string {
	if len(ids) == 0 {
		return fmt.Sprintf("_Columns: %v_\n\n_No rows_", aliases)
	}
	rows := make([][]interface{}, len(ids))
	for i, r := range ids {
		row := make([]interface{}, len(r))
		for j, id := range r {
			row[j] = id
		}
		rows[i] = row
	}
	return tf.formatTable(aliases, rows)
}

// FormatObjects formats projected objects, one column per key.
func (tf *TableFormatter) FormatObjects(objects []joqular.Object) string {
	if len(objects) == 0 {
		return "_No rows_"
	}
	seen := make(map[string]bool)
	var columns []string
	for _, obj := range objects {
		for _, k := range obj.Keys() {
			if !seen[k] {
				seen[k] = true
				columns = append(columns, k)
			}
		}
	}
	sort.Strings(columns)

	rows := make([][]interface{}, len(objects))
	for i, obj := range objects {
		row := make([]interface{}, len(columns))
		for j, col := range columns {
			if v, ok := obj[col]; ok {
				row[j] = v
			} else {
				row[j] = joqular.Undefined
			}
		}
		rows[i] = row
	}
	return tf.formatTable(columns, rows)
}

func sortedKeys(tuples []Tuple, alias string) []string {
	seen := make(map[string]bool)
	var keys []string
	for _, t := range tuples {
		inst, _ := t.Instance(alias)
		for k := range inst {
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}
	sort.Strings(keys)
	return keys
}

// formatTable formats columns and rows as a markdown table
func (tf *TableFormatter) formatTable(columns []string, rows [][]interface{}) string {
	tableString := &strings.Builder{}

	// Create alignment array with all columns using AlignNone for simple separators
	alignment := make([]tw.Align, len(columns))
	for i := range alignment {
		alignment[i] = tw.AlignNone
	}

	table := tablewriter.NewTable(tableString,
		tablewriter.WithRenderer(renderer.NewMarkdown()),
		tablewriter.WithAlignment(alignment),
		tablewriter.WithHeaderAutoFormat(tw.Off),
	)

	table.Header(columns)

	for _, r := range rows {
		row := make([]string, len(r))
		for j, val := range r {
			row[j] = tf.formatValue(val)
		}
		table.Append(row)
	}

	table.Render()

	// Add row count
	tableString.WriteString(fmt.Sprintf("\n_%d rows_\n", len(rows)))

	return tableString.String()
}

// formatValue converts a value to a string representation
func (tf *TableFormatter) formatValue(val interface{}) string {
	var s string
	switch v := val.(type) {
	case nil:
		s = "null"
	case string:
		s = v
	case int64:
		s = fmt.Sprintf("%d", v)
	case float64:
		s = fmt.Sprintf("%g", v)
	case bool:
		s = fmt.Sprintf("%t", v)
	default:
		if joqular.IsUndefined(v) {
			return ""
		}
		s = fmt.Sprintf("%v", v)
	}
	if tf.MaxWidth > 0 && len(s) > tf.MaxWidth {
		s = s[:tf.MaxWidth] + tf.TruncateString
	}
	return s
}

// PrintTuples prints tuples to stdout
func PrintTuples(tuples []Tuple) {
	formatter := NewTableFormatter()
	fmt.Println(formatter.FormatTuples(tuples))
}
