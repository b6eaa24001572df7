package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/wbrown/janus-joqular/joqular"
	"github.com/wbrown/janus-joqular/joqular/executor"
)

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printIDs(w io.Writer, format string, ids []string) error {
	if format == "json" {
		if ids == nil {
			ids = []string{}
		}
		return writeJSON(w, ids)
	}
	rows := make([][]string, len(ids))
	for i, id := range ids {
		rows[i] = []string{id}
	}
	fmt.Fprintln(w, executor.NewTableFormatter().FormatIDs([]string{"id"}, rows))
	return nil
}

func printTuples(w io.Writer, format string, tuples []executor.Tuple) error {
	if format == "json" {
		out := make([]map[string]interface{}, len(tuples))
		for i, t := range tuples {
			out[i] = t.Map()
		}
		return writeJSON(w, out)
	}
	fmt.Fprintln(w, executor.NewTableFormatter().FormatTuples(tuples))
	return nil
}

func printObjects(w io.Writer, format string, objects []joqular.Object) error {
	if format == "json" {
		if objects == nil {
			objects = []joqular.Object{}
		}
		return writeJSON(w, objects)
	}
	fmt.Fprintln(w, executor.NewTableFormatter().FormatObjects(objects))
	return nil
}

// printResults prints projected results: identifier rows from an $ids
// pattern, otherwise objects. Scalars are shown under "value".
func printResults(w io.Writer, format string, aliases []string, results []interface{}) error {
	if format == "json" {
		if results == nil {
			results = []interface{}{}
		}
		return writeJSON(w, results)
	}

	var ids [][]string
	var objects []joqular.Object
	for _, r := range results {
		switch v := r.(type) {
		case []string:
			ids = append(ids, v)
		case joqular.Object:
			objects = append(objects, v)
		default:
			objects = append(objects, joqular.Object{"value": v})
		}
	}
	if len(ids) > 0 {
		fmt.Fprintln(w, executor.NewTableFormatter().FormatIDs(aliases, ids))
		return nil
	}
	return printObjects(w, format, objects)
}
