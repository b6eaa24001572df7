package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/wbrown/janus-joqular/joqular"
	"github.com/wbrown/janus-joqular/joqular/storage"
)

func newDefineCommand(rootOpts *rootOptions) *cobra.Command {
	var shape, idKey string

	cmd := &cobra.Command{
		Use:   "define <entity>",
		Short: "Register an entity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := joqular.ParseShape(shape)
			if err != nil {
				return err
			}
			db, err := rootOpts.open()
			if err != nil {
				return err
			}
			defer db.Close()

			schema := joqular.Schema{Name: args[0], IdentifierKey: idKey, Shape: s}
			if err := db.Define(schema); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Defined %s (%s, identifier %q)\n", args[0], s, schema.IdentifierKey)
			return nil
		},
	}

	cmd.Flags().StringVar(&shape, "shape", "object", "instance shape (object|array)")
	cmd.Flags().StringVar(&idKey, "id-key", joqular.DefaultIdentifierKey, "property holding the identifier")
	return cmd
}

func newEntitiesCommand(rootOpts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "entities",
		Short: "List registered entities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := rootOpts.open()
			if err != nil {
				return err
			}
			defer db.Close()

			var rows []joqular.Object
			for _, name := range db.Store().Schemas() {
				schema, _ := db.Store().GetSchema(name)
				rows = append(rows, joqular.Object{
					"entity":     schema.Name,
					"identifier": schema.IdentifierKey,
					"shape":      schema.Shape.String(),
				})
			}
			return printObjects(cmd.OutOrStdout(), rootOpts.format, rows)
		},
	}
}

func newInsertCommand(rootOpts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "insert <entity> <instances>",
		Short: "Insert instances given as a JSON or YAML object or list",
		Long: `Insert one instance or a list of instances of an entity.

  joqular insert Person '{"name": "joe", "age": 21}'
  joqular insert Vector '[[1, 2, 3]]'`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := parseValue(args[1])
			if err != nil {
				return err
			}
			db, err := rootOpts.open()
			if err != nil {
				return err
			}
			defer db.Close()

			ids, err := db.Insert().Into(storage.Entity(args[0])).
				Values(map[string]interface{}{args[0]: values}).
				Exec()
			if err != nil {
				return err
			}
			return printIDs(cmd.OutOrStdout(), rootOpts.format, ids)
		},
	}
}

func newSelectCommand(rootOpts *rootOptions) *cobra.Command {
	var from []string
	var where, pattern string
	var withAll bool

	cmd := &cobra.Command{
		Use:   "select",
		Short: "Run a query",
		Long: `Run a query over the bound aliases and print the projected results.

  joqular select --from P1=Person --from P2=Person \
    --where '{"P1": {"name": {"P2": {"name": "$eq"}}}}' \
    --pattern '{"$ids": true}'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			bindings, err := parseBindings(from)
			if err != nil {
				return err
			}
			db, err := rootOpts.open()
			if err != nil {
				return err
			}
			defer db.Close()

			sel := db.SelectText(pattern, where, bindings...)
			if err := sel.Err(); err != nil {
				return err
			}
			if withAll {
				sel = sel.WithAll()
			}
			out := cmd.OutOrStdout()
			if strings.TrimSpace(pattern) == "" {
				tuples, err := sel.Tuples()
				if err != nil {
					return err
				}
				return printTuples(out, rootOpts.format, tuples)
			}
			results, err := sel.All()
			if err != nil {
				return err
			}
			return printResults(out, rootOpts.format, sel.Aliases(), results)
		},
	}

	cmd.Flags().StringArrayVar(&from, "from", nil, "alias binding, Alias=Entity or Entity (repeatable)")
	cmd.Flags().StringVar(&where, "where", "", "condition tree (JSON or YAML)")
	cmd.Flags().StringVar(&pattern, "pattern", "", "projection pattern (JSON or YAML)")
	cmd.Flags().BoolVar(&withAll, "all", false, "keep every field of projected instances")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("where")
	return cmd
}

func newUpdateCommand(rootOpts *rootOptions) *cobra.Command {
	var from, set []string
	var where string

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Patch every instance a query matches",
		Long: `Merge a partial object into every instance matched by the condition.

  joqular update --from P=Person --set 'Person={"age": 22}' --where '{"P": {"name": "joe"}}'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			bindings, err := parseBindings(from)
			if err != nil {
				return err
			}
			patches := make(map[string]interface{}, len(set))
			for _, s := range set {
				entity, text, found := strings.Cut(s, "=")
				if !found {
					return fmt.Errorf("invalid --set %q: expected Entity=<object>", s)
				}
				patch, err := parseValue(text)
				if err != nil {
					return fmt.Errorf("--set %s: %w", entity, err)
				}
				patches[entity] = patch
			}
			db, err := rootOpts.open()
			if err != nil {
				return err
			}
			defer db.Close()

			tree, err := db.ParseCondition(where)
			if err != nil {
				return err
			}
			ids, err := db.Update(bindings...).Set(patches).Where(tree...).Exec()
			if err != nil {
				return err
			}
			return printIDs(cmd.OutOrStdout(), rootOpts.format, ids)
		},
	}

	cmd.Flags().StringArrayVar(&from, "from", nil, "alias binding, Alias=Entity or Entity (repeatable)")
	cmd.Flags().StringArrayVar(&set, "set", nil, "patch, Entity=<object> (repeatable)")
	cmd.Flags().StringVar(&where, "where", "", "condition tree (JSON or YAML)")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("set")
	_ = cmd.MarkFlagRequired("where")
	return cmd
}

func newDeleteCommand(rootOpts *rootOptions) *cobra.Command {
	var from []string
	var where string

	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Remove every instance a query matches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			bindings, err := parseBindings(from)
			if err != nil {
				return err
			}
			db, err := rootOpts.open()
			if err != nil {
				return err
			}
			defer db.Close()

			tree, err := db.ParseCondition(where)
			if err != nil {
				return err
			}
			ids, err := db.Delete().From(bindings...).Where(tree...).Exec()
			if err != nil {
				return err
			}
			return printIDs(cmd.OutOrStdout(), rootOpts.format, ids)
		},
	}

	cmd.Flags().StringArrayVar(&from, "from", nil, "alias binding, Alias=Entity or Entity (repeatable)")
	cmd.Flags().StringVar(&where, "where", "", "condition tree (JSON or YAML)")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("where")
	return cmd
}

func newKeysCommand(rootOpts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "Dump every backend key in display form",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := rootOpts.open()
			if err != nil {
				return err
			}
			defer db.Close()

			keys, err := db.Store().Keys()
			if err != nil {
				return err
			}
			if rootOpts.format == "json" {
				return writeJSON(cmd.OutOrStdout(), keys)
			}
			for _, k := range keys {
				fmt.Fprintln(cmd.OutOrStdout(), k)
			}
			return nil
		},
	}
}

// parseValue decodes a JSON or YAML document.
func parseValue(text string) (interface{}, error) {
	var v interface{}
	if err := yaml.Unmarshal([]byte(text), &v); err != nil {
		return nil, fmt.Errorf("parse value: %w", err)
	}
	return v, nil
}
