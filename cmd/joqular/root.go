package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wbrown/janus-joqular/joqular/executor"
	"github.com/wbrown/janus-joqular/joqular/storage"
)

// rootOptions holds the global flags.
type rootOptions struct {
	dbPath  string
	backend string
	config  string
	verbose bool
	format  string
}

var validFormats = []string{"table", "json"}

const defaultDBPath = "joqular.db"

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "joqular",
		Short: "Query and write schema-mapped instances in a key-value store",
		Long: `joqular stores instances of registered entities in an ordered key-value
store (badger, bolt or sqlite) and queries them with declarative
condition trees written as JSON or YAML.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			for _, f := range validFormats {
				if f == opts.format {
					return nil
				}
			}
			return fmt.Errorf("invalid format %q: must be one of %v", opts.format, validFormats)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.dbPath, "db", "", "database path (default "+defaultDBPath+")")
	cmd.PersistentFlags().StringVar(&opts.backend, "backend", "", "storage backend (badger|bolt|sqlite)")
	cmd.PersistentFlags().StringVar(&opts.config, "config", "", "YAML options file")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "print query annotations to stderr")
	cmd.PersistentFlags().StringVar(&opts.format, "format", "table", "output format (table|json)")

	cmd.AddCommand(newDefineCommand(opts))
	cmd.AddCommand(newEntitiesCommand(opts))
	cmd.AddCommand(newInsertCommand(opts))
	cmd.AddCommand(newSelectCommand(opts))
	cmd.AddCommand(newUpdateCommand(opts))
	cmd.AddCommand(newDeleteCommand(opts))
	cmd.AddCommand(newKeysCommand(opts))

	return cmd
}

// open builds the database options from the config file and flags. Flags
// win over the file.
func (o *rootOptions) open() (*storage.Database, error) {
	opts := storage.DefaultOptions(defaultDBPath)
	if o.config != "" {
		loaded, err := storage.LoadOptions(o.config)
		if err != nil {
			return nil, err
		}
		opts = loaded
		if opts.Path == "" && !opts.InMemory {
			opts.Path = defaultDBPath
		}
	}
	if o.dbPath != "" {
		opts.Path = o.dbPath
	}
	if o.backend != "" {
		backend, err := storage.ParseBackendType(o.backend)
		if err != nil {
			return nil, err
		}
		opts.Backend = backend
	}
	if o.verbose {
		opts.Verbose = true
	}
	return storage.Open(opts)
}

// parseBindings reads "Alias=Entity" or "Entity" arguments.
func parseBindings(args []string) ([]executor.Binding, error) {
	bindings := make([]executor.Binding, 0, len(args))
	for _, arg := range args {
		alias, entity, found := strings.Cut(arg, "=")
		if !found {
			entity = alias
		}
		if alias == "" || entity == "" {
			return nil, fmt.Errorf("invalid binding %q: expected Alias=Entity or Entity", arg)
		}
		bindings = append(bindings, storage.As(entity, alias))
	}
	return bindings, nil
}
