package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/KilimcininKorOglu/obacore/internal/entry"
)

// EntryFile is the YAML document accepted by load. Each entry maps
// attribute names to a scalar or a list of scalars. The optional id key
// requests a specific entry ID.
//
//	entries:
//	  - class: [object, account]
//	    name: alice
//	    uidnumber: 1000
type EntryFile struct {
	Entries []map[string]any `yaml:"entries"`
}

// ParseEntryFile decodes an entry document.
func ParseEntryFile(data []byte) ([]*entry.Entry, error) {
	var doc EntryFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse entries: %w", err)
	}

	out := make([]*entry.Entry, 0, len(doc.Entries))
	for i, raw := range doc.Entries {
		e, err := entryFromYAML(raw)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i+1, err)
		}
		out = append(out, e)
	}
	return out, nil
}

func entryFromYAML(raw map[string]any) (*entry.Entry, error) {
	var id entry.ID
	attrs := make(map[string][]string, len(raw))
	for name, value := range raw {
		if strings.EqualFold(name, "id") {
			n, ok := value.(int)
			if !ok || n <= 0 {
				return nil, fmt.Errorf("id must be a positive integer, got %v", value)
			}
			id = entry.ID(n)
			continue
		}
		values, err := scalars(value)
		if err != nil {
			return nil, fmt.Errorf("attribute %s: %w", name, err)
		}
		attrs[name] = values
	}
	return entry.New(id, attrs), nil
}

func scalars(value any) ([]string, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, err := scalar(item)
			if err != nil {
				return nil, err
			}
			out = append(out, s)
		}
		return out, nil
	default:
		s, err := scalar(v)
		if err != nil {
			return nil, err
		}
		return []string{s}, nil
	}
}

func scalar(value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case int, int64, uint64, float64, bool:
		return fmt.Sprint(v), nil
	default:
		return "", fmt.Errorf("unsupported value %v", value)
	}
}

// LoadResult is the outcome of a load.
type LoadResult struct {
	Created int        `json:"created"`
	IDs     []entry.ID `json:"ids"`
}

// NewLoadCommand creates the load command.
func NewLoadCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "load <file.yaml>...",
		Short: "Create entries from YAML files",
		Long: `Create the entries listed in one or more YAML files.

All entries of all files are created in a single transaction: either
every entry is valid and committed, or nothing is.`,
		Args: checkArgs(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoad(rootOpts, args, cmd)
		},
	}
}

func runLoad(opts *RootOptions, files []string, cmd *cobra.Command) error {
	var entries []*entry.Entry
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return WrapExitError(ExitCommandError, "cannot read entry file", err)
		}
		parsed, err := ParseEntryFile(data)
		if err != nil {
			return WrapExitError(ExitCommandError, path, err)
		}
		entries = append(entries, parsed...)
	}

	ctx := cmd.Context()
	e, err := openEnv(ctx, opts, cmd)
	if err != nil {
		return err
	}
	defer e.close()

	e.out.VerboseLog("creating %d entries", len(entries))
	ids, err := e.server.Create(ctx, entries...)
	if err != nil {
		return WrapExitError(ExitFailure, "load failed", err)
	}

	res := LoadResult{Created: len(ids), IDs: ids}
	return e.out.Success(res, func(w io.Writer) {
		fmt.Fprintf(w, "created %d entries\n", len(ids))
		for i, id := range ids {
			if name, ok := entries[i].First("name"); ok {
				fmt.Fprintf(w, "  %d %s\n", id, name)
			} else {
				fmt.Fprintf(w, "  %d\n", id)
			}
		}
	})
}
