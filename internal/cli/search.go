package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/KilimcininKorOglu/obacore/internal/backend"
	"github.com/KilimcininKorOglu/obacore/internal/entry"
	"github.com/KilimcininKorOglu/obacore/internal/filter"
)

// SearchOptions holds flags for the search command.
type SearchOptions struct {
	*RootOptions
	Attributes []string
	Tombstones bool
	Explain    bool
}

// SearchResult is the outcome of a search.
type SearchResult struct {
	Snapshot uint64      `json:"snapshot"`
	Plan     string      `json:"plan,omitempty"`
	Count    int         `json:"count"`
	Entries  []EntryView `json:"entries"`
}

// NewSearchCommand creates the search command.
func NewSearchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SearchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "search <filter>",
		Short: "Search entries with a filter",
		Long: `Search the directory with an LDAP-style filter.

Example:
  obacore search '(&(class=account)(name=a*))' --attrs name,mail
  obacore search '(uidnumber=1000)' --explain`,
		Args: checkArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringSliceVarP(&opts.Attributes, "attrs", "a", nil, "attributes to return (default all)")
	cmd.Flags().BoolVar(&opts.Tombstones, "tombstones", false, "include deleted entries")
	cmd.Flags().BoolVar(&opts.Explain, "explain", false, "print the query plan")

	return cmd
}

func runSearch(opts *SearchOptions, expr string, cmd *cobra.Command) error {
	f, err := filter.Parse(expr)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid filter", err)
	}

	ctx := cmd.Context()
	e, err := openEnv(ctx, opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer e.close()

	var searchOpts []backend.SearchOption
	if len(opts.Attributes) > 0 {
		searchOpts = append(searchOpts, backend.WithAttributes(opts.Attributes...))
	}
	if opts.Tombstones {
		searchOpts = append(searchOpts, backend.IncludeTombstones())
	}

	r := e.server.OpenRead()
	defer r.Close()

	res := SearchResult{Snapshot: uint64(r.Snapshot()), Entries: []EntryView{}}
	if opts.Explain {
		res.Plan = r.Explain(f).String()
	}
	var found []*entry.Entry
	for en, err := range r.Search(ctx, f, searchOpts...) {
		if err != nil {
			return WrapExitError(ExitFailure, "search failed", err)
		}
		found = append(found, en)
		res.Entries = append(res.Entries, viewEntry(en))
	}
	res.Count = len(found)
	e.out.VerboseLog("snapshot %d: %d entries", res.Snapshot, res.Count)

	return e.out.Success(res, func(w io.Writer) {
		if res.Plan != "" {
			fmt.Fprintf(w, "# plan: %s\n", res.Plan)
		}
		writeEntries(w, found)
		if len(found) > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "# %d entries\n", res.Count)
	})
}

// NewGetCommand creates the get command.
func NewGetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one entry by ID",
		Args:  checkArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return runGet(rootOpts, id, cmd)
		},
	}
}

func runGet(opts *RootOptions, id entry.ID, cmd *cobra.Command) error {
	ctx := cmd.Context()
	e, err := openEnv(ctx, opts, cmd)
	if err != nil {
		return err
	}
	defer e.close()

	en, err := e.server.Get(ctx, id)
	if err != nil {
		return WrapExitError(ExitFailure, "get failed", err)
	}
	return e.out.Success(viewEntry(en), func(w io.Writer) {
		writeEntry(w, en)
	})
}

func parseID(s string) (entry.ID, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil || n == 0 {
		return 0, NewExitError(ExitCommandError, fmt.Sprintf("invalid entry id %q", s))
	}
	return entry.ID(n), nil
}
