package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KilimcininKorOglu/obacore/internal/entry"
	"github.com/KilimcininKorOglu/obacore/internal/filter"
)

// ModifyOptions holds flags for the modify command.
type ModifyOptions struct {
	*RootOptions
	Filter  string
	Add     []string
	Delete  []string
	Replace []string
}

// ModifyResult is the outcome of a modify.
type ModifyResult struct {
	Modified int        `json:"modified"`
	Entry    *EntryView `json:"entry,omitempty"`
}

// NewModifyCommand creates the modify command.
func NewModifyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ModifyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "modify [<id>]",
		Short: "Modify one entry or every entry matching a filter",
		Long: `Modify attributes of an entry, or of every live entry matching --filter.

Modifications are applied in the order replace, delete, add. A delete
without a value removes the whole attribute; a replace without a value
removes it too.

Example:
  obacore modify 3 --add mail=alice@example.com --delete loginshell
  obacore modify --filter '(class=group)' --replace gidnumber=2000`,
		Args: checkArgs(cobra.MaximumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runModify(opts, args, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Filter, "filter", "f", "", "modify every entry matching this filter")
	cmd.Flags().StringArrayVar(&opts.Add, "add", nil, "add a value (attr=value)")
	cmd.Flags().StringArrayVar(&opts.Delete, "delete", nil, "delete a value or attribute (attr[=value])")
	cmd.Flags().StringArrayVar(&opts.Replace, "replace", nil, "replace all values (attr[=value])")

	return cmd
}

// modifications builds the modification list from the flags.
func (o *ModifyOptions) modifications() ([]entry.Modification, error) {
	var mods []entry.Modification
	for _, group := range []struct {
		typ  entry.ModificationType
		args []string
	}{
		{entry.ModReplace, o.Replace},
		{entry.ModDelete, o.Delete},
		{entry.ModAdd, o.Add},
	} {
		for _, arg := range group.args {
			attr, value, hasValue := strings.Cut(arg, "=")
			attr = strings.TrimSpace(attr)
			if attr == "" || (group.typ == entry.ModAdd && !hasValue) {
				return nil, fmt.Errorf("malformed %s %q", group.typ, arg)
			}
			m := entry.Modification{Type: group.typ, Attribute: attr}
			if hasValue {
				m.Values = []string{value}
			}
			mods = append(mods, m)
		}
	}
	if len(mods) == 0 {
		return nil, fmt.Errorf("no modifications given")
	}
	return mods, nil
}

func runModify(opts *ModifyOptions, args []string, cmd *cobra.Command) error {
	if (len(args) == 1) == (opts.Filter != "") {
		return NewExitError(ExitCommandError, "give either an entry id or --filter")
	}
	mods, err := opts.modifications()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid modification", err)
	}

	var (
		id entry.ID
		f  *filter.Filter
	)
	if len(args) == 1 {
		if id, err = parseID(args[0]); err != nil {
			return err
		}
	} else if f, err = filter.Parse(opts.Filter); err != nil {
		return WrapExitError(ExitCommandError, "invalid filter", err)
	}

	ctx := cmd.Context()
	e, err := openEnv(ctx, opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer e.close()

	var res ModifyResult
	if f != nil {
		n, err := e.server.ModifyMatching(ctx, f, mods...)
		if err != nil {
			return WrapExitError(ExitFailure, "modify failed", err)
		}
		res.Modified = n
	} else {
		prior, _ := e.server.Get(ctx, id)
		en, err := e.server.Modify(ctx, id, mods...)
		if err != nil {
			return WrapExitError(ExitFailure, "modify failed", err)
		}
		if prior == nil || !en.Equal(prior) {
			res.Modified = 1
		}
		v := viewEntry(en)
		res.Entry = &v
	}

	return e.out.Success(res, func(w io.Writer) {
		switch {
		case res.Entry != nil && res.Modified == 0:
			fmt.Fprintf(w, "entry %d unchanged\n", res.Entry.ID)
			return
		case res.Entry != nil:
			fmt.Fprintf(w, "modified entry %d\n", res.Entry.ID)
			return
		}
		fmt.Fprintf(w, "modified %d entries\n", res.Modified)
	})
}

// DeleteOptions holds flags for the delete command.
type DeleteOptions struct {
	*RootOptions
	Filter string
}

// CountResult reports how many entries a write touched.
type CountResult struct {
	Count int `json:"count"`
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DeleteOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "delete [<id>]",
		Short: "Delete one entry or every entry matching a filter",
		Long: `Delete entries. Deleted entries become tombstones that keep their
uuid reserved until they are purged.`,
		Args: checkArgs(cobra.MaximumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelete(opts, args, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Filter, "filter", "f", "", "delete every entry matching this filter")

	return cmd
}

func runDelete(opts *DeleteOptions, args []string, cmd *cobra.Command) error {
	if (len(args) == 1) == (opts.Filter != "") {
		return NewExitError(ExitCommandError, "give either an entry id or --filter")
	}

	var (
		id  entry.ID
		f   *filter.Filter
		err error
	)
	if len(args) == 1 {
		if id, err = parseID(args[0]); err != nil {
			return err
		}
	} else if f, err = filter.Parse(opts.Filter); err != nil {
		return WrapExitError(ExitCommandError, "invalid filter", err)
	}

	ctx := cmd.Context()
	e, err := openEnv(ctx, opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer e.close()

	res := CountResult{Count: 1}
	if f != nil {
		res.Count, err = e.server.DeleteMatching(ctx, f)
	} else {
		err = e.server.Delete(ctx, id)
	}
	if err != nil {
		return WrapExitError(ExitFailure, "delete failed", err)
	}

	return e.out.Success(res, func(w io.Writer) {
		fmt.Fprintf(w, "deleted %d entries\n", res.Count)
	})
}

// NewPurgeCommand creates the purge command.
func NewPurgeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Remove every tombstone",
		Args:  checkArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := openEnv(ctx, rootOpts, cmd)
			if err != nil {
				return err
			}
			defer e.close()

			n, err := e.server.PurgeTombstones(ctx)
			if err != nil {
				return WrapExitError(ExitFailure, "purge failed", err)
			}
			return e.out.Success(CountResult{Count: n}, func(w io.Writer) {
				fmt.Fprintf(w, "purged %d tombstones\n", n)
			})
		},
	}
}
