package cli

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KilimcininKorOglu/obacore/internal/schema"
)

// AttributeView is the JSON form of an attribute type.
type AttributeView struct {
	Name        string `json:"name"`
	Syntax      string `json:"syntax"`
	MultiValued bool   `json:"multiValued"`
	Indexed     bool   `json:"indexed"`
	Description string `json:"description,omitempty"`
}

// ClassView is the JSON form of an object class.
type ClassView struct {
	Name        string   `json:"name"`
	Extends     []string `json:"extends,omitempty"`
	Must        []string `json:"must,omitempty"`
	May         []string `json:"may,omitempty"`
	Description string   `json:"description,omitempty"`
}

// SchemaView is the JSON form of a schema.
type SchemaView struct {
	Attributes []AttributeView `json:"attributes"`
	Classes    []ClassView     `json:"classes"`
}

// NewSchemaCommand creates the schema command.
func NewSchemaCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the configured schema",
		Args:  checkArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(rootOpts)
			if err != nil {
				return err
			}
			sch, err := loadSchema(cfg)
			if err != nil {
				return err
			}
			view := viewSchema(sch)
			return newFormatter(rootOpts, cmd).Success(view, func(w io.Writer) {
				writeSchema(w, view)
			})
		},
	}
}

func viewSchema(sch *schema.Schema) SchemaView {
	view := SchemaView{}
	for _, name := range slices.Sorted(maps.Keys(sch.AttributeTypes)) {
		at := sch.AttributeTypes[name]
		view.Attributes = append(view.Attributes, AttributeView{
			Name:        at.Name,
			Syntax:      at.Syntax.String(),
			MultiValued: at.MultiValued,
			Indexed:     at.Indexed,
			Description: at.Description,
		})
	}
	for _, name := range slices.Sorted(maps.Keys(sch.ObjectClasses)) {
		oc := sch.ObjectClasses[name]
		view.Classes = append(view.Classes, ClassView{
			Name:        oc.Name,
			Extends:     oc.Extends,
			Must:        oc.Must,
			May:         oc.May,
			Description: oc.Description,
		})
	}
	return view
}

func writeSchema(w io.Writer, view SchemaView) {
	fmt.Fprintln(w, "attributes:")
	for _, at := range view.Attributes {
		var flags []string
		if at.MultiValued {
			flags = append(flags, "multi")
		}
		if at.Indexed {
			flags = append(flags, "indexed")
		}
		line := fmt.Sprintf("  %-14s %-10s %s", at.Name, at.Syntax, strings.Join(flags, ","))
		fmt.Fprintln(w, strings.TrimRight(line, " "))
	}
	fmt.Fprintln(w, "classes:")
	for _, oc := range view.Classes {
		fmt.Fprintf(w, "  %s\n", oc.Name)
		for _, part := range []struct {
			label string
			names []string
		}{{"extends", oc.Extends}, {"must", oc.Must}, {"may", oc.May}} {
			if len(part.names) > 0 {
				fmt.Fprintf(w, "    %-8s %s\n", part.label+":", strings.Join(part.names, ", "))
			}
		}
	}
}
