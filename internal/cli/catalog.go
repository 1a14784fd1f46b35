package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/honors/constraint"
	"github.com/roach88/honors/internal/catalog"
	"github.com/roach88/honors/internal/config"
)

// MarkerUsage documents how tests declare honored constraints.
const MarkerUsage = "honors.Mark(t, constraint1, constraint2, ...): mark tests as honoring one or more constraints."

// GroupInfo describes one constraint group.
type GroupInfo struct {
	Name    string       `json:"name"`
	Doc     string       `json:"doc"`
	Members []MemberInfo `json:"members"`
}

// MemberInfo describes one constraint.
type MemberInfo struct {
	Key   string `json:"key"`
	Name  string `json:"name"`
	Value string `json:"value"`
}

// CatalogOutput is the result of the catalog command.
type CatalogOutput struct {
	Usage  string      `json:"usage"`
	Groups []GroupInfo `json:"groups"`
}

// NewCatalogCommand creates the catalog command.
func NewCatalogCommand(rootOpts *RootOptions) *cobra.Command {
	flags := &config.Flags{}

	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "List the known constraint groups",
		Long: `List the built-in constraint groups and those declared in the CUE
catalog directory (--catalog or the catalog key of .honors.yaml).

Groups defined in Go test code are not listed; they travel inside each
test's marker and need no catalog entry.

Catalog files declare groups like this:

  group: DataHandling: {
      doc: "Controls for handling customer data."
      members: {
          encrypt_at_rest: "Customer data is encrypted at rest"
      }
  }`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCatalog(cmd, rootOpts, *flags)
		},
	}

	cmd.Flags().StringVar(&flags.Catalog, "catalog", "", "directory of CUE files declaring constraint groups")

	return cmd
}

func runCatalog(cmd *cobra.Command, opts *RootOptions, flags config.Flags) error {
	formatter := newFormatter(opts, cmd)

	cfg, err := resolveConfig(cmd, opts, flags)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeConfig, "invalid configuration", err)
	}
	cat, err := catalog.New(cfg.Catalog)
	if err != nil {
		code := ErrCodeConfig
		var loadErr *catalog.LoadError
		if errors.As(err, &loadErr) {
			code = loadErr.Code
		}
		return formatter.fail(ExitCommandError, code, "cannot load constraint catalog", err)
	}

	out := CatalogOutput{Usage: MarkerUsage, Groups: []GroupInfo{}}
	for _, g := range cat.Groups() {
		info := GroupInfo{Name: g.Name(), Doc: constraint.DocLine(g)}
		for _, v := range g.Members() {
			info.Members = append(info.Members, MemberInfo{Key: constraint.Key(v), Name: v.Name(), Value: v.Value()})
		}
		out.Groups = append(out.Groups, info)
	}

	if formatter.Format == "json" {
		return formatter.Success(out)
	}

	w, th := formatter.Writer, formatter.Theme
	fmt.Fprintln(w, out.Usage)
	for _, g := range out.Groups {
		fmt.Fprintln(w)
		fmt.Fprintln(w, th.Heading.Render(g.Name)+" - "+g.Doc)
		width := 0
		for _, m := range g.Members {
			width = max(width, len(m.Name))
		}
		for _, m := range g.Members {
			fmt.Fprintf(w, "  %s %-*s  %s\n", th.Icons.Bullet, width, m.Name, th.Muted.Render(m.Value))
		}
	}
	return nil
}
