package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/onboarding/internal/catalog"
	"github.com/roach88/onboarding/internal/model"
)

// CatalogValidation is the result of validating a catalog source.
type CatalogValidation struct {
	Valid      bool              `json:"valid"`
	Source     string            `json:"source"`
	Default    int               `json:"default_templates"`
	Partitions []model.Partition `json:"partitions"`
	Problems   []catalog.Problem `json:"problems,omitempty"`
}

func (v CatalogValidation) String() string {
	return fmt.Sprintf("✓ Catalog valid: %s (%d default template(s), partitions %v)",
		v.Source, v.Default, v.Partitions)
}

// CatalogListing is the effective catalog of one partition.
type CatalogListing struct {
	Partition   model.Partition  `json:"partition"`
	Fingerprint string           `json:"fingerprint"`
	Templates   []model.Template `json:"templates"`
}

func (l CatalogListing) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Catalog for %s (%s)\n", l.Partition, l.Fingerprint[:12])
	for _, t := range l.Templates {
		dest := t.Destination()
		if dest == "" {
			dest = "-"
		}
		fmt.Fprintf(&b, "  %-4s %-28s %-16s %s\n", t.ShortCode, t.Flag, t.AssignedTo, dest)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// NewCatalogCommand creates the catalog command group.
func NewCatalogCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Validate, import and show task catalogs",
		Long: `Validate, import and show task catalogs.

A catalog maps each request flag to the task it creates. Catalogs are
read from YAML files, CUE files or directories of CUE files. Templates
imported into the database take precedence over the configured catalog
file, which takes precedence over the built-in templates.`,
	}

	cmd.AddCommand(newCatalogValidateCommand(rootOpts))
	cmd.AddCommand(newCatalogImportCommand(rootOpts))
	cmd.AddCommand(newCatalogShowCommand(rootOpts))
	return cmd
}

func newCatalogValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <path>",
		Short: "Validate a catalog file without importing it",
		Long: `Validate a catalog file or CUE directory.

Exit codes:
  0 - Catalog valid
  1 - Catalog has integrity problems
  2 - Command error (file not found, unsupported format, parse error)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd)
			set, err := catalog.LoadFile(args[0])
			if err != nil {
				return outputCatalogError(f, args[0], err)
			}
			return f.Success(CatalogValidation{
				Valid:      true,
				Source:     set.Source(),
				Default:    len(set.Templates("")),
				Partitions: set.Partitions(),
			})
		},
	}
}

// integrityProblems collects the problems of every IntegrityError in err.
func integrityProblems(err error) []catalog.Problem {
	var out []catalog.Problem
	var walk func(error)
	walk = func(e error) {
		var ie *catalog.IntegrityError
		switch x := e.(type) {
		case interface{ Unwrap() []error }:
			for _, inner := range x.Unwrap() {
				walk(inner)
			}
		default:
			if errors.As(e, &ie) {
				out = append(out, ie.Problems...)
			}
		}
	}
	walk(err)
	return out
}

func outputCatalogError(f *OutputFormatter, source string, err error) error {
	problems := integrityProblems(err)
	if len(problems) == 0 {
		_ = f.Error(ErrCodeCatalog, err.Error(), nil)
		return WrapExitError(ExitCommandError, "catalog unreadable", err)
	}

	if f.JSON() {
		_ = f.Partial(CatalogValidation{Valid: false, Source: source, Problems: problems},
			ErrCodeCatalog, problems[0].String())
	} else {
		fmt.Fprintln(f.Writer, "✗ Catalog invalid")
		for _, p := range problems {
			fmt.Fprintf(f.Writer, "  %s\n", p)
		}
	}
	return NewExitError(ExitFailure, fmt.Sprintf("catalog has %d problem(s)", len(problems)))
}

func newCatalogImportCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <path>",
		Short: "Replace the partition's catalog in the database",
		Long: `Replace the current partition's templates in the database with the
templates the catalog file defines for it. Existing tasks are not changed;
run "onboard resync --all" to apply the new catalog to stored submissions.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(rootOpts, cmd, func(ctx context.Context, env *environment, f *OutputFormatter) error {
				set, err := catalog.LoadFile(args[0])
				if err != nil {
					return outputCatalogError(f, args[0], err)
				}
				tpls := set.Templates(env.partition)
				if len(tpls) == 0 {
					return errUsage(f, "%s defines no templates for partition %s", args[0], env.partition)
				}
				if err := env.store.ReplaceCategories(ctx, env.partition, tpls); err != nil {
					return f.Fail("import failed", err)
				}
				env.logger.Info("catalog imported", "partition", env.partition, "source", args[0], "templates", len(tpls))
				return showCatalog(ctx, env, f)
			})
		},
	}
}

func newCatalogShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "show",
		Short:         "Show the catalog in effect for the partition",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(rootOpts, cmd, func(ctx context.Context, env *environment, f *OutputFormatter) error {
				return showCatalog(ctx, env, f)
			})
		},
	}
}

func showCatalog(ctx context.Context, env *environment, f *OutputFormatter) error {
	cat, err := env.catalogs.Load(ctx, env.partition)
	if err != nil {
		return f.Fail("load catalog failed", err)
	}
	return f.Success(CatalogListing{
		Partition:   env.partition,
		Fingerprint: cat.Fingerprint(),
		Templates:   cat.Entries(),
	})
}
