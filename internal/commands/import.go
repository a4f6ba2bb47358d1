package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/pennywise-dev/pennywise/internal/categories"
	"github.com/pennywise-dev/pennywise/internal/gitops"
	"github.com/pennywise-dev/pennywise/internal/id"
	"github.com/pennywise-dev/pennywise/internal/importer"
	"github.com/pennywise-dev/pennywise/internal/importlog"
	"github.com/pennywise-dev/pennywise/internal/progress"
	"github.com/pennywise-dev/pennywise/internal/tables"
)

type importFlags struct {
	format     string
	batchSize  int
	autoCreate bool
	verbose    bool
}

func newImportCommand(dir *string) *cobra.Command {
	var flags importFlags

	cmd := &cobra.Command{
		Use:   "import [file...]",
		Short: "Import transaction exports",
		Long: `Import transaction exports into the store.

With no arguments every CSV in import/ is imported and moved to
import/processed/ once it succeeds. Use "-" to read from stdin.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := openProject(cmd.Context(), *dir, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer p.Close()
			return runImport(cmd.Context(), p, args, flags, cmd.OutOrStdout(), cmd.InOrStdin())
		},
	}

	cmd.Flags().StringVar(&flags.format, "format", "", "input format (default from config)")
	cmd.Flags().IntVar(&flags.batchSize, "batch-size", 0, "transactions per write (default from config)")
	cmd.Flags().BoolVar(&flags.autoCreate, "auto-create", false, "create unknown categories")
	cmd.Flags().BoolVarP(&flags.verbose, "verbose", "v", false, "print every progress report")

	return cmd
}

type importSource struct {
	name  string // as logged
	path  string // "" for stdin
	inbox bool   // move to processed on success
}

func runImport(ctx context.Context, p *project, args []string, flags importFlags, out io.Writer, stdin io.Reader) error {
	sources, err := importSources(p.root, args)
	if err != nil {
		return err
	}
	if len(sources) == 0 {
		fmt.Fprintln(out, "Nothing to import.")
		return nil
	}

	opts := importer.Options{
		Format:               p.cfg.Import.Format,
		BatchSize:            p.cfg.Import.BatchSize,
		AutoCreateCategories: p.cfg.Import.AutoCreateCategories || flags.autoCreate,
		Logger:               p.logger,
	}
	if flags.format != "" {
		opts.Format = flags.format
	}
	if flags.batchSize > 0 {
		opts.BatchSize = flags.batchSize
	}
	im := importer.New(p.store, opts)

	var (
		errs     []error
		imported int
		created  bool
	)
	for _, src := range sources {
		res, err := importOne(ctx, im, src, flags.verbose, out, stdin)
		if logErr := importlog.Append(p.root, []importlog.Entry{{
			Timestamp: time.Now(),
			RunID:     res.RunID,
			Source:    src.name,
			Progress:  res.Progress,
		}}); logErr != nil {
			errs = append(errs, logErr)
		}
		if err != nil {
			fmt.Fprintf(out, "%s: %v\n", src.name, err)
			errs = append(errs, fmt.Errorf("%s: %w", src.name, err))
			if ctx.Err() != nil {
				break
			}
			continue
		}

		imported += res.Imported
		created = created || len(res.Created) > 0
		fmt.Fprintf(out, "%s: imported %d transactions (run %s)\n", src.name, res.Imported, res.RunID)
		for _, name := range res.Created {
			fmt.Fprintf(out, "  created category %s\n", name)
		}
		if src.inbox {
			if err := importer.MarkProcessed(p.root, src.name); err != nil {
				errs = append(errs, err)
			}
		}
	}

	if created {
		if err := syncCategories(ctx, p); err != nil {
			errs = append(errs, err)
		}
	}
	if stored, err := p.store.Count(context.WithoutCancel(ctx), tables.Transactions, id.TransactionPrefix()); err != nil {
		errs = append(errs, err)
	} else {
		fmt.Fprintf(out, "%d transactions stored.\n", stored)
	}
	if err := commitProject(ctx, p, fmt.Sprintf("import: %d transactions from %d files", imported, len(sources))); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func importSources(root string, args []string) ([]importSource, error) {
	if len(args) == 0 {
		files, err := importer.Scan(root)
		if err != nil {
			return nil, err
		}
		sources := make([]importSource, len(files))
		for i, f := range files {
			sources[i] = importSource{name: f.Name, path: f.Path, inbox: true}
		}
		return sources, nil
	}

	sources := make([]importSource, len(args))
	for i, arg := range args {
		if arg == "-" {
			sources[i] = importSource{name: "-"}
			continue
		}
		sources[i] = importSource{name: filepath.Base(arg), path: arg}
	}
	return sources, nil
}

func importOne(ctx context.Context, im *importer.Importer, src importSource, verbose bool, out io.Writer, stdin io.Reader) (importer.Result, error) {
	r := stdin
	if src.path != "" {
		f, err := os.Open(src.path)
		if err != nil {
			res := importer.Result{Progress: progress.Progress{}.Failed(err)}
			return res, fmt.Errorf("opening import file: %w", err)
		}
		defer f.Close()
		r = f
	}

	var report progress.Func
	if verbose {
		report = func(pr progress.Progress) {
			fmt.Fprintf(out, "%s: %s\n", src.name, pr)
		}
	}
	return im.Run(ctx, r, report)
}

// syncCategories rewrites categories.csv from the store.
func syncCategories(ctx context.Context, p *project) error {
	svc, err := categories.FromStore(ctx, p.store)
	if err != nil {
		return err
	}
	return svc.Save(p.root)
}

// commitProject commits the project files when auto-commit is on and the
// project is a git repository.
func commitProject(ctx context.Context, p *project, message string) error {
	if !p.cfg.Git.AutoCommit || !gitops.IsRepo(p.root) {
		return nil
	}
	repo := gitops.Repo{Dir: p.root, AuthorName: p.cfg.Git.AuthorName, AuthorEmail: p.cfg.Git.AuthorEmail}
	hash, err := repo.CommitAll(context.WithoutCancel(ctx), message)
	if err != nil {
		return err
	}
	if hash != "" {
		p.logger.Info("committed project files", "commit", hash)
	}
	return nil
}
