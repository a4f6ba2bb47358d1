package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pennywise-dev/pennywise/internal/categories"
	"github.com/pennywise-dev/pennywise/internal/config"
	"github.com/pennywise-dev/pennywise/internal/gitops"
	"github.com/pennywise-dev/pennywise/internal/importer"
)

func newInitCommand() *cobra.Command {
	var currency string
	var format string
	var noGit bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new pennywise project",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			absDir, err := filepath.Abs(dir)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}

			msg, err := runInit(cmd.Context(), absDir, currency, format, noGit)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		},
	}

	cmd.Flags().StringVar(&currency, "currency", "USD", "ISO 4217 currency code")
	cmd.Flags().StringVar(&format, "config-format", "yaml", "config file format (yaml or toml)")
	cmd.Flags().BoolVar(&noGit, "no-git", false, "do not create a git repository")

	return cmd
}

func runInit(ctx context.Context, dir, currency, format string, noGit bool) (string, error) {
	var configFile string
	switch format {
	case "yaml":
		configFile = config.YAMLFile
	case "toml":
		configFile = config.TOMLFile
	default:
		return "", fmt.Errorf("unknown config format %q", format)
	}
	if _, err := config.Find(dir); err == nil {
		return "", fmt.Errorf("%s is already a pennywise project", dir)
	}

	cfg := config.Default(currency)
	if noGit {
		cfg.Git.AutoCommit = false
	}
	if err := cfg.Validate(); err != nil {
		return "", err
	}

	dirs := []string{
		"logs",
		importer.ImportDir,
		filepath.Join(importer.ImportDir, "processed"),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(filepath.Join(dir, d), 0o755); err != nil {
			return "", fmt.Errorf("creating directory %s: %w", d, err)
		}
	}

	if err := config.Save(filepath.Join(dir, configFile), cfg); err != nil {
		return "", fmt.Errorf("writing config: %w", err)
	}

	svc := categories.NewService(categories.DefaultCategories())
	if err := svc.Save(dir); err != nil {
		return "", fmt.Errorf("writing categories: %w", err)
	}

	gitignore := cfg.Store.Path + "*\n"
	if err := os.WriteFile(filepath.Join(dir, ".gitignore"), []byte(gitignore), 0o644); err != nil {
		return "", fmt.Errorf("writing .gitignore: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, importer.ImportDir, ".gitkeep"), []byte{}, 0o644); err != nil {
		return "", fmt.Errorf("writing .gitkeep: %w", err)
	}

	p, err := openWith(ctx, dir, cfg, os.Stderr)
	if err != nil {
		return "", err
	}
	defer p.Close()
	if err := svc.Seed(ctx, p.store); err != nil {
		return "", err
	}

	msg := fmt.Sprintf("Initialized pennywise project at %s", dir)
	if !cfg.Git.AutoCommit {
		return msg, nil
	}

	if !gitops.IsRepo(dir) {
		if err := gitops.Init(ctx, dir); err != nil {
			return "", err
		}
	}
	repo := gitops.Repo{Dir: dir, AuthorName: cfg.Git.AuthorName, AuthorEmail: cfg.Git.AuthorEmail}
	hash, err := repo.CommitAll(ctx, "init: pennywise project")
	if err != nil {
		return "", fmt.Errorf("initial commit: %w", err)
	}
	return fmt.Sprintf("%s (%s)", msg, hash), nil
}
