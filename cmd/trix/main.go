// cmd/trix/main.go
package main

import (
	stderrors "errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"trix/internal/config"
	trixerrors "trix/internal/errors"
	"trix/internal/logging"
	"trix/internal/repository"
	"trix/internal/safe"
	"trix/internal/show"
	"trix/internal/watch"
)

var rootCmd = &cobra.Command{
	Use:   "trix",
	Short: "Trix is a minimal local version control system",
	Long: `Trix snapshots file contents into a content-addressed store, groups them
into commits linked into a single history, and shows line diffs between
consecutive commits.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	var initCmd = &cobra.Command{
		Use:   "init",
		Short: "Initialize a new Trix repository in the current directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("getting current directory: %w", err)
			}

			if err := repository.Init(dir); err != nil {
				if stderrors.Is(err, trixerrors.ErrAlreadyInitialized) {
					fmt.Fprintln(os.Stderr, "Repository already initialized in", dir)
					return nil
				}
				return fmt.Errorf("initializing repository: %w", err)
			}

			fmt.Println("Initialized empty Trix repository in", filepath.Join(dir, repository.DirName))
			return nil
		},
	}

	var addCmd = &cobra.Command{
		Use:   "add <file>...",
		Short: "Stage file contents for the next commit",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := openRepository("add")
			if err != nil {
				return err
			}
			defer repo.Close()

			green := color.New(color.FgGreen).SprintFunc()
			for _, path := range args {
				hash, err := repo.Add(path)
				if err != nil {
					return fmt.Errorf("adding %s: %w", path, err)
				}
				fmt.Printf("%s %s %s\n", green("staged"), path, hash.Short())
			}
			return nil
		},
	}

	var commitCmd = &cobra.Command{
		Use:   "commit <message>",
		Short: "Record the staged files as a new commit",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			message, _ := cmd.Flags().GetString("message")
			if message == "" {
				message = strings.Join(args, " ")
			} else if len(args) > 0 {
				return trixerrors.ValidationError("give the message either with -m or as an argument, not both")
			}

			repo, err := openRepository("commit")
			if err != nil {
				return err
			}
			defer repo.Close()

			hash, err := repo.Commit(message)
			if err != nil {
				return fmt.Errorf("committing: %w", err)
			}

			fmt.Printf("[%s] %s\n", color.New(color.FgYellow).Sprint(hash.Short()), firstLine(message))
			return nil
		},
	}

	var logCmd = &cobra.Command{
		Use:   "log",
		Short: "Show commit history from HEAD",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("max-count")

			repo, err := openRepository("log")
			if err != nil {
				return err
			}
			defer repo.Close()

			commits, err := repo.Log(limit)
			if err != nil {
				return fmt.Errorf("reading history: %w", err)
			}
			if len(commits) == 0 {
				fmt.Println("No commits yet")
				return nil
			}

			yellow := color.New(color.FgYellow).SprintFunc()
			for _, c := range commits {
				fmt.Printf("%s %s\n", yellow("commit"), yellow(string(c.Hash)))
				if !c.Parent.IsZero() {
					fmt.Printf("Parent: %s\n", c.Parent)
				}
				fmt.Printf("Date:   %s\n\n", c.Timestamp)
				for _, line := range strings.Split(c.Message, "\n") {
					fmt.Printf("    %s\n", line)
				}
				fmt.Println()
			}
			return nil
		},
	}

	var showCmd = &cobra.Command{
		Use:   "show [hash]",
		Short: "Show a commit and its changes against its parent",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			unified, _ := cmd.Flags().GetBool("unified")
			noColor, _ := cmd.Flags().GetBool("no-color")

			ref := repository.HeadRef
			if len(args) == 1 {
				ref = args[0]
			}

			repo, err := openRepository("show")
			if err != nil {
				return err
			}
			defer repo.Close()

			// Everything is resolved before the first byte is written.
			report, err := repo.Show(ref)
			if err != nil {
				return fmt.Errorf("showing %s: %w", ref, err)
			}

			return show.Render(os.Stdout, report, show.RenderOptions{
				Unified:      unified,
				ContextLines: repo.Config.Diff.ContextLines,
				Color:        !noColor && !color.NoColor,
			})
		},
	}

	var catCmd = &cobra.Command{
		Use:   "cat <hash>",
		Short: "Print the raw content of an object",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := openRepository("cat")
			if err != nil {
				return err
			}
			defer repo.Close()

			data, err := repo.Cat(args[0])
			if err != nil {
				return fmt.Errorf("reading %s: %w", args[0], err)
			}
			_, err = os.Stdout.Write(data)
			return err
		},
	}

	var statusCmd = &cobra.Command{
		Use:   "status",
		Short: "Show HEAD and the staged files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := openRepository("status")
			if err != nil {
				return err
			}
			defer repo.Close()

			status, err := repo.Status()
			if err != nil {
				return fmt.Errorf("getting status: %w", err)
			}

			if status.Head.IsZero() {
				fmt.Println("No commits yet")
			} else {
				fmt.Println("HEAD", status.Head)
			}

			if len(status.Staged) == 0 {
				fmt.Println("Nothing staged")
				return nil
			}

			green := color.New(color.FgGreen).SprintFunc()
			fmt.Printf("\nChanges to be committed:\n")
			fmt.Println("  (use \"trix commit <message>\" to record them)")
			for _, e := range status.Staged {
				fmt.Printf("\t%s %s %s\n", green("+"), e.Path, e.Hash.Short())
			}
			fmt.Println()
			return nil
		},
	}

	var verifyCmd = &cobra.Command{
		Use:   "verify",
		Short: "Check every object, the catalog and the history for consistency",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := openRepository("verify")
			if err != nil {
				return err
			}
			defer repo.Close()

			report, err := repo.Verify()
			if err != nil {
				return fmt.Errorf("verifying repository: %w", err)
			}

			fmt.Printf("%d objects, %d commits, %d reachable from HEAD\n",
				report.Objects, report.Commits, report.Reached)
			if report.OK() {
				fmt.Println(color.New(color.FgGreen).Sprint("ok"))
				return nil
			}

			red := color.New(color.FgRed).SprintFunc()
			for _, p := range report.Problems {
				fmt.Printf("\t%s %s\n", red("!"), p)
			}
			return trixerrors.CorruptData(fmt.Sprintf("%d problems found", len(report.Problems)), nil)
		},
	}

	var watchCmd = &cobra.Command{
		Use:   "watch [paths...]",
		Short: "Stage files automatically whenever they change",
		Long: `Watches the given files or directories (the whole work tree by default)
and stages each file again when its content changes. Runs until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := openRepository("watch")
			if err != nil {
				return err
			}
			defer repo.Close()

			green := color.New(color.FgGreen).SprintFunc()
			w, err := watch.New(repo.Root, repo, watch.Options{
				Logger: repo.Logger,
				OnStage: func(path string, hash safe.Hash) {
					rel, err := filepath.Rel(repo.Root, path)
					if err != nil {
						rel = path
					}
					fmt.Printf("%s %s %s\n", green("staged"), rel, hash.Short())
				},
			})
			if err != nil {
				return fmt.Errorf("creating watcher: %w", err)
			}
			if err := w.Watch(args...); err != nil {
				w.Close()
				return fmt.Errorf("watching: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			fmt.Println("Watching for changes, press Ctrl+C to stop")
			return w.Run(ctx)
		},
	}

	commitCmd.Flags().StringP("message", "m", "", "Commit message")
	logCmd.Flags().IntP("max-count", "n", 0, "Limit the number of commits shown (0 for all)")
	showCmd.Flags().BoolP("unified", "u", false, "Print a unified diff instead of per-hunk listing")
	showCmd.Flags().Bool("no-color", false, "Disable colored output")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(commitCmd)
	rootCmd.AddCommand(logCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(catCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(watchCmd)
}

// openRepository finds the repository above the working directory and opens
// it with a logger tagged for operation.
func openRepository(operation string) (*repository.Repository, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting current directory: %w", err)
	}

	root, err := repository.FindRoot(cwd)
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(config.Path(filepath.Join(root, repository.DirName)))
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	logger, err := logging.NewLogger(cfg.LogLevel, cfg.Environment)
	if err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}
	opLogger := logger.WithOperation(operation)

	repo, err := repository.Open(root, opLogger.Logger)
	if err != nil {
		opLogger.Debug("open failed", zap.Error(err))
		return nil, err
	}
	return repo, nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.New(color.FgRed).Sprint("error:"), err)
		os.Exit(1)
	}
}
