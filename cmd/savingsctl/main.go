// Command savingsctl administers a savingsbuddy database: user accounts and
// the shared expense categories.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/google/subcommands"
	"golang.org/x/term"

	"savingsbuddy/internal/cli"
	applog "savingsbuddy/internal/log"
	"savingsbuddy/internal/services"
	"savingsbuddy/internal/storage"
)

func main() {
	cli.LoadEnvFile()
	os.Exit(run(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// app carries what every subcommand shares: the database location and the
// standard streams.
type app struct {
	dbPath string
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	lines *bufio.Scanner
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	applog.SetDefault(applog.New(applog.Config{
		Level:     slog.LevelWarn,
		Component: applog.ComponentCLI,
		Handler:   slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelWarn}),
	}))

	fs := flag.NewFlagSet("savingsctl", flag.ContinueOnError)
	fs.SetOutput(stderr)

	a := &app{stdin: stdin, stdout: stdout, stderr: stderr}
	defaultDB := os.Getenv("SQLITE_DB_PATH")
	if defaultDB == "" {
		defaultDB = "./data/savingsbuddy.db"
	}
	fs.StringVar(&a.dbPath, "db", defaultDB, "Path to the SQLite database file")

	commander := subcommands.NewCommander(fs, "savingsctl")
	commander.Output = stdout
	commander.Error = stderr
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.CommandsCommand(), "")
	commander.Register(&addUserCmd{app: a}, "users")
	commander.Register(&delUserCmd{app: a}, "users")
	commander.Register(&listUsersCmd{app: a}, "users")
	commander.Register(&addCategoryCmd{app: a}, "categories")
	commander.Register(&listCategoriesCmd{app: a}, "categories")
	commander.Register(&delCategoryCmd{app: a}, "categories")

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return int(subcommands.ExitSuccess)
		}
		return int(subcommands.ExitUsageError)
	}
	return int(commander.Execute(ctx))
}

// open returns the account and record services over a freshly migrated
// database. The caller closes the repository.
func (a *app) open() (*storage.SQLiteRepository, *services.AccountService, *services.RecordService, error) {
	repo, err := storage.NewSQLiteRepository(a.dbPath)
	if err != nil {
		return nil, nil, nil, err
	}
	return repo, services.NewAccountService(repo, 0), services.NewRecordService(repo, nil, nil), nil
}

// readPassword reads a line without echo from a terminal, or a plain line
// otherwise.
func (a *app) readPassword() (string, error) {
	if f, ok := a.stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(a.stdout)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}

	if a.lines == nil {
		a.lines = bufio.NewScanner(a.stdin)
	}
	if a.lines.Scan() {
		return a.lines.Text(), nil
	}
	if err := a.lines.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}
