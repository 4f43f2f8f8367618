// Package main provides a CLI tool for managing quiz hub users.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"

	"github.com/cory-johannsen/quizhub/internal/config"
	"github.com/cory-johannsen/quizhub/internal/observability"
	"github.com/cory-johannsen/quizhub/internal/storage/postgres"
)

// errUsage reports an unknown command or missing required flag.
var errUsage = errors.New("usage")

// userStore is the subset of postgres.UserRepository the commands use.
type userStore interface {
	Add(ctx context.Context, username, email, password string) (postgres.User, error)
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]postgres.User, error)
	GetByUsername(ctx context.Context, username string) (postgres.User, error)
	Authenticate(ctx context.Context, username, password string) (postgres.User, error)
}

func usage() {
	fmt.Fprintf(os.Stderr, `usage: useradmin [-config path] <command> [flags]

commands:
  add     -username NAME -email EMAIL -password PASSWORD
  delete  -id UUID
  list    [-limit N] [-offset N]
  show    -username NAME
  verify  -username NAME -password PASSWORD
`)
	os.Exit(2)
}

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() < 1 {
		usage()
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	pool, err := postgres.NewPool(ctx, cfg.Database, logger)
	if err != nil {
		log.Fatalf("connecting to database: %v", err)
	}
	defer pool.Close()

	repo := postgres.NewUserRepository(pool.DB())

	err = run(ctx, repo, os.Stdout, flag.Arg(0), flag.Args()[1:])
	switch {
	case errors.Is(err, errUsage):
		fmt.Fprintln(os.Stderr, err)
		usage()
	case err != nil:
		log.Fatalf("%s: %v", flag.Arg(0), err)
	}
	fmt.Fprintf(os.Stdout, "[%s]\n", time.Since(start))
}

// run executes one command against store, writing its report to out.
//
// Postcondition: Returns an error wrapping errUsage for an unknown command or
// missing flag; verify returns postgres.ErrInvalidCredentials or
// postgres.ErrUserNotFound when the credentials do not match.
func run(ctx context.Context, store userStore, out io.Writer, cmd string, args []string) error {
	switch cmd {
	case "add":
		fs := flag.NewFlagSet("add", flag.ContinueOnError)
		username := fs.String("username", "", "username (required)")
		email := fs.String("email", "", "email address (required)")
		password := fs.String("password", "", "password, 8-72 bytes (required)")
		if err := fs.Parse(args); err != nil {
			return fmt.Errorf("%w: %v", errUsage, err)
		}

		u, err := store.Add(ctx, *username, *email, *password)
		if err != nil {
			return fmt.Errorf("adding user: %w", err)
		}
		fmt.Fprintf(out, "added %s (%s)\n", u.Username, u.ID)

	case "delete":
		fs := flag.NewFlagSet("delete", flag.ContinueOnError)
		rawID := fs.String("id", "", "user id (required)")
		if err := fs.Parse(args); err != nil {
			return fmt.Errorf("%w: %v", errUsage, err)
		}

		id, err := uuid.Parse(*rawID)
		if err != nil {
			return fmt.Errorf("invalid id %q: %w", *rawID, err)
		}
		if err := store.Delete(ctx, id); err != nil {
			return fmt.Errorf("deleting user: %w", err)
		}
		fmt.Fprintf(out, "deleted %s\n", id)

	case "list":
		fs := flag.NewFlagSet("list", flag.ContinueOnError)
		limit := fs.Int("limit", 100, "maximum users to list")
		offset := fs.Int("offset", 0, "users to skip")
		if err := fs.Parse(args); err != nil {
			return fmt.Errorf("%w: %v", errUsage, err)
		}

		users, err := store.List(ctx, *limit, *offset)
		if err != nil {
			return fmt.Errorf("listing users: %w", err)
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tUSERNAME\tEMAIL\tCREATED")
		for _, u := range users {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", u.ID, u.Username, u.Email, u.CreatedAt.Format(time.RFC3339))
		}
		return tw.Flush()

	case "show":
		fs := flag.NewFlagSet("show", flag.ContinueOnError)
		username := fs.String("username", "", "username (required)")
		if err := fs.Parse(args); err != nil {
			return fmt.Errorf("%w: %v", errUsage, err)
		}
		if *username == "" {
			return fmt.Errorf("%w: show requires -username", errUsage)
		}

		u, err := store.GetByUsername(ctx, *username)
		if err != nil {
			return fmt.Errorf("looking up %q: %w", *username, err)
		}
		fmt.Fprintf(out, "%s\t%s\t%s\t%s\n", u.ID, u.Username, u.Email, u.CreatedAt.Format(time.RFC3339))

	case "verify":
		fs := flag.NewFlagSet("verify", flag.ContinueOnError)
		username := fs.String("username", "", "username (required)")
		password := fs.String("password", "", "password (required)")
		if err := fs.Parse(args); err != nil {
			return fmt.Errorf("%w: %v", errUsage, err)
		}
		if *username == "" || *password == "" {
			return fmt.Errorf("%w: verify requires -username and -password", errUsage)
		}

		u, err := store.Authenticate(ctx, *username, *password)
		if err != nil {
			return fmt.Errorf("verifying %q: %w", *username, err)
		}
		fmt.Fprintf(out, "credentials valid for %s (%s)\n", u.Username, u.ID)

	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
	return nil
}
