// Command pfm-adduser creates a user directly in the configured store,
// optionally crediting an opening balance.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"pfm/internal/auth"
	"pfm/internal/cli"
	"pfm/internal/config"
	"pfm/internal/core"
	"pfm/internal/log"
	"pfm/internal/services"
)

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "pfm-adduser:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	fs := flag.NewFlagSet("pfm-adduser", flag.ContinueOnError)
	fs.SetOutput(stdout)
	email := fs.String("email", "", "email address of the new user (required)")
	password := fs.String("password", "", "password; prompted for when omitted")
	balance := fs.String("balance", "0", "opening balance")
	dbPath := fs.String("db", "", "SQLite database path; overrides SQLITE_DB_PATH and DATA_BACKEND")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*email) == "" {
		fs.Usage()
		return errors.New("-email is required")
	}
	opening, err := core.ParseMoney(*balance)
	if err != nil || opening.IsNegative() {
		return fmt.Errorf("invalid -balance %q", *balance)
	}

	cli.LoadEnvFile()
	cfg := config.Load()
	if *dbPath != "" {
		cfg.DataBackend = config.BackendSQLite
		cfg.SQLiteDBPath = *dbPath
	}
	if cfg.DataBackend == config.BackendMemory {
		return errors.New("the memory backend does not persist users; use -db or DATA_BACKEND")
	}

	if *password == "" {
		if *password, err = readPassword(stdin, stdout); err != nil {
			return err
		}
	}
	if err := auth.ValidatePassword(*password); err != nil {
		return err
	}

	logger := log.New(log.Config{Level: log.ParseLevel("warn"), Output: stdout})
	store, err := cli.OpenStore(cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	// Tokens are never issued here, so no signer is needed.
	users := services.NewUserService(services.Deps{Store: store, Logger: logger}, nil)
	u, err := users.RegisterWithBalance(ctx, *email, *password, opening)
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "created user %d <%s> with balance %s\n", u.ID, u.Email, opening)
	return nil
}

// readPassword prompts without echo on a terminal and reads one line
// otherwise.
func readPassword(stdin io.Reader, stdout io.Writer) (string, error) {
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(stdout, "Password: ")
		first, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(stdout)
		if err != nil {
			return "", err
		}
		fmt.Fprint(stdout, "Repeat password: ")
		second, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(stdout)
		if err != nil {
			return "", err
		}
		if string(first) != string(second) {
			return "", errors.New("passwords do not match")
		}
		return string(first), nil
	}

	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	if line = strings.TrimRight(line, "\r\n"); line == "" {
		return "", errors.New("empty password")
	}
	return line, nil
}
