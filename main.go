package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"librarydesk/config"
	"librarydesk/library"
	"librarydesk/logging"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"
)

var (
	// Global flags
	configPath string
	dbPath     string
	verbose    bool

	cfg    config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "librarydesk",
	Short: "Personal library manager for books, borrowers and loans",
	Long: `librarydesk keeps a per-account catalogue of books and the borrowers holding them.

Run without arguments to sign in and start the interactive shell.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if dbPath != "" {
			cfg.DatabasePath = dbPath
		}
		level := cfg.LogLevel
		if verbose {
			level = "debug"
		}
		logger, err = logging.New(level)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runShell(cmd.Context(), os.Stdin, os.Stdout)
	},
}

var signupCmd = &cobra.Command{
	Use:   "signup",
	Short: "Create an account",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSignup(cmd.Context(), os.Stdin, os.Stdout)
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify-email [email]",
	Short: "Mark an account's email address as verified",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDatabase(func(db *library.Database) error {
			return verifyEmail(cmd.Context(), db, args[0], cmd.OutOrStdout())
		})
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath, "path to the YAML config file")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.AddCommand(signupCmd, verifyCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func withDatabase(fn func(*library.Database) error) error {
	db, err := library.NewDatabase(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	return fn(db)
}

func verifyEmail(ctx context.Context, db *library.Database, email string, out io.Writer) error {
	u, err := db.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return err
	}
	if err := library.NewAccounts(db).MarkEmailVerified(ctx, u.ID); err != nil {
		return err
	}
	fmt.Fprintf(out, "Email %s marked as verified\n", u.Email)
	return nil
}

// console reads answers from in and passwords from the terminal when in is
// one; otherwise passwords are read as plain lines.
type console struct {
	sc  *bufio.Scanner
	in  io.Reader
	out io.Writer
}

func newConsole(in io.Reader, out io.Writer) *console {
	return &console{sc: bufio.NewScanner(in), in: in, out: out}
}

// prompt prints label and returns the trimmed answer; ok is false on EOF.
func (c *console) prompt(label string) (string, bool) {
	fmt.Fprint(c.out, label)
	if !c.sc.Scan() {
		return "", false
	}
	return strings.TrimSpace(c.sc.Text()), true
}

// readPassword securely reads a password with masking
func (c *console) readPassword(label string) (string, error) {
	if f, ok := c.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(c.out, label)
		bytePassword, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", err
		}
		fmt.Fprintln(c.out) // Add newline after password input
		return strings.TrimSpace(string(bytePassword)), nil
	}
	answer, ok := c.prompt(label)
	if !ok {
		return "", io.EOF
	}
	return answer, nil
}

func runSignup(ctx context.Context, in io.Reader, out io.Writer) error {
	return withDatabase(func(db *library.Database) error {
		return signup(ctx, newConsole(in, out), library.NewAccounts(db))
	})
}

func signup(ctx context.Context, c *console, accounts *library.Accounts) error {
	email, ok := c.prompt("Email: ")
	if !ok {
		return io.EOF
	}
	name, ok := c.prompt("Display name: ")
	if !ok {
		return io.EOF
	}
	password, err := c.readPassword("Password: ")
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	confirm, err := c.readPassword("Confirm password: ")
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	if password != confirm {
		return fmt.Errorf("passwords do not match")
	}
	u, err := accounts.SignUp(ctx, email, name, password)
	if err != nil {
		return fmt.Errorf("sign up: %s", library.UserMessage(err))
	}
	fmt.Fprintf(c.out, "Account created for %s\n", u.Email)
	return nil
}

// signIn prompts for credentials until they are accepted or input ends.
func signIn(ctx context.Context, c *console, accounts *library.Accounts) (*library.Session, error) {
	for attempt := 0; attempt < 3; attempt++ {
		email, ok := c.prompt("Email: ")
		if !ok {
			return nil, io.EOF
		}
		password, err := c.readPassword("Password: ")
		if err != nil {
			return nil, fmt.Errorf("failed to read password: %w", err)
		}
		sess, err := accounts.SignIn(ctx, email, password, cfg.LanguageTag())
		if err == nil {
			return sess, nil
		}
		logger.Debug("sign in failed", zap.String("email", email), zap.Error(err))
		fmt.Fprintf(c.out, "Authentication failed: %s\n", library.UserMessage(err))
	}
	return nil, library.ErrInvalidCredentials
}
