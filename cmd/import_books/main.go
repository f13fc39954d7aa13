package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"librarydesk/config"
	"librarydesk/library"
	"librarydesk/logging"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

// catalogEntry is one book in an import catalogue.
type catalogEntry struct {
	Title      string   `yaml:"title"`
	Author     string   `yaml:"author"`
	Categories []string `yaml:"categories"`
	Collection string   `yaml:"collection"`
}

// form stages e as a new book, suggesting categories.
func (e catalogEntry) form(categories []string) *library.BookForm {
	f := library.NewBookForm(nil, categories)
	f.Title = e.Title
	f.Author = e.Author
	f.Categories = e.Categories
	f.Collection = e.Collection
	return f
}

type catalog struct {
	Books []catalogEntry `yaml:"books"`
}

// starterCatalog is imported when no --catalog file is given.
var starterCatalog = []catalogEntry{
	{"1984", "George Orwell", []string{"Fiction"}, ""},
	{"Animal Farm", "George Orwell", []string{"Fiction"}, ""},
	{"The Diary of a Young Girl", "Anne Frank", []string{"Non-Fiction", "History"}, ""},
	{"The Art of War", "Sun Tzu", []string{"Non-Fiction", "History"}, ""},
	{"The Fellowship of the Ring", "J.R.R. Tolkien", []string{"Fiction"}, "The Lord of the Rings"},
	{"The Two Towers", "J.R.R. Tolkien", []string{"Fiction"}, "The Lord of the Rings"},
	{"The Return of the King", "J.R.R. Tolkien", []string{"Fiction"}, "The Lord of the Rings"},
	{"Harry Potter and the Philosopher's Stone", "J.K. Rowling", []string{"Fiction"}, "Harry Potter"},
	{"Harry Potter and the Chamber of Secrets", "J.K. Rowling", []string{"Fiction"}, "Harry Potter"},
	{"Harry Potter and the Prisoner of Azkaban", "J.K. Rowling", []string{"Fiction"}, "Harry Potter"},
	{"Harry Potter and the Order of the Phoenix", "J.K. Rowling", []string{"Fiction"}, "Harry Potter"},
	{"Harry Potter and the Half-Blood Prince", "J.K. Rowling", []string{"Fiction"}, "Harry Potter"},
	{"Harry Potter and the Deathly Hallows", "J.K. Rowling", []string{"Fiction"}, "Harry Potter"},
	{"Romeo and Juliet", "William Shakespeare", []string{"Fiction"}, ""},
	{"The Three Little Pigs", "Traditional", []string{"Fiction"}, ""},
	{"The Three Musketeers", "Alexandre Dumas", []string{"Fiction", "History"}, ""},
}

var (
	configPath  string
	dbPath      string
	email       string
	catalogPath string
)

var rootCmd = &cobra.Command{
	Use:          "import_books",
	Short:        "Import a YAML catalogue of books into an account",
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if dbPath != "" {
			cfg.DatabasePath = dbPath
		}
		logger, err := logging.New(cfg.LogLevel)
		if err != nil {
			return err
		}
		defer logger.Sync()

		entries := starterCatalog
		if catalogPath != "" {
			if entries, err = loadCatalog(catalogPath); err != nil {
				return err
			}
		}

		db, err := library.NewDatabase(cfg.DatabasePath)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()

		password, err := readPassword(os.Stdin, os.Stdout)
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		sess, err := library.NewAccounts(db).SignIn(cmd.Context(), email, password, cfg.LanguageTag())
		if err != nil {
			return errors.New(library.UserMessage(err))
		}
		mgr := library.NewLibraryManager(db, library.WithLogger(logger))
		return importBooks(cmd.Context(), mgr, sess, entries, cfg.Categories, os.Stdout)
	},
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", config.DefaultPath, "path to the YAML config file")
	rootCmd.Flags().StringVar(&dbPath, "db", "", "SQLite database path (overrides config)")
	rootCmd.Flags().StringVar(&email, "email", "", "account to import into")
	rootCmd.Flags().StringVar(&catalogPath, "catalog", "", "YAML catalogue (default: built-in starter list)")
	_ = rootCmd.MarkFlagRequired("email")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadCatalog(path string) ([]catalogEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var c catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	return c.Books, nil
}

func readPassword(in *os.File, out io.Writer) (string, error) {
	fmt.Fprint(out, "Password: ")
	if term.IsTerminal(int(in.Fd())) {
		b, err := term.ReadPassword(int(in.Fd()))
		fmt.Fprintln(out)
		return strings.TrimSpace(string(b)), err
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// importBooks submits every entry through the book form, offering the
// configured categories. Duplicates of books already in the account are
// reported and skipped.
func importBooks(ctx context.Context, mgr *library.LibraryManager, sess *library.Session, entries []catalogEntry, categories []string, out io.Writer) error {
	fmt.Fprintf(out, "Importing %d book(s)...\n", len(entries))

	successCount := 0
	skipCount := 0
	errorCount := 0
	for _, e := range entries {
		fmt.Fprintf(out, "Importing: %s by %s... ", e.Title, e.Author)

		id, err := mgr.SubmitBook(ctx, sess, e.form(categories))
		switch {
		case errors.Is(err, library.ErrDuplicateBook):
			fmt.Fprintln(out, "SKIPPED - already in library")
			skipCount++
		case err != nil:
			fmt.Fprintf(out, "ERROR - %s\n", library.UserMessage(err))
			errorCount++
		default:
			fmt.Fprintf(out, "SUCCESS (ID: %s)\n", id)
			successCount++
		}
	}

	fmt.Fprintf(out, "\nImport complete!\n")
	fmt.Fprintf(out, "Successfully imported: %d books\n", successCount)
	fmt.Fprintf(out, "Skipped: %d\n", skipCount)
	fmt.Fprintf(out, "Errors: %d\n", errorCount)

	if successCount == 0 {
		return nil
	}
	books, err := mgr.BookView(ctx, sess, library.BookQuery{Sort: library.SortSpec{Field: library.SortTitle}})
	if err != nil {
		return fmt.Errorf("list books: %w", err)
	}
	fmt.Fprintln(out, "\nLibrary now holds:")
	library.RenderBooks(out, books, library.ViewTable, nil)
	return nil
}
