package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"

	"prepquiz/internal/app"
	"prepquiz/internal/auth"
	"prepquiz/internal/catalog"
	"prepquiz/internal/db"
	"prepquiz/internal/quiz"
	"prepquiz/internal/store"
)

const usage = `usage: prepquiz-admin <command> [flags]

commands:
  migrate                                   apply the database schema
  import-catalog -file questions.yaml|.xlsx validate and import quiz questions
  create-user -username -password -full-name [-role member|admin]
  import-users -file users.csv              create accounts from a CSV file
  export-history -user ID -out history.xlsx write a user's attempt history
`

var errUsage = errors.New("invalid usage")

func main() {
	if err := run(context.Background(), app.LoadConfig(), os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
			os.Exit(2)
		}
		log.Printf("prepquiz-admin: %v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg app.Config, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, rest := args[0], args[1:]

	var handler func(ctx context.Context, conn *db.Conn, args []string, out io.Writer) error
	switch cmd {
	case "migrate":
		handler = runMigrate
	case "import-catalog":
		handler = runImportCatalog
	case "create-user":
		handler = runCreateUser
	case "import-users":
		handler = runImportUsers
	case "export-history":
		handler = runExportHistory
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}

	conn, err := db.Open(ctx, cfg.DBOptions())
	if err != nil {
		return err
	}
	defer conn.Close()
	return handler(ctx, conn, rest, out)
}

func runMigrate(ctx context.Context, conn *db.Conn, args []string, out io.Writer) error {
	if err := db.Migrate(ctx, conn); err != nil {
		return err
	}
	fmt.Fprintf(out, "schema applied (%s)\n", conn.Dialect)
	return nil
}

func runImportCatalog(ctx context.Context, conn *db.Conn, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("import-catalog", flag.ContinueOnError)
	path := fs.String("file", "", "catalog file (.yaml, .yml or .xlsx)")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if *path == "" {
		return fmt.Errorf("%w: -file is required", errUsage)
	}

	entries, err := catalog.Load(*path)
	if err != nil {
		return err
	}
	ids, err := catalog.NewImporter(conn).Import(ctx, entries)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "imported %d questions\n", len(ids))
	return nil
}

func runCreateUser(ctx context.Context, conn *db.Conn, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("create-user", flag.ContinueOnError)
	username := fs.String("username", "", "login name")
	password := fs.String("password", "", "password, at least 8 characters")
	fullName := fs.String("full-name", "", "display name")
	role := fs.String("role", auth.RoleMember, "member or admin")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	user, err := auth.NewService(conn, auth.ServiceConfig{}).CreateUser(ctx, auth.CreateUserInput{
		Username: *username,
		Password: *password,
		FullName: *fullName,
		Role:     *role,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "created user %d (%s, %s)\n", user.ID, user.Username, user.Role)
	return nil
}

func runImportUsers(ctx context.Context, conn *db.Conn, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("import-users", flag.ContinueOnError)
	path := fs.String("file", "", "CSV with username, password, full_name and optional role columns")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if *path == "" {
		return fmt.Errorf("%w: -file is required", errUsage)
	}

	f, err := os.Open(*path)
	if err != nil {
		return fmt.Errorf("open %s: %w", *path, err)
	}
	defer f.Close()

	report, err := auth.NewService(conn, auth.ServiceConfig{}).ImportUsersCSV(ctx, f)
	if err != nil {
		return err
	}
	for _, e := range report.Errors {
		fmt.Fprintf(out, "row %d: %s\n", e.Row, e.Error)
	}
	fmt.Fprintf(out, "imported %d of %d users\n", report.SuccessRows, report.TotalRows)
	return nil
}

func runExportHistory(ctx context.Context, conn *db.Conn, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("export-history", flag.ContinueOnError)
	userFlag := fs.String("user", "", "user id")
	outPath := fs.String("out", "history.xlsx", "output spreadsheet")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	userID, err := strconv.ParseInt(*userFlag, 10, 64)
	if err != nil || userID <= 0 {
		return fmt.Errorf("%w: -user must be a positive id", errUsage)
	}

	history, err := quiz.NewService(store.New(conn), quiz.ServiceConfig{}).GetHistory(ctx, userID)
	if err != nil {
		return err
	}
	rows := make([]catalog.HistoryRow, 0, len(history))
	for _, h := range history {
		rows = append(rows, catalog.HistoryRow{
			AttemptID:      h.AttemptID,
			Date:           h.Date,
			Status:         string(h.Status),
			TotalQuestions: h.TotalQuestions,
			CorrectAnswers: h.CorrectAnswers,
		})
	}

	f, err := os.Create(*outPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", *outPath, err)
	}
	if err := catalog.WriteHistoryExcel(f, rows); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(out, "wrote %d attempts to %s\n", len(rows), *outPath)
	return nil
}
