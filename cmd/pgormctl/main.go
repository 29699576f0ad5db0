// Package main is the command-line front end for pgorm's migration
// engine: the Go-idiomatic analogue of a menu-driven operator console,
// grounded on the Cobra CLI shape used throughout the example pack (e.g.
// axonops-axonops-schema-registry's admin CLI).
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"reflect"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	_ "github.com/lib/pq"

	"github.com/onyx-go/pgorm"
)

var dsn string

func main() {
	rootCmd := &cobra.Command{
		Use:   "pgormctl",
		Short: "Operate pgorm schema migrations against a PostgreSQL database",
	}
	rootCmd.PersistentFlags().StringVar(&dsn, "dsn", os.Getenv("PGORM_DSN"), "PostgreSQL connection string (defaults to $PGORM_DSN)")

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply all pending schema changes",
		RunE:  runMigrate,
	}

	planCmd := &cobra.Command{
		Use:   "plan",
		Short: "Show the pending schema diff without applying it",
		RunE:  runPlan,
	}

	rollbackCmd := &cobra.Command{
		Use:   "rollback",
		Short: "Roll back the most recently applied migration, or to a specific --to version",
		RunE:  runRollback,
	}
	var target int
	rollbackCmd.Flags().IntVar(&target, "to", -1, "Roll back to this version instead of current-1")

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "List applied migrations",
		RunE:  runHistory,
	}

	resetCmd := &cobra.Command{
		Use:   "reset",
		Short: "Drop all mapped tables and history, then migrate from scratch",
		RunE:  runReset,
	}

	rootCmd.AddCommand(migrateCmd, planCmd, rollbackCmd, historyCmd, resetCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "pgormctl: %v\nhint: check --dsn / $PGORM_DSN and that the target database is reachable\n", err)
		os.Exit(1)
	}
}

// entityTypes is the operator-facing registry of mapped entities. A real
// deployment would import its own entity package here; pgormctl ships
// empty because the entity set belongs to the application, not the tool.
var entityTypes []reflect.Type

func openDB() (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("no DSN supplied (use --dsn or $PGORM_DSN)")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func runMigrate(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	engine := pgorm.NewMigrationEngine(db, entityTypes, pgorm.WithLogger(pgorm.NewStdLogger(os.Stdout, pgorm.InfoLevel)))
	changes, err := engine.MigrateAll(context.Background())
	if err != nil {
		fmt.Println("FAIL migration aborted:", err)
		return err
	}
	if len(changes) == 0 {
		fmt.Println("no pending changes")
		return nil
	}
	for _, c := range changes {
		fmt.Printf("OK  %s %s\n", c.Kind, c.Table)
	}
	return nil
}

func runPlan(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	engine := pgorm.NewMigrationEngine(db, entityTypes)
	changes, err := engine.ShowMigrationPlan(context.Background())
	if err != nil {
		return err
	}
	if len(changes) == 0 {
		fmt.Println("schema is up to date")
		return nil
	}
	for _, c := range changes {
		fmt.Printf("%s %s\n", c.Kind, c.Table)
	}
	return nil
}

func runRollback(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	target, _ := cmd.Flags().GetInt("to")
	engine := pgorm.NewMigrationEngine(db, entityTypes, pgorm.WithLogger(pgorm.NewStdLogger(os.Stdout, pgorm.InfoLevel)))

	ctx := context.Background()
	if target < 0 {
		if err := engine.Rollback(ctx); err != nil {
			fmt.Println("FAIL rollback aborted:", err)
			return err
		}
	} else if err := engine.RollbackTo(ctx, target); err != nil {
		fmt.Println("FAIL rollback aborted:", err)
		return err
	}
	fmt.Println("OK  rollback complete")
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	engine := pgorm.NewMigrationEngine(db, entityTypes)
	records, err := engine.ShowHistory(context.Background())
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tNAME\tAPPLIED AT")
	for _, r := range records {
		fmt.Fprintf(w, "%d\t%s\t%s\n", r.Version, r.Name, r.AppliedAt.Format(time.RFC3339))
	}
	return w.Flush()
}

func runReset(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	engine := pgorm.NewMigrationEngine(db, entityTypes, pgorm.WithLogger(pgorm.NewStdLogger(os.Stdout, pgorm.InfoLevel)))
	if err := engine.Reset(context.Background()); err != nil {
		fmt.Println("FAIL reset aborted:", err)
		return err
	}
	fmt.Println("OK  reset complete")
	return nil
}
