// Command migrate manages the penfeed schema.
//
//	migrate up            apply pending SQL migrations
//	migrate auto          run GORM AutoMigrate regardless of DB_SCHEMA_MODE
//	migrate status        print the schema plan, pending migrations and blog tables
//	migrate down VERSION  roll back one SQL migration
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"penfeed/internal/config"
	"penfeed/internal/database"

	"gorm.io/gorm"
)

type command struct {
	args int
	run  func(ctx context.Context, db *gorm.DB, cfg *config.Config, args []string) error
}

var commands = map[string]command{
	"up":     {run: migrateUp},
	"auto":   {run: migrateAuto},
	"status": {run: printStatus},
	"down":   {args: 1, run: migrateDown},
}

func usage() error {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return fmt.Errorf("usage: migrate <%s> [version]", strings.Join(names, "|"))
}

func main() {
	flag.Parse()
	if err := run(context.Background(), flag.Args()); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usage()
	}
	cmd, ok := commands[strings.ToLower(args[0])]
	if !ok || len(args)-1 < cmd.args {
		return usage()
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	db, err := database.ConnectWithOptions(cfg, database.ConnectOptions{})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer func() { _ = database.Close(db) }()

	return cmd.run(ctx, db, cfg, args[1:])
}

func migrateUp(ctx context.Context, db *gorm.DB, _ *config.Config, _ []string) error {
	if err := database.RunMigrations(ctx, db); err != nil {
		return err
	}
	log.Println("sql migrations applied")
	return nil
}

func migrateAuto(ctx context.Context, db *gorm.DB, cfg *config.Config, _ []string) error {
	cfg.DBSchemaMode = string(database.SchemaModeAuto)
	if err := database.ApplySchema(ctx, db, cfg); err != nil {
		return err
	}
	log.Println("models synced")
	return nil
}

func migrateDown(ctx context.Context, db *gorm.DB, _ *config.Config, args []string) error {
	version, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("version %q is not a number", args[0])
	}
	if err := database.RollbackMigration(ctx, db, version); err != nil {
		return err
	}
	log.Printf("rolled back migration %d", version)
	return nil
}

func printStatus(ctx context.Context, db *gorm.DB, cfg *config.Config, _ []string) error {
	status, err := database.GetSchemaStatus(ctx, db, cfg)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "mode\t%s\nenv\t%s\nsql migrations\t%t\nautomigrate\t%t\n",
		status.Plan.Mode, status.Plan.Env, status.Plan.SQL, status.Plan.AutoMigrate)
	if status.Plan.SQL {
		fmt.Fprintf(w, "applied\t%d\n", len(status.Applied))
		for _, m := range status.Pending {
			fmt.Fprintf(w, "pending\t%s\n", m)
		}
	}
	fmt.Fprintln(w, "\ntable\trows")
	for _, t := range status.Tables {
		rows := "missing"
		if t.Present {
			rows = strconv.FormatInt(t.Rows, 10)
		}
		fmt.Fprintf(w, "%s\t%s\n", t.Table, rows)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if missing := status.Missing(); len(missing) > 0 {
		return errors.New("blog tables missing: " + strings.Join(missing, ", "))
	}
	return nil
}
