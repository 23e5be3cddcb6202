package main

import (
	"database/sql"
	"fmt"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/hearth-app/backend/internal/migrations"
)

// Applies the embedded schema migrations. The server does this at startup
// too; this command exists for running them against a database out of band.
func main() {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		fmt.Println("DATABASE_URL not set")
		os.Exit(1)
	}

	command := "up"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	db, err := sql.Open("pgx", dbURL)
	if err != nil {
		fmt.Printf("Failed to open database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		fmt.Printf("Failed to set dialect: %v\n", err)
		os.Exit(1)
	}

	switch command {
	case "up":
		err = goose.Up(db, ".")
	case "down":
		err = goose.Down(db, ".")
	case "status":
		err = goose.Status(db, ".")
	default:
		fmt.Printf("Unknown command %q (want up, down, or status)\n", command)
		os.Exit(1)
	}
	if err != nil {
		fmt.Printf("Migration %s failed: %v\n", command, err)
		os.Exit(1)
	}
}
