package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/ledgerline/payroll-compliance-backend/migrations"
)

func main() {
	down := flag.Bool("down", false, "roll back one migration instead of migrating up")
	flag.Parse()

	url := os.Getenv("PCB_DATABASE_URL")
	if url == "" {
		fmt.Fprintln(os.Stderr, "PCB_DATABASE_URL is required")
		os.Exit(1)
	}

	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading migrations: %v\n", err)
		os.Exit(1)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, url)
	if err != nil {
		fmt.Fprintf(os.Stderr, "opening migrations: %v\n", err)
		os.Exit(1)
	}
	defer m.Close()

	if *down {
		err = m.Steps(-1)
	} else {
		err = m.Up()
	}
	if err != nil && err != migrate.ErrNoChange {
		fmt.Fprintf(os.Stderr, "migration failed: %v\n", err)
		os.Exit(1)
	}

	version, dirty, verr := m.Version()
	if verr != nil && verr != migrate.ErrNilVersion {
		fmt.Fprintf(os.Stderr, "reading version: %v\n", verr)
		os.Exit(1)
	}
	fmt.Printf("schema version %d (dirty=%v)\n", version, dirty)
}
