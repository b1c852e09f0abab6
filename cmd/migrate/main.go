package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/veritest/veritest-backend/internal/config"
)

func main() {
	var dir string
	flag.StringVar(&dir, "path", "migrations", "Path to migration files")
	flag.Parse()

	cfg := config.Load()
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	m, err := migrate.New(fmt.Sprintf("file://%s", dir), cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("migrate init: %v", err)
	}

	args := flag.Args()
	if len(args) < 1 {
		usage()
		return
	}

	switch args[0] {
	case "up":
		run(m.Up(), "migrated up")
	case "down":
		run(m.Down(), "migrated down")
	case "version":
		v, dirty, err := m.Version()
		if err != nil {
			log.Fatalf("version: %v", err)
		}
		fmt.Printf("version %d, dirty %t\n", v, dirty)
	case "force":
		if len(args) < 2 {
			log.Fatal("force requires a version argument")
		}
		v, err := strconv.Atoi(args[1])
		if err != nil {
			log.Fatalf("invalid version: %v", err)
		}
		run(m.Force(v), fmt.Sprintf("forced version to %d", v))
	default:
		usage()
	}
}

func run(err error, ok string) {
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		log.Fatalf("migration: %v", err)
	}
	fmt.Println(ok)
}

func usage() {
	fmt.Println("Usage: migrate [flags] <command>")
	fmt.Println("Commands: up, down, version, force <version>")
	flag.PrintDefaults()
}
