package main

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"

	appmigrations "github.com/wolfman30/dental-booking-dashboard/migrations"
	"github.com/wolfman30/dental-booking-dashboard/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	logger := logging.New(os.Getenv("LOG_LEVEL")).Component("migrate")

	fatal := func(msg string, err error) {
		logger.Error(msg, "error", err)
		os.Exit(1)
	}

	databaseURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if databaseURL == "" {
		fatal("DATABASE_URL is required", nil)
	}

	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		fatal("open db", err)
	}
	defer func() { _ = db.Close() }()

	if err := db.Ping(); err != nil {
		fatal("ping db", err)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		fatal("db driver", err)
	}

	srcDriver, err := iofs.New(appmigrations.FS, ".")
	if err != nil {
		fatal("source driver", err)
	}

	m, err := migrate.NewWithInstance("iofs", srcDriver, "postgres", dbDriver)
	if err != nil {
		fatal("create migrator", err)
	}
	defer func() { _, _ = m.Close() }()

	// migrate force <version> | migrate down [steps] | migrate
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "force":
			if len(os.Args) < 3 {
				fatal("force needs a version", nil)
			}
			version, err := strconv.Atoi(os.Args[2])
			if err != nil {
				fatal("invalid version", err)
			}
			if err := m.Force(version); err != nil {
				fatal("force version", err)
			}
			fmt.Printf("forced version to %d\n", version)
			return
		case "down":
			steps := 1
			if len(os.Args) >= 3 {
				if steps, err = strconv.Atoi(os.Args[2]); err != nil || steps <= 0 {
					fatal("invalid step count", err)
				}
			}
			if err := m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
				fatal("migrate down", err)
			}
			fmt.Printf("rolled back %d migration(s)\n", steps)
			return
		}
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		fatal("migrate up", err)
	}

	fmt.Println("migrations complete")
}
