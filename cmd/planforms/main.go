// Entry point of the form engine. Opens the database, migrates the models
// and starts the HTTP server.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	planforms "github.com/planealo/planforms/internal/planforms"
	"github.com/planealo/planforms/internal/planforms/config"
	"github.com/planealo/planforms/internal/planforms/dao"
	"github.com/planealo/planforms/internal/planforms/gormlogger"
)

var version string = "DEV"

var models = []any{&dao.Form{}, &dao.FormField{}, &dao.Submission{}, &dao.FileAsset{}}

func main() {
	paramQueries := flag.Bool("paramQueries", true, "Mask queries params in log")
	noMigration := flag.Bool("noMigration", false, "Turn off DB migration")
	trace := flag.Bool("trace", false, "Verbose logs and sql trace")
	flag.Parse()

	PrintBanner()

	cfg := config.ReadConfig()
	dao.Config = cfg

	if *trace {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	}

	// Set prod log format
	if version != "DEV" {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{})))
	}

	slog.Info("PlanForms start.")

	db, err := gorm.Open(openDialector(cfg.DatabaseDSN), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.NewGormLogger(slog.Default(), time.Second*4, *paramQueries),
	})
	if err != nil {
		slog.Error("Fail init DB connection", "err", err)
		os.Exit(1)
	}

	sqlDB, err := db.DB()
	if err != nil {
		slog.Error("Fail set settings to conn pool", "err", err)
		os.Exit(1)
	}
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetMaxIdleConns(50)
	sqlDB.SetConnMaxLifetime(time.Hour)
	sqlDB.SetConnMaxIdleTime(time.Minute * 15)

	if !*noMigration {
		slog.Info("Migrate models")
		if err := db.AutoMigrate(models...); err != nil {
			slog.Error("Migration fail", "err", err)
			os.Exit(1)
		}
	}

	planforms.Server(db, cfg, version)
}

// openDialector picks the driver by DSN shape: postgres for connection
// strings, sqlite for everything else.
func openDialector(dsn string) gorm.Dialector {
	if strings.HasPrefix(dsn, "postgres://") || strings.Contains(dsn, "host=") {
		return postgres.New(postgres.Config{
			DSN:                  dsn,
			PreferSimpleProtocol: false, // disables implicit prepared statement usage
		})
	}
	return sqlite.Open(dsn)
}

func PrintBanner() {
	banner := `
 _____  _             ______
|  __ \| |           |  ____|
| |__) | | __ _ _ __ | |__ ___  _ __ _ __ ___  ___
|  ___/| |/ _  | '_ \|  __/ _ \| '__| '_ ' _ \/ __|
| |    | | (_| | | | | | | (_) | |  | | | | | \__ \
|_|    |_|\__,_|_| |_|_|  \___/|_|  |_| |_| |_|___/ %s
Dynamic form builder and submission engine
%s
----------------------------------------------------
`
	colorReset := "\033[0m"

	colorYellow := "\033[33m"
	colorBlue := "\033[34m"

	formattedVersion := version
	if version == "DEV" {
		formattedVersion = colorYellow + version + colorReset
	}

	fmt.Printf(banner, formattedVersion, colorBlue+"https://planealo.mx"+colorReset)
}
