package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/ecoscope/ecoscope/internal/app"
	"github.com/ecoscope/ecoscope/internal/platform/migrate"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintln(flag.CommandLine.Output(), "usage: migrate [up|down]")
	}
	flag.Parse()

	direction := "up"
	if flag.NArg() > 0 {
		direction = flag.Arg(0)
	}

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	switch direction {
	case "up":
		err = migrate.Up(cfg.PGDSN)
	case "down":
		err = migrate.Down(cfg.PGDSN)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		logger.Error("migrate", slog.String("direction", direction), slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("migrations applied", slog.String("direction", direction))
}
