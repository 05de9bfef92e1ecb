package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	_ "time/tzdata"
)

func main() {
	app := &cli.App{
		Name:        "ebus",
		Usage:       "campus e-bus management server",
		Description: "Schedules shifts, books seats and tracks buses in real time",
		Commands: []*cli.Command{
			serveCommand(),
			migrateCommand(),
			purgeGPSCommand(),
			createAdminCommand(),
		},
		DefaultCommand: "serve",
	}

	if err := app.Run(os.Args); err != nil {
		logrus.WithError(err).Fatal("ebus exited with error")
	}
}
