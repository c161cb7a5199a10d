package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/raine/fittingap/internal/bot"
	"github.com/raine/fittingap/internal/camera"
	"github.com/raine/fittingap/internal/camera/opencv"
	"github.com/raine/fittingap/internal/cli"
)

const logFileName = "fittingap.log"

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	// JOURNAL_STREAM is set by systemd when running as a service.
	// Skip file logging under systemd (journald handles it, and ProtectSystem=strict
	// makes the working directory read-only).
	if _, underSystemd := os.LookupEnv("JOURNAL_STREAM"); underSystemd {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		// Local runs: log to both stderr and file
		logFile, err := os.OpenFile(logFileName, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open log file: %v\n", err)
			os.Exit(1)
		}
		defer logFile.Close()

		consoleWriter := zerolog.ConsoleWriter{Out: os.Stderr}
		fileWriter := zerolog.ConsoleWriter{Out: logFile, NoColor: true}
		multiWriter := io.MultiWriter(consoleWriter, fileWriter)
		log.Logger = log.Output(multiWriter)
	}

	root := cli.NewRootCmd(cli.Options{
		CameraDevice: func(id string) camera.Device {
			return opencv.Device{ID: id}
		},
	})

	if err := fang.Execute(
		context.Background(),
		root,
		fang.WithVersion(bot.Version),
		fang.WithNotifySignal(os.Interrupt, os.Kill),
	); err != nil {
		os.Exit(1)
	}
}
