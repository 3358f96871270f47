package main

import (
	"context"
	"os"

	"github.com/charmbracelet/fang"

	"geosnap/cmd"
)

const version = "0.1.0"

func main() {
	root := cmd.NewRootCmd()

	// Interrupts cancel the command context, which stops extraction and
	// report generation at their next checkpoint.
	if err := fang.Execute(
		context.Background(),
		root,
		fang.WithVersion(version),
		fang.WithNotifySignal(os.Interrupt, os.Kill),
	); err != nil {
		os.Exit(1)
	}
}
