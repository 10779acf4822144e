package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/sevigo/code-atlas/internal/runner"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		var lockErr *runner.LockError
		if errors.As(err, &lockErr) {
			fmt.Fprintln(os.Stderr, lockErr.Error())
			os.Exit(2)
		}
		slog.Error("atlas failed", "error", err)
		os.Exit(1)
	}
}
