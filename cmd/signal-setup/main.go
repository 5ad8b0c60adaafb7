package main

import (
	"context"
	"fmt"
	"os"

	"github.com/Iron-Ham/signal-setup/internal/cmd"
	"github.com/Iron-Ham/signal-setup/internal/errors"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		if errors.Is(err, errors.ErrAborted) || errors.Is(err, errors.ErrCanceled) || errors.Is(err, context.Canceled) {
			os.Exit(130)
		}
		os.Exit(1)
	}
}
