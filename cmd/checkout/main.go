package main

import (
	"os"
)

func main() {
	ctx, stop := signalContext()
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
