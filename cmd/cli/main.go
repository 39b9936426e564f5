package main

import (
	"fmt"
	"os"

	"github.com/crucial707/irrigation/cmd/cli/irrigation"
	"github.com/crucial707/irrigation/cmd/cli/root"
)

func main() {
	rootCmd := root.GetRoot()
	irrigation.Init(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
