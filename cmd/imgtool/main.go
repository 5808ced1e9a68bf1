package main

import (
	"fmt"
	"os"

	"github.com/harliandi/go-convert/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "imgtool:", err)
		os.Exit(1)
	}
}
