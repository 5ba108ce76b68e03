package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/danielmmetz/hn-reader/cli"
)

func main() {
	root := cli.New(os.Stdout, os.Stderr)
	if err := root.ParseAndRun(context.Background(), os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "hnreader: %v\n", err)
		os.Exit(1)
	}
}
