package main

import (
	"flag"
	"fmt"
	"os"

	"libsurgeon/internal/config"
)

func cmdInit(args []string) error {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	dir := fs.String("dir", ".", "directory to write "+config.FileName+" into")
	if err := fs.Parse(args); err != nil {
		return err
	}
	path, err := config.SaveDefault(*dir)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "wrote %s\n", path)
	return nil
}
