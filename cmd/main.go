package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/drpcorg/stree"
	"github.com/drpcorg/stree/classes"
	"github.com/drpcorg/stree/repl"
	"github.com/drpcorg/stree/utils"
)

func main() {
	schema := flag.String("classes", "", "YAML file with the class definitions")
	root := flag.String("root", "", "class of the root state")
	history := flag.String("history", ".stree_cmd_log.txt", "readline history file")
	debug := flag.Bool("debug", false, "log encoder and decoder details")
	flag.Parse()
	if *schema == "" || *root == "" {
		_, _ = fmt.Fprintln(os.Stderr, "Usage: stree -classes schema.yaml -root State")
		os.Exit(-2)
	}

	level := slog.LevelWarn
	if *debug {
		level = slog.LevelDebug
	}
	opts := stree.Options{Logger: utils.NewDefaultLogger(level)}

	registry := classes.NewRegistry()
	f, err := os.Open(*schema)
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(-1)
	}
	_, err = classes.LoadYAML(registry, f)
	_ = f.Close()
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(-1)
	}
	class := registry.ByName(*root)
	if class == nil {
		_, _ = fmt.Fprintf(os.Stderr, "no class %s\n", *root)
		os.Exit(-1)
	}

	r, err := repl.New(registry, class, opts, os.Stdout)
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(-1)
	}
	err = r.Open(*history)
	if err == nil {
		err = r.Run()
	}
	_ = r.Close()
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(-1)
	}
}
