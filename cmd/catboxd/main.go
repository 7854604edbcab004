// Command catboxd runs a single-process IRC server.
package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/summercat/catboxd/internal/catbox"
)

func main() {
	log.SetFlags(0)

	cfg, err := parseArgs(os.Args[1:])
	if err != nil {
		printUsage(err)
		os.Exit(1)
	}

	server := catbox.NewServer(cfg)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		log.Printf("shutting down")
		server.Shutdown()
	}()

	if err := server.Start(); err != nil {
		log.Printf("%s", err)
		os.Exit(1)
	}

	log.Printf("server shutdown cleanly")
}

// parseArgs validates the mandatory `<port> <password>` positional
// arguments and an optional trailing tuning-file path.
func parseArgs(args []string) (catbox.Config, error) {
	if len(args) < 2 || len(args) > 3 {
		return catbox.Config{}, fmt.Errorf("expected 2 or 3 arguments, got %d", len(args))
	}

	port, err := strconv.Atoi(args[0])
	if err != nil || port < 1 || port > 65535 {
		return catbox.Config{}, fmt.Errorf("invalid port: %s", args[0])
	}

	password := args[1]
	if password == "" {
		return catbox.Config{}, fmt.Errorf("password may not be blank")
	}

	cfg := catbox.DefaultConfig(port, password)

	if len(args) == 3 {
		if err := catbox.LoadTuning(args[2], &cfg); err != nil {
			return catbox.Config{}, err
		}
	}

	return cfg, nil
}

func printUsage(err error) {
	fmt.Fprintf(os.Stderr, "catboxd: %s\n", err)
	fmt.Fprintf(os.Stderr, "usage: catboxd <port> <password> [tuning-file]\n")
}
