package main

import (
	"flag"
	"log"
)

// args holds the command-line flags this binary accepts. Full CLI argument
// handling (daemonization, PID files, and the like) is explicitly out of
// scope (spec.md Non-goals); this is the minimal entrypoint the core server
// needs to be runnable.
type args struct {
	configFile string
}

func getArgs() args {
	configFile := flag.String("conf", "", "Path to the configuration file.")
	flag.Parse()
	return args{configFile: *configFile}
}

func main() {
	log.SetFlags(0)

	a := getArgs()

	cfg, err := loadConfig(a.configFile)
	if err != nil {
		log.Fatalf("unable to load configuration: %s", err)
	}

	s, err := NewServer(cfg)
	if err != nil {
		log.Fatalf("unable to create server: %s", err)
	}

	if err := s.Serve(); err != nil {
		log.Fatalf("%s", err)
	}
}
