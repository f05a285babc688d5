// SPDX-License-Identifier: MIT

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ManuGH/dsns/internal/config"
	"github.com/ManuGH/dsns/internal/version"
	"gopkg.in/yaml.v3"
)

const configUsage = `Usage:
  daemon config validate [--file|-f config.yaml]
  daemon config dump [--file|-f config.yaml] [--format=yaml|json]
`

func runConfigCLI(args []string) int {
	return configCLI(args, os.Stdout, os.Stderr)
}

func configCLI(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		args = []string{"help"}
	}
	switch args[0] {
	case "validate":
		return runConfigValidate(args[1:], stdout, stderr)
	case "dump":
		return runConfigDump(args[1:], stdout, stderr)
	case "help", "-h", "--help":
		fmt.Fprint(stderr, configUsage)
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown subcommand: %s\n\n%s", args[0], configUsage)
		return 2
	}
}

// configFlags is the --file/-f pair shared by the config subcommands. The
// path falls back to DSNS_CONFIG.
func configFlags(name string, stderr io.Writer) (*flag.FlagSet, *string) {
	fs := flag.NewFlagSet("daemon config "+name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	file := new(string)
	fs.StringVar(file, "file", "", "path to YAML configuration file")
	fs.StringVar(file, "f", "", "path to YAML configuration file (shorthand)")
	return fs, file
}

func resolvedPath(file string) string {
	if p := strings.TrimSpace(file); p != "" {
		return p
	}
	return strings.TrimSpace(os.Getenv(config.EnvPrefix + "CONFIG"))
}

func loadForCLI(path string, stderr io.Writer) (config.AppConfig, bool) {
	cfg, err := config.NewLoader(path, version.Version).Load()
	if err != nil {
		fmt.Fprintf(stderr, "Configuration error in %s:\n  %v\n", path, err)
		return cfg, false
	}
	return cfg, true
}

func runConfigValidate(args []string, stdout, stderr io.Writer) int {
	fs, file := configFlags("validate", stderr)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	path := resolvedPath(*file)
	if path == "" {
		fmt.Fprintf(stderr, "Error: --file is required (%sCONFIG is not set)\n", config.EnvPrefix)
		return 2
	}
	if _, ok := loadForCLI(path, stderr); !ok {
		return 1
	}
	fmt.Fprintf(stdout, "✓ %s is valid\n", path)
	return 0
}

var dumpEncoders = map[string]func(io.Writer, any) error{
	"yaml": encodeYAML,
	"yml":  encodeYAML,
	"json": func(w io.Writer, v any) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	},
}

func encodeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

// runConfigDump prints the effective configuration: defaults, then the
// file if any, then the environment. Secrets are masked.
func runConfigDump(args []string, stdout, stderr io.Writer) int {
	fs, file := configFlags("dump", stderr)
	format := fs.String("format", "yaml", "output format: yaml or json")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	encode, ok := dumpEncoders[strings.ToLower(strings.TrimSpace(*format))]
	if !ok {
		fmt.Fprintf(stderr, "Unsupported format: %s (use yaml or json)\n", *format)
		return 2
	}

	path := resolvedPath(*file)
	cfg, ok := loadForCLI(path, stderr)
	if !ok {
		return 1
	}
	if cfg.Cache.RedisPassword != "" {
		cfg.Cache.RedisPassword = "***"
	}
	if err := encode(stdout, cfg); err != nil {
		fmt.Fprintf(stderr, "Failed to encode %s: %v\n", *format, err)
		return 1
	}
	return 0
}
