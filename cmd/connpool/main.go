package main

import (
	"flag"
	"fmt"
	"os"

	pkgversion "github.com/pixelatedempathy/connpool/pkg/version"
)

// Build-time variables (set via -ldflags)
var (
	version   = ""        // Set via -ldflags "-X main.version=x.y.z"
	buildTime = "unknown" // Set via -ldflags "-X main.buildTime=..."
	gitCommit = "unknown" // Set via -ldflags "-X main.gitCommit=..."
)

func getVersion() string {
	if version != "" {
		return version
	}
	return pkgversion.String()
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "demo":
		demoCommand()
	case "bench":
		benchCommand()
	case "serve":
		serveCommand()
	case "example":
		exampleCommand()
	case "version":
		fmt.Printf("connpool version %s\n", getVersion())
		if buildTime != "unknown" {
			fmt.Printf("Built: %s\n", buildTime)
		}
		if gitCommit != "unknown" {
			fmt.Printf("Commit: %s\n", gitCommit)
		}
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`connpool - Connection Pool Demo, Benchmark & Observability Tool

USAGE:
    connpool <command> [options]

COMMANDS:
    demo      Run a self-contained pool demo over an in-memory backend
    bench     Run acquire and throughput benchmarks
    serve     Start the observability server over a config-built manager
    example   Show example usage with explanations
    version   Print version information
    help      Show this help message

Run 'connpool <command> --help' for more information on a command.

EXAMPLES:
    # Run the demo with defaults (2 pools, 8 workers, 5s)
    connpool demo

    # Demo with outage injection visible in verbose output
    connpool demo --pools 3 --workers 16 --duration 10s --verbose

    # Benchmark 100000 acquire/release round trips
    connpool bench --acquires 100000

    # Benchmark execute throughput for 30 seconds
    connpool bench --throughput --workers 16 --duration 30s

    # Serve /metrics, /health and /stats for the pools in connpool.toml
    connpool serve --config connpool.toml

PROJECT:
    connpool - generic bounded resource-connection pooling
    https://github.com/pixelatedempathy/connpool`)
}

func demoCommand() {
	fs := flag.NewFlagSet("demo", flag.ExitOnError)
	pools := fs.Int("pools", 2, "Number of pools to create")
	workers := fs.Int("workers", 8, "Concurrent workers per pool")
	duration := fs.String("duration", "5s", "How long to run the workload (e.g., 5s, 1m)")
	verbose := fs.Bool("verbose", false, "Verbose output")
	obsAddr := fs.String("obs-addr", ":9090", "Observability server address. Empty disables")
	logLevel := fs.String("log-level", "warn", "Log level: debug, info, warn, error, silent")
	logFormat := fs.String("log-format", "text", "Log format: text or json")
	tracing := fs.String("tracing", "none", "Tracing mode: none, simple, otel (requires -tags otel)")

	fs.Usage = func() {
		fmt.Println(`USAGE: connpool demo [options]

Run a self-contained demo: named pools over an in-memory backend, a worker
swarm executing operations through them, a mid-run backend outage to show
the health sweep recovering, and an observability server.

OPTIONS:`)
		fs.PrintDefaults()
		fmt.Println(`
EXAMPLES:
    # Default run
    connpool demo

    # Watch the sweep replenish after the outage
    connpool demo --duration 10s --verbose --log-level info

    # Scrape metrics while it runs
    connpool demo --duration 1m --obs-addr :9090
    curl localhost:9090/metrics`)
	}

	_ = fs.Parse(os.Args[2:])

	runDemo(*pools, *workers, *duration, *verbose, *obsAddr, *logLevel, *logFormat, *tracing)
}

func benchCommand() {
	fs := flag.NewFlagSet("bench", flag.ExitOnError)
	acquires := fs.Int("acquires", 0, "Number of acquire/release round trips to benchmark (0 = skip)")
	throughput := fs.Bool("throughput", false, "Run execute throughput benchmark")
	workers := fs.Int("workers", 8, "Concurrent workers for the throughput benchmark")
	duration := fs.String("duration", "10s", "Duration for the throughput benchmark (e.g., 10s, 1m)")
	maxConns := fs.Int("max-conns", 10, "Pool MaxConnections for both benchmarks")

	fs.Usage = func() {
		fmt.Println(`USAGE: connpool bench [options]

Run performance benchmarks for connection acquisition and operation
throughput against an in-memory backend.

OPTIONS:`)
		fs.PrintDefaults()
		fmt.Println(`
EXAMPLES:
    # Benchmark 100000 acquires
    connpool bench --acquires 100000

    # Benchmark throughput for 30 seconds with 16 workers
    connpool bench --throughput --workers 16 --duration 30s

    # Run both against a larger pool
    connpool bench --acquires 100000 --throughput --max-conns 50`)
	}

	_ = fs.Parse(os.Args[2:])

	runBench(*acquires, *throughput, *workers, *duration, *maxConns)
}

func serveCommand() {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "connpool.toml", "Path to the TOML or YAML configuration file")
	listen := fs.String("listen", "", "Listen address override (defaults to server.listen from the config)")

	fs.Usage = func() {
		fmt.Println(`USAGE: connpool serve [options]

Build a manager from a configuration file (one pool per [pools.<name>]
section) and serve /metrics, /health, /healthz, /readyz and /stats over it.

OPTIONS:`)
		fs.PrintDefaults()
		fmt.Println(`
EXAMPLES:
    # Serve the pools described in connpool.toml
    connpool serve --config connpool.toml

    # Same config, different port
    connpool serve --config connpool.toml --listen :9187`)
	}

	_ = fs.Parse(os.Args[2:])

	runServe(*configPath, *listen)
}

func exampleCommand() {
	if len(os.Args) > 2 && (os.Args[2] == "--help" || os.Args[2] == "-h") {
		fmt.Println(`USAGE: connpool example

Display examples with code snippets showing how to use the library.

This command shows:
  - Basic pool setup over a real backend
  - Execute with retries
  - Manager usage across several pools
  - Config-file driven assembly
  - Error handling
  - Observability wiring`)
		return
	}

	showExamples()
}
