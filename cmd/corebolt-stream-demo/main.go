// Command corebolt-stream-demo runs one or more statements against a
// server and prints their records, demonstrating driver.Driver,
// stream.ResultStream, and concurrent fan-out via driver.RunMany.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/vanshika/corebolt/driver"
	"github.com/vanshika/corebolt/internal/config"
	"github.com/vanshika/corebolt/internal/logging"
	"github.com/vanshika/corebolt/stream"
	"github.com/vanshika/corebolt/tofu"
)

func main() {
	var (
		configFile  = flag.String("config", "", "Optional YAML config file layered over environment variables")
		concurrency = flag.Int("concurrency", 4, "Maximum statements in flight at once")
	)
	flag.Parse()

	statements := flag.Args()
	if len(statements) == 0 {
		statements = []string{"RETURN 1 AS n"}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *configFile != "" {
		cfg, err = config.LoadFile(*configFile, cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to load config file: %v\n", err)
			os.Exit(1)
		}
	}

	logger := logging.New(cfg.Logging).With("component", "corebolt-stream-demo")

	ctx := context.Background()
	d, err := driver.Open(ctx, cfg, driver.WithLogger(logger), driver.WithVerifier(tofu.StaticVerifier(tofu.AcceptOnce)))
	if err != nil {
		logger.Error("opening driver failed", "error", err)
		os.Exit(1)
	}
	defer d.Close(ctx)

	stmts := make([]driver.Statement, len(statements))
	for i, cypher := range statements {
		stmts[i] = driver.Statement{Cypher: cypher}
	}

	results := driver.RunMany(ctx, d, driver.AccessModeRead, stmts, *concurrency)
	for _, result := range results {
		fmt.Printf("--- statement %d: %s ---\n", result.Index, statements[result.Index])
		if result.Err != nil {
			fmt.Printf("failed to run: %v\n", result.Err)
			continue
		}
		printStream(ctx, result.Stream)
	}
}

func printStream(ctx context.Context, s stream.ResultStream) {
	defer s.Close()

	n, err := s.NFields(ctx)
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}

	names := make([]string, n)
	for i := range names {
		name, err := s.FieldName(ctx, i)
		if err != nil {
			fmt.Printf("error: %v\n", err)
			return
		}
		names[i] = name
	}
	fmt.Println(strings.Join(names, "\t"))

	for {
		rec, err := s.FetchNext(ctx)
		if err != nil {
			fmt.Printf("error: %v\n", err)
			return
		}
		if rec == nil {
			return
		}
		fields := make([]string, rec.Len())
		for i := range fields {
			fields[i] = fmt.Sprintf("%v", rec.Field(i))
		}
		fmt.Println(strings.Join(fields, "\t"))
	}
}
