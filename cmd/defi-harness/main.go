// Command defi-harness is the CLI entrypoint for the DeFi agent execution
// harness: it drives the Agent Runner's cooperative poll loop (run), and
// exposes one-shot invocations of the underlying tools for operators and
// scripts (query, quote, simulate, price), a config subcommand that prints
// the fully resolved runtime configuration, and a telemetry subcommand that
// aggregates a durable provenance log into a Telemetry Snapshot. Subcommand
// dispatch and
// logging setup follow the teacher's example/cmd/assistant/main.go idiom
// (flag.FlagSet per command, goa.design/clue/log for structured output).
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"goa.design/clue/log"

	"github.com/jojoalpha/agent-harness/internal/runnerconfig"
)

// envOrEmpty returns the named environment variable's value, or "" if unset.
func envOrEmpty(name string) string {
	return os.Getenv(name)
}

func main() {
	format := log.FormatJSON
	if log.IsTerminal() {
		format = log.FormatTerminal
	}
	ctx := log.Context(context.Background(), log.WithFormat(format))

	runnerconfig.LoadDotEnv(ctx)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "run":
		err = runCommand(ctx, os.Args[2:])
	case "query":
		err = queryCommand(ctx, os.Args[2:])
	case "quote":
		err = quoteCommand(ctx, os.Args[2:])
	case "simulate":
		err = simulateCommand(ctx, os.Args[2:])
	case "price":
		err = priceCommand(ctx, os.Args[2:])
	case "config":
		err = configCommand(ctx, os.Args[2:])
	case "telemetry":
		err = telemetryCommand(ctx, os.Args[2:])
	case "-h", "--help", "help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "defi-harness: unknown command %q\n", os.Args[1])
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "defi-harness:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: defi-harness <command> [flags]

commands:
  run       --agent <dir> [--dry-run] [--paper-trading] [--initial-balance <f64>] [--paper-state-file <path>]
            [--provenance-log <path>] [--redis-addr <host:port>]
  query     --protocol <p> --network <n> --query_type <t> [--params <json>]
  quote     --input <addr> --output <addr> --amount <wei> [--network <n>]
  simulate  --to <addr> --data <hex> [--from <addr>] [--value <wei>] [--network <n>]
  price     --token <addr[,addr...]> [--network <n>]
  config
  telemetry --provenance-log <path> [--agent <dir>] [--cost-file <path>]`)
}

// printJSON writes v to stdout as indented JSON, used by every one-shot
// subcommand to render a tool's result.
func printJSON(v any) error {
	var raw json.RawMessage
	switch t := v.(type) {
	case json.RawMessage:
		raw = t
	case []byte:
		raw = t
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return err
		}
		raw = encoded
	}

	var pretty interface{}
	if err := json.Unmarshal(raw, &pretty); err != nil {
		return err
	}
	encoded, err := json.MarshalIndent(pretty, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(encoded))
	return nil
}
