package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"golang.org/x/time/rate"

	"github.com/redis/go-redis/v9"

	"goa.design/clue/log"

	"github.com/jojoalpha/agent-harness/internal/gateway"
	"github.com/jojoalpha/agent-harness/internal/graphql"
	"github.com/jojoalpha/agent-harness/internal/harnesserr"
	"github.com/jojoalpha/agent-harness/internal/odos"
	papertradingstate "github.com/jojoalpha/agent-harness/internal/papertrading"
	"github.com/jojoalpha/agent-harness/internal/policy"
	"github.com/jojoalpha/agent-harness/internal/provenance"
	"github.com/jojoalpha/agent-harness/internal/rpcdir"
	"github.com/jojoalpha/agent-harness/internal/runner"
	"github.com/jojoalpha/agent-harness/internal/runnerconfig"
	"github.com/jojoalpha/agent-harness/internal/subgraphconfig"
	"github.com/jojoalpha/agent-harness/internal/tools/dexswap"
	papertradingtool "github.com/jojoalpha/agent-harness/internal/tools/papertrading"
	"github.com/jojoalpha/agent-harness/internal/tools/subgraph"
	"github.com/jojoalpha/agent-harness/internal/tools/walletbalance"
	"github.com/jojoalpha/agent-harness/internal/tools/walletsigning"
	"github.com/jojoalpha/agent-harness/internal/wallet"
)

// idleBridge is the Bridge this binary drives today: the sandboxed script
// runtime (QuickJS/BAML) that would actually schedule agent turns is out of
// scope (spec.md §1), so the drive loop polls a bridge that has nothing to
// advance. A concrete embedding plugs a real Bridge into runner.AgentRunner
// in its place; the runner's lock-scoping around Bridge is exercised either
// way.
type idleBridge struct{}

func (idleBridge) PollEventLoop(ctx context.Context) error { return nil }

// runCommand builds the Agent Runner's pipeline and tool registry from the
// agent directory's policy.json/harness.yaml and the process environment,
// then drives the cooperative poll loop until the process is interrupted.
func runCommand(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	agentDir := fs.String("agent", "", "agent root directory")
	dryRun := fs.Bool("dry-run", false, "resolve and log configuration, never poll")
	paperTrading := fs.Bool("paper-trading", false, "register the paper_trading tool against an in-memory portfolio")
	initialBalance := fs.Float64("initial-balance", 10000, "paper portfolio seed value in USD")
	paperStateFile := fs.String("paper-state-file", "", "path to persist/restore the paper portfolio across runs")
	provenanceLog := fs.String("provenance-log", "", "path to fan provenance events out to as durable JSONL, in addition to the in-memory store (overrides harness.yaml)")
	redisAddr := fs.String("redis-addr", "", "Redis address backing the query_subgraph Graph Gateway cache (overrides harness.yaml)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *agentDir == "" {
		return harnesserr.New(harnesserr.InvalidArgument, "missing --agent")
	}

	cfg, err := runnerconfig.LoadYAMLOverrides(ctx, filepath.Join(*agentDir, "harness.yaml"), runnerconfig.Default())
	if err != nil {
		return err
	}
	if *provenanceLog != "" {
		cfg.ProvenanceLogPath = *provenanceLog
	}
	if *redisAddr != "" {
		cfg.RedisAddr = *redisAddr
	}
	log.Printf(ctx, "defi-harness: resolved QuickJS envelope %+v", runnerconfig.QuickJSConfigFromEnv(ctx))

	policyCfg, err := policy.Load(ctx, policy.LoaderOptions{
		Path:        filepath.Join(*agentDir, "policy.json"),
		RequireFile: cfg.Policy.RequireFile,
		Fallback:    cfg.Policy.DefaultMode,
	})
	if err != nil {
		return err
	}

	w, hasWallet := loadWallet(ctx, *dryRun)

	var portfolio *papertradingstate.Portfolio
	if *paperTrading {
		portfolio, err = loadOrCreatePortfolio(*paperStateFile, *initialBalance)
		if err != nil {
			return err
		}
	}

	memStore := provenance.NewMemoryStore()
	writer, closeWriter, err := buildProvenanceWriter(ctx, cfg.ProvenanceLogPath, memStore)
	if err != nil {
		return err
	}
	defer closeWriter()

	agentRunner := runner.New(cfg, *dryRun)
	if hasWallet {
		agentRunner = agentRunner.WithWallet(w)
	}
	if portfolio != nil {
		agentRunner = agentRunner.WithPaperTrading(portfolio)
	}

	if err := agentRunner.BuildPipeline(ctx, policyCfg, writer); err != nil {
		return err
	}
	registerTools(agentRunner.Dispatcher, w, hasWallet, portfolio, cfg.RedisAddr)

	runCtx, cancel := signalContext(ctx)
	defer cancel()

	runErr := agentRunner.Run(runCtx, idleBridge{})

	if portfolio != nil && *paperStateFile != "" {
		if err := savePortfolio(*paperStateFile, portfolio); err != nil {
			log.Printf(ctx, "defi-harness: failed to persist paper state to %s: %s", *paperStateFile, err)
		}
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}

// buildProvenanceWriter composes the production provenance.Writer: an
// in-memory store, fanned out to a durable JSONL file when logPath is set
// (C9's two-tier requirement). The returned close func flushes/closes the
// JSONL file, if one was opened; it is a no-op otherwise.
func buildProvenanceWriter(ctx context.Context, logPath string, memStore *provenance.MemoryStore) (provenance.Writer, func(), error) {
	if logPath == "" {
		return memStore, func() {}, nil
	}

	jsonlWriter, err := provenance.NewJSONLWriter(logPath)
	if err != nil {
		return nil, nil, err
	}
	log.Printf(ctx, "defi-harness: fanning provenance out to JSONL log path=%s", logPath)

	return provenance.NewFanoutWriter(memStore, jsonlWriter), func() {
		if err := jsonlWriter.Close(); err != nil {
			log.Printf(ctx, "defi-harness: failed to close provenance log %s: %s", logPath, err)
		}
	}, nil
}

func loadWallet(ctx context.Context, dryRun bool) (*wallet.Wallet, bool) {
	w, err := wallet.FromEnv("WALLET_PRIVATE_KEY", dryRun)
	if err != nil {
		log.Printf(ctx, "defi-harness: no wallet configured (%s); wallet-dependent tools are disabled", err)
		return nil, false
	}
	return w, true
}

func loadOrCreatePortfolio(stateFile string, initialBalance float64) (*papertradingstate.Portfolio, error) {
	if stateFile == "" {
		return papertradingstate.New(initialBalance), nil
	}
	data, err := os.ReadFile(stateFile)
	if err != nil {
		if os.IsNotExist(err) {
			return papertradingstate.New(initialBalance), nil
		}
		return nil, harnesserr.NewWithCause(harnesserr.Config, "failed to read paper state file", err)
	}
	portfolio := &papertradingstate.Portfolio{}
	if err := json.Unmarshal(data, portfolio); err != nil {
		return nil, err
	}
	return portfolio, nil
}

func savePortfolio(stateFile string, portfolio *papertradingstate.Portfolio) error {
	data, err := json.Marshal(portfolio)
	if err != nil {
		return err
	}
	return os.WriteFile(stateFile, data, 0o600)
}

// registerTools builds and registers the harness's concrete tool set.
// redisAddr, when non-empty, backs query_subgraph's Graph Gateway (C6.G)
// with a shared Redis cache tier alongside its in-process TTL cache.
func registerTools(d *runner.Dispatcher, w *wallet.Wallet, hasWallet bool, portfolio *papertradingstate.Portfolio, redisAddr string) {
	rpc := rpcdir.FromEnv()

	if key := envOrEmpty("GRAPH_API_KEY"); key != "" {
		endpoints := subgraphconfig.WithAPIKey(key)
		client := graphql.New("", http.DefaultClient, rate.NewLimiter(rate.Limit(5), 5))
		tool := subgraph.New(client, endpoints)
		if redisAddr != "" {
			gw := gateway.New(client).WithRedis(redis.NewClient(&redis.Options{Addr: redisAddr}))
			tool = tool.WithGateway(gw)
		}
		d.Register(tool)
	}

	odosClient := odos.New(nil, rate.NewLimiter(rate.Limit(5), 5))
	walletAddr := ""
	if hasWallet {
		walletAddr = w.AddressString()
	}
	d.Register(dexswap.New(odosClient, walletAddr))

	if hasWallet {
		d.Register(walletbalance.New(w.Address(), rpc))
		d.Register(walletsigning.NewDeriveAddressTool(w))
		d.Register(walletsigning.NewSignMessageTool(w))
		d.Register(walletsigning.NewSignTxTool(w))
	}

	if portfolio != nil {
		d.Register(papertradingtool.New(portfolio))
	}
}

// signalContext returns a context cancelled on SIGINT/SIGTERM, mirroring
// the teacher's interrupt-handler idiom in example/cmd/assistant/main.go.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigc:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
