package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/amm-trade-engine/internal/app"
	"github.com/aman-zulfiqar/amm-trade-engine/internal/command"
	"github.com/aman-zulfiqar/amm-trade-engine/internal/config"
)

type assistant struct {
	rt      *app.Runtime
	parser  *command.Parser
	analyst *command.Analyst
}

func main() {
	queryFlag := flag.String("q", "", "Run a single instruction and exit")
	modelFlag := flag.String("model", command.DefaultModel, "OpenRouter model name")
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	logger.SetLevel(logrus.WarnLevel)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("invalid configuration")
	}
	if cfg.OpenRouterAPIKey == "" {
		logger.Fatal("OPENROUTER_API_KEY is required for the assistant. Please set it in your environment or config.")
	}
	cfg.OpenRouterModel = *modelFlag

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nShutting down assistant...")
		cancel()
	}()

	rt, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to build runtime")
	}
	defer rt.Close(context.Background())

	parser, err := rt.NewParser()
	if err != nil {
		logger.WithError(err).Fatal("failed to create command parser")
	}
	a := &assistant{rt: rt, parser: parser}

	if cfg.ClickHouseEnabled() {
		an, err := command.NewAnalyst(ctx, parser, command.AnalystConfig{
			ClickHouseAddr:     cfg.ClickHouseAddr,
			ClickHouseDatabase: cfg.ClickHouseDatabase,
			ClickHouseUsername: cfg.ClickHouseUsername,
			ClickHousePassword: cfg.ClickHousePassword,
			Logger:             logger,
		})
		if err != nil {
			logger.WithError(err).Warn("trade history questions disabled")
		} else {
			a.analyst = an
			defer an.Close()
		}
	}

	if *queryFlag != "" {
		if err := a.handle(ctx, *queryFlag); err != nil {
			logger.WithError(err).Fatal("instruction failed")
		}
		return
	}

	a.repl(ctx)
}

func (a *assistant) repl(ctx context.Context) {
	fmt.Println("AMM trade assistant")
	fmt.Println(`Describe a trade ("buy 10 USD with 1% slippage") to get an estimate,`)
	fmt.Println(`or prefix with "ask" to query trade history. Empty line to exit.`)
	fmt.Println()

	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Print("> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			fmt.Println("error reading input:", err)
			return
		}
		line = strings.TrimSpace(line)
		if line == "" {
			fmt.Println("bye")
			return
		}

		// Short cooldown to avoid hammering the LLM if user spams enter.
		time.Sleep(200 * time.Millisecond)

		if err := a.handle(ctx, line); err != nil {
			fmt.Println("error:", err)
		}
		fmt.Println()
	}
}

func (a *assistant) handle(ctx context.Context, line string) error {
	if q, ok := strings.CutPrefix(line, "ask "); ok {
		if a.analyst == nil {
			return fmt.Errorf("trade history is not configured (set CLICKHOUSE_ADDR)")
		}
		res, err := a.analyst.Ask(ctx, q)
		if err != nil {
			return err
		}
		fmt.Printf("SQL:\n%s\n\nAnswer:\n%s\n", res.SQL, res.Answer)
		return nil
	}

	cmd, err := a.parser.Parse(ctx, line, a.rt.Registry.Symbols())
	if err != nil {
		return err
	}
	account := ""
	if a.rt.Signer != nil {
		account = a.rt.Signer.Account()
	}
	req, err := a.rt.Mapper.ToTradeRequest(ctx, account, cmd)
	if err != nil {
		return err
	}
	q, err := a.rt.Engine.Estimate(ctx, req)
	if err != nil {
		return err
	}

	fmt.Printf("%s %s %s at %d bps\n", req.Direction, req.InputAmount, strings.ToUpper(cmd.TokenSymbol), req.SlippageToleranceBps)
	fmt.Printf("expected output %s, price impact %s bps, deliver min %s, send max %s\n",
		q.Estimate.OutputAmount, q.Estimate.PriceImpactBps, q.Bounds.DeliverMin, q.Bounds.SendMax)
	if !q.Slippage.Adequate {
		fmt.Printf("warning: tolerance is below the recommended %d bps\n", q.Slippage.RecommendedBps)
	}
	return nil
}
