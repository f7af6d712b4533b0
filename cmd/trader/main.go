package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/amm-trade-engine/internal/app"
	"github.com/aman-zulfiqar/amm-trade-engine/internal/command"
	"github.com/aman-zulfiqar/amm-trade-engine/internal/config"
	"github.com/aman-zulfiqar/amm-trade-engine/internal/models"
	"github.com/aman-zulfiqar/amm-trade-engine/internal/swapengine"
)

func loadEnv() {
	_, filename, _, _ := runtime.Caller(0)
	projectRoot := filepath.Join(filepath.Dir(filename), "../..")
	_ = godotenv.Load(filepath.Join(projectRoot, ".env"))
}

func main() {
	loadEnv()

	mode := flag.String("mode", "estimate", "estimate | execute")
	direction := flag.String("direction", "buy", "buy | sell")
	symbol := flag.String("symbol", "USD", "token symbol from the pairs config")
	amount := flag.String("amount", "", "input amount (e.g. 10.5)")
	slippageBps := flag.Int("slippage-bps", -1, "slippage tolerance in bps; default comes from prefs or config")
	yes := flag.Bool("yes", false, "accept a suggested retry without prompting")
	flag.Parse()

	amt, err := decimal.NewFromString(*amount)
	if err != nil {
		fmt.Println("missing or invalid -amount")
		os.Exit(2)
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "2006-01-02 15:04:05"})

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("invalid configuration")
	}
	logger.SetLevel(cfg.Level())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to build runtime")
	}
	defer rt.Close(context.Background())

	cmd := command.Command{Direction: *direction, Amount: amt, TokenSymbol: *symbol}
	if *slippageBps >= 0 {
		bps := uint32(*slippageBps)
		cmd.SlippageBps = &bps
	}

	account := ""
	if rt.Signer != nil {
		account = rt.Signer.Account()
	}
	req, err := rt.Mapper.ToTradeRequest(ctx, account, cmd)
	if err != nil {
		fail(err)
	}

	switch *mode {
	case "estimate":
		q, err := rt.Engine.Estimate(ctx, req)
		if err != nil {
			fail(err)
		}
		printQuote(q)
	case "execute":
		execute(ctx, rt.Engine, rt.Signer, req, *yes)
	default:
		fmt.Println("invalid -mode (use estimate|execute)")
		os.Exit(2)
	}
}

func execute(ctx context.Context, engine *swapengine.Engine, signer swapengine.SignerContext, req models.TradeRequest, autoYes bool) {
	tradeID := swapengine.NewTradeID()
	attempt, err := engine.ExecuteTrade(ctx, signer, req, swapengine.WithTradeID(tradeID))
	in := bufio.NewReader(os.Stdin)

	for {
		if attempt != nil {
			printAttempt(attempt)
		}
		snap, ok := engine.Session(tradeID)
		if !ok || !snap.AwaitingDecision() {
			break
		}

		fmt.Printf("slippage exceeded. retry at %d bps (was %d)? [y/N] ", snap.SuggestedToleranceBps, snap.CurrentToleranceBps)
		answer := "n"
		if autoYes {
			answer = "y"
			fmt.Println(answer)
		} else if line, rerr := in.ReadString('\n'); rerr == nil {
			answer = strings.ToLower(strings.TrimSpace(line))
		}

		if answer != "y" && answer != "yes" {
			if cerr := engine.Cancel(tradeID); cerr != nil {
				fail(cerr)
			}
			fmt.Println("cancelled")
			os.Exit(1)
		}
		attempt, err = engine.Retry(ctx, signer, tradeID)
	}

	if err != nil {
		fail(err)
	}
	fmt.Println("trade", tradeID, "completed")
}

func printQuote(q *swapengine.Quote) {
	fmt.Printf("spot=%s output=%s impact_bps=%s fee=%s deliver_min=%s send_max=%s\n",
		q.SpotPrice, q.Estimate.OutputAmount, q.Estimate.PriceImpactBps, q.Estimate.Fee,
		q.Bounds.DeliverMin, q.Bounds.SendMax)
	if !q.Slippage.Adequate {
		fmt.Printf("warning: tolerance %d bps is below the recommended %d bps\n",
			q.Slippage.CurrentBps, q.Slippage.RecommendedBps)
	}
}

func printAttempt(a *models.TradeAttempt) {
	line := fmt.Sprintf("attempt %d: %s tolerance=%d bps", a.AttemptNumber, a.Outcome, a.Request.SlippageToleranceBps)
	if a.TxHash != "" {
		line += " tx=" + a.TxHash
	}
	if a.ResultCode != "" {
		line += " code=" + a.ResultCode
	}
	if a.DeliveredAmount != nil {
		line += " delivered=" + a.DeliveredAmount.String()
	}
	fmt.Println(line)
}

func fail(err error) {
	var e *models.Error
	if errors.As(err, &e) {
		fmt.Printf("%s: %s\n", e.Kind, e.UserMessage())
	} else {
		fmt.Println("error:", err)
	}
	os.Exit(1)
}
