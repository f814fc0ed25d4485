package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/glebarez/sqlite"
	"github.com/urfave/cli/v2"

	"github.com/novalune/tradeengine/config"
	"github.com/novalune/tradeengine/coordinator"
	"github.com/novalune/tradeengine/exchange"
	"github.com/novalune/tradeengine/model"
	"github.com/novalune/tradeengine/notification/telegram"
	"github.com/novalune/tradeengine/orderbook"
	"github.com/novalune/tradeengine/service"
	"github.com/novalune/tradeengine/simulator"
	"github.com/novalune/tradeengine/storage"
	"github.com/novalune/tradeengine/tools/log"
	"github.com/novalune/tradeengine/trader"
)

// main wires the composition root, grounded on the teacher's
// examples/spotmarket/spot.go (env-var credentials, Settings struct)
// and cmd/ninjabot/ninjabot.go (urfave/cli command layout).
func main() {
	app := &cli.App{
		Name:  "tradeengine",
		Usage: "Automated candle-driven trading engine",
		Commands: []*cli.Command{
			liveCommand(),
			backtestCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("tradeengine: %v", err)
	}
}

func liveCommand() *cli.Command {
	return &cli.Command{
		Name:  "live",
		Usage: "Run the live trading engine against a configured exchange",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Required: true, Usage: "path to config.yaml"},
		},
		Action: func(c *cli.Context) error {
			return runLive(c.Context, c.String("config"))
		},
	}
}

func runLive(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("tradeengine: load config: %w", err)
	}
	cfg.FinalizeTradingConfig()

	var db storage.Storage
	if cfg.UseBackend && cfg.DatabasePath != "" {
		db, err = storage.FromSQL(sqlite.Open(cfg.DatabasePath))
	} else {
		db, err = storage.FromMemory()
	}
	if err != nil {
		return fmt.Errorf("tradeengine: open storage: %w", err)
	}

	book := orderbook.New(db)
	if err := book.Load(); err != nil {
		log.Errorf("tradeengine: initial db_sync_trader_state failed: %v", err)
	}

	apiKey := os.Getenv("API_KEY")
	secretKey := os.Getenv("API_SECRET")
	client := exchange.NewClient(apiKey, secretKey, cfg.BaseCurrency)

	notifier, err := wireTelegram(book, cfg)
	if err != nil {
		log.Errorf("tradeengine: telegram init failed: %v", err)
	}
	if notifier != nil {
		notifier.Start()
		defer notifier.Stop()
	}

	holdTimeMs, err := cfg.HoldTimeLimitDuration()
	if err != nil {
		return fmt.Errorf("tradeengine: parse hold_time_limit: %w", err)
	}
	intervalMs, err := cfg.CandleIntervalDuration()
	if err != nil {
		return fmt.Errorf("tradeengine: parse candle_interval: %w", err)
	}

	strategy := &trader.DefaultStrategy{
		HoldTimeLimitMs:    holdTimeMs,
		ProfitRatioLimit:   cfg.ProfitRatioLimit,
		ProfitFactorTarget: cfg.ProfitFactorTarget,
		AmountInvestFiat:   cfg.AmountInvestFiat,
		AssetBuyLimit:      cfg.AssetBuyLimit,
		// Candidate asset selection is out of scope here (spec §4.7
		// notes the buy-loop's candidate source is not shown in the
		// excerpted original source); an operator wires a concrete
		// selection function before going live.
		Candidates: func(prices model.Row) []string { return nil },
	}

	var notifierIface service.Notifier
	if notifier != nil {
		notifierIface = notifier
	}

	t := trader.New(cfg, book, db, client, notifierIface, strategy)
	co := coordinator.New(client, client, db, book, t, intervalMs, cfg.BaseCurrency, cfg.IsSimulation)
	t.OnBuySubmitted(co.RegisterPendingBuy)

	runCtx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, 2)
	go func() { errCh <- co.StartPrivate(runCtx) }()
	go func() { errCh <- co.Start(runCtx, cfg.Symbol, cfg.CandleInterval) }()

	select {
	case <-runCtx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

func wireTelegram(book *orderbook.Book, cfg *config.Config) (service.Telegram, error) {
	if !cfg.TelegramEnabled {
		return nil, nil
	}
	userID, _ := strconv.ParseInt(os.Getenv("TELEGRAM_USER"), 10, 64)
	settings := telegram.Settings{
		Token: os.Getenv("TELEGRAM_TOKEN"),
		Users: []int64{userID},
	}
	return telegram.New(book, settings)
}

func backtestCommand() *cli.Command {
	return &cli.Command{
		Name:  "backtest",
		Usage: "Run snapshot backtests against a CSV candle history dump",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Required: true},
			&cli.StringFlag{Name: "history", Aliases: []string{"H"}, Required: true, Usage: "path to a candle history CSV dump"},
			&cli.Int64Flag{Name: "window", Aliases: []string{"w"}, Value: 1000, Usage: "row window per snapshot"},
			&cli.Int64Flag{Name: "snapshots", Aliases: []string{"n"}, Value: 10, Usage: "number of snapshots to run"},
		},
		Action: func(c *cli.Context) error {
			return runBacktest(c.String("config"), c.String("history"), c.Int64("window"), c.Int64("snapshots"))
		},
	}
}

func runBacktest(configPath, historyPath string, window, amount int64) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("tradeengine: load config: %w", err)
	}
	cfg.FinalizeTradingConfig()

	f, err := os.Open(historyPath)
	if err != nil {
		return fmt.Errorf("tradeengine: open history csv: %w", err)
	}
	defer f.Close()

	src, err := simulator.LoadCSV(f)
	if err != nil {
		return fmt.Errorf("tradeengine: load history csv: %w", err)
	}

	params := simulator.Params{
		HoldTimeLimit:      0,
		ProfitRatioLimit:   cfg.ProfitRatioLimit,
		ProfitFactorTarget: cfg.ProfitFactorTarget,
		AmountInvestFiat:   cfg.AmountInvestFiat,
		MakerFee:           cfg.MakerFee,
		TakerFee:           cfg.TakerFee,
		AssetBuyLimit:      cfg.AssetBuyLimit,
	}

	indices := simulator.SnapshotIndices(window, src.Len(), amount, window)

	// The offline backtest candidate picker trades every asset with
	// available history, unlike the live DefaultStrategy which defers
	// candidate selection entirely to the operator.
	candidates := func(row model.Row, assets []string) []string { return assets }

	results := simulator.RunSnapshots(params, cfg.Budget, window, src, indices, candidates)

	report := simulator.Report{Results: results}
	report.Print()
	return nil
}
