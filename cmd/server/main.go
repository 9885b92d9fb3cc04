// Command server boots the vAMM perpetual-futures engine: every domain
// package wired together, its background jobs registered with the
// scheduler, and the HTTP/websocket surface served over the configured
// port. Follows the "construct every collaborator, wire it into the next,
// start the background loops, serve HTTP" boot shape of a broker process,
// cut down to this engine's markets/trade/limit-order/risk surface.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/rtxlabs/vperp/auth"
	"github.com/rtxlabs/vperp/binance"
	"github.com/rtxlabs/vperp/cache"
	"github.com/rtxlabs/vperp/circuitbreaker"
	"github.com/rtxlabs/vperp/config"
	"github.com/rtxlabs/vperp/decimalx"
	"github.com/rtxlabs/vperp/feeaccrual"
	"github.com/rtxlabs/vperp/httpapi"
	"github.com/rtxlabs/vperp/ledger"
	"github.com/rtxlabs/vperp/limitorder"
	"github.com/rtxlabs/vperp/liquidation"
	"github.com/rtxlabs/vperp/logging"
	"github.com/rtxlabs/vperp/market"
	"github.com/rtxlabs/vperp/metrics"
	"github.com/rtxlabs/vperp/notify"
	"github.com/rtxlabs/vperp/oracle"
	"github.com/rtxlabs/vperp/scheduler"
	"github.com/rtxlabs/vperp/stats"
	"github.com/rtxlabs/vperp/trade"
	"github.com/rtxlabs/vperp/trigger"
)

// seedMarkets are the markets created at boot when none are persisted yet.
// A production deployment would instead restore these from the markets
// table; this engine has no durable store wired to market.Engine yet (see
// DESIGN.md's store entry), so every restart starts from this fixed seed
// set.
var seedMarkets = []struct {
	id, symbol, token string
	seedPrice         string
	binanceSymbol     string
}{
	{"btc-perp", "BTC-PERP", "0xBTC", "60000", "BTCUSD"},
	{"eth-perp", "ETH-PERP", "0xETH", "3000", "ETHUSD"},
}

func main() {
	log := logging.NewLogger(logging.INFO, os.Stdout)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("server: failed to load configuration", err)
	}

	// A rotating on-disk log is additive with the stdout writer above, not
	// a replacement for it — losing it at boot shouldn't stop the process.
	if rotating, err := logging.NewRotatingFileWriter(logging.RotationConfig{
		Filename:           "logs/server.log",
		MaxSizeMB:          100,
		MaxAge:             7 * 24 * time.Hour,
		MaxBackups:         10,
		CompressionEnabled: true,
	}); err != nil {
		log.Warn("server: rotating log file disabled", logging.String("err", err.Error()))
	} else {
		log = logging.NewLogger(logging.INFO, os.Stdout, rotating)
	}

	var auditLog *logging.AuditLogger
	if al, err := logging.NewAuditLogger("logs/audit"); err != nil {
		log.Warn("server: audit log disabled", logging.String("err", err.Error()))
	} else {
		auditLog = al
		defer al.Close()
	}

	markets := market.NewEngine()
	now := time.Now()
	marketSymbols := make(map[string]string, len(seedMarkets))
	for _, sm := range seedMarkets {
		seedPrice, err := decimalx.ParseFromString(sm.seedPrice)
		if err != nil {
			log.Fatal("server: invalid seed price", err, logging.String("market", sm.id))
		}
		if _, err := markets.CreateMarket(sm.id, sm.symbol, sm.token, seedPrice, now); err != nil {
			log.Fatal("server: failed to seed market", err, logging.String("market", sm.id))
		}
		marketSymbols[sm.id] = sm.binanceSymbol
	}

	priceSource := binance.NewSource(marketSymbols, "BTCUSD")
	priceOracle := oracle.New(priceSource, oracle.Config{
		StaleBudget:  time.Duration(cfg.Engine.StalePriceBudgetSeconds) * time.Second,
		Retries:      2,
		RetryBackoff: 100 * time.Millisecond,
	}, log)
	// Seed every quote with the market's own seed price so the engine has
	// something to serve before the first live price tick lands.
	for _, sm := range seedMarkets {
		seedPrice, _ := decimalx.ParseFromString(sm.seedPrice)
		priceOracle.SeedMarket(sm.id, seedPrice)
	}
	priceOracle.SeedAsset(ledger.C1, decimalx.MustParse(seedMarkets[0].seedPrice))
	priceOracle.SeedAsset(ledger.C2, decimalx.NewFromInt(1))

	margin := ledger.NewInMemory()
	sink := notify.New(log)
	statsEngine := stats.New(stats.Config{Markets: markets})

	var idCounter int64
	newID := func() string {
		idCounter++
		return "id-" + time.Now().Format("20060102150405") + "-" + itoa(idCounter)
	}

	tradeEngine := trade.New(trade.Config{
		Markets: markets,
		Ledger:  margin,
		Oracle:  priceOracle,
		Notify:  sink,
		Stats:   statsEngine,
		NewID:   newID,
	})

	limitOrders := limitorder.New(limitorder.Config{
		Positions: tradeEngine,
		Markets:   markets,
		Ledger:    margin,
		Oracle:    priceOracle,
		Notify:    sink,
		NewID:     newID,
		Log:       log,
	})

	feeAccrual := feeaccrual.New(feeaccrual.Config{
		Positions: tradeEngine,
		Markets:   markets,
		Ledger:    margin,
		Oracle:    priceOracle,
		Notify:    sink,
		Log:       log,
	})

	liquidationEngine := liquidation.New(liquidation.Config{
		Positions: tradeEngine,
		Markets:   markets,
		Oracle:    priceOracle,
		Notify:    sink,
		Log:       log,
	})

	triggerEngine := trigger.New(trigger.Config{
		Positions: tradeEngine,
		Markets:   markets,
		Notify:    sink,
		Log:       log,
	})

	breaker := circuitbreaker.New(circuitbreaker.Config{
		Markets: markets,
		Notify:  sink,
		Log:     log,
	})

	authSvc := auth.NewService(adminPinHash(cfg.Admin.PIN, log), cfg.JWT.Secret)

	marketCache, err := cache.NewManager(cache.DefaultManagerConfig(), nil)
	if err != nil {
		log.Warn("server: market cache disabled", logging.String("err", err.Error()))
		marketCache = nil
	}

	server := httpapi.NewServer(httpapi.Config{
		Trade:       tradeEngine,
		LimitOrders: limitOrders,
		Markets:     markets,
		Stats:       statsEngine,
		Auth:        authSvc,
		Notify:      sink,
		Log:         log,
		Audit:       auditLog,
		Cache:       marketCache,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := priceSource.Run(ctx); err != nil {
			log.Warn("server: price feed stopped", logging.String("err", err.Error()))
		}
	}()

	sup := scheduler.New(log)
	sup.Register(scheduler.Job{
		Name:     "funding-update",
		Interval: time.Duration(cfg.Engine.FundingUpdateInterval) * time.Second,
		Run:      func(ctx context.Context) { markets.RunFundingTick(time.Now()) },
	})
	sup.Register(scheduler.Job{
		Name:     "reserve-convergence",
		Interval: time.Duration(cfg.Engine.ReserveShiftInterval) * time.Second,
		Run:      func(ctx context.Context) { markets.RunConvergenceTick(ctx, priceOracle) },
	})
	sup.Register(scheduler.Job{
		Name:     "fee-accrual",
		Interval: time.Duration(cfg.Engine.FeeAccrualInterval) * time.Second,
		Run:      func(ctx context.Context) { feeAccrual.Tick(ctx, time.Now()) },
	})
	sup.Register(scheduler.Job{
		Name:     "liquidation-sweep",
		Interval: time.Duration(cfg.Engine.LiquidationInterval) * time.Second,
		Run:      func(ctx context.Context) { liquidationEngine.Tick(ctx, time.Now()) },
	})
	sup.Register(scheduler.Job{
		Name:     "trigger-monitor",
		Interval: time.Duration(cfg.Engine.TriggerMonitorInterval) * time.Second,
		Run:      func(ctx context.Context) { triggerEngine.Tick(ctx, time.Now()) },
	})
	sup.Register(scheduler.Job{
		Name:     "circuit-breaker",
		Interval: time.Duration(cfg.Engine.TriggerMonitorInterval) * time.Second,
		Run:      func(ctx context.Context) { breaker.Tick(ctx, time.Now()) },
	})
	sup.Register(scheduler.Job{
		Name:     "limit-order-sweep",
		Interval: time.Duration(cfg.Engine.LimitOrderInterval) * time.Second,
		Run:      func(ctx context.Context) { limitOrders.Tick(ctx, time.Now()) },
	})
	sup.Register(scheduler.Job{
		Name:     "ohlcv-rollup",
		Interval: time.Duration(cfg.Engine.OHLCVRollupInterval) * time.Second,
		Run:      func(ctx context.Context) { statsEngine.Tick(ctx, time.Now()) },
	})
	sup.Start(ctx)

	httpSrv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      server.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info("server: listening", logging.String("addr", httpSrv.Addr))
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server: http server failed", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("server: shutting down")
	cancel()
	sup.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("server: http shutdown error", logging.String("err", err.Error()))
	}
	metrics.SetWebsocketConnections(0)
}

// adminPinHash bcrypt-hashes the plaintext ADMIN_PIN from config so
// auth.NewService (which expects a hash, never a plaintext PIN) has
// something to compare against. An empty pin defers to auth.NewService's
// own insecure-development fallback.
func adminPinHash(pin string, log *logging.Logger) string {
	if pin == "" {
		return ""
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		log.Fatal("server: failed to hash admin PIN", err)
	}
	return string(hash)
}

func itoa(n int64) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
