// Command loadgen hammers POST /api/invoices with unique invoices and reports throughput and
// failure classes.
package main

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"rechnung/server/internal/draft"
	"rechnung/server/internal/gateway"
	"rechnung/server/internal/logger"
	"rechnung/server/internal/models"
)

type counters struct {
	total      int64
	created    int64
	conflicts  int64
	validation int64
	failed     int64
}

func main() {
	app := &cli.App{
		Name:  "loadgen",
		Usage: "load test the invoice API",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "api-url", Value: "http://localhost:5000", EnvVars: []string{"API_URL"}},
			&cli.IntFlag{Name: "workers", Value: 50},
			&cli.DurationFlag{Name: "duration", Value: time.Minute},
			&cli.IntFlag{Name: "duplicate-every", Value: 0, Usage: "resend an existing number every N requests to exercise conflicts"},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	log, err := logger.New("development")
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithTimeout(c.Context, c.Duration("duration"))
	defer cancel()

	gw := gateway.New(c.String("api-url"), gateway.WithTimeout(30*time.Second))
	if err := gw.HealthCheck(ctx); err != nil {
		return fmt.Errorf("backend not healthy: %w", err)
	}

	var stats counters
	start := time.Now()
	runID := start.UnixMilli()
	dupEvery := int64(c.Int("duplicate-every"))

	log.Info("load test started",
		zap.String("api", gw.BaseURL()),
		zap.Int("workers", c.Int("workers")),
		zap.Duration("duration", c.Duration("duration")))

	var monitor sync.WaitGroup
	monitor.Add(1)
	go func() {
		defer monitor.Done()
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				total := atomic.LoadInt64(&stats.total)
				log.Info("progress",
					zap.Int64("requests", total),
					zap.Float64("rps", float64(total)/time.Since(start).Seconds()),
					zap.Int("goroutines", runtime.NumGoroutine()))
			}
		}
	}()

	var wg sync.WaitGroup
	for w := 0; w < c.Int("workers"); w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for n := 0; ctx.Err() == nil; n++ {
				seq := atomic.AddInt64(&stats.total, 1)
				number := fmt.Sprintf("LOAD-%d-%d-%d", runID, worker, n)
				if dupEvery > 0 && seq%dupEvery == 0 {
					number = fmt.Sprintf("LOAD-%d-0-0", runID)
				}
				err := gw.CreateInvoice(ctx, payload(number))
				switch {
				case err == nil:
					atomic.AddInt64(&stats.created, 1)
				case ctx.Err() != nil:
					atomic.AddInt64(&stats.total, -1)
					return
				default:
					switch draft.ClassifyFailure(err) {
					case draft.FailureConflict:
						atomic.AddInt64(&stats.conflicts, 1)
					case draft.FailureValidation:
						atomic.AddInt64(&stats.validation, 1)
					default:
						atomic.AddInt64(&stats.failed, 1)
					}
				}
			}
		}(w)
	}
	wg.Wait()
	monitor.Wait()

	elapsed := time.Since(start)
	log.Info("load test finished",
		zap.Duration("elapsed", elapsed),
		zap.Int64("requests", stats.total),
		zap.Int64("created", stats.created),
		zap.Int64("conflicts", stats.conflicts),
		zap.Int64("validation_errors", stats.validation),
		zap.Int64("failed", stats.failed),
		zap.Float64("rps", float64(stats.total)/elapsed.Seconds()))
	return nil
}

func payload(number string) models.InvoicePayload {
	return models.InvoicePayload{
		InvoiceNumber: number,
		Date:          time.Now().Format(models.DateLayout),
		Company:       models.DefaultCompanyInfo(),
		Customer: models.CustomerInfo{
			Name: "Last Test", Address: "Teststr. 1", City: "Berlin", PostalCode: "10115",
		},
		Items: []models.LineItem{
			{Name: "Haarschnitt", Quantity: 1, Price: 35, Tax1: 19},
			{Name: "Pflege", Quantity: 2, Price: 8.5, Tax1: 7},
		},
		PaymentMethod: models.PaymentMethodCard,
	}
}
