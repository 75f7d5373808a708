// Command seed fills the database with sample invoices for local development.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"rechnung/server/internal/config"
	"rechnung/server/internal/database"
	"rechnung/server/internal/logger"
	"rechnung/server/internal/models"
	"rechnung/server/internal/services"
	"rechnung/server/internal/utils"
)

var customers = []models.CustomerInfo{
	{Name: "Erika Mustermann", Address: "Hauptstr. 1", City: "Berlin", PostalCode: "10115"},
	{Name: "Jonas Müller", Address: "Lindenallee 12", City: "Hamburg", PostalCode: "20095"},
	{Name: "Lea Schmidt", Address: "Marktplatz 3", City: "München", PostalCode: "80331"},
	{Name: "Paul Becker", Address: "Bahnhofstr. 7", City: "Köln", PostalCode: "50667", CustomField1: "Kundennr. 4711"},
}

var sampleItems = [][]models.LineItem{
	{{Name: "Haarschnitt Damen", Quantity: 1, Price: 45, Tax1: 19}, {Name: "Föhnen", Quantity: 1, Price: 15, Tax1: 19}},
	{{Name: "Haarschnitt Herren", Quantity: 1, Price: 28, Tax1: 19}},
	{{Name: "Färben", Quantity: 1, Price: 69, Tax1: 19}, {Name: "Pflegeshampoo", Quantity: 2, Price: 12.5, Tax1: 7}},
	{{Name: "Bartpflege", Quantity: 1, Price: 18, Tax1: 19}, {Name: "Haarwachs", Quantity: 1, Price: 9.9, Tax1: 19}},
}

func main() {
	app := &cli.App{
		Name:  "seed",
		Usage: "fill the database with sample invoices",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "count", Aliases: []string{"n"}, Value: 20, Usage: "number of invoices to create"},
			&cli.StringFlag{Name: "prefix", Value: "SEED", Usage: "invoice number prefix"},
		},
		Action: func(c *cli.Context) error {
			return seed(c.Context, c.Int("count"), c.String("prefix"))
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func seed(ctx context.Context, count int, prefix string) error {
	config.LoadDotEnv()
	cfg := config.Load()
	log, err := logger.New(cfg.Environment)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	log.Info("seeding database", zap.String("database", redact(cfg.DatabaseURL)), zap.Int("count", count))

	db, err := database.Open(cfg.DatabaseURL, log)
	if err != nil {
		return err
	}
	defer func() { _ = database.ClosePostgres(db) }()
	if err := models.AutoMigrate(db); err != nil {
		return err
	}

	company, err := services.NewCompanyService(db, utils.NewRedisClient(nil), log).Get(ctx)
	if err != nil {
		return fmt.Errorf("failed to load company: %w", err)
	}

	invoices := services.NewInvoiceService(db, nil, log)
	created, skipped := 0, 0
	for i := 0; i < count; i++ {
		payload := samplePayload(prefix, i, company)
		if _, err := invoices.Create(ctx, payload); err != nil {
			if errors.Is(err, services.ErrDuplicateInvoiceNumber) {
				skipped++
				continue
			}
			return fmt.Errorf("invoice %s: %w", payload.InvoiceNumber, err)
		}
		created++
	}
	log.Info("seed finished", zap.Int("created", created), zap.Int("skipped_existing", skipped))
	return nil
}

func samplePayload(prefix string, i int, company models.CompanyInfo) models.InvoicePayload {
	items := sampleItems[i%len(sampleItems)]
	p := models.InvoicePayload{
		InvoiceNumber: fmt.Sprintf("%s-%04d", prefix, i+1),
		Date:          fmt.Sprintf("2024-%02d-%02d", i%12+1, i%28+1),
		Company:       company,
		Customer:      customers[i%len(customers)],
		Items:         append([]models.LineItem(nil), items...),
		PaymentMethod: models.PaymentMethodCard,
	}
	if i%3 == 0 {
		p.PaymentMethod = models.PaymentMethodCash
		p.Totals.TotalTip = 2
	}
	return p
}

func redact(url string) string {
	if at := strings.LastIndex(url, "@"); at > 0 {
		return "***" + url[at:]
	}
	return url
}
