// Command invoicectl composes, submits and manages invoices from the terminal.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"rechnung/server/internal/billing"
	"rechnung/server/internal/config"
	"rechnung/server/internal/draft"
	"rechnung/server/internal/gateway"
	"rechnung/server/internal/logger"
	"rechnung/server/internal/models"
	"rechnung/server/internal/notify"
)

func main() {
	config.LoadDotEnv()
	if err := newApp(os.Stdout, os.Stderr).Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp(stdout, stderr io.Writer) *cli.App {
	return &cli.App{
		Name:      "invoicectl",
		Usage:     "create and manage invoices",
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "api-url", Value: "http://localhost:5000", EnvVars: []string{"API_URL"}, Usage: "backend base URL"},
			&cli.StringFlag{Name: "token", EnvVars: []string{"API_TOKEN"}, Usage: "admin bearer token"},
			&cli.StringFlag{Name: "username", EnvVars: []string{"ADMIN_USERNAME"}, Usage: "log in with this admin when no token is set"},
			&cli.StringFlag{Name: "password", EnvVars: []string{"ADMIN_PASSWORD"}},
			&cli.DurationFlag{Name: "timeout", Value: 10 * time.Second, EnvVars: []string{"REQUEST_TIMEOUT"}},
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}},
		},
		Commands: []*cli.Command{
			{
				Name:   "totals",
				Usage:  "calculate the totals of a draft file offline",
				Flags:  []cli.Flag{draftFlag()},
				Action: totalsCmd,
			},
			{
				Name:   "create",
				Usage:  "validate a draft file and save it as a new invoice",
				Flags:  []cli.Flag{draftFlag()},
				Action: createCmd,
			},
			{
				Name:   "list",
				Usage:  "list stored invoices",
				Flags:  []cli.Flag{&cli.StringFlag{Name: "search", Aliases: []string{"s"}}},
				Action: listCmd,
			},
			{
				Name:      "delete",
				Usage:     "delete an invoice",
				ArgsUsage: "<id>",
				Action:    deleteCmd,
			},
			{
				Name:  "company",
				Usage: "show or change the issuer",
				Subcommands: []*cli.Command{
					{Name: "get", Action: companyGetCmd},
					{Name: "set", ArgsUsage: "<field> <value>", Action: companySetCmd},
				},
			},
		},
	}
}

func draftFlag() cli.Flag {
	return &cli.StringFlag{Name: "file", Aliases: []string{"f"}, Required: true, Usage: "YAML draft file"}
}

func cliLogger(c *cli.Context) *zap.Logger {
	if !c.Bool("verbose") {
		return zap.NewNop()
	}
	log, err := logger.New("development")
	if err != nil {
		return zap.NewNop()
	}
	return log
}

// newGateway returns a client, logging in first when credentials are given without a token
func newGateway(c *cli.Context) (*gateway.HTTPGateway, error) {
	gw := gateway.New(c.String("api-url"),
		gateway.WithToken(c.String("token")),
		gateway.WithTimeout(c.Duration("timeout")),
		gateway.WithLogger(cliLogger(c)))
	if c.String("token") == "" && c.String("username") != "" {
		if _, err := gw.Login(c.Context, c.String("username"), c.String("password")); err != nil {
			return nil, fmt.Errorf("login failed: %w", err)
		}
	}
	return gw, nil
}

func totalsCmd(c *cli.Context) error {
	file, err := loadDraftFile(c.String("file"))
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	inv := file.Normalize()
	named := billing.NamedItems(inv.Items)
	totals := billing.CalculateTotals(named, inv.GlobalDiscount, inv.GlobalTip)

	w := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(w, "Netto\t%s\t\n", billing.FormatAmount(totals.Subtotal))
	for _, g := range billing.TaxGroups(named) {
		fmt.Fprintf(w, "Steuer %s%%\t%s\t\n", billing.FormatRate(g.Rate), billing.FormatAmount(g.Tax))
	}
	if totals.TotalDiscount > 0 {
		fmt.Fprintf(w, "Rabatt\t-%s\t\n", billing.FormatAmount(totals.TotalDiscount))
	}
	if totals.TotalTip > 0 {
		fmt.Fprintf(w, "Trinkgeld\t%s\t\n", billing.FormatAmount(totals.TotalTip))
	}
	fmt.Fprintf(w, "Gesamtbetrag (Brutto)\t%s\t\n", billing.FormatAmount(totals.Total))
	if err := w.Flush(); err != nil {
		return err
	}

	for _, problem := range billing.ValidateAll(inv) {
		fmt.Fprintln(c.App.ErrWriter, "Hinweis:", problem)
	}
	return nil
}

func createCmd(c *cli.Context) error {
	file, err := loadDraftFile(c.String("file"))
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	gw, err := newGateway(c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	recorder := &notify.Recorder{}
	log := cliLogger(c)
	ctrl := draft.NewController(draft.Deps{
		Gateway:  gw,
		Notifier: notify.Multi{recorder, notify.NewLogNotifier(log)},
		Logger:   log,
	})
	defer ctrl.Close()

	if err := ctrl.Init(c.Context); err != nil {
		// the placeholder issuer is still usable; the file may carry its own
		fmt.Fprintln(c.App.ErrWriter, notify.Message(notify.CompanyDataLoadError))
	}
	ctrl.Store().SetInvoice(func(prev models.Invoice) models.Invoice {
		return mergeDraft(prev, file, uuid.NewString)
	})
	current := ctrl.Store().Draft()
	// unnamed rows are dropped on submit, so report the total that is actually stored
	totals := billing.CalculateTotals(billing.NamedItems(current.Items), current.GlobalDiscount, current.GlobalTip)

	if _, err := ctrl.Save(c.Context); err != nil {
		if last, ok := recorder.Last(); ok {
			return cli.Exit(last.Message, 1)
		}
		return cli.Exit(err.Error(), 1)
	}
	fmt.Fprintf(c.App.Writer, "%s\t%s\n", notify.Message(notify.InvoiceSaved), current.InvoiceNumber)
	fmt.Fprintf(c.App.Writer, "Gesamtbetrag (Brutto)\t%s\n", billing.FormatAmount(totals.Total))
	return nil
}

func listCmd(c *cli.Context) error {
	gw, err := newGateway(c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	invoices, err := gw.GetInvoices(c.Context, c.String("search"))
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	w := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNUMMER\tDATUM\tKUNDE\tBETRAG")
	for _, inv := range invoices {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			inv.ID, inv.InvoiceNumber, inv.Date, inv.Customer.Name, billing.FormatAmount(inv.Totals.Total))
	}
	return w.Flush()
}

func deleteCmd(c *cli.Context) error {
	id := strings.TrimSpace(c.Args().First())
	if id == "" {
		return cli.Exit("usage: invoicectl delete <id>", 2)
	}
	gw, err := newGateway(c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	if err := gw.DeleteInvoice(c.Context, id); err != nil {
		if gateway.IsNotFound(err) {
			return cli.Exit(notify.Message(notify.InvoiceDeleteError)+": "+id, 1)
		}
		return cli.Exit(err.Error(), 1)
	}
	fmt.Fprintln(c.App.Writer, notify.Message(notify.InvoiceDeleted))
	return nil
}

func companyGetCmd(c *cli.Context) error {
	gw, err := newGateway(c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	company, err := gw.GetCompany(c.Context)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	enc := yaml.NewEncoder(c.App.Writer)
	enc.SetIndent(2)
	if err := enc.Encode(company); err != nil {
		return err
	}
	return enc.Close()
}

func companySetCmd(c *cli.Context) error {
	if c.Args().Len() != 2 {
		return cli.Exit("usage: invoicectl company set <field> <value>", 2)
	}
	gw, err := newGateway(c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	recorder := &notify.Recorder{}
	ctrl := draft.NewController(draft.Deps{Gateway: gw, Notifier: recorder, Logger: cliLogger(c)})
	defer ctrl.Close()
	if err := ctrl.Init(c.Context); err != nil {
		return cli.Exit(notify.Message(notify.CompanyDataLoadError), 1)
	}

	err = ctrl.UpdateCompany(c.Context, c.Args().Get(0), c.Args().Get(1))
	if errors.Is(err, draft.ErrUnknownField) {
		return cli.Exit(fmt.Sprintf("unbekanntes Feld %q", c.Args().Get(0)), 2)
	}
	if err != nil {
		return cli.Exit(notify.Message(notify.CompanyDataUpdateError), 1)
	}
	fmt.Fprintln(c.App.Writer, notify.Message(notify.CompanyDataUpdated))
	return nil
}
