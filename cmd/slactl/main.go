// slactl runs SLA maintenance against the help desk database.
//
//	slactl recalculate --tenant 5 [--force]
//	slactl import-policies --file policies.yaml [--tenant 5]
//	slactl overdue --tenant 5
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/spec-kit/helpdesk/internal/app"
	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/observability"
	"github.com/spec-kit/helpdesk/internal/persistence"
	"github.com/spec-kit/helpdesk/internal/service"
)

const usage = `usage: slactl <command> [flags]

commands:
  recalculate      fill missing SLA due dates (--force re-derives all)
  import-policies  upsert SLA policies from a YAML file
  overdue          list tickets with a breached SLA track
`

var errUsage = errors.New("invalid usage")

// openFunc yields the services to operate on and a cleanup.
type openFunc func(ctx context.Context) (*app.Services, func(), error)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdout, openDatabase); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func openDatabase(ctx context.Context) (*app.Services, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if cfg.Postgres.DSN == "" {
		return nil, nil, errors.New("POSTGRES_DSN is required")
	}
	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		return nil, nil, err
	}
	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("connect postgres: %w", err)
	}
	services, err := app.NewServices(app.Options{
		Config: cfg,
		Repos:  app.PostgresRepositories(pg.PoolHandle()),
		Logger: logger,
	})
	if err != nil {
		pg.Close()
		return nil, nil, err
	}
	cleanup := func() {
		pg.Close()
		_ = logger.Sync()
	}
	logger.Debug("slactl connected", zap.String("app", cfg.App.Name))
	return services, cleanup, nil
}

func run(ctx context.Context, args []string, stdout io.Writer, open openFunc) error {
	if len(args) == 0 {
		return errUsage
	}
	command, rest := args[0], args[1:]

	switch command {
	case "recalculate":
		return runRecalculate(ctx, rest, stdout, open)
	case "import-policies":
		return runImportPolicies(ctx, rest, stdout, open)
	case "overdue":
		return runOverdue(ctx, rest, stdout, open)
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
		return nil
	default:
		return fmt.Errorf("unknown command %q: %w", command, errUsage)
	}
}

func runRecalculate(ctx context.Context, args []string, stdout io.Writer, open openFunc) error {
	flags := pflag.NewFlagSet("recalculate", pflag.ContinueOnError)
	tenant := flags.Int64("tenant", 0, "tenant id")
	force := flags.Bool("force", false, "re-derive every due date from current policies")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if *tenant <= 0 {
		return fmt.Errorf("--tenant is required: %w", errUsage)
	}

	services, cleanup, err := open(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	if _, err := services.Tenants.Get(ctx, *tenant); err != nil {
		return err
	}
	result, err := services.Tickets.RecalculateSLA(ctx, *tenant, *force)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "tenant %d: scanned %d tickets, updated %d\n", *tenant, result.Scanned, result.Updated)
	return nil
}

// policyFile is the YAML layout read by import-policies.
type policyFile struct {
	Tenant   int64                 `yaml:"tenant"`
	Policies []service.PolicyInput `yaml:"policies"`
}

func parsePolicyFile(r io.Reader) (*policyFile, error) {
	var file policyFile
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil {
		return nil, fmt.Errorf("decode policies: %w", err)
	}
	if len(file.Policies) == 0 {
		return nil, errors.New("policy file lists no policies")
	}
	return &file, nil
}

func runImportPolicies(ctx context.Context, args []string, stdout io.Writer, open openFunc) error {
	flags := pflag.NewFlagSet("import-policies", pflag.ContinueOnError)
	path := flags.StringP("file", "f", "", "YAML policy file")
	tenant := flags.Int64("tenant", 0, "tenant id (overrides the file)")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*path) == "" {
		return fmt.Errorf("--file is required: %w", errUsage)
	}

	f, err := os.Open(*path)
	if err != nil {
		return err
	}
	defer f.Close()
	file, err := parsePolicyFile(f)
	if err != nil {
		return err
	}
	if *tenant > 0 {
		file.Tenant = *tenant
	}
	if file.Tenant <= 0 {
		return fmt.Errorf("tenant missing from file and flags: %w", errUsage)
	}

	services, cleanup, err := open(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	if _, err := services.Tenants.Get(ctx, file.Tenant); err != nil {
		return err
	}
	imported, err := services.Policies.Import(ctx, file.Tenant, file.Policies)
	if err != nil {
		return err
	}
	for _, policy := range imported {
		fmt.Fprintf(stdout, "tenant %d %s: response %dm resolution %dm\n",
			policy.TenantID, policy.Priority, policy.ResponseMinutes, policy.ResolutionMinutes)
	}
	return nil
}

func runOverdue(ctx context.Context, args []string, stdout io.Writer, open openFunc) error {
	flags := pflag.NewFlagSet("overdue", pflag.ContinueOnError)
	tenant := flags.Int64("tenant", 0, "tenant id")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if *tenant <= 0 {
		return fmt.Errorf("--tenant is required: %w", errUsage)
	}

	services, cleanup, err := open(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	if _, err := services.Tenants.Get(ctx, *tenant); err != nil {
		return err
	}
	breached, err := services.Tickets.BreachedTickets(ctx, *tenant)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "IDENTIFIER\tSTATUS\tPRIORITY\tRESPONSE\tRESOLUTION")
	for _, item := range breached {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			item.Ticket.Identifier, item.Ticket.Status, item.Ticket.Priority,
			trackLabel(string(item.Status.Response.State), item.Status.Response.Overdue),
			trackLabel(string(item.Status.Resolution.State), item.Status.Resolution.Overdue))
	}
	return w.Flush()
}

func trackLabel(state string, overdue bool) string {
	if overdue {
		return state + " (overdue)"
	}
	return state
}
