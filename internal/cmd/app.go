package cmd

import (
	"fmt"

	"github.com/tbonner/vaultd/internal/approval"
	"github.com/tbonner/vaultd/internal/audit"
	"github.com/tbonner/vaultd/internal/config"
	"github.com/tbonner/vaultd/internal/dashboard"
	"github.com/tbonner/vaultd/internal/dedup"
	"github.com/tbonner/vaultd/internal/engine"
	"github.com/tbonner/vaultd/internal/event"
	"github.com/tbonner/vaultd/internal/logging"
	"github.com/tbonner/vaultd/internal/orchestrator"
	"github.com/tbonner/vaultd/internal/vault"
	"github.com/tbonner/vaultd/internal/watcher"
)

// app bundles the wired components most commands need.
type app struct {
	cfg    *config.Config
	log    *logging.Logger
	store  *vault.Store
	ledger *dedup.Ledger
	gate   *approval.Gate
	audit  *audit.Log
	dash   *dashboard.Writer
	bus    *event.Bus
	intake *watcher.Intake
	orch   *orchestrator.Orchestrator
}

// newApp loads configuration and wires the component graph. The audit log
// subscribes to the bus so every transition lands in the daily log.
func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log, err := logging.New(cfg.Logging.File, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}

	root := cfg.Vault.ResolveRoot()
	store := vault.NewStore(root, log)
	if err := store.Init(); err != nil {
		return nil, err
	}

	ledger, err := dedup.NewLedger(store.LedgerPath())
	if err != nil {
		return nil, err
	}

	worker := cfg.WorkerID()
	token := ""
	if cfg.Dashboard.Writer {
		token = worker
	}
	dash := dashboard.NewWriter(store.DashboardPath(), worker, token)
	if dash.HoldsToken() {
		if err := dash.Init(); err != nil {
			return nil, err
		}
	}

	bus := event.NewBus()
	auditLog := audit.NewLog(store.LogsPath())
	auditLog.Subscribe(bus)

	gate := approval.NewGate(store, log)
	eng := engine.NewExecEngine(cfg.Engine.Command, cfg.Engine.Args, cfg.Engine.Timeout(), log)

	orch := orchestrator.New(store, ledger, gate, eng, auditLog, dash, bus, log, orchestrator.Options{
		Worker:         worker,
		StaleAfter:     cfg.Claim.StaleAfter(),
		AttemptCeiling: cfg.Claim.AttemptCeiling,
		ApprovalTTL:    cfg.Approval.TTL(),
	})

	return &app{
		cfg:    cfg,
		log:    log,
		store:  store,
		ledger: ledger,
		gate:   gate,
		audit:  auditLog,
		dash:   dash,
		bus:    bus,
		intake: watcher.NewIntake(store, log),
		orch:   orch,
	}, nil
}

func (a *app) close() {
	if a.log != nil {
		_ = a.log.Close()
	}
}
