package main

import (
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/multazero/backend/internal/auth"
	"github.com/multazero/backend/internal/config"
	"github.com/multazero/backend/internal/gateway"
	"github.com/multazero/backend/internal/gatewaysync"
	"github.com/multazero/backend/internal/handlers"
	"github.com/multazero/backend/internal/ledger"
	"github.com/multazero/backend/internal/payments"
	"github.com/multazero/backend/internal/recharge"
	"github.com/multazero/backend/internal/repository"
	"github.com/multazero/backend/internal/router"
	"github.com/multazero/backend/internal/webhook"
)

type app struct {
	router       http.Handler
	synchronizer *gatewaysync.Synchronizer
	credentials  *repository.GatewayCredentialsRepo
}

// buildApp constructs repositories, services and handlers over one pool.
func buildApp(pool *pgxpool.Pool, cfg *config.Config, logger *slog.Logger) *app {
	creditRepo := repository.NewCreditPurchaseRepo(pool)
	orderRepo := repository.NewServiceOrderRepo(pool)
	legacyRepo := repository.NewLegacyGatewayRepo(pool)
	credsRepo := repository.NewGatewayCredentialsRepo(pool)
	auditRepo := repository.NewStatusAuditRepo(pool)
	eventLog := repository.NewWebhookLogRepo(pool)

	ledgerSvc := ledger.NewService(ledger.NewRepository(pool))
	factory := gateway.NewFactory(cfg.GatewayBaseURL, cfg.GatewayTimeout)

	stored := []payments.StoredSource{
		payments.NewCreditSource(creditRepo),
		payments.NewServiceOrderSource(orderRepo),
		payments.NewLegacyGatewaySource(legacyRepo),
	}
	live := payments.NewGatewaySource(credsRepo, factory, cfg.SyncPageSize)
	agg := payments.NewAggregator(stored, live, cfg.GatewayTimeout, logger)
	rechargeSvc := recharge.NewService(creditRepo, ledgerSvc, logger)
	overrider := payments.NewOverrider(agg, credsRepo, factory, auditRepo, rechargeSvc, logger)

	syncer := gatewaysync.New(credsRepo, factory, agg, orderRepo, auditRepo, rechargeSvc,
		gatewaysync.Config{PageSize: cfg.SyncPageSize, MaxPages: cfg.SyncMaxPages}, logger)

	processor := webhook.NewProcessor(rechargeSvc, agg, eventLog, logger)

	mux := router.New(router.Handlers{
		Payments: &handlers.PaymentHandler{Payments: agg, Overrider: overrider, Sync: syncer, Logger: logger},
		Credits:  &handlers.CreditHandler{Ledger: ledgerSvc, Logger: logger},
		Webhook:  webhook.NewHandler(processor, cfg.GatewayWebhookToken, logger),
		Tokens:   auth.NewService(cfg.JWTSecret),
	})

	return &app{router: mux, synchronizer: syncer, credentials: credsRepo}
}
