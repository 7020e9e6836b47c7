package cli

import (
	"lana/internal/config"
	"lana/internal/ledger"
	"lana/internal/metrics"
	"lana/internal/services"
)

// Services is the service graph every binary builds over one store.
type Services struct {
	Evaluator     *services.BudgetEvaluator
	Processor     *services.RecurringProcessor
	Catalog       *services.CatalogService
	Transactions  *services.TransactionService
	Budgets       *services.BudgetService
	Payments      *services.PaymentService
	Notifications *services.NotificationService
	Reports       *services.ReportService
}

// Wire builds the services. pub and m may be nil.
func Wire(store ledger.Store, cfg *config.Config, pub services.NotificationPublisher, m *metrics.Metrics) Services {
	evaluator := services.NewBudgetEvaluator(store, store, store,
		services.WithAlertDedup(cfg.BudgetAlertDedup),
		services.WithEvaluatorPublisher(pub),
		services.WithEvaluatorMetrics(m))

	processor := services.NewRecurringProcessor(store,
		services.WithSelection(ledger.Selection(cfg.PaymentSelection)),
		services.WithEvaluator(evaluator),
		services.WithProcessorPublisher(pub),
		services.WithProcessorMetrics(m))

	return Services{
		Evaluator:     evaluator,
		Processor:     processor,
		Catalog:       services.NewCatalogService(store),
		Transactions:  services.NewTransactionService(store, evaluator),
		Budgets:       services.NewBudgetService(store),
		Payments:      services.NewPaymentService(store),
		Notifications: services.NewNotificationService(store),
		Reports:       services.NewReportService(store),
	}
}
