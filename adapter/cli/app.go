package cli

import (
	engagementQueries "github.com/coachdesk/coachdesk/internal/engagement/application/queries"
	"github.com/coachdesk/coachdesk/internal/subscription/application/commands"
	"github.com/coachdesk/coachdesk/internal/subscription/application/queries"
)

// App holds the CLI application dependencies.
type App struct {
	// Subscription command handlers
	CreateSubscriptionHandler *commands.CreateSubscriptionHandler
	FreezeHandler             *commands.FreezeSubscriptionHandler
	UnfreezeHandler           *commands.UnfreezeSubscriptionHandler
	CancelHandler             *commands.CancelSubscriptionHandler
	RecordUsageHandler        *commands.RecordUsageHandler

	// Subscription query handlers
	GetSubscriptionHandler   *queries.GetSubscriptionHandler
	ListSubscriptionsHandler *queries.ListSubscriptionsHandler
	GetHistoryHandler        *queries.GetHistoryHandler

	// Engagement query handlers
	ComputeEngagementHandler      *engagementQueries.ComputeEngagementHandler
	ComputeEngagementBatchHandler *engagementQueries.ComputeEngagementBatchHandler
}

var app *App

// SetApp sets the global CLI application instance.
func SetApp(a *App) {
	app = a
}

// GetApp returns the global CLI application instance.
func GetApp() *App {
	return app
}
