package legislativeworkflow

import (
	"log/slog"
	"time"

	httpadapter "assembly/contexts/legislature/legislative-workflow/adapters/http"
	"assembly/contexts/legislature/legislative-workflow/adapters/memory"
	"assembly/contexts/legislature/legislative-workflow/application/commands"
	"assembly/contexts/legislature/legislative-workflow/application/queries"
	"assembly/contexts/legislature/legislative-workflow/application/workers"
	"assembly/contexts/legislature/legislative-workflow/domain/entities"
	"assembly/contexts/legislature/legislative-workflow/ports"
)

type Module struct {
	Handler    httpadapter.Handler
	Relay      workers.OutboxRelay
	Dispatcher workers.NotificationDispatcher
	Store      *memory.Store
}

type Dependencies struct {
	Repository    ports.Repository
	UnitOfWork    ports.UnitOfWork
	Members       ports.MemberDirectory
	Notifications ports.NotificationRepository
	Outbox        ports.OutboxRepository
	Dedup         ports.EventDedupStore
	Publisher     ports.EventPublisher
	Subscriber    ports.EventSubscriber
	Clock         ports.Clock
	IDGen         ports.IDGenerator
	Metrics       ports.Metrics

	IdempotencyTTL     time.Duration
	DedupTTL           time.Duration
	OutboxBatchSize    int
	ConsumerGroup      string
	DispatcherDisabled bool
	Logger             *slog.Logger
}

func NewModule(deps Dependencies) Module {
	lifecycle := commands.LifecycleUseCase{
		UnitOfWork:     deps.UnitOfWork,
		Clock:          deps.Clock,
		IDGen:          deps.IDGen,
		Metrics:        deps.Metrics,
		IdempotencyTTL: deps.IdempotencyTTL,
		Logger:         deps.Logger,
	}
	plenary := commands.PlenaryUseCase{
		UnitOfWork: deps.UnitOfWork,
		Clock:      deps.Clock,
		IDGen:      deps.IDGen,
		Metrics:    deps.Metrics,
		Logger:     deps.Logger,
	}
	notifications := commands.NotificationUseCase{
		Notifications: deps.Notifications,
		Members:       deps.Members,
		Clock:         deps.Clock,
		IDGen:         deps.IDGen,
		Metrics:       deps.Metrics,
		Logger:        deps.Logger,
	}
	billQueries := queries.BillQueries{
		Bills:         deps.Repository,
		Members:       deps.Members,
		Notifications: deps.Notifications,
	}
	return Module{
		Handler: httpadapter.Handler{
			Lifecycle:     lifecycle,
			Plenary:       plenary,
			Notifications: notifications,
			Queries:       billQueries,
			Logger:        deps.Logger,
		},
		Relay: workers.OutboxRelay{
			Outbox:    deps.Outbox,
			Publisher: deps.Publisher,
			Clock:     deps.Clock,
			BatchSize: deps.OutboxBatchSize,
			Logger:    deps.Logger,
		},
		Dispatcher: workers.NotificationDispatcher{
			Subscriber:    deps.Subscriber,
			Dedup:         deps.Dedup,
			Notifications: deps.Notifications,
			Members:       deps.Members,
			Clock:         deps.Clock,
			ConsumerGroup: deps.ConsumerGroup,
			DedupTTL:      deps.DedupTTL,
			Disabled:      deps.DispatcherDisabled,
			Logger:        deps.Logger,
		},
	}
}

// NewInMemoryModule backs every storage port with one memory store. The
// remaining fields of deps (publisher, subscriber, metrics, TTLs, logger) are
// used as given; publisher and subscriber may be nil when the caller never
// runs the workers.
func NewInMemoryModule(members []entities.Member, deps Dependencies) Module {
	store := memory.NewStore(members)
	deps.Repository = store
	deps.UnitOfWork = store
	deps.Members = store
	deps.Notifications = store
	deps.Outbox = store
	deps.Dedup = store
	deps.Clock = store
	deps.IDGen = store
	module := NewModule(deps)
	module.Store = store
	return module
}
