package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/platinummonkey/synergyhub/pkg/audit"
	"github.com/platinummonkey/synergyhub/pkg/business"
	"github.com/platinummonkey/synergyhub/pkg/config"
	"github.com/platinummonkey/synergyhub/pkg/docstore"
	"github.com/platinummonkey/synergyhub/pkg/invitations"
	"github.com/platinummonkey/synergyhub/pkg/observability"
	"github.com/platinummonkey/synergyhub/pkg/users"
	"github.com/platinummonkey/synergyhub/pkg/workspace"
)

// stores holds every collection the service uses
type stores struct {
	Businesses  docstore.Collection[*business.Document]
	Users       docstore.Collection[*users.User]
	Invitations docstore.Collection[*invitations.Invitation]
	Events      docstore.Collection[*audit.AuditEvent]
	Workspace   workspace.Collections

	probe observability.Probe
	close func(ctx context.Context) error
}

// instrument reports every collection call to metrics
func (s *stores) instrument(metrics *observability.Metrics) {
	if metrics == nil {
		return
	}
	s.Businesses = docstore.Instrument(s.Businesses, "businesses", metrics)
	s.Users = docstore.Instrument(s.Users, "users", metrics)
	s.Invitations = docstore.Instrument(s.Invitations, "invitations", metrics)
	s.Events = docstore.Instrument(s.Events, "audit_events", metrics)
	s.Workspace.Projects = docstore.Instrument(s.Workspace.Projects, "projects", metrics)
	s.Workspace.Tasks = docstore.Instrument(s.Workspace.Tasks, "tasks", metrics)
	s.Workspace.Clients = docstore.Instrument(s.Workspace.Clients, "clients", metrics)
}

func openStores(ctx context.Context, cfg config.StorageConfig, registry *prometheus.Registry) (*stores, error) {
	switch cfg.Type {
	case config.StorageMemory:
		return &stores{
			Businesses:  docstore.NewMemoryCollection[*business.Document](),
			Users:       docstore.NewMemoryCollection[*users.User](),
			Invitations: docstore.NewMemoryCollection[*invitations.Invitation](),
			Events:      docstore.NewMemoryCollection[*audit.AuditEvent](),
			Workspace:   workspace.NewMemoryCollections(),
			close:       func(context.Context) error { return nil },
		}, nil
	case config.StoragePostgres:
		return openSQLStores(ctx, docstore.Postgres, cfg.PostgresURL, cfg.MaxOpenConns, registry)
	case config.StorageSQLite:
		// sqlite serializes writers; one connection avoids SQLITE_BUSY
		return openSQLStores(ctx, docstore.SQLite, cfg.SQLitePath, 1, registry)
	case config.StorageMongo:
		return openMongoStores(ctx, cfg.MongoURI, cfg.MongoDatabase)
	}
	return nil, fmt.Errorf("unsupported storage type: %q", cfg.Type)
}

func openSQLStores(ctx context.Context, dialect docstore.Dialect, dsn string, maxOpen int, registry *prometheus.Registry) (*stores, error) {
	db, err := sql.Open(dialect.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if maxOpen > 0 {
		db.SetMaxOpenConns(maxOpen)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if registry != nil {
		registry.MustRegister(collectors.NewDBStatsCollector(db, "synergyhub"))
	}

	s := &stores{
		probe: observability.SQLProbe(db),
		close: func(context.Context) error { return db.Close() },
	}
	fail := func(err error) (*stores, error) {
		db.Close()
		return nil, err
	}

	if s.Businesses, err = sqlCollection[*business.Document](ctx, db, dialect, "businesses"); err != nil {
		return fail(err)
	}
	if s.Users, err = sqlCollection[*users.User](ctx, db, dialect, "users"); err != nil {
		return fail(err)
	}
	if s.Invitations, err = sqlCollection[*invitations.Invitation](ctx, db, dialect, "invitations"); err != nil {
		return fail(err)
	}
	if s.Events, err = sqlCollection[*audit.AuditEvent](ctx, db, dialect, "audit_events"); err != nil {
		return fail(err)
	}
	if s.Workspace.Projects, err = sqlCollection[*workspace.Project](ctx, db, dialect, "projects"); err != nil {
		return fail(err)
	}
	if s.Workspace.Tasks, err = sqlCollection[*workspace.Task](ctx, db, dialect, "tasks"); err != nil {
		return fail(err)
	}
	if s.Workspace.Clients, err = sqlCollection[*workspace.Client](ctx, db, dialect, "clients"); err != nil {
		return fail(err)
	}
	return s, nil
}

func sqlCollection[T docstore.Entity](ctx context.Context, db *sql.DB, dialect docstore.Dialect, table string) (docstore.Collection[T], error) {
	c, err := docstore.NewSQLCollection[T](db, dialect, table)
	if err != nil {
		return nil, err
	}
	if err := c.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to migrate %s: %w", table, err)
	}
	return c, nil
}

func openMongoStores(ctx context.Context, uri, database string) (*stores, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	probe := observability.MongoProbe(client)
	if err := probe(ctx); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	db := client.Database(database)
	invites := docstore.NewMongoCollection[*invitations.Invitation](db.Collection("invitations"), "business")
	events := docstore.NewMongoCollection[*audit.AuditEvent](db.Collection("audit_events"), "businessId")
	projects := docstore.NewMongoCollection[*workspace.Project](db.Collection("projects"), "business")
	tasks := docstore.NewMongoCollection[*workspace.Task](db.Collection("tasks"), "business")
	clients := docstore.NewMongoCollection[*workspace.Client](db.Collection("clients"), "business")

	for _, ensure := range []func(context.Context) error{
		invites.EnsureIndexes,
		events.EnsureIndexes,
		projects.EnsureIndexes,
		tasks.EnsureIndexes,
		clients.EnsureIndexes,
	} {
		if err := ensure(ctx); err != nil {
			client.Disconnect(ctx)
			return nil, err
		}
	}

	s := &stores{
		Businesses:  docstore.NewMongoCollection[*business.Document](db.Collection("businesses"), ""),
		Users:       docstore.NewMongoCollection[*users.User](db.Collection("users"), ""),
		Invitations: invites,
		Events:      events,
		Workspace: workspace.Collections{
			Projects: projects,
			Tasks:    tasks,
			Clients:  clients,
		},
		probe: probe,
		close: client.Disconnect,
	}
	return s, nil
}
