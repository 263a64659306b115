// Package di wires databases, clients, repositories, services and jobs into a
// single Container.
package di

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/finvoice/riskengine/internal/clientdata"
	"github.com/finvoice/riskengine/internal/clients/exchangerate"
	"github.com/finvoice/riskengine/internal/database"
	"github.com/finvoice/riskengine/internal/domain"
	"github.com/finvoice/riskengine/internal/modules/allocation"
	"github.com/finvoice/riskengine/internal/modules/crisis"
	"github.com/finvoice/riskengine/internal/modules/holdings"
	"github.com/finvoice/riskengine/internal/modules/portfolio"
	portfoliohandlers "github.com/finvoice/riskengine/internal/modules/portfolio/handlers"
	"github.com/finvoice/riskengine/internal/modules/quotes"
	"github.com/finvoice/riskengine/internal/modules/risk"
	"github.com/finvoice/riskengine/internal/modules/snapshots"
	"github.com/finvoice/riskengine/internal/modules/stress"
	"github.com/finvoice/riskengine/internal/modules/valuation"
	"github.com/finvoice/riskengine/internal/scheduler"
)

// Container holds all application dependencies. Optional components are nil
// when their backend is not configured.
type Container struct {
	// Databases
	PortfolioDB *database.DB // holdings, risk assessments, snapshots
	CacheDB     *database.DB // quote and exchange rate cache

	// External connections
	RedisClient  *redis.Client
	PostgresPool *pgxpool.Pool

	// Repositories
	ClientDataRepo *clientdata.Repository
	HoldingsRepo   *holdings.Repository
	SnapshotStore  *snapshots.Store

	// Collaborators
	Holdings   domain.HoldingsProvider
	CrisisFeed *crisis.StaticFeed
	KafkaFeed  *crisis.KafkaFeed

	// Services
	QuoteService  *quotes.Service
	RateClient    *exchangerate.Client
	Calculator    *valuation.Calculator
	StressEngine  *stress.Engine
	RiskEngine    *risk.Engine
	Optimizer     *allocation.Optimizer
	Archiver      *snapshots.Archiver
	Engine        *portfolio.Engine
	PortfolioHTTP *portfoliohandlers.Handler

	Scheduler *scheduler.Scheduler
}

// JobInstances holds the registered job instances for manual triggering
type JobInstances struct {
	PortfolioSnapshot   scheduler.Job
	QuoteCacheCleanup   scheduler.Job
	SnapshotArchive     scheduler.Job
	CheckWALCheckpoints scheduler.Job
}

// Databases returns the sqlite databases owned by the container
func (c *Container) Databases() []*database.DB {
	return []*database.DB{c.PortfolioDB, c.CacheDB}
}

// Close releases every connection held by the container. It is safe to call
// on a partially wired container.
func (c *Container) Close() {
	if c.Scheduler != nil {
		c.Scheduler.Stop()
	}
	if c.KafkaFeed != nil {
		_ = c.KafkaFeed.Close()
	}
	if c.RedisClient != nil {
		_ = c.RedisClient.Close()
	}
	if c.PostgresPool != nil {
		c.PostgresPool.Close()
	}
	if c.CacheDB != nil {
		_ = c.CacheDB.Close()
	}
	if c.PortfolioDB != nil {
		_ = c.PortfolioDB.Close()
	}
}
