package app

import (
	"github.com/robfig/cron/v3"
	"github.com/talkincode/waconsole/config"
	"github.com/talkincode/waconsole/internal/agent"
	"github.com/talkincode/waconsole/internal/hub"
	"github.com/talkincode/waconsole/internal/session"
	"github.com/talkincode/waconsole/internal/store"
	"gorm.io/gorm"
)

// DBProvider provides database access
type DBProvider interface {
	DB() *gorm.DB
}

// ConfigProvider provides application configuration
type ConfigProvider interface {
	Config() *config.AppConfig
}

// SchedulerProvider provides task scheduling capability
type SchedulerProvider interface {
	Scheduler() *cron.Cron
}

// HubProvider provides the event fan-out hub
type HubProvider interface {
	Hub() *hub.Hub
}

// RegistryProvider provides the session registry
type RegistryProvider interface {
	Registry() *session.Registry
}

// RepoProvider provides the persistence repository
type RepoProvider interface {
	Repo() *store.Repository
}

// RouterProvider provides the agent assignment router
type RouterProvider interface {
	Router() *agent.Router
}

// AppContext combines all provider interfaces for full application context.
// Services should depend on specific providers or this combined interface.
type AppContext interface {
	DBProvider
	ConfigProvider
	SchedulerProvider
	HubProvider
	RegistryProvider
	RepoProvider
	RouterProvider

	// Application lifecycle methods
	MigrateDB(track bool) error
	InitDb()
	DropAll()
}
