package app

import (
	"os"
	"runtime/debug"
	"time"
	_ "time/tzdata"

	"github.com/robfig/cron/v3"
	"github.com/talkincode/waconsole/config"
	"github.com/talkincode/waconsole/internal/agent"
	"github.com/talkincode/waconsole/internal/bulk"
	"github.com/talkincode/waconsole/internal/domain"
	"github.com/talkincode/waconsole/internal/hub"
	"github.com/talkincode/waconsole/internal/notify"
	"github.com/talkincode/waconsole/internal/session"
	"github.com/talkincode/waconsole/internal/store"
	"github.com/talkincode/waconsole/pkg/metrics"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
	"gorm.io/gorm"
)

type Application struct {
	appConfig  *config.AppConfig
	gormDB     *gorm.DB
	sched      *cron.Cron
	eventHub   *hub.Hub
	registry   *session.Registry
	repo       *store.Repository
	router     *agent.Router
	dispatcher *bulk.Dispatcher
}

// Ensure Application implements all interfaces
var (
	_ DBProvider        = (*Application)(nil)
	_ ConfigProvider    = (*Application)(nil)
	_ SchedulerProvider = (*Application)(nil)
	_ HubProvider       = (*Application)(nil)
	_ RegistryProvider  = (*Application)(nil)
	_ RepoProvider      = (*Application)(nil)
	_ RouterProvider    = (*Application)(nil)
	_ AppContext        = (*Application)(nil)
)

func NewApplication(appConfig *config.AppConfig) *Application {
	return &Application{appConfig: appConfig}
}

func (a *Application) Config() *config.AppConfig { return a.appConfig }

func (a *Application) DB() *gorm.DB { return a.gormDB }

// OverrideDB replaces the application's database handle (used in tests).
func (a *Application) OverrideDB(db *gorm.DB) {
	a.gormDB = db
}

func (a *Application) Scheduler() *cron.Cron { return a.sched }

func (a *Application) Hub() *hub.Hub { return a.eventHub }

func (a *Application) Registry() *session.Registry { return a.registry }

func (a *Application) Repo() *store.Repository { return a.repo }

func (a *Application) Router() *agent.Router { return a.router }

// Dispatcher returns the bulk dispatcher, nil before SetDispatcher is called.
func (a *Application) Dispatcher() *bulk.Dispatcher { return a.dispatcher }

// SetDispatcher installs the bulk dispatcher. The dispatcher needs the
// message sender, which is constructed after the application core, so it is
// injected late.
func (a *Application) SetDispatcher(d *bulk.Dispatcher) {
	a.dispatcher = d
}

func (a *Application) Init(cfg *config.AppConfig) {
	loc, err := time.LoadLocation(cfg.System.Location)
	if err != nil {
		zap.S().Error("timezone config error")
	} else {
		time.Local = loc
	}

	// Initialize zap logger
	var zapConfig zap.Config
	if cfg.Logger.Mode == "production" {
		zapConfig = zap.NewProductionConfig()
	} else {
		zapConfig = zap.NewDevelopmentConfig()
	}

	zapConfig.OutputPaths = []string{"stdout"}
	if cfg.Logger.FileEnable {
		zapConfig.OutputPaths = append(zapConfig.OutputPaths, cfg.Logger.Filename)
	}

	// Build logger with file rotation if enabled
	var logger *zap.Logger
	if cfg.Logger.FileEnable {
		lumberJackLogger := &lumberjack.Logger{
			Filename:   cfg.Logger.Filename,
			MaxSize:    64,
			MaxBackups: 7,
			MaxAge:     7,
			Compress:   false,
		}

		core := zapcore.NewTee(
			zapcore.NewCore(
				zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
				zapcore.AddSync(lumberJackLogger),
				zapConfig.Level,
			),
			zapcore.NewCore(
				zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
				zapcore.AddSync(os.Stdout),
				zapConfig.Level,
			),
		)
		logger = zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
	} else {
		logger, err = zapConfig.Build(zap.AddCaller(), zap.AddCallerSkip(1))
		if err != nil {
			panic(err)
		}
	}

	zap.ReplaceGlobals(logger)

	// Initialize metrics with workdir convention
	err = metrics.InitMetrics(cfg.System.Workdir)
	if err != nil {
		zap.S().Warn("Failed to initialize metrics:", err)
	}

	// Initialize database connection
	if cfg.Database.Type == "" {
		cfg.Database.Type = "postgres"
	}
	a.gormDB = getDatabase(cfg.Database)
	zap.S().Infof("Database connection successful, type: %s", cfg.Database.Type)

	// Ensure database schema is migrated before serving anything
	if err := a.MigrateDB(false); err != nil {
		zap.S().Errorf("database migration failed: %v", err)
	}

	go func() {
		time.Sleep(3 * time.Second)
		a.checkDefaultTemplates()
	}()

	a.eventHub = hub.New(cfg.WhatsApp.HubQueueSize)
	a.registry = session.NewRegistry(a.eventHub)
	a.registry.SetFailureHook(notify.NewMailer(cfg.Mail).SessionFailed)

	a.repo, err = store.NewRepository(a.gormDB)
	if err != nil {
		panic(err)
	}
	a.router = agent.NewRouter(a.repo)

	a.initJob()
}

func (a *Application) MigrateDB(track bool) (err error) {
	defer func() {
		if err1 := recover(); err1 != nil {
			if os.Getenv("GO_DEGUB_TRACE") != "" {
				debug.PrintStack()
			}
			err2, ok := err1.(error)
			if ok {
				err = err2
				zap.S().Error(err2.Error())
			}
		}
	}()
	if track {
		if err := a.gormDB.Debug().Migrator().AutoMigrate(domain.Tables...); err != nil {
			zap.S().Error(err)
		}
	} else {
		if err := a.gormDB.Migrator().AutoMigrate(domain.Tables...); err != nil {
			zap.S().Error(err)
		}
	}
	return nil
}

func (a *Application) DropAll() {
	_ = a.gormDB.Migrator().DropTable(domain.Tables...)
}

func (a *Application) InitDb() {
	_ = a.gormDB.Migrator().DropTable(domain.Tables...)
	err := a.gormDB.Migrator().AutoMigrate(domain.Tables...)
	if err != nil {
		zap.S().Error(err)
	}
}

// Release releases application resources
func (a *Application) Release() {
	if a.sched != nil {
		a.sched.Stop()
	}
	if a.dispatcher != nil {
		a.dispatcher.Release()
	}
	_ = metrics.Close()
	_ = zap.L().Sync()
}
