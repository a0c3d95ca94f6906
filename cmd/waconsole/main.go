package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/talkincode/waconsole/config"
	"github.com/talkincode/waconsole/internal/adminapi"
	"github.com/talkincode/waconsole/internal/app"
	"github.com/talkincode/waconsole/internal/bulk"
	"github.com/talkincode/waconsole/internal/webserver"
	"github.com/talkincode/waconsole/internal/whatsapp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	cfile  = flag.String("c", "/etc/waconsole.yml", "config file")
	initdb = flag.Bool("initdb", false, "drop and recreate all tables, then exit")
	showv  = flag.Bool("v", false, "print version and exit")
)

var version = "dev"

func main() {
	flag.Parse()
	if *showv {
		fmt.Println("waconsole", version)
		return
	}

	cfg := config.LoadConfig(*cfile)
	cfg.InitDirs()

	application := app.NewApplication(cfg)
	application.Init(cfg)
	defer application.Release()

	if *initdb {
		application.InitDb()
		zap.L().Info("database initialized")
		return
	}

	svc, err := whatsapp.New(application)
	if err != nil {
		zap.L().Fatal("whatsapp service init failed", zap.Error(err))
	}

	dispatcher, err := bulk.NewDispatcher(
		application.Registry(),
		svc,
		application.Hub(),
		application.Repo(),
		64,
		time.Duration(cfg.WhatsApp.SendTimeout)*time.Second,
	)
	if err != nil {
		zap.L().Fatal("bulk dispatcher init failed", zap.Error(err))
	}
	application.SetDispatcher(dispatcher)

	webserver.Init(cfg)
	adminapi.Init(application)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return svc.Start(ctx)
	})
	g.Go(func() error {
		return webserver.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		webserver.Shutdown()
		return nil
	})

	zap.L().Info("waconsole started",
		zap.String("version", version),
		zap.String("web", fmt.Sprintf("%s:%d", cfg.Web.Host, cfg.Web.Port)))
	if err := g.Wait(); err != nil {
		zap.L().Error("waconsole stopped", zap.Error(err))
		os.Exit(1)
	}
	zap.L().Info("waconsole stopped")
}
