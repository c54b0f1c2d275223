// Package app wires configuration into the running service graph.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/fieldtrack/internal/blob"
	"github.com/mamadbah2/fieldtrack/internal/config"
	"github.com/mamadbah2/fieldtrack/internal/docstore"
	"github.com/mamadbah2/fieldtrack/internal/repository/memory"
	"github.com/mamadbah2/fieldtrack/internal/repository/mongodb"
	"github.com/mamadbah2/fieldtrack/internal/repository/sheets"
	"github.com/mamadbah2/fieldtrack/internal/scheduler"
	"github.com/mamadbah2/fieldtrack/internal/server/handlers"
	"github.com/mamadbah2/fieldtrack/internal/server/router"
	"github.com/mamadbah2/fieldtrack/internal/service/activity"
	"github.com/mamadbah2/fieldtrack/internal/service/aggregates"
	"github.com/mamadbah2/fieldtrack/internal/service/auth"
	"github.com/mamadbah2/fieldtrack/internal/service/crops"
	"github.com/mamadbah2/fieldtrack/internal/service/dashboard"
	"github.com/mamadbah2/fieldtrack/internal/service/farmerlist"
	"github.com/mamadbah2/fieldtrack/internal/service/farmers"
	"github.com/mamadbah2/fieldtrack/internal/service/purchases"
	"github.com/mamadbah2/fieldtrack/internal/service/reporting"
	"github.com/mamadbah2/fieldtrack/internal/service/users"
	"github.com/mamadbah2/fieldtrack/internal/service/visits"
	whatsappsvc "github.com/mamadbah2/fieldtrack/internal/service/whatsapp"
	whatsappclient "github.com/mamadbah2/fieldtrack/pkg/clients/whatsapp"
	"github.com/mamadbah2/fieldtrack/pkg/imagecodec"
)

// App is the assembled service.
type App struct {
	Engine    *gin.Engine
	Scheduler *scheduler.Scheduler
	Auth      *auth.Service
	Users     *users.Service

	lists   *farmerlist.Registry
	closers []func(context.Context) error
	logger  *zap.Logger
}

// Options overrides pieces of the graph. Zero values select the configured
// defaults.
type Options struct {
	Store     docstore.Store
	Objects   blob.Store
	WhatsApp  whatsappclient.Client
	Ledger    sheets.Repository
	SkipIndex bool
}

// Build connects storage and constructs every service, handler and job.
func Build(ctx context.Context, cfg *config.Config, opts Options, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{logger: logger}

	store, objects, err := a.openStorage(ctx, cfg, opts)
	if err != nil {
		return nil, err
	}

	waClient := opts.WhatsApp
	if waClient == nil {
		if cfg.WhatsApp.Enabled() {
			waClient = whatsappclient.NewClient(cfg.WhatsApp)
		} else {
			logger.Warn("whatsapp credentials missing, messages will only be logged")
			waClient = whatsappclient.NewLogClient(logger.Named("client.whatsapp"))
		}
	}
	messaging := whatsappsvc.NewMetaWhatsAppService(waClient, logger.Named("svc.whatsapp"))

	ledger := opts.Ledger
	if ledger == nil && cfg.Sheets.Enabled() {
		repo, err := sheets.NewGoogleSheetRepository(ctx, cfg.Sheets, logger.Named("repo.sheets"))
		if err != nil {
			a.Close(ctx)
			return nil, err
		}
		ledger = repo
	}

	loc, err := time.LoadLocation(cfg.Reporting.Timezone)
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("load timezone %q: %w", cfg.Reporting.Timezone, err)
	}

	maintainer := aggregates.NewMaintainer(store, cfg.Aggregates.Mode, logger.Named("svc.aggregates"))
	cropSvc := crops.NewService(store, logger.Named("svc.crops"))
	farmerSvc := farmers.NewService(store, logger.Named("svc.farmers"))
	visitSvc := visits.NewService(store, maintainer, logger.Named("svc.visits"))
	purchaseSvc := purchases.NewService(store, objects, maintainer, cfg.Server.PublicBaseURL, logger.Named("svc.purchases"))
	userSvc := users.NewService(store, logger.Named("svc.users"))
	activitySvc := activity.NewService(visitSvc, purchaseSvc)
	dashboardSvc := dashboard.NewService(farmerSvc, visitSvc, logger.Named("svc.dashboard"))
	reportingSvc := reporting.NewService(dashboardSvc, farmerSvc, messaging, ledger, cfg.Sheets.LedgerRange, loc, logger.Named("svc.reporting"))

	authSvc := auth.NewService(userSvc, messaging, auth.Options{
		CodeTTL:    cfg.Auth.CodeTTL,
		SessionTTL: cfg.Auth.SessionTTL,
		EchoCodes:  cfg.Auth.DevEchoCodes,
	}, logger.Named("svc.auth"))

	a.lists = farmerlist.NewRegistry(farmerSvc, cfg.List.PageSize, cfg.List.SearchDebounce, logger.Named("svc.farmerlist"))
	authSvc.OnSessionEnd(a.lists.Drop)

	a.Auth = authSvc
	a.Users = userSvc

	imageOpts := imagecodec.Options{
		MaxUploadBytes: cfg.Images.MaxUploadBytes,
		MaxPixels:      cfg.Images.MaxPixels,
		MaxDimension:   cfg.Images.MaxDimension,
		TargetBytes:    cfg.Images.TargetBytes,
	}

	a.Engine = router.New(router.Handlers{
		Auth:       handlers.NewAuthHandler(authSvc, logger.Named("handlers.auth")),
		Farmers:    handlers.NewFarmerHandler(farmerSvc, cropSvc, visitSvc, purchaseSvc, activitySvc, logger.Named("handlers.farmers")),
		Visits:     handlers.NewVisitHandler(visitSvc, cropSvc, logger.Named("handlers.visits")),
		Purchases:  handlers.NewPurchaseHandler(purchaseSvc, cropSvc, cfg.Images.MaxUploadBytes, logger.Named("handlers.purchases")),
		Crops:      handlers.NewCropHandler(cropSvc, logger.Named("handlers.crops")),
		Users:      handlers.NewUserHandler(userSvc, logger.Named("handlers.users")),
		FarmerList: handlers.NewFarmerListHandler(a.lists, logger.Named("handlers.farmerlist")),
		Dashboard:  handlers.NewDashboardHandler(dashboardSvc, logger.Named("handlers.dashboard")),
		Media:      handlers.NewMediaHandler(objects, imageOpts, logger.Named("handlers.media")),
		Messages:   handlers.NewMessageHandler(messaging, reportingSvc, logger.Named("handlers.messages")),
	}, logger.Named("router"))

	a.Scheduler, err = scheduler.NewScheduler(cfg.Reporting, reportingSvc, authSvc, logger.Named("scheduler"))
	if err != nil {
		a.Close(ctx)
		return nil, err
	}

	if cfg.Auth.AdminPhone != "" {
		if err := userSvc.EnsureAdmin(ctx, cfg.Auth.AdminPhone, cfg.Auth.AdminName); err != nil {
			a.Close(ctx)
			return nil, fmt.Errorf("seed admin user: %w", err)
		}
		logger.Info("bootstrap admin ensured")
	}

	return a, nil
}

// Close releases the farmer lists and storage connections.
func (a *App) Close(ctx context.Context) {
	if a.lists != nil {
		a.lists.Close()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			a.logger.Error("failed to close resource", zap.Error(err))
		}
	}
	a.closers = nil
}

func (a *App) openStorage(ctx context.Context, cfg *config.Config, opts Options) (docstore.Store, blob.Store, error) {
	if opts.Store != nil {
		objects := opts.Objects
		if objects == nil {
			objects = memory.NewObjectStore()
		}
		return opts.Store, objects, nil
	}

	switch cfg.Store.Driver {
	case config.DriverMemory:
		a.logger.Warn("using in-memory store, data is lost on restart")
		return memory.NewStore(), memory.NewObjectStore(), nil
	default:
		store, err := mongodb.NewStore(ctx, cfg.Store.URI, cfg.Store.DBName, a.logger.Named("repo.mongodb"))
		if err != nil {
			return nil, nil, fmt.Errorf("connect mongodb: %w", err)
		}
		a.closers = append(a.closers, store.Close)

		if !opts.SkipIndex {
			if err := store.EnsureIndexes(ctx); err != nil {
				a.Close(ctx)
				return nil, nil, fmt.Errorf("ensure indexes: %w", err)
			}
		}

		objects, err := mongodb.NewObjectStore(store, cfg.Store.MediaBucket)
		if err != nil {
			a.Close(ctx)
			return nil, nil, fmt.Errorf("open media bucket: %w", err)
		}
		return store, objects, nil
	}
}
