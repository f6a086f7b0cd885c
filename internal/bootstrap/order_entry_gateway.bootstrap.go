package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/krobus00/order-entry/internal/config"
	"github.com/krobus00/order-entry/internal/entity"
	httpHandler "github.com/krobus00/order-entry/internal/handler/orderentry/http"
	"github.com/krobus00/order-entry/internal/infrastructure"
	"github.com/krobus00/order-entry/internal/repository"
	"github.com/krobus00/order-entry/internal/service/exchange"
	"github.com/krobus00/order-entry/internal/service/notifier"
	"github.com/krobus00/order-entry/internal/service/orderentry"
	"github.com/krobus00/order-entry/internal/service/pricefeed"
	"github.com/krobus00/order-entry/internal/service/submission"
	"github.com/krobus00/order-entry/internal/util"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func StartOrderEntryGateway(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := infrastructure.NewPostgresConnection(ctx, config.Env.Database["order_entry"])
	util.ContinueOrFatal(err, "postgres order_entry")
	infrastructure.StartPostgresHealthCheck(ctx, db, config.Env.Database["order_entry"].PingInterval)

	draftRedis, err := infrastructure.NewRedisClient(ctx, config.Env.Redis["draft"])
	util.ContinueOrFatal(err, "redis draft")

	priceCacheRedis, err := infrastructure.NewRedisClient(ctx, config.Env.Redis["price_cache"])
	util.ContinueOrFatal(err, "redis price_cache")

	nc, js, err := infrastructure.NewJetstream(config.Env.NatsJetstream)
	util.ContinueOrFatal(err, "nats jetstream")

	instrumentRepo := repository.NewInstrumentRepository(db)
	submissionRepo := repository.NewOrderSubmissionRepository(db)
	draftStore := repository.NewRedisDraftStore(draftRedis, config.Env.Submission.DraftTTL)

	feed := pricefeed.NewFeed()
	instruments, err := instrumentRepo.ListWithFeed(ctx, nil)
	util.ContinueOrFatal(err, "load instruments")
	_, symbols := feedSymbols(instruments)

	snapshotCache := pricefeed.NewRedisSnapshotCache(priceCacheRedis, config.Env.Redis["price_cache"].TTL)
	if err := snapshotCache.Warm(ctx, feed, symbols); err != nil {
		logrus.Warnf("failed to warm price snapshots: %v", err)
	}
	snapshotSubscriber := pricefeed.NewSnapshotSubscriber(js, feed)

	venue, err := exchange.NewVenue(config.Env.Venue)
	util.ContinueOrFatal(err, "venue")

	jetstreamSink := notifier.NewJetstreamSink(js)
	dispatcher := submission.NewDispatcher(
		venue,
		notifier.MultiSink{notifier.NewLogSink(), jetstreamSink},
		notifier.NewJetstreamRefresher(js),
		submission.WithJournal(submissionRepo),
		submission.WithGuard(submission.NewLockGuard(draftStore, config.Env.Submission.LockTTL)),
		submission.WithTimeout(config.Env.Submission.Timeout),
	)

	orderEntryService := orderentry.NewService(draftStore, instrumentRepo, feed, dispatcher, submissionRepo, config.Env.Submission.SessionLockTTL)

	publishers := make([]entity.Publisher, 0)
	publishers = append(publishers, jetstreamSink)
	for _, v := range publishers {
		err = v.JetstreamEventInit(ctx)
		util.ContinueOrFatal(err, "jetstream publisher")
	}

	subscribers := make([]entity.Subscriber, 0)
	subscribers = append(subscribers, snapshotSubscriber)
	for _, v := range subscribers {
		err = v.JetstreamEventSubscribe(ctx)
		util.ContinueOrFatal(err, "jetstream subscriber")
	}

	httpMux := http.NewServeMux()
	httpHandler.NewOrderEntryHTTPHandler(orderEntryService).Register(httpMux)

	httpConfig := infrastructure.DefaultHTTPServerConfig()
	if port := config.Env.Port["order_entry_gateway_http"]; port != "" {
		httpConfig.Addr = fmt.Sprintf(":%s", port)
	}
	httpConfig.ShutdownTimeout = config.Env.GracefulShutdownTimeout

	httpServer := infrastructure.NewHTTPServer(httpConfig, httpMux, map[string]infrastructure.ReadinessCheck{
		"database": db.PingContext,
		"redis":    draftStore.Ping,
		"nats": func(ctx context.Context) error {
			if !nc.IsConnected() {
				return errors.New("nats is disconnected")
			}
			return nil
		},
	})

	go func() {
		err := httpServer.Start()
		if err != nil {
			logrus.Error(err)
		}
	}()
	logrus.Info(fmt.Sprintf("http server started on %s", httpConfig.Addr))

	wait := gracefulShutdown(ctx, config.Env.GracefulShutdownTimeout, map[string]operation{
		"http": func(ctx context.Context) error {
			return httpServer.Shutdown(ctx)
		},
		"order entry database": func(ctx context.Context) error {
			cancel()
			return db.Close()
		},
		"draft redis": func(ctx context.Context) error {
			return draftRedis.Close()
		},
		"price cache redis": func(ctx context.Context) error {
			return priceCacheRedis.Close()
		},
		"price snapshot subscriber": func(ctx context.Context) error {
			return snapshotSubscriber.Close()
		},
		"nats connection": func(ctx context.Context) error {
			return infrastructure.CloseJetstream(nc)
		},
	})

	<-wait
}
