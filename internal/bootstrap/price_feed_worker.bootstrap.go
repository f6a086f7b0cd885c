package bootstrap

import (
	"context"

	"github.com/krobus00/order-entry/internal/config"
	"github.com/krobus00/order-entry/internal/entity"
	"github.com/krobus00/order-entry/internal/infrastructure"
	"github.com/krobus00/order-entry/internal/repository"
	"github.com/krobus00/order-entry/internal/service/pricefeed"
	"github.com/krobus00/order-entry/internal/util"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func StartPriceFeedWorker(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := infrastructure.NewPostgresConnection(ctx, config.Env.Database["order_entry"])
	util.ContinueOrFatal(err, "postgres order_entry")

	priceCacheRedis, err := infrastructure.NewRedisClient(ctx, config.Env.Redis["price_cache"])
	util.ContinueOrFatal(err, "redis price_cache")

	nc, js, err := infrastructure.NewJetstream(config.Env.NatsJetstream)
	util.ContinueOrFatal(err, "nats jetstream")

	instruments, err := repository.NewInstrumentRepository(db).ListWithFeed(ctx, config.Env.PriceFeed.Symbols)
	util.ContinueOrFatal(err, "load instruments")
	// instruments are only needed at startup
	util.ContinueOrFatal(db.Close())

	byFeed, symbols := feedSymbols(instruments)
	logrus.WithField("symbols", symbols).Info("price feed instruments loaded")

	feed := pricefeed.NewFeed()
	snapshotCache := pricefeed.NewRedisSnapshotCache(priceCacheRedis, config.Env.Redis["price_cache"].TTL)
	snapshotPublisher := pricefeed.NewSnapshotPublisher(js)

	publishers := make([]entity.Publisher, 0)
	publishers = append(publishers, snapshotPublisher)
	for _, v := range publishers {
		err = v.JetstreamEventInit(ctx)
		util.ContinueOrFatal(err, "jetstream publisher")
	}

	source := pricefeed.NewWebsocketSource(config.Env.PriceFeed.WSURL, byFeed, config.Env.PriceFeed.Streams,
		func(ctx context.Context, symbol string, u pricefeed.Update) error {
			snapshot := feed.Apply(u)
			if err := snapshotCache.Set(ctx, snapshot); err != nil {
				logrus.WithField("symbol", symbol).Warnf("failed to cache price snapshot: %v", err)
			}

			return snapshotPublisher.Publish(ctx, snapshot)
		})

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := source.Run(ctx); err != nil {
			logrus.Error(err)
		}
	}()

	wait := gracefulShutdown(ctx, config.Env.GracefulShutdownTimeout, map[string]operation{
		"price feed websocket": func(ctx context.Context) error {
			cancel()
			<-done
			return nil
		},
		"price cache redis": func(ctx context.Context) error {
			return priceCacheRedis.Close()
		},
		"nats connection": func(ctx context.Context) error {
			return infrastructure.CloseJetstream(nc)
		},
	})

	<-wait
}
