// Command sevnupd wires a chord ring, a Redis-backed store, and a pair of
// logging host callbacks (recover always reports the key as handled) into
// a running sevnup.Coordinator. It exists to
// demonstrate end-to-end wiring; real hosts are expected to embed the
// sevnup package directly and supply their own Recover/Release.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Kryndex/sevnup"
	"github.com/Kryndex/sevnup/internal/chordring"
	"github.com/Kryndex/sevnup/internal/redisstore"
)

func main() {
	var (
		listen        = flag.String("listen", "127.0.0.1:7946", "chord TCP transport listen address")
		redisAddr     = flag.String("redis", "127.0.0.1:6379", "redis address")
		keyPrefix     = flag.String("key-prefix", "sevnup", "redis key prefix")
		totalVNodes   = flag.Int("total-vnodes", 1024, "number of vnodes partitioning the key space")
		calmThreshold = flag.Duration("calm-threshold", 500*time.Millisecond, "ring-change debounce window")
	)
	flag.Parse()

	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	trans, err := chordring.InitTCPTransport(*listen, 5*time.Second)
	if err != nil {
		log.Fatal("failed to start chord transport", zap.Error(err))
	}

	chordConf := chordring.DefaultConfig(*listen)
	chordConf.NumVnodes = 8

	ring, err := sevnup.NewChordRing(chordConf, trans)
	if err != nil {
		log.Fatal("failed to create chord ring", zap.Error(err))
	}

	rdb := redis.NewClient(&redis.Options{Addr: *redisAddr})
	store, err := redisstore.New(rdb, *keyPrefix, redisstore.WithLogger(log))
	if err != nil {
		log.Fatal("failed to create redis store", zap.Error(err))
	}

	coordinator, err := sevnup.New(sevnup.Config{
		Ring:          ring,
		Store:         store,
		TotalVNodes:   *totalVNodes,
		CalmThreshold: *calmThreshold,
		Logger:        log,
		Recover: func(key string) (bool, error) {
			log.Info("recover", zap.String("key", key))
			return true, nil
		},
		Release: func(key string) error {
			log.Info("release", zap.String("key", key))
			return nil
		},
	})
	if err != nil {
		log.Fatal("failed to create coordinator", zap.Error(err))
	}
	defer coordinator.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Info("shutting down")
	if err := ring.Shutdown(); err != nil {
		log.Warn("ring shutdown error", zap.Error(err))
	}
}
