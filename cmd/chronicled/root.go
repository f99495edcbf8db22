// Root command for the chronicled daemon.
package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/chronicle-app/chronicle/internal/cache"
	"github.com/chronicle-app/chronicle/internal/config"
	"github.com/chronicle-app/chronicle/internal/gateway"
	"github.com/chronicle-app/chronicle/internal/identity"
	"github.com/chronicle-app/chronicle/internal/logging"
	"github.com/chronicle-app/chronicle/internal/remote"
	syncpkg "github.com/chronicle-app/chronicle/internal/sync"
	"github.com/chronicle-app/chronicle/internal/sync/queue"
	"github.com/chronicle-app/chronicle/internal/sync/scheduler"
)

const version = "0.3.0"

var flagConfigDir string

var rootCmd = &cobra.Command{
	Use:     "chronicled",
	Short:   "Chronicled reconciles the local journal replica with the cloud record store",
	Version: version,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfigDir, "config-dir", ".", "configuration directory")
}

func run(parent context.Context) error {
	cfg, err := config.Load(flagConfigDir)
	if err != nil {
		return err
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logging.Init(os.Stdout, level)

	store, err := cache.Open(cfg.DataDir)
	if err != nil {
		return err
	}
	defer store.Close()

	q, err := queue.Open(queue.Options{
		Dir:        filepath.Join(cfg.DataDir, "queue"),
		MaxSize:    cfg.Sync.QueueMaxSize,
		MaxRetries: cfg.Sync.QueueRetries,
	})
	if err != nil {
		return err
	}
	defer q.Close()

	if err := q.ResetStale(); err != nil {
		return err
	}

	replica := syncpkg.NewReplica(store)
	if err := replica.Load(); err != nil {
		return err
	}

	client := remote.NewClient(&remote.Config{
		BaseURL:   cfg.Remote.BaseURL,
		AccessKey: cfg.Remote.AccessKey,
		SecretKey: cfg.Remote.SecretKey,
	})
	resolver := identity.NewCloudResolver(client, store)

	engine := syncpkg.NewEngine(replica, client, resolver)
	gw := gateway.New(replica, client, resolver, q)

	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sched := scheduler.New(engine, gw, &scheduler.Config{
		SyncInterval:  cfg.Sync.Interval,
		QueueInterval: cfg.Sync.QueueInterval,
	})
	sched.Start(ctx)
	defer sched.Stop()

	if cfg.Remote.WSURL != "" {
		notifier := remote.NewNotifier(cfg.Remote.WSURL)
		go notifier.Run(ctx)
		go engine.Run(ctx, notifier.Changes())
	}

	// Initial pass so the replica converges without waiting for the ticker.
	if err := engine.Sync(ctx); err != nil {
		logging.Warn("Initial sync failed", map[string]interface{}{"error": err.Error()})
	}

	<-ctx.Done()
	gw.Wait()
	return nil
}
