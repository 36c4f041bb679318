package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/streamalert-go/streamalert-go/src/cache"
	_ "github.com/streamalert-go/streamalert-go/src/cmd/streamalert/internal"
	"github.com/streamalert-go/streamalert-go/src/cmd/streamalert/internal/flag"
	"github.com/streamalert-go/streamalert-go/src/configs"
	"github.com/streamalert-go/streamalert-go/src/consts"
	"github.com/streamalert-go/streamalert-go/src/log"
	"github.com/streamalert-go/streamalert-go/src/notify"
	"github.com/streamalert-go/streamalert-go/src/pkg/events"
	"github.com/streamalert-go/streamalert-go/src/pkg/ratelimit"
	"github.com/streamalert-go/streamalert-go/src/pkg/sentry"
	"github.com/streamalert-go/streamalert-go/src/platform"
	"github.com/streamalert-go/streamalert-go/src/scheduler"
	"github.com/streamalert-go/streamalert-go/src/servers"
	"github.com/streamalert-go/streamalert-go/src/store"
)

func getConfig() (*configs.Config, error) {
	var config *configs.Config
	if *flag.Conf != "" {
		c, err := configs.NewConfigWithFile(*flag.Conf)
		if err != nil {
			return nil, err
		}
		config = c
	} else if c, err := getConfigBesidesExecutable(); err == nil {
		config = c
	} else {
		config = flag.GenConfigFromFlags()
	}
	return config, config.Verify()
}

func getConfigBesidesExecutable() (*configs.Config, error) {
	exePath, err := os.Executable()
	if err != nil {
		return nil, err
	}
	return configs.NewConfigWithFile(filepath.Join(filepath.Dir(exePath), "config.yml"))
}

func main() {
	flag.Parse()
	_ = godotenv.Load()

	config, err := getConfig()
	if err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
	configs.SetCurrentConfig(config)

	logger := log.New()
	logger.WithFields(map[string]interface{}{
		"version":    consts.AppVersion,
		"git_hash":   consts.GitHash,
		"platforms":  len(platform.Platforms()),
		"policy":     string(config.DetectionPolicy),
		"interval_s": config.Interval,
	}).Info("StreamAlert-go started")

	dsn := config.Sentry.DSN
	if dsn == "" {
		dsn = os.Getenv("SENTRY_DSN")
	}
	if err := sentry.Init(dsn, config.Sentry.Environment, consts.AppVersion); err != nil {
		logger.WithError(err).Warn("failed to initialize sentry")
	}

	st, err := store.NewSQLiteStore(config.DatabasePath)
	if err != nil {
		logger.WithError(err).Fatal("failed to open entity store")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ed := events.NewDispatcher()
	notify.RegisterEventListeners(ed)

	sched := scheduler.New(ctx, st, cache.New(), ed, ratelimit.New())
	if err := sched.Start(); err != nil {
		logger.WithError(err).Fatal("failed to start scheduler")
	}

	var server *servers.Server
	if config.RPC.Enable {
		server = servers.NewServer(st)
		if err := server.Start(); err != nil {
			logger.WithError(err).Fatal("failed to start http server")
		}
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	logger.WithField("signal", <-c).Info("shutting down")

	cancel()
	if server != nil {
		server.Close(context.Background())
	}
	sched.Close()
	if err := st.Close(); err != nil {
		logger.WithError(err).Error("failed to close entity store")
	}
	sentry.Flush(2 * time.Second)
}
