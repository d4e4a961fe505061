// Copyright (c) 2025-2026 - for information on the respective copyright owner
// see the NOTICE file and/or the repository https://github.com/fablehost/fabled.
//
// SPDX-License-Identifier: Apache-2.0
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fablehost/fabled/pkg/config"
	"github.com/fablehost/fabled/pkg/container"
	"github.com/fablehost/fabled/pkg/dispatcher"
	"github.com/fablehost/fabled/pkg/drivers"
	"github.com/fablehost/fabled/pkg/extensions"
	l "github.com/fablehost/fabled/pkg/logger"
	"github.com/fablehost/fabled/pkg/network"
	"github.com/fablehost/fabled/pkg/scopes"
	"github.com/fablehost/fabled/pkg/types"
	"github.com/fablehost/fabled/pkg/utils"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"
	mb "github.com/vardius/message-bus"
	"go.uber.org/zap"
)

const (
	// DefaultBusSize is the size of the in-memory message bus carrying
	// the container lifecycle events.
	DefaultBusSize = 10000
	// crashMarker is written under the state path while the daemon runs.
	crashMarker = "fabled.pid"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "path to the configuration file")
	pflag.Parse()

	conf, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "reading configuration failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := l.NewLogger(conf.String("logging.logto"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "creating logger failed: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	logger.Infow("Starting fabled", "version", types.DaemonVersion.String())

	if err := run(conf, logger); err != nil {
		logger.Errorf("Daemon failed: %v", err)
		os.Exit(1)
	}
}

func run(conf *config.Config, logger *zap.SugaredLogger) error {
	bus := mb.New(DefaultBusSize)
	subscribeLifecycleLog(bus, logger)

	registry := drivers.NewRegistry()
	registry.RegisterOutput("local", drivers.NewLocalOutput())
	registry.RegisterInput("local", drivers.NewLocalInput())

	var redisClient redis.UniversalClient
	var redisOutput *drivers.RedisOutput
	needsRedis := conf.String("output.driver") == "redis" ||
		conf.String("input.driver") == "redis" ||
		containsString(mustStringList(conf, "input.listeners"), "redis")
	if needsRedis {
		redisClient = redis.NewClient(&redis.Options{
			Addr:        fmt.Sprintf("%s:%d", conf.String("redis.host"), conf.Int("redis.port")),
			Username:    conf.String("redis.username"),
			Password:    conf.String("redis.password"),
			DialTimeout: conf.Millis("redis.connection_timeout"),
		})
		defer redisClient.Close()
		redisOutput = drivers.NewRedisOutput(redisClient, conf.String("redis.output_channel"), logger)
		registry.RegisterOutput("redis", redisOutput)
		registry.RegisterInput("redis", drivers.NewRedisInput(redisClient))
	}
	output, err := registry.Output(conf.String("output.driver"))
	if err != nil {
		return err
	}
	input, err := registry.Input(conf.String("input.driver"))
	if err != nil {
		return err
	}

	var store *container.Store
	var markerPath string
	autoRestore := conf.Bool("state.auto_restore")
	if conf.Bool("state.enabled") {
		statePath := conf.Path("state.save_path")
		if err := utils.Fio.CreatePath(statePath); err != nil {
			return err
		}
		store = container.NewStore(statePath, conf.String("state.format"), conf.Int("state.max_dumps_per_game"))
		markerPath = filepath.Join(statePath, crashMarker)
		if conf.Bool("state.crash_recovery") && utils.Fio.Exists(markerPath) {
			logger.Warn("Crash marker found, restoring the fleet")
			autoRestore = true
		}
		if err := utils.Fio.WriteFile(markerPath, []byte(fmt.Sprintf("%d\n", os.Getpid()))); err != nil {
			return err
		}
	}

	c, err := container.NewContainer(&container.Config{
		DefinitionsPath: conf.Path("resources.definitions_path"),
		Store:           store,
		Output:          output,
		Input:           input,
		Bus:             bus,
		Logger:          logger,
	})
	if err != nil {
		return err
	}
	if autoRestore && store != nil {
		if err := c.RestoreAll(); err != nil {
			logger.Errorf("Restoring the fleet failed: %v", err)
		}
	}

	d := dispatcher.NewDispatcher()
	builtins := []dispatcher.Scope{
		scopes.NewGlobalScope(conf, c, logger),
		scopes.NewGameScope(c, logger),
	}
	for _, ctrl := range scopes.NewEntityScopes(c, logger) {
		builtins = append(builtins, ctrl)
	}
	for _, scope := range builtins {
		if err := d.Register(scope, true); err != nil {
			return err
		}
	}

	loader := extensions.NewLoader(d, registry, logger)
	load, err := conf.StringList("extensions.load")
	if err != nil {
		return err
	}
	loader.LoadPlugins(conf.Path("extensions.path"), load)

	feedCtx, cancelFeed := context.WithCancel(context.Background())
	defer cancelFeed()
	if containsString(mustStringList(conf, "input.listeners"), "redis") {
		feed := drivers.NewInputFeed(
			redisClient,
			conf.String("redis.input_channel"),
			input,
			conf.Millis("redis.connection_retry_interval"),
			logger,
		)
		go feed.Run(feedCtx)
	}

	addresses, err := conf.StringList("network.listen")
	if err != nil {
		return err
	}
	server := network.NewServer(&network.Config{
		Port:         conf.Int("network.port"),
		Addresses:    addresses,
		ReuseAddress: conf.Bool("network.reuse_address"),
		KeepAlive:    conf.Bool("network.send_keepalive"),
		Handler:      d.Handle,
		Logger:       logger,
	})

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-signals
		logger.Infow("Shutting down", "signal", sig.String())
		server.Stop()
	}()

	err = server.Run(func() {
		logger.Info("Daemon ready")
	})

	if store != nil && conf.Bool("state.dump_on_shutdown") {
		if dumpErr := c.DumpAll(); dumpErr != nil {
			logger.Errorf("Dumping the fleet on shutdown failed: %v", dumpErr)
		}
	}
	cancelFeed()
	c.Close()
	if redisOutput != nil {
		redisOutput.Close()
	}
	if markerPath != "" {
		if rmErr := utils.Fio.Delete(markerPath); rmErr != nil {
			logger.Errorf("Removing the crash marker failed: %v", rmErr)
		}
	}
	logger.Info("Shutdown complete")
	return err
}

// subscribeLifecycleLog mirrors the container lifecycle topics into the
// log.
func subscribeLifecycleLog(bus mb.MessageBus, logger *zap.SugaredLogger) {
	bus.Subscribe(types.TopicGameCreated, func(e types.GameEvent) {
		logger.Infow("Game created", "id", e.GameID, "name", e.Name)
	})
	bus.Subscribe(types.TopicGameDestroyed, func(e types.GameEvent) {
		logger.Infow("Game destroyed", "id", e.GameID, "name", e.Name)
	})
	bus.Subscribe(types.TopicPlayerJoined, func(e types.PlayerEvent) {
		logger.Infow("Player joined", "game", e.GameID, "player", e.Player)
	})
	bus.Subscribe(types.TopicPlayerLeft, func(e types.PlayerEvent) {
		logger.Infow("Player left", "game", e.GameID, "player", e.Player)
	})
	bus.Subscribe(types.TopicFleetDumped, func(n int) {
		logger.Infow("Fleet dumped", "games", n)
	})
	bus.Subscribe(types.TopicFleetRestored, func(n int) {
		logger.Infow("Fleet restored", "games", n)
	})
}

func mustStringList(conf *config.Config, name string) []string {
	list, err := conf.StringList(name)
	if err != nil {
		return nil
	}
	return list
}

func containsString(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}
