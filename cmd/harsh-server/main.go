// Command harsh-server runs the harsh chat server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/MajorBarnulf/harsh/bootstrap"
	"github.com/MajorBarnulf/harsh/config"
	"github.com/MajorBarnulf/harsh/logging"
)

func main() {
	configFile := flag.String("config", "", "configuration file (searched for when empty)")
	writeConfig := flag.String("write-config", "", "write the default configuration to this file and exit")
	flag.Parse()

	if err := run(*configFile, *writeConfig); err != nil {
		fmt.Fprintf(os.Stderr, "harsh-server: %v\n", err)
		os.Exit(1)
	}
}

func run(configFile, writeConfig string) error {
	loader := config.NewLoader()

	if writeConfig != "" {
		if err := loader.WriteDefault(writeConfig); err != nil {
			return err
		}
		fmt.Printf("default configuration written to %s\n", writeConfig)
		return nil
	}

	if configFile == "" {
		found, err := loader.FindConfigFile()
		if err != nil && !errors.Is(err, config.ErrConfigFileNotFound) {
			return err
		}
		configFile = found
	}

	cfg, err := loader.Load(configFile)
	if err != nil {
		return err
	}

	logger, closer, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer closer.Close()

	if configFile != "" {
		logger.WithField("file", configFile).Info("configuration loaded")
		watcher, err := watch(configFile, loader, logger)
		if err != nil {
			logger.WithError(err).Warn("configuration changes will not be picked up")
		} else {
			defer watcher.Stop()
		}
	} else {
		logger.Info("no configuration file found, using defaults")
	}

	app, err := bootstrap.NewApplication(cfg, logger)
	if err != nil {
		return err
	}
	return app.Run(context.Background())
}

// watch applies log level changes at runtime. Other settings need a restart.
func watch(file string, loader *config.Loader, logger *logrus.Logger) (*config.Watcher, error) {
	watcher, err := config.NewWatcher(file, loader, logger)
	if err != nil {
		return nil, err
	}

	watcher.OnConfigChange(func(oldConfig, newConfig *config.Config) {
		if oldConfig.Log.Level == newConfig.Log.Level {
			return
		}
		if err := logging.SetLevel(logger, newConfig.Log.Level); err != nil {
			logger.WithError(err).Warn("ignoring log level change")
			return
		}
		logger.WithField("level", newConfig.Log.Level).Info("log level changed")
	})

	if err := watcher.Start(); err != nil {
		watcher.Stop()
		return nil, err
	}
	return watcher, nil
}
