// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/wczasowa/groundlogger/internal/config"
	"github.com/wczasowa/groundlogger/internal/logging"
	"github.com/wczasowa/groundlogger/internal/pipeline"
)

func main() {
	configPath := flag.String("config", "/etc/groundlogger/groundlogger.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	logger, logCloser, lvl := logging.NewDynamicLogger(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.File)
	defer logCloser.Close()

	if err := pipeline.Run(context.Background(), *configPath, cfg, logger, lvl); err != nil {
		logger.Error("fatal error", "error", err)
		os.Exit(1)
	}
}
