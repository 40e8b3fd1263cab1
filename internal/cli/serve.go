// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jeranaias/llama-chat/internal/config"
	"github.com/jeranaias/llama-chat/internal/logging"
	"github.com/jeranaias/llama-chat/internal/server"
)

// shutdownTimeout bounds the graceful stop of the web server.
const shutdownTimeout = 10 * time.Second

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// runServe starts the web interface and blocks until ctx is canceled.
func (a *App) runServe(ctx context.Context, args Args) error {
	cfg := a.cfg.Clone()
	if addr := args.Parser().Flag("addr"); addr != "" {
		cfg.Server.Addr = addr
	}

	srv := server.NewServer(a.backend, server.ConfigFrom(cfg)).
		WithLogger(logging.For("server")).
		WithRenderOptions(a.renderOpts...)
	srv.Init(ctx)

	if a.cfgPath != "" {
		err := config.Watch(ctx, a.cfgPath, func(next *config.Config) {
			logging.Init(next.Log.Level, next.Log.Format)
			config.SetGlobal(next)
			a.log.WithFields(logrus.Fields{"path": a.cfgPath, "level": next.Log.Level}).Info("config reloaded")
		}, func(err error) {
			a.log.WithError(err).Warn("config reload failed, keeping previous settings")
		})
		if err != nil {
			a.log.WithError(err).Warn("config watch unavailable")
		}
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(ctx) }()
	fmt.Fprintf(a.errOut, "llama-chat web interface on http://%s\n", srv.Addr())

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return NewCommandError("serve", "shutdown", "Server did not shut down cleanly", err)
	}
	return <-errCh
}
