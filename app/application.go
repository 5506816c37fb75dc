package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ember/handlers"
	"ember/routes"
)

// Application ties the boot engine and the remote management surface to a
// process lifetime.
type Application struct {
	container  *Container
	httpServer *http.Server
	webOnly    bool
}

// NewApplication creates the application around a wired container. With
// webOnly set the boot engine does not run; only the management API is
// served, for running on a workstation against a mounted boot partition.
func NewApplication(container *Container, webOnly bool) *Application {
	return &Application{container: container, webOnly: webOnly}
}

// Start brings up the management API in the background.
func (a *Application) Start() error {
	c := a.container

	handlerContainer := &handlers.Container{
		Catalog:   c.Catalog,
		Lifecycle: c.Lifecycle,
		Registry:  c.Registry,
		BootCfg:   c.BootConfig,
		Engine:    c.Engine,
		Network:   c.Network,
		Events:    c.Events,
		Profile:   c.Profile,
		Config:    c.Config,
		Logger:    c.Logger,
	}
	router := routes.Setup(handlerContainer)

	a.httpServer = &http.Server{
		Addr:    net.JoinHostPort(c.Config.HTTP.Host, c.Config.HTTP.Port),
		Handler: router,
	}

	go func() {
		c.Logger.Info("management api listening", "addr", a.httpServer.Addr)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			c.Logger.Error("http server failed", "error", err)
		}
	}()

	return nil
}

// Stop shuts the API down and releases the container.
func (a *Application) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if a.httpServer != nil {
		if err := a.httpServer.Shutdown(ctx); err != nil {
			a.container.Logger.Warn("error shutting down http server", "error", err)
		}
	}

	if err := a.container.Close(); err != nil {
		a.container.Logger.Warn("error closing container", "error", err)
	}
	return nil
}

// Run starts the API, drives the boot engine to its terminal state and
// shuts down cleanly on SIGINT/SIGTERM. In web-only mode it serves until
// a signal arrives.
func (a *Application) Run() error {
	if err := a.Start(); err != nil {
		return fmt.Errorf("failed to start application: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-quit
		a.container.Logger.Info("shutting down", "signal", sig.String())
		cancel()
	}()

	if a.webOnly {
		a.container.Logger.Info("running in web-only mode")
		<-ctx.Done()
	} else {
		a.container.Engine.Run(ctx)
		a.container.Logger.Info("boot engine finished", "state", a.container.Engine.State())
	}

	return a.Stop()
}
