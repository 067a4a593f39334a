package bootstrap

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/MajorBarnulf/harsh/config"
	"github.com/MajorBarnulf/harsh/core"
	"github.com/MajorBarnulf/harsh/gateway"
	"github.com/MajorBarnulf/harsh/network"
	"github.com/MajorBarnulf/harsh/security"
	"github.com/MajorBarnulf/harsh/session"
	"github.com/MajorBarnulf/harsh/storage"
)

// Application is a complete harsh server built from a configuration.
type Application struct {
	config    *config.Config
	log       *logrus.Logger
	lifecycle *Lifecycle
	system    *core.System

	storage  *storage.Client
	security *security.Client
	sessions *session.Client
	gateway  *gateway.Client

	tcp       *network.Server
	websocket *network.WSServer

	mutex   sync.Mutex
	running bool
}

// NewApplication wires the services of the server. Nothing runs before Start.
func NewApplication(cfg *config.Config, logger *logrus.Logger) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	app := &Application{
		config:    cfg,
		log:       logger,
		lifecycle: NewLifecycle(logger),
		system:    core.NewSystem(),
	}
	app.tcp = network.NewServer(network.TCPServerConfig(cfg.Network), app.accept, logger)
	if cfg.Network.WebSocket.Enabled {
		app.websocket = network.NewWSServer(network.WebSocketServerConfig(cfg.Network), app.accept, app.healthz, logger)
	}

	if err := app.registerServices(); err != nil {
		return nil, err
	}
	return app, nil
}

func (app *Application) actorOptions(name string) core.ActorOptions {
	opts := core.DefaultActorOptions().WithName(name)
	opts.MailboxSize = app.config.Actor.MailboxSize
	opts.ProcessTimeout = app.config.Actor.ProcessTimeout
	opts.Logger = app.log
	return opts
}

type registration struct {
	service Service
	deps    []string
}

func (app *Application) registerServices() error {
	services := []registration{
		{newActorService("storage", app.spawnStorage), nil},
		{newActorService("security", app.spawnSecurity), []string{"storage"}},
		{newActorService("sessions", app.spawnSessions), nil},
		{newActorService("gateway", app.spawnGateway), []string{"storage", "security", "sessions"}},
		{&funcService{name: "accounts", start: app.seedAdmin}, []string{"storage", "security"}},
		{&tcpService{server: app.tcp}, []string{"gateway", "accounts"}},
	}
	if app.websocket != nil {
		services = append(services, registration{&websocketService{server: app.websocket}, []string{"gateway", "accounts"}})
	}

	for _, s := range services {
		if err := app.lifecycle.Register(s.service, s.deps...); err != nil {
			return err
		}
	}
	return nil
}

func (app *Application) spawnStorage() (core.Remote[storage.Command], error) {
	backend, err := storage.Open(app.config.Storage, app.log)
	if err != nil {
		return core.Remote[storage.Command]{}, err
	}
	st, err := storage.New(backend, app.log)
	if err != nil {
		backend.Close()
		return core.Remote[storage.Command]{}, err
	}
	remote, err := core.SpawnIn[storage.Command](app.system, st, app.actorOptions("storage"))
	if err != nil {
		return remote, err
	}
	app.storage = storage.NewClient(remote)
	return remote, nil
}

func (app *Application) spawnSecurity() (core.Remote[security.Command], error) {
	handler := security.New(app.storage, app.config.Security.Salt, app.log)
	remote, err := core.SpawnIn[security.Command](app.system, handler, app.actorOptions("security"))
	if err != nil {
		return remote, err
	}
	app.security = security.NewClient(remote)
	return remote, nil
}

func (app *Application) spawnSessions() (core.Remote[session.Command], error) {
	remote, err := core.SpawnIn[session.Command](app.system, session.New(app.log), app.actorOptions("sessions"))
	if err != nil {
		return remote, err
	}
	app.sessions = session.NewClient(remote)
	return remote, nil
}

func (app *Application) spawnGateway() (core.Remote[gateway.Command], error) {
	handler := gateway.New(app.sessions, app.storage, app.security, app.log)
	remote, err := core.SpawnIn[gateway.Command](app.system, handler, app.actorOptions("gateway"))
	if err != nil {
		return remote, err
	}
	app.gateway = gateway.NewClient(remote)
	return remote, nil
}

// seedAdmin creates the configured operator account on an empty user table.
func (app *Application) seedAdmin(ctx context.Context) error {
	admin := app.config.Security.Admin
	if admin.Name == "" {
		return nil
	}

	users, err := app.storage.UserList(ctx)
	if err != nil {
		return err
	}
	if len(users) > 0 {
		app.log.WithField("users", len(users)).Debug("user table not empty, skipping admin account")
		return nil
	}

	id, err := app.storage.UserCreate(ctx, admin.Name, "")
	if err != nil {
		return fmt.Errorf("failed to create admin account: %w", err)
	}
	if _, err := app.security.StorePassword(ctx, id, admin.Password); err != nil {
		return fmt.Errorf("failed to store admin password: %w", err)
	}
	if _, err := app.storage.ServerOpAdd(ctx, id); err != nil {
		return fmt.Errorf("failed to grant server operator: %w", err)
	}

	app.log.WithFields(logrus.Fields{"id": uint64(id), "name": admin.Name}).Info("admin account created")
	return nil
}

// accept hands a new connection to the session registry.
func (app *Application) accept(transport network.Transport) {
	timeout := app.config.Actor.ProcessTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if _, err := app.sessions.Add(ctx, transport, app.gateway); err != nil {
		app.log.WithError(err).WithField("addr", transport.RemoteAddr().String()).Warn("failed to register session")
		transport.Close()
	}
}

func (app *Application) healthz() (bool, interface{}) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	healthy, services := app.lifecycle.Healthy(ctx)
	return healthy, map[string]interface{}{
		"services": services,
		"actors":   app.system.Stats(),
	}
}

// Start starts every service. A storage that cannot be opened fails Start.
func (app *Application) Start(ctx context.Context) error {
	app.mutex.Lock()
	defer app.mutex.Unlock()

	if app.running {
		return ErrAlreadyStarted
	}
	if err := app.lifecycle.Start(ctx); err != nil {
		app.system.Shutdown(ctx)
		return err
	}
	app.running = true

	fields := logrus.Fields{"tcp": app.tcp.Addr().String()}
	if app.websocket != nil {
		fields["websocket"] = app.websocket.Addr().String()
	}
	app.log.WithFields(fields).Infof("%s %s started", app.config.App.Name, app.config.App.Version)
	return nil
}

// Stop stops every service in reverse start order.
func (app *Application) Stop(ctx context.Context) error {
	app.mutex.Lock()
	defer app.mutex.Unlock()

	if !app.running {
		return nil
	}
	app.running = false

	err := app.lifecycle.Stop(ctx)
	if shutdownErr := app.system.Shutdown(ctx); err == nil {
		err = shutdownErr
	}
	app.log.Info("server stopped")
	return err
}

// Run starts the server and blocks until ctx is done or the process
// receives SIGINT or SIGTERM.
func (app *Application) Run(ctx context.Context) error {
	if err := app.Start(ctx); err != nil {
		return err
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(signals)

	select {
	case sig := <-signals:
		app.log.WithField("signal", sig.String()).Info("received shutdown signal")
	case <-ctx.Done():
		app.log.Info("context cancelled, shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return app.Stop(shutdownCtx)
}

// TCPAddr returns the bound TCP address once started
func (app *Application) TCPAddr() net.Addr {
	return app.tcp.Addr()
}

// WebSocketAddr returns the bound WebSocket address, nil when disabled
func (app *Application) WebSocketAddr() net.Addr {
	if app.websocket == nil {
		return nil
	}
	return app.websocket.Addr()
}

// Lifecycle returns the service lifecycle
func (app *Application) Lifecycle() *Lifecycle {
	return app.lifecycle
}

// Health reports the health of every service
func (app *Application) Health(ctx context.Context) (bool, map[string]HealthStatus) {
	return app.lifecycle.Healthy(ctx)
}
