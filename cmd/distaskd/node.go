package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/distask/coordinator"
	"github.com/xraph/distask/dwp"
	"github.com/xraph/distask/executor"
	"github.com/xraph/distask/ext"
	"github.com/xraph/distask/middleware"
	"github.com/xraph/distask/observability"
	"github.com/xraph/distask/store"
	"github.com/xraph/distask/store/memory"
	"github.com/xraph/distask/store/redis"
)

// node is a running cluster member: store, transport, pool, coordinator
// and the HTTP server peers dial.
type node struct {
	logger    *slog.Logger
	store     store.Store
	release   func() error
	transport *dwp.Transport
	coord     *coordinator.Coordinator
	server    *http.Server
}

// startNode joins the cluster with threads execution threads.
func startNode(ctx context.Context, cfg *Config, logger *slog.Logger, threads int, placement coordinator.Placement) (*node, error) {
	listener, err := net.Listen("tcp", cfg.Member.Listen)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", cfg.Member.Listen, err)
	}

	address := cfg.Member.Address
	if address == "" {
		address = listener.Addr().String()
	}
	url := cfg.Member.URL
	if url == "" {
		url = "ws://" + listener.Addr().String() + "/dwp"
	}

	st, release, err := openStore(ctx, cfg.Store, logger)
	if err != nil {
		listener.Close()
		return nil, err
	}

	extensions := ext.NewRegistry(logger)
	extensions.Register(observability.NewMetricsExtension())

	reconnect, err := cfg.reconnectStrategy()
	if err != nil {
		listener.Close()
		release()
		return nil, err
	}

	tr, err := dwp.New(address,
		dwp.WithURL(url),
		dwp.WithClusterName(cfg.Cluster.Name),
		dwp.WithSeeds(cfg.Cluster.Seeds...),
		dwp.WithAuth(authenticator(cfg.Auth)),
		dwp.WithToken(cfg.Auth.Token),
		dwp.WithCodec(dwp.GetCodec(cfg.Member.Codec)),
		dwp.WithHeartbeat(cfg.Cluster.Heartbeat, 3*cfg.Cluster.Heartbeat),
		dwp.WithReconnect(reconnect),
		dwp.WithMembership(st, cfg.Cluster.StaleAfter),
		dwp.WithMemberInfo(threads, map[string]string{"name": cfg.Member.Name}),
		dwp.WithLockProvider(st),
		dwp.WithExtensions(extensions),
		dwp.WithLogger(logger),
	)
	if err != nil {
		listener.Close()
		release()
		return nil, err
	}

	pool := executor.NewPool(
		executor.WithThreads(threads),
		executor.WithQueueSize(cfg.Member.QueueSize),
		executor.WithExtensions(extensions),
		executor.WithLogger(logger),
		executor.WithMiddleware(taskMiddleware(cfg.Member, logger)...),
	)

	coordCfg := cfg.coordinatorConfig()
	coordCfg.ExecutionThreads = threads
	coord, err := coordinator.New(tr, pool,
		coordinator.WithConfig(coordCfg),
		coordinator.WithLogger(logger),
		coordinator.WithTaskRegistry(demoTasks(logger)),
		coordinator.WithPlacement(placement),
	)
	if err != nil {
		listener.Close()
		release()
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/dwp", tr)
	n := &node{
		logger:    logger,
		store:     st,
		release:   release,
		transport: tr,
		coord:     coord,
		server:    &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second},
	}
	go func() {
		if err := n.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", slog.String("error", err.Error()))
		}
	}()

	if err := coord.Start(ctx); err != nil {
		n.close()
		return nil, err
	}
	if err := tr.Start(ctx); err != nil {
		n.close()
		return nil, err
	}
	return n, nil
}

// taskMiddleware is the chain every task runs through, outermost first.
// The pool adds panic recovery itself.
func taskMiddleware(cfg MemberConfig, logger *slog.Logger) []middleware.Middleware {
	mws := []middleware.Middleware{
		middleware.Tracing(),
		middleware.Metrics(),
		middleware.Logging(logger),
	}
	if cfg.TaskTimeout > 0 {
		mws = append(mws, middleware.Timeout(logger, cfg.TaskTimeout))
	}
	return mws
}

// close leaves the cluster and releases every resource.
func (n *node) close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return errors.Join(
		n.coord.Stop(ctx),
		n.server.Shutdown(ctx),
		n.release(),
	)
}

// openStore connects the configured store. release closes the store and
// the client it owns.
func openStore(ctx context.Context, cfg StoreConfig, logger *slog.Logger) (st store.Store, release func() error, err error) {
	switch cfg.Driver {
	case "", "memory":
		st = memory.New()
		release = st.Close
	case "redis":
		client := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})
		st = redis.New(client, redis.WithKeyPrefix(cfg.KeyPrefix), redis.WithLogger(logger))
		release = func() error { return errors.Join(st.Close(), client.Close()) }
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}

	if err := st.Ping(ctx); err != nil {
		release()
		return nil, nil, fmt.Errorf("store ping: %w", err)
	}
	return st, release, nil
}

func authenticator(cfg AuthConfig) dwp.Authenticator {
	if len(cfg.MemberTokens) == 0 && len(cfg.ReadTokens) == 0 {
		return &dwp.NoopAuthenticator{}
	}

	var entries []dwp.APIKeyEntry
	for i, token := range cfg.MemberTokens {
		entries = append(entries, dwp.APIKeyEntry{
			Token:    token,
			Identity: dwp.Identity{Subject: fmt.Sprintf("member-%d", i), Scopes: []string{dwp.ScopeMember}},
		})
	}
	for i, token := range cfg.ReadTokens {
		entries = append(entries, dwp.APIKeyEntry{
			Token:    token,
			Identity: dwp.Identity{Subject: fmt.Sprintf("reader-%d", i), Scopes: []string{dwp.ScopeRead}},
		})
	}
	return dwp.NewAPIKeyAuthenticator(entries...)
}
