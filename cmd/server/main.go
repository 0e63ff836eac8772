package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/jrsteele09/crm-session-broker/auth"
	"github.com/jrsteele09/crm-session-broker/internal/config"
	"github.com/jrsteele09/crm-session-broker/internal/logging"
	"github.com/jrsteele09/crm-session-broker/server"
	"github.com/jrsteele09/crm-session-broker/server/authflowrepo"
	"github.com/jrsteele09/crm-session-broker/sessions"
	"github.com/jrsteele09/crm-session-broker/sessions/inmemory"
	"github.com/jrsteele09/crm-session-broker/sessions/mongodb"
	"github.com/jrsteele09/crm-session-broker/sessions/redis"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("Error running server")
	}
	log.Info().Msg("Server stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("Recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.New()
	logging.Setup(c.GetEnv(), c.GetLogLevel())
	displayAppname(c.GetAppName())

	ctx := context.Background()
	broker, err := newBroker(ctx, c)
	if err != nil {
		return err
	}
	sessionRepo, err := newSessionRepo(ctx, c)
	if err != nil {
		return err
	}

	handler, err := server.New(c, broker, sessionRepo, authflowrepo.NewInMemoryRepo(0, authflowrepo.DefaultStateTTL))
	if err != nil {
		return err
	}

	server := &http.Server{Addr: c.GetPort(), Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	errs := make(chan error, 1)
	go func() { errs <- listenAndServe(server) }()

	select {
	case err := <-errs:
		return err
	case <-waitForStopSignal():
	}
	return shutdown(server)
}

func newBroker(ctx context.Context, c config.Config) (*auth.Broker, error) {
	settings := auth.OAuth2Settings{
		ClientID:     c.GetClientID(),
		ClientSecret: c.GetClientSecret(),
		RedirectURI:  c.GetRedirectURI(),
		LoginURL:     c.GetLoginURL(),
		Scopes:       c.GetScopes(),
	}

	options := []auth.BrokerOption{
		auth.WithAPIVersion(c.GetAPIVersion()),
		auth.WithRESTBasePath(c.GetRESTBasePath()),
		auth.WithRequestTimeout(c.GetRequestTimeout()),
	}
	if c.GetNegotiateAPIVersion() {
		options = append(options, auth.WithVersionNegotiator(auth.LatestVersion{}))
	}

	if c.GetOIDCDiscovery() {
		discoverCtx, cancel := context.WithTimeout(ctx, c.GetRequestTimeout())
		defer cancel()
		provider, err := oidc.NewProvider(discoverCtx, c.GetLoginURL())
		if err != nil {
			return nil, fmt.Errorf("oidc discovery for %s: %w", c.GetLoginURL(), err)
		}
		settings.Endpoint = provider.Endpoint()
		settings.Endpoint.AuthStyle = oauth2.AuthStyleInParams
		options = append(options, auth.WithIDTokenVerifier(provider.Verifier(&oidc.Config{ClientID: c.GetClientID()})))
		log.Info().Str("issuer", c.GetLoginURL()).Msg("OIDC discovery enabled")
	}

	return auth.NewBroker(settings, options...)
}

func newSessionRepo(ctx context.Context, c config.Config) (sessions.Repo, error) {
	ttl := c.GetMaxSessionAge()
	switch store := c.GetSessionStore(); store {
	case config.SessionStoreMemory:
		return inmemory.New(c.GetSessionCacheSize(), ttl), nil
	case config.SessionStoreMongoDB:
		database, collection, err := mongodb.Database(ctx)
		if err != nil {
			return nil, err
		}
		repo, err := mongodb.NewRepo(database, collection, ttl)
		if err != nil {
			return nil, err
		}
		return repo, nil
	case config.SessionStoreRedis:
		client, prefix, err := redis.Client()
		if err != nil {
			return nil, err
		}
		return redis.NewRepo(client, prefix, ttl), nil
	default:
		return nil, fmt.Errorf("unknown session store %q", store)
	}
}

func listenAndServe(server *http.Server) error {
	log.Info().Str("addr", server.Addr).Msg("Server listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() <-chan os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	return stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
