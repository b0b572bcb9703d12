package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/me/eosched/internal/adaptor"
	"github.com/me/eosched/internal/client"
	"github.com/me/eosched/internal/config"
	"github.com/me/eosched/internal/dispatch"
	"github.com/me/eosched/internal/store"
)

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// openStore opens and migrates the configured database.
func openStore(ctx context.Context) (*store.SQLiteStore, error) {
	st, err := store.NewSQLiteStore(cfg.DBPath, logger)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}

// serve binds one peer to the configured transport and blocks until ctx is
// cancelled. Binding failures are fatal.
func serve(ctx context.Context, factory *client.Factory, peer string, c dispatch.Controller, busObj interface{}) error {
	kind, err := cfg.TransportKind()
	if err != nil {
		return err
	}

	if kind == config.TransportDBus {
		conn, err := factory.Bus()
		if err != nil {
			return err
		}
		a, err := adaptor.NewBusAdaptor(conn, peer, busObj, logger)
		if err != nil {
			return err
		}
		defer a.Close()
		<-ctx.Done()
		logger.Info("shutting down")
		return nil
	}

	a, err := adaptor.NewHTTPAdaptor(cfg, peer, c, logger)
	if err != nil {
		return err
	}
	return a.ListenAndServe(ctx)
}
