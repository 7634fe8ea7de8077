package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"nft-auction-house/internal/api"
	"nft-auction-house/internal/custody"
	"nft-auction-house/internal/db"
	"nft-auction-house/internal/engine"
	"nft-auction-house/internal/ledger"
	"nft-auction-house/internal/splitter"
	"nft-auction-house/internal/ws"
)

func serveCmd(v *viper.Viper, load loader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the marketplace HTTP and WebSocket server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := load()
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			// DB
			store, err := db.Open(cfg.DB.DSN)
			if err != nil {
				return err
			}
			defer store.Close()
			log.Info("connected to database")
			if cfg.DB.AutoMigrate {
				if err := store.Migrate(cfg.DB.Migrations); err != nil {
					return err
				}
				log.Info("migrations applied")
			}

			settings, err := cfg.Market.Settings()
			if err != nil {
				return err
			}
			self, err := cfg.Market.SelfAddress()
			if err != nil {
				return err
			}
			admins, err := cfg.Auth.AdminAddresses()
			if err != nil {
				return err
			}

			bank := ledger.New(log)
			assets := custody.NewRegistry(log)
			hub := ws.NewHub(log)

			eng, err := engine.New(engine.Config{Self: self, Settings: settings}, engine.Deps{
				Custody:  assets,
				Creators: assets,
				Bank:     bank,
				Journal:  store,
				Publish:  hub.Publish,
				Log:      log,
			})
			if err != nil {
				return err
			}

			srv := api.NewServer(api.Deps{
				Accounts:  store,
				Events:    store,
				Engine:    eng,
				Ledger:    bank,
				Assets:    assets,
				Splitters: splitter.NewRegistry(bank, log),
				Hub:       hub,
				Log:       log,
			}, api.Options{
				Secret:         cfg.Auth.Secret,
				TokenTTL:       cfg.Auth.TokenTTL,
				Admins:         admins,
				RequestTimeout: cfg.Server.RequestTimeout,
			})
			httpSrv := &http.Server{Addr: cfg.Server.Addr, Handler: srv.Router()}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				log.Info("listening", zap.String("addr", cfg.Server.Addr))
				if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				sctx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.Server.ShutdownTimeout)
				defer cancel()
				err := httpSrv.Shutdown(sctx)
				eng.Close()
				return err
			})

			err = g.Wait()
			log.Info("server stopped", zap.Error(err))
			return err
		},
	}
	cmd.Flags().String("addr", "", "listen address")
	_ = v.BindPFlag("server.addr", cmd.Flags().Lookup("addr"))
	return cmd
}
