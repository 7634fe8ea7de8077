package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"nft-auction-house/internal/config"
	"nft-auction-house/internal/db"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	v := viper.New()
	var cfgFile string

	root := &cobra.Command{
		Use:           "auction-house",
		Short:         "NFT marketplace and auction engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "TOML config file")
	root.PersistentFlags().String("db-dsn", "", "Postgres DSN")
	_ = v.BindPFlag("db.dsn", root.PersistentFlags().Lookup("db-dsn"))

	load := func() (*config.Config, *zap.Logger, error) {
		cfg, err := config.Load(v, cfgFile)
		if err != nil {
			return nil, nil, err
		}
		log, err := cfg.Log.Build()
		if err != nil {
			return nil, nil, err
		}
		return cfg, log, nil
	}

	root.AddCommand(serveCmd(v, load), migrateCmd(load))
	return root
}

type loader func() (*config.Config, *zap.Logger, error)

func migrateCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := load()
			if err != nil {
				return err
			}
			defer log.Sync()

			store, err := db.Open(cfg.DB.DSN)
			if err != nil {
				return err
			}
			defer store.Close()
			if err := store.Migrate(cfg.DB.Migrations); err != nil {
				return err
			}
			log.Info("migrations applied", zap.String("dir", cfg.DB.Migrations))
			return nil
		},
	}
}
