package commands

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/pevans/marsfed/marsdata"
	"github.com/pevans/marsfed/scraper"
	"github.com/pevans/marsfed/web"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serves the Mars page and the /scrape route.",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := loadEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.close()
		log := env.log("serve")

		store, err := marsdata.NewStore(env.cfg.Store.DSN)
		if err != nil {
			return err
		}
		defer store.Close()

		server := web.NewServer(store, env.aggregator(scraper.DefaultSources()), env.log("web"))
		srv := &http.Server{
			Addr:    env.cfg.Server.Addr,
			Handler: server.SetupRouter(),
		}

		errCh := make(chan error, 1)
		go func() {
			log.WithField("addr", srv.Addr).Info("starting marsfed server")
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		case <-cmd.Context().Done():
		}

		log.Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	},
}
