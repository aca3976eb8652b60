package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/slack-go/slack"
	"github.com/spf13/cobra"

	"inspectmetrics/internal/digest"
	"inspectmetrics/internal/httpx"
	"inspectmetrics/internal/integrations/llm"
	"inspectmetrics/internal/storage/sqlite"
)

func newInitDBCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-db",
		Short: "Create or migrate the SQLite schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := openRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()
			fmt.Fprintf(cmd.OutOrStdout(), "Database ready at %s\n", rt.cfg.DBPath)
			return nil
		},
	}
}

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed <fixture.yaml>",
		Short: "Load a YAML fixture of use cases, files and annotations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := sqlite.LoadFixture(args[0])
			if err != nil {
				return err
			}
			rt, err := openRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()
			n, err := sqlite.ApplyFixture(rt.db, f)
			if err != nil {
				return fmt.Errorf("seed %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d rows from %s\n", n, args[0])
			return nil
		},
	}
}

func newRunner(rt *runtime) *digest.Runner {
	r := &digest.Runner{Source: rt.engine, Config: rt.cfg}
	if rt.cfg.LLMConfigured() {
		r.Narrator = llm.NewNarrator(rt.cfg.AnthropicAPIKey, rt.cfg.LLMModel)
	}
	if rt.cfg.SlackConfigured() {
		r.Slack = slack.New(rt.cfg.SlackBotToken, slack.OptionHTTPClient(httpx.ExternalHTTPClient()))
	}
	return r
}

func newDigestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "digest",
		Short: "Build and publish the quality digest once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := openRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()
			path, err := newRunner(rt).Run(cmd.Context(), time.Now().In(rt.cfg.Location))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Digest written to %s\n", path)
			return nil
		},
	}
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the digest scheduler and expose Prometheus metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			rt, err := openRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			scheduled := digest.StartScheduler(ctx, newRunner(rt))
			if rt.cfg.MetricsAddr == "" {
				if !scheduled {
					return errors.New("nothing to serve: set digest_schedule or metrics_addr")
				}
				log.Println("Metrics endpoint disabled (metrics_addr not set)")
				<-ctx.Done()
				return nil
			}
			return serveMetrics(ctx, rt.cfg.MetricsAddr)
		},
	}
}

func serveMetrics(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Serving metrics on %s/metrics", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		log.Println("Shutting down metrics server")
		return srv.Shutdown(shutdownCtx)
	}
}
