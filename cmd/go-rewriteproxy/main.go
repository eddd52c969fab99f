package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lqqyt2423/go-rewriteproxy/addon"
	"github.com/lqqyt2423/go-rewriteproxy/addon/web"
	"github.com/lqqyt2423/go-rewriteproxy/cachekill"
	"github.com/lqqyt2423/go-rewriteproxy/internal/observability"
	"github.com/lqqyt2423/go-rewriteproxy/proxy"
	"github.com/lqqyt2423/go-rewriteproxy/rewrite"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	cliConfig := new(Config)

	root := &cobra.Command{
		Use:          "go-rewriteproxy",
		Short:        "HTTP proxy rewriting response bodies and killing caches",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cliConfig)
		},
	}
	bindFlags(root.Flags(), cliConfig)

	if err := root.Execute(); err != nil {
		var cerr *rewrite.ConfigurationError
		if errors.As(err, &cerr) {
			log.WithField("reason", cerr.Reason).Fatal(cerr)
		}
		log.Fatal(err)
	}
}

func setupLog(debug int) {
	log.SetLevel(log.InfoLevel)
	log.SetReportCaller(false)
	log.SetOutput(os.Stdout)
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp: true,
	})

	if debug > 0 {
		log.SetLevel(log.DebugLevel)
	}
	if debug == 2 {
		log.SetReportCaller(true)
	}
}

func run(ctx context.Context, cliConfig *Config) error {
	if cliConfig.version {
		fmt.Println("go-rewriteproxy: " + proxy.Version)
		return nil
	}

	config := loadConfig(cliConfig)
	setupLog(config.Debug)

	// the engine is built before anything listens so a bad configuration fails fast
	rewriteConfig, err := config.rewriteConfig()
	if err != nil {
		return err
	}
	engine, err := rewrite.NewEngine(rewriteConfig)
	if err != nil {
		return err
	}

	opts := &proxy.Options{
		Debug:             config.Debug,
		Addr:              config.Addr,
		StreamLargeBodies: config.StreamLargeBodies,
		Upstream:          config.Upstream,
	}
	p, err := proxy.NewProxy(opts)
	if err != nil {
		return err
	}

	log.Infof("go-rewriteproxy version %v\n", p.Version)

	if config.ProxyAuth != "" {
		auth, err := NewDefaultBasicAuth(config.ProxyAuth)
		if err != nil {
			return err
		}
		p.SetAuthProxy(auth.EntryAuth)
	}

	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)
	engine.SetMetrics(metrics)

	scope := &addon.Scope{
		IgnoreHosts: config.IgnoreHosts,
		AllowHosts:  config.AllowHosts,
	}
	cacheKill := addon.NewCacheKill(cachekill.New(config.KeepCache), scope, metrics)
	if !cacheKill.Suppressor.Enabled() {
		log.Info("keep-cache: cache suppression disabled")
	}

	p.AddAddon(&proxy.LogAddon{})
	p.AddAddon(addon.NewReplace(engine, cacheKill))

	webAddon := web.NewWebAddon(config.WebAddr, engine, reg, metrics)
	p.AddAddon(webAddon)
	webAddon.Start()
	defer webAddon.Close()

	if config.Dump != "" {
		dumper, err := addon.NewDumperWithFilename(config.Dump, config.DumpLevel)
		if err != nil {
			return err
		}
		p.AddAddon(dumper)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := p.Shutdown(shutdownCtx); err != nil {
			log.Error(err)
		}
	}()

	if err := p.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
