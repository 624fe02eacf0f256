package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/uom-assistant/uoma-plugin-sdk/internal/host"
	"github.com/uom-assistant/uoma-plugin-sdk/internal/logging"
)

func main() {
	configPath := flag.String("config", "cmd/hostctl/config.toml", "host config path")
	addr := flag.String("addr", "", "listen address override")
	flag.Parse()

	logging.ConfigureRuntime()
	if err := run(*configPath, *addr); err != nil {
		fmt.Fprintf(os.Stderr, "hostctl: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, addr string) error {
	cfg, grants, err := loadServiceConfig(configPath)
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.ListenAddr = addr
	}
	if len(grants.Default) == 0 && len(grants.Plugins) == 0 {
		log.Warn().Str("config", configPath).Msg("hostctl: no grants configured, every check will be denied")
	}

	srv, err := host.NewServer(cfg, host.NewGrantPolicy(grants))
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return srv.Run(ctx)
}
