package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/uom-assistant/uoma-plugin-sdk/bridge/wsbridge"
	"github.com/uom-assistant/uoma-plugin-sdk/catalog"
	"github.com/uom-assistant/uoma-plugin-sdk/internal/logging"
	"github.com/uom-assistant/uoma-plugin-sdk/plugin"
)

var errUsage = errors.New("usage: pluginctl [flags] catalog | check <capability>... | on <event>...")

func main() {
	configPath := flag.String("config", "", "plugin config path (defaults when empty)")
	url := flag.String("url", "", "bridge url override")
	id := flag.String("id", "", "plugin id override")
	flag.Parse()

	logging.ConfigureRuntime()
	cfg, err := loadRuntimeConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pluginctl: %v\n", err)
		os.Exit(1)
	}
	if *url != "" {
		cfg.Bridge.URL = *url
	}
	if *id != "" {
		cfg.PluginID = *id
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, cfg, flag.Args(), os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "pluginctl: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg runtimeConfig, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, rest := args[0], args[1:]
	if cmd == "catalog" {
		printCatalog(out)
		return nil
	}
	if cmd != "check" && cmd != "on" {
		return fmt.Errorf("%w (unknown command %q)", errUsage, cmd)
	}
	if len(rest) == 0 {
		return errUsage
	}

	win, err := wsbridge.Dial(ctx, cfg.Bridge)
	if err != nil {
		return err
	}
	defer win.Close()

	client := plugin.New(win, cfg.Client)
	ok, err := client.Init(cfg.PluginID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s is not a recognized host", cfg.Bridge.URL)
	}
	log.Info().Str("plugin_id", cfg.PluginID).Str("url", cfg.Bridge.URL).Msg("pluginctl: session ready")

	if cmd == "check" {
		return runCheck(ctx, client, rest, out)
	}
	return runOn(ctx, client, rest, out)
}

func runCheck(ctx context.Context, client *plugin.Client, capabilities []string, out io.Writer) error {
	var failed error
	for _, capability := range capabilities {
		granted, err := client.CheckPermission(ctx, capability)
		if err != nil {
			fmt.Fprintf(out, "%s\terror: %v\n", capability, err)
			failed = errors.Join(failed, err)
			continue
		}
		fmt.Fprintf(out, "%s\t%t\n", capability, granted)
	}
	return failed
}

// runOn subscribes to each event and immediately unsubscribes, reporting
// whether the host permitted the subscription.
func runOn(ctx context.Context, client *plugin.Client, events []string, out io.Writer) error {
	var failed error
	for _, event := range events {
		cb := plugin.NewCallback(func(n plugin.Notification) {
			log.Info().Str("event", n.Event).Msg("pluginctl: notification")
		})
		if err := client.On(ctx, event, cb); err != nil {
			fmt.Fprintf(out, "%s\trejected: %v\n", event, err)
			failed = errors.Join(failed, err)
			continue
		}
		fmt.Fprintf(out, "%s\tsubscribed (%d)\n", event, len(client.Subscribers(event)))
		if _, err := client.Off(event, cb); err != nil {
			failed = errors.Join(failed, err)
		}
	}
	return failed
}

func printCatalog(out io.Writer) {
	for _, ns := range catalog.Namespaces() {
		fmt.Fprintf(out, "%s\t%s\n", ns, strings.Join(catalog.Capabilities(ns), " "))
	}
	for _, event := range catalog.EventNames() {
		required, _ := catalog.RequiredCapabilityFor(event)
		fmt.Fprintf(out, "%s\t-> %s\n", event, required)
	}
}
