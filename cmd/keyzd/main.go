// Command keyzd runs the keyz TCP server: load configuration, start
// the store and its background sweeper, bind the listener, and serve
// connections until interrupted.
package main

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	flags "github.com/jessevdk/go-flags"
	"go.uber.org/zap"

	"github.com/viktor111/keyz/internal/config"
	"github.com/viktor111/keyz/internal/logging"
	"github.com/viktor111/keyz/internal/server"
	"github.com/viktor111/keyz/internal/store"
)

type options struct {
	ConfigPath string `long:"config" value-name:"PATH" description:"Path to a TOML configuration file (overrides KEYZ_CONFIG/./keyz.toml lookup)"`
	Host       string `long:"host" value-name:"HOST" description:"Override the configured listen host"`
	Port       uint16 `long:"port" value-name:"PORT" description:"Override the configured listen port"`
	LogLevel   string `long:"log-level" value-name:"LEVEL" default:"info" description:"debug, info, warn, or error"`
	LogFile    string `long:"log-file" value-name:"PATH" description:"Write logs to a rotating file instead of stderr"`
}

func main() {
	var opts options
	if _, err := flags.Parse(&opts); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "keyzd: %v\n", err)
		os.Exit(1)
	}
}

func run(opts options) error {
	log, err := logging.New(logging.Config{Level: opts.LogLevel, FilePath: opts.LogFile})
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer log.Sync()

	cfg, configPath, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if configPath != "" {
		log.Info("loaded configuration", zap.String("path", configPath))
	} else {
		log.Info("no configuration file found; using defaults")
	}

	if opts.Host != "" {
		cfg.Server.Host = opts.Host
	}
	if opts.Port != 0 {
		cfg.Server.Port = opts.Port
	}

	addr, err := cfg.Server.SocketAddr()
	if err != nil {
		return fmt.Errorf("resolving listen address: %w", err)
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("binding listener on %s: %w", addr, err)
	}
	defer listener.Close()

	st := store.NewWithConfig(cfg.Store.ToStore())
	defer st.Close()

	srv := server.New(listener, st, cfg.Protocol.ToProtocol(), log)

	stop := make(chan struct{})
	go srv.Serve(stop)
	log.Info("keyzd listening", zap.String("addr", addr))

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info("shutting down")
	close(stop)
	return nil
}
