// Command tropic01d serves a functional TROPIC01 model over TCP. A remote
// host drives the model's SPI bus through the tagged control protocol spoken
// by pkg/remote.
package main

import (
	"crypto/rand"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/peterbourgon/ff/v3"
	"github.com/pion/logging"

	"github.com/backkem/tropic01/pkg/device"
	"github.com/backkem/tropic01/pkg/remote"
)

const defaultListenAddr = "127.0.0.1:28992"

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "tropic01d: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("tropic01d", flag.ExitOnError)
	var (
		listenAddr = fs.String("listen", defaultListenAddr, "TCP address to listen on")
		configPath = fs.String("config", "", "path to a TOML model configuration")
		logLevel   = fs.String("log-level", "info", "log level (disabled, error, warn, info, debug, trace)")
	)
	if err := ff.Parse(fs, args, ff.WithEnvVarPrefix("TROPIC01")); err != nil {
		return err
	}

	level, err := parseLogLevel(*logLevel)
	if err != nil {
		return err
	}
	loggerFactory := logging.NewDefaultLoggerFactory()
	loggerFactory.DefaultLogLevel = level
	log := loggerFactory.NewLogger("tropic01d")

	snap, err := loadSnapshot(*configPath)
	if err != nil {
		return err
	}
	newDevice := func() (*device.Device, error) {
		cfg, err := snap.DeviceConfig()
		if err != nil {
			return nil, err
		}
		cfg.Rand = rand.Reader
		cfg.LoggerFactory = loggerFactory
		return device.NewDevice(cfg)
	}

	srv, err := remote.NewServer(remote.ServerConfig{
		NewDevice:     newDevice,
		LoggerFactory: loggerFactory,
	})
	if err != nil {
		return err
	}

	lis, err := net.Listen("tcp", *listenAddr)
	if err != nil {
		return err
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		log.Infof("received %s, shutting down", sig)
		lis.Close()
	}()

	log.Infof("serving model on %s", lis.Addr())
	return srv.Serve(lis)
}

func parseLogLevel(name string) (logging.LogLevel, error) {
	switch name {
	case "disabled":
		return logging.LogLevelDisabled, nil
	case "error":
		return logging.LogLevelError, nil
	case "warn":
		return logging.LogLevelWarn, nil
	case "info":
		return logging.LogLevelInfo, nil
	case "debug":
		return logging.LogLevelDebug, nil
	case "trace":
		return logging.LogLevelTrace, nil
	default:
		return logging.LogLevelDisabled, fmt.Errorf("unknown log level %q", name)
	}
}
