// Package cmd implements CLI commands using cobra framework.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"firestige.xyz/dissect/internal/capture"
	"firestige.xyz/dissect/internal/codec"
	"firestige.xyz/dissect/internal/config"
	"firestige.xyz/dissect/internal/decoder"
	"firestige.xyz/dissect/internal/dissect"
	"firestige.xyz/dissect/internal/log"
	"firestige.xyz/dissect/internal/matcher"
	"firestige.xyz/dissect/internal/metrics"
	"firestige.xyz/dissect/internal/reporter"
)

// newBackend opens live capture devices; tests replace it.
var newBackend = capture.NewBackend

// Execute builds the command tree and runs it.
// This is called by main.main().
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "dissect",
		Short: "Live UDP protocol dissector",
		Long: `dissect captures traffic on a network interface, keeps the UDP datagrams
of one application protocol and prints each decoded message on one line,
colored by the address that sent it.

Examples:
  dissect                                  # SIP on port 5060 of the default device
  dissect -i eth0 -p 5080                  # SIP on a non-standard port
  dissect --protocol dns -v                # DNS, also report datagrams that fail to decode
  dissect -f "udp port 9999" -p 9999       # custom capture filter
  dissect -r trace.pcap --color none       # replay a capture file without colors`,
		Version:       "0.1.0",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := log.Init(cfg.Log); err != nil {
				return err
			}
			return runCapture(cfg, log.GetLogger())
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringP("config", "c", "", "config file path")
	flags.StringP("interface", "i", "", "capture device (default: first non-loopback device)")
	flags.StringP("read", "r", "", "read frames from a pcap or pcapng file instead of a device")
	flags.String("protocol", "sip", fmt.Sprintf("protocol to decode %v", codec.Names()))
	flags.Uint16P("port", "p", 0, "UDP port of the protocol (default: the protocol's well-known port)")
	flags.StringP("filter", "f", "", "capture filter replacing \"udp port <port>\"")
	flags.BoolP("verbose", "v", false, "report frames that fail to decode")
	flags.String("color", config.ColorByAddressAndPort.String(), "color by: address-port, address or none")
	flags.Int("snaplen", 65535, "capture snapshot length")
	flags.Bool("promisc", true, "put the device into promiscuous mode")
	flags.String("backend", "pcap", "capture backend: pcap or afpacket (linux)")
	flags.Int("buffer-mb", 8, "afpacket ring buffer size in MB")
	flags.String("log-level", "info", "log level: trace, debug, info, warn, error")
	flags.String("log-format", "pattern", "log format: pattern or prefixed")
	flags.String("log-file", "", "also write log lines to this rotated file")
	flags.String("metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9100")

	rootCmd.AddCommand(newDevicesCmd())
	rootCmd.AddCommand(newConfigCmd())
	return rootCmd
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	return config.Load(path, cmd.Flags(), codec.DefaultPort)
}

func openSource(cfg config.CaptureConfig, logger log.Logger) (capture.Source, error) {
	if cfg.ReadFile != "" {
		return capture.OpenFile(cfg.ReadFile, cfg, logger)
	}
	b, err := newBackend(cfg)
	if err != nil {
		return nil, err
	}
	return capture.Open(b, cfg, logger)
}

func runCapture(cfg *config.Config, logger log.Logger) error {
	c, err := codec.Lookup(cfg.Capture.Protocol)
	if err != nil {
		return err
	}

	src, err := openSource(cfg.Capture, logger)
	if err != nil {
		return err
	}
	defer src.Close()

	dec, err := decoder.New(src.LinkType())
	if err != nil {
		return err
	}

	pcfg := dissect.Config{
		Source:    src,
		Decoder:   dec,
		Matcher:   matcher.New(cfg.Capture.Port, c),
		Reporter:  reporter.New(logger, cfg.Capture.Verbose),
		ColorMode: cfg.Capture.Color,
	}
	if cfg.Metrics.Addr != "" {
		m, srv, err := startMetrics(cfg.Metrics, src, logger)
		if err != nil {
			return err
		}
		defer srv.Stop(context.Background())
		pcfg.Observer = m
	}
	p := dissect.New(pcfg)

	// Closing the source from the signal goroutine makes Next return io.EOF.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)
	done := make(chan struct{})
	go func() {
		select {
		case sig := <-sigs:
			logger.Infof("Received %s, stopping capture", sig)
			src.Close()
		case <-done:
		}
	}()

	err = p.Run()
	close(done)
	logStats(logger, p.Stats(), src)
	if err != nil {
		return fmt.Errorf("capture read failed: %w", err)
	}
	return nil
}

func startMetrics(cfg config.MetricsConfig, src capture.Source, logger log.Logger) (*metrics.Metrics, *metrics.Server, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := metrics.New(reg)
	if session, ok := src.(*capture.Session); ok {
		m.WatchCapture(session.Device(), session.Stats)
	}

	srv := metrics.NewServer(cfg.Addr, cfg.Path, reg, logger)
	if err := srv.Start(); err != nil {
		return nil, nil, err
	}
	return m, srv, nil
}

func logStats(logger log.Logger, st dissect.Stats, src capture.Source) {
	logger.Infof("Processed %d frames: %d matched, %d skipped, %d malformed, %d decode failures",
		st.Frames, st.Matched, st.Skipped, st.Malformed, st.DecodeFailures)

	session, ok := src.(*capture.Session)
	if !ok {
		return
	}
	ks, err := session.Stats()
	if err != nil {
		logger.WithError(err).Warn("Capture statistics unavailable")
		return
	}
	logger.Infof("Capture device %s: %d received, %d dropped, %d dropped by interface",
		session.Device(), ks.Received, ks.Dropped, ks.IfDropped)
}
