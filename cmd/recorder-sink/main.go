// Command recorder-sink runs the data-plane sink and, optionally, the
// control-plane server, printing a throughput summary on shutdown.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/aronnbrant/gorecorder/internal/ctrlplane"
	"github.com/aronnbrant/gorecorder/internal/logging"
	"github.com/aronnbrant/gorecorder/internal/sink"
	"github.com/aronnbrant/gorecorder/internal/store"
	"github.com/aronnbrant/gorecorder/internal/transport"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		address     string
		controlAddr string
		verbose     bool
		csvDir      string
		pinCPU      int
	)

	cmd := &cobra.Command{
		Use:   "recorder-sink",
		Short: "Run the telemetry sink that consumes recorder output",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(address, controlAddr, verbose, csvDir, pinCPU)
		},
	}

	cmd.Flags().StringVar(&address, "address", "inproc://recorder-sink", "address producers connect to")
	cmd.Flags().StringVar(&controlAddr, "control-address", "127.0.0.1:10000", "TCP address for the control-plane server")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "trace every decoded frame")
	cmd.Flags().StringVar(&csvDir, "csv-dir", "", "if set, persist decoded frames as CSV under this directory")
	cmd.Flags().IntVar(&pinCPU, "pin-cpu", -1, "pin the sink loop to this CPU (linux only, -1 disables)")

	return cmd
}

func run(address, controlAddr string, verbose bool, csvDir string, pinCPU int) error {
	logger := logging.Default()

	broker := transport.NewBroker()

	var opts []sink.Option
	if verbose {
		opts = append(opts, sink.WithVerbose(true))
	}
	if pinCPU >= 0 {
		opts = append(opts, sink.WithCPUAffinity(pinCPU))
	}

	var writer store.Writer
	if csvDir != "" {
		w, err := store.NewDirCSVWriter(csvDir)
		if err != nil {
			logger.Fatal("failed to open CSV output", "dir", csvDir, "error", err)
		}
		writer = w
		opts = append(opts, sink.WithWriter(writer))
	}

	s, err := sink.New(broker, address, transport.DefaultOptions(), opts...)
	if err != nil {
		logger.Fatal("failed to bind sink", "address", address, "error", err)
	}

	ctrl, err := ctrlplane.NewServer(broker, controlAddr)
	if err != nil {
		logger.Fatal("failed to start control server", "address", controlAddr, "error", err)
	}
	ctrl.Run()

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- s.Run(ctx) }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	logger.Info("recorder-sink started", "address", address, "control_address", controlAddr)

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
		s.Stop()
		cancel()
		<-runErr
	case err := <-runErr:
		if err != nil {
			logger.Error("sink loop exited with error", "error", err)
		}
		cancel()
	}

	ctrl.Stop()
	s.Close()
	if writer != nil {
		writer.Close()
	}

	printSummary(s.Summary())
	return nil
}

func printSummary(sum sink.Summary) {
	fmt.Printf("Messages:     %d (%s)\n", sum.Messages, sum.Duration.Round(time.Millisecond))
	fmt.Printf("Messages/sec: %.1f (%.1fMiB/sec)\n", sum.MessagesSec, sum.MiBSec)
	for rcid, count := range sum.PerRecorder {
		fmt.Printf("(RECV): %5d:%d\n", rcid, count)
	}
	if sum.OutOfRange > 0 {
		fmt.Printf("(RECV): out-of-range recorder_id frames: %d\n", sum.OutOfRange)
	}
}
