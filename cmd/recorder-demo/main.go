// Command recorder-demo drives a configurable number of producer
// goroutines, each recording four keys for a number of rounds, against a
// recorder-sink process (or in-process consumer) listening on --address.
package main

import (
	"fmt"
	"math"
	"os"
	"sync"

	"github.com/spf13/cobra"

	recorder "github.com/aronnbrant/gorecorder"
	"github.com/aronnbrant/gorecorder/internal/logging"
)

type demoKey int

const (
	keyA demoKey = iota
	keyB
	keyC
	keyD
	demoKeyCount
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		address string
		threads int
		rounds  int
	)

	cmd := &cobra.Command{
		Use:   "recorder-demo",
		Short: "Generate synthetic recorder traffic against a sink",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(address, threads, rounds)
		},
	}

	cmd.Flags().StringVar(&address, "address", "inproc://recorder-demo", "sink address to connect to")
	cmd.Flags().IntVar(&threads, "threads", 4, "number of concurrent producer goroutines")
	cmd.Flags().IntVar(&rounds, "rounds", 100000, "number of record() rounds per producer")

	return cmd
}

func run(address string, threads, rounds int) error {
	logger := logging.Default()

	if err := recorder.Configure(address); err != nil {
		logger.Fatal("configure failed", "error", err)
	}
	defer recorder.Shutdown()

	if err := runWarmup(); err != nil {
		logger.Fatal("warmup recorder failed", "error", err)
	}

	numMessages := threads * 4 * (2*rounds - 1)
	fmt.Printf("Running %d threads, sending 4*%d records -> %d\n", threads, rounds, numMessages)

	var wg sync.WaitGroup
	for i := 0; i < threads; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			if err := runProducer(idx, rounds); err != nil {
				logger.Error("producer failed", "index", idx, "error", err)
			}
		}(i)
	}
	wg.Wait()

	return nil
}

// runWarmup mirrors the original's single-recorder string-value smoke
// test before the concurrent producers start.
func runWarmup() error {
	session, err := recorder.NewSession()
	if err != nil {
		return err
	}
	defer session.Close()

	rec, err := recorder.NewRecorder[demoKey](session, int(demoKeyCount), "warmup", 0)
	if err != nil {
		return err
	}
	if err := rec.Setup(keyA, "test", "m/s", "warmup smoke test"); err != nil {
		return err
	}
	for _, v := range []string{"foppa", "nalle", "fludo"} {
		if err := rec.Record(keyA, v); err != nil {
			return err
		}
	}
	return rec.Flush()
}

func runProducer(index, rounds int) error {
	session, err := recorder.NewSession()
	if err != nil {
		return err
	}
	defer session.Close()

	rec, err := recorder.NewRecorder[demoKey](session, int(demoKeyCount), fmt.Sprintf("producer-%02d", index), int64(index))
	if err != nil {
		return err
	}
	if err := rec.Setup(keyA, fmt.Sprintf("A%02d", index), "m", ""); err != nil {
		return err
	}
	if err := rec.Setup(keyB, fmt.Sprintf("B%02d", index), "ms", ""); err != nil {
		return err
	}
	if err := rec.Setup(keyC, fmt.Sprintf("C%02d", index), "kg", ""); err != nil {
		return err
	}
	if err := rec.Setup(keyD, fmt.Sprintf("D%02d", index), "m/s", ""); err != nil {
		return err
	}

	for j := 0; j < rounds; j++ {
		if err := rec.Record(keyA, int64(j)); err != nil {
			return err
		}
		if err := rec.Record(keyB, 1.0/float64(j)); err != nil {
			return err
		}
		if err := rec.Record(keyC, int64(j*j)); err != nil {
			return err
		}
		if err := rec.Record(keyD, math.Log(float64(j))); err != nil {
			return err
		}
	}
	return rec.Flush()
}
