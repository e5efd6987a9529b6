package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/breeze-rmm/hdrcap/internal/imaging"
	"github.com/breeze-rmm/hdrcap/internal/logging"
	"github.com/breeze-rmm/hdrcap/internal/workerpool"
	"github.com/breeze-rmm/hdrcap/pkg/capture"
)

var (
	flagBenchDuration time.Duration
	flagBenchWorkers  int
	flagBenchCold     bool
	flagBenchEncode   string
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Measure sustained capture throughput",
	Long: `Opens one session against the chosen target and hammers it with
concurrent grabs for the given duration, then reports frame rate,
bandwidth and worst-case latency. Ctrl-C stops early.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBench(cmd.Context())
	},
}

func init() {
	addTargetFlags(benchCmd)
	benchCmd.Flags().DurationVar(&flagBenchDuration, "duration", 5*time.Second, "how long to run")
	benchCmd.Flags().IntVar(&flagBenchWorkers, "workers", 1, "concurrent capture goroutines")
	benchCmd.Flags().BoolVar(&flagBenchCold, "cold", false, "use the cold capture path instead of grab")
	benchCmd.Flags().StringVar(&flagBenchEncode, "encode", "", "also encode each frame to this format (png, jpg, ...) through the worker pool")
}

func runBench(parent context.Context) error {
	sel, err := buildSelector()
	if err != nil {
		return err
	}
	opts, err := buildOptions()
	if err != nil {
		return err
	}

	var (
		pool   *workerpool.Pool
		encDir string
	)
	if flagBenchEncode != "" {
		if !imaging.SupportedExt(flagBenchEncode) {
			return fmt.Errorf("unsupported encode format %q", flagBenchEncode)
		}
		encDir, err = os.MkdirTemp("", "hdrcap-bench-*")
		if err != nil {
			return err
		}
		defer os.RemoveAll(encDir)
		pool = workerpool.New(cfg.EncodeWorkers, 2*cfg.EncodeWorkers)
	}

	sess, err := capture.Open(sel, opts)
	if err != nil {
		return err
	}
	defer sess.Close()

	hdr, err := sess.IsHDR()
	if err != nil {
		hdr = false
	}
	fmt.Printf("target %s: %dx%d %s, hdr=%v, %d worker(s) for %s\n",
		sess.Target(), sess.Width(), sess.Height(), sess.Format(), hdr,
		flagBenchWorkers, flagBenchDuration)

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, flagBenchDuration)
	defer cancel()

	var frames, byteCount, errCount atomic.Int64
	var encoded, encodeSkips, encodeSeq atomic.Int64
	var maxLatencyNs atomic.Int64

	workers := flagBenchWorkers
	if workers < 1 {
		workers = 1
	}
	var wg sync.WaitGroup
	start := time.Now()
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ctx.Err() == nil {
				t0 := time.Now()
				var f *capture.Frame
				var err error
				if flagBenchCold {
					f, err = sess.Capture()
				} else {
					f, err = sess.Grab()
				}
				if err != nil {
					errCount.Add(1)
					if errors.Is(err, capture.ErrSessionClosed) {
						return
					}
					continue
				}
				lat := time.Since(t0).Nanoseconds()
				frames.Add(1)
				byteCount.Add(int64(len(f.Bytes())))
				for {
					cur := maxLatencyNs.Load()
					if lat <= cur || maxLatencyNs.CompareAndSwap(cur, lat) {
						break
					}
				}
				if pool != nil {
					src := sourceFromFrame(f)
					path := filepath.Join(encDir, fmt.Sprintf("f%d.%s", encodeSeq.Add(1), flagBenchEncode))
					ok := pool.Submit(func() error {
						if err := imaging.Save(path, src); err != nil {
							return err
						}
						os.Remove(path)
						encoded.Add(1)
						return nil
					})
					if !ok {
						// Queue full: capture outruns the encoders.
						encodeSkips.Add(1)
					}
				}
			}
		}()
	}
	wg.Wait()
	elapsed := time.Since(start)

	if pool != nil {
		drainCtx, drainCancel := context.WithTimeout(context.Background(), 30*time.Second)
		encErrs := pool.Wait(drainCtx)
		drainCancel()
		log := logging.FromContext(parent)
		for _, e := range encErrs {
			log.Warn("bench encode", logging.KeyError, e)
		}
		errCount.Add(int64(len(encErrs)))
	}

	n := frames.Load()
	if n == 0 {
		return fmt.Errorf("no frames captured in %s (%d errors)", elapsed.Round(time.Millisecond), errCount.Load())
	}
	fps := float64(n) / elapsed.Seconds()
	mibps := float64(byteCount.Load()) / (1 << 20) / elapsed.Seconds()
	fmt.Printf("%d frames in %s: %.1f fps, %.1f MiB/s, max latency %s, %d errors\n",
		n, elapsed.Round(time.Millisecond), fps, mibps,
		time.Duration(maxLatencyNs.Load()).Round(time.Microsecond), errCount.Load())
	if pool != nil {
		fmt.Printf("encoded %d frames to %s (%d dropped by full queue)\n",
			encoded.Load(), flagBenchEncode, encodeSkips.Load())
	}
	return nil
}
