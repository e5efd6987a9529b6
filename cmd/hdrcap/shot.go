package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/breeze-rmm/hdrcap/internal/imaging"
	"github.com/breeze-rmm/hdrcap/internal/logging"
	"github.com/breeze-rmm/hdrcap/internal/workerpool"
	"github.com/breeze-rmm/hdrcap/pkg/capture"
)

var (
	flagMonitor int
	flagTitle   string
	flagPID     uint32
	flagHandle  string
	flagProcess string
	flagMatch   int
	flagMode    string
)

// addTargetFlags registers the shared target/mode flags used by shot and
// bench.
func addTargetFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.IntVar(&flagMonitor, "monitor", 0, "monitor index to capture")
	f.StringVar(&flagTitle, "title", "", "capture the window whose title contains this text")
	f.Uint32Var(&flagPID, "pid", 0, "capture a window owned by this process id")
	f.StringVar(&flagHandle, "hwnd", "", "capture the window with this native handle (hex or decimal)")
	f.StringVar(&flagProcess, "process", "", "capture a window of this executable, e.g. notepad.exe")
	f.IntVar(&flagMatch, "match", 0, "pick the Nth best candidate when several windows match")
	f.StringVar(&flagMode, "mode", "", "capture mode: auto, sdr or hdr (default from config)")
}

func buildSelector() (capture.Selector, error) {
	if flagTitle == "" && flagPID == 0 && flagHandle == "" && flagProcess == "" {
		return capture.MonitorSelector(flagMonitor), nil
	}
	sel := capture.WindowSelector{
		Title:   flagTitle,
		PID:     flagPID,
		Process: flagProcess,
		Index:   flagMatch,
	}
	if flagHandle != "" {
		h, err := strconv.ParseUint(flagHandle, 0, 64)
		if err != nil {
			return nil, fmt.Errorf("bad --hwnd %q: %w", flagHandle, err)
		}
		sel.Handle = uintptr(h)
	}
	return sel, nil
}

func buildOptions() (*capture.Options, error) {
	modeStr := flagMode
	if modeStr == "" {
		modeStr = cfg.Mode
	}
	mode, err := capture.ParseMode(modeStr)
	if err != nil {
		return nil, err
	}
	return &capture.Options{
		Mode:         mode,
		SDRWhiteNits: cfg.SDRWhiteNits,
		Diagnostics: func(d capture.Diagnostic) {
			fmt.Fprintf(os.Stderr, "warning: %s\n", d.Message)
		},
	}, nil
}

// sourceFromFrame adapts a captured frame for the encoders, threading the
// configured JPEG quality through.
func sourceFromFrame(f *capture.Frame) imaging.Source {
	src := imaging.Source{
		Width:        f.Width(),
		Height:       f.Height(),
		SDRWhiteNits: f.SDRWhiteNits(),
		JPEGQuality:  cfg.JPEGQuality,
	}
	if f.Format() == capture.FormatRgba16f {
		src.RGBAHalf = f.Bytes()
	} else {
		src.BGRA8 = f.Bytes()
	}
	return src
}

var shotCmd = &cobra.Command{
	Use:   "shot [output files...]",
	Short: "Capture one frame and save it",
	Long: `Captures a single frame and writes it to every given path; the file
extension picks the codec (png, bmp, jpg, tiff, jxr, exr). With no
arguments it writes screenshot.png to the configured output directory.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runShot(args)
	},
}

func init() {
	addTargetFlags(shotCmd)
}

func runShot(outputs []string) error {
	if len(outputs) == 0 {
		outputs = []string{filepath.Join(cfg.OutputDir, "screenshot.png")}
	}
	for _, out := range outputs {
		if !imaging.SupportedExt(imaging.Ext(out)) {
			return fmt.Errorf("unsupported output format %q", out)
		}
	}

	sel, err := buildSelector()
	if err != nil {
		return err
	}
	opts, err := buildOptions()
	if err != nil {
		return err
	}

	start := time.Now()
	frame, err := capture.Screenshot(sel, opts)
	if err != nil {
		return err
	}
	logging.L("cli").Info("captured frame",
		logging.KeyTarget, sel.String(),
		logging.KeyFormat, frame.Format().String(),
		"width", frame.Width(),
		"height", frame.Height(),
		logging.KeyDurationMs, time.Since(start).Milliseconds())

	src := sourceFromFrame(frame)

	if len(outputs) == 1 {
		if err := imaging.Save(outputs[0], src); err != nil {
			return err
		}
		fmt.Printf("wrote %s (%dx%d %s)\n", outputs[0], frame.Width(), frame.Height(), frame.Format())
		return nil
	}

	// One frame, several codecs: encode in parallel.
	pool := workerpool.New(cfg.EncodeWorkers, len(outputs))
	var rejected []error
	for _, out := range outputs {
		out := out
		ok := pool.Submit(func() error {
			if err := imaging.Save(out, src); err != nil {
				return fmt.Errorf("%s: %w", out, err)
			}
			fmt.Printf("wrote %s\n", out)
			return nil
		})
		if !ok {
			rejected = append(rejected, fmt.Errorf("%s: encode queue rejected task", out))
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	return errors.Join(append(pool.Wait(ctx), rejected...)...)
}
