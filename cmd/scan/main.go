// Command scan reads the time-trial results out of a local recording and
// prints them as a table with the summed total time.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/BayesicGaming/MKWTTSpeedruns/internal/classifier"
	"github.com/BayesicGaming/MKWTTSpeedruns/internal/domain/entity"
	"github.com/BayesicGaming/MKWTTSpeedruns/internal/domain/port"
	"github.com/BayesicGaming/MKWTTSpeedruns/internal/infra/config"
	"github.com/BayesicGaming/MKWTTSpeedruns/internal/infra/ffmpeg"
	"github.com/BayesicGaming/MKWTTSpeedruns/internal/infra/gocv"
	"github.com/BayesicGaming/MKWTTSpeedruns/internal/infra/tesseract"
	"github.com/BayesicGaming/MKWTTSpeedruns/internal/report"
	"github.com/BayesicGaming/MKWTTSpeedruns/internal/scan"
	"github.com/BayesicGaming/MKWTTSpeedruns/pkg/logger"
	"go.uber.org/zap"
)

const (
	exitOK = iota
	exitFailure
	exitUsage
	exitInvalidVideo
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "load config: %v\n", err)
		return exitFailure
	}

	fs := flag.NewFlagSet("scan", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: scan [flags] <video.mp4>")
		fs.PrintDefaults()
	}
	csvPath := fs.String("csv", "", "also write the result table to this CSV file")
	decoder := fs.String("decoder", cfg.ScanDecoder, "frame decoder: gocv or ffmpeg")
	logLevel := fs.String("log-level", cfg.LogLevel, "log level")
	lang := fs.String("lang", cfg.OCRLanguage, "tesseract language")
	stepIdle := fs.Float64("step-idle", cfg.ScanStepIdleSec, "seconds to advance after a frame without a new result")
	stepHit := fs.Float64("step-hit", cfg.ScanStepAfterHitSec, "seconds to advance after a new result")
	quiet := fs.Bool("quiet", false, "do not print progress")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return exitUsage
	}
	videoPath := fs.Arg(0)

	log, err := logger.NewConsole(*logLevel)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}
	defer log.Sync()

	var opener port.VideoOpener
	switch *decoder {
	case config.DecoderGoCV:
		opener = gocv.NewVideoOpener(log)
	case config.DecoderFFmpeg:
		opener = ffmpeg.NewFrameExtractor(cfg.FFmpegPath, cfg.FFprobePath, log)
	default:
		fmt.Fprintf(stderr, "unknown decoder %q\n", *decoder)
		return exitUsage
	}

	scanCfg := scan.DefaultConfig()
	scanCfg.StepIdle = *stepIdle
	scanCfg.StepAfterHit = *stepHit
	if err := scanCfg.Validate(); err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	recognizer := tesseract.NewRecognizer()
	defer recognizer.Close()

	driver := scan.NewDriver(
		classifier.New(recognizer, port.OCROptions{Mode: port.PageSegSingleLine, Language: *lang}, log),
		scanCfg, log,
	)

	src, err := opener.Open(ctx, videoPath)
	if err != nil {
		fmt.Fprintf(stderr, "scan %s: %v\n", videoPath, err)
		if errors.Is(err, entity.ErrInvalidVideo) {
			return exitInvalidVideo
		}
		return exitFailure
	}
	defer src.Close()

	var opts scan.Options
	if !*quiet {
		opts.Progress = progressPrinter(stderr)
	}
	table, err := driver.Run(ctx, src, opts)
	if !*quiet {
		fmt.Fprintln(stderr)
	}
	if err != nil {
		fmt.Fprintf(stderr, "scan %s: %v\n", videoPath, err)
		if errors.Is(err, entity.ErrInvalidVideo) {
			return exitInvalidVideo
		}
		return exitFailure
	}

	if err := report.WriteText(stdout, table); err != nil {
		log.Error("failed to print results", zap.Error(err))
		return exitFailure
	}
	if *csvPath != "" {
		if err := writeCSV(*csvPath, table); err != nil {
			log.Error("failed to write csv", zap.String("path", *csvPath), zap.Error(err))
			return exitFailure
		}
		fmt.Fprintf(stdout, "Results saved to %s\n", *csvPath)
	}
	return exitOK
}

// progressPrinter redraws a single status line whenever the whole percentage changes.
func progressPrinter(w io.Writer) scan.ProgressFunc {
	last := -1
	return func(fraction float64, status string) {
		pct := int(fraction * 100)
		if pct == last {
			return
		}
		last = pct
		fmt.Fprintf(w, "\rScanning: %3d%%  %s", pct, status)
	}
}

func writeCSV(path string, table *entity.ResultTable) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := report.WriteCSV(f, table); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
