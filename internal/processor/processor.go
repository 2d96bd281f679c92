// Package processor orchestrates the per-recording pipeline: quality gates,
// index computation, SPI filtering, and writing the augmented copy. A
// Processor handles one file at a time; the Runner fans processors out
// across worker goroutines, one recording per task.
package processor

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/nistring/VitalRecoder-ANI/internal/ani"
	"github.com/nistring/VitalRecoder-ANI/internal/ecg"
	"github.com/nistring/VitalRecoder-ANI/internal/events"
	"github.com/nistring/VitalRecoder-ANI/internal/prep"
	"github.com/nistring/VitalRecoder-ANI/internal/spi"
	"github.com/nistring/VitalRecoder-ANI/internal/store"
	"github.com/nistring/VitalRecoder-ANI/internal/vital"
	"github.com/nistring/VitalRecoder-ANI/pkg/config"
	apperrors "github.com/nistring/VitalRecoder-ANI/pkg/errors"
	"github.com/nistring/VitalRecoder-ANI/pkg/logger"
	"github.com/nistring/VitalRecoder-ANI/pkg/metrics"
	"github.com/nistring/VitalRecoder-ANI/pkg/redis"
)

const (
	cleanECGTrack = "Intellivue/ECG_II_clean"
	cleanPPGTrack = "Intellivue/PLETH_clean"
	aniTrack      = "ANIMonitor2/custom_ANI"
	spiTrack      = "ANIMonitor2/custom_SPI"
)

// Options holds the Processor's optional collaborators. Nil fields disable
// the corresponding side effect.
type Options struct {
	Detector  ecg.Detector
	SPIFilter spi.Filter
	Results   *store.ResultStore
	Cache     *redis.Client
	Events    *events.Publisher
	Metrics   *metrics.Metrics
}

// Processor runs the full pipeline for single recordings.
type Processor struct {
	cfg  *config.Config
	opts Options
}

// New creates a Processor. A default R-peak detector is supplied when none
// is configured.
func New(cfg *config.Config, opts Options) *Processor {
	if opts.Detector == nil {
		opts.Detector = ecg.NewQRSDetector()
	}
	return &Processor{cfg: cfg, opts: opts}
}

// ProcessFile processes one recording and writes the augmented copy into
// the output directory. Gate refusals and too-short recordings skip the
// affected index but never fail the file; only I/O errors do.
func (p *Processor) ProcessFile(ctx context.Context, path string) error {
	name := filepath.Base(path)
	ctx = logger.WithRecording(ctx, name)
	log := logger.FromContext(ctx)
	started := time.Now()

	if skipped, err := p.alreadyProcessed(ctx, path); err != nil {
		log.Warn("skip-cache lookup failed, processing anyway", "error", err)
	} else if skipped {
		log.Info("recording already processed, skipping")
		p.countOutcome("skipped")
		return nil
	}
	p.inFlight(1)
	defer p.inFlight(-1)

	rec, err := vital.Open(path)
	if err != nil {
		p.finish(ctx, result{recording: name, err: err}, started)
		return apperrors.NewProcess(name, "open", err)
	}

	res := result{recording: name, duration: rec.Duration()}

	aniSummary, err := p.runANI(ctx, rec, &res)
	if err != nil {
		p.finish(ctx, result{recording: name, err: err}, started)
		return apperrors.NewProcess(name, "ani", err)
	}
	if err := p.runSPI(ctx, rec, &res); err != nil {
		p.finish(ctx, result{recording: name, err: err}, started)
		return apperrors.NewProcess(name, "spi", err)
	}

	outPath := filepath.Join(p.cfg.Pipeline.OutputDir, name)
	if err := os.MkdirAll(p.cfg.Pipeline.OutputDir, 0o755); err != nil {
		p.finish(ctx, result{recording: name, err: err}, started)
		return apperrors.NewProcess(name, "save", err)
	}
	if err := rec.Save(outPath); err != nil {
		p.finish(ctx, result{recording: name, err: err}, started)
		return apperrors.NewProcess(name, "save", err)
	}
	res.output = outPath

	p.markProcessed(ctx, path)
	p.finish(ctx, res, started)
	log.Info("recording processed",
		"output", outPath,
		"duration_s", res.duration,
		"ani_windows_failed", res.failedWindows,
		"ani_mean", aniSummary,
		"elapsed", time.Since(started).Round(time.Millisecond),
	)
	return nil
}

type result struct {
	recording     string
	output        string
	duration      float64
	aniMean       *float64
	failedWindows int
	spiMean       *float64
	spiMin        *float64
	err           error
	partial       bool
}

// runANI gates the ECG channel, attaches the cleaned waveform, and computes
// the per-second index sequence. Returns the mean index for logging, NaN
// when it was not computed. Gate refusals and too-short recordings skip the
// index; only unexpected failures (cancellation included) return an error.
func (p *Processor) runANI(ctx context.Context, rec *vital.Recording, res *result) (float64, error) {
	log := logger.FromContext(ctx)
	stageStart := time.Now()
	defer p.observeStage("ani", stageStart)

	raw, err := rec.ToSamples(p.cfg.ECGGate.Track, p.cfg.Signal.SampleRate)
	if err != nil {
		if apperrors.Fatal(err) {
			return math.NaN(), err
		}
		log.Warn("ECG track unavailable", "track", p.cfg.ECGGate.Track, "error", err)
		p.countGateReject("ecg", "missing")
		res.partial = true
		return math.NaN(), nil
	}

	_, ecgClean, err := prep.ECG(raw, p.cfg.ECGGate, p.cfg.Signal.SampleRate)
	if err != nil {
		if apperrors.Fatal(err) {
			return math.NaN(), err
		}
		log.Warn("ECG rejected by quality gate", "error", err)
		p.countGateReject("ecg", gateReason(err))
		res.partial = true
		return math.NaN(), nil
	}

	rec.RemoveTrack(cleanECGTrack)
	rec.AddTrack(&vital.Track{
		Name:    cleanECGTrack,
		Unit:    "mV",
		Rate:    p.cfg.Signal.SampleRate,
		MinDisp: p.cfg.ECGGate.MinAmplitude,
		MaxDisp: p.cfg.ECGGate.MaxAmplitude,
		Records: vital.ChunkSamples(ecgClean, p.cfg.Signal.SampleRate),
	})

	scores, windows, err := ani.Compute(ctx, ecgClean, p.opts.Detector, p.cfg.Signal)
	if err != nil {
		if apperrors.Fatal(err) {
			return math.NaN(), err
		}
		log.Warn("ANI not computed", "error", err)
		res.partial = true
		return math.NaN(), nil
	}

	failed := 0
	for _, w := range windows {
		if w.Failed() {
			failed++
		}
	}
	res.failedWindows = failed
	p.countWindows(len(windows)-failed, failed)

	mean := meanFloat32(scores)
	res.aniMean = &mean
	p.observeIndex("ani", scores)

	rec.RemoveTrack(aniTrack)
	rec.AddTrack(&vital.Track{
		Name:    aniTrack,
		Rate:    1,
		MinDisp: 0,
		MaxDisp: 100,
		Records: []vital.Record{{
			// The first window only completes WindowSeconds into the
			// recording, so the sequence is anchored there.
			Offset: float64(p.cfg.Signal.WindowSeconds),
			Values: scores,
		}},
	})
	return mean, nil
}

// runSPI gates the PPG channel, attaches the cleaned waveform, and, when
// the capability is enabled, runs the configured SPI filter and attaches
// the bridged per-second series. As with runANI, gate refusals skip the
// index and only unexpected failures return an error.
func (p *Processor) runSPI(ctx context.Context, rec *vital.Recording, res *result) error {
	log := logger.FromContext(ctx)
	stageStart := time.Now()
	defer p.observeStage("spi", stageStart)

	raw, err := rec.ToSamples(p.cfg.PPGGate.Track, p.cfg.Signal.SampleRate)
	if err != nil {
		if apperrors.Fatal(err) {
			return err
		}
		log.Warn("PPG track unavailable", "track", p.cfg.PPGGate.Track, "error", err)
		p.countGateReject("ppg", "missing")
		res.partial = true
		return nil
	}

	_, ppgClean, err := prep.PPG(raw, p.cfg.PPGGate)
	if err != nil {
		if apperrors.Fatal(err) {
			return err
		}
		log.Warn("PPG rejected by quality gate", "error", err)
		p.countGateReject("ppg", gateReason(err))
		res.partial = true
		return nil
	}

	rec.RemoveTrack(cleanPPGTrack)
	rec.AddTrack(&vital.Track{
		Name:    cleanPPGTrack,
		Rate:    p.cfg.Signal.SampleRate,
		MinDisp: p.cfg.PPGGate.MinAmplitude,
		MaxDisp: p.cfg.PPGGate.MaxAmplitude,
		Records: vital.ChunkSamples(ppgClean, p.cfg.Signal.SampleRate),
	})

	if p.opts.SPIFilter == nil {
		return nil
	}

	// The filter consumes a working PLETH track and emits a raw SPI track;
	// both are replaced by the bridged result afterwards.
	rec.RemoveTrack("PLETH")
	rec.AddTrack(&vital.Track{
		Name:    "PLETH",
		Rate:    p.cfg.Signal.SampleRate,
		MinDisp: 0,
		MaxDisp: 100,
		Color:   p.cfg.SPI.Color,
		Records: vital.ChunkSamples(ppgClean, p.cfg.Signal.SampleRate),
	})
	defer rec.RemoveTrack("PLETH")

	if err := p.opts.SPIFilter.Run(ctx, rec, p.cfg.Signal.SampleRate); err != nil {
		if apperrors.Fatal(err) {
			return err
		}
		log.Warn("SPI filter failed", "filter", p.opts.SPIFilter.Name(), "error", err)
		res.partial = true
		return nil
	}

	spiDense, err := rec.ToSamples("SPI", 1)
	rec.RemoveTrack("SPI")
	if err != nil {
		log.Warn("SPI output track missing after filter run", "error", err)
		res.partial = true
		return nil
	}
	series := make([]float32, len(spiDense))
	for i, v := range spiDense {
		series[i] = float32(v)
	}
	series = spi.BridgeGaps(series)

	mean, min := spi.Summary(series)
	if math.IsNaN(mean) {
		log.Warn("all SPI values missing, interpolation not possible")
		res.partial = true
		return nil
	}
	res.spiMean = &mean
	res.spiMin = &min
	p.observeIndex("spi", series)

	rec.RemoveTrack(spiTrack)
	rec.AddTrack(&vital.Track{
		Name:    spiTrack,
		Rate:    1,
		MinDisp: 0,
		MaxDisp: 100,
		Records: []vital.Record{{Offset: 0, Values: series}},
	})
	return nil
}

// finish records the outcome everywhere it is consumed: metrics, the result
// store, and the completion event stream.
func (p *Processor) finish(ctx context.Context, res result, started time.Time) {
	p.observeStage("total", started)
	switch {
	case res.err != nil:
		p.countOutcome("error")
	case res.partial:
		p.countOutcome("partial")
	default:
		p.countOutcome("ok")
	}

	errText := ""
	if res.err != nil {
		errText = res.err.Error()
	}

	if p.opts.Results != nil {
		row := store.Result{
			Recording:       res.recording,
			Output:          res.output,
			DurationSeconds: res.duration,
			ANIMean:         nullFloat(res.aniMean),
			FailedWindows:   res.failedWindows,
			SPIMean:         nullFloat(res.spiMean),
			SPIMin:          nullFloat(res.spiMin),
			Error:           errText,
			ProcessedAt:     time.Now().UTC(),
		}
		if err := p.opts.Results.Insert(ctx, row); err != nil {
			logger.FromContext(ctx).Error("failed to store result", "error", err)
		}
	}

	if p.opts.Events != nil {
		p.opts.Events.Track(events.Completion{
			Recording:       res.recording,
			Output:          res.output,
			DurationSeconds: res.duration,
			ANIMean:         res.aniMean,
			FailedWindows:   res.failedWindows,
			SPIMean:         res.spiMean,
			SPIMin:          res.spiMin,
			Error:           errText,
			ProcessedAt:     time.Now().UTC(),
		})
		if p.opts.Metrics != nil {
			p.opts.Metrics.EventsPublished.Inc()
		}
	}
}

// alreadyProcessed consults the Redis marker for this path and mtime.
func (p *Processor) alreadyProcessed(ctx context.Context, path string) (bool, error) {
	if p.opts.Cache == nil {
		return false, nil
	}
	key, err := markerKey(path)
	if err != nil {
		return false, err
	}
	found, err := p.opts.Cache.Exists(ctx, key)
	if err != nil {
		return false, err
	}
	if found && p.opts.Metrics != nil {
		p.opts.Metrics.SkipCacheHitsTotal.Inc()
	}
	return found, nil
}

func (p *Processor) markProcessed(ctx context.Context, path string) {
	if p.opts.Cache == nil {
		return
	}
	key, err := markerKey(path)
	if err != nil {
		return
	}
	if err := p.opts.Cache.Set(ctx, key, "1", p.cfg.Redis.MarkerTTL); err != nil {
		logger.FromContext(ctx).Warn("failed to set processed marker", "error", err)
	}
}

func markerKey(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("vitalproc:done:%s:%d", path, info.ModTime().Unix()), nil
}

func gateReason(err error) string {
	switch {
	case errors.Is(err, apperrors.ErrNoSamples):
		return "empty"
	case errors.Is(err, apperrors.ErrTooManyGaps):
		return "gaps"
	default:
		return "other"
	}
}

func meanFloat32(x []float32) float64 {
	if len(x) == 0 {
		return math.NaN()
	}
	sum := 0.0
	for _, v := range x {
		sum += float64(v)
	}
	return sum / float64(len(x))
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil || math.IsNaN(*v) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

// Metric helpers tolerate a nil Metrics so tests and minimal deployments
// can run without a registry.

func (p *Processor) countOutcome(outcome string) {
	if p.opts.Metrics != nil {
		p.opts.Metrics.RecordingsTotal.WithLabelValues(outcome).Inc()
	}
}

func (p *Processor) countGateReject(channel, reason string) {
	if p.opts.Metrics != nil {
		p.opts.Metrics.GateRejectsTotal.WithLabelValues(channel, reason).Inc()
	}
}

func (p *Processor) countWindows(scored, failed int) {
	if p.opts.Metrics != nil {
		p.opts.Metrics.WindowsTotal.WithLabelValues("scored").Add(float64(scored))
		p.opts.Metrics.WindowsTotal.WithLabelValues("failed").Add(float64(failed))
	}
}

func (p *Processor) observeStage(stage string, started time.Time) {
	if p.opts.Metrics != nil {
		p.opts.Metrics.RecordingDuration.WithLabelValues(stage).Observe(time.Since(started).Seconds())
	}
}

func (p *Processor) observeIndex(index string, values []float32) {
	if p.opts.Metrics != nil {
		for _, v := range values {
			if !math.IsNaN(float64(v)) {
				p.opts.Metrics.IndexValues.WithLabelValues(index).Observe(float64(v))
			}
		}
	}
}

func (p *Processor) inFlight(delta float64) {
	if p.opts.Metrics != nil {
		p.opts.Metrics.RecordingsInFlight.Add(delta)
	}
}
