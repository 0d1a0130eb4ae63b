package main

import (
	"log/slog"

	"github.com/sarchlab/l1chan/affinity"
	"github.com/sarchlab/l1chan/cache"
	"github.com/sarchlab/l1chan/channel"
	"github.com/sarchlab/l1chan/timing"
	"github.com/sarchlab/l1chan/trace"
)

// session is the per-invocation setup shared by both roles: pin, detect,
// allocate, calibrate, and optionally open the trace recorder.
type session struct {
	ctx      *cache.Context
	cal      cache.Calibration
	params   channel.Params
	recorder *trace.Recorder
}

func openSession(role string) (*session, error) {
	if err := affinity.Pin(cpuNo); err != nil {
		return nil, err
	}

	geom, err := cache.DetectL1D(cpuNo)
	if err != nil {
		return nil, err
	}
	slog.Info("L1D geometry", "cache", geom.String(), "cpu", cpuNo)

	ctx, err := cache.NewContext(geom, timing.Hardware())
	if err != nil {
		return nil, err
	}

	cal, err := ctx.Calibrate()
	if err != nil {
		ctx.Close()
		return nil, err
	}
	slog.Info("calibrated",
		"hit", cal.Hit, "miss", cal.Miss, "threshold", cal.Threshold)

	s := &session{
		ctx: ctx,
		cal: cal,
		params: channel.Params{
			DataSet:      dataSet,
			SyncSet:      syncSet,
			Timeout:      timeout,
			PollInterval: pollInterval,
			Repetition:   repetition,
		},
	}

	if tracePath != "" {
		recorder, err := trace.Open(tracePath, role)
		if err != nil {
			ctx.Close()
			return nil, err
		}
		if err := recorder.RecordCalibration(cal); err != nil {
			recorder.Close()
			ctx.Close()
			return nil, err
		}
		s.recorder = recorder
		slog.Info("tracing session", "db", tracePath,
			"session", recorder.Session())
	}

	return s, nil
}

// options returns the channel options for this session.
func (s *session) options() []channel.Option {
	if s.recorder == nil {
		return nil
	}
	return []channel.Option{channel.WithObserver(s.recorder)}
}

func (s *session) close() {
	if s.recorder != nil {
		if err := s.recorder.Close(); err != nil {
			slog.Warn("closing trace recorder", "err", err)
		}
	}
	if err := s.ctx.Close(); err != nil {
		slog.Warn("releasing probe buffer", "err", err)
	}
}
