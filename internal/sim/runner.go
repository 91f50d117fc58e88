package sim

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/san-kum/swimsim/internal/config"
	"github.com/san-kum/swimsim/internal/dynamo"
	"github.com/san-kum/swimsim/internal/metrics"
	"github.com/san-kum/swimsim/internal/storage"
	"github.com/sirupsen/logrus"
)

type Options struct {
	Config    *config.Config
	Init      InitType
	OutputDir string
	// Input supplies the particle list for InitStdin.
	Input  io.Reader
	Logger logrus.FieldLogger
	// OnProgress is called after every completed timestep.
	OnProgress func(Progress)
	// Now stamps the output id; defaults to time.Now.
	Now func() time.Time
}

type runner struct {
	cfg      *config.Config
	sim      *Simulation
	writer   *storage.Writer
	recorder *metrics.Recorder
	log      logrus.FieldLogger
	last     metrics.Row
	sample   []dynamo.Particle
}

// Run initializes the ensemble, creates a fresh output directory and steps
// until simulation.number_of_timesteps. Cancelling ctx stops the run after
// the current timestep; the state is then snapshotted, the output drained,
// and the result marked Interrupted with a nil error.
func Run(ctx context.Context, opts Options) (*Result, error) {
	cfg := opts.Config
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	// ctx is only polled between timesteps; work in flight always completes
	work := context.WithoutCancel(ctx)

	codec, err := storage.NewCodec(cfg.Format())
	if err != nil {
		return nil, err
	}
	s, err := New(cfg)
	if err != nil {
		return nil, err
	}
	if err := initialize(work, s, opts, codec); err != nil {
		return nil, err
	}

	layout := storage.NewLayout(opts.OutputDir, cfg.Environment.Prefix, config.Version, codec.Ext(), now())
	if err := layout.Create(); err != nil {
		return nil, fmt.Errorf("%w: %v", dynamo.ErrIO, err)
	}
	if err := config.Save(layout.Settings(), cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", dynamo.ErrIO, err)
	}
	w, err := storage.NewWriter(storage.Options{
		Layout:    layout,
		Codec:     codec,
		Metadata:  &storage.Metadata{Schema: storage.SnapshotSchema, Version: config.Version, Settings: cfg},
		QueueSize: cfg.Environment.IOQueueSize,
		Retries:   cfg.Environment.IORetries,
		Logger:    log,
	})
	if err != nil {
		return nil, err
	}

	r := &runner{cfg: cfg, sim: s, writer: w, recorder: metrics.NewRecorder(), log: log.WithField("id", layout.ID)}
	res := &Result{Layout: layout, Init: opts.Init, FirstTimestep: s.Timestep()}
	r.log.WithFields(logrus.Fields{
		"init":      opts.Init,
		"particles": cfg.Simulation.NumberOfParticles,
		"timestep":  s.Timestep(),
		"total":     cfg.Simulation.NumberOfTimesteps,
		"workers":   s.Workers(),
		"terms":     s.Terms(),
		"format":    codec.Name(),
	}).Info("simulation started")

	start := time.Now()
	err = r.loop(ctx, work, opts, res, start)
	res.FinalTimestep = s.Timestep()
	res.Elapsed = time.Since(start)
	res.Metrics = r.last

	closeErr := w.Close()
	res.Stats = w.Stats()
	if err != nil {
		if closeErr != nil {
			r.log.WithError(closeErr).Error("output drain failed")
		}
		return res, err
	}
	if closeErr != nil {
		if res.Interrupted {
			r.log.WithError(closeErr).Error("output incomplete after interrupt")
			return res, nil
		}
		return res, closeErr
	}

	r.log.WithFields(logrus.Fields{
		"timestep":    res.FinalTimestep,
		"elapsed":     res.Elapsed.Round(time.Millisecond),
		"interrupted": res.Interrupted,
		"blocked":     res.Stats.Blocked,
	}).Info("simulation finished")
	return res, nil
}

func initialize(ctx context.Context, s *Simulation, opts Options, codec storage.Codec) error {
	env := opts.Config.Environment
	switch opts.Init {
	case InitDistribution:
		return s.InitDistribution(ctx)
	case InitStdin:
		if opts.Input == nil {
			return &dynamo.ConfigError{Field: "init", Reason: "no particle input"}
		}
		ps, err := storage.ReadParticles(opts.Input, codec)
		if err != nil {
			return err
		}
		return s.Init(ctx, ps, 0)
	case InitFile, InitResume:
		if env.InitFile == "" {
			return &dynamo.ConfigError{Field: "environment.init_file", Reason: fmt.Sprintf("required for %s init", opts.Init)}
		}
		sc, err := storage.CodecForPath(env.InitFile)
		if err != nil {
			return &dynamo.ResumeError{Path: env.InitFile, Wrapped: fmt.Errorf("%w: %v", dynamo.ErrResumeIncompatible, err)}
		}
		snap, err := storage.LoadSnapshot(env.InitFile, sc)
		if err != nil {
			return err
		}
		if opts.Init == InitResume {
			return s.Resume(ctx, env.InitFile, snap)
		}
		return s.Init(ctx, snap.Particles, 0)
	}
	return &dynamo.ConfigError{Field: "init", Reason: fmt.Sprintf("unknown init type %d", opts.Init)}
}

func (r *runner) loop(ctx, wctx context.Context, opts Options, res *Result, start time.Time) error {
	out := r.cfg.Simulation.OutputAtTimestep
	total := uint64(r.cfg.Simulation.NumberOfTimesteps)

	if out.InitialCondition && opts.Init != InitResume {
		if err := r.emit(wctx, true); err != nil {
			return err
		}
	}

	snapshotted := false
	for r.sim.Timestep() < total {
		if ctx.Err() != nil {
			res.Interrupted = true
			r.interrupt(wctx, snapshotted)
			return nil
		}

		t := r.sim.Timestep() + 1
		if err := r.sim.Step(wctx); err != nil {
			return &dynamo.SimulationError{Step: t, Time: float64(t) * r.cfg.Simulation.Timestep, Wrapped: err}
		}

		if err := r.emit(wctx, false); err != nil {
			return err
		}
		snapshotted = hits(out.Snapshot, nil, t)
		if snapshotted {
			if err := r.writer.WriteSnapshot(wctx, r.sim.Snapshot()); err != nil {
				return err
			}
		}

		if opts.OnProgress != nil {
			opts.OnProgress(Progress{
				Timestep: t,
				Total:    total,
				Elapsed:  time.Since(start),
				Metrics:  r.last,
				Queue:    r.writer.Stats(),
				Sample:   r.sample,
			})
		}
	}

	if out.FinalSnapshot && !snapshotted {
		if err := r.writer.WriteSnapshot(wctx, r.sim.Snapshot()); err != nil {
			return err
		}
	}
	return nil
}

// interrupt writes a best-effort snapshot of the current state unless the
// stride already wrote one for this timestep.
func (r *runner) interrupt(ctx context.Context, snapshotted bool) {
	t := r.sim.Timestep()
	if snapshotted {
		r.log.WithField("timestep", t).Warn("interrupted, snapshot already written")
		return
	}
	r.log.WithField("timestep", t).Warn("interrupted, writing snapshot")
	if err := r.writer.Err(); err != nil {
		r.log.WithError(err).Error("output already failed, no snapshot written")
		return
	}
	if err := r.writer.WriteSnapshot(ctx, r.sim.Snapshot()); err != nil {
		r.log.WithError(err).Error("interrupt snapshot failed")
	}
}

// emit appends the record for the current timestep. The initial condition
// record carries the distribution and the particles.
func (r *runner) emit(ctx context.Context, initial bool) error {
	out := r.cfg.Simulation.OutputAtTimestep
	t := r.sim.Timestep()
	rec := &storage.Record{Timestep: t}

	if initial || hits(out.Distribution, out.DistributionAt, t) {
		rec.Distribution = r.sim.Distribution()
	}
	if !initial && hits(out.Flowfield, out.FlowfieldAt, t) {
		rec.FlowField = r.sim.FlowField()
	}
	if !initial && hits(out.Magneticfield, out.MagneticfieldAt, t) {
		rec.MagneticField = r.sim.MagneticField()
	}
	if initial || hits(out.Particles, out.ParticlesAt, t) {
		rec.Particles = r.head()
		r.sample = rec.Particles[:min(len(rec.Particles), SampleSize)]
		r.last = r.recorder.Observe(r.sim.Particles(), t, r.sim.Time())
		if err := r.writer.AppendMetrics(ctx, []metrics.Row{r.last}); err != nil {
			return err
		}
	}
	if rec.Empty() {
		return nil
	}

	r.log.WithFields(logrus.Fields{"timestep": t, "kinds": rec.Kinds()}).Info("saving record")
	return r.writer.Append(ctx, rec)
}

// head copies the first particles_head particles, or all of them.
func (r *runner) head() []dynamo.Particle {
	ps := r.sim.Particles()
	if h := r.cfg.Simulation.OutputAtTimestep.ParticlesHead; h > 0 && h < len(ps) {
		ps = ps[:h]
	}
	c := make([]dynamo.Particle, len(ps))
	copy(c, ps)
	return c
}

// hits reports whether t is a multiple of a positive stride or listed in at.
func hits(stride int, at []int, t uint64) bool {
	if stride > 0 && t%uint64(stride) == 0 {
		return true
	}
	for _, a := range at {
		if a >= 0 && uint64(a) == t {
			return true
		}
	}
	return false
}
