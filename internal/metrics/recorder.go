package metrics

import "github.com/san-kum/swimsim/internal/dynamo"

// Row is one line of the metrics CSV.
type Row struct {
	Timestep      uint64  `csv:"timestep"`
	Time          float64 `csv:"time"`
	PolarOrder    float64 `csv:"polar_order"`
	NematicOrder  float64 `csv:"nematic_order"`
	MeanAlignment float64 `csv:"mean_alignment"`
	MeanTheta     float64 `csv:"mean_theta"`
}

// Recorder evaluates the standard metrics into rows. Persisting them is
// left to the output writer.
type Recorder struct {
	polar   *PolarOrder
	nematic *NematicOrder
	align   *MeanAlignment
	theta   *MeanPolarAngle
}

func NewRecorder() *Recorder {
	return &Recorder{
		polar:   NewPolarOrder(),
		nematic: NewNematicOrder(),
		align:   NewMeanAlignment(),
		theta:   NewMeanPolarAngle(),
	}
}

func (r *Recorder) Metrics() []Metric {
	return []Metric{r.polar, r.nematic, r.align, r.theta}
}

// Observe evaluates all metrics on particles.
func (r *Recorder) Observe(particles []dynamo.Particle, timestep uint64, time float64) Row {
	for _, m := range r.Metrics() {
		m.Observe(particles)
	}
	return Row{
		Timestep:      timestep,
		Time:          time,
		PolarOrder:    r.polar.Value(),
		NematicOrder:  r.nematic.Value(),
		MeanAlignment: r.align.Value(),
		MeanTheta:     r.theta.Value(),
	}
}
