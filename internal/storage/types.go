// Package storage persists simulation output: an indexed record stream,
// atomic snapshots, and the readers needed to resume from them.
package storage

import (
	"errors"
	"strings"

	"github.com/san-kum/swimsim/internal/config"
	"github.com/san-kum/swimsim/internal/dynamo"
)

// SnapshotSchema is bumped whenever the snapshot layout changes.
const SnapshotSchema = 1

var (
	ErrWriterClosed = errors.New("swimsim: writer closed")
	ErrUnsupported  = errors.New("swimsim: unsupported type for encoding")
)

// Array is a row-major grid payload.
type Array struct {
	Shape []int     `json:"shape"`
	Data  []float64 `json:"data"`
}

// Record holds the outputs of one timestep. Optional parts are nil when
// their stride did not hit.
type Record struct {
	Timestep      uint64            `json:"timestep"`
	Distribution  *Array            `json:"distribution,omitempty"`
	FlowField     *Array            `json:"flow_field,omitempty"`
	MagneticField *Array            `json:"magnetic_field,omitempty"`
	Particles     []dynamo.Particle `json:"particles,omitempty"`
}

// Kinds lists the payloads present, joined by '|'.
func (r *Record) Kinds() string {
	var k []string
	if r.Distribution != nil {
		k = append(k, "distribution")
	}
	if r.FlowField != nil {
		k = append(k, "flowfield")
	}
	if r.MagneticField != nil {
		k = append(k, "magneticfield")
	}
	if r.Particles != nil {
		k = append(k, "particles")
	}
	return strings.Join(k, "|")
}

func (r *Record) Empty() bool {
	return r.Distribution == nil && r.FlowField == nil && r.MagneticField == nil && r.Particles == nil
}

// Snapshot is the complete resumable state at one timestep.
type Snapshot struct {
	Schema    int               `json:"schema"`
	Version   string            `json:"version"`
	Particles []dynamo.Particle `json:"particles"`
	Seed      uint64            `json:"seed"`
	Timestep  uint64            `json:"timestep"`
}

// Metadata is the first blob of every record stream.
type Metadata struct {
	Schema   int            `json:"schema"`
	Version  string         `json:"version"`
	Settings *config.Config `json:"settings"`
}

// IndexEntry locates one blob inside the record stream.
type IndexEntry struct {
	Timestep uint64 `csv:"timestep"`
	Offset   int64  `csv:"offset"`
	Size     int64  `csv:"size"`
	Kinds    string `csv:"kinds"`
}
