package storage

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/san-kum/swimsim/internal/dynamo"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestWriterSuite(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Output pipeline")
}

// slowFile delays every write, standing in for a congested disk.
type slowFile struct {
	File
	delay time.Duration
}

func (f *slowFile) WriteAt(p []byte, off int64) (int, error) {
	time.Sleep(f.delay)
	return f.File.WriteAt(p, off)
}

var _ = Describe("Writer", func() {
	var (
		layout Layout
		ctx    context.Context
	)

	BeforeEach(func() {
		dir, err := os.MkdirTemp("", "swimsim-writer-")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(os.RemoveAll, dir)

		layout = NewLayout(dir, "suite", "1.0.0", "bincode", time.Now())
		Expect(layout.Create()).To(Succeed())
		ctx = context.Background()
	})

	Context("with a slow sink and a queue of one", func() {
		var w *Writer

		BeforeEach(func() {
			var err error
			w, err = NewWriter(Options{
				Layout:    layout,
				Codec:     Bincode{},
				QueueSize: 1,
				Logger:    quietLogger(),
				OpenFile: func(path string) (File, error) {
					f, err := openFile(path)
					if err != nil || !strings.HasSuffix(path, ".bincode") {
						return f, err
					}
					return &slowFile{File: f, delay: 20 * time.Millisecond}, nil
				},
			})
			Expect(err).NotTo(HaveOccurred())
		})

		It("blocks the producer instead of dropping records", func() {
			start := time.Now()
			for ts := uint64(1); ts <= 6; ts++ {
				rec := &Record{Timestep: ts, Particles: []dynamo.Particle{{X: float64(ts)}}}
				Expect(w.Append(ctx, rec)).To(Succeed())
			}
			// the producer had to wait for the sink at least a few times
			Expect(time.Since(start)).To(BeNumerically(">=", 60*time.Millisecond))

			Expect(w.Close()).To(Succeed())
			st := w.Stats()
			Expect(st.Blocked).To(BeNumerically(">", 0))
			Expect(st.BlockedFor).To(BeNumerically(">", 0))
			Expect(st.Written).To(Equal(6))

			entries, err := ReadIndex(layout.Index())
			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(HaveLen(6))
			for i, e := range entries {
				Expect(e.Timestep).To(Equal(uint64(i + 1)), "records stay in FIFO order")
			}
		})

		It("gives up waiting when the context is cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			Expect(w.Append(cctx, &Record{Timestep: 1, Particles: []dynamo.Particle{{}}})).To(Succeed())
			Expect(w.Append(cctx, &Record{Timestep: 2, Particles: []dynamo.Particle{{}}})).To(Succeed())
			cancel()

			err := w.Append(cctx, &Record{Timestep: 3, Particles: []dynamo.Particle{{}}})
			if err != nil {
				Expect(err).To(MatchError(context.Canceled))
			}
			Expect(w.Close()).To(Succeed())
		})
	})

	Context("interleaving records and snapshots", func() {
		It("writes snapshots that resume exactly", func() {
			w, err := NewWriter(Options{Layout: layout, Codec: Bincode{}, QueueSize: 3, Logger: quietLogger()})
			Expect(err).NotTo(HaveOccurred())

			ps := []dynamo.Particle{{X: 0.25, Y: 1, Z: 2, Phi: 3, Theta: 1.5}}
			for ts := uint64(1); ts <= 3; ts++ {
				Expect(w.Append(ctx, &Record{Timestep: ts, Particles: ps})).To(Succeed())
				Expect(w.WriteSnapshot(ctx, &Snapshot{Schema: SnapshotSchema, Particles: ps, Seed: 4, Timestep: ts})).To(Succeed())
			}
			Expect(w.Close()).To(Succeed())

			for ts := uint64(1); ts <= 3; ts++ {
				s, err := LoadSnapshot(layout.Snapshot(ts), Bincode{})
				Expect(err).NotTo(HaveOccurred())
				Expect(s.Timestep).To(Equal(ts))
				Expect(s.Particles).To(Equal(ps))
			}
			leftovers, err := os.ReadDir(layout.Dir)
			Expect(err).NotTo(HaveOccurred())
			for _, e := range leftovers {
				Expect(e.Name()).NotTo(HavePrefix(".snapshot-"), "temporary files are renamed or removed")
			}
		})
	})
})
