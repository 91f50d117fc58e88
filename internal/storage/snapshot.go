package storage

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/san-kum/swimsim/internal/dynamo"
)

// LoadSnapshot reads a snapshot written by a Writer using codec.
func LoadSnapshot(path string, codec Codec) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &dynamo.ResumeError{Path: path, Wrapped: dynamo.ErrResumeMissing}
		}
		return nil, &dynamo.ResumeError{Path: path, Wrapped: fmt.Errorf("%w: %v", dynamo.ErrIO, err)}
	}
	defer f.Close()

	var s Snapshot
	if err := codec.Decode(bufio.NewReader(f), &s); err != nil {
		return nil, &dynamo.ResumeError{Path: path, Wrapped: fmt.Errorf("%w: %v", dynamo.ErrResumeCorrupt, err)}
	}
	if s.Schema != SnapshotSchema {
		return nil, &dynamo.ResumeError{Path: path, Wrapped: fmt.Errorf("%w: schema %d, want %d", dynamo.ErrResumeIncompatible, s.Schema, SnapshotSchema)}
	}
	for i, p := range s.Particles {
		if !p.IsFinite() {
			return nil, &dynamo.ResumeError{Path: path, Wrapped: fmt.Errorf("%w: particle %d is not finite", dynamo.ErrResumeCorrupt, i)}
		}
	}
	return &s, nil
}

// CodecForPath picks the codec from a file extension.
func CodecForPath(path string) (Codec, error) {
	return NewCodec(strings.TrimPrefix(filepath.Ext(path), "."))
}

// ReadParticles decodes a particle list, as supplied on standard input.
func ReadParticles(r io.Reader, codec Codec) ([]dynamo.Particle, error) {
	var ps []dynamo.Particle
	if err := codec.Decode(r, &ps); err != nil {
		return nil, fmt.Errorf("decode particles: %w", err)
	}
	for i, p := range ps {
		if !p.IsFinite() {
			return nil, fmt.Errorf("%w: input particle %d", dynamo.ErrNonFinite, i)
		}
	}
	return ps, nil
}

// ReadIndex loads the index of a record stream.
func ReadIndex(path string) ([]IndexEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var entries []IndexEntry
	if err := gocsv.Unmarshal(f, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// ReadBlob decodes the blob described by e from the stream at path into v.
func ReadBlob(path string, e IndexEntry, codec Codec, v any) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return codec.Decode(io.NewSectionReader(f, e.Offset, e.Size), v)
}
