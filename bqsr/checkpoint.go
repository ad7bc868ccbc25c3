package bqsr

import (
	"bytes"
	"encoding/gob"
	"os"
	"path/filepath"

	"github.com/golang/snappy"
	"github.com/grailbio/base/errors"

	"github.com/grailbio/firepony/covariate"
)

// checkpointFile is the on-disk format for a Driver's global tables,
// following bio-fusion's gob-encode-then-append convention: the payload is
// a snappy-compressed gob of the three chain snapshots.
type checkpointFile struct {
	Quality covariate.Snapshot
	Cycle   *covariate.Snapshot
	Context *covariate.Snapshot
}

// Checkpointer periodically spills a Driver's global covariate tables to
// disk, in the snappy-compressed, atomically-renamed style sortshard.go
// uses for its temp files: a write to path+".tmp" followed by os.Rename,
// so a reader never observes a partially written checkpoint.
type Checkpointer struct {
	path string
}

// NewCheckpointer returns a Checkpointer that writes snapshots to path.
func NewCheckpointer(path string) *Checkpointer {
	return &Checkpointer{path: path}
}

// Snapshot encodes tables and atomically replaces the checkpoint file.
func (c *Checkpointer) Snapshot(tables *Tables) error {
	cf := checkpointFile{Quality: tables.Quality.Snapshot()}
	if tables.Cycle != nil {
		s := tables.Cycle.Snapshot()
		cf.Cycle = &s
	}
	if tables.Context != nil {
		s := tables.Context.Snapshot()
		cf.Context = &s
	}

	var raw bytes.Buffer
	if err := gob.NewEncoder(&raw).Encode(&cf); err != nil {
		return errors.E(err, "bqsr: encoding checkpoint")
	}
	compressed := snappy.Encode(nil, raw.Bytes())

	tmp := c.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(c.path), 0755); err != nil {
		return errors.E(err, "bqsr: creating checkpoint directory")
	}
	if err := os.WriteFile(tmp, compressed, 0644); err != nil {
		return errors.E(err, "bqsr: writing checkpoint")
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return errors.E(err, "bqsr: renaming checkpoint into place")
	}
	return nil
}

// LoadCheckpoint reads back a checkpoint file written by Snapshot, for
// resuming a run after a crash (spec §4.18's recovery path).
func LoadCheckpoint(path string) (*Tables, error) {
	compressed, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.E(err, "bqsr: reading checkpoint")
	}
	raw, err := snappy.Decode(nil, compressed)
	if err != nil {
		return nil, errors.E(err, "bqsr: decompressing checkpoint")
	}
	var cf checkpointFile
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&cf); err != nil {
		return nil, errors.E(err, "bqsr: decoding checkpoint")
	}

	tables := &Tables{Quality: covariate.Restore(cf.Quality)}
	if cf.Cycle != nil {
		tables.Cycle = covariate.Restore(*cf.Cycle)
	}
	if cf.Context != nil {
		tables.Context = covariate.Restore(*cf.Context)
	}
	return tables, nil
}
