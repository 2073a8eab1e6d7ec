package artifact

import (
	"context"
	"io"
	"time"
)

// Artifact is an immutable blob produced by a stage on success.
type Artifact struct {
	Name            string    `json:"name"`
	ProducerStageID string    `json:"producerStageId"`
	ContentHandle   string    `json:"contentHandle"`
	Checksum        string    `json:"checksum"` // hex encoded sha256
	Size            int64     `json:"size"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Store is the artifact storage backend. Content is checksummed on write and
// verified on read; a mismatch surfaces as CorruptionError, never silently.
// Writes to the same artifact name are serialized.
type Store interface {
	// Put stores the content read from r as an artifact of the given run.
	Put(ctx context.Context, runID, producerStageID, name string, r io.Reader) (Artifact, error)

	// Get returns the artifact metadata and a reader over its content.
	// The reader reports CorruptionError if the stored bytes no longer match
	// the recorded checksum.
	Get(ctx context.Context, runID, name string) (Artifact, io.ReadCloser, error)

	// Discard drops every artifact of the given run.
	Discard(ctx context.Context, runID string) error
}

// ReachFunc reports whether consumer transitively depends on producer.
type ReachFunc func(consumer, producer string) bool

// Accessor is the view of the store handed to one stage execution: writes are
// attributed to the stage, reads are restricted to its transitive needs set.
type Accessor interface {
	Put(ctx context.Context, name string, r io.Reader) (Artifact, error)
	Get(ctx context.Context, name string) (Artifact, io.ReadCloser, error)
}

// ForStage returns an Accessor bound to the given stage of the given run.
// Reading an artifact whose producer is not in the stage's transitive needs
// set fails with AccessDeniedError.
func ForStage(s Store, runID, stageID string, reach ReachFunc) Accessor {
	return scoped{
		store:   s,
		runID:   runID,
		stageID: stageID,
		reach:   reach,
	}
}

type scoped struct {
	store   Store
	runID   string
	stageID string
	reach   ReachFunc
}

func (s scoped) Put(ctx context.Context, name string, r io.Reader) (Artifact, error) {
	return s.store.Put(ctx, s.runID, s.stageID, name, r)
}

func (s scoped) Get(ctx context.Context, name string) (Artifact, io.ReadCloser, error) {
	a, rc, err := s.store.Get(ctx, s.runID, name)
	if err != nil {
		return Artifact{}, nil, err
	}
	if a.ProducerStageID != s.stageID && !s.reach(s.stageID, a.ProducerStageID) {
		rc.Close()
		return Artifact{}, nil, AccessDeniedError{Consumer: s.stageID, Producer: a.ProducerStageID, Name: name}
	}
	return a, rc, nil
}
