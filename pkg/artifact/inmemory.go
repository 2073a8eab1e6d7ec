package artifact

import (
	"bytes"
	"context"
	"io"
	"io/ioutil"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// NewInMemoryStore returns a Store keeping content in memory. Intended for
// tests and single-process runs.
func NewInMemoryStore() Store {
	return &inMemory{
		runs: make(map[string]map[string]*entry),
	}
}

type entry struct {
	meta Artifact
	data []byte
}

type inMemory struct {
	mu   sync.RWMutex
	runs map[string]map[string]*entry
}

func (s *inMemory) Put(ctx context.Context, runID, producerStageID, name string, r io.Reader) (Artifact, error) {
	data, err := ioutil.ReadAll(r)
	if err != nil {
		return Artifact{}, errors.Wrapf(err, "cannot read content for artifact %s", name)
	}
	a := Artifact{
		Name:            name,
		ProducerStageID: producerStageID,
		ContentHandle:   "mem://" + runID + "/" + name,
		Checksum:        sum(data),
		Size:            int64(len(data)),
		CreatedAt:       time.Now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	run, exists := s.runs[runID]
	if !exists {
		run = make(map[string]*entry)
		s.runs[runID] = run
	}
	run[name] = &entry{meta: a, data: data}
	return a, nil
}

func (s *inMemory) Get(ctx context.Context, runID, name string) (Artifact, io.ReadCloser, error) {
	s.mu.RLock()
	e, exists := s.runs[runID][name]
	s.mu.RUnlock()
	if !exists {
		return Artifact{}, nil, NotFoundError{RunID: runID, Name: name}
	}
	rc := ioutil.NopCloser(bytes.NewReader(e.data))
	return e.meta, newVerifyReader(rc, name, e.meta.Checksum), nil
}

func (s *inMemory) Discard(ctx context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.runs, runID)
	return nil
}
