package artifact

import (
	"context"
	"encoding/json"
	"io"
	"io/ioutil"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"
)

const metaSuffix = ".meta.json"

// NewFilesystemStore returns a Store persisting artifacts under root, one
// directory per run. Each artifact is a content file next to a metadata file
// recording producer and checksum.
func NewFilesystemStore(root string) (Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errors.Wrapf(err, "cannot create artifact root %s", root)
	}
	return &filesystem{
		root:  root,
		locks: make(map[string]*sync.Mutex),
	}, nil
}

type filesystem struct {
	root string

	mu    sync.Mutex // guards locks
	locks map[string]*sync.Mutex
}

// lock returns the mutex serializing writes to one artifact name.
func (s *filesystem) lock(runID, name string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := runID + "/" + name
	l, exists := s.locks[key]
	if !exists {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	return l
}

func (s *filesystem) path(runID, name string) string {
	return filepath.Join(s.root, url.PathEscape(runID), url.PathEscape(name))
}

func (s *filesystem) Put(ctx context.Context, runID, producerStageID, name string, r io.Reader) (Artifact, error) {
	l := s.lock(runID, name)
	l.Lock()
	defer l.Unlock()

	data, err := ioutil.ReadAll(r)
	if err != nil {
		return Artifact{}, errors.Wrapf(err, "cannot read content for artifact %s", name)
	}
	path := s.path(runID, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return Artifact{}, errors.Wrapf(err, "cannot create run directory for %s", runID)
	}
	a := Artifact{
		Name:            name,
		ProducerStageID: producerStageID,
		ContentHandle:   path,
		Checksum:        sum(data),
		Size:            int64(len(data)),
		CreatedAt:       time.Now(),
	}
	if err := ioutil.WriteFile(path, data, 0o644); err != nil {
		return Artifact{}, errors.Wrapf(err, "cannot write artifact %s", name)
	}
	meta, err := json.Marshal(a)
	if err != nil {
		return Artifact{}, errors.Wrapf(err, "cannot encode metadata for artifact %s", name)
	}
	if err := ioutil.WriteFile(path+metaSuffix, meta, 0o644); err != nil {
		return Artifact{}, errors.Wrapf(err, "cannot write metadata for artifact %s", name)
	}
	return a, nil
}

func (s *filesystem) Get(ctx context.Context, runID, name string) (Artifact, io.ReadCloser, error) {
	path := s.path(runID, name)
	meta, err := ioutil.ReadFile(path + metaSuffix)
	if err != nil {
		if os.IsNotExist(err) {
			return Artifact{}, nil, NotFoundError{RunID: runID, Name: name}
		}
		return Artifact{}, nil, errors.Wrapf(err, "cannot read metadata for artifact %s", name)
	}
	var a Artifact
	if err := json.Unmarshal(meta, &a); err != nil {
		return Artifact{}, nil, errors.Wrapf(err, "cannot decode metadata for artifact %s", name)
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Artifact{}, nil, NotFoundError{RunID: runID, Name: name}
		}
		return Artifact{}, nil, errors.Wrapf(err, "cannot open artifact %s", name)
	}
	return a, newVerifyReader(f, name, a.Checksum), nil
}

func (s *filesystem) Discard(ctx context.Context, runID string) error {
	if err := os.RemoveAll(filepath.Join(s.root, url.PathEscape(runID))); err != nil {
		return errors.Wrapf(err, "cannot discard artifacts of run %s", runID)
	}
	return nil
}
