// Data sources deliver raw record lines for a time window.
//
// The core does not know about transports.  A DataSource turns (source, data kind, time window)
// into newline-delimited record bytes and classifies its failures into the two categories the rest
// of the system cares about: transport trouble a human can retry, and authorization trouble a
// human must reconfigure.  Everything else about HTTP, files or databases stays in here.

package source

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
)

// The per-window data kinds a source can be asked for.  These select which record families the
// backend includes in the reply.
const (
	DataKindHtop        = "htop"
	DataKindK8s         = "k8s"
	DataKindSpydergraph = "spydergraph"
)

func DataKinds() []string {
	return []string{DataKindHtop, DataKindK8s, DataKindSpydergraph}
}

// A DataSource fetches the records of one data kind for one source machine within [start, end)
// epoch seconds.  The returned bytes are newline-delimited record lines.  Implementations apply
// their own timeouts through the context; the caller treats a deadline like any other failure.

type DataSource interface {
	Fetch(ctx context.Context, sourceID, dataKind string, start, end float64) ([]byte, error)
}

// A SourceInfo describes one machine known to the backend.
type SourceInfo struct {
	UID  string `json:"uid"`
	Name string `json:"name"`
}

// A TopologyLister can enumerate the machines behind a cluster source.  Sources that represent a
// single machine (files, single-source queries) do not implement it.

type TopologyLister interface {
	ListSources(ctx context.Context) ([]SourceInfo, error)
}

var (
	// MT: Constant after initialization; immutable
	NoMoreDataErr = errors.New("No more data in source")
)

// A TransportError is a connectivity-class failure: timeouts, refused connections, 5xx responses.
// The human-facing Reason is short; full detail goes to the log at the point of failure.
type TransportError struct {
	Op     string
	Reason string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// An AuthError means the credentials or the organization configuration are wrong.  Retrying
// without reconfiguring will not help.
type AuthError struct {
	Status int
	Reason string
}

func (e *AuthError) Error() string {
	return e.Reason
}

///////////////////////////////////////////////////////////////////////////////////////////////////
//
// File source.

// A FileSource delivers a pre-read line set exactly once, ignoring the requested window: a capture
// file holds what it holds.  A later fetch returns NoMoreDataErr so the caller can tell "nothing
// left" from a transport failure.  All data kinds are served by the one delivery.

type FileSource struct {
	name string
	lock sync.Mutex
	data []byte
}

func NewFileSource(name string, data []byte) *FileSource {
	return &FileSource{name: name, data: data}
}

func ReadFileSource(path string) (*FileSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("Cannot read input file: %w", err)
	}
	return NewFileSource(path, data), nil
}

func (fs *FileSource) Name() string {
	return fs.name
}

func (fs *FileSource) Fetch(
	_ context.Context,
	_, dataKind string,
	_, _ float64,
) ([]byte, error) {
	// One delivery carries every kind; return the data for the first kind asked and nothing for
	// the others so that the batch is not ingested three times.
	if dataKind != DataKindHtop {
		return nil, nil
	}
	fs.lock.Lock()
	defer fs.lock.Unlock()
	if fs.data == nil {
		return nil, NoMoreDataErr
	}
	data := fs.data
	fs.data = nil
	return data, nil
}
