// Package storage writes decoded DICOM datasets to the content-addressed
// path the dicomtags package derives for them, off a bounded worker pool
// so a burst of C-STORE-RQs cannot spawn unbounded concurrent filesystem
// writers. Grounded on original_source/src/writer.rs (create parent
// directories, then write the file; report the final path or error) and
// association_series_state_loop.rs's use of a blocking task per instance,
// replaced here with golang.org/x/sync/semaphore.Weighted, the same
// bounded-worker primitive the listener package uses.
package storage

import (
	"context"
	"os"
	"path/filepath"

	"github.com/otcheredev/oxidicom-go/internal/domain"
	"github.com/rs/zerolog/log"
	"github.com/suyashkumar/dicom"
	"golang.org/x/sync/semaphore"
)

// Pool writes finished DicomInfo/dataset pairs under FilesRoot,
// bounding concurrent writers to Workers.
type Pool struct {
	FilesRoot string
	sem       *semaphore.Weighted
}

// NewPool constructs a Pool rooted at filesRoot, allowing at most workers
// concurrent writes.
func NewPool(filesRoot string, workers int64) *Pool {
	if workers <= 0 {
		workers = 4
	}
	return &Pool{FilesRoot: filesRoot, sem: semaphore.NewWeighted(workers)}
}

// Submit schedules a write of ds to info.Path (relative to FilesRoot) and
// returns a channel that receives exactly one InstanceResult once the
// write completes or fails. The semaphore acquisition itself runs
// synchronously so a saturated pool applies backpressure to the caller
// rather than queueing unboundedly in memory.
func (p *Pool) Submit(info domain.DicomInfo, ds dicom.Dataset) <-chan domain.InstanceResult {
	result := make(chan domain.InstanceResult, 1)
	p.sem.Acquire(context.Background(), 1)
	go func() {
		defer p.sem.Release(1)
		defer close(result)
		if err := p.write(info.Path, ds); err != nil {
			log.Error().Err(err).Str("path", info.Path).Msg("failed to store dicom instance")
			result <- domain.InstanceResult{Err: &domain.StorageError{Path: info.Path, Op: "write", Err: err}}
			return
		}
		log.Info().Str("path", info.Path).Msg("stored dicom instance")
		result <- domain.InstanceResult{Info: info}
	}()
	return result
}

func (p *Pool) write(relPath string, ds dicom.Dataset) error {
	outPath := filepath.Join(p.FilesRoot, relPath)
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return err
	}
	f, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer f.Close()
	return dicom.Write(f, ds)
}
