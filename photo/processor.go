package photo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"geosnap/utils"
)

// ProgressFunc receives advisory progress updates. It may be called from
// worker goroutines; callers that drive a UI must hop back to their own loop.
type ProgressFunc func(current, total int, message string)

// Item is one retained photo together with its position in the scan order.
type Item struct {
	Index  int
	Record PhotoRecord
	Path   string
}

// Batch is the outcome of processing one directory.
type Batch struct {
	Items   []Item
	Scanned int
	Failed  int
}

// Processor extracts metadata from every image in a directory using a
// bounded pool of workers.
type Processor struct {
	extractor *Extractor
	workers   int
	log       logrus.FieldLogger
}

// NewProcessor returns a Processor. workers <= 0 means one per CPU.
func NewProcessor(extractor *Extractor, workers int, log logrus.FieldLogger) *Processor {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Processor{extractor: extractor, workers: workers, log: log}
}

// ScanDir lists the supported images directly inside dir, sorted by path.
// Subdirectories are not descended into.
func ScanDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !IsImageExt(entry.Name()) {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(files)
	return files, nil
}

type outcome struct {
	index  int
	record PhotoRecord
	err    error
}

// Process scans dir, extracts every image concurrently and returns the
// retained records in scan order. Photos without a fix are dropped unless
// includeNoGPS is set, in which case they carry the NoPosition marker.
//
// ctx is checked before each completed extraction is consumed; once it is
// done the remaining results are discarded and a KindCancelled error returned.
func (p *Processor) Process(ctx context.Context, dir string, includeNoGPS bool, progress ProgressFunc) (*Batch, error) {
	files, err := ScanDir(dir)
	if err != nil {
		return nil, utils.Wrap(err, "failed to scan input directory")
	}
	total := len(files)
	if total == 0 {
		return nil, utils.NoImages(dir)
	}
	p.log.WithField("path", dir).Infof("Found %d images to process", total)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Buffered to total so workers never block on a collector that has
	// stopped reading.
	results := make(chan outcome, total)
	go func() {
		var g errgroup.Group
		g.SetLimit(p.workers)
		for i, path := range files {
			if ctx.Err() != nil {
				break
			}
			i, path := i, path
			g.Go(func() error {
				rec, err := p.extractor.Extract(path)
				results <- outcome{index: i, record: rec, err: err}
				return nil
			})
		}
		_ = g.Wait()
		close(results)
	}()

	batch := &Batch{Scanned: total}
	completed := 0
	for res := range results {
		if ctx.Err() != nil {
			p.log.Info("Cancellation detected during extraction phase")
			return nil, utils.Cancelled()
		}
		completed++
		path := files[res.index]
		name := filepath.Base(path)

		switch {
		case res.err != nil:
			batch.Failed++
			if errors.Is(res.err, ErrUnreadableImage) {
				p.log.WithField("file", name).WithError(res.err).Error("image is corrupt or invalid")
			} else {
				p.log.WithField("file", name).WithError(res.err).Error("failed to process image")
			}
		case res.record.HasGPS():
			batch.Items = append(batch.Items, Item{Index: res.index, Record: res.record, Path: path})
		case includeNoGPS:
			res.record.Coordinates = NoPosition()
			batch.Items = append(batch.Items, Item{Index: res.index, Record: res.record, Path: path})
		default:
			p.log.WithField("file", name).Debug("skipping photo without gps")
		}

		if progress != nil {
			progress(completed, total, "Analyzing: "+name)
		}
	}
	if ctx.Err() != nil {
		return nil, utils.Cancelled()
	}

	sort.Slice(batch.Items, func(i, j int) bool {
		return batch.Items[i].Index < batch.Items[j].Index
	})
	return batch, nil
}
