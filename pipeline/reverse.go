package pipeline

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"geosnap/photo"
	"geosnap/report"
	"geosnap/store"
	"geosnap/utils"
)

// ReverseRequest asks for a KMZ built from a user-edited spreadsheet, with
// the photos it names looked up below PhotosDir.
type ReverseRequest struct {
	SheetPath   string
	PhotosDir   string
	OutputDir   string
	ProjectName string
	// Document also writes the paginated photo-caption PDF.
	Document bool
}

// ProcessSpreadsheet rebuilds the overlay from req.SheetPath. Output names
// never overwrite: an existing <base>.kmz becomes <base>_1.kmz and so on.
func (s *Service) ProcessSpreadsheet(ctx context.Context, req ReverseRequest, progress photo.ProgressFunc) (summary *Summary, err error) {
	log := s.log.WithField("path", req.SheetPath)
	log.Info("Starting reverse process from spreadsheet")

	rec := s.startRun(store.ModeSheet, req.SheetPath, req.OutputDir, req.ProjectName)
	defer func() {
		processed := 0
		if summary != nil {
			processed = summary.Processed
		}
		rec.finish(processed, err)
	}()

	if err := requireFile(req.SheetPath); err != nil {
		return nil, err
	}
	if err := requireDir(req.PhotosDir); err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, utils.Cancelled()
	}

	records, err := s.importer.Parse(req.SheetPath)
	if err != nil {
		return nil, utils.Wrap(err, "failed to import spreadsheet")
	}
	total := len(records)
	if total == 0 {
		return nil, utils.NoUsableData(0, req.SheetPath)
	}
	sortBySequence(records)
	log.Infof("Sorted %d items by sequence id", total)

	if progress != nil {
		progress(0, total, "Indexing photos...")
	}
	index, err := photo.BuildIndex(req.PhotosDir, s.log)
	if err != nil {
		return nil, utils.Wrap(err, "failed to index photos")
	}

	base := baseName(req.ProjectName, defaultReverseBase, ".kmz")
	emitters, err := s.reverseEmitters(base, req.Document)
	defer func() {
		for _, ne := range emitters {
			if cerr := ne.em.Close(); cerr != nil {
				s.log.WithError(cerr).Warn("failed to release report resources")
			}
		}
	}()
	if err != nil {
		return nil, utils.Wrap(err, "failed to prepare reports")
	}

	summary = &Summary{Scanned: total}
	for i, r := range records {
		if ctx.Err() != nil {
			log.Info("Cancellation detected while building reports")
			return nil, utils.Cancelled()
		}
		flog := s.log.WithField("file", r.Filename)

		if strings.ContainsAny(r.Filename, `/\`) {
			flog.Warn("Security: skipping name with path separators")
			summary.Skipped = append(summary.Skipped, r.Filename)
			continue
		}
		path, ok := index.Lookup(r.Filename)
		if !ok {
			flog.Warnf("Photo not found in source directory: %s", req.PhotosDir)
			summary.Missing = append(summary.Missing, r.Filename)
			if progress != nil {
				progress(i+1, total, "Not found: "+r.Filename)
			}
			continue
		}
		if !index.Contains(path) {
			flog.Warn("Security: skipping path that escapes the photos directory")
			summary.Skipped = append(summary.Skipped, r.Filename)
			continue
		}

		r.ResolvedPath = path
		if r.Timestamp == nil {
			if info, err := os.Stat(path); err == nil {
				mtime := info.ModTime()
				r.Timestamp = &mtime
			}
		}

		entry := report.Entry{Ordinal: i + 1, Record: r, Altitude: r.Coordinates.RoundedAltitude()}
		for _, ne := range emitters {
			if err := ne.em.Add(entry); err != nil {
				return nil, utils.Wrap(err, "failed to add "+r.Filename+" to report")
			}
		}
		summary.Processed++
		if progress != nil {
			progress(i+1, total, "Added: "+r.Filename)
		}
	}

	if summary.Processed == 0 {
		return nil, utils.NoUsableData(total, req.SheetPath)
	}

	if err := os.MkdirAll(req.OutputDir, 0o755); err != nil {
		return nil, utils.Wrap(err, "failed to create output directory")
	}
	for _, ne := range emitters {
		path := UniquePath(filepath.Join(req.OutputDir, base+ne.ext))
		if err := ne.em.Save(path); err != nil {
			return nil, utils.Wrap(err, "failed to save report")
		}
		summary.Outputs = append(summary.Outputs, path)
		rec.output(path)
	}

	log.Infof("Reverse process completed. %d of %d rows placed.", summary.Processed, total)
	return summary, nil
}

func (s *Service) reverseEmitters(base string, document bool) ([]namedEmitter, error) {
	var out []namedEmitter
	kmz, err := report.NewKMZ(report.KMZOptions{
		Name:       base,
		Thumbnails: s.cfg.ThumbnailOptions(),
		Arrow:      s.cfg.ArrowShape(),
		ArrowWidth: s.cfg.Arrow.Width,
	}, s.log)
	if err != nil {
		return out, err
	}
	out = append(out, namedEmitter{".kmz", kmz})

	if document {
		doc, err := report.NewDocument(s.cfg.ThumbnailOptions(), s.log)
		if err != nil {
			return out, err
		}
		out = append(out, namedEmitter{".pdf", doc})
	}
	return out, nil
}

// sortBySequence orders records by their integer sequence id. Records with
// no id, or one that is not an integer, keep their row order at the end.
func sortBySequence(records []photo.PhotoRecord) {
	key := func(r photo.PhotoRecord) int64 {
		if r.SequenceID == nil {
			return math.MaxInt64
		}
		n, err := strconv.ParseInt(strings.TrimSpace(*r.SequenceID), 10, 64)
		if err != nil {
			return math.MaxInt64
		}
		return n
	}
	sort.SliceStable(records, func(i, j int) bool {
		return key(records[i]) < key(records[j])
	})
}

// CheckMissingFiles lists, in row order, the spreadsheet file names that
// have no photo below photosDir. Only names are compared.
func (s *Service) CheckMissingFiles(sheetPath, photosDir string) ([]string, error) {
	if err := requireFile(sheetPath); err != nil {
		return nil, err
	}
	if err := requireDir(photosDir); err != nil {
		return nil, err
	}
	records, err := s.importer.Parse(sheetPath)
	if err != nil {
		return nil, utils.Wrap(err, "failed to import spreadsheet")
	}
	index, err := photo.BuildIndex(photosDir, s.log)
	if err != nil {
		return nil, utils.Wrap(err, "failed to index photos")
	}

	var missing []string
	for _, r := range records {
		if _, ok := index.Lookup(r.Filename); !ok {
			missing = append(missing, r.Filename)
		}
	}
	s.log.Infof("Pre-flight check: %d missing files out of %d", len(missing), len(records))
	return missing, nil
}
