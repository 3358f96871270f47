package pipeline

import (
	"context"
	"os"
	"path/filepath"

	"geosnap/photo"
	"geosnap/report"
	"geosnap/store"
	"geosnap/utils"
)

// ForwardRequest asks for reports built from the photos in InputDir.
type ForwardRequest struct {
	InputDir    string
	OutputDir   string
	ProjectName string
	// IncludeNoGPS keeps photos without a position, listed with blank
	// coordinates.
	IncludeNoGPS bool
}

type namedEmitter struct {
	ext string
	em  report.Emitter
}

// ProcessPhotos extracts every photo in req.InputDir and writes
// <base>.kmz and <base>.xlsx (plus <base>.parquet when enabled) to
// req.OutputDir, overwriting earlier reports of the same name.
func (s *Service) ProcessPhotos(ctx context.Context, req ForwardRequest, progress photo.ProgressFunc) (summary *Summary, err error) {
	log := s.log.WithField("path", req.InputDir)
	log.Info("Starting backend process")

	rec := s.startRun(store.ModePhotos, req.InputDir, req.OutputDir, req.ProjectName)
	defer func() {
		processed := 0
		if summary != nil {
			processed = summary.Processed
		}
		rec.finish(processed, err)
	}()

	if err := requireDir(req.InputDir); err != nil {
		return nil, err
	}
	base := baseName(req.ProjectName, defaultForwardBase, ".kmz", ".xlsx")

	proc := photo.NewProcessor(s.extractor, s.cfg.Workers, s.log)
	batch, err := proc.Process(ctx, req.InputDir, req.IncludeNoGPS, progress)
	if err != nil {
		return nil, err
	}
	total := len(batch.Items)
	if total == 0 {
		return nil, utils.NoUsableData(batch.Scanned, req.InputDir)
	}

	emitters, err := s.forwardEmitters(base)
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

	for i, item := range batch.Items {
		if ctx.Err() != nil {
			log.Info("Cancellation detected during report generation")
			return nil, utils.Cancelled()
		}
		if progress != nil {
			progress(i, total, "Generating report: "+item.Record.Filename)
		}
		entry := report.Entry{
			Ordinal:  i + 1,
			Record:   item.Record,
			Altitude: item.Record.Coordinates.RoundedAltitude(),
		}
		for _, ne := range emitters {
			if err := ne.em.Add(entry); err != nil {
				return nil, utils.Wrap(err, "failed to add "+item.Record.Filename+" to report")
			}
		}
	}
	if progress != nil {
		progress(total, total, "Saving files...")
	}

	if err := os.MkdirAll(req.OutputDir, 0o755); err != nil {
		return nil, utils.Wrap(err, "failed to create output directory")
	}
	summary = &Summary{Processed: total, Scanned: batch.Scanned, Failed: batch.Failed}
	for _, ne := range emitters {
		path := filepath.Join(req.OutputDir, base+ne.ext)
		if err := ne.em.Save(path); err != nil {
			return nil, utils.Wrap(err, "failed to save report")
		}
		summary.Outputs = append(summary.Outputs, path)
		rec.output(path)
	}

	log.Infof("Process completed. %d photos processed.", total)
	return summary, nil
}

// forwardEmitters builds the forward-mode emitters. On error the ones
// already built are returned so the caller can close them.
func (s *Service) forwardEmitters(base string) ([]namedEmitter, error) {
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

	xlsx, err := report.NewXLSX()
	if err != nil {
		return out, err
	}
	out = append(out, namedEmitter{".xlsx", xlsx})

	if s.cfg.Outputs.Parquet {
		out = append(out, namedEmitter{".parquet", report.NewParquet()})
	}
	return out, nil
}
