// Package pipeline turns a folder of photos, or a spreadsheet plus a folder
// of photos, into report files.
package pipeline

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"geosnap/config"
	"geosnap/photo"
	"geosnap/sheet"
	"geosnap/store"
	"geosnap/utils"
)

const (
	defaultForwardBase = "reporte_completo"
	defaultReverseBase = "reporte_desde_excel"
)

// Recorder stores the history of runs. *store.Ledger satisfies it.
type Recorder interface {
	StartRun(mode, input, output, project string) (string, error)
	FinishRun(id, status string, processed int, runErr error) error
	AddOutput(runID, path string) error
}

// Service runs the forward, reverse and pre-flight operations. Each call
// is independent; a Service may be reused but not shared by concurrent calls
// that write to the same output directory.
type Service struct {
	cfg       *config.Config
	log       logrus.FieldLogger
	extractor *photo.Extractor
	importer  *sheet.Importer
	recorder  Recorder
}

// New returns a Service. A nil extractor is built from cfg.
func New(cfg *config.Config, log logrus.FieldLogger, extractor *photo.Extractor) *Service {
	if cfg == nil {
		cfg = config.Default()
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	if extractor == nil {
		extractor = photo.NewExtractor(cfg.Declinator(), log)
	}
	return &Service{
		cfg:       cfg,
		log:       log,
		extractor: extractor,
		importer:  sheet.NewImporter(log),
	}
}

// WithRecorder makes the Service record every run in r.
func (s *Service) WithRecorder(r Recorder) *Service {
	s.recorder = r
	return s
}

// Summary describes a finished run.
type Summary struct {
	Processed int
	Scanned   int
	Failed    int
	Outputs   []string
	// Missing lists spreadsheet rows whose photo was not found.
	Missing []string
	// Skipped lists spreadsheet rows rejected because their path escapes
	// the photos directory.
	Skipped []string
}

// Message is the human-readable success report.
func (s *Summary) Message() string {
	var b strings.Builder
	fmt.Fprintf(&b, "SUCCESS!\nProcessed: %d photos.\nGenerated:", s.Processed)
	for _, out := range s.Outputs {
		fmt.Fprintf(&b, "\n- %s", filepath.Base(out))
	}
	if len(s.Missing) > 0 {
		fmt.Fprintf(&b, "\nNot found: %d (%s)", len(s.Missing), strings.Join(s.Missing, ", "))
	}
	if len(s.Skipped) > 0 {
		fmt.Fprintf(&b, "\nSkipped for security: %d (%s)", len(s.Skipped), strings.Join(s.Skipped, ", "))
	}
	return b.String()
}

// UniquePath returns path when nothing exists there, otherwise the first
// free "<stem>_<n><ext>" with n counting from 1.
func UniquePath(path string) string {
	if _, err := os.Lstat(path); errors.Is(err, os.ErrNotExist) {
		return path
	}
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)
	for i := 1; ; i++ {
		candidate := stem + "_" + strconv.Itoa(i) + ext
		if _, err := os.Lstat(candidate); errors.Is(err, os.ErrNotExist) {
			return candidate
		}
	}
}

// baseName derives the output file stem from a project name. Known report
// extensions are removed and any directory part is ignored.
func baseName(project, fallback string, strip ...string) string {
	name := strings.TrimSpace(project)
	for _, ext := range strip {
		name = strings.ReplaceAll(name, ext, "")
	}
	name = strings.TrimSpace(filepath.Base(filepath.Clean("/" + name)))
	if name == "" || name == "/" || name == "." {
		return fallback
	}
	return name
}

func requireDir(path string) error {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return utils.InputMissing(path)
	}
	return nil
}

func requireFile(path string) error {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return utils.InputMissing(path)
	}
	return nil
}

// run tracks one ledger entry. All methods are no-ops without a recorder.
type run struct {
	s  *Service
	id string
}

func (s *Service) startRun(mode, input, output, project string) *run {
	r := &run{s: s}
	if s.recorder == nil {
		return r
	}
	id, err := s.recorder.StartRun(mode, input, output, project)
	if err != nil {
		s.log.WithError(err).Warn("failed to record run start")
		return r
	}
	r.id = id
	return r
}

func (r *run) output(path string) {
	if r.id == "" {
		return
	}
	if err := r.s.recorder.AddOutput(r.id, path); err != nil {
		r.s.log.WithField("path", path).WithError(err).Warn("failed to record run output")
	}
}

func (r *run) finish(processed int, err error) {
	if r.id == "" {
		return
	}
	status := store.StatusCompleted
	switch {
	case err == nil:
	case utils.KindOf(err) == utils.KindCancelled:
		status = store.StatusCancelled
	default:
		status = store.StatusFailed
	}
	if ferr := r.s.recorder.FinishRun(r.id, status, processed, err); ferr != nil {
		r.s.log.WithError(ferr).Warn("failed to record run result")
	}
}
