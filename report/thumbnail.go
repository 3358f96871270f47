package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
)

// ThumbnailOptions controls the previews embedded in reports.
type ThumbnailOptions struct {
	MaxSize int // longest edge, pixels
	Quality int // JPEG quality, 1-100
}

var DefaultThumbnails = ThumbnailOptions{MaxSize: 800, Quality: 75}

// generateThumbnail writes a JPEG preview of srcPath to destPath, rotated
// according to its EXIF orientation and scaled to fit within MaxSize.
// Images already smaller than MaxSize are not enlarged.
func generateThumbnail(srcPath, destPath string, opts ThumbnailOptions) error {
	srcImg, err := imaging.Open(srcPath, imaging.AutoOrientation(true))
	if err != nil {
		return fmt.Errorf("failed to open image: %w", err)
	}

	thumbImg := imaging.Fit(srcImg, opts.MaxSize, opts.MaxSize, imaging.Lanczos)

	if err := os.MkdirAll(filepath.Dir(destPath), os.ModePerm); err != nil {
		return fmt.Errorf("failed to create thumbnail directory: %w", err)
	}
	if err := imaging.Save(thumbImg, destPath, imaging.JPEGQuality(opts.Quality)); err != nil {
		return fmt.Errorf("failed to save thumbnail: %w", err)
	}
	return nil
}

// thumbStage is a private scratch directory of generated thumbnails.
type thumbStage struct {
	dir  string
	opts ThumbnailOptions
	used map[string]bool
}

func newThumbStage(opts ThumbnailOptions) (*thumbStage, error) {
	if opts.MaxSize <= 0 {
		opts.MaxSize = DefaultThumbnails.MaxSize
	}
	if opts.Quality <= 0 {
		opts.Quality = DefaultThumbnails.Quality
	}
	dir, err := os.MkdirTemp("", "geosnap-thumbs-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create thumbnail staging directory: %w", err)
	}
	return &thumbStage{dir: dir, opts: opts, used: make(map[string]bool)}, nil
}

// add renders a thumbnail for src and returns its staged path and the
// archive name "thumb_<stem>.jpg", made unique within the stage.
func (s *thumbStage) add(src string) (string, string, error) {
	stem := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
	name := "thumb_" + stem + ".jpg"
	for i := 1; s.used[strings.ToLower(name)]; i++ {
		name = "thumb_" + stem + "_" + strconv.Itoa(i) + ".jpg"
	}

	staged := filepath.Join(s.dir, name)
	if err := generateThumbnail(src, staged, s.opts); err != nil {
		return "", "", fmt.Errorf("thumbnail generation failed for %s: %w", filepath.Base(src), err)
	}
	s.used[strings.ToLower(name)] = true
	return staged, name, nil
}

func (s *thumbStage) cleanup() error {
	if s == nil || s.dir == "" {
		return nil
	}
	err := os.RemoveAll(s.dir)
	s.dir = ""
	return err
}
