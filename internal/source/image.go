package source

import (
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	_ "golang.org/x/image/webp"

	"github.com/ivlev/scenereel/internal/system"
)

var ErrPageRange = errors.New("page out of range")

// ImageSource - одна картинка или папка картинок, по странице на файл.
type ImageSource struct {
	paths []string
}

// NewImageSource принимает одну картинку или папку; страницы папки идут
// в алфавитном порядке имён.
func NewImageSource(path string) (*ImageSource, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !fi.IsDir() {
		return &ImageSource{paths: []string{path}}, nil
	}
	paths, err := system.ListFiles(path, system.ImageExtensions...)
	if err != nil {
		return nil, err
	}
	return &ImageSource{paths: paths}, nil
}

func (s *ImageSource) Paths() []string { return s.paths }

func (s *ImageSource) PageCount() int { return len(s.paths) }

// decode открывает страницу index и отдаёт файл функции fn.
func (s *ImageSource) decode(index int, fn func(f *os.File) error) error {
	if index < 0 || index >= len(s.paths) {
		return fmt.Errorf("%w: %d of %d", ErrPageRange, index, len(s.paths))
	}
	f, err := os.Open(s.paths[index])
	if err != nil {
		return err
	}
	defer f.Close()
	if err := fn(f); err != nil {
		return fmt.Errorf("decode %s: %w", s.paths[index], err)
	}
	return nil
}

func (s *ImageSource) GetPageDimensions(index int) (float64, float64, error) {
	var cfg image.Config
	err := s.decode(index, func(f *os.File) (err error) {
		cfg, _, err = image.DecodeConfig(f)
		return err
	})
	return float64(cfg.Width), float64(cfg.Height), err
}

// RenderPage игнорирует dpi: картинки уже растровые.
func (s *ImageSource) RenderPage(index int, _ int) (image.Image, error) {
	var img image.Image
	err := s.decode(index, func(f *os.File) (err error) {
		img, _, err = image.Decode(f)
		return err
	})
	return img, err
}

func (s *ImageSource) Close() error { return nil }
