// Package director готовит сториборды: чтение и запись файлов, проверку,
// заготовку из PDF или папки картинок и автоматическую расстановку
// спотлайтов по найденным на кадре блокам.
package director

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/ivlev/scenereel/internal/model"
)

const Version = "1"

var ErrUnknownFormat = errors.New("unknown storyboard format")

// Storyboard - файл с одним проектом и его сценами.
type Storyboard struct {
	Version string        `json:"version" yaml:"version"`
	Project ProjectSpec   `json:"project" yaml:"project"`
	Scenes  []model.Scene `json:"scenes" yaml:"scenes"`
}

type ProjectSpec struct {
	Name             string      `json:"name" yaml:"name"`
	TargetDurationMs int         `json:"targetDurationMs,omitempty" yaml:"target_duration_ms,omitempty"`
	Brand            model.Brand `json:"brand" yaml:"brand"`
	// Audio - дорожка для локального рендера из CLI.
	Audio string `json:"audio,omitempty" yaml:"audio,omitempty"`
}

// FormatOf возвращает формат файла по расширению: "yaml" или "json".
func FormatOf(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml", nil
	case ".json":
		return "json", nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownFormat, filepath.Ext(path))
	}
}

// Decode разбирает сториборд из потока. Версия пустая или "1".
func Decode(r io.Reader, format string) (*Storyboard, error) {
	var sb Storyboard
	switch format {
	case "yaml":
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(&sb); err != nil {
			return nil, fmt.Errorf("%w: decode yaml: %v", model.ErrInvalidInput, err)
		}
	case "json":
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&sb); err != nil {
			return nil, fmt.Errorf("%w: decode json: %v", model.ErrInvalidInput, err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	if sb.Version != "" && sb.Version != Version {
		return nil, fmt.Errorf("%w: unsupported storyboard version %q", model.ErrInvalidInput, sb.Version)
	}
	return &sb, nil
}

// Read читает сториборд, формат определяется по расширению.
func Read(path string) (*Storyboard, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f, format)
}

// Write сохраняет сториборд, формат определяется по расширению.
func Write(sb *Storyboard, path string) error {
	format, err := FormatOf(path)
	if err != nil {
		return err
	}
	var data []byte
	if format == "json" {
		data, err = json.MarshalIndent(sb, "", "  ")
	} else {
		data, err = yaml.Marshal(sb)
	}
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0644)
}

// ToProject превращает сториборд в черновик проекта с данным id. Сцены
// получают ProjectID и сортируются по OrderIndex.
func (sb *Storyboard) ToProject(id uuid.UUID, now time.Time) (model.Project, []model.Scene) {
	p := model.Project{
		ID:               id,
		Name:             sb.Project.Name,
		TargetDurationMs: sb.Project.TargetDurationMs,
		Brand:            sb.Project.Brand,
		Status:           model.ProjectDraft,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	scenes := model.SortScenes(sb.Scenes)
	for i := range scenes {
		scenes[i].ProjectID = id
	}
	return p, scenes
}

// FromProject собирает сториборд из сохранённого проекта.
func FromProject(p model.Project, scenes []model.Scene) *Storyboard {
	return &Storyboard{
		Version: Version,
		Project: ProjectSpec{
			Name:             p.Name,
			TargetDurationMs: p.TargetDurationMs,
			Brand:            p.Brand,
		},
		Scenes: model.SortScenes(scenes),
	}
}
