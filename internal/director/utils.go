package director

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/ivlev/scenereel/internal/system"
)

// StoryboardExtensions - расширения файлов сторибордов.
var StoryboardExtensions = []string{".yaml", ".yml", ".json"}

// StoryboardPath создает имя файла сториборда с меткой времени.
func StoryboardPath(dir string, now time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("storyboard_%s.yaml", now.Format("2006-01-02_15-04-05")))
}

// FindLatestStoryboard ищет самый свежий сториборд в папке.
func FindLatestStoryboard(dir string) (string, error) {
	path, err := system.FindLatest(dir, StoryboardExtensions...)
	if err != nil {
		return "", fmt.Errorf("find storyboard: %w", err)
	}
	return path, nil
}
