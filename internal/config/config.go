// Package config содержит конфигурацию приложения.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// BridgeMode определяет, чем декодировать WebP в промежуточный PNG.
type BridgeMode string

const (
	// BridgeAuto - dwebp, если найден, иначе встроенный декодер imaging.
	BridgeAuto BridgeMode = "auto"
	// BridgeDwebp - только внешний dwebp из libwebp.
	BridgeDwebp BridgeMode = "dwebp"
	// BridgeImaging - только встроенный декодер (disintegration/imaging).
	BridgeImaging BridgeMode = "imaging"
	// BridgeNone - промежуточная стратегия отключена.
	BridgeNone BridgeMode = "none"
)

// Имена стратегий в порядке каскада.
const (
	StrategyExternal = "external"
	StrategyLibrary  = "library"
	StrategyNative   = "native"
)

// AllStrategies возвращает все стратегии в каноническом порядке.
func AllStrategies() []string {
	return []string{StrategyExternal, StrategyLibrary, StrategyNative}
}

// SourceExtension - расширение входных файлов (без точки, lowercase).
const SourceExtension = "webp"

// ResultDirName - имя поддиректории с результатами рядом с исходным файлом.
const ResultDirName = "result"

// Config содержит все настройки для конвертации.
type Config struct {
	// FFmpegPath - путь к ffmpeg (опционально, иначе автопоиск).
	FFmpegPath string

	// DwebpPath - путь к dwebp (опционально, иначе автопоиск).
	DwebpPath string

	// Bridge - режим промежуточной стратегии.
	Bridge BridgeMode

	// Strategies - включённые стратегии. Порядок каскада всегда канонический.
	Strategies []string

	// TranscoderTimeout - таймаут на один запуск внешнего инструмента (0 = без таймаута).
	TranscoderTimeout time.Duration

	// DefaultDurationMS - длительность кадра, если в файле она не указана.
	DefaultDurationMS int

	// MaxPixels - предел площади холста WebP; файлы больше отклоняются до декодирования.
	MaxPixels int64

	// Recursive - обходить поддиректории при передаче директорий.
	Recursive bool

	// LogDir - директория для файлов лога каждого запуска.
	LogDir string

	// DBPath - путь к SQLite базе истории конвертаций.
	DBPath string

	// Debug - подробный вывод в консоль.
	Debug bool

	// NoProgress - отключить прогресс-бар.
	NoProgress bool

	// NoHistory - не записывать историю в SQLite.
	NoHistory bool

	// WatchDebounce - сколько ждать после последней записи файла в режиме watch.
	WatchDebounce time.Duration
}

// DefaultConfig возвращает конфигурацию по умолчанию.
func DefaultConfig() *Config {
	return &Config{
		Bridge:            BridgeAuto,
		Strategies:        AllStrategies(),
		TranscoderTimeout: 5 * time.Minute,
		DefaultDurationMS: 100,
		MaxPixels:         89_478_485,
		WatchDebounce:     500 * time.Millisecond,
	}
}

// Validate проверяет корректность конфигурации и заполняет пути по умолчанию.
func (c *Config) Validate() error {
	switch c.Bridge {
	case BridgeAuto, BridgeDwebp, BridgeImaging, BridgeNone:
	default:
		return fmt.Errorf("неизвестный режим bridge: %s (доступны: auto, dwebp, imaging, none)", c.Bridge)
	}

	if len(c.Strategies) == 0 {
		return fmt.Errorf("не включено ни одной стратегии (--strategies)")
	}
	seen := make(map[string]bool, len(c.Strategies))
	for _, s := range c.Strategies {
		name := strings.ToLower(strings.TrimSpace(s))
		switch name {
		case StrategyExternal, StrategyLibrary, StrategyNative:
		default:
			return fmt.Errorf("неизвестная стратегия: %s (доступны: %s)", s, strings.Join(AllStrategies(), ", "))
		}
		if seen[name] {
			return fmt.Errorf("стратегия указана дважды: %s", s)
		}
		seen[name] = true
	}

	if c.TranscoderTimeout < 0 {
		return fmt.Errorf("таймаут не может быть отрицательным: %s", c.TranscoderTimeout)
	}
	if c.DefaultDurationMS <= 0 {
		return fmt.Errorf("длительность кадра по умолчанию должна быть > 0, получено: %d", c.DefaultDurationMS)
	}

	if c.MaxPixels <= 0 {
		return fmt.Errorf("предел площади изображения должен быть > 0, получено: %d", c.MaxPixels)
	}

	// Пути по умолчанию
	if c.LogDir == "" {
		c.LogDir = defaultLogDir()
	}
	if c.DBPath == "" {
		c.DBPath = defaultDBPath()
	}

	return nil
}

// StrategyEnabled проверяет, включена ли стратегия.
func (c *Config) StrategyEnabled(name string) bool {
	for _, s := range c.Strategies {
		if strings.EqualFold(strings.TrimSpace(s), name) {
			return true
		}
	}
	return false
}

// IsSourceFile проверяет расширение пути без учёта регистра.
func IsSourceFile(path string) bool {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	return strings.EqualFold(ext, SourceExtension)
}

// OutputPath строит путь к GIF: <dir>/result/<base>.gif.
func OutputPath(srcPath string) string {
	dir := filepath.Dir(srcPath)
	base := filepath.Base(srcPath)
	base = strings.TrimSuffix(base, filepath.Ext(base)) + ".gif"
	return filepath.Join(dir, ResultDirName, base)
}

// defaultLogDir - ./logs рядом с исполняемым файлом.
func defaultLogDir() string {
	if execPath, err := os.Executable(); err == nil {
		return filepath.Join(filepath.Dir(execPath), "logs")
	}
	return "logs"
}

func defaultDBPath() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "webp2gif", "history.sqlite")
	}
	return filepath.Join(".webp2gif", "history.sqlite")
}

/*
Возможные расширения:
- Настраиваемый цвет фона для композитинга
- Поддержка прозрачности GIF через индекс прозрачного цвета
*/
