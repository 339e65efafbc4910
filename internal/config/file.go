// Package config содержит конфигурацию приложения.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// FileConfig представляет структуру конфигурационного файла YAML.
// Все поля опциональны - если не указаны, используются значения по умолчанию.
type FileConfig struct {
	// Tools - пути к внешним инструментам.
	Tools *ToolsConfig `yaml:"tools,omitempty"`

	// Conversion - настройки каскада.
	Conversion *ConversionConfig `yaml:"conversion,omitempty"`

	// Output - настройки вывода.
	Output *OutputConfig `yaml:"output,omitempty"`

	// Paths - настройки путей.
	Paths *PathsConfig `yaml:"paths,omitempty"`
}

// ToolsConfig содержит пути к внешним инструментам.
type ToolsConfig struct {
	// FFmpeg - путь к ffmpeg.
	FFmpeg string `yaml:"ffmpeg,omitempty"`

	// Dwebp - путь к dwebp.
	Dwebp string `yaml:"dwebp,omitempty"`

	// Timeout - таймаут внешнего инструмента ("90s", "5m", "0" = без таймаута).
	Timeout string `yaml:"timeout,omitempty"`
}

// ConversionConfig содержит настройки каскада.
type ConversionConfig struct {
	// Bridge - auto, dwebp, imaging или none.
	Bridge string `yaml:"bridge,omitempty"`

	// Strategies - включённые стратегии.
	Strategies []string `yaml:"strategies,omitempty"`

	// DefaultDurationMS - длительность кадра без метаданных.
	DefaultDurationMS int `yaml:"default_duration_ms,omitempty"`

	// MaxPixels - предел площади холста.
	MaxPixels int64 `yaml:"max_pixels,omitempty"`

	// Recursive - обходить поддиректории.
	Recursive bool `yaml:"recursive,omitempty"`
}

// OutputConfig содержит настройки вывода.
type OutputConfig struct {
	// Debug - подробный вывод.
	Debug bool `yaml:"debug,omitempty"`

	// NoProgress - отключить прогресс-бар.
	NoProgress bool `yaml:"no_progress,omitempty"`

	// NoHistory - не вести историю.
	NoHistory bool `yaml:"no_history,omitempty"`
}

// PathsConfig содержит настройки путей.
type PathsConfig struct {
	// Logs - директория логов.
	Logs string `yaml:"logs,omitempty"`

	// DB - путь к SQLite базе истории.
	DB string `yaml:"db,omitempty"`
}

// DefaultConfigPaths возвращает список путей для поиска конфигурационного файла.
// Поиск выполняется в следующем порядке:
// 1. ./webp2gif.yaml (текущая директория)
// 2. ./webp2gif.yml
// 3. ~/.config/webp2gif/config.yaml
// 4. ~/.config/webp2gif/config.yml
func DefaultConfigPaths() []string {
	paths := []string{
		"webp2gif.yaml",
		"webp2gif.yml",
	}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths,
			filepath.Join(home, ".config", "webp2gif", "config.yaml"),
			filepath.Join(home, ".config", "webp2gif", "config.yml"),
		)
	}

	return paths
}

// LoadFromFile загружает конфигурацию из указанного файла.
// Возвращает nil, nil если файл не существует.
func LoadFromFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("не удалось прочитать файл конфигурации %s: %w", path, err)
	}

	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("ошибка парсинга YAML в %s: %w", path, err)
	}

	return &fc, nil
}

// FindAndLoadConfig ищет и загружает конфигурационный файл из стандартных путей.
// Если configPath указан явно, использует только его.
// Возвращает nil, nil если файл не найден.
func FindAndLoadConfig(configPath string) (*FileConfig, string, error) {
	if configPath != "" {
		fc, err := LoadFromFile(configPath)
		if err != nil {
			return nil, "", err
		}
		if fc == nil {
			return nil, "", fmt.Errorf("файл конфигурации не найден: %s", configPath)
		}
		return fc, configPath, nil
	}

	for _, path := range DefaultConfigPaths() {
		fc, err := LoadFromFile(path)
		if err != nil {
			return nil, "", err
		}
		if fc != nil {
			return fc, path, nil
		}
	}

	return nil, "", nil
}

// ApplyToConfig применяет настройки из файла к основной конфигурации.
// CLI флаги имеют приоритет над файлом конфигурации, поэтому
// эта функция должна вызываться до применения CLI флагов.
func (fc *FileConfig) ApplyToConfig(cfg *Config) error {
	if fc == nil {
		return nil
	}

	if fc.Tools != nil {
		if fc.Tools.FFmpeg != "" {
			cfg.FFmpegPath = fc.Tools.FFmpeg
		}
		if fc.Tools.Dwebp != "" {
			cfg.DwebpPath = fc.Tools.Dwebp
		}
		if fc.Tools.Timeout != "" {
			d, err := parseTimeout(fc.Tools.Timeout)
			if err != nil {
				return err
			}
			cfg.TranscoderTimeout = d
		}
	}

	if fc.Conversion != nil {
		if fc.Conversion.Bridge != "" {
			cfg.Bridge = BridgeMode(fc.Conversion.Bridge)
		}
		if len(fc.Conversion.Strategies) > 0 {
			cfg.Strategies = fc.Conversion.Strategies
		}
		if fc.Conversion.DefaultDurationMS > 0 {
			cfg.DefaultDurationMS = fc.Conversion.DefaultDurationMS
		}
		if fc.Conversion.MaxPixels > 0 {
			cfg.MaxPixels = fc.Conversion.MaxPixels
		}
		if fc.Conversion.Recursive {
			cfg.Recursive = true
		}
	}

	if fc.Output != nil {
		if fc.Output.Debug {
			cfg.Debug = true
		}
		if fc.Output.NoProgress {
			cfg.NoProgress = true
		}
		if fc.Output.NoHistory {
			cfg.NoHistory = true
		}
	}

	if fc.Paths != nil {
		if fc.Paths.Logs != "" {
			cfg.LogDir = fc.Paths.Logs
		}
		if fc.Paths.DB != "" {
			cfg.DBPath = fc.Paths.DB
		}
	}

	return nil
}

func parseTimeout(s string) (time.Duration, error) {
	if s == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("некорректный таймаут %q: %w", s, err)
	}
	return d, nil
}

// GenerateExampleConfig генерирует пример конфигурационного файла.
func GenerateExampleConfig() string {
	return `# webp2gif configuration file
# Все параметры опциональны - если не указаны, используются значения по умолчанию.
# CLI флаги имеют приоритет над этим файлом.

tools:
  # Путь к ffmpeg (по умолчанию автопоиск: WEBP2GIF_FFMPEG, PATH, ./bin)
  ffmpeg: ""
  # Путь к dwebp (по умолчанию автопоиск: WEBP2GIF_DWEBP, PATH, ./bin)
  dwebp: ""
  # Таймаут одного запуска внешнего инструмента ("0" = без таймаута)
  timeout: 5m

conversion:
  # Промежуточный декодер: auto, dwebp, imaging, none
  bridge: auto
  # Включённые стратегии (порядок каскада фиксирован)
  strategies:
    - external
    - library
    - native
  # Длительность кадра, если она не указана в файле
  default_duration_ms: 100
  # Предел площади холста в пикселях (файлы больше не декодируются)
  max_pixels: 89478485
  # Обходить поддиректории
  recursive: false

output:
  # Подробный вывод
  debug: false
  # Отключить прогресс-бар
  no_progress: false
  # Не записывать историю конвертаций
  no_history: false

paths:
  # Директория логов (по умолчанию ./logs рядом с бинарником)
  logs: ""
  # Путь к SQLite базе истории
  db: ""
`
}
