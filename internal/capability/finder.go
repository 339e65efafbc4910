// Package capability отвечает за поиск внешних инструментов и проверку их работоспособности.
package capability

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// ErrNotFound возвращается, когда бинарник не найден ни в одном из мест поиска.
var ErrNotFound = errors.New("бинарник не найден")

// ToolInfo содержит информацию о найденном инструменте.
type ToolInfo struct {
	// Name - имя инструмента (ffmpeg, dwebp).
	Name string

	// Path - абсолютный путь к бинарнику.
	Path string

	// Version - первая строка вывода версии.
	Version string
}

// Finder ищет бинарник инструмента.
type Finder struct {
	// Name - имя бинарника без расширения.
	Name string

	// CustomPath - пользовательский путь (из флага или файла конфигурации).
	CustomPath string

	// EnvVar - имя переменной окружения для пути к бинарнику.
	EnvVar string
}

// NewFinder создаёт Finder для инструмента name.
// Переменная окружения строится как WEBP2GIF_<NAME>.
func NewFinder(name, customPath string) *Finder {
	return &Finder{
		Name:       name,
		CustomPath: customPath,
		EnvVar:     "WEBP2GIF_" + strings.ToUpper(name),
	}
}

// Candidates возвращает пути-кандидаты в порядке приоритета:
// 1. CustomPath (если задан)
// 2. Переменная окружения
// 3. PATH
// 4. Рядом с исполняемым файлом в ./bin/<os-arch>/, ./bin/ и в той же директории
func (f *Finder) Candidates() []string {
	var candidates []string

	if f.CustomPath != "" {
		candidates = append(candidates, f.CustomPath)
	}

	if envPath := os.Getenv(f.EnvVar); envPath != "" {
		candidates = append(candidates, envPath)
	}

	if pathBin, err := exec.LookPath(f.Name); err == nil {
		candidates = append(candidates, pathBin)
	}

	if execPath, err := os.Executable(); err == nil {
		execDir := filepath.Dir(execPath)
		platformDir := fmt.Sprintf("%s-%s", runtime.GOOS, runtime.GOARCH)
		bin := binaryName(f.Name)

		candidates = append(candidates,
			filepath.Join(execDir, "bin", platformDir, bin),
			filepath.Join(execDir, "bin", bin),
			filepath.Join(execDir, bin),
		)
	}

	return candidates
}

// Locate возвращает абсолютный путь к первому существующему кандидату.
// Если явно указанный путь не существует, поиск продолжается по остальным местам.
func (f *Finder) Locate() (string, error) {
	for _, path := range f.Candidates() {
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("не удалось получить абсолютный путь %s: %w", path, err)
		}
		return absPath, nil
	}

	return "", fmt.Errorf("%s: %w (проверьте PATH, переменную %s или ./bin/<os-arch>/)", f.Name, ErrNotFound, f.EnvVar)
}

// firstLine возвращает первую непустую строку вывода.
// Пример вывода ffmpeg: "ffmpeg version 6.1.1 Copyright (c) 2000-2023 ..."
func firstLine(output string) string {
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			return line
		}
	}
	return ""
}

// binaryName возвращает имя бинарника для текущей ОС.
func binaryName(name string) string {
	if runtime.GOOS == "windows" {
		return name + ".exe"
	}
	return name
}
