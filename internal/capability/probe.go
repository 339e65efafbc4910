package capability

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/artemshloyda/webp2gif/internal/config"
	"github.com/artemshloyda/webp2gif/internal/execx"
)

// Имена бэкендов промежуточной стратегии.
const (
	BackendDwebp   = "dwebp"
	BackendImaging = "imaging"
)

// versionTimeout ограничивает запуск "<tool> -version".
const versionTimeout = 10 * time.Second

// Availability - снимок доступности инструментов на начало пакета.
type Availability struct {
	// ExternalTranscoder - ffmpeg найден и отвечает на -version.
	ExternalTranscoder bool

	// FFmpeg - найденный ffmpeg (пустой Path, если не найден).
	FFmpeg ToolInfo

	// LibraryBridge - промежуточный декодер доступен.
	LibraryBridge bool

	// BridgeBackend - выбранный бэкенд: dwebp, imaging или пусто.
	BridgeBackend string

	// Dwebp - найденный dwebp (пустой Path, если не найден).
	Dwebp ToolInfo
}

// Options - параметры проверки.
type Options struct {
	// FFmpegPath - явный путь к ffmpeg.
	FFmpegPath string

	// DwebpPath - явный путь к dwebp.
	DwebpPath string

	// Bridge - режим промежуточной стратегии.
	Bridge config.BridgeMode

	// SkipExternal - не искать ffmpeg (стратегия выключена).
	SkipExternal bool
}

// OptionsFromConfig собирает Options из конфигурации.
func OptionsFromConfig(cfg *config.Config) Options {
	bridge := cfg.Bridge
	if !cfg.StrategyEnabled(config.StrategyLibrary) {
		bridge = config.BridgeNone
	}
	return Options{
		FFmpegPath:   cfg.FFmpegPath,
		DwebpPath:    cfg.DwebpPath,
		Bridge:       bridge,
		SkipExternal: !cfg.StrategyEnabled(config.StrategyExternal),
	}
}

// Prober проверяет, какие инструменты доступны.
type Prober struct {
	opts   Options
	logger *slog.Logger
}

// NewProber создаёт Prober.
func NewProber(opts Options, logger *slog.Logger) *Prober {
	if logger == nil {
		logger = slog.Default()
	}
	return &Prober{opts: opts, logger: logger}
}

// Probe выполняет проверку. Никогда не возвращает ошибку:
// любая проблема означает только, что инструмент недоступен.
func (p *Prober) Probe(ctx context.Context) Availability {
	var av Availability

	if !p.opts.SkipExternal {
		av.FFmpeg, av.ExternalTranscoder = p.probeTool(ctx, "ffmpeg", p.opts.FFmpegPath)
	}

	switch p.opts.Bridge {
	case config.BridgeDwebp:
		av.Dwebp, av.LibraryBridge = p.probeTool(ctx, "dwebp", p.opts.DwebpPath)
		if av.LibraryBridge {
			av.BridgeBackend = BackendDwebp
		}
	case config.BridgeImaging:
		// Встроенный декодер собран в бинарник и доступен всегда.
		av.LibraryBridge = true
		av.BridgeBackend = BackendImaging
	case config.BridgeAuto:
		av.Dwebp, av.LibraryBridge = p.probeTool(ctx, "dwebp", p.opts.DwebpPath)
		switch {
		case av.LibraryBridge:
			av.BridgeBackend = BackendDwebp
		default:
			av.LibraryBridge = true
			av.BridgeBackend = BackendImaging
			p.logger.Info("промежуточная стратегия использует встроенный декодер")
		}
	}

	p.logger.Debug("доступность инструментов",
		"ffmpeg", av.ExternalTranscoder,
		"bridge", av.LibraryBridge,
		"backend", av.BridgeBackend,
	)

	return av
}

// probeTool ищет инструмент и запускает "<tool> -version".
func (p *Prober) probeTool(ctx context.Context, name, customPath string) (ToolInfo, bool) {
	info := ToolInfo{Name: name}

	path, err := NewFinder(name, customPath).Locate()
	if err != nil {
		p.logger.Info("инструмент не найден", "tool", name, "error", err)
		return info, false
	}
	info.Path = path

	res, err := execx.Run(ctx, versionTimeout, path, "-version")
	if err != nil {
		var exitErr *execx.ExitError
		if errors.As(err, &exitErr) {
			p.logger.Warn("инструмент вернул ошибку при проверке версии",
				"tool", name, "path", path, "code", exitErr.Code)
		} else {
			p.logger.Error("не удалось запустить инструмент", "tool", name, "path", path, "error", err)
		}
		return info, false
	}

	info.Version = firstLine(res.Stdout)
	if info.Version == "" {
		info.Version = firstLine(res.Stderr)
	}
	p.logger.Info("инструмент найден", "tool", name, "path", path, "version", info.Version)

	return info, true
}
