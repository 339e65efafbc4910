// Package cli содержит CLI интерфейс приложения.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/artemshloyda/webp2gif/internal/config"
	"github.com/artemshloyda/webp2gif/internal/logging"
)

var (
	// Version будет установлена при сборке.
	Version = "dev"

	// BuildTime будет установлена при сборке.
	BuildTime = "unknown"
)

// flagValues - значения флагов до наложения на конфигурацию.
// Флаг применяется, только если он явно указан.
type flagValues struct {
	configPath string
	ffmpeg     string
	dwebp      string
	bridge     string
	strategies []string
	timeout    time.Duration
	logDir     string
	db         string
	debug      bool
	recursive  bool
	noProgress bool
	noHistory  bool
}

// app - состояние одного вызова CLI.
type app struct {
	flags  flagValues
	cfg    *config.Config
	stdout io.Writer
	stderr io.Writer
	logger *slog.Logger
}

// NewRootCmd создаёт корневую команду CLI.
func NewRootCmd() *cobra.Command {
	a := &app{cfg: config.DefaultConfig()}
	defaults := config.DefaultConfig()

	rootCmd := &cobra.Command{
		Use:   "webp2gif [пути...]",
		Short: "Конвертация WebP (включая анимированные) в GIF",
		Long: `webp2gif конвертирует WebP в GIF, перебирая стратегии по порядку:
ffmpeg, промежуточный PNG (dwebp или встроенный декодер) и встроенный кодек.
Результат кладётся в поддиректорию result/ рядом с исходным файлом.

Примеры:
  # Конвертировать файлы
  webp2gif a.webp b.webp

  # Конвертировать директорию рекурсивно, подробный вывод
  webp2gif convert ./stickers --recursive --debug

  # Только встроенный кодек
  webp2gif convert ./stickers --strategies native

  # Следить за директорией
  webp2gif watch ./inbox`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			return a.runConvert(cmd.Context(), args)
		},
	}

	// Флаги
	flags := rootCmd.PersistentFlags()

	flags.StringVarP(&a.flags.configPath, "config", "c", "", "Путь к файлу конфигурации (по умолчанию ./webp2gif.yaml)")

	// Инструменты
	flags.StringVar(&a.flags.ffmpeg, "ffmpeg", "", "Путь к ffmpeg")
	flags.StringVar(&a.flags.dwebp, "dwebp", "", "Путь к dwebp")
	flags.DurationVar(&a.flags.timeout, "timeout", defaults.TranscoderTimeout, "Таймаут внешнего инструмента (0 = без таймаута)")

	// Каскад
	flags.StringVar(&a.flags.bridge, "bridge", string(defaults.Bridge), "Промежуточный декодер: auto, dwebp, imaging, none")
	flags.StringSliceVar(&a.flags.strategies, "strategies", defaults.Strategies, "Включённые стратегии: external, library, native")
	flags.BoolVarP(&a.flags.recursive, "recursive", "r", false, "Обходить поддиректории")

	// Вывод
	flags.BoolVarP(&a.flags.debug, "debug", "d", false, "Подробный вывод")
	flags.BoolVar(&a.flags.noProgress, "no-progress", false, "Отключить прогресс-бар")
	flags.BoolVar(&a.flags.noHistory, "no-history", false, "Не записывать историю конвертаций")

	// Пути
	flags.StringVar(&a.flags.logDir, "log-dir", "", "Директория логов")
	flags.StringVar(&a.flags.db, "db", "", "Путь к SQLite базе истории")

	// Подкоманды
	rootCmd.AddCommand(a.newConvertCmd())
	rootCmd.AddCommand(a.newWatchCmd())
	rootCmd.AddCommand(a.newProbeCmd())
	rootCmd.AddCommand(a.newStatsCmd())
	rootCmd.AddCommand(a.newConfigCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// setup собирает конфигурацию: значения по умолчанию, .env, файл, флаги.
func (a *app) setup(cmd *cobra.Command) error {
	a.stdout = cmd.OutOrStdout()
	a.stderr = cmd.ErrOrStderr()

	// .env не перекрывает уже заданные переменные окружения
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("ошибка чтения .env: %w", err)
	}

	fc, found, err := config.FindAndLoadConfig(a.flags.configPath)
	if err != nil {
		return err
	}
	if err := fc.ApplyToConfig(a.cfg); err != nil {
		return fmt.Errorf("ошибка в %s: %w", found, err)
	}

	a.applyFlags(cmd)

	if err := a.cfg.Validate(); err != nil {
		return fmt.Errorf("ошибка конфигурации: %w", err)
	}

	level := slog.LevelInfo
	if a.cfg.Debug {
		level = slog.LevelDebug
	}
	a.logger = slog.New(logging.NewConsoleHandler(a.stderr, level))
	if found != "" {
		a.logger.Debug("загружен файл конфигурации", "path", found)
	}

	return nil
}

// applyFlags применяет явно указанные флаги поверх файла конфигурации.
func (a *app) applyFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	if f.Changed("ffmpeg") {
		a.cfg.FFmpegPath = a.flags.ffmpeg
	}
	if f.Changed("dwebp") {
		a.cfg.DwebpPath = a.flags.dwebp
	}
	if f.Changed("timeout") {
		a.cfg.TranscoderTimeout = a.flags.timeout
	}
	if f.Changed("bridge") {
		a.cfg.Bridge = config.BridgeMode(a.flags.bridge)
	}
	if f.Changed("strategies") {
		a.cfg.Strategies = a.flags.strategies
	}
	if f.Changed("recursive") {
		a.cfg.Recursive = a.flags.recursive
	}
	if f.Changed("debug") {
		a.cfg.Debug = a.flags.debug
	}
	if f.Changed("no-progress") {
		a.cfg.NoProgress = a.flags.noProgress
	}
	if f.Changed("no-history") {
		a.cfg.NoHistory = a.flags.noHistory
	}
	if f.Changed("log-dir") {
		a.cfg.LogDir = a.flags.logDir
	}
	if f.Changed("db") {
		a.cfg.DBPath = a.flags.db
	}
}

// skipSetup отключает сборку конфигурации для служебных команд.
func skipSetup(cmd *cobra.Command, args []string) error { return nil }

// newVersionCmd создаёт команду version.
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:               "version",
		Short:             "Показать версию",
		PersistentPreRunE: skipSetup,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "webp2gif %s (built %s)\n", Version, BuildTime)
		},
	}
}

// Execute запускает CLI.
func Execute() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка: %v\n", err)
		cancel()
		os.Exit(1)
	}
}

/*
Возможные расширения:
- Добавить команду retry для повторной обработки failed из истории
- Добавить команду export для экспорта статистики в JSON
*/
