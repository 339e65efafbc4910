package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/artemshloyda/webp2gif/internal/capability"
	"github.com/artemshloyda/webp2gif/internal/config"
)

// newProbeCmd создаёт команду probe.
func (a *app) newProbeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Показать доступные инструменты и стратегии",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			av := capability.NewProber(capability.OptionsFromConfig(a.cfg), a.logger).Probe(cmd.Context())
			fmt.Fprintln(a.stdout, renderAvailability(a.cfg, av))
			return nil
		},
	}
}

// renderAvailability строит таблицу стратегий.
func renderAvailability(cfg *config.Config, av capability.Availability) string {
	rows := [][]string{
		{
			config.StrategyExternal,
			enabledLabel(cfg.StrategyEnabled(config.StrategyExternal)),
			yesNo(av.ExternalTranscoder),
			toolLabel(av.FFmpeg),
		},
		{
			config.StrategyLibrary,
			enabledLabel(cfg.StrategyEnabled(config.StrategyLibrary)),
			yesNo(av.LibraryBridge),
			bridgeLabel(av),
		},
		{
			config.StrategyNative,
			enabledLabel(cfg.StrategyEnabled(config.StrategyNative)),
			yesNo(true),
			"встроенный кодек",
		},
	}
	return renderTable([]string{"Стратегия", "Включена", "Доступна", "Детали"}, rows, nil)
}

func bridgeLabel(av capability.Availability) string {
	switch av.BridgeBackend {
	case capability.BackendDwebp:
		return toolLabel(av.Dwebp)
	case capability.BackendImaging:
		return "imaging (встроенный декодер)"
	default:
		return "-"
	}
}

func toolLabel(t capability.ToolInfo) string {
	if t.Path == "" {
		return "не найден"
	}
	if t.Version == "" {
		return t.Path
	}
	return fmt.Sprintf("%s (%s)", t.Path, t.Version)
}

func enabledLabel(b bool) string {
	if b {
		return "да"
	}
	return "нет"
}

func yesNo(b bool) string {
	if b {
		return "✓"
	}
	return "✗"
}
