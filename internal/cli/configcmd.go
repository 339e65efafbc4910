package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/artemshloyda/webp2gif/internal/config"
)

// newConfigCmd создаёт группу команд config.
func (a *app) newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:               "config",
		Short:             "Работа с файлом конфигурации",
		PersistentPreRunE: skipSetup,
	}
	cmd.AddCommand(newConfigInitCmd())
	return cmd
}

// newConfigInitCmd создаёт команду config init.
func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [путь]",
		Short: "Создать пример файла конфигурации",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "webp2gif.yaml"
			if len(args) == 1 {
				path = args[0]
			}

			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("файл %s уже существует (используйте --force)", path)
			}

			if err := os.WriteFile(path, []byte(config.GenerateExampleConfig()), 0o644); err != nil {
				return fmt.Errorf("не удалось записать %s: %w", path, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Создан файл конфигурации: %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Перезаписать существующий файл")
	return cmd
}
