package cli

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/artemshloyda/webp2gif/internal/storage"
)

// newStatsCmd создаёт команду stats.
func (a *app) newStatsCmd() *cobra.Command {
	var last int

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Показать статистику из истории конвертаций",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := storage.New(a.cfg.DBPath)
			if err != nil {
				return fmt.Errorf("не удалось открыть историю: %w", err)
			}
			defer func() { _ = store.Close() }()

			st, err := store.GetStats(cmd.Context())
			if err != nil {
				return fmt.Errorf("не удалось получить статистику: %w", err)
			}
			runs, err := store.RecentRuns(cmd.Context(), last)
			if err != nil {
				return err
			}

			fmt.Fprintln(a.stdout, renderStats(st))
			if len(runs) > 0 {
				fmt.Fprintln(a.stdout, renderRuns(runs))
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&last, "last", "n", 10, "Сколько последних запусков показать")
	return cmd
}

// renderStats строит таблицу агрегатов.
func renderStats(st *storage.Stats) string {
	rows := [][]string{
		{"Запусков", strconv.FormatInt(st.Runs, 10)},
		{"Файлов", strconv.FormatInt(st.Files, 10)},
		{"Успешно", strconv.FormatInt(st.Success, 10)},
		{"Ошибок", strconv.FormatInt(st.Failed, 10)},
		{"Пропущено", strconv.FormatInt(st.Skipped, 10)},
		{"Объём WebP", FormatBytes(st.InputBytes)},
		{"Объём GIF", FormatBytes(st.OutputBytes)},
	}
	for _, k := range sortedKeys(st.ByStrategy) {
		rows = append(rows, []string{"Стратегия " + k, strconv.FormatInt(st.ByStrategy[k], 10)})
	}
	for _, k := range sortedKeys(st.ByErrorKind) {
		rows = append(rows, []string{"Ошибка " + k, strconv.FormatInt(st.ByErrorKind[k], 10)})
	}
	return renderTable([]string{"Показатель", "Значение"}, rows, []columnAlignment{alignLeft, alignRight})
}

// renderRuns строит таблицу последних запусков.
func renderRuns(runs []storage.Run) string {
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		rows = append(rows, []string{
			r.ID[:8],
			r.StartedAt.Format(time.DateTime),
			string(r.Status),
			strconv.Itoa(r.Files),
			strconv.Itoa(r.Success),
			strconv.Itoa(r.Failed),
			strconv.Itoa(r.Skipped),
		})
	}
	return renderTable(
		[]string{"Запуск", "Начало", "Статус", "Файлов", "Успешно", "Ошибок", "Пропущено"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight},
	)
}

func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
