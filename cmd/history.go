package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/StreyKenD/AutoTranslationJPEN/internal/utils"
	"github.com/StreyKenD/AutoTranslationJPEN/pkg/history"
	"github.com/StreyKenD/AutoTranslationJPEN/pkg/overlay"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List stored translations",
	RunE:  runHistory,
}

func init() {
	RootCmd.AddCommand(historyCmd)
	historyCmd.Flags().Int("limit", 0, "Only show the most recent N records")
	historyCmd.Flags().Bool("json", false, "Print records as JSON lines")
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	limit, _ := cmd.Flags().GetInt("limit")
	asJSON, _ := cmd.Flags().GetBool("json")

	store, err := history.Open(cmd.Context(), cfg.History.DSN)
	if err != nil {
		return fmt.Errorf("failed to open history %s: %w", utils.MaskSensitiveData(cfg.History.DSN), err)
	}
	defer store.Close()

	records, err := store.Load(cmd.Context())
	if err != nil {
		return err
	}
	return printHistory(cmd, records, limit, asJSON)
}

func printHistory(cmd *cobra.Command, records []overlay.TranslationRecord, limit int, asJSON bool) error {
	if limit > 0 && len(records) > limit {
		records = records[len(records)-limit:]
	}

	out := cmd.OutOrStdout()
	enc := json.NewEncoder(out)
	enc.SetEscapeHTML(false)
	for _, rec := range records {
		if asJSON {
			if err := enc.Encode(rec); err != nil {
				return err
			}
			continue
		}
		fmt.Fprintf(out, "%s → %s\n", rec.SourceText, rec.TranslatedText)
	}
	return nil
}
