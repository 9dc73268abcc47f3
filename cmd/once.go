package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/StreyKenD/AutoTranslationJPEN/pkg/cycle"
	"github.com/spf13/cobra"
)

var onceCmd = &cobra.Command{
	Use:   "once",
	Short: "Run a single capture and translation cycle",
	Long:  "Capture the region (or read --image), translate every bubble, write the overlay PNG and print each source and translation",
	RunE:  runOnce,
}

func init() {
	RootCmd.AddCommand(onceCmd)
	onceCmd.Flags().String("image", "", "Read this screenshot instead of capturing the screen")
	onceCmd.Flags().String("output", "", "Overlay PNG path (overrides overlay.output)")
}

func runOnce(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if image, _ := cmd.Flags().GetString("image"); image != "" {
		cfg.Capture.Source = "file"
		cfg.Capture.Image = image
	}
	if output, _ := cmd.Flags().GetString("output"); output != "" {
		cfg.Overlay.Output = output
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, err := buildPipeline(ctx, cfg, newCapturer(cfg))
	if err != nil {
		return err
	}
	defer p.Close()

	res, err := p.machine.Run(ctx)
	if err != nil {
		return err
	}
	printResult(cmd, res)
	return nil
}

func printResult(cmd *cobra.Command, res *cycle.Result) {
	out := cmd.OutOrStdout()
	for _, pair := range res.Pairs {
		fmt.Fprintf(out, "%s → %s\n", pair.Block.Text, pair.Translation)
	}
	fmt.Fprintln(out, res.Status)
}
