package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/initializ/convey/config"
	"github.com/initializ/convey/stages"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the pipeline definition without running it",
	RunE:  runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	raw, err := os.ReadFile(cfgFile)
	if err != nil {
		return fmt.Errorf("reading pipeline definition %s: %w", cfgFile, err)
	}

	errs, err := config.ValidatePipeline(raw)
	if err != nil {
		return err
	}
	for _, e := range errs {
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", e)
	}
	if len(errs) > 0 {
		return fmt.Errorf("validation failed: %d error(s)", len(errs))
	}

	// Schema-valid files can still be semantically broken; building the
	// stage list catches that without touching any container engine.
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if _, err := stages.FromSpecs(cfg, stages.Deps{}); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", err)
		return fmt.Errorf("validation failed: 1 error(s)")
	}

	fmt.Println("Validation passed.")
	return nil
}
