package commands

import (
	"fmt"

	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"github.com/novabloom/capsulecore/cmd/capsulecoreadmin/cmdutil"
)

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Dump current Prometheus metrics in text exposition format",
	Long: `Opens the core, runs nothing beyond that, and prints whatever the
blob/upload/capsule collectors have accumulated during this process's
lifetime. Since the CLI opens a fresh core per invocation, this is
mostly useful after a single command already ran other operations in
the same process (or for verifying the collectors are wired at all) —
a long-running server is what makes these numbers interesting.`,
	RunE: runMetrics,
}

func runMetrics(cmd *cobra.Command, args []string) error {
	core, err := cmdutil.OpenCore()
	if err != nil {
		return err
	}
	defer core.Close()

	families, err := core.Registry.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}

	enc := expfmt.NewEncoder(cmd.OutOrStdout(), expfmt.FmtText)
	for _, family := range families {
		if err := enc.Encode(family); err != nil {
			return fmt.Errorf("encode metric family %s: %w", family.GetName(), err)
		}
	}
	return nil
}
