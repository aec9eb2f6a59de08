package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/novabloom/capsulecore/cmd/capsulecoreadmin/cmdutil"
	"github.com/novabloom/capsulecore/pkg/blob"
	"github.com/novabloom/capsulecore/pkg/storeprim"
)

var blobsCmd = &cobra.Command{
	Use:   "blobs",
	Short: "Inspect the blob store",
}

var blobsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize blob count and total bytes stored",
	Long: `Walk the blob metadata slot directly (storeprim.SlotBlobMeta) and
report a count and byte total. This reads the backend's own bookkeeping
rather than going through blob.Store, since the Store interface has no
enumeration operation by design — callers are expected to hold a blob's
id, not list the whole store.

This command only works against the "badger" storage backend; the
"memory" backend has no storeprim-backed blob metadata slot to walk.`,
	RunE: runBlobsStats,
}

func init() {
	blobsCmd.AddCommand(blobsStatsCmd)
}

type blobStats struct {
	Count      uint64 `json:"count" yaml:"count"`
	TotalBytes uint64 `json:"total_bytes" yaml:"total_bytes"`
}

func (s blobStats) Headers() []string { return []string{"FIELD", "VALUE"} }

func (s blobStats) Rows() [][]string {
	return [][]string{
		{"count", strconv.FormatUint(s.Count, 10)},
		{"total_bytes", strconv.FormatUint(s.TotalBytes, 10)},
	}
}

func runBlobsStats(cmd *cobra.Command, args []string) error {
	core, err := cmdutil.OpenCore()
	if err != nil {
		return err
	}
	defer core.Close()

	if core.Config.Storage.Backend == "memory" {
		return fmt.Errorf("blobs stats requires the badger storage backend")
	}

	metaVM, err := core.Manager.Get(storeprim.SlotBlobMeta)
	if err != nil {
		return fmt.Errorf("open blob meta slot: %w", err)
	}

	var stats blobStats
	err = metaVM.Iterate(nil, func(key, value []byte) bool {
		var m blob.Meta
		if jsonErr := json.Unmarshal(value, &m); jsonErr != nil {
			return true
		}
		stats.Count++
		stats.TotalBytes += m.Size
		return true
	})
	if err != nil {
		return fmt.Errorf("walk blob meta: %w", err)
	}

	return cmdutil.PrintOutput(os.Stdout, stats, false, "", stats)
}
