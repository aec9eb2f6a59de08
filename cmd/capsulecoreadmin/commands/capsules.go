package commands

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/novabloom/capsulecore/cmd/capsulecoreadmin/cmdutil"
	"github.com/novabloom/capsulecore/pkg/capsule"
	"github.com/novabloom/capsulecore/pkg/ids"
)

var capsulesCmd = &cobra.Command{
	Use:   "capsules",
	Short: "Inspect capsules",
}

var capsulesListLimit uint32

var capsulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List capsules",
	Long: `List capsules known to the storage backend, ordered by id.

Examples:
  capsulecoreadmin capsules list
  capsulecoreadmin capsules list --limit 50 -o json`,
	RunE: runCapsulesList,
}

var capsulesShowCmd = &cobra.Command{
	Use:   "show <capsule-id>",
	Short: "Show one capsule's counters and index membership",
	Args:  cobra.ExactArgs(1),
	RunE:  runCapsulesShow,
}

func init() {
	capsulesListCmd.Flags().Uint32Var(&capsulesListLimit, "limit", 100, "Maximum number of capsules to list")
	capsulesCmd.AddCommand(capsulesListCmd)
	capsulesCmd.AddCommand(capsulesShowCmd)
}

// capsuleRow is the table projection for capsules list.
type capsuleRow struct {
	Id               ids.CapsuleId `json:"id" yaml:"id"`
	Subject          string        `json:"subject" yaml:"subject"`
	TotalMemories    uint32        `json:"total_memories" yaml:"total_memories"`
	InlineBytesUsed  uint64        `json:"inline_bytes_used" yaml:"inline_bytes_used"`
	TotalStorageUsed uint64        `json:"total_storage_used" yaml:"total_storage_used"`
}

type capsuleRows []capsuleRow

func (r capsuleRows) Headers() []string {
	return []string{"ID", "SUBJECT", "MEMORIES", "INLINE BYTES", "TOTAL BYTES"}
}

func (r capsuleRows) Rows() [][]string {
	rows := make([][]string, 0, len(r))
	for _, c := range r {
		rows = append(rows, []string{
			string(c.Id),
			c.Subject,
			strconv.FormatUint(uint64(c.TotalMemories), 10),
			strconv.FormatUint(c.InlineBytesUsed, 10),
			strconv.FormatUint(c.TotalStorageUsed, 10),
		})
	}
	return rows
}

func runCapsulesList(cmd *cobra.Command, args []string) error {
	core, err := cmdutil.OpenCore()
	if err != nil {
		return err
	}
	defer core.Close()

	page, err := core.Capsules.Paginate(nil, capsulesListLimit, capsule.Asc)
	if err != nil {
		return fmt.Errorf("list capsules: %w", err)
	}

	rows := make(capsuleRows, 0, len(page.Items))
	for _, c := range page.Items {
		rows = append(rows, capsuleRow{
			Id:               c.Id,
			Subject:          c.Subject.Key(),
			TotalMemories:    c.Metadata.TotalMemories,
			InlineBytesUsed:  c.Metadata.InlineBytesUsed,
			TotalStorageUsed: c.Metadata.TotalStorageUsed,
		})
	}

	return cmdutil.PrintOutput(os.Stdout, rows, len(rows) == 0, "No capsules found.", rows)
}

type capsuleDetail struct {
	Id               ids.CapsuleId `json:"id" yaml:"id"`
	Subject          string        `json:"subject" yaml:"subject"`
	Owners           []string      `json:"owners" yaml:"owners"`
	Controllers      []string      `json:"controllers" yaml:"controllers"`
	Memories         int           `json:"memories" yaml:"memories"`
	Galleries        int           `json:"galleries" yaml:"galleries"`
	Folders          int           `json:"folders" yaml:"folders"`
	TotalMemories    uint32        `json:"total_memories" yaml:"total_memories"`
	InlineBytesUsed  uint64        `json:"inline_bytes_used" yaml:"inline_bytes_used"`
	TotalStorageUsed uint64        `json:"total_storage_used" yaml:"total_storage_used"`
	CreatedAt        int64         `json:"created_at" yaml:"created_at"`
	UpdatedAt        int64         `json:"updated_at" yaml:"updated_at"`
}

func (d capsuleDetail) Headers() []string { return []string{"FIELD", "VALUE"} }

func (d capsuleDetail) Rows() [][]string {
	return [][]string{
		{"id", string(d.Id)},
		{"subject", d.Subject},
		{"owners", strconv.Itoa(len(d.Owners))},
		{"controllers", strconv.Itoa(len(d.Controllers))},
		{"memories", strconv.Itoa(d.Memories)},
		{"galleries", strconv.Itoa(d.Galleries)},
		{"folders", strconv.Itoa(d.Folders)},
		{"total_memories", strconv.FormatUint(uint64(d.TotalMemories), 10)},
		{"inline_bytes_used", strconv.FormatUint(d.InlineBytesUsed, 10)},
		{"total_storage_used", strconv.FormatUint(d.TotalStorageUsed, 10)},
		{"created_at", strconv.FormatInt(d.CreatedAt, 10)},
		{"updated_at", strconv.FormatInt(d.UpdatedAt, 10)},
	}
}

func runCapsulesShow(cmd *cobra.Command, args []string) error {
	core, err := cmdutil.OpenCore()
	if err != nil {
		return err
	}
	defer core.Close()

	id := ids.CapsuleId(args[0])
	c, found, err := core.Capsules.Get(id)
	if err != nil {
		return fmt.Errorf("get capsule: %w", err)
	}
	if !found {
		return fmt.Errorf("capsule %s not found", id)
	}

	owners := make([]string, 0, len(c.Owners))
	for k := range c.Owners {
		owners = append(owners, k)
	}
	controllers := make([]string, 0, len(c.Controllers))
	for k := range c.Controllers {
		controllers = append(controllers, k)
	}

	detail := capsuleDetail{
		Id:               c.Id,
		Subject:          c.Subject.Key(),
		Owners:           owners,
		Controllers:      controllers,
		Memories:         len(c.Memories),
		Galleries:        len(c.Galleries),
		Folders:          len(c.Folders),
		TotalMemories:    c.Metadata.TotalMemories,
		InlineBytesUsed:  c.Metadata.InlineBytesUsed,
		TotalStorageUsed: c.Metadata.TotalStorageUsed,
		CreatedAt:        c.CreatedAt,
		UpdatedAt:        c.UpdatedAt,
	}

	return cmdutil.PrintOutput(os.Stdout, detail, false, "", detail)
}
