package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/novabloom/capsulecore/cmd/capsulecoreadmin/cmdutil"
	"github.com/novabloom/capsulecore/internal/cli/prompt"
	"github.com/novabloom/capsulecore/pkg/storeprim"
	"github.com/novabloom/capsulecore/pkg/upload"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Inspect and expire upload sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List live upload sessions",
	Long: `Walk the session slot directly (storeprim.SlotSessions) and list
every live session record. This bypasses upload.Manager, which has no
public enumeration method — only Begin/PutChunk/Abort/SweepExpired —
since a running core never needs to list all sessions at once.`,
	RunE: runSessionsList,
}

var sessionsExpireYes bool

var sessionsExpireCmd = &cobra.Command{
	Use:   "expire",
	Short: "Force-expire and garbage-collect all sessions past their TTL",
	Long: `Calls upload.Manager.SweepExpired, which normally runs lazily on the
next Begin/PutChunk that touches a stale idempotency tuple. Use this to
reclaim chunk storage for expired sessions without waiting for that.`,
	RunE: runSessionsExpire,
}

func init() {
	sessionsExpireCmd.Flags().BoolVarP(&sessionsExpireYes, "yes", "y", false, "Skip the confirmation prompt")
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsExpireCmd)
}

type sessionRow struct {
	Id             string `json:"id" yaml:"id"`
	CapsuleId      string `json:"capsule_id" yaml:"capsule_id"`
	Owner          string `json:"owner" yaml:"owner"`
	ChunksExpected uint32 `json:"chunks_expected" yaml:"chunks_expected"`
	CreatedAt      int64  `json:"created_at" yaml:"created_at"`
}

type sessionRows []sessionRow

func (r sessionRows) Headers() []string {
	return []string{"ID", "CAPSULE", "OWNER", "CHUNKS EXPECTED", "CREATED AT"}
}

func (r sessionRows) Rows() [][]string {
	rows := make([][]string, 0, len(r))
	for _, s := range r {
		rows = append(rows, []string{
			s.Id,
			s.CapsuleId,
			s.Owner,
			strconv.FormatUint(uint64(s.ChunksExpected), 10),
			strconv.FormatInt(s.CreatedAt, 10),
		})
	}
	return rows
}

func runSessionsList(cmd *cobra.Command, args []string) error {
	core, err := cmdutil.OpenCore()
	if err != nil {
		return err
	}
	defer core.Close()

	sessionsVM, err := core.Manager.Get(storeprim.SlotSessions)
	if err != nil {
		return fmt.Errorf("open sessions slot: %w", err)
	}

	var rows sessionRows
	err = sessionsVM.Iterate([]byte("s:"), func(key, value []byte) bool {
		var s upload.Session
		if jsonErr := json.Unmarshal(value, &s); jsonErr != nil {
			return true
		}
		rows = append(rows, sessionRow{
			Id:             string(s.Id),
			CapsuleId:      string(s.CapsuleId),
			Owner:          s.Owner.Key(),
			ChunksExpected: s.ChunksExpected,
			CreatedAt:      s.CreatedAt,
		})
		return true
	})
	if err != nil {
		return fmt.Errorf("walk sessions: %w", err)
	}

	return cmdutil.PrintOutput(os.Stdout, rows, len(rows) == 0, "No live sessions found.", rows)
}

func runSessionsExpire(cmd *cobra.Command, args []string) error {
	if !sessionsExpireYes {
		ok, err := prompt.Confirm("Force-expire all sessions past their TTL?", false)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
			return nil
		}
	}

	core, err := cmdutil.OpenCore()
	if err != nil {
		return err
	}
	defer core.Close()

	n, err := core.Uploads.SweepExpired(cmd.Context())
	if err != nil {
		return fmt.Errorf("sweep expired sessions: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Expired %d session(s).\n", n)
	return nil
}
