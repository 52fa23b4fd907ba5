package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/nfs4d/internal/cli/output"
	"github.com/marmos91/nfs4d/internal/cli/script"
	"github.com/marmos91/nfs4d/internal/protocol/nfs/v4/types"
)

var (
	decodeOutput string
	decodeReply  string
	decodeUID    uint32
	decodeGID    uint32
)

var decodeCmd = &cobra.Command{
	Use:   "decode <request.xdr>",
	Short: "Run a raw COMPOUND4args blob and print the reply",
	Long: `Decode a raw XDR-encoded COMPOUND4args (the RPC call body without the
RPC header), execute it against the configured exports and print the reply.

Examples:
  nfs4d decode xdr/000-request.xdr
  nfs4d decode capture.bin --uid 1000 --gid 1000 --reply reply.bin`,
	Args: cobra.ExactArgs(1),
	RunE: runDecode,
}

func init() {
	decodeCmd.Flags().StringVarP(&decodeOutput, "output", "o", "table", "Output format (table|json|yaml)")
	decodeCmd.Flags().StringVar(&decodeReply, "reply", "", "Write the encoded COMPOUND4res to this file")
	decodeCmd.Flags().Uint32Var(&decodeUID, "uid", 0, "AUTH_SYS uid of the caller")
	decodeCmd.Flags().Uint32Var(&decodeGID, "gid", 0, "AUTH_SYS gid of the caller")
}

func runDecode(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(decodeOutput)
	if err != nil {
		return err
	}

	wire, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}

	cfg, err := loadOffline()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	eng, err := buildEngine(ctx, cfg, nil, nil)
	if err != nil {
		return err
	}
	defer eng.Close()

	creds := types.Credentials{Flavor: types.AUTH_SYS, UID: decodeUID, GID: decodeGID}
	outcome, err := script.NewRunner(eng.handler, creds).Execute(ctx, wire)
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}

	if decodeReply != "" {
		if err := os.WriteFile(decodeReply, outcome.Reply, 0644); err != nil {
			return fmt.Errorf("failed to write reply: %w", err)
		}
	}
	return output.Print(cmd.OutOrStdout(), format, newCompoundResults([]*script.Outcome{outcome}))
}
