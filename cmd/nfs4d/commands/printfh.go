package commands

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marmos91/nfs4d/internal/cli/output"
	"github.com/marmos91/nfs4d/pkg/filehandle"
)

var printfhCmd = &cobra.Command{
	Use:   "printfh <hex>",
	Short: "Decode a filehandle",
	Long: `Decode a filehandle as printed by GETFH in "nfs4d exec" output.

Example:
  nfs4d printfh 01010000000000010000000000000002`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(args[0]), "0x"))
		if err != nil {
			return fmt.Errorf("invalid hex: %w", err)
		}
		h, err := filehandle.Decode(raw)
		if err != nil {
			return err
		}
		return output.KeyValues(cmd.OutOrStdout(), [][2]string{
			{"kind", h.Kind.String()},
			{"export", strconv.FormatUint(uint64(h.ExportID), 10)},
			{"object", strconv.FormatUint(h.ObjectID, 10)},
		})
	},
}
