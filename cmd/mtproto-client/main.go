// Command mtproto-client dials a configured data center, runs the DH
// authorization handshake, and prints the resulting auth key. It is a
// thin cobra CLI over internal/handshake and internal/transport, in the
// spirit of the teacher's cmd/mtproto-proxy/main.go (SIGHUP reopens the
// log file; no other signal is handled) but built on spf13/cobra's
// command tree instead of a hand-rolled flag parser.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const version = "mtclient-go-dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "mtproto-client",
		Short:         "MTProto transport and DH handshake client",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newDialCmd(), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the client version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), version)
			return nil
		},
	}
}
