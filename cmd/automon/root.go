package main

import (
	"errors"

	"github.com/spf13/cobra"

	"automon/internal/protocol"
	"automon/internal/rule"
	"automon/internal/session"
	"automon/internal/transport"
)

var configFile string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "automon",
		Short:         "Command-line front end over the OBD-II dispatch core",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configFile, "config", "config.yaml", "path to the YAML config file")

	root.AddCommand(
		newConnectCmd(),
		newListSensorsCmd(),
		newPollCmd(),
		newDTCCmd(),
		newRuleCmd(),
		newServeCmd(),
		newReplayCmd(),
		newAnalyzeCmd(),
		newReportCmd(),
		newServiceCmd(),
	)
	return root
}

// exitCodeFor classifies an error into §6's exit-code scheme: rule
// parse failures are 3, protocol-level adapter errors are 2, anything
// touching the Transport/Session layer is 1, everything else is a
// generic 1 as well (it still represents a failed session-layer
// operation from the CLI's point of view).
func exitCodeFor(err error) int {
	switch {
	case errors.Is(err, rule.ErrParseFailed):
		return 3
	case errors.Is(err, protocol.ErrNoPrompt),
		errors.Is(err, protocol.ErrOddNibbles),
		errors.Is(err, protocol.ErrNonHex),
		errors.Is(err, protocol.ErrNoData),
		errors.Is(err, protocol.ErrBusError),
		errors.Is(err, protocol.ErrUnableToConnect):
		return 2
	case errors.Is(err, transport.ErrOpenFailed),
		errors.Is(err, transport.ErrBusy),
		errors.Is(err, transport.ErrTimeout),
		errors.Is(err, transport.ErrIOClosed),
		errors.Is(err, session.ErrBusInit),
		errors.Is(err, session.ErrAdapterUnresponsive),
		errors.Is(err, session.ErrNotReady),
		errors.Is(err, session.ErrWrongState):
		return 1
	default:
		return 1
	}
}
