package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"automon/internal/capture"
)

func newReplayCmd() *cobra.Command {
	var speed float64
	cmd := &cobra.Command{
		Use:   "replay <session.json>",
		Short: "Replay a recorded trip session's frames at their original pacing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := capture.LoadTripSession(args[0])
			if err != nil {
				return err
			}

			fmt.Printf("VIN: %s\n", session.VIN)
			fmt.Printf("Frames: %d\n", len(session.Frames))

			replayer := capture.NewTripReplayer(session)
			replayer.SetSpeed(speed)

			return replayer.Play(func(frame capture.TripFrame) {
				switch frame.Kind {
				case capture.KindSensor:
					fmt.Printf("[%s] sensor %s = %v\n", frame.Timestamp.Format("15:04:05.000"), frame.PID, frame.Value)
				case capture.KindRule:
					fmt.Printf("[%s] rule %s satisfied\n", frame.Timestamp.Format("15:04:05.000"), frame.PID)
				case capture.KindDTC:
					fmt.Printf("[%s] dtcs %v\n", frame.Timestamp.Format("15:04:05.000"), frame.DTCs)
				}
			})
		},
	}
	cmd.Flags().Float64Var(&speed, "speed", 1.0, "replay speed multiplier (1.0 = real-time)")
	return cmd
}
