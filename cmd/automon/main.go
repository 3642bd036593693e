// Command automon is the thin CLI front end over the Kernel (§6):
// connect, list-sensors, poll, dtc, rule add/list/rm, serve, replay,
// analyze. Exit codes: 0 success, 1 session error, 2 protocol error,
// 3 rule parse error.
package main

import "os"

func main() {
	os.Exit(run())
}

func run() int {
	if err := newRootCmd().Execute(); err != nil {
		return exitCodeFor(err)
	}
	return 0
}
