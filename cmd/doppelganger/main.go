// Command doppelganger finds the professional-network profiles that most likely
// belong to a persona.
//
// Usage:
//
//	doppelganger resolve persona.json              # requires BRAVE_API_KEY or ~/.brave
//	doppelganger resolve --face deepface < people.json
//	doppelganger queries persona.json
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
