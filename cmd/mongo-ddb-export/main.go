// Command mongo-ddb-export copies every collection of a MongoDB deployment
// into DynamoDB-style JSON records, one object per collection.
package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := Execute(ctx, os.Args[1:]); err != nil {
		// One line on stderr, no usage.
		msg := strings.Join(strings.Fields(err.Error()), " ")
		if msg == "" {
			msg = "error"
		}
		_, _ = os.Stderr.WriteString(msg + "\n")
		stop()
		os.Exit(1)
	}
}
