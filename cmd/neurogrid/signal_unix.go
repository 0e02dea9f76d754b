//go:build !windows

package main

import (
	"os"
	"os/signal"
	"syscall"
)

// notifySignals routes the signals that cancel a running scenario to ch.
func notifySignals(ch chan<- os.Signal) {
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
}
