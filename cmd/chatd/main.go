// Package main starts the realtime chat daemon and handles termination.
//
// The process is a transport adapter around WebSocket rooms, the message
// lifecycle, and the automated-reply engine; persistent state lives in the
// embedded SQLite store.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	chatdcmd "github.com/kothaapp/kotha/internal/cmd/chatd"
)

func main() {
	_ = godotenv.Load()

	cfg, err := chatdcmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	log.SetPrefix("[CHATD] ")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := chatdcmd.Run(ctx, cfg); err != nil {
		log.Fatalf("failed to serve: %v", err)
	}
}
