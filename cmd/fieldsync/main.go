// Command fieldsync is a terminal field client for the sync socket. It joins
// a farm group, prints relayed events as JSON lines and sends commands read
// from stdin:
//
//	loc <lat> <lon>
//	health <status> [notes...]
//	retry
//	quit
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/samirrijal/eggtrail/internal/core/domain"
	"github.com/samirrijal/eggtrail/internal/pkg/config"
	"github.com/samirrijal/eggtrail/internal/pkg/logging"
	"github.com/samirrijal/eggtrail/internal/realtime"
)

func main() {
	cfg, err := config.Load("eggtrail-fieldsync")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	// Events go to stdout; logs stay on stderr.
	slog.SetDefault(logging.New(os.Stderr, cfg.Log.Level, "text"))

	farmID := pflag.String("farm", "", "farm to join (required)")
	workerID := pflag.String("worker", "", "worker id (required)")
	name := pflag.String("name", "", "worker display name")
	url := pflag.String("url", cfg.Sync.URL, "sync socket URL")
	pflag.Parse()
	if *farmID == "" || *workerID == "" {
		pflag.Usage()
		os.Exit(2)
	}

	ch := realtime.NewChannel(realtime.Options{
		URL:            *url,
		WorkerName:     *name,
		InitialBackoff: time.Duration(cfg.Sync.InitialBackoffMs) * time.Millisecond,
		MaxBackoff:     time.Duration(cfg.Sync.MaxBackoffMs) * time.Millisecond,
		MaxAttempts:    cfg.Sync.MaxAttempts,
		DialTimeout:    time.Duration(cfg.Sync.DialTimeoutSeconds) * time.Second,
	})

	out := json.NewEncoder(os.Stdout)
	ch.Subscribe(realtime.ObserverFuncs{
		State: func(s realtime.State) { slog.Info("sync state", "state", s.String()) },
		Event: func(e domain.Event) { _ = out.Encode(e) },
		Err:   func(err error) { slog.Warn("sync error", "error", err) },
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Sync.DialTimeoutSeconds)*time.Second)
	if err := ch.Connect(ctx, *farmID, *workerID); err != nil {
		slog.Warn("initial connect failed; retrying in background", "error", err)
	}
	cancel()
	defer ch.Disconnect()

	lines := make(chan string)
	go func() {
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			lines <- sc.Text()
		}
		close(lines)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-quit:
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			done, err := runCommand(ch, line)
			if err != nil {
				fmt.Fprintln(os.Stderr, "error:", err)
			}
			if done {
				return
			}
		}
	}
}
