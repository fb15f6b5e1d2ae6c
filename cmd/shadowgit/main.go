// shadowgit checkpoints a workspace directory per task: every task gets an
// isolated snapshot history that can be committed to, diffed and restored
// independently of any other task.
//
// Usage:
//
//	shadowgit -task <id> [flags] commit
//	shadowgit -task <id> [flags] diff <from-id> <to-id>
//	shadowgit -task <id> [flags] restore <snapshot-id>
//	shadowgit -task <id> [flags] delete
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/codefionn/shadowgit/internal/checkpoint"
	"github.com/codefionn/shadowgit/internal/config"
	"github.com/codefionn/shadowgit/internal/logger"
)

type stringSlice []string

func (s *stringSlice) String() string {
	if s == nil {
		return ""
	}
	return strings.Join(*s, ",")
}

func (s *stringSlice) Set(value string) error {
	if value == "" {
		return fmt.Errorf("value cannot be empty")
	}
	*s = append(*s, value)
	return nil
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		taskID    = flag.String("task", "", "task id owning the checkpoint history (required)")
		workspace = flag.String("workspace", ".", "workspace directory to checkpoint")
		storage   = flag.String("storage", "", "global storage root (default from config)")
		logLevel  = flag.String("log-level", "", "log level: debug, info, warn, error, none")
		ignores   stringSlice
	)
	flag.Var(&ignores, "ignore", "additional ignore pattern (repeatable)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if *storage == "" {
		*storage = cfg.StorageDir
	}
	if *logLevel == "" {
		*logLevel = cfg.LogLevel
	}

	if err := logger.Init(logger.ParseLevel(*logLevel), cfg.LogFile); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer logger.Global().Close()

	if *taskID == "" {
		return errors.New("-task is required")
	}
	if flag.NArg() < 1 {
		return errors.New("missing command: commit, diff, restore or delete")
	}

	ctx := context.Background()
	command := flag.Arg(0)
	patterns := append(append([]string(nil), cfg.IgnorePatterns...), ignores...)

	if command == "delete" {
		item := checkpoint.HistoryItem{TaskID: *taskID, WorkspacePath: *workspace}
		if err := checkpoint.DeleteCheckpoints(ctx, *taskID, item, *storage, nil); err != nil {
			return err
		}
		fmt.Printf("Deleted checkpoint history of task %s\n", *taskID)
		return nil
	}

	tracker, err := checkpoint.Open(ctx, checkpoint.Options{
		TaskID:         *taskID,
		WorkspacePath:  *workspace,
		StorageRoot:    *storage,
		IgnorePatterns: patterns,
	})
	if err != nil {
		return err
	}
	if tracker == nil {
		return fmt.Errorf("workspace %s cannot be tracked", *workspace)
	}
	defer tracker.Close()

	switch command {
	case "commit":
		id, err := tracker.Commit(ctx)
		if err != nil {
			return err
		}
		fmt.Println(id)
		return nil

	case "diff":
		if flag.NArg() != 3 {
			return errors.New("usage: diff <from-id> <to-id>")
		}
		records, err := tracker.DiffSet(ctx, flag.Arg(1), flag.Arg(2))
		if err != nil {
			return err
		}
		for _, rec := range records {
			switch {
			case rec.BeforeMissing:
				fmt.Printf("A %s (+%d bytes)\n", rec.RelPath, len(rec.After))
			case rec.AfterMissing:
				fmt.Printf("D %s (-%d bytes)\n", rec.RelPath, len(rec.Before))
			default:
				fmt.Printf("M %s (%d -> %d bytes)\n", rec.RelPath, len(rec.Before), len(rec.After))
			}
		}
		return nil

	case "restore":
		if flag.NArg() != 2 {
			return errors.New("usage: restore <snapshot-id>")
		}
		if err := tracker.ResetHead(ctx, flag.Arg(1)); err != nil {
			return err
		}
		fmt.Printf("Restored %s to snapshot %s\n", tracker.Workspace(), flag.Arg(1))
		return nil

	default:
		return fmt.Errorf("unknown command %q", command)
	}
}
