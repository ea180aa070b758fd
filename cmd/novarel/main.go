package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/tuannm99/novarel/internal"
	"github.com/tuannm99/novarel/internal/engine"
	"github.com/tuannm99/novarel/internal/logging"
)

func main() {
	var (
		cfgPath  = flag.String("config", "", "config file (yaml)")
		histPath = flag.String("history", defaultHistoryPath(), "history file path")
		histMax  = flag.Int("history-max", 2000, "max history lines loaded into memory")
		oneShot  = flag.String("c", "", "run one command and exit")
	)
	flag.Parse()

	if err := run(*cfgPath, *histPath, *histMax, *oneShot); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfgPath, histPath string, histMax int, oneShot string) error {
	cfg, err := internal.LoadConfig(cfgPath)
	if err != nil {
		return err
	}
	if err := logging.Configure(cfg.Log.Level, nil); err != nil {
		return err
	}
	so, err := cfg.StoreOptions()
	if err != nil {
		return err
	}

	ctx := context.Background()
	db, err := engine.Open(ctx, engine.Options{
		Storage:     so,
		SnapshotKey: cfg.Storage.Snapshot,
		ScriptKey:   cfg.Storage.Script,
	})
	if err != nil {
		return err
	}
	defer func() { _ = db.Close(ctx) }()

	if strings.TrimSpace(oneShot) != "" {
		sh := NewShell(db, os.Stdout, nil)
		if err := sh.Exec(ctx, oneShot); err != nil && !errors.Is(err, errQuit) {
			return err
		}
		return nil
	}

	h := NewHistory(histPath)
	_ = h.Load(histMax)
	return repl(ctx, NewShell(db, os.Stdout, h), h)
}

func repl(ctx context.Context, sh *Shell, h *History) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          sh.prompt(),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("readline: %w", err)
	}
	defer func() { _ = rl.Close() }()

	// preload history so the up arrow works at once
	for _, line := range h.lines {
		_ = rl.SaveHistory(line)
	}

	fmt.Fprintln(sh.out, `type \help for help`)
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if err != nil {
			fmt.Fprintln(sh.out)
			return nil
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		_ = h.Append(line)
		_ = rl.SaveHistory(compactOneLine(line))

		err = sh.Exec(ctx, line)
		if errors.Is(err, errQuit) {
			return nil
		}
		if err != nil {
			fmt.Fprintf(sh.out, "error: %v\n", err)
		}
		rl.SetPrompt(sh.prompt())
	}
}
