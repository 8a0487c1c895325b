package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/rs/zerolog/log"
	flag "github.com/spf13/pflag"

	"github.com/nhle/pi-productivity/internal/config"
)

type command struct {
	usage string
	help  string
	// flags declares command specific flags on top of the config flags.
	flags func(f *flag.FlagSet)
	run   func(ctx context.Context, a *app, args []string) error
}

type commandRegistry map[string]command

var commands = commandRegistry{
	"sync": {
		usage: "sync",
		help:  "fetch remote tasks once and store them",
		run:   syncCmd,
	},
	"run": {
		usage: "run",
		help:  "sync on the configured schedule until interrupted (SIGHUP syncs now)",
		run:   runCmd,
	},
	"tasks": {
		usage: "tasks [--all] [--status s] [--query q] [--sort field] [--desc] [--limit n]",
		help:  "print the compact pending task list, or filter all stored tasks",
		flags: tasksFlags,
		run:   tasksCmd,
	},
	"show": {
		usage: "show <task id>",
		help:  "print one stored task with its raw payload",
		run:   showCmd,
	},
	"week": {
		usage: "week",
		help:  "print this week's calendar as JSON",
		run:   weekCmd,
	},
	"find": {
		usage: "find <text>",
		help:  "search remote tasks by name",
		run:   findCmd,
	},
	"add": {
		usage: "add <name> [--description ..] [--due ..] [--labels a,b] [--duration min]",
		help:  "create a remote task",
		flags: addFlags,
		run:   addCmd,
	},
	"complete": {
		usage: "complete <task id>",
		help:  "mark a remote task completed",
		run:   completeCmd,
	},
	"login": {
		usage: "login",
		help:  "save the task API key (read from stdin) in the keyring",
		run:   loginCmd,
	},
	"logout": {
		usage: "logout",
		help:  "remove the task API key from the keyring",
		run:   logoutCmd,
	},
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		log.Err(err).Msg("pidash failed")
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	if len(args) == 0 {
		help(out)
		return nil
	}
	cmd, ok := commands[args[0]]
	if !ok {
		help(out)
		return fmt.Errorf("unknown command %q", args[0])
	}

	f := config.NewFlagSet("pidash " + args[0])
	if cmd.flags != nil {
		cmd.flags(f)
	}
	if err := f.Parse(args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := config.Load(f)
	if err != nil {
		return err
	}
	if err := config.SetupLogging(cfg.Log); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{cfg: cfg, flags: f, out: out}
	defer a.close()

	return cmd.run(ctx, a, f.Args())
}

func help(out io.Writer) {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintln(out, "Usage: pidash <command> [flags]")
	fmt.Fprintln(out, "Commands:")
	for _, name := range names {
		fmt.Fprintf(out, "  %-80s %s\n", commands[name].usage, commands[name].help)
	}
	fmt.Fprintln(out, "Flags:")
	fmt.Fprint(out, config.NewFlagSet("pidash").FlagUsages())
}
