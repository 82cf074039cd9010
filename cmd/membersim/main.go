package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/atlassian/gossipmember"
	"github.com/atlassian/gossipmember/pkg/sim"
)

func main() {
	opts, runs, parallelism, verbose, err := parseFlags(os.Args[1:])
	if err != nil {
		if err == pflag.ErrHelp {
			return
		}
		logrus.Fatalf("Error while parsing flags: %v", err)
	}
	if verbose {
		logrus.SetLevel(logrus.DebugLevel)
	} else {
		logrus.SetLevel(logrus.WarnLevel)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	all := make([]sim.Options, runs)
	for i := range all {
		all[i] = opts
		all[i].Seed = opts.Seed + int64(i)
	}

	results, errs := sim.RunAll(ctx, logrus.StandardLogger(), all, parallelism)
	failed := false
	for i := range results {
		if errs[i] != nil {
			logrus.WithError(errs[i]).WithField("run", i).Error("Simulation failed")
			failed = true
			continue
		}
		printResult(os.Stdout, i, results[i])
	}
	if failed {
		os.Exit(1)
	}
}

func parseFlags(args []string) (sim.Options, int, int, bool, error) {
	var (
		opts        sim.Options
		runs        int
		parallelism int
		verbose     bool
		crashes     []string
		threshold   int64
		interval    int64
	)

	fs := pflag.NewFlagSet("membersim", pflag.ContinueOnError)
	fs.IntVar(&opts.Nodes, "nodes", 10, "Number of nodes")
	fs.IntVar(&opts.Ticks, "ticks", 100, "Number of ticks to run")
	fs.Int64Var(&interval, "join-interval", 1, "Ticks between nodes starting")
	fs.Int64Var(&threshold, gossipmember.ParamRemoveThreshold, gossipmember.DefaultRemoveThreshold, "Ticks of silence before a peer is removed")
	fs.IntVar(&opts.GossipFanout, gossipmember.ParamGossipFanout, gossipmember.DefaultGossipFanout, "Peers to gossip to per tick, 0 for every peer")
	fs.Float64Var(&opts.DropRate, "drop-rate", 0, "Fraction of messages lost")
	fs.Float64Var(&opts.SendLimit, "send-limit", 0, "Messages each node may send per tick, 0 for no limit")
	fs.Int64Var(&opts.Seed, "seed", 1, "Seed for message loss")
	fs.StringSliceVar(&crashes, "crash", nil, "Crash schedule, as node@tick")
	fs.IntVar(&runs, "runs", 1, "Number of independent runs, each with its own seed")
	fs.IntVar(&parallelism, "parallelism", 0, "Runs executed at once, 0 for all")
	fs.BoolVar(&verbose, "verbose", false, "Verbose")

	if err := fs.Parse(args); err != nil {
		return opts, 0, 0, false, err
	}
	opts.RemoveThreshold = gossipmember.Tick(threshold)
	opts.JoinInterval = gossipmember.Tick(interval)

	for _, c := range crashes {
		crash, err := parseCrash(c)
		if err != nil {
			return opts, 0, 0, false, err
		}
		opts.Crashes = append(opts.Crashes, crash)
	}
	return opts, runs, parallelism, verbose, nil
}

// parseCrash parses node@tick.
func parseCrash(s string) (sim.Crash, error) {
	parts := strings.SplitN(s, "@", 2)
	if len(parts) != 2 {
		return sim.Crash{}, fmt.Errorf("crash %q is not node@tick", s)
	}
	node, err := strconv.Atoi(parts[0])
	if err != nil {
		return sim.Crash{}, fmt.Errorf("crash %q: bad node: %v", s, err)
	}
	at, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return sim.Crash{}, fmt.Errorf("crash %q: bad tick: %v", s, err)
	}
	return sim.Crash{Node: node, At: gossipmember.Tick(at)}, nil
}

func printResult(w io.Writer, run int, r *sim.Result) {
	fmt.Fprintf(w, "run %d: converged=%t sent=%d dropped=%d events=%d\n", run, r.Converged(), r.Sent, r.Dropped, len(r.Events))
	for _, n := range r.Nodes {
		members := make([]string, 0, len(n.Members))
		for _, m := range n.Members {
			members = append(members, fmt.Sprintf("%s(hb=%d,t=%d)", m.Address, m.Heartbeat, m.LastRefreshed))
		}
		fmt.Fprintf(w, "  %s %s hb=%d [%s]\n", n.Self, n.State, n.Heartbeat, strings.Join(members, " "))
	}
	for _, e := range r.Events {
		if !e.Added {
			fmt.Fprintf(w, "  t=%d %s removed %s\n", e.Tick, e.Observer, e.Member)
		}
	}
}
