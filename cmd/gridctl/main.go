// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Command gridctl talks to a grid from the command line.
//
//	gridctl -config grid.json put people alice 42
//	gridctl -config grid.json get people alice
//	gridctl -config grid.json affinity people alice
//	gridctl -config grid.json partitions people
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"syscall"

	"github.com/luxfi/gridclient"
)

type command struct {
	usage string
	args  int
	run   func(ctx context.Context, env *env, args []string) error
}

var commands = map[string]command{
	"put":        {"put <cache> <key> <value>", 3, runPut},
	"get":        {"get <cache> <key>", 2, runGet},
	"remove":     {"remove <cache> <key>", 2, runRemove},
	"exec":       {"exec <task> [arg]", -1, runExec},
	"affinity":   {"affinity <cache> <key>", 2, runAffinity},
	"partitions": {"partitions <cache>", 1, runPartitions},
	"bench":      {"bench <cache>", 1, runBench},
}

type env struct {
	cfg     gridclient.Config
	client  gridclient.Client
	keyType string
	out     io.Writer
	bench   benchOptions
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "gridctl:", err)
		os.Exit(1)
	}
}

func run(argv []string, out io.Writer) error {
	fs := flag.NewFlagSet("gridctl", flag.ContinueOnError)
	configPath := fs.String("config", "grid.json", "path to the client config")
	keyType := fs.String("type", "string", "key and value type: string, int32 or int64")
	transport := fs.String("transport", "", "override the configured transport")
	e := &env{out: out}
	fs.IntVar(&e.bench.ops, "n", 10000, "bench: operations to run")
	fs.IntVar(&e.bench.concurrency, "c", 8, "bench: concurrent workers")
	fs.StringVar(&e.bench.metricsAddr, "metrics", "", "bench: serve Prometheus metrics on this address")
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "usage: gridctl [flags] <command> [args]")
		names := make([]string, 0, len(commands))
		for name := range commands {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintln(fs.Output(), "  "+commands[name].usage)
		}
		fs.PrintDefaults()
	}
	if err := fs.Parse(argv); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return errors.New("missing command")
	}

	cmd, ok := commands[fs.Arg(0)]
	if !ok {
		return fmt.Errorf("unknown command %q", fs.Arg(0))
	}
	args := fs.Args()[1:]
	if cmd.args >= 0 && len(args) != cmd.args {
		return fmt.Errorf("usage: gridctl %s", cmd.usage)
	}

	cfg, err := gridclient.LoadConfig(*configPath)
	if err != nil {
		return err
	}
	if *transport != "" {
		cfg.Transport = *transport
	}
	e.cfg = cfg
	e.keyType = *keyType

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var opts []gridclient.Option
	if fs.Arg(0) == "bench" && e.bench.metricsAddr != "" {
		collector, err := newCollector()
		if err != nil {
			return err
		}
		opts = append(opts, gridclient.WithMetrics(collector))
	}
	client, err := gridclient.Open(ctx, cfg, opts...)
	if err != nil {
		return err
	}
	defer client.Close()
	e.client = client

	return cmd.run(ctx, e, args)
}

// parse converts a command line argument to the configured key type.
func (e *env) parse(s string) (any, error) {
	switch e.keyType {
	case "string":
		return s, nil
	case "int32":
		n, err := strconv.ParseInt(s, 10, 32)
		return int32(n), err
	case "int64":
		return strconv.ParseInt(s, 10, 64)
	default:
		return nil, fmt.Errorf("unknown type %q", e.keyType)
	}
}

func (e *env) data(name string) (gridclient.DataProjection, error) {
	return e.client.Data(name)
}

func runPut(ctx context.Context, e *env, args []string) error {
	d, err := e.data(args[0])
	if err != nil {
		return err
	}
	key, err := e.parse(args[1])
	if err != nil {
		return err
	}
	value, err := e.parse(args[2])
	if err != nil {
		return err
	}
	ok, err := d.Put(ctx, key, value)
	if err != nil {
		return err
	}
	fmt.Fprintln(e.out, ok)
	return nil
}

func runGet(ctx context.Context, e *env, args []string) error {
	d, err := e.data(args[0])
	if err != nil {
		return err
	}
	key, err := e.parse(args[1])
	if err != nil {
		return err
	}
	v, err := d.Get(ctx, key)
	if err != nil {
		return err
	}
	fmt.Fprintln(e.out, v)
	return nil
}

func runRemove(ctx context.Context, e *env, args []string) error {
	d, err := e.data(args[0])
	if err != nil {
		return err
	}
	key, err := e.parse(args[1])
	if err != nil {
		return err
	}
	ok, err := d.Remove(ctx, key)
	if err != nil {
		return err
	}
	fmt.Fprintln(e.out, ok)
	return nil
}

func runExec(ctx context.Context, e *env, args []string) error {
	if len(args) == 0 || len(args) > 2 {
		return errors.New("usage: gridctl exec <task> [arg]")
	}
	var arg any
	if len(args) == 2 {
		var err error
		if arg, err = e.parse(args[1]); err != nil {
			return err
		}
	}
	v, err := e.client.Compute().Execute(ctx, args[0], arg)
	if err != nil {
		return err
	}
	fmt.Fprintln(e.out, v)
	return nil
}

func runAffinity(_ context.Context, e *env, args []string) error {
	d, err := e.data(args[0])
	if err != nil {
		return err
	}
	key, err := e.parse(args[1])
	if err != nil {
		return err
	}
	p, node, err := d.Affinity(key)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.out, "partition=%d node=%s addr=%s\n", p, node.ID, node.Addr)
	return nil
}

func runPartitions(_ context.Context, e *env, args []string) error {
	var cache *gridclient.CacheConfig
	for i := range e.cfg.Caches {
		if e.cfg.Caches[i].Name == args[0] {
			cache = &e.cfg.Caches[i]
		}
	}
	if cache == nil {
		return fmt.Errorf("%w: %s", gridclient.ErrUnknownCache, args[0])
	}
	if cache.Mode == gridclient.ModeReplicated {
		fmt.Fprintf(e.out, "%s is replicated on every node\n", cache.Name)
		return nil
	}

	aff := e.cfg.AffinityFor(*cache)
	owned, err := aff.Assignments(e.client.Topology())
	if err != nil {
		return err
	}
	ids := make([]string, 0, len(owned))
	for id := range owned {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		bm := owned[id]
		if bm.IsEmpty() {
			fmt.Fprintf(e.out, "%s\t0\n", id)
			continue
		}
		share := 100 * float64(bm.GetCardinality()) / float64(aff.Partitions())
		fmt.Fprintf(e.out, "%s\t%d\t%.1f%%\t[%d..%d]\n", id, bm.GetCardinality(), share, bm.Minimum(), bm.Maximum())
	}
	return nil
}
