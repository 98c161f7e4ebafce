// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/luxfi/gridclient/promcollector"
)

type benchOptions struct {
	ops         int
	concurrency int
	metricsAddr string
}

func newCollector() (*promcollector.Collector, error) {
	return promcollector.New(prometheus.DefaultRegisterer)
}

// runBench puts and reads back keys from concurrent workers.
func runBench(ctx context.Context, e *env, args []string) error {
	d, err := e.data(args[0])
	if err != nil {
		return err
	}
	if e.bench.concurrency <= 0 || e.bench.ops <= 0 {
		return errors.New("bench: -n and -c must be positive")
	}

	if e.bench.metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv := &http.Server{Addr: e.bench.metricsAddr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				fmt.Fprintln(e.out, "metrics server:", err)
			}
		}()
		defer srv.Close()
	}

	var next, failed atomic.Int64
	start := time.Now()
	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < e.bench.concurrency; w++ {
		g.Go(func() error {
			for {
				i := next.Add(1)
				if i > int64(e.bench.ops) {
					return nil
				}
				key := "bench-" + strconv.FormatInt(i, 10)
				if _, err := d.Put(ctx, key, i); err != nil {
					failed.Add(1)
					continue
				}
				if _, err := d.Get(ctx, key); err != nil {
					failed.Add(1)
				}
				if err := ctx.Err(); err != nil {
					return err
				}
			}
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	elapsed := time.Since(start)
	fmt.Fprintf(e.out, "%d ops in %v (%.0f ops/s), %d failed\n",
		2*e.bench.ops, elapsed.Round(time.Millisecond), float64(2*e.bench.ops)/elapsed.Seconds(), failed.Load())
	return nil
}
