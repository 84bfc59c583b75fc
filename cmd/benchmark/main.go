package main

import (
	"context"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"runtime/pprof"
	"time"

	"github.com/jamiealquiza/tachymeter"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v3"

	"github.com/delaneyj/tickwatch/reactive"
	"github.com/delaneyj/tickwatch/scheduler"
	"github.com/delaneyj/tickwatch/watch"
)

const (
	itersKey   = "iters"
	profileKey = "cpuprofile"
)

var (
	sizes  = []int{1, 10, 100, 1_000}
	depths = []int{1, 4, 16}
)

func main() {
	cmd := &cli.Command{
		Name:  "benchmark",
		Usage: "Measure flush and watch trigger latency",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  itersKey,
				Usage: "Samples per benchmark",
				Value: 100,
			},
			&cli.StringFlag{
				Name:  profileKey,
				Usage: "Write a CPU profile to this file",
			},
		},
		Action: benchmark,
	}
	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func benchmark(ctx context.Context, cmd *cli.Command) error {
	if path := cmd.String(profileKey); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			return err
		}
		defer pprof.StopCPUProfile()
	}

	iters := int(cmd.Int(itersKey))
	log.Printf("warming up")
	benchmarkFlush(iters, false)

	benchmarkFlush(iters, true)
	benchmarkWatch(iters, true)
	benchmarkDeepWatch(iters, true)
	return nil
}

func newTable(title string) table.Writer {
	tbl := table.NewWriter()
	tbl.SetTitle(title)
	tbl.SetOutputMirror(os.Stdout)
	tbl.AppendHeader(table.Row{"benchmark", "avg", "min", "p75", "p99", "max"})
	return tbl
}

func appendCalc(tbl table.Writer, name string, tach *tachymeter.Tachymeter) {
	calc := tach.Calc()
	tbl.AppendRow(table.Row{
		name,
		calc.Time.Avg,
		calc.Time.Min,
		calc.Time.P75,
		calc.Time.P99,
		calc.Time.Max,
	})
}

// benchmarkFlush queues n jobs with shuffled ids and times one flush of them.
func benchmarkFlush(iters int, shouldRender bool) {
	tbl := newTable("Scheduler flush")

	for _, n := range sizes {
		tach := tachymeter.New(&tachymeter.Config{Size: iters})
		ticker := scheduler.NewManualTicker()
		s := scheduler.New(ticker)

		jobs := make([]*scheduler.Job, n)
		for i := range jobs {
			jobs[i] = scheduler.NewJob(func() {}).WithID(i)
		}

		for range iters {
			rand.Shuffle(len(jobs), func(i, j int) { jobs[i], jobs[j] = jobs[j], jobs[i] })
			start := time.Now()
			for _, job := range jobs {
				s.QueueJob(job)
			}
			ticker.Drain()
			tach.AddTime(time.Since(start))
		}
		appendCalc(tbl, fmt.Sprintf("queue+flush: %d jobs", n), tach)
	}

	if shouldRender {
		tbl.Render()
	}
}

// benchmarkWatch times a ref write reaching n pre-flush watchers.
func benchmarkWatch(iters int, shouldRender bool) {
	tbl := newTable("Watch trigger")

	for _, n := range sizes {
		tach := tachymeter.New(&tachymeter.Config{Size: iters})
		ticker := scheduler.NewManualTicker()
		sys := reactive.NewSystem()
		rt := watch.NewRuntime(sys, scheduler.New(ticker), nil)

		src := reactive.NewRef(sys, 0)
		hits := 0
		for range n {
			watch.Watch(rt, src, func(any, any, watch.OnInvalidate) error {
				hits++
				return nil
			})
		}

		for range iters {
			start := time.Now()
			src.Set(src.Peek() + 1)
			ticker.Drain()
			tach.AddTime(time.Since(start))
		}
		if hits != n*iters {
			log.Panicf("watch: expected %d callbacks, got %d", n*iters, hits)
		}
		appendCalc(tbl, fmt.Sprintf("ref write: %d watchers", n), tach)
	}

	if shouldRender {
		tbl.Render()
	}
}

// benchmarkDeepWatch times a leaf write under a deep watcher of a w*h object tree.
func benchmarkDeepWatch(iters int, shouldRender bool) {
	tbl := newTable("Deep watch")

	for _, w := range sizes[:3] {
		for _, h := range depths {
			tach := tachymeter.New(&tachymeter.Config{Size: iters})
			ticker := scheduler.NewManualTicker()
			sys := reactive.NewSystem()
			rt := watch.NewRuntime(sys, scheduler.New(ticker), nil)

			root := reactive.NewObject(sys, nil)
			var leaf *reactive.Object
			for i := range w {
				cur := root
				for j := range h {
					next := reactive.NewObject(sys, map[string]any{"v": 0})
					cur.Set(fmt.Sprintf("n%d_%d", i, j), next)
					cur = next
				}
				leaf = cur
			}

			watch.Watch(rt, root, func(any, any, watch.OnInvalidate) error { return nil })

			for k := range iters {
				start := time.Now()
				leaf.Set("v", k+1)
				ticker.Drain()
				tach.AddTime(time.Since(start))
			}
			appendCalc(tbl, fmt.Sprintf("leaf write: %d * %d", w, h), tach)
		}
	}

	if shouldRender {
		tbl.Render()
	}
}
