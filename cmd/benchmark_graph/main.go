package main

import (
	"context"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v3"

	"github.com/delaneyj/tickwatch/reactive"
	"github.com/delaneyj/tickwatch/scheduler"
	"github.com/delaneyj/tickwatch/watch"
)

const (
	modeKey    = "mode"
	repeatsKey = "repeats"
)

func main() {
	cmd := &cli.Command{
		Name:  "benchmark_graph",
		Usage: "Propagate writes through layered computed graphs",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  modeKey,
				Usage: "pull reads leaves after each write, watch observes them with pre-flush watchers",
				Value: "pull",
			},
			&cli.IntFlag{
				Name:  repeatsKey,
				Usage: "Runs per config, the best one is reported",
				Value: 5,
			},
		},
		Action: benchmark,
	}
	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

type benchmarkTestConfig struct {
	name           string  // friendly name for the test, should be unique
	width          int     // width of dependency graph to construct
	totalLayers    int     // depth of dependency graph to construct
	staticFraction float64 // fraction of nodes that always read the same sources
	nSources       int     // number of sources each node reads
	readFraction   float64 // fraction of the last layer read in each iteration
	iterations     int
}

var perfTestCfgs = []benchmarkTestConfig{
	{
		name:           "simple component",
		width:          10,
		staticFraction: 1,
		nSources:       2,
		totalLayers:    5,
		readFraction:   0.2,
		iterations:     60000,
	},
	{
		name:           "dynamic component",
		width:          10,
		totalLayers:    10,
		staticFraction: 0.75,
		nSources:       6,
		readFraction:   0.2,
		iterations:     15000,
	},
	{
		name:           "large web app",
		width:          1000,
		totalLayers:    12,
		staticFraction: 0.95,
		nSources:       4,
		readFraction:   1,
		iterations:     700,
	},
	{
		name:           "wide dense",
		width:          1000,
		totalLayers:    5,
		staticFraction: 1,
		nSources:       25,
		readFraction:   1,
		iterations:     300,
	},
	{
		name:           "deep",
		width:          5,
		totalLayers:    500,
		staticFraction: 1,
		nSources:       3,
		readFraction:   1,
		iterations:     500,
	},
	{
		name:           "very dynamic",
		width:          100,
		totalLayers:    15,
		staticFraction: 0.5,
		nSources:       6,
		readFraction:   1,
		iterations:     2000,
	},
}

type results struct {
	sum      int
	count    int64
	duration time.Duration
}

func benchmark(ctx context.Context, cmd *cli.Command) error {
	mode := cmd.String(modeKey)
	if mode != "pull" && mode != "watch" {
		return fmt.Errorf("unknown mode %q", mode)
	}
	testRepeats := int(cmd.Int(repeatsKey))

	log.Printf("Starting %s graph benchmark, please wait...", mode)
	defer log.Print("Finished graph benchmark")

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{
		"mode", "size", "nSources", "read%", "static%",
		"nTimes", "test", "time", "updateRate", "sum", "title",
	})

	for _, cfg := range perfTestCfgs {
		log.Printf("Running '%s' config", cfg.name)

		runOnce := func(counter *int64) int {
			sys := reactive.NewSystem()
			graph := benchmarkMakeGraph(sys, &cfg, counter)
			return benchmarkRunGraph(sys, graph, &cfg, mode)
		}
		// run once to warm up
		runOnce(new(int64))

		best := &results{duration: time.Hour}
		for i := range testRepeats {
			log.Printf("Running '%s' config, iteration %d/%d %d%%", cfg.name, i+1, testRepeats, (i+1)*100/testRepeats)
			counter := new(int64)
			start := time.Now()
			sum := runOnce(counter)
			duration := time.Since(start)
			if duration < best.duration {
				*best = results{sum: sum, count: *counter, duration: duration}
			}
		}

		updateRate := float64(best.count) / (float64(best.duration) / float64(time.Millisecond))
		table.Append([]string{
			mode,
			fmt.Sprintf("%dx%d", cfg.width, cfg.totalLayers),
			fmt.Sprint(cfg.nSources),
			fmt.Sprint(cfg.readFraction),
			fmt.Sprint(cfg.staticFraction),
			humanize.Comma(int64(cfg.iterations)),
			cfg.name,
			fmt.Sprint(best.duration),
			humanize.Comma(int64(updateRate)),
			humanize.Comma(int64(best.sum)),
			makeTitle(&cfg),
		})
	}
	table.Render()
	return nil
}

func makeTitle(cfg *benchmarkTestConfig) string {
	sb := strings.Builder{}
	sb.WriteString(fmt.Sprintf("%dx%d %d sources", cfg.width, cfg.totalLayers, cfg.nSources))
	if cfg.staticFraction < 1 {
		sb.WriteString(" dynamic")
	}
	if cfg.readFraction < 1 {
		sb.WriteString(fmt.Sprintf(" read %0.2f%%", 100*cfg.readFraction))
	}
	return sb.String()
}

type node interface {
	Value() int
}

type benchmarkGraph struct {
	sources []*reactive.Ref[int]
	layers  [][]node
}

func benchmarkMakeGraph(sys *reactive.System, cfg *benchmarkTestConfig, counter *int64) *benchmarkGraph {
	sources := make([]*reactive.Ref[int], cfg.width)
	prevRow := make([]node, cfg.width)
	for i := range sources {
		sources[i] = reactive.NewRef(sys, i)
		prevRow[i] = sources[i]
	}

	random := rand.New(rand.NewSource(0))
	graph := &benchmarkGraph{sources: sources}
	for range cfg.totalLayers - 1 {
		row := makeBenchmarkRow(sys, prevRow, cfg, counter, random)
		graph.layers = append(graph.layers, row)
		prevRow = row
	}
	return graph
}

func makeBenchmarkRow(sys *reactive.System, sources []node, cfg *benchmarkTestConfig, counter *int64, random *rand.Rand) []node {
	row := make([]node, len(sources))
	for myDex := range sources {
		mySources := make([]node, 0, cfg.nSources)
		for sourceDex := range cfg.nSources {
			mySources = append(mySources, sources[(myDex+sourceDex)%len(sources)])
		}

		if random.Float64() < cfg.staticFraction {
			row[myDex] = reactive.NewComputed(sys, func() int {
				*counter++
				sum := 0
				for _, source := range mySources {
					sum += source.Value()
				}
				return sum
			})
			continue
		}

		first := mySources[0]
		tail := mySources[1:]
		row[myDex] = reactive.NewComputed(sys, func() int {
			*counter++
			sum := first.Value()
			shouldDrop := sum&0x1 > 0
			dropDex := sum % len(tail)
			for i := range tail {
				if shouldDrop && i == dropDex {
					continue
				}
				sum += tail[i].Value()
			}
			return sum
		})
	}
	return row
}

// benchmarkRunGraph writes one source per iteration and reads some of the leaves,
// either directly or through watchers flushed by a scheduler. It returns the sum of
// the leaves read.
func benchmarkRunGraph(sys *reactive.System, graph *benchmarkGraph, cfg *benchmarkTestConfig, mode string) int {
	random := rand.New(rand.NewSource(0))
	leaves := graph.layers[len(graph.layers)-1]
	skipCount := int(math.Round(float64(len(leaves)) * (1 - cfg.readFraction)))
	readLeaves := benchmarkRemoveElems(leaves, skipCount, random)

	var ticker *scheduler.ManualTicker
	if mode == "watch" {
		ticker = scheduler.NewManualTicker()
		rt := watch.NewRuntime(sys, scheduler.New(ticker), nil)
		for _, leaf := range readLeaves {
			watch.WatchEffect(rt, func(watch.OnInvalidate) error {
				leaf.Value()
				return nil
			})
		}
	}

	for i := range cfg.iterations {
		sourceDex := i % len(graph.sources)
		graph.sources[sourceDex].Set(i + sourceDex)

		if ticker != nil {
			ticker.Drain()
			continue
		}
		for _, leaf := range readLeaves {
			leaf.Value()
		}
	}

	sum := 0
	for _, leaf := range readLeaves {
		sum += leaf.Value()
	}
	return sum
}

func benchmarkRemoveElems[T any](src []T, rmCount int, rand *rand.Rand) []T {
	copyWithRemovals := make([]T, len(src))
	copy(copyWithRemovals, src)
	for range rmCount {
		rmDex := rand.Intn(len(copyWithRemovals))
		copyWithRemovals[rmDex] = copyWithRemovals[len(copyWithRemovals)-1]
		copyWithRemovals = copyWithRemovals[:len(copyWithRemovals)-1]
	}
	return copyWithRemovals
}
