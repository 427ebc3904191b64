// Package main provides fibmap-bench, a benchmark harness for fibmap
// tables: it generates key sets, times insert/search/remove phases and
// prints a summary table or CSV.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/natefinch/atomic"
	"github.com/olekukonko/tablewriter"
	flag "github.com/spf13/pflag"
	"github.com/tailscale/hujson"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/calvinalkan/fibmap/internal/keyset"
	"github.com/calvinalkan/fibmap/pkg/fibmap"
)

// profile describes one benchmark run. Zero table parameters are passed to
// fibmap.New as they are and get its Options defaults; a zero batch_size is
// MigrateAll there (whole-table migration). A non-zero capacity presizes
// the table instead.
type profile struct {
	Name       string  `json:"name"`
	Count      uint32  `json:"count"`
	Keep       uint32  `json:"keep"`
	Order      string  `json:"order"`
	Seed       int64   `json:"seed"`
	Log2Size   uint32  `json:"log2size"`
	GrowLoad   float64 `json:"grow_load"`
	ShrinkLoad float64 `json:"shrink_load"`
	OffsetMult uint32  `json:"offset_mult"`
	BatchSize  uint32  `json:"batch_size"`
	MigrateAll bool    `json:"migrate_all"`
	Capacity   uint32  `json:"capacity"`
}

// result is one timed phase.
type result struct {
	Profile string
	Phase   string
	Ops     uint64
	Total   time.Duration
}

func (r result) nsPerOp() float64 {
	if r.Ops == 0 {
		return 0
	}

	return float64(r.Total.Nanoseconds()) / float64(r.Ops)
}

func (r result) opsPerSec() float64 {
	if r.Total <= 0 {
		return 0
	}

	return float64(r.Ops) / r.Total.Seconds()
}

func main() {
	var (
		cfg         profile
		profilePath string
		csvPath     string
		dump        bool
		verbose     bool
	)

	flag.Uint32Var(&cfg.Count, "count", 1_000_000, "keys to insert")
	flag.Uint32Var(&cfg.Keep, "keep", 20, "keys to leave in the table after the remove phase")
	flag.StringVar(&cfg.Order, "order", "rand", "key order: seq or rand")
	flag.Int64Var(&cfg.Seed, "seed", 1, "shuffle seed for rand order")
	flag.Uint32Var(&cfg.Log2Size, "log2size", 0, "initial log2 table size (0 = default)")
	flag.Float64Var(&cfg.GrowLoad, "grow-load", 0, "grow load factor (0 = default)")
	flag.Float64Var(&cfg.ShrinkLoad, "shrink-load", 0, "shrink load factor (0 = default)")
	flag.Uint32Var(&cfg.OffsetMult, "offset-mult", 0, "probe length limit multiplier (0 = default)")
	flag.Uint32Var(&cfg.BatchSize, "batch-size", fibmap.MinBatchSize, "migration batch size")
	flag.BoolVar(&cfg.MigrateAll, "migrate-all", false, "rehash whole table at resize time")
	flag.Uint32Var(&cfg.Capacity, "capacity", 0, "presize for this many keys instead of log2size")
	flag.StringVar(&profilePath, "profile", "", "HuJSON file with a list of profiles, overrides single-run flags")
	flag.StringVar(&csvPath, "csv", "", "also write results as CSV to this path")
	flag.BoolVar(&dump, "dump", false, "dump table contents after the run (small counts only)")
	flag.BoolVar(&verbose, "verbose", false, "log resize activity")

	flag.Usage = func() {
		fmt.Fprint(os.Stderr, "Usage: fibmap-bench [flags]\n\n")
		fmt.Fprint(os.Stderr, "Times insert, search (ascending, descending, miss) and remove phases\n")
		fmt.Fprint(os.Stderr, "over a fibmap table.\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	log := buildLogger(verbose)
	defer func() { _ = log.Sync() }()

	profiles := []profile{cfg}

	if profilePath != "" {
		var err error

		profiles, err = loadProfiles(profilePath)
		if err != nil {
			log.Fatal("profile load failed", zap.String("path", profilePath), zap.Error(err))
		}
	}

	var results []result

	for i := range profiles {
		p := &profiles[i]
		if p.Name == "" {
			p.Name = fmt.Sprintf("profile-%d", i)
		}

		log.Info("running profile",
			zap.String("name", p.Name),
			zap.Uint32("count", p.Count),
			zap.String("order", p.Order),
		)

		runResults, err := runProfile(log, p, dump)
		if err != nil {
			log.Fatal("benchmark failed", zap.String("profile", p.Name), zap.Error(err))
		}

		results = append(results, runResults...)
	}

	renderTable(results)

	if csvPath != "" {
		if err := writeCSV(csvPath, results); err != nil {
			log.Fatal("csv write failed", zap.String("path", csvPath), zap.Error(err))
		}

		log.Info("wrote csv", zap.String("path", csvPath))
	}
}

func buildLogger(verbose bool) *zap.Logger {
	logConfig := zap.NewDevelopmentConfig()
	logConfig.EncoderConfig.TimeKey = ""
	logConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	logConfig.DisableStacktrace = true
	logConfig.DisableCaller = true

	if verbose {
		logConfig.Level.SetLevel(zap.DebugLevel)
	} else {
		logConfig.Level.SetLevel(zap.InfoLevel)
	}

	return zap.Must(logConfig.Build()).Named("fibmap-bench")
}

// loadProfiles reads a HuJSON array of profiles.
func loadProfiles(path string) ([]profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	standardized, err := hujson.Standardize(data)
	if err != nil {
		return nil, fmt.Errorf("invalid HuJSON: %w", err)
	}

	var profiles []profile

	if err := json.Unmarshal(standardized, &profiles); err != nil {
		return nil, fmt.Errorf("invalid profile list: %w", err)
	}

	if len(profiles) == 0 {
		return nil, fmt.Errorf("profile list is empty")
	}

	return profiles, nil
}

func newTable(p *profile) *fibmap.Table {
	if p.Capacity > 0 {
		return fibmap.NewForCapacity(p.Capacity)
	}

	batch := p.BatchSize
	if p.MigrateAll {
		batch = fibmap.MigrateAll
	}

	return fibmap.New(fibmap.Options{
		Log2Size:   p.Log2Size,
		GrowLoad:   p.GrowLoad,
		ShrinkLoad: p.ShrinkLoad,
		OffsetMult: p.OffsetMult,
		BatchSize:  batch,
	})
}

func keysFor(p *profile) ([]uint32, error) {
	switch p.Order {
	case "seq":
		return keyset.Sequential(p.Count), nil
	case "", "rand":
		return keyset.Shuffled(p.Count, p.Seed), nil
	default:
		return nil, fmt.Errorf("unknown order %q (want seq or rand)", p.Order)
	}
}

func runProfile(log *zap.Logger, p *profile, dump bool) ([]result, error) {
	keys, err := keysFor(p)
	if err != nil {
		return nil, err
	}

	if p.Keep > p.Count {
		return nil, fmt.Errorf("keep %d exceeds count %d", p.Keep, p.Count)
	}

	tbl := newTable(p)
	defer tbl.Free()

	var results []result

	timed := func(phase string, ops uint64, fn func() error) error {
		start := time.Now()

		if err := fn(); err != nil {
			return fmt.Errorf("%s: %w", phase, err)
		}

		elapsed := time.Since(start)
		results = append(results, result{Profile: p.Name, Phase: phase, Ops: ops, Total: elapsed})

		log.Debug("phase done",
			zap.String("phase", phase),
			zap.Uint64("ops", ops),
			zap.Duration("took", elapsed),
		)

		return nil
	}

	n := uint64(p.Count)

	err = timed("insert", n, func() error {
		lastLog2 := tbl.Stats().Log2Size

		for _, k := range keys {
			if _, exists := tbl.Put(k, int(k)); exists {
				return fmt.Errorf("key %d already present during insert", k)
			}

			if st := tbl.Stats(); st.Log2Size != lastLog2 {
				log.Debug("table resized",
					zap.Uint32("from_log2", lastLog2),
					zap.Uint32("to_log2", st.Log2Size),
					zap.Uint32("count", st.Count),
				)

				lastLog2 = st.Log2Size
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	if got := uint32(tbl.Len()); got != p.Count {
		return nil, fmt.Errorf("after insert: count %d, want %d", got, p.Count)
	}

	err = timed("search-asc", n, func() error {
		for k := uint32(0); k < p.Count; k++ {
			e, exists := tbl.Get(k)
			if !exists || e.Value != int(k) {
				return fmt.Errorf("key %d missing or wrong value", k)
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	err = timed("search-desc", n, func() error {
		for k := p.Count; k > 0; k-- {
			e, exists := tbl.Get(k - 1)
			if !exists || e.Value != int(k-1) {
				return fmt.Errorf("key %d missing or wrong value", k-1)
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	err = timed("search-miss", n, func() error {
		for k := p.Count; k < 2*p.Count; k++ {
			if _, exists := tbl.Get(k); exists {
				return fmt.Errorf("phantom key %d", k)
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	toRemove := keys[:p.Count-p.Keep]

	err = timed("remove", uint64(len(toRemove)), func() error {
		for _, k := range toRemove {
			if !tbl.Remove(k) {
				return fmt.Errorf("key %d not found during remove", k)
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	// Untimed survivor check.
	if got := uint32(tbl.Len()); got != p.Keep {
		return nil, fmt.Errorf("after remove: count %d, want %d", got, p.Keep)
	}

	for _, k := range keys[p.Count-p.Keep:] {
		e, exists := tbl.Get(k)
		if !exists || e.Value != int(k) {
			return nil, fmt.Errorf("surviving key %d missing or wrong value", k)
		}
	}

	if dump {
		tbl.Dump(false)
	}

	return results, nil
}

func renderTable(results []result) {
	rows := make([][]string, 0, len(results))

	for _, r := range results {
		rows = append(rows, []string{
			r.Profile,
			r.Phase,
			humanize.Comma(int64(r.Ops)),
			r.Total.Round(time.Microsecond).String(),
			humanize.CommafWithDigits(r.nsPerOp(), 1),
			humanize.SIWithDigits(r.opsPerSec(), 1, ""),
		})
	}

	fmt.Println()

	w := tablewriter.NewWriter(os.Stdout)
	w.SetHeader([]string{"profile", "phase", "ops", "total", "ns/op", "ops/s"})
	w.AppendBulk(rows)
	w.Render()
}

func writeCSV(path string, results []result) error {
	var buf bytes.Buffer

	buf.WriteString("profile,phase,ops,total_ns,ns_per_op,ops_per_sec\n")

	for _, r := range results {
		fmt.Fprintf(&buf, "%s,%s,%d,%d,%.1f,%.1f\n",
			r.Profile, r.Phase, r.Ops, r.Total.Nanoseconds(), r.nsPerOp(), r.opsPerSec())
	}

	return atomic.WriteFile(path, bytes.NewReader(buf.Bytes()))
}
