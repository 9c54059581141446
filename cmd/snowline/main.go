// Copyright (C) 2020 Markus L. Noga
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime/pprof"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/klauspost/cpuid"
	"github.com/mlnoga/snowline/internal/classify"
	"github.com/mlnoga/snowline/internal/log"
	"github.com/mlnoga/snowline/internal/ops"
	"github.com/mlnoga/snowline/internal/raster"
	"github.com/mlnoga/snowline/internal/rest"
	"github.com/mlnoga/snowline/internal/store"
	"github.com/pbnjay/memory"
)

const version = "0.1.0"

var cpuprofile = flag.String("cpuprofile", "", "write cpu profile to `file`")

var (
	vis     = flag.String("vis", "", "visible band of a single scene, as TIFF `file`")
	nir     = flag.String("nir", "", "near-infrared band of a single scene, as TIFF `file`")
	dem     = flag.String("dem", "", "elevation model of a single scene, as TIFF `file` in meters")
	glacier = flag.String("glacier", "", "glacier name of a single scene, default: name of the directory holding the near-infrared band")
	date    = flag.String("date", "", "acquisition date as YYYY-MM-DD, default: today")
	scale   = flag.Float64("scale", raster.SentinelScale, "divide band values by this factor to obtain reflectances")
)

var (
	visName = flag.String("visName", "vis.tif", "visible band file name inside glacier directories")
	nirName = flag.String("nirName", "nir.tif", "near-infrared band file name inside glacier directories")
	demName = flag.String("demName", "dem.tif", "elevation model file name inside glacier directories")
)

var (
	mask    = flag.String("mask", "", "save snow masks as TIFF with given filename pattern, e.g. `{glacier}_{model}_{date}.tif`")
	overlay = flag.String("overlay", "", "save class overlays as JPEG with given filename pattern, e.g. `{glacier}_{model}.jpg`")
	plot    = flag.String("plot", "", "save band profile plots as PNG with given filename pattern, e.g. `{glacier}_{model}.png`")
	hist    = flag.String("hist", "", "save near-infrared histograms as PNG with given filename pattern, e.g. `{glacier}_hist.png`")
)

var (
	db      = flag.String("db", "", "store results in the SQLite database `file`")
	job     = flag.String("job", "", "operator sequence to run with the job command, as JSON `file`")
	threads = flag.Int("threads", 0, "number of scenes to process concurrently, 0=auto")
	debug   = flag.Bool("debug", false, "log human-readable debug output")
	logFile = flag.String("log", "", "save log output to `file` in addition to stderr")
)

var (
	addr   = flag.String("addr", ":8080", "listen on this address with the serve command")
	chroot = flag.String("chroot", "", "change filesystem root to this directory before serving (requires root)")
	setuid = flag.Int("setuid", -1, "change user id to this value before serving, -1=no change")
)

func main() {
	start := time.Now()
	flag.Usage = func() {
		fmt.Fprintf(os.Stdout, `Snowline Copyright (c) 2020 Markus L. Noga
This program comes with ABSOLUTELY NO WARRANTY.
This is free software, and you are welcome to redistribute it under certain conditions.
Refer to https://www.gnu.org/licenses/gpl-3.0.en.html for details.

Usage: %s [-flag value] (asmag|naegeli|improved|all|job|series|serve|legal|version) (glacierdir0 ... glacierdirn)

Commands:
  asmag    Classify snow by an Otsu threshold on the near-infrared band
  naegeli  Classify snow by broadband albedo with a fixed outlier radius
  improved Classify snow by broadband albedo with a multi-resolution search and adaptive radius
  all      Classify snow with all three algorithms
  job      Run the JSON operator sequence given with -job
  series   Show the stored snow line series for glacier and model, e.g. series rhone asmag
  serve    Serve the HTTP API
  legal    Show license and attribution information
  version  Show version information

Classification commands process the single scene given with -vis, -nir and -dem, or one
scene per glacier directory matching the arguments.

Flags:
`, os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if err := log.Init(*debug, *logFile); err != nil {
		fmt.Fprintf(os.Stderr, "Unable to initialize logging: %s\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			log.Fatalf("Could not create CPU profile: %v", err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			log.Fatalf("Could not start CPU profile: %v", err)
		}
		defer pprof.StopCPUProfile()
	}

	args := flag.Args()
	if len(args) < 1 {
		flag.Usage()
		return
	}

	var err error
	switch args[0] {
	case "asmag", "naegeli", "improved":
		alg, _ := classify.ParseAlgorithm(args[0])
		err = cmdClassify([]classify.Algorithm{alg}, args[1:])

	case "all":
		err = cmdClassify(classify.Algorithms, args[1:])

	case "job":
		err = cmdJob()

	case "series":
		err = cmdSeries(args[1:])

	case "serve":
		err = cmdServe()

	case "legal":
		fmt.Fprint(os.Stdout, legal)

	case "version":
		cmdVersion()

	case "help", "?":
		flag.Usage()

	default:
		fmt.Fprintf(os.Stdout, "Unknown command '%s'\n\n", args[0])
		flag.Usage()
		return
	}

	fmt.Fprintf(os.Stdout, "\nDone after %v\n", time.Since(start))
	if err != nil {
		log.Errorf("Error: %v", err)
		log.Sync()
		os.Exit(1)
	}
}

// Creates the operator context from flags, opening the database if one is given
func newContext() (*ops.Context, error) {
	c := ops.NewContext(log.Get())
	if *threads > 0 {
		c.MaxThreads = *threads
	}
	if *db != "" {
		st, err := store.Open(*db)
		if err != nil {
			return nil, err
		}
		c.Store = st
	}
	log.Infof("Run %s using up to %d threads and %d MB of memory", c.RunID, c.MaxThreads, c.SceneMemMB)
	return c, nil
}

func closeContext(c *ops.Context) {
	if c.Store != nil {
		c.Store.Close()
	}
}

// Builds the load operator from arguments or single-scene flags
func loadOperator(dirPatterns []string) (ops.Operator, error) {
	if len(dirPatterns) > 0 {
		op := ops.NewOpLoadMany(dirPatterns, *date)
		op.VisName, op.NirName, op.DemName = *visName, *nirName, *demName
		op.BandScale = float32(*scale)
		return op, nil
	}
	if *nir == "" || *dem == "" {
		return nil, errors.New("need -nir and -dem, or glacier directories as arguments")
	}
	name := *glacier
	if name == "" {
		abs, err := filepath.Abs(*nir)
		if err != nil {
			return nil, err
		}
		name = filepath.Base(filepath.Dir(abs))
	}
	op := ops.NewOpLoad(0, name, *date, *vis, *nir, *dem)
	op.BandScale = float32(*scale)
	return op, nil
}

// Classify scenes with the given algorithms, then save and store the results as flagged
func cmdClassify(algs []classify.Algorithm, dirPatterns []string) error {
	for _, alg := range algs {
		if alg != classify.ASMAG && *vis == "" && len(dirPatterns) == 0 {
			return fmt.Errorf("%s needs the visible band given with -vis", alg)
		}
	}
	load, err := loadOperator(dirPatterns)
	if err != nil {
		return err
	}
	seq := ops.NewOpSequence(load, ops.NewOpClassify(algs...))
	if *mask != "" || *overlay != "" || *plot != "" || *hist != "" {
		save := ops.NewOpSave(*mask, *overlay, *plot)
		save.HistogramPattern = *hist
		save.Active = true
		seq.Append(save)
	}
	if *db != "" {
		seq.Append(ops.NewOpStoreDefault())
	}
	return runSequence(seq)
}

// Runs the operator sequence from the JSON file given with -job
func cmdJob() error {
	if *job == "" {
		return errors.New("job command needs a -job file")
	}
	bs, err := os.ReadFile(*job)
	if err != nil {
		return err
	}
	seq := ops.NewOpSequenceDefault()
	if err := json.Unmarshal(bs, seq); err != nil {
		return fmt.Errorf("parsing %s: %w", *job, err)
	}
	return runSequence(seq)
}

func runSequence(seq *ops.OpSequence) error {
	c, err := newContext()
	if err != nil {
		return err
	}
	defer closeContext(c)

	m, err := json.MarshalIndent(seq, "", "  ")
	if err != nil {
		return err
	}
	log.Debugf("Running with these settings:\n%s", string(m))

	// scene sizes are unknown before loading, budget for a large glacier at 10m
	return ops.Run(seq, c, ops.SceneMB(4000*4000))
}

// Prints the stored snow line series of a glacier and model
func cmdSeries(args []string) error {
	if len(args) != 2 {
		return errors.New("series needs glacier and model arguments")
	}
	alg, ok := classify.ParseAlgorithm(args[1])
	if !ok {
		return fmt.Errorf("unknown model '%s'", args[1])
	}
	if *db == "" {
		return errors.New("series needs a -db file")
	}
	st, err := store.Open(*db)
	if err != nil {
		return err
	}
	defer st.Close()
	recs, err := st.Series(args[0], alg)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tSLA\tR2\tSNOW\tSTATUS")
	for _, r := range recs {
		sla, r2 := "-", "-"
		if r.SLA != nil {
			sla = fmt.Sprintf("%.1f", *r.SLA)
		}
		if r.R2 != nil {
			r2 = fmt.Sprintf("%.3f", *r.R2)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%.1f%%\t%s\n", r.Date.Format(store.DateLayout), sla, r2, 100*r.SnowFraction, r.Status)
	}
	return w.Flush()
}

func cmdServe() error {
	var st *store.Store
	if *db != "" {
		var err error
		if st, err = store.Open(*db); err != nil {
			return err
		}
		defer st.Close()
	}
	if err := rest.MakeSandbox(*chroot, *setuid, log.Get()); err != nil {
		return err
	}
	return rest.Serve(*addr, st, log.Get())
}

func cmdVersion() {
	features := []string{}
	for _, f := range []struct {
		name string
		ok   bool
	}{{"SSE2", cpuid.CPU.SSE2()}, {"AVX", cpuid.CPU.AVX()}, {"AVX2", cpuid.CPU.AVX2()}, {"FMA3", cpuid.CPU.FMA3()}} {
		if f.ok {
			features = append(features, f.name)
		}
	}
	fmt.Fprintf(os.Stdout, "Snowline version %s\n", version)
	fmt.Fprintf(os.Stdout, "CPU %s with %d logical cores, features %s\n", cpuid.CPU.BrandName,
		cpuid.CPU.LogicalCores, strings.Join(features, " "))
	fmt.Fprintf(os.Stdout, "Physical memory %d MB\n", memory.TotalMemory()/1024/1024)
}
