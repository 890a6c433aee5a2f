// avm runs actor images on the actorvm scheduler.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/actorvm/adapters/prometheus"
	"github.com/chazu/actorvm/manifest"
	"github.com/chazu/actorvm/sched"
	"github.com/chazu/actorvm/vm"
	"github.com/chazu/actorvm/vm/image"
)

var log = commonlog.GetLogger("actorvm.avm")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

type options struct {
	dir         string
	verbosity   int
	workers     int
	maxTicks    uint64
	dump        bool
	dis         bool
	metricsAddr string
	examples    string
}

func parseFlags(args []string, stderr io.Writer) (*options, []string, error) {
	fs := flag.NewFlagSet("avm", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var o options
	fs.StringVar(&o.dir, "C", ".", "Directory to search for "+manifest.FileName)
	fs.IntVar(&o.verbosity, "verbosity", 0, "Log verbosity (overrides log.verbosity)")
	verbose := fs.Bool("v", false, "Verbose output (same as -verbosity 1)")
	fs.IntVar(&o.workers, "workers", 0, "Goroutines ticking actors (overrides runtime.workers)")
	fs.Uint64Var(&o.maxTicks, "max-ticks", 0, "Halt actors after this many ticks (overrides runtime.max-ticks)")
	fs.BoolVar(&o.dump, "dump", false, "Print every actor's registers after the run")
	fs.BoolVar(&o.dis, "dis", false, "Disassemble the images instead of running them")
	fs.StringVar(&o.metricsAddr, "metrics", "", "Serve Prometheus metrics on this address (overrides metrics.listen)")
	fs.StringVar(&o.examples, "examples", "", "Write the example images into this directory and exit")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: avm [options] [images...]\n\n")
		fmt.Fprintf(stderr, "Runs each image as an actor, or the [[actors]] of %s when no images are given.\n\n", manifest.FileName)
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  avm -examples ./ex               # Write example images\n")
		fmt.Fprintf(stderr, "  avm -dump ex/add.avm             # Run one actor, show its registers\n")
		fmt.Fprintf(stderr, "  avm ex/pong.avm ex/ping.avm      # Two actors messaging each other\n")
		fmt.Fprintf(stderr, "  avm -dis ex/ping.avm             # Disassemble\n")
	}
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	if *verbose && o.verbosity == 0 {
		o.verbosity = 1
	}
	return &o, fs.Args(), nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	o, paths, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if o.examples != "" {
		if err := writeExamples(o.examples); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		fmt.Fprintf(stdout, "Wrote example images to %s\n", o.examples)
		return 0
	}

	m, err := manifest.FindAndLoad(o.dir)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if m == nil {
		m = manifest.Default()
	}
	applyOverrides(m, o)
	configureLogging(m)

	images, err := loadImages(m, paths)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if len(images) == 0 {
		fmt.Fprintf(stderr, "Error: no images given and no [[actors]] in %s\n", manifest.FileName)
		return 2
	}

	if o.dis {
		for _, img := range images {
			fmt.Fprint(stdout, img.Program.DisassembleWithName(img.Name))
		}
		return 0
	}

	sys := vm.NewSystem(
		vm.WithHeapSize(m.Runtime.HeapSize),
		vm.WithStackHint(m.Runtime.StackHint),
	)
	for _, img := range images {
		a, err := sys.CreateActor(img.Program, img.Options()...)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		log.Info("actor created", "actor", a.Name(), "ref", a.Ref(), "instructions", len(img.Program))
	}

	opts := sched.Options{
		Workers:         m.Runtime.Workers,
		MaxTicks:        m.Runtime.MaxTicks,
		StopWhenIdle:    m.Runtime.StopWhenIdle,
		IdlePoll:        m.Runtime.IdlePoll,
		HaltOnTypeError: m.Runtime.HaltOnTypeError,
	}
	if m.Metrics.Listen != "" {
		reg := prom.NewRegistry()
		opts.Metrics = prometheus.NewSchedMetrics(reg)
		srv := serveMetrics(m.Metrics.Listen, reg)
		defer srv.Close()
	}

	report, runErr := sched.New(sys, opts).Run(ctx)
	printReport(stdout, sys, report, o.dump)

	switch {
	case runErr == nil:
	case errors.Is(runErr, sched.ErrIdle):
		fmt.Fprintf(stdout, "stopped: %v\n", runErr)
	default:
		fmt.Fprintf(stderr, "Error: %v\n", runErr)
		return 1
	}
	if report.Failed() {
		return 1
	}
	return 0
}

func applyOverrides(m *manifest.Manifest, o *options) {
	if o.verbosity != 0 {
		m.Log.Verbosity = o.verbosity
	}
	if o.workers > 0 {
		m.Runtime.Workers = o.workers
	}
	if o.maxTicks > 0 {
		m.Runtime.MaxTicks = o.maxTicks
	}
	if o.metricsAddr != "" {
		m.Metrics.Listen = o.metricsAddr
	}
}

func configureLogging(m *manifest.Manifest) {
	var path *string
	if m.Log.Path != "" {
		p := m.Log.Path
		if !filepath.IsAbs(p) && m.Dir != "" {
			p = filepath.Join(m.Dir, p)
		}
		path = &p
	}
	commonlog.Configure(m.Log.Verbosity, path)
}

// loadImages reads the images named on the command line, or else those
// listed in the manifest. Manifest names override the image's own name.
func loadImages(m *manifest.Manifest, paths []string) ([]*image.Image, error) {
	var images []*image.Image
	if len(paths) > 0 {
		for _, p := range paths {
			img, err := image.ReadFile(p)
			if err != nil {
				return nil, err
			}
			images = append(images, img)
		}
		return images, nil
	}
	for _, spec := range m.Actors {
		img, err := image.ReadFile(m.ImagePath(spec))
		if err != nil {
			return nil, err
		}
		if spec.Name != "" {
			img.Name = spec.Name
		}
		images = append(images, img)
	}
	return images, nil
}

func serveMetrics(addr string, reg *prom.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server failed", "addr", addr, "error", err)
		}
	}()
	log.Notice("serving metrics", "addr", addr)
	return srv
}

func printReport(w io.Writer, sys *vm.System, report *sched.Report, dump bool) {
	fmt.Fprintf(w, "run %s: %d sweeps, %d ticks\n", report.RunID, report.Sweeps, report.Ticks)
	for _, a := range sys.Actors() {
		fmt.Fprintf(w, "  #%d %-16s %s", a.Ref(), a.Name(), report.Final[a.Ref()])
		if err := report.Faults[a.Ref()]; err != nil {
			fmt.Fprintf(w, "  %v", err)
		}
		fmt.Fprintln(w)
		if dump {
			fmt.Fprint(w, indent(vm.FormatRegisters(a.DumpRegisters()), "      "))
		}
	}
}
