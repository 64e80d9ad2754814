package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"centerlinemetrics/internal/models"
	"centerlinemetrics/pkg/centerline"
	"centerlinemetrics/pkg/config"
	"centerlinemetrics/pkg/interpolation"
	"centerlinemetrics/pkg/logging"
	"centerlinemetrics/pkg/metrics"
	"centerlinemetrics/pkg/server"
	"centerlinemetrics/pkg/table"
	"centerlinemetrics/pkg/visualization"
)

func main() {
	// Parse command line arguments
	inputPath := flag.String("input", "", "Centerline file (.vtk polydata with a Radius point array, or .csv with x,y,z,radius)")
	configPath := flag.String("config", "centerlinemetrics.yaml", "YAML configuration file")
	mode := flag.String("mode", "", "Distance mode: cumulative or projected (overrides config)")
	axis := flag.String("axis", "", "Axis for projected mode: 0/1/2, x/y/z or r/a/s (overrides config)")
	csvOut := flag.String("csv", "", "Write the Distance/Diameter table as CSV")
	arrowOut := flag.String("arrow", "", "Write the table as an Arrow IPC file")
	dbPath := flag.String("db", "", "Record the run in this SQLite database")
	plotOut := flag.String("plot", "", "Save the diameter plot (png, svg or pdf by extension)")
	htmlOut := flag.String("html", "", "Save an interactive HTML chart")
	flag.Float64("resample", 0, "Resample the cumulative profile at this spacing (overrides config)")
	locate := flag.String("locate", "", "Report the table row closest to this x,y,z position")
	serve := flag.Bool("serve", false, "Serve the extraction API instead of processing a file")
	addr := flag.String("addr", "", "Listen address for -serve (overrides config)")
	writeConfig := flag.Bool("write-config", false, "Write the default configuration to -config and exit")
	flag.Parse()

	if *writeConfig {
		if err := config.CreateDefaultConfigFile(*configPath); err != nil {
			log.Fatalf("Failed to write config: %v", err)
		}
		fmt.Printf("Default configuration written to %s\n", *configPath)
		return
	}

	// Load configuration: YAML, then .env/environment, then flags
	if err := config.LoadEnvFiles(); err != nil {
		log.Fatalf("Failed to load .env: %v", err)
	}
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.ApplyEnv(nil); err != nil {
		log.Fatalf("Invalid environment: %v", err)
	}
	applyFlags(cfg, map[string]*string{
		"mode":  mode,
		"axis":  axis,
		"csv":   csvOut,
		"arrow": arrowOut,
		"db":    dbPath,
		"plot":  plotOut,
		"html":  htmlOut,
		"addr":  addr,
	})
	applyResampleFlag(cfg, flag.CommandLine)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger, err := logging.New(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	chart := visualization.NewChart(chartOptions(cfg))

	if *serve {
		if err := runServer(cfg, chart, logger); err != nil {
			logger.Fatal("server failed", zap.Error(err))
		}
		return
	}

	// Nothing to compute without a centerline
	if *inputPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	var position *models.Point
	if *locate != "" {
		p, err := parsePoint(*locate)
		if err != nil {
			log.Fatalf("Invalid -locate: %v", err)
		}
		position = &p
	}

	if err := run(cfg, chart, logger, *inputPath, position); err != nil {
		logger.Fatal("centerline metrics failed", zap.Error(err))
	}
}

// applyFlags copies non-empty flag values over the configuration
func applyFlags(cfg *config.Config, flags map[string]*string) {
	targets := map[string]*string{
		"mode":  &cfg.Extraction.Mode,
		"axis":  &cfg.Extraction.Axis,
		"csv":   &cfg.Output.CSV,
		"arrow": &cfg.Output.Arrow,
		"db":    &cfg.Output.Database,
		"plot":  &cfg.Output.Plot,
		"html":  &cfg.Output.HTML,
		"addr":  &cfg.Server.Addr,
	}
	for name, v := range flags {
		if v != nil && *v != "" {
			*targets[name] = *v
		}
	}
}

// applyResampleFlag copies -resample over the configuration when it was
// given on the command line, including zero and invalid values, which
// Validate then reports
func applyResampleFlag(cfg *config.Config, fs *flag.FlagSet) {
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "resample" {
			cfg.Extraction.ResampleStep = f.Value.(flag.Getter).Get().(float64)
		}
	})
}

func chartOptions(cfg *config.Config) visualization.Options {
	o := visualization.Options{
		XColumn: cfg.Table.DistanceColumn,
		YColumn: cfg.Table.DiameterColumn,
		Unit:    cfg.Plot.Unit,
		Width:   cfg.Plot.Width,
		Height:  cfg.Plot.Height,
	}
	copy(o.Color[:], cfg.Plot.Color)
	return o
}

func runServer(cfg *config.Config, chart *visualization.Chart, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := server.Options{
		Chart:          chart,
		DistanceColumn: cfg.Table.DistanceColumn,
		DiameterColumn: cfg.Table.DiameterColumn,
		Logger:         logger,
	}
	if cfg.Output.Database != "" {
		store, err := table.OpenStore(cfg.Output.Database)
		if err != nil {
			return err
		}
		defer store.Close()
		opts.Store = store
	}

	return server.New(opts).Run(ctx, cfg.Server.Addr)
}

// parsePoint parses "x,y,z"
func parsePoint(s string) (models.Point, error) {
	var p models.Point
	fields := strings.Split(s, ",")
	if len(fields) != 3 {
		return p, fmt.Errorf("expected x,y,z, got %q", s)
	}
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return p, fmt.Errorf("coordinate %d: %w", i, err)
		}
		p[i] = v
	}
	return p, nil
}

func run(cfg *config.Config, chart *visualization.Chart, logger *zap.Logger, inputPath string, position *models.Point) error {
	mode, err := cfg.Mode()
	if err != nil {
		return err
	}
	axis, err := cfg.Axis()
	if err != nil {
		return err
	}

	fmt.Println("================================")
	fmt.Println("CENTERLINE METRICS: DIAMETER AND DISTANCE ALONG A VESSEL CENTERLINE")
	fmt.Println("================================")

	sample, err := centerline.Load(inputPath, cfg.Extraction.RadiusArray)
	if err != nil {
		return err
	}
	logger.Info("loaded centerline", logging.Sample(sample.Name, sample.Len())...)

	startTime := time.Now()
	result, err := metrics.Extract(sample, mode, axis)
	if err != nil {
		return err
	}
	logger.Debug("extracted metrics", append(logging.Sample(sample.Name, sample.Len()),
		zap.Stringer("mode", mode), zap.Stringer("axis", axis), zap.Duration("elapsed", time.Since(startTime)))...)

	// Locate against the extracted rows, before any resampling
	var located *location
	if position != nil {
		locator, err := interpolation.NewLocator(sample.Points)
		if err != nil {
			return err
		}
		row, dist := locator.Nearest(*position)
		located = &location{Position: *position, Row: row, Offset: dist,
			Distance: result.Distance[row], Diameter: result.Diameter[row]}
	}

	if step := cfg.Extraction.ResampleStep; step > 0 {
		result, err = interpolation.Resample(result, step)
		if err != nil {
			return err
		}
		logger.Debug("resampled profile", zap.Float64("step", step), zap.Int("rows", len(result.Distance)))
	}

	tbl, err := table.FromResult(sample.Name, result, cfg.Table.DistanceColumn, cfg.Table.DiameterColumn)
	if err != nil {
		return err
	}

	if err := writeOutputs(cfg, chart, tbl, logger); err != nil {
		return err
	}

	if cfg.Output.Database != "" {
		store, err := table.OpenStore(cfg.Output.Database)
		if err != nil {
			return err
		}
		defer store.Close()

		id, err := store.SaveRun(context.Background(), &table.Run{Name: sample.Name, Mode: mode, Axis: axis, Table: tbl})
		if err != nil {
			return err
		}
		logger.Info("recorded run", zap.String("run_id", id), zap.String("database", cfg.Output.Database))
	}

	printReport(sample, mode, axis, result, cfg.Plot.Unit)
	if located != nil {
		printLocation(located, cfg.Plot.Unit)
	}
	return nil
}

// location is the centerline row closest to a queried position
type location struct {
	Position models.Point
	Row      int
	Offset   float64
	Distance float64
	Diameter float64
}

// writeOutputs writes every configured output file for tbl
func writeOutputs(cfg *config.Config, chart *visualization.Chart, tbl *table.Table, logger *zap.Logger) error {
	writers := []struct {
		path  string
		write func(*os.File) error
	}{
		{cfg.Output.CSV, func(f *os.File) error { return table.WriteCSV(f, tbl) }},
		{cfg.Output.Arrow, func(f *os.File) error { return table.WriteArrow(f, tbl) }},
		{cfg.Output.HTML, func(f *os.File) error { return chart.RenderHTML(f, tbl) }},
	}

	for _, w := range writers {
		if w.path == "" {
			continue
		}
		if err := writeFile(w.path, w.write); err != nil {
			return err
		}
		logger.Info("wrote output", zap.String("path", w.path))
	}

	if cfg.Output.Plot != "" {
		if err := chart.SavePNG(cfg.Output.Plot, tbl); err != nil {
			return err
		}
		logger.Info("wrote plot", zap.String("path", cfg.Output.Plot))
	}
	return nil
}

func writeFile(path string, write func(*os.File) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func printReport(sample *models.CenterlineSample, mode models.DistanceMode, axis models.Axis, result *models.MetricsResult, unit string) {
	summary := metrics.Summarize(result)

	fmt.Printf("\nCenterline: %s\n", sample.Name)
	if mode == models.Projected {
		fmt.Printf("Distance mode: %s (axis %s)\n", mode, axis)
	} else {
		fmt.Printf("Distance mode: %s\n", mode)
	}
	fmt.Printf("=======================================\n")
	fmt.Printf("Points: %d\n", summary.Count)
	fmt.Printf("Distance span: %.3f %s\n", summary.Length, unit)
	fmt.Printf("Diameter min/mean/max: %.3f / %.3f / %.3f %s\n",
		summary.MinDiameter, summary.MeanDiameter, summary.MaxDiameter, unit)
}

func printLocation(l *location, unit string) {
	fmt.Printf("\nClosest centerline point to (%g, %g, %g)\n", l.Position[0], l.Position[1], l.Position[2])
	fmt.Printf("=======================================\n")
	fmt.Printf("Row: %d (%.3f %s away)\n", l.Row, l.Offset, unit)
	fmt.Printf("Distance: %.3f %s\n", l.Distance, unit)
	fmt.Printf("Diameter: %.3f %s\n", l.Diameter, unit)
}
