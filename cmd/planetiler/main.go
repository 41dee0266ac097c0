// Command planetiler builds a tile archive from a GeoJSON source using the
// bundled passthrough profile (SPEC_FULL.md §6). The CLI surface mirrors
// spec.md's named flags; everything beyond flag parsing and output-URI
// resolution delegates straight to pipeline.Pipeline.
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/paulmach/orb"
	"go.uber.org/zap"

	"github.com/planetiler/planetiler-go/pipeline"
	"github.com/planetiler/planetiler-go/planerr"
	"github.com/planetiler/planetiler-go/profile"
)

// parseBounds parses "--bounds minlon,minlat,maxlon,maxlat"; an empty
// string means no restriction (the whole world).
func parseBounds(s string) (*orb.Bound, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return nil, fmt.Errorf("expected 4 comma-separated values, got %d", len(parts))
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("value %q: %w", p, err)
		}
		v[i] = f
	}
	b := orb.Bound{Min: orb.Point{v[0], v[1]}, Max: orb.Point{v[2], v[3]}}
	return &b, nil
}

// cli is the kong-parsed flag surface. The teacher's own main.go reaches
// for stdlib flag instead, despite declaring kong in go.mod; we adopt kong
// here since it already ships in the dependency graph and fits the richer
// flag set this spec names far better than flag.FlagSet would.
type cli struct {
	Input  string `arg:"" help:"input GeoJSON file." type:"existingfile"`
	Output string `arg:"" help:"output archive: local path or s3://, gs://, azblob:// URI."`

	Threads              int    `help:"worker thread count (default: NumCPU)."`
	MinZoom              int    `default:"0" help:"minimum zoom level."`
	MaxZoom              int    `default:"14" help:"maximum zoom level."`
	Bounds               string `help:"restrict output to minlon,minlat,maxlon,maxlat (default: whole world)."`
	TileWarningSizeBytes int    `default:"512000" help:"log a warning when an encoded tile exceeds this size."`
	SkipFilledTiles      bool   `help:"omit repeats of an identical full-tile fill tile (deduplicating archives keep them as references to the first)."`
	TileCompression      string `default:"gzip" enum:"gzip,none" help:"tile payload compression."`
	Tmpdir               string `default:"." help:"directory for external-sort spill files and staged uploads."`
	MaxMemoryBytes       int64  `help:"external sort chunk budget in bytes (default: 1 GiB)."`
	CompactSqlite        bool   `help:"use the tiles_shallow/tiles_data deduplicated schema for .mbtiles output."`
	Quiet                bool   `help:"suppress progress bars."`
}

func main() {
	var c cli
	kong.Parse(&c,
		kong.Name("planetiler"),
		kong.Description("Build a vector tile archive from a GeoJSON source."),
	)

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	if err := run(c, logger); err != nil {
		logger.Error("run failed", zap.Error(err))
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeFor(err))
	}
}

func exitCodeFor(err error) int {
	var perr *planerr.Error
	if e, ok := err.(*planerr.Error); ok {
		perr = e
	} else if ue, ok := err.(interface{ Unwrap() error }); ok {
		if e, ok := ue.Unwrap().(*planerr.Error); ok {
			perr = e
		}
	}
	if perr == nil {
		return 1
	}
	return perr.Kind.ExitCode()
}

func run(c cli, logger *zap.Logger) error {
	sources, err := loadGeoJSONSources(c.Input)
	if err != nil {
		return planerr.New(planerr.Input, "main.run", "no sources loaded", err)
	}

	out, err := resolveOutput(c.Output, c.Tmpdir, c.CompactSqlite)
	if err != nil {
		return planerr.New(planerr.Configuration, "main.run", "output not resolved", err)
	}

	bounds, err := parseBounds(c.Bounds)
	if err != nil {
		return planerr.New(planerr.Configuration, "main.run", "bad --bounds", err)
	}

	prof := &passthroughProfile{minZoom: c.MinZoom, maxZoom: c.MaxZoom}

	p := pipeline.New(prof, out.writer, pipeline.Options{
		Threads:         c.Threads,
		MinZoom:         c.MinZoom,
		MaxZoom:         c.MaxZoom,
		TmpDir:          c.Tmpdir,
		MaxMemoryBytes:  c.MaxMemoryBytes,
		SkipFilledTiles: c.SkipFilledTiles,
		DisableGzip:     c.TileCompression == "none",
		TileWarnBytes:   c.TileWarningSizeBytes,
		Logger:          logger,
		ShowProgress:    !c.Quiet,
	})

	ctx := context.Background()
	i := 0
	next := func() (profile.Source, bool, error) {
		for i < len(sources) {
			s := sources[i]
			i++
			if bounds == nil || bounds.Intersects(s.Geometry().Bound()) {
				return s, true, nil
			}
		}
		return nil, false, nil
	}

	if err := p.Run(ctx, next); err != nil {
		return err
	}

	snap := p.Stats().Snapshot()
	logger.Info("done",
		zap.Int64("sourceFeatures", snap.SourceFeaturesRead),
		zap.Int64("renderedFeatures", snap.RenderedFeatures),
		zap.Int64("tilesWritten", snap.TilesWritten),
		zap.Int64("tilesDeduplicated", snap.TilesDeduplicated),
	)

	if out.upload != nil {
		if err := out.upload(ctx); err != nil {
			return planerr.New(planerr.IO, "main.run", "archive built but not uploaded", err)
		}
	}
	return nil
}
