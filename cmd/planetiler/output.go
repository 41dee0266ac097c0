package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/azureblob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/s3blob"

	"github.com/planetiler/planetiler-go/archive"
	"github.com/planetiler/planetiler-go/archive/perfile"
	"github.com/planetiler/planetiler-go/archive/pmtiles"
	"github.com/planetiler/planetiler-go/archive/sqlitearchive"
	"github.com/planetiler/planetiler-go/archive/streaming"
	"github.com/planetiler/planetiler-go/tileid"
)

// resolvedOutput is an archive.Writer to run the pipeline against, plus an
// optional remote upload step to run once the writer has finished and the
// local file is complete.
type resolvedOutput struct {
	writer archive.Writer
	upload func(ctx context.Context) error
}

// resolveOutput parses --output's URI grammar ([scheme:]path[?query]) and
// picks a concrete archive.Writer by file extension, matching SPEC_FULL.md
// §6. Local paths write directly; bucket schemes (s3, gs, azblob) build the
// archive in a local temp file first (every shipped Writer needs random
// file access or sequential local I/O) and upload the finished bytes via
// gocloud.dev/blob on success — the same side-effect-import set the
// teacher's main.go registers for its own bucket-backed paths.
func resolveOutput(rawOutput string, tmpDir string, compact bool) (*resolvedOutput, error) {
	u, err := url.Parse(rawOutput)
	if err != nil {
		return nil, fmt.Errorf("parse --output %q: %w", rawOutput, err)
	}

	if u.Scheme == "" || u.Scheme == "file" {
		localPath := rawOutput
		if u.Scheme == "file" {
			localPath = u.Path
		}
		w, err := writerForPath(localPath, compact)
		if err != nil {
			return nil, err
		}
		return &resolvedOutput{writer: w}, nil
	}

	localPath := filepath.Join(tmpDir, "planetiler-output"+filepath.Ext(u.Path))
	w, err := writerForPath(localPath, compact)
	if err != nil {
		return nil, err
	}

	bucketURL := u.Scheme + "://" + u.Host
	key := strings.TrimPrefix(u.Path, "/")

	upload := func(ctx context.Context) error {
		bucket, err := blob.OpenBucket(ctx, bucketURL)
		if err != nil {
			return fmt.Errorf("open bucket %s: %w", bucketURL, err)
		}
		defer bucket.Close()

		data, err := os.ReadFile(localPath)
		if err != nil {
			return fmt.Errorf("read finished archive %s: %w", localPath, err)
		}
		if err := bucket.WriteAll(ctx, key, data, nil); err != nil {
			return fmt.Errorf("upload %s to %s: %w", key, rawOutput, err)
		}
		return os.Remove(localPath)
	}

	return &resolvedOutput{writer: w, upload: upload}, nil
}

func writerForPath(path string, compact bool) (archive.Writer, error) {
	if strings.HasSuffix(path, string(os.PathSeparator)) || strings.HasSuffix(path, "/") {
		return perfile.New(path), nil
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".pmtiles":
		return pmtiles.New(path), nil
	case ".mbtiles":
		return sqlitearchive.New(path, compact)
	case ".json":
		f, err := os.Create(path)
		if err != nil {
			return nil, fmt.Errorf("create %s: %w", path, err)
		}
		return streaming.New(f, streaming.JSON, tileid.TMS), nil
	case ".csv":
		f, err := os.Create(path)
		if err != nil {
			return nil, fmt.Errorf("create %s: %w", path, err)
		}
		return streaming.New(f, streaming.CSV, tileid.TMS), nil
	case ".tsv":
		f, err := os.Create(path)
		if err != nil {
			return nil, fmt.Errorf("create %s: %w", path, err)
		}
		return streaming.New(f, streaming.TSV, tileid.TMS), nil
	default:
		return pmtiles.New(path), nil
	}
}
