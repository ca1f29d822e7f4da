package apk

import (
	"archive/zip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/apkfleet/apkfleet-cli/internal/errors"
	"github.com/apkfleet/apkfleet-cli/internal/pool"
	"github.com/apkfleet/apkfleet-cli/pkg/deploy"
	"github.com/apkfleet/apkfleet-cli/pkg/utils"
)

// Extractor turns APK paths into classified ApkFile records. Parsers are
// tried in priority order per file: aapt badging when available, the binary
// manifest reader otherwise, with filename inference filling remaining gaps.
type Extractor struct {
	badging    *BadgingParser
	binary     *BinaryParser
	useBadging bool
	workers    int
	logger     utils.Logger
}

// ExtractFailure records one file that could not be extracted.
type ExtractFailure struct {
	Path string
	Err  error
}

// NewExtractor creates an extractor. aaptPath may be empty; the badging
// parser is only used when its binary probe succeeds.
func NewExtractor(aaptPath string, workers int, logger utils.Logger) *Extractor {
	if logger == nil {
		logger = utils.GetGlobalLogger()
	}

	e := &Extractor{
		badging: NewBadgingParser(aaptPath),
		binary:  NewBinaryParser(),
		workers: workers,
		logger:  logger,
	}
	if err := e.badging.Check(); err == nil {
		e.useBadging = true
	} else {
		logger.Debug("aapt unavailable, using binary manifest parser: %v", err)
	}
	return e
}

// ExtractAll processes paths with bounded concurrency. Results keep the input
// order; files that fail every parser are reported as failures, not dropped
// silently.
func (e *Extractor) ExtractAll(ctx context.Context, paths []string) ([]deploy.ApkFile, []ExtractFailure) {
	p := pool.New(pool.WithWorkerLimit[deploy.ApkFile](e.workers))
	results := p.Run(ctx, paths, func(ctx context.Context, path string) (deploy.ApkFile, error) {
		return e.Extract(ctx, path)
	})

	files := make([]deploy.ApkFile, 0, len(results))
	var failures []ExtractFailure
	for _, r := range results {
		if r.Err != nil {
			failures = append(failures, ExtractFailure{Path: r.Item, Err: r.Err})
			continue
		}
		files = append(files, r.Value)
	}
	return files, failures
}

// Extract parses and classifies a single APK file.
func (e *Extractor) Extract(ctx context.Context, path string) (deploy.ApkFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return deploy.ApkFile{}, errors.NewFileError("FILE_STAT",
			"cannot stat "+path+": "+err.Error())
	}
	if info.IsDir() || info.Size() == 0 {
		return deploy.ApkFile{}, errors.NewFileError("FILE_EMPTY",
			path+" is not a regular non-empty file")
	}

	manifest, authoritative := e.parse(ctx, path)
	inferred := InferFromFilename(path)
	if authoritative {
		// Badging output is trusted on split identity; the filename only
		// fills the gaps left by the in-process parsers.
		inferred.IsSplit = false
		inferred.SplitName = ""
	}
	manifest.merge(inferred)
	if manifest.Package == "" {
		return deploy.ApkFile{}, errors.NewExtractionError("NO_PACKAGE",
			"cannot determine package name for "+path)
	}

	sha, err := fileSHA256(path)
	if err != nil {
		return deploy.ApkFile{}, errors.NewFileError("FILE_HASH",
			"cannot hash "+path+": "+err.Error())
	}

	c := Classify(filepath.Base(path), manifest)
	file := deploy.ApkFile{
		Path:           path,
		PackageName:    manifest.Package,
		IsBase:         c.Class == deploy.ClassBase,
		Class:          c.Class,
		ABI:            c.ABI,
		Density:        c.Density,
		Locale:         c.Locale,
		SplitName:      manifest.SplitName,
		VersionCode:    manifest.VersionCode,
		VersionName:    manifest.VersionName,
		MinSDK:         manifest.MinSDK,
		TargetSDK:      manifest.TargetSDK,
		Size:           info.Size(),
		SHA256:         sha,
		SignerDigest:   signerDigest(path),
		RequiredSplits: manifest.RequiredSplits,
	}
	return file, nil
}

// parse runs the parser chain and merges what each stage recovered. Never
// returns nil: a file no parser can read degrades to filename inference.
// The second return is true when badging output was available, which is the
// only parser that reports split identity reliably.
func (e *Extractor) parse(ctx context.Context, path string) (*Manifest, bool) {
	manifest := &Manifest{}
	authoritative := false

	if e.useBadging {
		if m, err := e.badging.Dump(ctx, path); err == nil {
			manifest.merge(m)
			authoritative = true
		} else {
			e.logger.Debug("badging parse of %s failed: %v", path, err)
		}
	}

	if manifest.Package == "" || manifest.VersionCode == 0 {
		if m, err := e.binary.Parse(path); err == nil {
			manifest.merge(m)
		} else {
			e.logger.Debug("binary manifest parse of %s failed: %v", path, err)
		}
	}

	return manifest, authoritative
}

func fileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// signerDigest hashes the signature block entries under META-INF. It is a
// content proxy for grouping sanity checks, not certificate verification.
func signerDigest(path string) string {
	reader, err := zip.OpenReader(path)
	if err != nil {
		return ""
	}
	defer reader.Close()

	h := sha256.New()
	found := false
	for _, file := range reader.File {
		if !strings.HasPrefix(file.Name, "META-INF/") {
			continue
		}
		ext := strings.ToUpper(filepath.Ext(file.Name))
		if ext != ".RSA" && ext != ".DSA" && ext != ".EC" {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			continue
		}
		if _, err := io.Copy(h, rc); err == nil {
			found = true
		}
		rc.Close()
	}

	if !found {
		return ""
	}
	return hex.EncodeToString(h.Sum(nil))
}
