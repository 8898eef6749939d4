package export

import (
	"archive/tar"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
	"gopkg.in/yaml.v3"
)

const (
	manifestFileName = "manifest.yaml"
	entriesTarPrefix = "documents"
)

// BuildConfig configures export bundle creation.
type BuildConfig struct {
	// SourceDir holds the session's exported documents and recording.
	SourceDir string
	// Output is the destination tar.zst path.
	Output string
	// SessionID and OwnerID are recorded in the manifest.
	SessionID string
	OwnerID   string
	Signer    *Signer
	Now       func() time.Time
	Stdout    io.Writer
}

// Build assembles a signed export bundle from the session directory and
// writes the tar.zst archive to Output.
func Build(ctx context.Context, cfg BuildConfig) (*Manifest, error) {
	if cfg.SourceDir == "" {
		return nil, errors.New("source directory is required")
	}
	if cfg.Output == "" {
		return nil, errors.New("output path is required")
	}
	if cfg.Signer == nil {
		return nil, errors.New("signer is required")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Stdout == nil {
		cfg.Stdout = os.Stdout
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	info, err := os.Stat(cfg.SourceDir)
	if err != nil {
		return nil, fmt.Errorf("stat source dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source dir %q is not a directory", cfg.SourceDir)
	}

	entries, err := collectEntries(ctx, cfg.SourceDir)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, errors.New("no documents found to export")
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Path < entries[j].Path
	})

	manifest := &Manifest{
		Version:          "1",
		CreatedAt:        cfg.Now().UTC().Truncate(time.Second),
		SessionID:        cfg.SessionID,
		OwnerID:          cfg.OwnerID,
		Signer:           cfg.Signer.Recipient(),
		SigningPublicKey: cfg.Signer.PublicKeyBase64(),
		Entries:          entries,
	}

	payload, err := manifest.SigningBytes()
	if err != nil {
		return nil, fmt.Errorf("marshal manifest for signing: %w", err)
	}
	sig, err := cfg.Signer.Sign(payload)
	if err != nil {
		return nil, fmt.Errorf("sign manifest: %w", err)
	}
	manifest.Signature = sig

	manifestBytes, err := yaml.Marshal(manifest)
	if err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}

	if err := writeBundle(cfg.Output, manifestBytes, cfg.SourceDir, entries); err != nil {
		return nil, err
	}

	fmt.Fprintf(cfg.Stdout, "wrote export bundle %s (%d entries)\n", cfg.Output, len(entries))
	return manifest, nil
}

func collectEntries(ctx context.Context, root string) ([]ManifestEntry, error) {
	var entries []ManifestEntry
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return fmt.Errorf("relative path for %q: %w", path, err)
		}
		rel = filepath.ToSlash(rel)

		file, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open %q: %w", path, err)
		}
		hash := sha256.New()
		size, err := io.Copy(hash, file)
		file.Close()
		if err != nil {
			return fmt.Errorf("hash %q: %w", path, err)
		}

		entries = append(entries, ManifestEntry{
			Path:   rel,
			Kind:   inferKind(rel),
			Size:   size,
			SHA256: hex.EncodeToString(hash.Sum(nil)),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func writeBundle(output string, manifest []byte, sourceDir string, entries []ManifestEntry) error {
	dir := filepath.Dir(output)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil && !errors.Is(err, os.ErrExist) {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	file, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}

	encoder, err := zstd.NewWriter(file)
	if err != nil {
		file.Close()
		return fmt.Errorf("zstd writer: %w", err)
	}

	tw := tar.NewWriter(encoder)
	if err := writeBundleEntries(tw, manifest, sourceDir, entries); err != nil {
		encoder.Close()
		file.Close()
		return err
	}
	if err := tw.Close(); err != nil {
		encoder.Close()
		file.Close()
		return fmt.Errorf("finalize archive: %w", err)
	}
	if err := encoder.Close(); err != nil {
		file.Close()
		return fmt.Errorf("flush compression: %w", err)
	}
	return file.Close()
}

func writeBundleEntries(tw *tar.Writer, manifest []byte, sourceDir string, entries []ManifestEntry) error {
	manifestHeader := &tar.Header{
		Name:     manifestFileName,
		Mode:     0o644,
		Size:     int64(len(manifest)),
		ModTime:  time.Now().UTC(),
		Typeflag: tar.TypeReg,
	}
	if err := tw.WriteHeader(manifestHeader); err != nil {
		return fmt.Errorf("write manifest header: %w", err)
	}
	if _, err := tw.Write(manifest); err != nil {
		return fmt.Errorf("write manifest body: %w", err)
	}

	for _, entry := range entries {
		fullPath := filepath.Join(sourceDir, filepath.FromSlash(entry.Path))
		info, err := os.Stat(fullPath)
		if err != nil {
			return fmt.Errorf("stat %q: %w", entry.Path, err)
		}
		src, err := os.Open(fullPath)
		if err != nil {
			return fmt.Errorf("open %q: %w", entry.Path, err)
		}

		header := &tar.Header{
			Name:     filepath.ToSlash(filepath.Join(entriesTarPrefix, entry.Path)),
			Mode:     int64(info.Mode().Perm()),
			Size:     info.Size(),
			ModTime:  info.ModTime(),
			Typeflag: tar.TypeReg,
		}
		if err := tw.WriteHeader(header); err != nil {
			src.Close()
			return fmt.Errorf("write header for %q: %w", entry.Path, err)
		}
		if _, err := io.Copy(tw, src); err != nil {
			src.Close()
			return fmt.Errorf("copy %q: %w", entry.Path, err)
		}
		src.Close()
	}

	return nil
}

// inferKind classifies bundle entries by extension so importing software can
// route documents and recordings without sniffing bytes.
func inferKind(path string) string {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".txt"), strings.HasSuffix(lower, ".md"):
		return "document"
	case strings.HasSuffix(lower, ".pdf"):
		return "pdf"
	case strings.HasSuffix(lower, ".webm"), strings.HasSuffix(lower, ".mp4"),
		strings.HasSuffix(lower, ".mp3"), strings.HasSuffix(lower, ".ogg"),
		strings.HasSuffix(lower, ".wav"):
		return "recording"
	case strings.HasSuffix(lower, ".json"):
		return "metadata"
	default:
		return "file"
	}
}

// Verify opens a bundle, checks the manifest signature, and confirms every
// entry's size and digest.
func Verify(ctx context.Context, bundlePath string, signer *Signer) (*Manifest, error) {
	if bundlePath == "" {
		return nil, errors.New("bundle file is required")
	}
	if signer == nil {
		return nil, errors.New("signer is required")
	}

	bundleFile, err := os.Open(bundlePath)
	if err != nil {
		return nil, fmt.Errorf("open bundle: %w", err)
	}
	defer bundleFile.Close()

	decoder, err := zstd.NewReader(bundleFile)
	if err != nil {
		return nil, fmt.Errorf("zstd reader: %w", err)
	}
	defer decoder.Close()

	var (
		manifestBytes []byte
		digests       = map[string]string{}
		sizes         = map[string]int64{}
	)

	tr := tar.NewReader(decoder)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read tar entry: %w", err)
		}
		if header.Typeflag != tar.TypeReg {
			continue
		}

		name := filepath.ToSlash(filepath.Clean(header.Name))
		if name == manifestFileName {
			data, err := io.ReadAll(tr)
			if err != nil {
				return nil, fmt.Errorf("read manifest: %w", err)
			}
			manifestBytes = data
			continue
		}

		hash := sha256.New()
		size, err := io.Copy(hash, tr)
		if err != nil {
			return nil, fmt.Errorf("hash %q: %w", name, err)
		}
		rel := strings.TrimPrefix(name, entriesTarPrefix+"/")
		digests[rel] = hex.EncodeToString(hash.Sum(nil))
		sizes[rel] = size
	}

	if len(manifestBytes) == 0 {
		return nil, errors.New("bundle missing manifest.yaml")
	}

	var manifest Manifest
	if err := yaml.Unmarshal(manifestBytes, &manifest); err != nil {
		return nil, fmt.Errorf("unmarshal manifest: %w", err)
	}
	if manifest.Version != "1" {
		return nil, fmt.Errorf("unsupported manifest version %q", manifest.Version)
	}
	if manifest.Signature == "" {
		return nil, errors.New("manifest missing signature")
	}

	payload, err := manifest.SigningBytes()
	if err != nil {
		return nil, fmt.Errorf("marshal manifest for verification: %w", err)
	}
	if err := signer.Verify(payload, manifest.Signature, manifest.SigningPublicKey); err != nil {
		return nil, fmt.Errorf("verify manifest signature: %w", err)
	}

	for _, entry := range manifest.Entries {
		digest, ok := digests[entry.Path]
		if !ok {
			return nil, fmt.Errorf("bundle missing entry %q", entry.Path)
		}
		if digest != entry.SHA256 {
			return nil, fmt.Errorf("digest mismatch for %q", entry.Path)
		}
		if sizes[entry.Path] != entry.Size {
			return nil, fmt.Errorf("size mismatch for %q", entry.Path)
		}
	}

	return &manifest, nil
}
