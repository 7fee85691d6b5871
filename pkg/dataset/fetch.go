package dataset

import (
	"archive/zip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/cyclopcam/fieldsight/pkg/iox"
	"github.com/cyclopcam/logs"
)

// Written into an unpacked source once extraction has finished
const completeMarker = ".fieldsight-complete"

// IsRemoteSource returns true if source is an http(s) URL of a zipped dataset export
func IsRemoteSource(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

// FetchSource returns a local directory holding the raw dataset 'source'.
// A local directory is returned as-is. An http(s) URL is treated as a zip export
// (eg a Roboflow "yolov8" download link), which is downloaded and unpacked into
// a subdirectory of cacheDir. A previously completed download is reused.
func FetchSource(ctx context.Context, log logs.Log, source, cacheDir string) (string, error) {
	if !IsRemoteSource(source) {
		return source, nil
	}
	if cacheDir == "" {
		return "", fmt.Errorf("%w: a cache directory is required to download %v", ErrConfig, source)
	}
	hash := sha256.Sum256([]byte(source))
	dir := filepath.Join(cacheDir, hex.EncodeToString(hash[:6]))
	if _, err := os.Stat(filepath.Join(dir, completeMarker)); err == nil {
		log.Infof("Using cached dataset %v for %v", dir, source)
		return dir, nil
	}

	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return "", err
	}
	zipFile := dir + ".zip"
	log.Infof("Downloading %v", source)
	if err := downloadFile(ctx, source, zipFile); err != nil {
		return "", fmt.Errorf("Failed to download %v: %w", source, err)
	}
	defer os.Remove(zipFile)

	// A previous, unfinished unpack
	if err := os.RemoveAll(dir); err != nil {
		return "", fmt.Errorf("Failed to clean %v: %w", dir, err)
	}
	if err := unzip(zipFile, dir); err != nil {
		return "", fmt.Errorf("Failed to unpack %v: %w", source, err)
	}
	if err := os.WriteFile(filepath.Join(dir, completeMarker), []byte(source+"\n"), 0644); err != nil {
		return "", err
	}
	log.Infof("Unpacked %v into %v", source, dir)
	return dir, nil
}

func downloadFile(ctx context.Context, srcUrl, targetFile string) error {
	req, err := http.NewRequestWithContext(ctx, "GET", srcUrl, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		return fmt.Errorf("HTTP error %v", resp.Status)
	}
	return iox.WriteStreamToFile(targetFile, resp.Body)
}

func unzip(zipFile, dir string) error {
	zr, err := zip.OpenReader(zipFile)
	if err != nil {
		return err
	}
	defer zr.Close()

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	for _, f := range zr.File {
		target := filepath.Join(absDir, filepath.FromSlash(f.Name))
		if target != absDir && !strings.HasPrefix(target, absDir+string(filepath.Separator)) {
			return fmt.Errorf("Zip entry %v escapes the destination directory", f.Name)
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return err
		}
		if err := extractFile(f, target); err != nil {
			return err
		}
	}
	return nil
}

func extractFile(f *zip.File, target string) error {
	src, err := f.Open()
	if err != nil {
		return err
	}
	defer src.Close()
	dst, err := os.OpenFile(target, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	_, err = io.Copy(dst, src)
	errClose := dst.Close()
	if err != nil {
		return err
	}
	return errClose
}
