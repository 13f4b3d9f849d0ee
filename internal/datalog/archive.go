package datalog

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"

	"watchtorian/internal/codec"
	"watchtorian/internal/models"
)

const archiveExt = ".zst"

// archive writes samples as encoded lines into a new zstd file under the
// archive directory and returns its path.
func (l *Log) archive(samples []models.TelemetrySample, at time.Time) (string, error) {
	if err := os.MkdirAll(l.archiveDir, 0o755); err != nil {
		return "", fmt.Errorf("ensure archive directory: %w", err)
	}

	base := strings.TrimSuffix(filepath.Base(l.path), filepath.Ext(l.path))
	stamp := codec.FormatTime(at)
	var (
		file *os.File
		path string
		err  error
	)
	for n := 0; ; n++ {
		name := fmt.Sprintf("%s-%s%s", base, stamp, archiveExt)
		if n > 0 {
			name = fmt.Sprintf("%s-%s.%d%s", base, stamp, n, archiveExt)
		}
		path = filepath.Join(l.archiveDir, name)
		file, err = os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, filePerm)
		if err == nil {
			break
		}
		if !errors.Is(err, os.ErrExist) {
			return "", fmt.Errorf("create archive: %w", err)
		}
	}

	if err := writeArchive(file, samples); err != nil {
		file.Close()
		_ = os.Remove(path)
		return "", err
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("close archive: %w", err)
	}
	return path, nil
}

func writeArchive(file *os.File, samples []models.TelemetrySample) error {
	enc, err := zstd.NewWriter(file)
	if err != nil {
		return fmt.Errorf("start archive encoder: %w", err)
	}
	for _, s := range samples {
		line, err := codec.EncodeSample(s)
		if err != nil {
			enc.Close()
			return fmt.Errorf("encode archived sample: %w", err)
		}
		if _, err := enc.Write([]byte(line + "\n")); err != nil {
			enc.Close()
			return fmt.Errorf("write archive: %w", err)
		}
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("finish archive: %w", err)
	}
	return file.Sync()
}

// ReadArchive decodes the samples stored in an archive written by Rotate.
func ReadArchive(path string) ([]models.TelemetrySample, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer file.Close()

	dec, err := zstd.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("start archive decoder: %w", err)
	}
	defer dec.Close()

	var samples []models.TelemetrySample
	scanner := bufio.NewScanner(dec)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		decoded, err := codec.DecodeSample(scanner.Text())
		if err != nil {
			return nil, err
		}
		samples = append(samples, decoded.Sample)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read archive: %w", err)
	}
	return samples, nil
}
