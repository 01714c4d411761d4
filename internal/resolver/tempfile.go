package resolver

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const tempFilePrefix = "platune_cache"

// defaultPrefetchBytes is used when the source gives no Icy-Br hint to
// size against (512KB, matching the adaptive storage provider's
// unknown-content-length chunk size in the lineage this is grounded on).
const defaultPrefetchBytes = 512 * 1024

// CleanupStaleTempFiles removes any platune_cache-prefixed files left
// behind by a previous, uncleanly terminated process. Call once at
// startup before any source materialization.
func CleanupStaleTempFiles() {
	dir := os.TempDir()
	entries, err := os.ReadDir(dir)
	if err != nil {
		log.Warn().Err(err).Str("dir", dir).Msg("failed to scan temp dir for stale cache files")
		return
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), tempFilePrefix) {
			path := filepath.Join(dir, e.Name())
			if err := os.Remove(path); err != nil {
				log.Warn().Err(err).Str("path", path).Msg("failed to remove stale cache file")
			} else {
				log.Info().Str("path", path).Msg("removed stale cache file from previous run")
			}
		}
	}
}

// tempDownloader streams an HTTP response body into a growing temp file
// while serving Read/Seek against whatever has landed so far, appending
// as more arrives — the Go analogue of an adaptive temp-file-backed
// stream downloader.
type tempDownloader struct {
	file *os.File
	ext  string

	mu            sync.Mutex
	cond          *sync.Cond
	downloaded    int64
	contentLength int64 // -1 if unknown
	done          bool
	err           error

	pos    int64
	cancel context.CancelFunc
}

func newTempDownloader(ctx context.Context, body io.ReadCloser, contentLength int64, ext string) (*tempDownloader, error) {
	f, err := os.CreateTemp("", tempFilePrefix+"-*")
	if err != nil {
		body.Close()
		return nil, fmt.Errorf("create temp cache file: %w", err)
	}

	dlCtx, cancel := context.WithCancel(ctx)
	d := &tempDownloader{
		file:          f,
		ext:           ext,
		contentLength: contentLength,
		cancel:        cancel,
	}
	d.cond = sync.NewCond(&d.mu)

	go d.download(dlCtx, body)
	return d, nil
}

func (d *tempDownloader) download(ctx context.Context, body io.ReadCloser) {
	defer body.Close()
	buf := make([]byte, 32*1024)

	for {
		select {
		case <-ctx.Done():
			d.finish(ctx.Err())
			return
		default:
		}

		n, err := body.Read(buf)
		if n > 0 {
			if _, werr := d.file.WriteAt(buf[:n], d.downloaded); werr != nil {
				d.finish(werr)
				return
			}
			d.mu.Lock()
			d.downloaded += int64(n)
			d.cond.Broadcast()
			d.mu.Unlock()
		}
		if err != nil {
			if err == io.EOF {
				d.finish(nil)
			} else {
				d.finish(err)
			}
			return
		}
	}
}

func (d *tempDownloader) finish(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.done = true
	d.err = err
	d.cond.Broadcast()
}

// waitFor blocks until at least n bytes have downloaded, the download
// finished, or the context errors.
func (d *tempDownloader) waitFor(n int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for d.downloaded < n && !d.done {
		d.cond.Wait()
	}
}

func (d *tempDownloader) Read(p []byte) (int, error) {
	d.mu.Lock()
	for d.downloaded <= d.pos && !d.done {
		d.cond.Wait()
	}
	available := d.downloaded - d.pos
	finished := d.done
	downloadErr := d.err
	d.mu.Unlock()

	if available <= 0 {
		if downloadErr != nil {
			return 0, downloadErr
		}
		if finished {
			return 0, io.EOF
		}
	}

	if int64(len(p)) > available {
		p = p[:available]
	}
	n, err := d.file.ReadAt(p, d.pos)
	d.pos += int64(n)
	if err == io.EOF {
		err = nil
	}
	return n, err
}

func (d *tempDownloader) Seek(offset int64, whence int) (int64, error) {
	var target int64
	switch whence {
	case io.SeekStart:
		target = offset
	case io.SeekCurrent:
		target = d.pos + offset
	case io.SeekEnd:
		d.mu.Lock()
		cl := d.contentLength
		d.mu.Unlock()
		if cl < 0 {
			return 0, fmt.Errorf("seek from end: content length unknown")
		}
		target = cl + offset
	default:
		return 0, fmt.Errorf("invalid whence %d", whence)
	}
	if target < 0 {
		return 0, fmt.Errorf("negative seek target %d", target)
	}

	d.waitFor(target)
	d.pos = target
	return d.pos, nil
}

func (d *tempDownloader) Close() error {
	d.cancel()
	path := d.file.Name()
	err := d.file.Close()
	if rerr := os.Remove(path); rerr != nil && err == nil {
		err = rerr
	}
	return err
}

func (d *tempDownloader) Ext() string { return d.ext }

func (d *tempDownloader) Len() (int64, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.contentLength < 0 {
		return 0, false
	}
	return d.contentLength, true
}

// prefetchSizeFor picks the minimum bytes to wait for before handing the
// source to the decoder: 5 seconds' worth if an Icy-Br (kbps) header is
// present, otherwise defaultPrefetchBytes.
func prefetchSizeFor(icyBrKbps int64) int64 {
	if icyBrKbps <= 0 {
		return defaultPrefetchBytes
	}
	return icyBrKbps / 8 * 1024 * 5
}
