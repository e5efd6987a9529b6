package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// RotatingWriter appends to a log file and rotates it by size, keeping a
// fixed number of numbered backups (file.1 is the newest). Safe for
// concurrent use.
//
// Rotation is checked at open as well as at write time: one capture run
// rarely crosses the size limit by itself, but the file keeps growing
// across runs and has to turn over eventually.
type RotatingWriter struct {
	mu      sync.Mutex
	file    *os.File
	path    string
	limit   int64
	backups int
	size    int64
}

// NewRotatingWriter opens path for appending, rotating first when the
// file is already at or over maxSizeMB. maxBackups numbered backups are
// kept; older ones fall off the end.
func NewRotatingWriter(path string, maxSizeMB, maxBackups int) (*RotatingWriter, error) {
	if maxSizeMB <= 0 {
		maxSizeMB = 10
	}
	if maxBackups <= 0 {
		maxBackups = 3
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	rw := &RotatingWriter{
		path:    path,
		limit:   int64(maxSizeMB) << 20,
		backups: maxBackups,
	}
	if info, err := os.Stat(path); err == nil && info.Size() >= rw.limit {
		rw.shift()
	}
	if err := rw.open(); err != nil {
		return nil, err
	}
	return rw, nil
}

func (rw *RotatingWriter) Write(p []byte) (int, error) {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	if rw.size+int64(len(p)) > rw.limit {
		if err := rw.rotate(); err != nil {
			return 0, fmt.Errorf("log rotation: %w", err)
		}
	}
	n, err := rw.file.Write(p)
	rw.size += int64(n)
	return n, err
}

func (rw *RotatingWriter) Close() error {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	if rw.file == nil {
		return nil
	}
	err := rw.file.Close()
	rw.file = nil
	return err
}

func (rw *RotatingWriter) open() error {
	f, err := os.OpenFile(rw.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("stat log file: %w", err)
	}
	rw.file = f
	rw.size = info.Size()
	return nil
}

// shift renumbers the backup chain and moves the live file to .1.
// Rename errors are ignored; a failed shift costs a backup generation,
// not the log.
func (rw *RotatingWriter) shift() {
	os.Remove(fmt.Sprintf("%s.%d", rw.path, rw.backups))
	for i := rw.backups - 1; i >= 1; i-- {
		os.Rename(fmt.Sprintf("%s.%d", rw.path, i), fmt.Sprintf("%s.%d", rw.path, i+1))
	}
	os.Rename(rw.path, rw.path+".1")
}

func (rw *RotatingWriter) rotate() error {
	if rw.file != nil {
		rw.file.Close()
		rw.file = nil
	}
	rw.shift()
	return rw.open()
}
