package chat

import (
	"os"
)

// progressReader wraps an open file and reports cumulative bytes read, which
// tracks upload progress since the transport reads the file exactly once.
type progressReader struct {
	f        *os.File
	total    int64
	read     int64
	progress ProgressFunc
}

func newProgressReader(path string, progress ProgressFunc) (*progressReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	return &progressReader{
		f:        f,
		total:    info.Size(),
		progress: progress,
	}, nil
}

func (r *progressReader) Read(p []byte) (int, error) {
	n, err := r.f.Read(p)
	if n > 0 {
		r.read += int64(n)
		if r.progress != nil {
			r.progress(r.read, r.total)
		}
	}
	return n, err
}

func (r *progressReader) Close() error {
	return r.f.Close()
}
