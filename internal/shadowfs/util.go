package shadowfs

import (
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// statTimeToTime converts a raw unix.Timespec (as found in unix.Stat_t) into
// a time.Time, the representation the rest of the daemon works in.
func statTimeToTime(ts unix.Timespec) time.Time {
	return time.Unix(ts.Sec, ts.Nsec)
}

// fdReader adapts an already-open file descriptor to io.ReadCloser, so
// shadow documents opened via openat(2) relative to a parent directory fd
// can be handed directly to shadowmeta.Decode.
type fdReader struct {
	f *os.File
}

func newFdReader(fd int) *fdReader {
	return &fdReader{f: os.NewFile(uintptr(fd), "shadow-doc")}
}

func (r *fdReader) Read(p []byte) (int, error) {
	return r.f.Read(p)
}

func (r *fdReader) Close() error {
	return r.f.Close()
}
