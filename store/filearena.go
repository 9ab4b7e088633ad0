package store

import "os"

// fileArena is an Arena backed by a regular file, used by the decoder
// simulator when the subscription log should survive process restarts.
type fileArena struct {
	f   *os.File
	cap int64
}

// OpenFileArena opens (creating if necessary) path as a file-backed Arena
// with the given capacity.
func OpenFileArena(path string, capacity int64) (Arena, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, err
	}
	return &fileArena{f: f, cap: capacity}, nil
}

func (a *fileArena) ReadAt(p []byte, off int64) (int, error) {
	return a.f.ReadAt(p, off)
}

func (a *fileArena) WriteAt(p []byte, off int64) (int, error) {
	if off+int64(len(p)) > a.cap {
		return 0, ErrArenaFull
	}
	return a.f.WriteAt(p, off)
}

func (a *fileArena) Truncate() error {
	return a.f.Truncate(0)
}

func (a *fileArena) Size() int64 {
	fi, err := a.f.Stat()
	if err != nil {
		return 0
	}
	return fi.Size()
}
