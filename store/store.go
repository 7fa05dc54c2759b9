package store

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/phuslu/log"
	"github.com/pkg/errors"
)

/*
Block store file
┌──────────────────────────────────────────────────────────────┐
| block 1 (4096 byte)                                          |
|──────────────────────────────────────────────────────────────|
| block 2 (4096 byte)                                          |
|──────────────────────────────────────────────────────────────|
| ......                                                       |
└──────────────────────────────────────────────────────────────┘

One file per relation. Keys are positive and sequential, key k lives
at offset (k-1) * 4096. The caller tracks the highest key in use, the
store only reports how many whole blocks the file currently holds.
*/

const BlockSize = 4096

const permissionBits = 0755
const storeFileSuffix = ".db"

var ErrStoreFailure = fmt.Errorf("block store failure")

// BlockStore is a persistent, sequentially keyed array of fixed-length
// byte records.
type BlockStore interface {
	Create(exclusive bool) error
	Open() error
	Close() error
	Drop() error

	// Get reads the block under key into buffer (len BlockSize).
	Get(key uint32, buffer []byte) error
	// Put writes buffer under key, overwriting. Writing one block past
	// the end extends the file.
	Put(key uint32, buffer []byte) error
	// Blocks reports how many whole blocks the file holds.
	Blocks() (uint32, error)
}

// Env is the storage session handle. It owns the data directory and
// hands out one BlockStore per relation name. Construct it once at
// process start and pass it into every heap file.
type Env struct {
	dir    string
	logger log.Logger
}

func NewEnv(logger log.Logger, dir string) (*Env, error) {
	if _, err := os.Stat(dir); err != nil {
		logger.Debug().Msgf("creating data directory %s", dir)
		if err := os.MkdirAll(dir, os.ModePerm); err != nil {
			logger.Error().Err(err).Msg("failed to create data directory")
			return nil, errors.Wrapf(ErrStoreFailure, "create data directory %s: %v", dir, err)
		}
	}
	return &Env{dir: dir, logger: logger}, nil
}

func (env *Env) Dir() string {
	return env.dir
}

func (env *Env) BlockStore(name string) BlockStore {
	return &fileBlockStore{
		path:   filepath.Join(env.dir, name+storeFileSuffix),
		logger: env.logger,
		fd:     -1,
	}
}

type fileBlockStore struct {
	path   string
	logger log.Logger
	fd     int
}

func (fbs *fileBlockStore) Create(exclusive bool) error {
	if fbs.fd >= 0 {
		return errors.Wrapf(ErrStoreFailure, "store %s is already open", fbs.path)
	}
	flags := syscall.O_RDWR | syscall.O_DSYNC | syscall.O_CREAT
	if exclusive {
		flags |= syscall.O_EXCL
	}
	fd, err := syscall.Open(fbs.path, flags, permissionBits)
	if err != nil {
		fbs.logger.Error().Err(err).Msgf("failed to create store file %s", fbs.path)
		return errors.Wrapf(ErrStoreFailure, "create %s: %v", fbs.path, err)
	}
	fbs.fd = fd
	return nil
}

func (fbs *fileBlockStore) Open() error {
	if fbs.fd >= 0 {
		return nil
	}
	fd, err := syscall.Open(fbs.path, syscall.O_RDWR|syscall.O_DSYNC, permissionBits)
	if err != nil {
		fbs.logger.Error().Err(err).Msgf("failed to open store file %s", fbs.path)
		return errors.Wrapf(ErrStoreFailure, "open %s: %v", fbs.path, err)
	}
	fbs.fd = fd
	return nil
}

func (fbs *fileBlockStore) Close() error {
	if fbs.fd < 0 {
		return nil
	}
	if err := syscall.Close(fbs.fd); err != nil {
		fbs.logger.Error().Err(err).Msgf("failed to close store file %s", fbs.path)
		return errors.Wrapf(ErrStoreFailure, "close %s: %v", fbs.path, err)
	}
	fbs.fd = -1
	return nil
}

func (fbs *fileBlockStore) Drop() error {
	if err := fbs.Close(); err != nil {
		return err
	}
	if err := syscall.Unlink(fbs.path); err != nil {
		fbs.logger.Error().Err(err).Msgf("failed to delete store file %s", fbs.path)
		return errors.Wrapf(ErrStoreFailure, "delete %s: %v", fbs.path, err)
	}
	return nil
}

func (fbs *fileBlockStore) Get(key uint32, buffer []byte) error {
	if err := fbs.check(key, buffer); err != nil {
		return err
	}
	n, err := syscall.Pread(fbs.fd, buffer, blockOffset(key))
	if err != nil {
		fbs.logger.Error().Err(err).Msgf("failed to read block %d from %s", key, fbs.path)
		return errors.Wrapf(ErrStoreFailure, "read block %d of %s: %v", key, fbs.path, err)
	}
	if n != BlockSize {
		return errors.Wrapf(ErrStoreFailure, "short read of block %d of %s: %d bytes", key, fbs.path, n)
	}
	return nil
}

func (fbs *fileBlockStore) Put(key uint32, buffer []byte) error {
	if err := fbs.check(key, buffer); err != nil {
		return err
	}
	if _, err := syscall.Pwrite(fbs.fd, buffer, blockOffset(key)); err != nil {
		fbs.logger.Error().Err(err).Msgf("failed to write block %d to %s", key, fbs.path)
		return errors.Wrapf(ErrStoreFailure, "write block %d of %s: %v", key, fbs.path, err)
	}
	if err := syscall.Fsync(fbs.fd); err != nil {
		fbs.logger.Error().Err(err).Msgf("failed to fsync store file %s", fbs.path)
		return errors.Wrapf(ErrStoreFailure, "fsync %s: %v", fbs.path, err)
	}
	return nil
}

func (fbs *fileBlockStore) Blocks() (uint32, error) {
	if fbs.fd < 0 {
		return 0, errors.Wrapf(ErrStoreFailure, "store %s is closed", fbs.path)
	}
	var stat syscall.Stat_t
	if err := syscall.Fstat(fbs.fd, &stat); err != nil {
		fbs.logger.Error().Err(err).Msgf("failed to stat store file %s", fbs.path)
		return 0, errors.Wrapf(ErrStoreFailure, "stat %s: %v", fbs.path, err)
	}
	return uint32(stat.Size / BlockSize), nil
}

func (fbs *fileBlockStore) check(key uint32, buffer []byte) error {
	if fbs.fd < 0 {
		return errors.Wrapf(ErrStoreFailure, "store %s is closed", fbs.path)
	}
	if key == 0 {
		return errors.Wrapf(ErrStoreFailure, "block keys start at 1")
	}
	if len(buffer) != BlockSize {
		return errors.Wrapf(ErrStoreFailure, "block buffer must be %d bytes, got %d", BlockSize, len(buffer))
	}
	return nil
}

func blockOffset(key uint32) int64 {
	return int64(key-1) * BlockSize
}
