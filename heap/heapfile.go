package heap

import (
	"fmt"

	"github.com/phuslu/log"
	"github.com/pkg/errors"

	"github.com/thoresonjd/5300-Dolphin/page"
	"github.com/thoresonjd/5300-Dolphin/store"
)

var ErrInvalidBlock = fmt.Errorf("no such block in heap file")

// HeapFile manages the dense sequence of blocks for one relation over
// a block store. Block ids start at 1, are handed out sequentially and
// never removed, so the id range is always gap-free.
type HeapFile interface {
	// Create builds the persistent structure and allocates one initial
	// empty block. It fails if the relation already exists.
	Create() error
	// CreateIfNotExists opens the relation when it exists, creates it
	// otherwise.
	CreateIfNotExists() error
	Drop() error
	Open() error
	Close() error

	// GetNew allocates, persists and returns a fresh empty block.
	GetNew() (page.Page, error)
	// Get fetches the block from the store and wraps it as a page.
	Get(id page.BlockID) (page.Page, error)
	// Put writes the page's byte image back under its block id.
	Put(p page.Page) error
	// BlockIDs lists every block id, 1..last inclusive.
	BlockIDs() ([]page.BlockID, error)
	// Last is the highest block id in use, 0 when empty.
	Last() page.BlockID

	Name() string
}

type heapFile struct {
	name   string
	store  store.BlockStore
	last   page.BlockID
	closed bool
	logger log.Logger
}

func NewHeapFile(logger log.Logger, env *store.Env, name string) HeapFile {
	return &heapFile{
		name:   name,
		store:  env.BlockStore(name),
		closed: true,
		logger: logger,
	}
}

func (hf *heapFile) Name() string {
	return hf.name
}

func (hf *heapFile) Create() error {
	if err := hf.store.Create(true); err != nil {
		hf.logger.Error().Err(err).Msgf("failed to create heap file %s", hf.name)
		return err
	}
	hf.closed = false
	hf.last = 0
	if _, err := hf.GetNew(); err != nil {
		return err
	}
	hf.logger.Debug().Msgf("created heap file %s", hf.name)
	return nil
}

func (hf *heapFile) CreateIfNotExists() error {
	if err := hf.Open(); err == nil {
		return nil
	}
	return hf.Create()
}

func (hf *heapFile) Drop() error {
	if err := hf.Close(); err != nil {
		return err
	}
	if err := hf.store.Drop(); err != nil {
		hf.logger.Error().Err(err).Msgf("failed to drop heap file %s", hf.name)
		return err
	}
	hf.last = 0
	hf.logger.Debug().Msgf("dropped heap file %s", hf.name)
	return nil
}

func (hf *heapFile) Open() error {
	if !hf.closed {
		return nil
	}
	if err := hf.store.Open(); err != nil {
		return err
	}
	blocks, err := hf.store.Blocks()
	if err != nil {
		hf.store.Close()
		return err
	}
	hf.last = page.BlockID(blocks)
	hf.closed = false
	return nil
}

func (hf *heapFile) Close() error {
	if hf.closed {
		return nil
	}
	if err := hf.store.Close(); err != nil {
		return err
	}
	hf.closed = true
	return nil
}

func (hf *heapFile) GetNew() (page.Page, error) {
	if hf.closed {
		return nil, errors.Wrapf(store.ErrStoreFailure, "heap file %s is closed", hf.name)
	}
	buffer := make([]byte, page.BlockSize)
	id := hf.last + 1
	p, err := page.NewPage(id, buffer)
	if err != nil {
		return nil, err
	}

	// write the formatted block out and read it back so the store owns
	// the persistent image before the page is first used
	if err := hf.store.Put(uint32(id), p.Bytes()); err != nil {
		return nil, err
	}
	if err := hf.store.Get(uint32(id), buffer); err != nil {
		return nil, err
	}
	hf.last = id
	hf.logger.Debug().Msgf("allocated block %d in heap file %s", id, hf.name)
	return page.LoadPage(id, buffer)
}

func (hf *heapFile) Get(id page.BlockID) (page.Page, error) {
	if hf.closed {
		return nil, errors.Wrapf(store.ErrStoreFailure, "heap file %s is closed", hf.name)
	}
	if id == 0 || id > hf.last {
		return nil, errors.Wrapf(ErrInvalidBlock, "block %d of %s, last is %d", id, hf.name, hf.last)
	}
	buffer := make([]byte, page.BlockSize)
	if err := hf.store.Get(uint32(id), buffer); err != nil {
		return nil, err
	}
	return page.LoadPage(id, buffer)
}

func (hf *heapFile) Put(p page.Page) error {
	if hf.closed {
		return errors.Wrapf(store.ErrStoreFailure, "heap file %s is closed", hf.name)
	}
	return hf.store.Put(uint32(p.ID()), p.Bytes())
}

func (hf *heapFile) BlockIDs() ([]page.BlockID, error) {
	if hf.closed {
		return nil, errors.Wrapf(store.ErrStoreFailure, "heap file %s is closed", hf.name)
	}
	ids := make([]page.BlockID, 0, hf.last)
	for id := page.BlockID(1); id <= hf.last; id++ {
		ids = append(ids, id)
	}
	return ids, nil
}

func (hf *heapFile) Last() page.BlockID {
	return hf.last
}
