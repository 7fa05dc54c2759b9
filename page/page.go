package page

import (
	"encoding/binary"
	"fmt"

	"github.com/pkg/errors"
)

/*
Slotted block
┌──────────────────────────────────────────────────────────────┐
| numRecords (2byte) | endFree (2byte)                         |
|──────────────────────────────────────────────────────────────|
| size 1 (2byte) | location 1 (2byte)                          |
| ... one 4 byte slot per assigned record id ...               |
|──────────────────────── free space ──────────────────────────|
| record payloads, growing downward from the last byte         |
└──────────────────────────────────────────────────────────────┘

Record ids are handed out sequentially starting at 1 and never
reused. Slot 0 is the block header itself. A slot with location 0
is a tombstone. endFree always points one byte below the lowest
occupied payload offset.
*/

const BlockSize = 4096

const slotSize = 4
const headerSize = slotSize

// MaxRecordSize is the largest payload a block can ever hold: the
// block minus the header minus one slot entry.
const MaxRecordSize = BlockSize - headerSize - slotSize

type BlockID uint32
type RecordID uint16

var ErrNoRoom = fmt.Errorf("not enough room in block")
var ErrInvalidRecord = fmt.Errorf("no such record in block")

// Page manages one block's slot directory and payload region for the
// duration of a single fetch-mutate-write cycle.
type Page interface {
	// Add stores a new record and returns its id.
	Add(data []byte) (RecordID, error)
	// Get returns a view of the record's payload, or nil for a tombstone.
	Get(id RecordID) ([]byte, error)
	// Put replaces the record's payload, sliding neighbours as needed.
	Put(id RecordID, data []byte) error
	// Del tombstones the record and reclaims its payload bytes.
	Del(id RecordID) error
	// IDs lists the live record ids in ascending order.
	IDs() []RecordID
	// HasRoom reports whether a record of the given size plus its slot fits.
	HasRoom(size int) bool

	ID() BlockID
	// Bytes exposes the raw block image for write-back.
	Bytes() []byte
}

type slottedPage struct {
	id         BlockID
	buffer     []byte
	numRecords uint16
	endFree    uint16
}

// NewPage formats buffer as a fresh empty block.
func NewPage(id BlockID, buffer []byte) (Page, error) {
	if len(buffer) != BlockSize {
		return nil, fmt.Errorf("block buffer must be %d bytes, got %d", BlockSize, len(buffer))
	}
	sp := &slottedPage{
		id:         id,
		buffer:     buffer,
		numRecords: 0,
		endFree:    BlockSize - 1,
	}
	sp.putHeader()
	return sp, nil
}

// LoadPage wraps buffer as an existing block, parsing its header.
func LoadPage(id BlockID, buffer []byte) (Page, error) {
	if len(buffer) != BlockSize {
		return nil, fmt.Errorf("block buffer must be %d bytes, got %d", BlockSize, len(buffer))
	}
	sp := &slottedPage{id: id, buffer: buffer}
	sp.numRecords = sp.getN(0)
	sp.endFree = sp.getN(2)
	if int(sp.endFree) >= BlockSize || int(sp.numRecords)*slotSize+headerSize > int(sp.endFree)+1 {
		return nil, fmt.Errorf("corrupt block %d: %d records, end of free space %d", id, sp.numRecords, sp.endFree)
	}
	return sp, nil
}

func (sp *slottedPage) ID() BlockID {
	return sp.id
}

func (sp *slottedPage) Bytes() []byte {
	return sp.buffer
}

func (sp *slottedPage) Add(data []byte) (RecordID, error) {
	if !sp.HasRoom(len(data)) {
		return 0, errors.Wrapf(ErrNoRoom, "record of %d bytes", len(data))
	}
	sp.numRecords++
	id := RecordID(sp.numRecords)
	size := uint16(len(data))
	sp.endFree -= size
	loc := sp.endFree + 1
	copy(sp.buffer[loc:int(loc)+int(size)], data)
	sp.putHeader()
	sp.putSlot(id, size, loc)
	return id, nil
}

func (sp *slottedPage) Get(id RecordID) ([]byte, error) {
	if err := sp.checkAssigned(id); err != nil {
		return nil, err
	}
	size, loc := sp.slot(id)
	if loc == 0 {
		return nil, nil
	}
	return sp.buffer[loc : int(loc)+int(size)], nil
}

func (sp *slottedPage) Put(id RecordID, data []byte) error {
	if err := sp.checkAssigned(id); err != nil {
		return err
	}
	size, loc := sp.slot(id)
	if loc == 0 {
		return errors.Wrapf(ErrInvalidRecord, "record %d is deleted", id)
	}
	newSize := len(data)
	if newSize > int(size) {
		extra := newSize - int(size)
		if !sp.HasRoom(extra) {
			return errors.Wrapf(ErrNoRoom, "grow record %d by %d bytes", id, extra)
		}
		sp.slide(loc, loc-uint16(extra))
		_, loc = sp.slot(id)
		copy(sp.buffer[loc:int(loc)+newSize], data)
	} else {
		copy(sp.buffer[loc:int(loc)+newSize], data)
		sp.slide(loc+uint16(newSize), loc+size)
		_, loc = sp.slot(id)
	}
	sp.putSlot(id, uint16(newSize), loc)
	return nil
}

func (sp *slottedPage) Del(id RecordID) error {
	if err := sp.checkAssigned(id); err != nil {
		return err
	}
	size, loc := sp.slot(id)
	if loc == 0 {
		return errors.Wrapf(ErrInvalidRecord, "record %d is already deleted", id)
	}
	sp.putSlot(id, 0, 0)
	sp.slide(loc, loc+size)
	return nil
}

func (sp *slottedPage) IDs() []RecordID {
	ids := make([]RecordID, 0, sp.numRecords)
	for id := RecordID(1); uint16(id) <= sp.numRecords; id++ {
		if _, loc := sp.slot(id); loc != 0 {
			ids = append(ids, id)
		}
	}
	return ids
}

func (sp *slottedPage) HasRoom(size int) bool {
	available := int(sp.endFree) - (int(sp.numRecords)+1)*slotSize
	return size+slotSize <= available
}

// slide moves the payload bytes below start by end-start and rewrites
// every affected slot. A negative shift compacts toward the slot
// directory and must already have been validated via HasRoom by the
// caller; a positive shift reclaims freed bytes and always succeeds.
func (sp *slottedPage) slide(start, end uint16) {
	shift := int(end) - int(start)
	if shift == 0 {
		return
	}

	low := int(sp.endFree) + 1
	if n := int(start) - low; n > 0 {
		copy(sp.buffer[low+shift:low+shift+n], sp.buffer[low:low+n])
	}

	for _, id := range sp.IDs() {
		size, loc := sp.slot(id)
		if loc <= start {
			sp.putSlot(id, size, uint16(int(loc)+shift))
		}
	}

	sp.endFree = uint16(int(sp.endFree) + shift)
	sp.putHeader()
}

func (sp *slottedPage) checkAssigned(id RecordID) error {
	if id == 0 || uint16(id) > sp.numRecords {
		return errors.Wrapf(ErrInvalidRecord, "record %d, block holds %d", id, sp.numRecords)
	}
	return nil
}

func (sp *slottedPage) slot(id RecordID) (size uint16, loc uint16) {
	return sp.getN(slotSize * int(id)), sp.getN(slotSize*int(id) + 2)
}

func (sp *slottedPage) putSlot(id RecordID, size uint16, loc uint16) {
	sp.putN(slotSize*int(id), size)
	sp.putN(slotSize*int(id)+2, loc)
}

func (sp *slottedPage) putHeader() {
	sp.putN(0, sp.numRecords)
	sp.putN(2, sp.endFree)
}

func (sp *slottedPage) getN(offset int) uint16 {
	return binary.BigEndian.Uint16(sp.buffer[offset : offset+2])
}

func (sp *slottedPage) putN(offset int, n uint16) {
	binary.BigEndian.PutUint16(sp.buffer[offset:offset+2], n)
}
