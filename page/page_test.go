package page

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPageOperations(t *testing.T) {

	t.Run("Test fresh page header", func(t *testing.T) {
		p, err := NewPage(1, make([]byte, BlockSize))
		require.Nil(t, err)

		sp := p.(*slottedPage)
		assert.Equal(t, uint16(0), sp.numRecords)
		assert.Equal(t, uint16(BlockSize-1), sp.endFree)
		assert.Empty(t, p.IDs())
	})

	t.Run("Test add and get round trip", func(t *testing.T) {
		p, err := NewPage(1, make([]byte, BlockSize))
		require.Nil(t, err)

		id, err := p.Add([]byte("Hello!"))
		require.Nil(t, err)
		assert.Equal(t, RecordID(1), id)

		data, err := p.Get(id)
		require.Nil(t, err)
		assert.Equal(t, []byte("Hello!"), data)

		sp := p.(*slottedPage)
		assert.Equal(t, uint16(1), sp.numRecords)
		assert.Equal(t, uint16(BlockSize-1-6), sp.endFree)
	})

	t.Run("Test ids are dense and ascending", func(t *testing.T) {
		p, err := NewPage(1, make([]byte, BlockSize))
		require.Nil(t, err)

		for i := 0; i < 5; i++ {
			id, err := p.Add([]byte{byte('a' + i)})
			require.Nil(t, err)
			assert.Equal(t, RecordID(i+1), id)
		}
		assert.Equal(t, []RecordID{1, 2, 3, 4, 5}, p.IDs())
	})

	t.Run("Test has_room is monotonic", func(t *testing.T) {
		p, err := NewPage(1, make([]byte, BlockSize))
		require.Nil(t, err)

		largest := -1
		for size := 0; size < BlockSize; size++ {
			if p.HasRoom(size) {
				assert.Equal(t, largest, size-1, "has_room must not recover for a larger size")
				largest = size
			}
		}
		assert.Equal(t, BlockSize-1-2*slotSize, largest)
	})

	t.Run("Test add fails with no room", func(t *testing.T) {
		p, err := NewPage(1, make([]byte, BlockSize))
		require.Nil(t, err)

		_, err = p.Add(make([]byte, BlockSize))
		assert.ErrorIs(t, err, ErrNoRoom)

		// fill the block, then one byte too many
		_, err = p.Add(make([]byte, BlockSize-1-2*slotSize))
		require.Nil(t, err)
		_, err = p.Add([]byte{0})
		assert.ErrorIs(t, err, ErrNoRoom)
	})

	t.Run("Test del tombstones and slides", func(t *testing.T) {
		p, err := NewPage(1, make([]byte, BlockSize))
		require.Nil(t, err)

		id1, _ := p.Add([]byte("aaaa"))
		id2, _ := p.Add([]byte("bbbbbb"))
		id3, _ := p.Add([]byte("cc"))

		require.Nil(t, p.Del(id2))
		assert.Equal(t, []RecordID{id1, id3}, p.IDs())

		data, err := p.Get(id2)
		require.Nil(t, err)
		assert.Nil(t, data)

		// neighbours survive the slide
		data, err = p.Get(id1)
		require.Nil(t, err)
		assert.Equal(t, []byte("aaaa"), data)
		data, err = p.Get(id3)
		require.Nil(t, err)
		assert.Equal(t, []byte("cc"), data)

		// the freed bytes are reclaimed
		sp := p.(*slottedPage)
		assert.Equal(t, uint16(BlockSize-1-4-2), sp.endFree)

		// id is retired, the next add gets a fresh one
		id4, err := p.Add([]byte("dddd"))
		require.Nil(t, err)
		assert.Equal(t, RecordID(4), id4)
		assert.Equal(t, []RecordID{id1, id3, id4}, p.IDs())

		assert.ErrorIs(t, p.Del(id2), ErrInvalidRecord)
	})

	t.Run("Test put grow and shrink", func(t *testing.T) {
		p, err := NewPage(1, make([]byte, BlockSize))
		require.Nil(t, err)

		id1, _ := p.Add([]byte("first"))
		id2, _ := p.Add([]byte("second"))
		id3, _ := p.Add([]byte("third"))

		require.Nil(t, p.Put(id2, []byte("a much longer second record")))
		data, _ := p.Get(id2)
		assert.Equal(t, []byte("a much longer second record"), data)

		require.Nil(t, p.Put(id2, []byte("2nd")))
		data, _ = p.Get(id2)
		assert.Equal(t, []byte("2nd"), data)

		// unaffected records still round trip after both slides
		data, _ = p.Get(id1)
		assert.Equal(t, []byte("first"), data)
		data, _ = p.Get(id3)
		assert.Equal(t, []byte("third"), data)
	})

	t.Run("Test put fails when the growth cannot fit", func(t *testing.T) {
		p, err := NewPage(1, make([]byte, BlockSize))
		require.Nil(t, err)

		id, _ := p.Add([]byte("tiny"))
		err = p.Put(id, make([]byte, BlockSize))
		assert.ErrorIs(t, err, ErrNoRoom)

		// old record is retained
		data, _ := p.Get(id)
		assert.Equal(t, []byte("tiny"), data)
	})

	t.Run("Test operations on unassigned ids", func(t *testing.T) {
		p, err := NewPage(1, make([]byte, BlockSize))
		require.Nil(t, err)

		_, err = p.Get(1)
		assert.ErrorIs(t, err, ErrInvalidRecord)
		assert.ErrorIs(t, p.Put(7, []byte("x")), ErrInvalidRecord)
		assert.ErrorIs(t, p.Del(0), ErrInvalidRecord)
	})

	t.Run("Test block image round trips through load", func(t *testing.T) {
		p, err := NewPage(9, make([]byte, BlockSize))
		require.Nil(t, err)

		id1, _ := p.Add([]byte("persisted"))
		id2, _ := p.Add([]byte("records"))
		require.Nil(t, p.Del(id1))

		image := make([]byte, BlockSize)
		copy(image, p.Bytes())

		loaded, err := LoadPage(9, image)
		require.Nil(t, err)
		assert.Equal(t, BlockID(9), loaded.ID())
		assert.Equal(t, []RecordID{id2}, loaded.IDs())

		data, err := loaded.Get(id2)
		require.Nil(t, err)
		assert.Equal(t, []byte("records"), data)

		sp := p.(*slottedPage)
		lsp := loaded.(*slottedPage)
		assert.Equal(t, sp.numRecords, lsp.numRecords)
		assert.Equal(t, sp.endFree, lsp.endFree)
	})

	t.Run("Test load rejects a corrupt header", func(t *testing.T) {
		buffer := make([]byte, BlockSize)
		buffer[0] = 0xff
		buffer[1] = 0xff
		_, err := LoadPage(1, buffer)
		assert.NotNil(t, err)

		_, err = LoadPage(1, make([]byte, 16))
		assert.NotNil(t, err)
	})
}
