package relation

import (
	"fmt"

	"github.com/phuslu/log"
	"github.com/pkg/errors"

	"github.com/thoresonjd/5300-Dolphin/heap"
	"github.com/thoresonjd/5300-Dolphin/page"
	"github.com/thoresonjd/5300-Dolphin/store"
)

var ErrMissingColumn = fmt.Errorf("missing column")
var ErrUnsupported = fmt.Errorf("unsupported operation")

// Relation is the typed, handle-addressed row API over one heap file.
type Relation interface {
	Create() error
	CreateIfNotExists() error
	Drop() error
	Open() error
	Close() error

	Insert(row Row) (Handle, error)
	Update(handle Handle, newValues Row) error
	Del(handle Handle) error
	// Select lists the handle of every live row, blocks ascending and
	// records ascending within a block.
	Select() ([]Handle, error)
	// SelectWhere rejects any non-empty predicate, filtering belongs to
	// the query layer above.
	SelectWhere(where Row) ([]Handle, error)
	Project(handle Handle) (Row, error)
	// ProjectColumns narrows the row to the named columns, keeping the
	// declared schema's column set semantics.
	ProjectColumns(handle Handle, columnNames []string) (Row, error)

	Name() string
	Schema() Schema
}

type heapTable struct {
	name   string
	schema Schema
	file   heap.HeapFile
	logger log.Logger
}

func NewHeapTable(logger log.Logger, env *store.Env, name string, schema Schema) Relation {
	return &heapTable{
		name:   name,
		schema: schema,
		file:   heap.NewHeapFile(logger, env, name),
		logger: logger,
	}
}

func (ht *heapTable) Name() string {
	return ht.name
}

func (ht *heapTable) Schema() Schema {
	return ht.schema
}

func (ht *heapTable) Create() error {
	return ht.file.Create()
}

func (ht *heapTable) CreateIfNotExists() error {
	return ht.file.CreateIfNotExists()
}

func (ht *heapTable) Drop() error {
	return ht.file.Drop()
}

func (ht *heapTable) Open() error {
	return ht.file.Open()
}

func (ht *heapTable) Close() error {
	return ht.file.Close()
}

func (ht *heapTable) Insert(row Row) (Handle, error) {
	if err := ht.file.Open(); err != nil {
		return Handle{}, err
	}
	full, err := ht.validate(row)
	if err != nil {
		return Handle{}, err
	}
	return ht.append(full)
}

func (ht *heapTable) Update(handle Handle, newValues Row) error {
	row, err := ht.Project(handle)
	if err != nil {
		return err
	}
	for name, value := range newValues {
		row[name] = value
	}
	full, err := ht.validate(row)
	if err != nil {
		return err
	}
	data, err := ht.marshal(full)
	if err != nil {
		return err
	}
	p, err := ht.file.Get(handle.Block)
	if err != nil {
		return err
	}
	if err := p.Put(handle.Record, data); err != nil {
		return err
	}
	return ht.file.Put(p)
}

func (ht *heapTable) Del(handle Handle) error {
	p, err := ht.file.Get(handle.Block)
	if err != nil {
		return err
	}
	if err := p.Del(handle.Record); err != nil {
		return err
	}
	return ht.file.Put(p)
}

func (ht *heapTable) Select() ([]Handle, error) {
	blockIDs, err := ht.file.BlockIDs()
	if err != nil {
		return nil, err
	}
	handles := make([]Handle, 0)
	for _, blockID := range blockIDs {
		p, err := ht.file.Get(blockID)
		if err != nil {
			return nil, err
		}
		for _, recordID := range p.IDs() {
			handles = append(handles, Handle{Block: blockID, Record: recordID})
		}
	}
	return handles, nil
}

func (ht *heapTable) SelectWhere(where Row) ([]Handle, error) {
	if len(where) != 0 {
		return nil, errors.Wrap(ErrUnsupported, "predicate evaluation belongs to the query layer")
	}
	return ht.Select()
}

func (ht *heapTable) Project(handle Handle) (Row, error) {
	return ht.ProjectColumns(handle, nil)
}

func (ht *heapTable) ProjectColumns(handle Handle, columnNames []string) (Row, error) {
	p, err := ht.file.Get(handle.Block)
	if err != nil {
		return nil, err
	}
	data, err := p.Get(handle.Record)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, errors.Wrapf(page.ErrInvalidRecord, "record %d in block %d is deleted", handle.Record, handle.Block)
	}
	row, err := ht.unmarshal(data)
	if err != nil {
		return nil, err
	}
	if columnNames == nil {
		return row, nil
	}

	requested := make(map[string]bool, len(columnNames))
	for _, name := range columnNames {
		requested[name] = true
	}
	result := make(Row, len(columnNames))
	for _, column := range ht.schema {
		if requested[column.Name] {
			result[column.Name] = row[column.Name]
		}
	}
	return result, nil
}

// validate fills a complete row from the input. Every declared column
// must be present, columns the schema does not know are ignored.
func (ht *heapTable) validate(row Row) (Row, error) {
	full := make(Row, len(ht.schema))
	for _, column := range ht.schema {
		value, ok := row[column.Name]
		if !ok {
			return nil, errors.Wrapf(ErrMissingColumn, "column %s of table %s", column.Name, ht.name)
		}
		full[column.Name] = value
	}
	return full, nil
}

// append adds the marshaled row to the last block. A full block gets
// exactly one retry against a freshly allocated block, a second
// failure there means the row can never fit and is fatal.
func (ht *heapTable) append(row Row) (Handle, error) {
	data, err := ht.marshal(row)
	if err != nil {
		return Handle{}, err
	}
	p, err := ht.file.Get(ht.file.Last())
	if err != nil {
		return Handle{}, err
	}
	id, err := p.Add(data)
	if errors.Is(err, page.ErrNoRoom) {
		ht.logger.Debug().Msgf("block %d of table %s is full, allocating a new one", p.ID(), ht.name)
		p, err = ht.file.GetNew()
		if err != nil {
			return Handle{}, err
		}
		id, err = p.Add(data)
		if err != nil {
			ht.logger.Error().Err(err).Msgf("record of %d bytes cannot fit in an empty block of table %s", len(data), ht.name)
			return Handle{}, errors.Wrapf(err, "record of %d bytes cannot fit in an empty block", len(data))
		}
	} else if err != nil {
		return Handle{}, err
	}
	if err := ht.file.Put(p); err != nil {
		return Handle{}, err
	}
	return Handle{Block: p.ID(), Record: id}, nil
}
