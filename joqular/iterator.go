package joqular

// Iterator walks the entries of a range scan in key order.
//
//	it, err := src.GetRange(start, end)
//	if err != nil { ... }
//	defer it.Close()
//	for it.Next() {
//	    e := it.Entry()
//	}
//	if err := it.Err(); err != nil { ... }
type Iterator interface {
	Next() bool
	Entry() Entry
	Err() error
	Close() error
}

// SliceIterator iterates over a fixed list of entries.
type SliceIterator struct {
	entries []Entry
	pos     int
}

// NewSliceIterator returns an iterator over entries.
func NewSliceIterator(entries []Entry) *SliceIterator {
	return &SliceIterator{entries: entries, pos: -1}
}

func (it *SliceIterator) Next() bool {
	if it.pos+1 >= len(it.entries) {
		it.pos = len(it.entries)
		return false
	}
	it.pos++
	return true
}

func (it *SliceIterator) Entry() Entry {
	if it.pos < 0 || it.pos >= len(it.entries) {
		return Entry{}
	}
	return it.entries[it.pos]
}

func (it *SliceIterator) Err() error { return nil }

func (it *SliceIterator) Close() error {
	it.pos = len(it.entries)
	return nil
}
