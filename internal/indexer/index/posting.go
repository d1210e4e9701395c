package index

// Posting records one term's occurrence count in one document.
type Posting struct {
	DocID     uint32
	Frequency uint32
}

// PostingList is an in-memory posting sequence, ascending by DocID with no
// duplicate ids.
type PostingList []Posting

// Cursor is a read position within a posting sequence.
//
// Next advances the cursor and reports whether it now holds a posting; false
// means the sequence is exhausted. A non-nil error aborts the scan. Both
// outcomes are sticky: once Next has reported exhaustion or an error, every
// later call reports the same. Posting is valid only after a Next call that
// returned true.
//
// Sequences are single-pass and strictly increasing by DocID; producers
// guarantee the ordering, consumers rely on it without re-checking.
type Cursor interface {
	Next() (bool, error)
	Posting() Posting
}

// SliceCursor walks a PostingList. The list must not be mutated while the
// cursor is live; the index hands out copy-on-write snapshots for this.
type SliceCursor struct {
	list PostingList
	pos  int
}

func NewSliceCursor(list PostingList) *SliceCursor {
	return &SliceCursor{list: list, pos: -1}
}

func (c *SliceCursor) Next() (bool, error) {
	if c.pos+1 >= len(c.list) {
		c.pos = len(c.list)
		return false, nil
	}
	c.pos++
	return true, nil
}

func (c *SliceCursor) Posting() Posting {
	return c.list[c.pos]
}

type emptyCursor struct{}

func (emptyCursor) Next() (bool, error) { return false, nil }
func (emptyCursor) Posting() Posting    { return Posting{} }

// Empty returns an exhausted-from-birth cursor, used for terms absent from
// the index.
func Empty() Cursor {
	return emptyCursor{}
}
