// Package merger implements lazy pairwise merge operations over posting
// cursors: intersection, union and difference. Each operation consumes two
// ascending-by-DocID cursors and is itself a cursor, so Boolean expressions
// compose by chaining calls. Nothing is materialized; every posting is
// pulled on demand and each input is read exactly once.
package merger

import "github.com/quorumsearch/quorumsearch/internal/indexer/index"

// Combiner folds the two term frequencies observed for one document id
// present in both inputs of a merge.
type Combiner func(a, b uint32) uint32

// Sum is the default frequency combiner.
func Sum(a, b uint32) uint32 { return a + b }

// Intersect returns a cursor over the ids present in both a and b. Each
// emitted posting carries the combined frequency of its two contributors.
// Cost is O(|a|+|b|); the scan stops as soon as either input exhausts.
func Intersect(a, b index.Cursor) index.Cursor {
	return IntersectWith(a, b, Sum)
}

// IntersectWith is Intersect with an explicit frequency combiner.
func IntersectWith(a, b index.Cursor, combine Combiner) index.Cursor {
	return &intersection{a: a, b: b, combine: combine}
}

type intersection struct {
	a, b    index.Cursor
	combine Combiner
	cur     index.Posting
	done    bool
	err     error
}

func (it *intersection) Next() (bool, error) {
	if it.done {
		return false, it.err
	}
	// Both previous heads were consumed by the last emission (or this is
	// the first call), so pull one posting from each side before walking.
	pa, ok, err := pull(it.a)
	if err != nil || !ok {
		return it.finish(err)
	}
	pb, ok, err := pull(it.b)
	if err != nil || !ok {
		return it.finish(err)
	}
	for {
		switch {
		case pa.DocID == pb.DocID:
			it.cur = index.Posting{DocID: pa.DocID, Frequency: it.combine(pa.Frequency, pb.Frequency)}
			return true, nil
		case pa.DocID < pb.DocID:
			pa, ok, err = pull(it.a)
		default:
			pb, ok, err = pull(it.b)
		}
		if err != nil || !ok {
			return it.finish(err)
		}
	}
}

func (it *intersection) Posting() index.Posting { return it.cur }

func (it *intersection) finish(err error) (bool, error) {
	it.done = true
	it.err = err
	return false, err
}

// Union returns a cursor over the ids present in either a or b. Ids unique
// to one side pass through unchanged; shared ids are emitted once with the
// combined frequency. After one side exhausts, the remainder of the other
// passes through verbatim. Cost is O(|a|+|b|).
func Union(a, b index.Cursor) index.Cursor {
	return UnionWith(a, b, Sum)
}

// UnionWith is Union with an explicit frequency combiner.
func UnionWith(a, b index.Cursor, combine Combiner) index.Cursor {
	return &union{a: a, b: b, combine: combine}
}

type union struct {
	a, b         index.Cursor
	combine      Combiner
	headA, headB index.Posting
	holdA, holdB bool
	primed       bool
	cur          index.Posting
	done         bool
	err          error
}

func (u *union) Next() (bool, error) {
	if u.done {
		return false, u.err
	}
	if !u.primed {
		u.primed = true
		if err := u.refillA(); err != nil {
			return u.finish(err)
		}
		if err := u.refillB(); err != nil {
			return u.finish(err)
		}
	}
	switch {
	case u.holdA && u.holdB && u.headA.DocID == u.headB.DocID:
		u.cur = index.Posting{DocID: u.headA.DocID, Frequency: u.combine(u.headA.Frequency, u.headB.Frequency)}
		if err := u.refillA(); err != nil {
			return u.finish(err)
		}
		if err := u.refillB(); err != nil {
			return u.finish(err)
		}
	case u.holdA && (!u.holdB || u.headA.DocID < u.headB.DocID):
		u.cur = u.headA
		if err := u.refillA(); err != nil {
			return u.finish(err)
		}
	case u.holdB:
		u.cur = u.headB
		if err := u.refillB(); err != nil {
			return u.finish(err)
		}
	default:
		return u.finish(nil)
	}
	return true, nil
}

func (u *union) Posting() index.Posting { return u.cur }

func (u *union) refillA() error {
	p, ok, err := pull(u.a)
	if err != nil {
		return err
	}
	u.headA, u.holdA = p, ok
	return nil
}

func (u *union) refillB() error {
	p, ok, err := pull(u.b)
	if err != nil {
		return err
	}
	u.headB, u.holdB = p, ok
	return nil
}

func (u *union) finish(err error) (bool, error) {
	u.done = true
	u.err = err
	return false, err
}

// Difference returns a cursor over a's postings whose id does not occur in
// b, emitted unchanged. After b exhausts, the remainder of a passes through.
// Cost is O(|a|+|b|).
func Difference(a, b index.Cursor) index.Cursor {
	return &difference{a: a, b: b}
}

type difference struct {
	a, b   index.Cursor
	headB  index.Posting
	holdB  bool
	primed bool
	cur    index.Posting
	done   bool
	err    error
}

func (d *difference) Next() (bool, error) {
	if d.done {
		return false, d.err
	}
	if !d.primed {
		d.primed = true
		if err := d.refillB(); err != nil {
			return d.finish(err)
		}
	}
	for {
		pa, ok, err := pull(d.a)
		if err != nil || !ok {
			return d.finish(err)
		}
		// Catch b up to a's head; b ids below it exclude nothing.
		for d.holdB && d.headB.DocID < pa.DocID {
			if err := d.refillB(); err != nil {
				return d.finish(err)
			}
		}
		if d.holdB && d.headB.DocID == pa.DocID {
			if err := d.refillB(); err != nil {
				return d.finish(err)
			}
			continue
		}
		d.cur = pa
		return true, nil
	}
}

func (d *difference) Posting() index.Posting { return d.cur }

func (d *difference) refillB() error {
	p, ok, err := pull(d.b)
	if err != nil {
		return err
	}
	d.headB, d.holdB = p, ok
	return nil
}

func (d *difference) finish(err error) (bool, error) {
	d.done = true
	d.err = err
	return false, err
}

func pull(c index.Cursor) (index.Posting, bool, error) {
	ok, err := c.Next()
	if err != nil || !ok {
		return index.Posting{}, false, err
	}
	return c.Posting(), true, nil
}

// Collect drains a cursor into a posting list. Intended for tests and small
// expressions; production paths consume cursors lazily.
func Collect(c index.Cursor) (index.PostingList, error) {
	var list index.PostingList
	for {
		ok, err := c.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return list, nil
		}
		list = append(list, c.Posting())
	}
}
