package sched

import "github.com/emirpasic/gods/trees/redblacktree"

// priorityIndex orders the active task slots by priority, highest first.
// The selection walk reads it on every pass; it is rebuilt only on
// registration and removal.
type priorityIndex struct {
	tree *redblacktree.Tree
	ids  []TaskID // cached walk order, highest priority first
}

// indexKey is used as a key in the red-black tree.
type indexKey struct {
	priority uint8
	id       TaskID
}

// cmpIndexKey orders by priority number, then slot, so 0 comes first.
func cmpIndexKey(a, b any) int {
	ka, kb := a.(indexKey), b.(indexKey)
	switch {
	case ka.priority < kb.priority:
		return -1
	case ka.priority > kb.priority:
		return 1
	case ka.id < kb.id:
		return -1
	case ka.id > kb.id:
		return 1
	default:
		return 0
	}
}

func newPriorityIndex(capacity int) *priorityIndex {
	return &priorityIndex{
		tree: redblacktree.NewWith(cmpIndexKey),
		ids:  make([]TaskID, 0, capacity),
	}
}

func (p *priorityIndex) insert(priority uint8, id TaskID) {
	p.tree.Put(indexKey{priority, id}, id)
	p.refresh()
}

func (p *priorityIndex) remove(priority uint8, id TaskID) {
	p.tree.Remove(indexKey{priority, id})
	p.refresh()
}

func (p *priorityIndex) refresh() {
	p.ids = p.ids[:0]
	it := p.tree.Iterator()
	for it.Next() {
		p.ids = append(p.ids, it.Value().(TaskID))
	}
}

// order returns the slots highest priority first. The slice is reused, so
// callers that may mutate the index while walking must copy it.
func (p *priorityIndex) order() []TaskID { return p.ids }
