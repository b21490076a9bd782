package pipeline

import (
	"github.com/gundermanc/nanojit/src/nanojit/lir"
	"nikand.dev/go/heap"
)

// maxCSEEntriesPerClass bounds how many entries the CSE filter's single
// table keeps, across all access sets together, before evicting the
// oldest. Nothing in
// the distilled spec names a bound; a long-running JIT fed a large
// fragment otherwise grows these tables without limit (SPEC_FULL.md §2).
const maxCSEEntriesPerClass = 4096

// cseKey identifies a candidate common subexpression: its opcode, its
// operands' identities (pointer equality, since the arena guarantees
// that's sound), its immediate payload when the opcode is a literal,
// and its byte offset when the opcode is a load — without off, `ldi a
// 0` and `ldi a 4` would hash identically and incorrectly merge.
type cseKey struct {
	op         lir.Opcode
	typ        lir.Type
	o0, o1, o2 *lir.Node
	imm        uint64
	off        int32
}

type cseEntry struct {
	key cseKey
	n   *lir.Node
	seq uint64
}

// cseSink hash-maps (opcode, operands, immediate) to a prior node.
// Pure operations and loads both populate and consult the cache; every
// other non-pure operation (stores, calls, branches, guards) only
// busts it. A store (or an impure call) busts every cached load whose
// access set intersects its own, since it may have changed what that
// load would see. A label flushes the whole cache, since it delimits
// a basic block and CSE across blocks isn't sound without dominance
// reasoning this filter doesn't do (§4.3 item 3).
type cseSink struct {
	next Sink

	table map[cseKey]*lir.Node
	order heap.Heap[cseEntry] // oldest-first, for bounded eviction.
	seq   uint64
}

// NewCSE wraps next with the common-subexpression-elimination filter.
func NewCSE(next Sink) Sink {
	return &cseSink{
		next:  next,
		table: make(map[cseKey]*lir.Node),
		order: heap.Heap[cseEntry]{Less: func(d []cseEntry, i, j int) bool { return d[i].seq < d[j].seq }},
	}
}

func (s *cseSink) Emit(e lir.Emission) (*lir.Node, error) {
	if e.Op == lir.OpLabel {
		s.flush()
		return s.next.Emit(e)
	}

	if !e.Op.IsPure() && !isLoadOpcode(e.Op) {
		s.bust(e)
		return s.next.Emit(e)
	}

	key := cseKey{op: e.Op, typ: e.Type, imm: e.Imm, off: e.Offset}
	if len(e.Operands) > 0 {
		key.o0 = e.Operands[0]
	}
	if len(e.Operands) > 1 {
		key.o1 = e.Operands[1]
	}
	if len(e.Operands) > 2 {
		key.o2 = e.Operands[2]
	}

	if n, ok := s.table[key]; ok {
		return n, nil
	}

	n, err := s.next.Emit(e)
	if err != nil {
		return nil, err
	}

	s.insert(key, n)

	return n, nil
}

func isLoadOpcode(op lir.Opcode) bool {
	switch op {
	case lir.OpLdI, lir.OpLdQ, lir.OpLdD, lir.OpLdF, lir.OpLdF4, lir.OpLd2I:
		return true
	default:
		return false
	}
}

func (s *cseSink) insert(key cseKey, n *lir.Node) {
	s.seq++
	s.table[key] = n
	s.order.Push(cseEntry{key: key, n: n, seq: s.seq})

	for s.order.Len() > maxCSEEntriesPerClass {
		old := s.order.Pop()
		if s.table[old.key] == old.n {
			delete(s.table, old.key)
		}
	}
}

// bust evicts every cached pure load whose access set intersects e's,
// since a store (or an impure call) to an overlapping class may have
// changed what that load would see.
func (s *cseSink) bust(e lir.Emission) {
	if len(s.table) == 0 {
		return
	}

	access := e.Access
	if isCall(e.Op) && e.Call != nil {
		access = e.Call.Access
	}

	for k, n := range s.table {
		if isLoadOpcode(k.op) && access.Intersects(n.Access) {
			delete(s.table, k)
		}
	}
}

func (s *cseSink) flush() {
	s.table = make(map[cseKey]*lir.Node)
}
