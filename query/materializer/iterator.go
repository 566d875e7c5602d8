package materializer

import (
	"context"
	"reflect"
)

// Iterator is one lazy materialization pass. Identity-map state is scoped
// to the iterator and discarded when the pass fails or is closed.
type Iterator struct {
	ctx    context.Context
	m      *Materializer
	cursor RowCursor

	identity    map[identityKey]reflect.Value
	collections map[string]bool
	emitted     map[string]bool

	// Group holdback for collection-bearing mappings: a result is only
	// emitted once the next row proves its owner group ended.
	pendingSig    string
	pendingResult Result
	havePending   bool

	current Result
	err     error
	done    bool
}

// Next advances to the next materialized result.
func (it *Iterator) Next() bool {
	if it.err != nil || it.done {
		return false
	}

	for {
		if err := it.ctx.Err(); err != nil {
			it.fail(&CancelledError{Err: err})
			return false
		}

		if !it.cursor.Next() {
			if err := it.cursor.Err(); err != nil {
				it.fail(err)
				return false
			}
			it.done = true
			it.cursor.Close()
			if it.havePending {
				it.havePending = false
				it.emitted[it.pendingSig] = true
				it.current = it.pendingResult
				return true
			}
			return false
		}

		row, err := it.cursor.Row()
		if err != nil {
			it.fail(err)
			return false
		}
		sig, result, err := it.processRow(row)
		if err != nil {
			it.fail(err)
			return false
		}

		switch {
		case it.m.mapping.HasCollections():
			if it.havePending {
				if sig == it.pendingSig {
					// Same owner group; the row's elements were folded in.
					continue
				}
				if it.emitted[sig] {
					it.fail(&FragmentedCollectionError{OwnerKey: sig})
					return false
				}
				it.emitted[it.pendingSig] = true
				it.current = it.pendingResult
				it.pendingSig, it.pendingResult = sig, result
				return true
			}
			if it.emitted[sig] {
				it.fail(&FragmentedCollectionError{OwnerKey: sig})
				return false
			}
			it.pendingSig, it.pendingResult, it.havePending = sig, result, true

		case it.m.mapping.HasScalars():
			// Scalar-bearing mappings are per-row; no dedup applies.
			it.current = result
			return true

		default:
			if it.emitted[sig] {
				continue
			}
			it.emitted[sig] = true
			it.current = result
			return true
		}
	}
}

// Result returns the current materialized result.
func (it *Iterator) Result() Result { return it.current }

// Err returns the error that terminated the pass, if any.
func (it *Iterator) Err() error { return it.err }

// Close releases the cursor early. Safe to call more than once.
func (it *Iterator) Close() error {
	if it.done {
		return nil
	}
	it.done = true
	it.identity = nil
	return it.cursor.Close()
}

// fail aborts the pass, discards identity state and releases the cursor.
func (it *Iterator) fail(err error) {
	it.err = err
	it.done = true
	it.identity = nil
	it.havePending = false
	it.cursor.Close()
}
