package kv

import (
	"fmt"

	"github.com/datazip-inc/kvrdd/pkg/rdd"
)

// rangePartition reads index values in [from, to]
type rangePartition struct {
	idx      int
	index    string
	from, to int64
}

func (p rangePartition) Index() int {
	return p.idx
}

func (p rangePartition) String() string {
	return fmt.Sprintf("%d:%s[%d..%d]", p.idx, p.index, p.from, p.to)
}

// keysPartition reads an explicit list of keys
type keysPartition struct {
	idx  int
	keys []string
}

func (p keysPartition) Index() int {
	return p.idx
}

func (p keysPartition) String() string {
	return fmt.Sprintf("%d:keys[%d]", p.idx, len(p.keys))
}

// splitRange divides [from, to] into at most n contiguous, non overlapping
// sub-ranges of near equal width. It works on the unsigned distance so the
// full int64 domain does not overflow.
func splitRange(index string, from, to int64, n int) []rdd.Partition {
	if from > to {
		return nil
	}
	if n <= 0 {
		n = 1
	}

	// width is the number of values minus one
	width := uint64(to) - uint64(from)
	if width < uint64(n-1) {
		n = int(width) + 1
	}
	if n == 1 {
		return []rdd.Partition{rangePartition{idx: 0, index: index, from: from, to: to}}
	}

	quotient, remainder := width/uint64(n), width%uint64(n)
	size, extra := quotient, remainder+1
	if extra == uint64(n) {
		size, extra = quotient+1, 0
	}

	partitions := make([]rdd.Partition, 0, n)
	lo := from
	for i := 0; i < n; i++ {
		span := size
		if uint64(i) < extra {
			span++
		}
		hi := int64(uint64(lo) + span - 1)
		partitions = append(partitions, rangePartition{idx: i, index: index, from: lo, to: hi})
		if i < n-1 {
			lo = hi + 1
		}
	}
	return partitions
}

func keyPartitions(chunks [][]string) []rdd.Partition {
	partitions := make([]rdd.Partition, 0, len(chunks))
	for idx, keys := range chunks {
		partitions = append(partitions, keysPartition{idx: idx, keys: keys})
	}
	return partitions
}
