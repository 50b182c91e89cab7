package types

import "fmt"

type QueryKind string

const (
	QueryAllKind        QueryKind = "all"
	QueryBucketKeysKind QueryKind = "keys"
	Query2iRangeKind    QueryKind = "2i_range"
)

// Query describes which objects of a bucket a collection reads
type Query struct {
	Kind  QueryKind `json:"kind"`
	Index string    `json:"index,omitempty"`
	From  int64     `json:"from,omitempty"`
	To    int64     `json:"to,omitempty"`
	Keys  []string  `json:"keys,omitempty"`
}

func (q Query) String() string {
	switch q.Kind {
	case Query2iRangeKind:
		return fmt.Sprintf("%s[%s: %d..%d]", q.Kind, q.Index, q.From, q.To)
	case QueryBucketKeysKind:
		return fmt.Sprintf("%s[%d keys]", q.Kind, len(q.Keys))
	default:
		return string(QueryAllKind)
	}
}
