// Package codec defines the byte-exact serialization contract and the
// total-order comparator contract that the B+Tree core consumes (spec §6).
// The core never guesses at a type's wire format; every tree is opened
// with an explicit KeyCodec/ValueCodec/Comparator triple.
package codec

import "io"

// Comparator yields a total order over K: negative if a < b, zero if
// a == b, positive if a > b. Must be consistent with
// compare(a, b) == compare(Deserialize(Serialize(a)), Deserialize(Serialize(b))).
type Comparator[K any] func(a, b K) int

// KeyCodec serializes and deserializes keys to/from the byte-exact wire
// format the record manager persists.
type KeyCodec[K any] interface {
	SerializeKey(k K) []byte
	DeserializeKey(r io.Reader) (K, error)
	// Name is the stable identifier persisted in a tree header record
	// (spec §4.2's keySerializerFQCN field); database.OpenTable compares
	// it with the stored name when a tree is reopened.
	Name() string
}

// ValueCodec mirrors KeyCodec for values.
type ValueCodec[V any] interface {
	SerializeValue(v V) []byte
	DeserializeValue(r io.Reader) (V, error)
	Name() string
}
