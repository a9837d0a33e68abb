package domain

// Node represents a participant on the Chord ring.
type Node struct {
	ID   ID     // identifier in the 2^m identifier space
	Addr string // network address, e.g. "127.0.0.1:5000"
}
