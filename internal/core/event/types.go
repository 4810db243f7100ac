package event

// Population events published by a grid refresh. Keys are carried as plain
// integer pairs so this package stays free of grid imports.

type NodeAdded struct {
	X, Y int32
}

type NodeEvicted struct {
	X, Y int32
}

type PartitionCreated struct {
	Key uint64
}

type PartitionRemoved struct {
	Key uint64
}

// Refreshed is emitted once per completed refresh.
type Refreshed struct {
	Nodes      int
	Partitions int
	Changed    bool
}
