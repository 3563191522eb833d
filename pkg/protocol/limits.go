package protocol

// Allocation limits guard the decoder against hostile length prefixes.
const (
	// DefaultMaxAllocation caps any single string or byte slice (4MB).
	DefaultMaxAllocation = 4 * 1024 * 1024

	// MaxFrameSize caps a frame payload (16MB). A mutation batch for a
	// full page render stays well below this.
	MaxFrameSize = 16 * 1024 * 1024

	// MaxCollectionCount caps counts read from the wire: mutations per
	// batch, children per AppendChildren, form fields per submit.
	MaxCollectionCount = 100_000
)
