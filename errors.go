// Error types that let a caller distinguish "this volume is not exFAT or is
// corrupt" from "the device failed" and from a misused API.

package exfat

import (
	"fmt"
)

// BootSectorInvariant identifies which boot-sector invariant a
// BootSectorValidationError reports.
type BootSectorInvariant int

const (
	// InvariantFilesystemName requires the magic string "EXFAT   ".
	InvariantFilesystemName BootSectorInvariant = iota

	// InvariantMustBeZero requires bytes [11, 64) to be zero.
	InvariantMustBeZero

	// InvariantFatOffset requires the FAT offset to be at least 24 sectors.
	InvariantFatOffset

	// InvariantFatRegionBounds requires all FATs to end at or before the
	// cluster heap.
	InvariantFatRegionBounds

	// InvariantClusterHeapBounds requires the cluster heap to end at or
	// before the end of the volume.
	InvariantClusterHeapBounds

	// InvariantBytesPerSectorShift requires a sector size between 512 and
	// 4096 bytes.
	InvariantBytesPerSectorShift

	// InvariantRootDirectoryCluster requires the root directory's first
	// cluster to be a valid cluster-heap index.
	InvariantRootDirectoryCluster

	// InvariantNumberOfFats requires one or two FATs.
	InvariantNumberOfFats

	// InvariantPercentInUse requires a percentage, or 0xff for unavailable.
	InvariantPercentInUse
)

// BootSectorValidationError describes one violated boot-sector invariant. A
// boot sector either is or is not valid; these errors are permanent.
type BootSectorValidationError struct {
	Invariant BootSectorInvariant
	Message   string

	// FoundBytes carries the offending raw data when the invariant concerns
	// a fixed byte pattern (currently only the filesystem-name magic).
	FoundBytes []byte
}

func (bsve *BootSectorValidationError) Error() string {
	return bsve.Message
}

// BootRegionLoadError reports which boot-region sub-structure could not be
// loaded.
type BootRegionLoadError struct {
	Structure string
	Cause     error
}

func (brle *BootRegionLoadError) Error() string {
	return fmt.Sprintf("boot-region structure [%s] could not be loaded: %s", brle.Structure, brle.Cause)
}

func (brle *BootRegionLoadError) Unwrap() error {
	return brle.Cause
}

// FatSizeError reports a caller-supplied FAT byte-count that is not a
// multiple of four. This is a contract violation by the caller, not an I/O
// condition, and the table is never silently truncated to fit.
type FatSizeError struct {
	ByteCount int
}

func (fse *FatSizeError) Error() string {
	return fmt.Sprintf("FAT byte-count is not a multiple of four: (%d)", fse.ByteCount)
}

// BadClusterError ends a cluster-chain traversal that reached a link to a
// cluster marked bad. LeadingCluster held the link; BadCluster is the
// cluster marked bad.
type BadClusterError struct {
	LeadingCluster uint32
	BadCluster     uint32
}

func (bce *BadClusterError) Error() string {
	return fmt.Sprintf("cluster (%d) links to bad cluster (%d)", bce.LeadingCluster, bce.BadCluster)
}

// InvalidChainLinkError ends a traversal that reached a FAT value which is
// neither a sentinel nor a valid cluster index, which indicates a truncated
// or corrupt chain.
type InvalidChainLinkError struct {
	LeadingCluster uint32
	Link           uint32
}

func (icle *InvalidChainLinkError) Error() string {
	return fmt.Sprintf("cluster (%d) links to (0x%08x), which is not a valid cluster address", icle.LeadingCluster, icle.Link)
}

// ChainTooLongError ends a traversal that has taken more steps than the
// cluster heap could possibly chain, which indicates a cycle in the FAT.
type ChainTooLongError struct {
	StartingCluster uint32
	Steps           uint32
}

func (ctle *ChainTooLongError) Error() string {
	return fmt.Sprintf("chain from cluster (%d) did not terminate after (%d) steps", ctle.StartingCluster, ctle.Steps)
}
