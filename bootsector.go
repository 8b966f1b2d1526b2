// This package decodes the on-disk structures of an exFAT volume: the boot
// regions, the FAT, cluster chains, and directory entries.

package exfat

import (
	"bytes"
	"fmt"
	"io"
	"reflect"

	"encoding/binary"

	"github.com/dsoprea/go-logging"
	"github.com/go-restruct/restruct"
)

const (
	// BootSectorHeaderSize is the fixed size of the boot-sector header. The
	// boot sector itself occupies one full sector; any bytes past the header
	// are excess and carry nothing.
	BootSectorHeaderSize = 512
)

var (
	defaultEncoding binary.ByteOrder = binary.LittleEndian

	requiredFilesystemName = []byte("EXFAT   ")
)

// BootSectorHeader is an immutable view of the superblock: the volume
// geometry and the locations of every other on-disk structure. It is
// validated once at construction and never changes afterwards.
type BootSectorHeader struct {
	// JumpBoot is the x86 jump instruction into BootCode. Informational;
	// not validated.
	JumpBoot [3]byte

	// FileSystemName identifies the volume as exFAT. The only valid value
	// is "EXFAT   " (three trailing spaces).
	FileSystemName [8]byte

	// MustBeZero covers the range a FAT12/16/32 BPB would occupy, and must
	// be all zeros so legacy implementations refuse to mount the volume.
	MustBeZero [53]byte

	// PartitionOffset is the media-relative sector offset of the hosting
	// partition. Zero means "ignore".
	PartitionOffset uint64

	// VolumeLength is the size of the volume in sectors.
	VolumeLength uint64

	// FatOffset is the volume-relative sector offset of the first FAT. At
	// least 24, which accounts for the two boot regions.
	FatOffset uint32

	// FatLength is the length of each FAT in sectors.
	FatLength uint32

	// ClusterHeapOffset is the volume-relative sector offset of the cluster
	// heap.
	ClusterHeapOffset uint32

	// ClusterCount is the number of clusters in the cluster heap.
	ClusterCount uint32

	// FirstClusterOfRootDirectory is between 2 and ClusterCount+1.
	FirstClusterOfRootDirectory uint32

	// VolumeSerialNumber distinguishes volumes. All values are valid.
	VolumeSerialNumber uint32

	// FileSystemRevision holds the minor and then the major revision byte.
	FileSystemRevision [2]uint8

	// VolumeFlags carries the active-FAT, dirty, media-failure, and
	// clear-to-zero bits. Stale in the backup boot sector.
	VolumeFlags VolumeFlags

	// BytesPerSectorShift is log2 of the sector size, between 9 and 12.
	BytesPerSectorShift uint8

	// SectorsPerClusterShift is log2 of the sectors per cluster.
	SectorsPerClusterShift uint8

	// NumberOfFats is 1, or 2 for TexFAT volumes.
	NumberOfFats uint8

	// DriveSelect is the extended INT 13h drive number.
	DriveSelect uint8

	// PercentInUse is the allocated percentage of the cluster heap, rounded
	// down, or 0xff when unavailable. Stale in the backup boot sector.
	PercentInUse uint8

	// Reserved is unused.
	Reserved [7]byte

	// BootCode holds boot-strapping instructions, if any.
	BootCode [390]byte

	// BootSignature is AA55h for a sector that intends to be a boot sector.
	// Informational here; not validated.
	BootSignature uint16
}

// NewBootSectorHeader decodes and validates a boot sector from exactly 512
// bytes supplied by the caller.
func NewBootSectorHeader(data []byte) (bsh *BootSectorHeader, err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			var ok bool
			if err, ok = errRaw.(error); ok == true {
				err = log.Wrap(err)
			} else {
				err = log.Errorf("Error not an error: [%s] [%v]", reflect.TypeOf(err).Name(), err)
			}
		}
	}()

	if len(data) != BootSectorHeaderSize {
		log.Panicf("boot-sector buffer has wrong length: (%d)", len(data))
	}

	bsh = new(BootSectorHeader)

	err = restruct.Unpack(data, defaultEncoding, bsh)
	log.PanicIf(err)

	err = bsh.validate()
	if err != nil {
		return nil, err
	}

	return bsh, nil
}

// NewBootSectorHeaderFromReader decodes and validates a boot sector read
// from the current position of a sequential source.
func NewBootSectorHeaderFromReader(r io.Reader) (bsh *BootSectorHeader, err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			var ok bool
			if err, ok = errRaw.(error); ok == true {
				err = log.Wrap(err)
			} else {
				err = log.Errorf("Error not an error: [%s] [%v]", reflect.TypeOf(err).Name(), err)
			}
		}
	}()

	raw := make([]byte, BootSectorHeaderSize)

	_, err = io.ReadFull(r, raw)
	log.PanicIf(err)

	bsh, err = NewBootSectorHeader(raw)
	if err != nil {
		return nil, err
	}

	return bsh, nil
}

// NewBootSectorHeaderFromReaderAt decodes and validates a boot sector read
// at the given absolute byte offset of a random-access source.
func NewBootSectorHeaderFromReaderAt(ra io.ReaderAt, offset int64) (bsh *BootSectorHeader, err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			var ok bool
			if err, ok = errRaw.(error); ok == true {
				err = log.Wrap(err)
			} else {
				err = log.Errorf("Error not an error: [%s] [%v]", reflect.TypeOf(err).Name(), err)
			}
		}
	}()

	raw := make([]byte, BootSectorHeaderSize)

	_, err = ra.ReadAt(raw, offset)
	log.PanicIf(err)

	bsh, err = NewBootSectorHeader(raw)
	if err != nil {
		return nil, err
	}

	return bsh, nil
}

func (bsh *BootSectorHeader) validate() error {
	if bytes.Equal(bsh.FileSystemName[:], requiredFilesystemName) != true {
		found := make([]byte, len(bsh.FileSystemName))
		copy(found, bsh.FileSystemName[:])

		return &BootSectorValidationError{
			Invariant:  InvariantFilesystemName,
			Message:    fmt.Sprintf("filesystem name not correct: %x [%s]", found, string(found)),
			FoundBytes: found,
		}
	}

	for i, c := range bsh.MustBeZero {
		if c != 0 {
			return &BootSectorValidationError{
				Invariant: InvariantMustBeZero,
				Message:   fmt.Sprintf("must-be-zero region has a non-zero byte at offset (%d)", 11+i),
			}
		}
	}

	if bsh.BytesPerSectorShift < 9 || bsh.BytesPerSectorShift > 12 {
		return &BootSectorValidationError{
			Invariant: InvariantBytesPerSectorShift,
			Message:   fmt.Sprintf("bytes-per-sector shift out of range: (%d)", bsh.BytesPerSectorShift),
		}
	}

	if bsh.NumberOfFats != 1 && bsh.NumberOfFats != 2 {
		return &BootSectorValidationError{
			Invariant: InvariantNumberOfFats,
			Message:   fmt.Sprintf("number of FATs not correct: (%d)", bsh.NumberOfFats),
		}
	}

	if bsh.FatOffset < 24 {
		return &BootSectorValidationError{
			Invariant: InvariantFatOffset,
			Message:   fmt.Sprintf("FAT offset too small: (%d)", bsh.FatOffset),
		}
	}

	// The wider arithmetic below keeps 32-bit sector counts from wrapping.

	fatRegionEnd := uint64(bsh.FatOffset) + uint64(bsh.FatLength)*uint64(bsh.NumberOfFats)
	if fatRegionEnd > uint64(bsh.ClusterHeapOffset) {
		return &BootSectorValidationError{
			Invariant: InvariantFatRegionBounds,
			Message:   fmt.Sprintf("FAT region ends at sector (%d), inside the cluster heap at sector (%d)", fatRegionEnd, bsh.ClusterHeapOffset),
		}
	}

	clusterHeapEnd := uint64(bsh.ClusterHeapOffset) + uint64(bsh.ClusterCount)<<bsh.SectorsPerClusterShift
	if clusterHeapEnd > bsh.VolumeLength {
		return &BootSectorValidationError{
			Invariant: InvariantClusterHeapBounds,
			Message:   fmt.Sprintf("cluster heap ends at sector (%d), past the volume length (%d)", clusterHeapEnd, bsh.VolumeLength),
		}
	}

	if bsh.FirstClusterOfRootDirectory < 2 || bsh.FirstClusterOfRootDirectory > bsh.ClusterCount+1 {
		return &BootSectorValidationError{
			Invariant: InvariantRootDirectoryCluster,
			Message:   fmt.Sprintf("first cluster of root directory not a valid cluster address: (%d)", bsh.FirstClusterOfRootDirectory),
		}
	}

	if bsh.PercentInUse > 100 && bsh.PercentInUse != 0xff {
		return &BootSectorValidationError{
			Invariant: InvariantPercentInUse,
			Message:   fmt.Sprintf("percent-in-use not a percentage: (%d)", bsh.PercentInUse),
		}
	}

	return nil
}

// SectorSize returns the effective sector size in bytes.
func (bsh *BootSectorHeader) SectorSize() uint32 {
	return uint32(1) << bsh.BytesPerSectorShift
}

// SectorsPerCluster returns the effective sectors-per-cluster count.
func (bsh *BootSectorHeader) SectorsPerCluster() uint32 {
	return uint32(1) << bsh.SectorsPerClusterShift
}

// ClusterSize returns the size of one cluster in bytes.
func (bsh *BootSectorHeader) ClusterSize() uint32 {
	return bsh.SectorSize() * bsh.SectorsPerCluster()
}

// Dump prints all of the header parameters along with the common calculated
// ones.
func (bsh *BootSectorHeader) Dump() {
	fmt.Printf("Boot Sector Header\n")
	fmt.Printf("==================\n")
	fmt.Printf("\n")

	fmt.Printf("PartitionOffset: (%d)\n", bsh.PartitionOffset)
	fmt.Printf("VolumeLength: (%d)\n", bsh.VolumeLength)
	fmt.Printf("FatOffset: (%d)\n", bsh.FatOffset)
	fmt.Printf("FatLength: (%d)\n", bsh.FatLength)
	fmt.Printf("ClusterHeapOffset: (%d)\n", bsh.ClusterHeapOffset)
	fmt.Printf("ClusterCount: (%d)\n", bsh.ClusterCount)
	fmt.Printf("FirstClusterOfRootDirectory: (%d)\n", bsh.FirstClusterOfRootDirectory)
	fmt.Printf("VolumeSerialNumber: (0x%08x)\n", bsh.VolumeSerialNumber)
	fmt.Printf("FileSystemRevision: (0x%02x) (0x%02x)\n", bsh.FileSystemRevision[0], bsh.FileSystemRevision[1])
	fmt.Printf("BytesPerSectorShift: (%d)\n", bsh.BytesPerSectorShift)
	fmt.Printf("-> Sector-size: 2^(%d) -> %d\n", bsh.BytesPerSectorShift, bsh.SectorSize())
	fmt.Printf("SectorsPerClusterShift: (%d)\n", bsh.SectorsPerClusterShift)
	fmt.Printf("-> Sectors-per-cluster: 2^(%d) -> %d\n", bsh.SectorsPerClusterShift, bsh.SectorsPerCluster())
	fmt.Printf("NumberOfFats: (%d)\n", bsh.NumberOfFats)
	fmt.Printf("DriveSelect: (%d)\n", bsh.DriveSelect)
	fmt.Printf("PercentInUse: (%d)\n", bsh.PercentInUse)
	fmt.Printf("BootSignature: (0x%04x)\n", bsh.BootSignature)
	fmt.Printf("\n")

	fmt.Printf("VolumeFlags: (%d)\n", bsh.VolumeFlags)
	bsh.VolumeFlags.DumpBareIndented("  ")

	fmt.Printf("\n")
}

// String returns a description of the header.
func (bsh *BootSectorHeader) String() string {
	return fmt.Sprintf("BootSector<SN=(0x%08x) REVISION=(0x%02x)-(0x%02x)>", bsh.VolumeSerialNumber, bsh.FileSystemRevision[0], bsh.FileSystemRevision[1])
}

const (
	// VolumeFlagActiveFat selects the second FAT and allocation bitmap when
	// set. Only meaningful when NumberOfFats is two.
	VolumeFlagActiveFat VolumeFlags = 1

	// VolumeFlagVolumeDirty claims the volume is probably inconsistent.
	VolumeFlagVolumeDirty = 2

	// VolumeFlagMediaFailure is set when the media reported failures that
	// have not been recorded as bad clusters.
	VolumeFlagMediaFailure = 4

	// VolumeFlagClearToZero shall be cleared before modifying any file
	// system structures.
	VolumeFlagClearToZero = 8
)

// VolumeFlags represents some state flags for the filesystem.
type VolumeFlags uint16

// UseFirstFat indicates whether the first FAT should be used.
func (vf VolumeFlags) UseFirstFat() bool {
	return vf&VolumeFlagActiveFat == 0
}

// UseSecondFat indicates whether the second FAT should be used.
func (vf VolumeFlags) UseSecondFat() bool {
	return vf&VolumeFlagActiveFat > 0
}

// IsDirty indicates whether changes currently need to be flushed.
func (vf VolumeFlags) IsDirty() bool {
	return vf&VolumeFlagVolumeDirty > 0
}

// HasHadMediaFailures indicates whether media-errors have been detected.
func (vf VolumeFlags) HasHadMediaFailures() bool {
	return vf&VolumeFlagMediaFailure > 0
}

// ClearToZero indicates that this flag should be cleared.
func (vf VolumeFlags) ClearToZero() bool {
	return vf&VolumeFlagClearToZero > 0
}

// DumpBareIndented prints the volume flags with arbitrary indentation.
func (vf VolumeFlags) DumpBareIndented(indent string) {
	fmt.Printf("%sRaw Value: (%08b)\n", indent, vf)
	fmt.Printf("%sUseFirstFat: [%v]\n", indent, vf.UseFirstFat())
	fmt.Printf("%sUseSecondFat: [%v]\n", indent, vf.UseSecondFat())
	fmt.Printf("%sIsDirty: [%v]\n", indent, vf.IsDirty())
	fmt.Printf("%sHasHadMediaFailures: [%v]\n", indent, vf.HasHadMediaFailures())
	fmt.Printf("%sClearToZero: [%v]\n", indent, vf.ClearToZero())
}
