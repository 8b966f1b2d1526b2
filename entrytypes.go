// Typed decoding of the 19-byte type-specific payload of directory records.
// The envelope in direntry.go is enough to walk a directory; the types here
// give the payloads meaning.

package exfat

import (
	"fmt"
	"reflect"
	"time"

	"github.com/dsoprea/go-logging"
	"github.com/go-restruct/restruct"
)

// entryTypeKey identifies one concrete record type. The type code plus the
// importance and category bits uniquely identify it.
type entryTypeKey struct {
	typeCode   int
	isCritical bool
	isPrimary  bool
}

func (etk entryTypeKey) String() string {
	return fmt.Sprintf("entryTypeKey<TYPE-CODE=(%d) IS-CRITICAL=[%v] IS-PRIMARY=[%v]>", etk.typeCode, etk.isCritical, etk.isPrimary)
}

var (
	// entryTypeParsers maps each record type the on-disk format defines to
	// its record structure.
	entryTypeParsers = map[entryTypeKey]reflect.Type{

		//// Critical primary

		entryTypeKey{typeCode: 1, isCritical: true, isPrimary: true}: reflect.TypeOf(AllocationBitmapEntry{}),
		entryTypeKey{typeCode: 2, isCritical: true, isPrimary: true}: reflect.TypeOf(UpcaseTableEntry{}),
		entryTypeKey{typeCode: 3, isCritical: true, isPrimary: true}: reflect.TypeOf(VolumeLabelEntry{}),
		entryTypeKey{typeCode: 5, isCritical: true, isPrimary: true}: reflect.TypeOf(FileEntry{}),

		//// Benign primary

		entryTypeKey{typeCode: 0, isCritical: false, isPrimary: true}: reflect.TypeOf(VolumeGuidEntry{}),
		entryTypeKey{typeCode: 1, isCritical: false, isPrimary: true}: reflect.TypeOf(TexFatPaddingEntry{}),

		//// Critical secondary

		entryTypeKey{typeCode: 0, isCritical: true, isPrimary: false}: reflect.TypeOf(StreamExtensionEntry{}),
		entryTypeKey{typeCode: 1, isCritical: true, isPrimary: false}: reflect.TypeOf(FileNameEntry{}),

		//// Benign secondary

		entryTypeKey{typeCode: 0, isCritical: false, isPrimary: false}: reflect.TypeOf(VendorExtensionEntry{}),
		entryTypeKey{typeCode: 1, isCritical: false, isPrimary: false}: reflect.TypeOf(VendorAllocationEntry{}),
	}
)

// TypedDirectoryEntry is any decoded directory record.
type TypedDirectoryEntry interface {
	TypeName() string
}

// PrimaryTypedDirectoryEntry is any decoded primary record, which knows how
// many secondary records follow it in its entry set.
type PrimaryTypedDirectoryEntry interface {
	SecondaryCount() uint8
}

// Decode resolves the record to its concrete type using the type-code,
// importance, and category fields. Record types this package does not know
// decode through the generic primary or secondary template. Only regular
// records can be decoded.
func (de DirectoryEntry) Decode() (typed TypedDirectoryEntry, err error) {
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

	entryType := de.EntryType()

	if entryType.IsRegular() != true {
		log.Panicf("not a regular directory entry: %s", entryType)
	}

	etk := entryTypeKey{
		typeCode:   entryType.TypeCode(),
		isCritical: entryType.IsCritical(),
		isPrimary:  entryType.IsPrimary(),
	}

	structType, found := entryTypeParsers[etk]
	if found == false {
		if entryType.IsPrimary() == true {
			structType = reflect.TypeOf(GenericPrimaryEntry{})
		} else {
			structType = reflect.TypeOf(GenericSecondaryEntry{})
		}
	}

	s := reflect.New(structType)
	x := s.Interface()

	err = restruct.Unpack(de.raw[:], defaultEncoding, x)
	log.PanicIf(err)

	return x.(TypedDirectoryEntry), nil
}

// GenericPrimaryEntry is the template every primary record derives from.
// It decodes any primary record type this package has no concrete
// structure for.
type GenericPrimaryEntry struct {
	EntryType EntryType

	// SecondaryCountRaw is the number of secondary records that follow this
	// one and belong to its entry set.
	SecondaryCountRaw uint8

	// SetChecksum covers all records of the entry set except this field.
	SetChecksum uint16

	GeneralPrimaryFlags uint16

	// CustomDefined is payload the concrete record type defines.
	CustomDefined [14]byte

	FirstCluster uint32
	DataLength   uint64
}

// SecondaryCount returns the number of secondary records in the entry set.
func (gpe GenericPrimaryEntry) SecondaryCount() uint8 {
	return gpe.SecondaryCountRaw
}

// TypeName returns a human-readable name for the record type.
func (GenericPrimaryEntry) TypeName() string {
	return "_Primary"
}

func (gpe GenericPrimaryEntry) String() string {
	return fmt.Sprintf("PrimaryEntry<TYPE=(%d) SECONDARY-COUNT=(%d) FIRST-CLUSTER=(%d) DATA-LENGTH=(%d)>", gpe.EntryType, gpe.SecondaryCountRaw, gpe.FirstCluster, gpe.DataLength)
}

// GenericSecondaryEntry is the template every secondary record derives
// from, and the fallback decoding for unknown secondary record types.
type GenericSecondaryEntry struct {
	EntryType             EntryType
	GeneralSecondaryFlags uint8

	// CustomDefined is payload the concrete record type defines.
	CustomDefined [18]byte

	FirstCluster uint32
	DataLength   uint64
}

// TypeName returns a human-readable name for the record type.
func (GenericSecondaryEntry) TypeName() string {
	return "_Secondary"
}

func (gse GenericSecondaryEntry) String() string {
	return fmt.Sprintf("SecondaryEntry<TYPE=(%d) FIRST-CLUSTER=(%d) DATA-LENGTH=(%d)>", gse.EntryType, gse.FirstCluster, gse.DataLength)
}

// Timestamp is the packed local-time representation directory records use:
// two-second units in the low five bits, then minute, hour, day, month, and
// year-since-1980.
type Timestamp uint32

func (ts Timestamp) Second() int {
	return int(ts & 31)
}

func (ts Timestamp) Minute() int {
	return int(ts&2016) >> 5
}

func (ts Timestamp) Hour() int {
	return int(ts&63488) >> 11
}

func (ts Timestamp) Day() int {
	return int(ts&2031616) >> 16
}

func (ts Timestamp) Month() int {
	return int(ts&31457280) >> 21
}

func (ts Timestamp) Year() int {
	return 1980 + int(ts&4261412864)>>25
}

// Time converts to a time.Time in the local zone.
func (ts Timestamp) Time() time.Time {
	return time.Date(ts.Year(), time.Month(ts.Month()), ts.Day(), ts.Hour(), ts.Minute(), ts.Second(), 0, time.Local)
}

func (ts Timestamp) String() string {
	return fmt.Sprintf("%04d-%02d-%02d %02d:%02d:%02d", ts.Year(), ts.Month(), ts.Day(), ts.Hour(), ts.Minute(), ts.Second())
}

// FileAttributes is the DOS-style attribute bitfield of a file record.
type FileAttributes uint16

func (fa FileAttributes) IsReadOnly() bool {
	return fa&1 > 0
}

func (fa FileAttributes) IsHidden() bool {
	return fa&2 > 0
}

func (fa FileAttributes) IsSystem() bool {
	return fa&4 > 0
}

func (fa FileAttributes) IsDirectory() bool {
	return fa&16 > 0
}

func (fa FileAttributes) IsArchive() bool {
	return fa&32 > 0
}

func (fa FileAttributes) String() string {
	return fmt.Sprintf("FileAttributes<IS-READONLY=[%v] IS-HIDDEN=[%v] IS-SYSTEM=[%v] IS-DIRECTORY=[%v] IS-ARCHIVE=[%v]>",
		fa.IsReadOnly(), fa.IsHidden(), fa.IsSystem(), fa.IsDirectory(), fa.IsArchive())
}

// FileEntry is the critical primary record describing one file or
// directory. Its entry set carries a stream extension and one or more file
// name records.
type FileEntry struct {
	EntryType         EntryType
	SecondaryCountRaw uint8
	SetChecksum       uint16
	FileAttributes    FileAttributes
	Reserved1         uint16

	CreateTimestamp       Timestamp
	LastModifiedTimestamp Timestamp
	LastAccessedTimestamp Timestamp

	// The 10ms increments refine the two-second timestamp granularity.
	Create10msIncrement       uint8
	LastModified10msIncrement uint8

	CreateUtcOffset       uint8
	LastModifiedUtcOffset uint8
	LastAccessedUtcOffset uint8

	Reserved2 [7]byte
}

func (fe FileEntry) String() string {
	return fmt.Sprintf("FileEntry<SECONDARY-COUNT=(%d) CTIME=[%s] MTIME=[%s] ATIME=[%s]>", fe.SecondaryCountRaw, fe.CreateTimestamp, fe.LastModifiedTimestamp, fe.LastAccessedTimestamp)
}

// SecondaryCount returns the number of secondary records in the entry set.
func (fe FileEntry) SecondaryCount() uint8 {
	return fe.SecondaryCountRaw
}

// TypeName returns a human-readable name for the record type.
func (FileEntry) TypeName() string {
	return "File"
}

// Dump prints the file record's fields.
func (fe FileEntry) Dump() {
	fmt.Printf("File Entry\n")
	fmt.Printf("==========\n")
	fmt.Printf("\n")

	fmt.Printf("SecondaryCount: (%d)\n", fe.SecondaryCountRaw)
	fmt.Printf("SetChecksum: (0x%04x)\n", fe.SetChecksum)
	fmt.Printf("FileAttributes: %s\n", fe.FileAttributes)
	fmt.Printf("CreateTimestamp: [%s]\n", fe.CreateTimestamp)
	fmt.Printf("LastModifiedTimestamp: [%s]\n", fe.LastModifiedTimestamp)
	fmt.Printf("LastAccessedTimestamp: [%s]\n", fe.LastAccessedTimestamp)
	fmt.Printf("\n")
}

// AllocationBitmapEntry is the critical primary record locating the
// cluster-allocation bitmap.
type AllocationBitmapEntry struct {
	EntryType   EntryType
	BitmapFlags uint8
	Reserved    [18]byte

	FirstCluster uint32
	DataLength   uint64
}

func (abe AllocationBitmapEntry) String() string {
	return fmt.Sprintf("AllocationBitmapEntry<BITMAP-FLAGS=[%08b] FIRST-CLUSTER=(%d) DATA-LENGTH=(%d)>", abe.BitmapFlags, abe.FirstCluster, abe.DataLength)
}

// TypeName returns a human-readable name for the record type.
func (AllocationBitmapEntry) TypeName() string {
	return "AllocationBitmap"
}

// IsSecond indicates the bitmap belongs to the second FAT on a TexFAT
// volume.
func (abe AllocationBitmapEntry) IsSecond() bool {
	return abe.BitmapFlags&1 > 0
}

// UpcaseTableEntry is the critical primary record locating the up-case
// table used for case-insensitive name comparison.
type UpcaseTableEntry struct {
	EntryType     EntryType
	Reserved1     [3]byte
	TableChecksum uint32
	Reserved2     [12]byte

	FirstCluster uint32
	DataLength   uint64
}

func (ute UpcaseTableEntry) String() string {
	return fmt.Sprintf("UpcaseTableEntry<TABLE-CHECKSUM=[%08x] FIRST-CLUSTER=(%d) DATA-LENGTH=(%d)>", ute.TableChecksum, ute.FirstCluster, ute.DataLength)
}

// TypeName returns a human-readable name for the record type.
func (UpcaseTableEntry) TypeName() string {
	return "UpcaseTable"
}

// VolumeLabelEntry is the critical primary record carrying the volume
// label. In practice tools spill the label into the trailing reserved
// bytes, so the full thirty bytes are kept together here.
type VolumeLabelEntry struct {
	EntryType      EntryType
	CharacterCount uint8
	VolumeLabel    [30]byte
}

// Label decodes the UTF-16 label text.
func (vle VolumeLabelEntry) Label() string {
	return UnicodeFromAscii(vle.VolumeLabel[:], int(vle.CharacterCount))
}

func (vle VolumeLabelEntry) String() string {
	return fmt.Sprintf("VolumeLabelEntry<CHARACTER-COUNT=(%d) LABEL=[%s]>", vle.CharacterCount, vle.Label())
}

// TypeName returns a human-readable name for the record type.
func (VolumeLabelEntry) TypeName() string {
	return "VolumeLabel"
}

// VolumeGuidEntry is the benign primary record carrying a volume GUID.
type VolumeGuidEntry struct {
	EntryType           EntryType
	SecondaryCountRaw   uint8
	SetChecksum         uint16
	GeneralPrimaryFlags uint16
	VolumeGuid          [16]byte
	Reserved            [10]byte
}

func (vge VolumeGuidEntry) String() string {
	return fmt.Sprintf("VolumeGuidEntry<SECONDARY-COUNT=(%d) SET-CHECKSUM=(0x%04x) GUID=(0x%032x)>", vge.SecondaryCountRaw, vge.SetChecksum, vge.VolumeGuid)
}

// SecondaryCount returns the number of secondary records in the entry set.
func (vge VolumeGuidEntry) SecondaryCount() uint8 {
	return vge.SecondaryCountRaw
}

// TypeName returns a human-readable name for the record type.
func (VolumeGuidEntry) TypeName() string {
	return "VolumeGuid"
}

// TexFatPaddingEntry is the benign primary record TexFAT volumes use to pad
// the first cluster of a directory.
type TexFatPaddingEntry struct {
	EntryType EntryType
	Reserved  [31]byte
}

func (TexFatPaddingEntry) String() string {
	return "TexFatPaddingEntry<>"
}

// TypeName returns a human-readable name for the record type.
func (TexFatPaddingEntry) TypeName() string {
	return "TexFatPadding"
}

// StreamExtensionEntry is the critical secondary record carrying the
// allocation of a file record's data stream.
type StreamExtensionEntry struct {
	EntryType             EntryType
	GeneralSecondaryFlags uint8
	Reserved1             uint8

	// NameLength counts the characters spread over the entry set's file
	// name records.
	NameLength uint8
	NameHash   uint16
	Reserved2  uint16

	// ValidDataLength is how far into the allocation the data is valid;
	// DataLength beyond it is undefined.
	ValidDataLength uint64
	Reserved3       uint32

	FirstCluster uint32
	DataLength   uint64
}

func (see StreamExtensionEntry) String() string {
	return fmt.Sprintf("StreamExtensionEntry<NAME-LENGTH=(%d) NAME-HASH=(0x%04x) VALID-DATA-LENGTH=(%d) FIRST-CLUSTER=(%d) DATA-LENGTH=(%d)>", see.NameLength, see.NameHash, see.ValidDataLength, see.FirstCluster, see.DataLength)
}

// TypeName returns a human-readable name for the record type.
func (StreamExtensionEntry) TypeName() string {
	return "StreamExtension"
}

// NoFatChain indicates the allocation is one contiguous run of clusters
// whose FAT entries must not be interpreted.
func (see StreamExtensionEntry) NoFatChain() bool {
	return see.GeneralSecondaryFlags&2 > 0
}

// Dump prints the stream extension's fields.
func (see StreamExtensionEntry) Dump() {
	fmt.Printf("Stream Extension Entry\n")
	fmt.Printf("======================\n")
	fmt.Printf("\n")

	fmt.Printf("GeneralSecondaryFlags: (%08b)\n", see.GeneralSecondaryFlags)
	fmt.Printf("NameLength: (%d)\n", see.NameLength)
	fmt.Printf("NameHash: (0x%04x)\n", see.NameHash)
	fmt.Printf("ValidDataLength: (%d)\n", see.ValidDataLength)
	fmt.Printf("FirstCluster: (%d)\n", see.FirstCluster)
	fmt.Printf("DataLength: (%d)\n", see.DataLength)
	fmt.Printf("\n")
}

// FileNameEntry is the critical secondary record carrying up to fifteen
// characters of a file's name. Names longer than that span several of
// these records.
type FileNameEntry struct {
	EntryType             EntryType
	GeneralSecondaryFlags uint8
	FileName              [30]byte
}

// FileNameCharacters counts the characters one record can carry.
const FileNameCharacters = 15

// Part decodes this record's fragment of the file name.
func (fne FileNameEntry) Part() string {
	return UnicodeFromAscii(fne.FileName[:], FileNameCharacters)
}

func (fne FileNameEntry) String() string {
	return fmt.Sprintf("FileNameEntry<GENERAL-SECONDARY-FLAGS=(%08b) FILENAME=[%s]>", fne.GeneralSecondaryFlags, fne.Part())
}

// TypeName returns a human-readable name for the record type.
func (FileNameEntry) TypeName() string {
	return "FileName"
}

// VendorExtensionEntry is the benign secondary record carrying
// vendor-specific payload inline.
type VendorExtensionEntry struct {
	EntryType             EntryType
	GeneralSecondaryFlags uint8
	VendorGuid            [16]byte
	VendorDefined         [14]byte
}

func (vee VendorExtensionEntry) String() string {
	return fmt.Sprintf("VendorExtensionEntry<GENERAL-SECONDARY-FLAGS=(%08b) GUID=(0x%032x)>", vee.GeneralSecondaryFlags, vee.VendorGuid)
}

// TypeName returns a human-readable name for the record type.
func (VendorExtensionEntry) TypeName() string {
	return "VendorExtension"
}

// VendorAllocationEntry is the benign secondary record carrying
// vendor-specific payload in its own cluster chain.
type VendorAllocationEntry struct {
	EntryType             EntryType
	GeneralSecondaryFlags uint8
	VendorGuid            [16]byte
	VendorDefined         [2]byte

	FirstCluster uint32
	DataLength   uint64
}

func (vae VendorAllocationEntry) String() string {
	return fmt.Sprintf("VendorAllocationEntry<GENERAL-SECONDARY-FLAGS=(%08b) GUID=(0x%032x) FIRST-CLUSTER=(%d) DATA-LENGTH=(%d)>", vae.GeneralSecondaryFlags, vae.VendorGuid, vae.FirstCluster, vae.DataLength)
}

// TypeName returns a human-readable name for the record type.
func (VendorAllocationEntry) TypeName() string {
	return "VendorAllocation"
}
