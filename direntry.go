package exfat

import (
	"fmt"
	"reflect"

	"github.com/dsoprea/go-logging"
)

const (
	// DirectoryEntrySize is the fixed size of one directory record.
	DirectoryEntrySize = 32
)

// EntryType is the leading byte of a directory record.
//
// 0x00 ends the directory, and every later record in the stream is also
// end-of-directory. 0x01 through 0x7f mark an unused record. 0x81 through
// 0xff is an in-use, typed record. 0x80 is invalid.
type EntryType uint8

// IsEndOfDirectory indicates the terminal record of a directory stream.
func (et EntryType) IsEndOfDirectory() bool {
	return et == 0
}

// IsUnusedEntryMarker indicates a deleted or never-used record.
func (et EntryType) IsUnusedEntryMarker() bool {
	return et >= 0x01 && et <= 0x7f
}

// IsRegular indicates an in-use, typed record.
func (et EntryType) IsRegular() bool {
	return et >= 0x81
}

// TypeCode is the low five bits. Together with TypeImportance and
// TypeCategory it uniquely identifies the record type.
func (et EntryType) TypeCode() int {
	return int(et & 31)
}

// TypeImportance is bit five: false for critical, true for benign.
func (et EntryType) TypeImportance() bool {
	return et&32 > 0
}

// IsCritical indicates a record an implementation must understand.
func (et EntryType) IsCritical() bool {
	return et.TypeImportance() == false
}

// IsBenign indicates a record that may be ignored.
func (et EntryType) IsBenign() bool {
	return et.TypeImportance() == true
}

// TypeCategory is bit six: false for primary, true for secondary.
func (et EntryType) TypeCategory() bool {
	return et&64 > 0
}

// IsPrimary indicates a record that starts an entry set.
func (et EntryType) IsPrimary() bool {
	return et.TypeCategory() == false
}

// IsSecondary indicates a record that extends the preceding primary.
func (et EntryType) IsSecondary() bool {
	return et.TypeCategory() == true
}

// IsInUse is bit seven. Clear for the unused-record range.
func (et EntryType) IsInUse() bool {
	return et&128 > 0
}

// Dump prints the full decomposition of the entry type.
func (et EntryType) Dump() {
	fmt.Printf("Entry Type\n")
	fmt.Printf("==========\n")
	fmt.Printf("\n")

	fmt.Printf("TypeCode: (%d)\n", et.TypeCode())
	fmt.Printf("TypeImportance: [%v]\n", et.TypeImportance())
	fmt.Printf("- IsCritical: [%v]\n", et.IsCritical())
	fmt.Printf("- IsBenign: [%v]\n", et.IsBenign())
	fmt.Printf("TypeCategory: [%v]\n", et.TypeCategory())
	fmt.Printf("- IsPrimary: [%v]\n", et.IsPrimary())
	fmt.Printf("- IsSecondary: [%v]\n", et.IsSecondary())
	fmt.Printf("IsInUse: [%v]\n", et.IsInUse())
	fmt.Printf("\n")

	fmt.Printf("Entry-Type Classes\n")
	fmt.Printf("- IsEndOfDirectory: [%v]\n", et.IsEndOfDirectory())
	fmt.Printf("- IsUnusedEntryMarker: [%v]\n", et.IsUnusedEntryMarker())
	fmt.Printf("- IsRegular: [%v]\n", et.IsRegular())
	fmt.Printf("\n")
}

// String returns a description of the entry type.
func (et EntryType) String() string {
	return fmt.Sprintf("EntryType<TYPE-CODE=(%d) IS-CRITICAL=[%v] IS-PRIMARY=[%v] IS-IN-USE=[%v] X-IS-REGULAR=[%v] X-IS-UNUSED=[%v] X-IS-END=[%v]>", et.TypeCode(), et.IsCritical(), et.IsPrimary(), et.IsInUse(), et.IsRegular(), et.IsUnusedEntryMarker(), et.IsEndOfDirectory())
}

// DirectoryEntry is an immutable view of one 32-byte directory record: the
// entry-type byte, nineteen bytes of type-specific payload, and the
// first-cluster/data-length envelope that every record type shares.
type DirectoryEntry struct {
	raw [DirectoryEntrySize]byte
}

// NewDirectoryEntry constructs the view from exactly 32 bytes.
func NewDirectoryEntry(data []byte) (de DirectoryEntry, err error) {
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

	if len(data) != DirectoryEntrySize {
		log.Panicf("directory-entry buffer has wrong length: (%d)", len(data))
	}

	copy(de.raw[:], data)

	return de, nil
}

// EntryType returns the leading type byte.
func (de DirectoryEntry) EntryType() EntryType {
	return EntryType(de.raw[0])
}

// CustomDefined returns a copy of the nineteen type-specific payload bytes.
// Their decoding is keyed by the entry-type fields; see Decode.
func (de DirectoryEntry) CustomDefined() []byte {
	payload := make([]byte, 19)
	copy(payload, de.raw[1:20])

	return payload
}

// FirstCluster returns the first cluster of the data the record describes.
func (de DirectoryEntry) FirstCluster() uint32 {
	return defaultEncoding.Uint32(de.raw[20:24])
}

// DataLength returns the length in bytes of the data the record describes.
func (de DirectoryEntry) DataLength() uint64 {
	return defaultEncoding.Uint64(de.raw[24:32])
}

// Raw returns a copy of the record bytes.
func (de DirectoryEntry) Raw() []byte {
	raw := make([]byte, DirectoryEntrySize)
	copy(raw, de.raw[:])

	return raw
}

// String returns a description of the record envelope.
func (de DirectoryEntry) String() string {
	return fmt.Sprintf("DirectoryEntry<TYPE=(0x%02x) FIRST-CLUSTER=(%d) DATA-LENGTH=(%d)>", uint8(de.EntryType()), de.FirstCluster(), de.DataLength())
}

// DirectoryStream scans 32-byte records out of directory bytes, stopping at
// the first end-of-directory record. Records past that point are formally
// undefined and are never surfaced.
type DirectoryStream struct {
	data []byte
	pos  int

	entry DirectoryEntry
	atEnd bool
	done  bool
	err   error
}

// NewDirectoryStream begins scanning the given directory bytes, normally
// the concatenated payloads of a directory's cluster chain.
func NewDirectoryStream(data []byte) *DirectoryStream {
	return &DirectoryStream{
		data: data,
	}
}

// Next advances to the next record. It returns false at the terminal
// record, at the end of the data, or on a fault; check Err and AtEnd.
func (ds *DirectoryStream) Next() bool {
	if ds.done == true {
		return false
	}

	if ds.pos >= len(ds.data) {
		ds.done = true
		return false
	}

	if len(ds.data)-ds.pos < DirectoryEntrySize {
		ds.err = log.Errorf("directory stream ends with a truncated record: (%d) bytes", len(ds.data)-ds.pos)
		ds.done = true

		return false
	}

	de, err := NewDirectoryEntry(ds.data[ds.pos : ds.pos+DirectoryEntrySize])
	if err != nil {
		ds.err = err
		ds.done = true

		return false
	}

	if de.EntryType().IsEndOfDirectory() == true {
		ds.atEnd = true
		ds.done = true

		return false
	}

	ds.entry = de
	ds.pos += DirectoryEntrySize

	return true
}

// Entry returns the record yielded by the last successful Next.
func (ds *DirectoryStream) Entry() DirectoryEntry {
	return ds.entry
}

// AtEnd indicates the stream stopped at an end-of-directory record rather
// than running out of bytes.
func (ds *DirectoryStream) AtEnd() bool {
	return ds.atEnd
}

// Err returns the fault that stopped the stream, if any.
func (ds *DirectoryStream) Err() error {
	return ds.err
}
