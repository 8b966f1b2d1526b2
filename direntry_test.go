package exfat

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestEntryType_FileEntryDecomposition(t *testing.T) {
	// A file record: type-code five, critical, primary, in use.
	et := EntryType(0x85)

	if et.TypeCode() != 5 {
		t.Fatalf("type-code not correct: (%d)", et.TypeCode())
	}

	if et.IsCritical() != true || et.IsBenign() != false {
		t.Fatalf("importance not correct")
	}

	if et.IsPrimary() != true || et.IsSecondary() != false {
		t.Fatalf("category not correct")
	}

	if et.IsInUse() != true {
		t.Fatalf("in-use not correct")
	}

	if et.IsRegular() != true || et.IsEndOfDirectory() != false || et.IsUnusedEntryMarker() != false {
		t.Fatalf("classification not correct")
	}
}

func TestEntryType_StreamExtensionDecomposition(t *testing.T) {
	// A stream extension: type-code zero, critical, secondary, in use.
	et := EntryType(0xc0)

	if et.TypeCode() != 0 {
		t.Fatalf("type-code not correct: (%d)", et.TypeCode())
	}

	if et.IsCritical() != true {
		t.Fatalf("importance not correct")
	}

	if et.IsSecondary() != true {
		t.Fatalf("category not correct")
	}

	if et.IsInUse() != true {
		t.Fatalf("in-use not correct")
	}
}

func TestEntryType_EndOfDirectory(t *testing.T) {
	et := EntryType(0)

	if et.IsEndOfDirectory() != true {
		t.Fatalf("end-of-directory not detected")
	}

	if et.IsRegular() != false || et.IsUnusedEntryMarker() != false {
		t.Fatalf("classification not correct")
	}
}

func TestEntryType_UnusedRange(t *testing.T) {
	for _, et := range []EntryType{0x01, 0x40, 0x7f} {
		if et.IsUnusedEntryMarker() != true {
			t.Fatalf("unused marker not detected: (0x%02x)", uint8(et))
		}

		if et.IsRegular() != false || et.IsEndOfDirectory() != false {
			t.Fatalf("classification not correct: (0x%02x)", uint8(et))
		}
	}
}

func TestNewDirectoryEntry(t *testing.T) {
	raw := make([]byte, DirectoryEntrySize)
	raw[0] = 0x85
	raw[1] = 0x02
	binary.LittleEndian.PutUint32(raw[20:], 9)
	binary.LittleEndian.PutUint64(raw[24:], 4096)

	de, err := NewDirectoryEntry(raw)
	if err != nil {
		t.Fatalf("could not parse directory entry: %s", err)
	}

	if de.EntryType() != 0x85 {
		t.Fatalf("entry-type not correct: (0x%02x)", uint8(de.EntryType()))
	}

	if de.FirstCluster() != 9 {
		t.Fatalf("first-cluster not correct: (%d)", de.FirstCluster())
	}

	if de.DataLength() != 4096 {
		t.Fatalf("data-length not correct: (%d)", de.DataLength())
	}

	payload := de.CustomDefined()

	if len(payload) != 19 || payload[0] != 0x02 {
		t.Fatalf("payload not correct: %x", payload)
	}

	if bytes.Equal(de.Raw(), raw) != true {
		t.Fatalf("raw copy not correct")
	}
}

func TestNewDirectoryEntry_WrongLength(t *testing.T) {
	_, err := NewDirectoryEntry(make([]byte, DirectoryEntrySize-1))
	if err == nil {
		t.Fatalf("expected a failure for a short buffer")
	}
}

func TestNewDirectoryEntry_CopiesBuffer(t *testing.T) {
	raw := make([]byte, DirectoryEntrySize)
	raw[0] = 0x85

	de, err := NewDirectoryEntry(raw)
	if err != nil {
		t.Fatalf("could not parse directory entry: %s", err)
	}

	raw[0] = 0x00

	if de.EntryType() != 0x85 {
		t.Fatalf("entry is aliased to the caller's buffer")
	}
}

func TestDirectoryStream(t *testing.T) {
	data := make([]byte, DirectoryEntrySize*4)
	data[0] = 0x83
	data[DirectoryEntrySize] = 0x85

	// The third record terminates the stream; the fourth is undefined and
	// must never surface.
	data[DirectoryEntrySize*3] = 0xc0

	ds := NewDirectoryStream(data)

	types := make([]EntryType, 0)
	for ds.Next() == true {
		types = append(types, ds.Entry().EntryType())
	}

	if len(types) != 2 || types[0] != 0x83 || types[1] != 0x85 {
		t.Fatalf("yielded records not correct: %v", types)
	}

	if ds.AtEnd() != true {
		t.Fatalf("terminator not detected")
	}

	if ds.Err() != nil {
		t.Fatalf("a terminated stream should not fault: %s", ds.Err())
	}
}

func TestDirectoryStream_NoTerminator(t *testing.T) {
	data := make([]byte, DirectoryEntrySize*2)
	data[0] = 0x83
	data[DirectoryEntrySize] = 0x85

	ds := NewDirectoryStream(data)

	count := 0
	for ds.Next() == true {
		count++
	}

	if count != 2 {
		t.Fatalf("yielded record count not correct: (%d)", count)
	}

	if ds.AtEnd() != false {
		t.Fatalf("a stream that ran out of bytes is not at a terminator")
	}

	if ds.Err() != nil {
		t.Fatalf("running out of bytes is not a fault: %s", ds.Err())
	}
}

func TestDirectoryStream_TruncatedRecord(t *testing.T) {
	data := make([]byte, DirectoryEntrySize+10)
	data[0] = 0x83
	data[DirectoryEntrySize] = 0x85

	ds := NewDirectoryStream(data)

	count := 0
	for ds.Next() == true {
		count++
	}

	if count != 1 {
		t.Fatalf("yielded record count not correct: (%d)", count)
	}

	if ds.Err() == nil {
		t.Fatalf("expected a fault for a truncated record")
	}
}

func TestDirectoryStream_Empty(t *testing.T) {
	ds := NewDirectoryStream(nil)

	if ds.Next() != false {
		t.Fatalf("an empty stream should yield nothing")
	}

	if ds.AtEnd() != false || ds.Err() != nil {
		t.Fatalf("empty-stream state not correct")
	}
}
