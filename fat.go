package exfat

import (
	"io"
	"reflect"

	"github.com/dsoprea/go-logging"
)

// Sentinel FAT values. Every other value is the index of the next cluster
// in the chain.
const (
	fatEntryBad  = 0xfffffff7
	fatEntryLast = 0xffffffff
)

// FatEntry is a single 32-bit FAT value. It describes the cluster with the
// same index as the entry but does not store that index itself.
type FatEntry uint32

// IsBad indicates that the corresponding cluster is marked as having one or
// more bad sectors.
func (fe FatEntry) IsBad() bool {
	return fe == fatEntryBad
}

// IsLast indicates that the corresponding cluster is the last one in its
// chain.
func (fe FatEntry) IsLast() bool {
	return fe == fatEntryLast
}

// NextCluster returns the value as the index of the next cluster in the
// chain. Only meaningful when neither IsBad nor IsLast is true.
func (fe FatEntry) NextCluster() uint32 {
	return uint32(fe)
}

// Fat is an immutable snapshot of one file-allocation table. Entry zero
// carries the media type, entry one is reserved, and entries two through
// cluster-count-plus-one each describe the like-numbered heap cluster. Once
// constructed it may be shared freely between concurrent readers.
type Fat struct {
	entries []FatEntry
}

// NewFatFromBytes decodes a FAT from raw table bytes, entry by entry. The
// byte count must be a multiple of four; anything else is a caller error,
// reported as *FatSizeError rather than truncated to fit.
func NewFatFromBytes(data []byte) (fat *Fat, err error) {
	if len(data)%4 != 0 {
		return nil, &FatSizeError{ByteCount: len(data)}
	}

	entries := make([]FatEntry, len(data)/4)
	for i := range entries {
		entries[i] = FatEntry(defaultEncoding.Uint32(data[i*4:]))
	}

	fat = &Fat{
		entries: entries,
	}

	return fat, nil
}

// ReadFatAt reads byteCount bytes at the given absolute byte offset of a
// random-access source and decodes them as a FAT. The multiple-of-four
// contract of NewFatFromBytes applies, and is checked before any I/O.
func ReadFatAt(ra io.ReaderAt, offset int64, byteCount int) (fat *Fat, err error) {
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

	if byteCount%4 != 0 {
		return nil, &FatSizeError{ByteCount: byteCount}
	}

	raw := make([]byte, byteCount)

	_, err = ra.ReadAt(raw, offset)
	log.PanicIf(err)

	fat, err = NewFatFromBytes(raw)
	log.PanicIf(err)

	return fat, nil
}

// EntryCount returns the number of entries in the table, including the two
// reserved leading entries.
func (fat *Fat) EntryCount() uint32 {
	return uint32(len(fat.entries))
}

// ClusterCount returns the number of heap clusters the table describes.
func (fat *Fat) ClusterCount() uint32 {
	if len(fat.entries) < 2 {
		return 0
	}

	return uint32(len(fat.entries) - 2)
}

// MediaType returns the media-type byte carried in the low byte of entry
// zero. The common value is 0xf8.
func (fat *Fat) MediaType() uint8 {
	return uint8(fat.entries[0] & 0xff)
}

// Entry returns the FAT entry for the given cluster. Entries zero and one
// are not cluster addresses; asking for them, or for an entry past the end
// of the table, is a programming error and panics.
func (fat *Fat) Entry(clusterNumber uint32) FatEntry {
	if clusterNumber < 2 || clusterNumber >= fat.EntryCount() {
		log.Panicf("cluster-number is not a valid cluster address: (%d)", clusterNumber)
	}

	return fat.entries[clusterNumber]
}

// CheckReservedEntries validates the two reserved leading entries: entry
// zero must carry the media type under fixed high bits and entry one is
// pinned to 0xffffffff.
func (fat *Fat) CheckReservedEntries() (err error) {
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

	if len(fat.entries) < 2 {
		log.Panicf("FAT too short to hold its reserved entries: (%d)", len(fat.entries))
	}

	if uint32(fat.entries[0])&0xffffff00 != 0xffffff00 || fat.MediaType() != 0xf8 {
		log.Panicf("media-type entry not correct: (0x%08x)", uint32(fat.entries[0]))
	}

	if fat.entries[1] != 0xffffffff {
		log.Panicf("second FAT entry has unexpected value: (0x%08x)", uint32(fat.entries[1]))
	}

	return nil
}
