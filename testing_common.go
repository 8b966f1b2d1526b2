package exfat

import (
	"bytes"
	"encoding/binary"
	"unicode/utf16"

	"github.com/dsoprea/go-logging"
)

// The synthetic test volume is tiny but structurally complete: both boot
// regions, one FAT, and a cluster heap holding a two-cluster root directory
// and a one-cluster file.
const (
	testSectorSize   = 512
	testFatOffset    = 40
	testFatLength    = 2
	testHeapOffset   = 48
	testClusterCount = 16
	testVolumeLength = 128
	testRootCluster  = 4
	testFileCluster  = 8
	testVolumeSerial = 0x3d51a058
	// 2020-06-15 12:30:10
	testFileTimestampRaw = 0x50cf63ca
)

var (
	testFileContent = []byte("Hello, exFAT!")
)

func utf16leBytes(s string, byteCount int) []byte {
	encoded := make([]byte, byteCount)

	for i, unit := range utf16.Encode([]rune(s)) {
		binary.LittleEndian.PutUint16(encoded[i*2:], unit)
	}

	return encoded
}

func newTestBootSectorBytes() []byte {
	raw := make([]byte, BootSectorHeaderSize)

	copy(raw[0:], []byte{0xeb, 0x76, 0x90})
	copy(raw[3:], requiredFilesystemName)

	binary.LittleEndian.PutUint64(raw[64:], 0)
	binary.LittleEndian.PutUint64(raw[72:], testVolumeLength)
	binary.LittleEndian.PutUint32(raw[80:], testFatOffset)
	binary.LittleEndian.PutUint32(raw[84:], testFatLength)
	binary.LittleEndian.PutUint32(raw[88:], testHeapOffset)
	binary.LittleEndian.PutUint32(raw[92:], testClusterCount)
	binary.LittleEndian.PutUint32(raw[96:], testRootCluster)
	binary.LittleEndian.PutUint32(raw[100:], testVolumeSerial)

	// Revision 1.0.
	raw[104] = 0
	raw[105] = 1

	binary.LittleEndian.PutUint16(raw[106:], 0)

	raw[108] = 9
	raw[109] = 0
	raw[110] = 1
	raw[111] = 0x80
	raw[112] = 0xff

	binary.LittleEndian.PutUint16(raw[510:], 0xaa55)

	return raw
}

func newTestOemParametersBytes() []byte {
	raw := make([]byte, OemParametersSize)

	copy(raw[0:], []byte{
		0x0a, 0x1b, 0x2c, 0x3d, 0x4e, 0x5f, 0x60, 0x71,
		0x82, 0x93, 0xa4, 0xb5, 0xc6, 0xd7, 0xe8, 0xf9,
	})

	copy(raw[16:], []byte("flash parameters"))

	return raw
}

func writeTestRecord(image []byte, recordIndex int, record []byte) {
	offset := (testHeapOffset+testRootCluster-2)*testSectorSize + recordIndex*DirectoryEntrySize
	copy(image[offset:], record)
}

// newTestVolumeImage assembles the full test volume. The root directory
// holds a volume label, then a file entry set for test.txt pointing at its
// single-cluster content, then the end-of-directory record.
func newTestVolumeImage() []byte {
	image := make([]byte, testVolumeLength*testSectorSize)

	bootSector := newTestBootSectorBytes()
	oemParameters := newTestOemParametersBytes()

	copy(image[0:], bootSector)
	copy(image[oemParametersSector*testSectorSize:], oemParameters)

	copy(image[backupBootRegionSector*testSectorSize:], bootSector)
	copy(image[(backupBootRegionSector+oemParametersSector)*testSectorSize:], oemParameters)

	// The FAT maps the root directory to clusters four and five, and the
	// file content to the single cluster eight.
	fatOffset := testFatOffset * testSectorSize

	putFatEntry := func(clusterNumber, value uint32) {
		binary.LittleEndian.PutUint32(image[fatOffset+int(clusterNumber)*4:], value)
	}

	putFatEntry(0, 0xfffffff8)
	putFatEntry(1, 0xffffffff)
	putFatEntry(testRootCluster, testRootCluster+1)
	putFatEntry(testRootCluster+1, 0xffffffff)
	putFatEntry(testFileCluster, 0xffffffff)

	volumeLabel := make([]byte, DirectoryEntrySize)
	volumeLabel[0] = 0x83
	volumeLabel[1] = 4
	copy(volumeLabel[2:], utf16leBytes("TEST", 30))

	fileEntry := make([]byte, DirectoryEntrySize)
	fileEntry[0] = 0x85
	fileEntry[1] = 2
	binary.LittleEndian.PutUint16(fileEntry[4:], 0x20)
	binary.LittleEndian.PutUint32(fileEntry[8:], testFileTimestampRaw)
	binary.LittleEndian.PutUint32(fileEntry[12:], testFileTimestampRaw)
	binary.LittleEndian.PutUint32(fileEntry[16:], testFileTimestampRaw)

	streamExtension := make([]byte, DirectoryEntrySize)
	streamExtension[0] = 0xc0
	streamExtension[1] = 0x01
	streamExtension[3] = 8
	binary.LittleEndian.PutUint16(streamExtension[4:], 0x2f8a)
	binary.LittleEndian.PutUint64(streamExtension[8:], uint64(len(testFileContent)))
	binary.LittleEndian.PutUint32(streamExtension[20:], testFileCluster)
	binary.LittleEndian.PutUint64(streamExtension[24:], uint64(len(testFileContent)))

	fileName := make([]byte, DirectoryEntrySize)
	fileName[0] = 0xc1
	copy(fileName[2:], utf16leBytes("test.txt", 30))

	writeTestRecord(image, 0, volumeLabel)
	writeTestRecord(image, 1, fileEntry)
	writeTestRecord(image, 2, streamExtension)
	writeTestRecord(image, 3, fileName)

	fileContentOffset := (testHeapOffset + testFileCluster - 2) * testSectorSize
	copy(image[fileContentOffset:], testFileContent)

	return image
}

func getTestVolume() *Volume {
	r := bytes.NewReader(newTestVolumeImage())

	v, err := MountVolume(r)
	log.PanicIf(err)

	return v
}
