package exfat

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestMountVolume(t *testing.T) {
	v := getTestVolume()

	bsh := v.BootSector()

	if bsh.VolumeSerialNumber != testVolumeSerial {
		t.Fatalf("volume serial-number not correct: 0x%x", bsh.VolumeSerialNumber)
	}

	if v.MainBootRegion().Header != bsh {
		t.Fatalf("main region header should be authoritative")
	}

	if v.BackupBootRegion().Header.VolumeSerialNumber != testVolumeSerial {
		t.Fatalf("backup region not loaded")
	}
}

func TestMountVolume_BadMainRegion(t *testing.T) {
	image := newTestVolumeImage()
	copy(image[3:], []byte("XXXXXXXX"))

	_, err := MountVolume(bytes.NewReader(image))
	if err == nil {
		t.Fatalf("expected a failure for a corrupt main region")
	}
}

func TestMountVolume_BadBackupRegion(t *testing.T) {
	image := newTestVolumeImage()
	copy(image[backupBootRegionSector*testSectorSize+3:], []byte("XXXXXXXX"))

	_, err := MountVolume(bytes.NewReader(image))
	if err == nil {
		t.Fatalf("expected a failure for a corrupt backup region")
	}
}

func TestVolume_CheckRegionConsistency(t *testing.T) {
	v := getTestVolume()

	err := v.CheckRegionConsistency()
	if err != nil {
		t.Fatalf("identical regions should be consistent: %s", err)
	}
}

func TestVolume_CheckRegionConsistency_StaleFieldsIgnored(t *testing.T) {
	image := newTestVolumeImage()

	// Dirty flag and a fresh usage percentage in the main copy only.
	binary.LittleEndian.PutUint16(image[106:], uint16(VolumeFlagVolumeDirty))
	image[112] = 50

	v, err := MountVolume(bytes.NewReader(image))
	if err != nil {
		t.Fatalf("could not mount: %s", err)
	}

	err = v.CheckRegionConsistency()
	if err != nil {
		t.Fatalf("stale flags should not break consistency: %s", err)
	}
}

func TestVolume_CheckRegionConsistency_Divergent(t *testing.T) {
	image := newTestVolumeImage()

	// A different serial number in the backup copy.
	binary.LittleEndian.PutUint32(image[backupBootRegionSector*testSectorSize+100:], 0x11111111)

	v, err := MountVolume(bytes.NewReader(image))
	if err != nil {
		t.Fatalf("could not mount: %s", err)
	}

	err = v.CheckRegionConsistency()
	if err != ErrBootRegionMismatch {
		t.Fatalf("divergent regions not detected: %v", err)
	}
}

func TestVolume_CheckRegionConsistency_DivergentOemParameters(t *testing.T) {
	image := newTestVolumeImage()

	image[(backupBootRegionSector+oemParametersSector)*testSectorSize] = 0xee

	v, err := MountVolume(bytes.NewReader(image))
	if err != nil {
		t.Fatalf("could not mount: %s", err)
	}

	err = v.CheckRegionConsistency()
	if err != ErrBootRegionMismatch {
		t.Fatalf("divergent OEM parameters not detected: %v", err)
	}
}

func TestVolume_ReadActiveFat(t *testing.T) {
	v := getTestVolume()

	fat, err := v.ReadActiveFat()
	if err != nil {
		t.Fatalf("could not read FAT: %s", err)
	}

	if fat.ClusterCount() != testClusterCount {
		t.Fatalf("cluster-count not correct: (%d)", fat.ClusterCount())
	}

	if fat.MediaType() != 0xf8 {
		t.Fatalf("media-type not correct: (0x%02x)", fat.MediaType())
	}

	if fat.Entry(testRootCluster).NextCluster() != testRootCluster+1 {
		t.Fatalf("root-directory link not correct")
	}
}

func TestVolume_ReadActiveFat_BadReservedEntries(t *testing.T) {
	image := newTestVolumeImage()

	binary.LittleEndian.PutUint32(image[testFatOffset*testSectorSize:], 0x000000f8)

	v, err := MountVolume(bytes.NewReader(image))
	if err != nil {
		t.Fatalf("could not mount: %s", err)
	}

	if _, err := v.ReadActiveFat(); err == nil {
		t.Fatalf("expected a failure for corrupt reserved entries")
	}
}

func TestVolume_ReadActiveFat_SecondFatMissing(t *testing.T) {
	image := newTestVolumeImage()

	// Flags select the second FAT, but the volume only carries one. The
	// backup copy needs the same flags so the mount stays consistent.
	binary.LittleEndian.PutUint16(image[106:], uint16(VolumeFlagActiveFat))
	binary.LittleEndian.PutUint16(image[backupBootRegionSector*testSectorSize+106:], uint16(VolumeFlagActiveFat))

	v, err := MountVolume(bytes.NewReader(image))
	if err != nil {
		t.Fatalf("could not mount: %s", err)
	}

	if _, err := v.ReadActiveFat(); err == nil {
		t.Fatalf("expected a failure for a missing second FAT")
	}
}

func TestVolume_GetCluster(t *testing.T) {
	v := getTestVolume()

	c, err := v.GetCluster(testFileCluster)
	if err != nil {
		t.Fatalf("could not get cluster: %s", err)
	}

	if c.ClusterNumber() != testFileCluster {
		t.Fatalf("cluster-number not correct: (%d)", c.ClusterNumber())
	}

	data, err := c.Data()
	if err != nil {
		t.Fatalf("could not read cluster: %s", err)
	}

	if len(data) != testSectorSize {
		t.Fatalf("cluster size not correct: (%d)", len(data))
	}

	if bytes.Equal(data[:len(testFileContent)], testFileContent) != true {
		t.Fatalf("cluster content not correct: %x", data[:len(testFileContent)])
	}
}

func TestVolume_GetCluster_OutOfRange(t *testing.T) {
	v := getTestVolume()

	for _, clusterNumber := range []uint32{0, 1, testClusterCount + 2} {
		if _, err := v.GetCluster(clusterNumber); err == nil {
			t.Fatalf("expected a failure for cluster-number (%d)", clusterNumber)
		}
	}
}

func TestCluster_GetSectorByIndex(t *testing.T) {
	v := getTestVolume()

	c, err := v.GetCluster(testFileCluster)
	if err != nil {
		t.Fatalf("could not get cluster: %s", err)
	}

	data, err := c.GetSectorByIndex(0)
	if err != nil {
		t.Fatalf("could not read sector: %s", err)
	}

	if bytes.Equal(data[:len(testFileContent)], testFileContent) != true {
		t.Fatalf("sector content not correct")
	}

	if _, err := c.GetSectorByIndex(1); err == nil {
		t.Fatalf("expected a failure for a sector index past the cluster")
	}
}

func TestCluster_EnumerateSectors(t *testing.T) {
	v := getTestVolume()

	c, err := v.GetCluster(testFileCluster)
	if err != nil {
		t.Fatalf("could not get cluster: %s", err)
	}

	visited := make([]uint32, 0)

	cb := func(sectorNumber uint32, data []byte) (bool, error) {
		visited = append(visited, sectorNumber)
		return true, nil
	}

	err = c.EnumerateSectors(cb)
	if err != nil {
		t.Fatalf("could not enumerate sectors: %s", err)
	}

	expectedSector := uint32(testHeapOffset + testFileCluster - 2)

	if len(visited) != 1 || visited[0] != expectedSector {
		t.Fatalf("visited sectors not correct: %v", visited)
	}
}

func TestVolume_EnumerateClusters(t *testing.T) {
	v := getTestVolume()

	fat, err := v.ReadActiveFat()
	if err != nil {
		t.Fatalf("could not read FAT: %s", err)
	}

	visited := make([]uint32, 0)

	cb := func(c *Cluster) (bool, error) {
		visited = append(visited, c.ClusterNumber())
		return true, nil
	}

	err = v.EnumerateClusters(fat, testRootCluster, cb)
	if err != nil {
		t.Fatalf("could not enumerate clusters: %s", err)
	}

	if len(visited) != 2 || visited[0] != testRootCluster || visited[1] != testRootCluster+1 {
		t.Fatalf("visited clusters not correct: %v", visited)
	}
}

func TestVolume_EnumerateClusters_Stop(t *testing.T) {
	v := getTestVolume()

	fat, err := v.ReadActiveFat()
	if err != nil {
		t.Fatalf("could not read FAT: %s", err)
	}

	count := 0

	cb := func(c *Cluster) (bool, error) {
		count++
		return false, nil
	}

	err = v.EnumerateClusters(fat, testRootCluster, cb)
	if err != nil {
		t.Fatalf("could not enumerate clusters: %s", err)
	}

	if count != 1 {
		t.Fatalf("enumeration did not stop: (%d) visits", count)
	}
}

func TestVolume_EnumerateClusters_BadCluster(t *testing.T) {
	image := newTestVolumeImage()

	// The root chain's second cluster is marked bad.
	binary.LittleEndian.PutUint32(image[testFatOffset*testSectorSize+(testRootCluster+1)*4:], 0xfffffff7)

	v, err := MountVolume(bytes.NewReader(image))
	if err != nil {
		t.Fatalf("could not mount: %s", err)
	}

	fat, err := v.ReadActiveFat()
	if err != nil {
		t.Fatalf("could not read FAT: %s", err)
	}

	visited := make([]uint32, 0)

	cb := func(c *Cluster) (bool, error) {
		visited = append(visited, c.ClusterNumber())
		return true, nil
	}

	err = v.EnumerateClusters(fat, testRootCluster, cb)

	bce, ok := err.(*BadClusterError)
	if ok != true {
		t.Fatalf("fault not a bad-cluster error: %v", err)
	}

	if bce.LeadingCluster != testRootCluster || bce.BadCluster != testRootCluster+1 {
		t.Fatalf("fault clusters not correct: (%d) (%d)", bce.LeadingCluster, bce.BadCluster)
	}

	if len(visited) != 1 || visited[0] != testRootCluster {
		t.Fatalf("visited clusters not correct: %v", visited)
	}
}

func TestVolume_WriteFromClusterChain(t *testing.T) {
	v := getTestVolume()

	fat, err := v.ReadActiveFat()
	if err != nil {
		t.Fatalf("could not read FAT: %s", err)
	}

	b := new(bytes.Buffer)

	visited, err := v.WriteFromClusterChain(fat, testFileCluster, uint64(len(testFileContent)), b)
	if err != nil {
		t.Fatalf("could not write content: %s", err)
	}

	if bytes.Equal(b.Bytes(), testFileContent) != true {
		t.Fatalf("content not correct: %x", b.Bytes())
	}

	if len(visited) != 1 || visited[0] != testFileCluster {
		t.Fatalf("visited clusters not correct: %v", visited)
	}
}

func TestVolume_EnumerateDirectoryEntries(t *testing.T) {
	v := getTestVolume()

	fat, err := v.ReadActiveFat()
	if err != nil {
		t.Fatalf("could not read FAT: %s", err)
	}

	types := make([]EntryType, 0)

	cb := func(de DirectoryEntry) (bool, error) {
		types = append(types, de.EntryType())
		return true, nil
	}

	err = v.EnumerateDirectoryEntries(fat, testRootCluster, cb)
	if err != nil {
		t.Fatalf("could not enumerate directory: %s", err)
	}

	if len(types) != 4 {
		t.Fatalf("record count not correct: %v", types)
	}

	if types[0] != 0x83 || types[1] != 0x85 || types[2] != 0xc0 || types[3] != 0xc1 {
		t.Fatalf("record types not correct: %v", types)
	}
}

func TestVolume_EnumerateDirectoryEntries_Decoded(t *testing.T) {
	v := getTestVolume()

	fat, err := v.ReadActiveFat()
	if err != nil {
		t.Fatalf("could not read FAT: %s", err)
	}

	var label string
	var name string
	var firstCluster uint32
	var dataLength uint64

	cb := func(de DirectoryEntry) (bool, error) {
		typed, err := de.Decode()
		if err != nil {
			return false, err
		}

		switch entry := typed.(type) {
		case *VolumeLabelEntry:
			label = entry.Label()
		case *FileNameEntry:
			name += entry.Part()
		case *StreamExtensionEntry:
			firstCluster = entry.FirstCluster
			dataLength = entry.DataLength
		}

		return true, nil
	}

	err = v.EnumerateDirectoryEntries(fat, testRootCluster, cb)
	if err != nil {
		t.Fatalf("could not enumerate directory: %s", err)
	}

	if label != "TEST" {
		t.Fatalf("volume label not correct: [%s]", label)
	}

	if name != "test.txt" {
		t.Fatalf("file name not correct: [%s]", name)
	}

	if firstCluster != testFileCluster || dataLength != uint64(len(testFileContent)) {
		t.Fatalf("stream allocation not correct: (%d) (%d)", firstCluster, dataLength)
	}
}
