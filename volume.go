package exfat

import (
	"errors"
	"io"
	"reflect"

	"github.com/dsoprea/go-logging"
)

const (
	// backupBootRegionSector is the volume-relative sector of the backup
	// boot region.
	backupBootRegionSector = 24
)

// ErrBootRegionMismatch indicates the two boot regions of a volume are not
// field-for-field consistent.
var ErrBootRegionMismatch = errors.New("boot regions are not consistent")

// Volume is a mounted exFAT volume: both boot regions plus the handle to
// the backing store. The main region is authoritative. The volume performs
// no writes and holds no mutable state, so it may be shared between
// concurrent readers as long as the store tolerates concurrent ReadAt.
type Volume struct {
	ra io.ReaderAt

	bootRegions [2]*BootRegion
}

// MountVolume loads and validates both boot regions of the store: the main
// region at byte zero and the backup at sector 24, where the sector size
// comes from the already-validated main header rather than being assumed.
func MountVolume(ra io.ReaderAt) (v *Volume, err error) {
	main, err := LoadBootRegion(ra, 0)
	if err != nil {
		return nil, err
	}

	backupOffset := int64(backupBootRegionSector) * int64(main.Header.SectorSize())

	backup, err := LoadBootRegion(ra, backupOffset)
	if err != nil {
		return nil, err
	}

	v = &Volume{
		ra:          ra,
		bootRegions: [2]*BootRegion{main, backup},
	}

	return v, nil
}

// BootSector returns the authoritative boot-sector header (the main one).
func (v *Volume) BootSector() *BootSectorHeader {
	return v.bootRegions[0].Header
}

// MainBootRegion returns the main boot region.
func (v *Volume) MainBootRegion() *BootRegion {
	return v.bootRegions[0]
}

// BackupBootRegion returns the backup boot region.
func (v *Volume) BackupBootRegion() *BootRegion {
	return v.bootRegions[1]
}

// CheckRegionConsistency compares the two boot regions field for field and
// returns ErrBootRegionMismatch on divergence. VolumeFlags and PercentInUse
// are excluded from the comparison: the backup copies of both are stale by
// definition. Recovery policy on divergence belongs to the caller.
func (v *Volume) CheckRegionConsistency() error {
	main := *v.bootRegions[0].Header
	backup := *v.bootRegions[1].Header

	main.VolumeFlags = 0
	backup.VolumeFlags = 0
	main.PercentInUse = 0
	backup.PercentInUse = 0

	if main != backup {
		return ErrBootRegionMismatch
	}

	if *v.bootRegions[0].OemParameters != *v.bootRegions[1].OemParameters {
		return ErrBootRegionMismatch
	}

	return nil
}

// ReadActiveFat reads the FAT that the volume flags mark active and checks
// its reserved leading entries. The snapshot covers exactly the entries
// that describe the cluster heap.
func (v *Volume) ReadActiveFat() (fat *Fat, err error) {
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

	bsh := v.BootSector()

	fatNumber := uint64(0)
	if bsh.VolumeFlags.UseSecondFat() == true {
		if bsh.NumberOfFats < 2 {
			log.Panicf("volume flags select the second FAT but only one FAT is present")
		}

		fatNumber = 1
	}

	offset := (uint64(bsh.FatOffset) + uint64(bsh.FatLength)*fatNumber) * uint64(bsh.SectorSize())
	byteCount := (uint64(bsh.ClusterCount) + 2) * 4

	fat, err = ReadFatAt(v.ra, int64(offset), int(byteCount))
	log.PanicIf(err)

	err = fat.CheckReservedEntries()
	log.PanicIf(err)

	return fat, nil
}

// Cluster provides bounds-checked access to the sectors of one cluster in
// the cluster heap.
type Cluster struct {
	v *Volume

	clusterNumber     uint32
	clusterSize       uint32
	sectorsPerCluster uint32
	clusterOffset     int64
}

// GetCluster returns an accessor for the given cluster. Only clusters two
// through cluster-count-plus-one exist in the heap; anything else is a
// programming error.
func (v *Volume) GetCluster(clusterNumber uint32) (c *Cluster, err error) {
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

	bsh := v.BootSector()

	if clusterNumber < 2 || clusterNumber > bsh.ClusterCount+1 {
		log.Panicf("cluster-number out of range: (%d)", clusterNumber)
	}

	clusterSize := bsh.ClusterSize()
	heapOffset := int64(bsh.ClusterHeapOffset) * int64(bsh.SectorSize())

	// Cluster two is the first one stored in the heap.
	clusterOffset := heapOffset + int64(clusterSize)*int64(clusterNumber-2)

	c = &Cluster{
		v: v,

		clusterNumber:     clusterNumber,
		clusterSize:       clusterSize,
		sectorsPerCluster: bsh.SectorsPerCluster(),
		clusterOffset:     clusterOffset,
	}

	return c, nil
}

// ClusterNumber returns the number of the cluster this accessor represents.
func (c *Cluster) ClusterNumber() uint32 {
	return c.clusterNumber
}

// GetSectorByIndex reads one sector of the cluster.
func (c *Cluster) GetSectorByIndex(sectorIndex uint32) (data []byte, err error) {
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

	if sectorIndex >= c.sectorsPerCluster {
		log.Panicf("sector-index exceeds the number of sectors per cluster: (%d) >= (%d)", sectorIndex, c.sectorsPerCluster)
	}

	sectorSize := c.v.BootSector().SectorSize()

	data = make([]byte, sectorSize)

	_, err = c.v.ra.ReadAt(data, c.clusterOffset+int64(sectorSize)*int64(sectorIndex))
	log.PanicIf(err)

	return data, nil
}

// Data reads the cluster's full payload.
func (c *Cluster) Data() (data []byte, err error) {
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

	data = make([]byte, c.clusterSize)

	_, err = c.v.ra.ReadAt(data, c.clusterOffset)
	log.PanicIf(err)

	return data, nil
}

// SectorVisitorFunc is a visitor callback that is called for each sector in
// a cluster.
type SectorVisitorFunc func(sectorNumber uint32, data []byte) (doContinue bool, err error)

// EnumerateSectors calls the given callback for each sector in the cluster
// that this accessor represents.
func (c *Cluster) EnumerateSectors(cb SectorVisitorFunc) (err error) {
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

	sectorSize := c.v.BootSector().SectorSize()
	firstSectorNumber := uint32(c.clusterOffset / int64(sectorSize))

	for i := uint32(0); i < c.sectorsPerCluster; i++ {
		sectorData, err := c.GetSectorByIndex(i)
		log.PanicIf(err)

		doContinue, err := cb(firstSectorNumber+i, sectorData)
		log.PanicIf(err)

		if doContinue == false {
			break
		}
	}

	return nil
}

// ClusterVisitorFunc is a visitor callback as all clusters in a chain are
// visited.
type ClusterVisitorFunc func(c *Cluster) (doContinue bool, err error)

// EnumerateClusters calls the given callback for every data cluster of the
// chain rooted at firstClusterNumber, including the final one. Chain faults
// surface as the returned error once all clusters before the fault have
// been visited.
func (v *Volume) EnumerateClusters(fat *Fat, firstClusterNumber uint32, cb ClusterVisitorFunc) (err error) {
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

	previous := firstClusterNumber
	current := firstClusterNumber
	steps := uint32(0)

	for {
		if current < 2 || current >= fat.EntryCount() {
			return &InvalidChainLinkError{LeadingCluster: previous, Link: current}
		}

		entry := fat.Entry(current)

		if entry.IsBad() == true {
			return &BadClusterError{LeadingCluster: previous, BadCluster: current}
		}

		steps++
		if steps > fat.ClusterCount()+1 {
			return &ChainTooLongError{StartingCluster: firstClusterNumber, Steps: steps}
		}

		c, err := v.GetCluster(current)
		log.PanicIf(err)

		doContinue, err := cb(c)
		log.PanicIf(err)

		if doContinue == false {
			return nil
		}

		if entry.IsLast() == true {
			return nil
		}

		previous = current
		current = entry.NextCluster()
	}
}

// WriteFromClusterChain writes dataSize bytes of chain content, starting at
// the given cluster, to w. The final sector is truncated so exactly
// dataSize bytes come out.
func (v *Volume) WriteFromClusterChain(fat *Fat, firstClusterNumber uint32, dataSize uint64, w io.Writer) (visitedClusters []uint32, err error) {
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

	sectorSize := v.BootSector().SectorSize()
	tailFragmentSize := dataSize % uint64(sectorSize)

	written := uint64(0)
	sectorCount := uint32(0)
	doContinue := true

	visitedClusters = make([]uint32, 0)

	cvf := func(c *Cluster) (doContinueCluster bool, err error) {
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

		visitedClusters = append(visitedClusters, c.ClusterNumber())

		svf := func(sectorNumber uint32, data []byte) (doContinueSector bool, err error) {
			// If we're in the last sector.
			if uint64(sectorCount+1)*uint64(sectorSize) > dataSize {
				if tailFragmentSize > 0 {
					data = data[:tailFragmentSize]
				}

				doContinue = false
			}

			_, err = w.Write(data)
			log.PanicIf(err)

			written += uint64(len(data))
			sectorCount++

			return doContinue, nil
		}

		err = c.EnumerateSectors(svf)
		log.PanicIf(err)

		return doContinue, nil
	}

	err = v.EnumerateClusters(fat, firstClusterNumber, cvf)
	if err != nil {
		return nil, err
	}

	if written != dataSize {
		log.Panicf("written bytes do not equal data-size: (%d) != (%d)", written, dataSize)
	}

	return visitedClusters, nil
}

// DirectoryEntryVisitorFunc receives each directory record until the
// end-of-directory marker or until the callback stops the enumeration.
type DirectoryEntryVisitorFunc func(de DirectoryEntry) (doContinue bool, err error)

// EnumerateDirectoryEntries walks the directory stream rooted at
// firstClusterNumber, visiting each 32-byte record across the cluster
// chain until the end-of-directory record.
func (v *Volume) EnumerateDirectoryEntries(fat *Fat, firstClusterNumber uint32, cb DirectoryEntryVisitorFunc) (err error) {
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

	cvf := func(c *Cluster) (doContinue bool, err error) {
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

		data, err := c.Data()
		log.PanicIf(err)

		ds := NewDirectoryStream(data)
		for ds.Next() == true {
			doContinueEntry, err := cb(ds.Entry())
			log.PanicIf(err)

			if doContinueEntry == false {
				return false, nil
			}
		}

		err = ds.Err()
		log.PanicIf(err)

		if ds.AtEnd() == true {
			return false, nil
		}

		return true, nil
	}

	err = v.EnumerateClusters(fat, firstClusterNumber, cvf)
	if err != nil {
		return err
	}

	return nil
}
