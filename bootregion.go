package exfat

import (
	"io"
)

// BootRegion composes the validated boot-sector header with the OEM
// parameter area that follows it on disk. A volume stores two of these: the
// main region and a backup copy.
type BootRegion struct {
	Header        *BootSectorHeader
	OemParameters *OemParameters
}

// LoadBootRegion reads one complete boot region starting at the given
// absolute byte offset of a random-access source. The OEM parameter area
// sits nine sectors into the region, where the sector size comes from the
// just-validated header rather than being assumed to be 512.
func LoadBootRegion(ra io.ReaderAt, offset int64) (br *BootRegion, err error) {
	bsh, err := NewBootSectorHeaderFromReaderAt(ra, offset)
	if err != nil {
		return nil, &BootRegionLoadError{Structure: "boot-sector", Cause: err}
	}

	oemOffset := offset + int64(bsh.SectorSize())*oemParametersSector

	oem, err := NewOemParametersFromReaderAt(ra, oemOffset)
	if err != nil {
		return nil, &BootRegionLoadError{Structure: "oem-parameters", Cause: err}
	}

	br = &BootRegion{
		Header:        bsh,
		OemParameters: oem,
	}

	return br, nil
}
