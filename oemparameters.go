package exfat

import (
	"fmt"
	"io"
	"reflect"

	"github.com/dsoprea/go-logging"
)

const (
	// OemParameterSize is the fixed size of one OEM parameter slot.
	OemParameterSize = 48

	// OemParameterCount is the fixed number of slots in the OEM parameter
	// area.
	OemParameterCount = 10

	// OemParametersSize is the fixed size of the whole OEM parameter area.
	OemParametersSize = OemParameterSize * OemParameterCount

	// oemParametersSector is the boot-region-relative sector that holds the
	// OEM parameter area.
	oemParametersSector = 9
)

// OemParameter is one OEM parameter slot: a UUID naming the parameter type,
// followed by 32 bytes of data whose meaning that UUID defines. Any bit
// pattern is legal data.
type OemParameter struct {
	Uuid      [16]byte
	Parameter [32]byte
}

// NewOemParameter decodes one slot from exactly 48 bytes.
func NewOemParameter(data []byte) (op OemParameter, err error) {
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

	if len(data) != OemParameterSize {
		log.Panicf("OEM-parameter buffer has wrong length: (%d)", len(data))
	}

	copy(op.Uuid[:], data[:16])
	copy(op.Parameter[:], data[16:])

	return op, nil
}

// IsUsed indicates that the slot carries a parameter. A slot with an
// all-zero UUID is unused.
func (op OemParameter) IsUsed() bool {
	for _, c := range op.Uuid {
		if c != 0 {
			return true
		}
	}

	return false
}

// String returns a description of the slot.
func (op OemParameter) String() string {
	return fmt.Sprintf("OemParameter<UUID=(0x%032x) IS-USED=[%v]>", op.Uuid, op.IsUsed())
}

// OemParameters is the fixed set of ten OEM parameter slots. The area has
// no ordering or uniqueness requirements among its slots.
type OemParameters struct {
	Parameters [OemParameterCount]OemParameter
}

// NewOemParameters decodes the whole area from exactly 480 bytes, slot by
// slot.
func NewOemParameters(data []byte) (oem *OemParameters, err error) {
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

	if len(data) != OemParametersSize {
		log.Panicf("OEM-parameters buffer has wrong length: (%d)", len(data))
	}

	oem = new(OemParameters)
	for i := 0; i < OemParameterCount; i++ {
		op, err := NewOemParameter(data[i*OemParameterSize : (i+1)*OemParameterSize])
		log.PanicIf(err)

		oem.Parameters[i] = op
	}

	return oem, nil
}

// NewOemParametersFromReaderAt reads and decodes the area at the given
// absolute byte offset of a random-access source.
func NewOemParametersFromReaderAt(ra io.ReaderAt, offset int64) (oem *OemParameters, err error) {
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

	raw := make([]byte, OemParametersSize)

	_, err = ra.ReadAt(raw, offset)
	log.PanicIf(err)

	oem, err = NewOemParameters(raw)
	log.PanicIf(err)

	return oem, nil
}

// UsedCount returns the number of slots that carry a parameter.
func (oem *OemParameters) UsedCount() int {
	hits := 0
	for _, op := range oem.Parameters {
		if op.IsUsed() == true {
			hits++
		}
	}

	return hits
}

// Dump prints the state of each slot.
func (oem *OemParameters) Dump() {
	fmt.Printf("OEM Parameters\n")
	fmt.Printf("==============\n")
	fmt.Printf("\n")

	for i, op := range oem.Parameters {
		fmt.Printf("%2d: %s\n", i, op)
	}

	fmt.Printf("\n")
}
