package exfat

import (
	"bytes"
	"testing"
)

func TestNewOemParameter(t *testing.T) {
	raw := make([]byte, OemParameterSize)
	raw[0] = 0xaa
	raw[16] = 0xbb

	op, err := NewOemParameter(raw)
	if err != nil {
		t.Fatalf("could not parse OEM parameter: %s", err)
	}

	if op.Uuid[0] != 0xaa {
		t.Fatalf("UUID not correct: %x", op.Uuid)
	}

	if op.Parameter[0] != 0xbb {
		t.Fatalf("parameter data not correct: %x", op.Parameter)
	}

	if op.IsUsed() != true {
		t.Fatalf("slot with a non-zero UUID should be used")
	}
}

func TestNewOemParameter_WrongLength(t *testing.T) {
	_, err := NewOemParameter(make([]byte, OemParameterSize-1))
	if err == nil {
		t.Fatalf("expected a failure for a short buffer")
	}
}

func TestOemParameter_IsUsed_ZeroUuid(t *testing.T) {
	raw := make([]byte, OemParameterSize)

	// Non-zero data does not make a slot used; only the UUID does.
	raw[20] = 0xcc

	op, err := NewOemParameter(raw)
	if err != nil {
		t.Fatalf("could not parse OEM parameter: %s", err)
	}

	if op.IsUsed() != false {
		t.Fatalf("slot with a zero UUID should be unused")
	}
}

func TestNewOemParameters(t *testing.T) {
	oem, err := NewOemParameters(newTestOemParametersBytes())
	if err != nil {
		t.Fatalf("could not parse OEM parameters: %s", err)
	}

	if oem.UsedCount() != 1 {
		t.Fatalf("used-count not correct: (%d)", oem.UsedCount())
	}

	if oem.Parameters[0].IsUsed() != true {
		t.Fatalf("first slot should be used")
	}

	if bytes.Equal(oem.Parameters[0].Parameter[:16], []byte("flash parameters")) != true {
		t.Fatalf("first slot data not correct: %x", oem.Parameters[0].Parameter)
	}

	for i := 1; i < OemParameterCount; i++ {
		if oem.Parameters[i].IsUsed() != false {
			t.Fatalf("slot (%d) should be unused", i)
		}
	}
}

func TestNewOemParameters_WrongLength(t *testing.T) {
	_, err := NewOemParameters(make([]byte, OemParametersSize+1))
	if err == nil {
		t.Fatalf("expected a failure for a missized buffer")
	}
}

func TestNewOemParametersFromReaderAt(t *testing.T) {
	ra := bytes.NewReader(newTestVolumeImage())

	oem, err := NewOemParametersFromReaderAt(ra, oemParametersSector*testSectorSize)
	if err != nil {
		t.Fatalf("could not read OEM parameters: %s", err)
	}

	if oem.UsedCount() != 1 {
		t.Fatalf("used-count not correct: (%d)", oem.UsedCount())
	}
}

func TestOemParameters_Dump(t *testing.T) {
	oem, err := NewOemParameters(newTestOemParametersBytes())
	if err != nil {
		t.Fatalf("could not parse OEM parameters: %s", err)
	}

	oem.Dump()
}
