package advertising

import "testing"

// TestParse_S1 mirrors the advertising-ingress scenario: a 16-bit service
// UUID and a local name, no manufacturer data.
func TestParse_S1(t *testing.T) {
	ad := []byte{
		0x02, 0x01, 0x06, // flags (ignored)
		0x03, 0x03, 0xF6, 0xFF, // 16-bit service uuid list
		0x0A, 0x09, 0x4D, 0x61, 0x74, 0x74, 0x65, 0x72, 0x44, 0x65, 0x76, // local name
	}

	desc := Parse(ad)

	if desc.LocalName != "MatterDev" {
		t.Errorf("expected local name MatterDev, got %q", desc.LocalName)
	}
	if len(desc.ServiceUUIDs) != 1 || desc.ServiceUUIDs[0] != "fff6" {
		t.Errorf("expected service uuid set {fff6}, got %v", desc.ServiceUUIDs)
	}
	if len(desc.ManufacturerData) != 0 {
		t.Errorf("expected no manufacturer data, got %v", desc.ManufacturerData)
	}
}

func TestParse_128BitUUID(t *testing.T) {
	le := []byte{0x10, 0x0F, 0x0E, 0x0D, 0x0C, 0x0B, 0x0A, 0x09, 0x08, 0x07, 0x06, 0x05, 0x04, 0x03, 0x02, 0x01}
	ad := append([]byte{0x11, 0x06}, le...)

	desc := Parse(ad)
	want := "01020304-0506-0708-090a-0b0c0d0e0f10"
	if len(desc.ServiceUUIDs) != 1 || desc.ServiceUUIDs[0] != want {
		t.Errorf("expected %q, got %v", want, desc.ServiceUUIDs)
	}
}

func TestParse_ManufacturerData(t *testing.T) {
	ad := []byte{0x05, 0xFF, 0x4C, 0x00, 0x02, 0x15}
	desc := Parse(ad)

	data, ok := desc.ManufacturerData[0x004C]
	if !ok {
		t.Fatal("expected manufacturer data for company id 0x004C")
	}
	if len(data) != 2 || data[0] != 0x02 || data[1] != 0x15 {
		t.Errorf("unexpected manufacturer data: %x", data)
	}
}

func TestParse_ServiceData(t *testing.T) {
	ad := []byte{0x05, 0x16, 0xF6, 0xFF, 0x01, 0x02}
	desc := Parse(ad)

	data, ok := desc.ServiceData["fff6"]
	if !ok {
		t.Fatal("expected service data for uuid fff6")
	}
	if len(data) != 2 || data[0] != 0x01 || data[1] != 0x02 {
		t.Errorf("unexpected service data: %x", data)
	}
}

func TestParse_StopsOnOverrun(t *testing.T) {
	// Declares a length of 10 but supplies only 2 more bytes.
	ad := []byte{0x0A, 0x09, 0x41, 0x42}
	desc := Parse(ad) // must not panic
	if desc.LocalName != "" {
		t.Errorf("expected no local name from a truncated structure, got %q", desc.LocalName)
	}
}

func TestParse_ZeroLengthStops(t *testing.T) {
	ad := []byte{0x00, 0x03, 0x03, 0xF6, 0xFF}
	desc := Parse(ad)
	if len(desc.ServiceUUIDs) != 0 {
		t.Errorf("expected parsing to stop at zero-length entry, got %v", desc.ServiceUUIDs)
	}
}
