package drm

import "testing"

func TestParseEDIDTooShort(t *testing.T) {
	_, err := ParseEDID(make([]byte, 64))
	if err != ErrEDIDTooShort {
		t.Fatalf("expected ErrEDIDTooShort, got %v", err)
	}
}

func TestParseEDIDManufacturerAndSize(t *testing.T) {
	raw := make([]byte, 128)
	// Manufacturer "DEL": D=4, E=5, L=12 packed as reserved(0) + 5+5+5 bits.
	raw[8] = 0x10
	raw[9] = 0xac
	raw[10] = 0x34
	raw[11] = 0x12
	raw[12] = 0x78
	raw[13] = 0x56
	raw[14] = 0x34
	raw[15] = 0x12
	raw[17] = 30 // 1990+30 = 2020
	raw[21] = 60 // 600mm
	raw[22] = 34 // 340mm
	raw[126] = 1

	e, err := ParseEDID(raw)
	if err != nil {
		t.Fatalf("ParseEDID: %v", err)
	}
	if e.Manufacturer != "DEL" {
		t.Fatalf("expected manufacturer DEL, got %q", e.Manufacturer)
	}
	if e.ProductCode != 0x1234 {
		t.Fatalf("expected product code 0x1234, got %#x", e.ProductCode)
	}
	if e.Serial != 0x12345678 {
		t.Fatalf("expected serial 0x12345678, got %#x", e.Serial)
	}
	if e.YearOfManufacture != 2020 {
		t.Fatalf("expected year 2020, got %d", e.YearOfManufacture)
	}
	if e.PhysWidthMM != 600 || e.PhysHeightMM != 340 {
		t.Fatalf("expected 600x340mm, got %dx%d", e.PhysWidthMM, e.PhysHeightMM)
	}
	if e.Extensions != 1 {
		t.Fatalf("expected 1 extension block, got %d", e.Extensions)
	}
}
