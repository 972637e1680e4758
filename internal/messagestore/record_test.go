package messagestore

import "testing"

func TestValueRoundTrip(t *testing.T) {
	val := encodeValue("orders", []byte("payload"))
	stream, payload, ok := decodeValue(val)
	if !ok {
		t.Fatal("decode failed")
	}
	if stream != "orders" || string(payload) != "payload" {
		t.Fatalf("got %s/%q", stream, payload)
	}
}

func TestDecodeRejectsCorruption(t *testing.T) {
	val := encodeValue("orders", []byte("payload"))
	val[len(val)-1] ^= 0xff
	if _, _, ok := decodeValue(val); ok {
		t.Fatal("expected checksum failure")
	}

	if _, _, ok := decodeValue([]byte{0x01}); ok {
		t.Fatal("expected failure on truncated value")
	}
}

func TestDecodeRejectsOversizedLengthField(t *testing.T) {
	// Length fields claiming more bytes than the buffer holds must decode as
	// corruption, including values that wrap negative as int.
	huge := []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x01}
	val := append(huge, make([]byte, 16)...)
	if _, _, ok := decodeValue(val); ok {
		t.Fatal("expected failure on oversized length field")
	}
}

func TestEmptyPayloadAllowed(t *testing.T) {
	stream, payload, ok := decodeValue(encodeValue("audit", nil))
	if !ok || stream != "audit" || len(payload) != 0 {
		t.Fatalf("got %s/%q/%v", stream, payload, ok)
	}
}
