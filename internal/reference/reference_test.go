package reference

import (
	"errors"
	"testing"
)

func TestCalculateRegressionVector(t *testing.T) {
	ref, err := Calculate("01847474747474", "8d03ea7", "0x000001")
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if ref != "a0098add01acc736" {
		t.Fatalf("unexpected reference: %s", ref)
	}
}

func TestCalculateIsDeterministicAndCaseInsensitive(t *testing.T) {
	first, err := Calculate("0xABCDEF", "ea3bc7caf64110ca", "0x627306090abaB3A6e1400e9345bC60c78a8BEf57")
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	for i := 0; i < 3; i++ {
		again, err := Calculate("0xabcdef", "EA3BC7CAF64110CA", "0x627306090abab3a6e1400e9345bc60c78a8bef57")
		if err != nil {
			t.Fatalf("calculate: %v", err)
		}
		if again != first {
			t.Fatalf("reference changed: %s != %s", again, first)
		}
	}
	if len(first) != 2*Length {
		t.Fatalf("unexpected reference length %d", len(first))
	}
}

func TestCalculateMissingArgument(t *testing.T) {
	cases := [][3]string{
		{"", "salt", "0x01"},
		{"req", "", "0x01"},
		{"req", "salt", ""},
	}
	for _, c := range cases {
		_, err := Calculate(c[0], c[1], c[2])
		if !errors.Is(err, ErrInvalidArgument) {
			t.Fatalf("expected invalid argument for %v, got %v", c, err)
		}
		if err.Error() != "Invalid argument" {
			t.Fatalf("unexpected message: %s", err.Error())
		}
	}
}

func TestHashedReference(t *testing.T) {
	hashed, err := Hashed("a0098add01acc736")
	if err != nil {
		t.Fatalf("hashed: %v", err)
	}
	if hashed != "0xc7c539abf3cdbbbf3c3a97b741582f8a0dc6a830717acb1fd0a092dc47e1eb90" {
		t.Fatalf("unexpected hashed reference: %s", hashed)
	}

	prefixed, err := Hashed("0xA0098ADD01ACC736")
	if err != nil {
		t.Fatalf("hashed prefixed: %v", err)
	}
	if prefixed != hashed {
		t.Fatalf("prefix changed hash: %s", prefixed)
	}

	if _, err := Hashed("zz"); err == nil {
		t.Fatalf("expected decode error")
	}
}
