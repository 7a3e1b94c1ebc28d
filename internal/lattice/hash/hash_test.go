package hash

import "testing"

func TestMD5HexDeterministicAndLowercase(t *testing.T) {
	got := MD5Hex("user.email")
	if len(got) != 32 {
		t.Fatalf("MD5Hex length = %d, want 32", len(got))
	}
	for _, r := range got {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			t.Fatalf("MD5Hex(%q) = %q is not lowercase hex", "user.email", got)
		}
	}
	if MD5Hex("user.email") != got {
		t.Error("MD5Hex not deterministic")
	}
	if MD5Hex("user.name") == got {
		t.Error("MD5Hex collided on distinct inputs")
	}
}

func TestSHA256HexDeterministic(t *testing.T) {
	a := SHA256Hex([]byte("hello"))
	b := SHA256Hex([]byte("hello"))
	if a != b {
		t.Errorf("SHA256Hex not deterministic: %q != %q", a, b)
	}
	if SHA256Hex([]byte("hello")) == SHA256Hex([]byte("world")) {
		t.Error("SHA256Hex collided on distinct inputs")
	}
}

func TestIndexTableName(t *testing.T) {
	got := IndexTableName("user.email")
	want := "index_" + MD5Hex("user.email")
	if got != want {
		t.Errorf("IndexTableName(%q) = %q, want %q", "user.email", got, want)
	}
}
