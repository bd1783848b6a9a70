package sevnup

import "testing"

func TestVnodeForKeyDeterministic(t *testing.T) {
	keys := []string{"alpha", "beta", "gamma", "k1", ""}
	for _, k := range keys {
		v1 := vnodeForKey(k, 1024)
		v2 := vnodeForKey(k, 1024)
		if v1 != v2 {
			t.Fatalf("vnodeForKey(%q) not deterministic: %d != %d", k, v1, v2)
		}
		if v1 < 0 || v1 >= 1024 {
			t.Fatalf("vnodeForKey(%q) = %d out of range [0,1024)", k, v1)
		}
	}
}

func TestVnodeForKeyRespectsTotal(t *testing.T) {
	v := vnodeForKey("alpha", 4)
	if v < 0 || v >= 4 {
		t.Fatalf("vnodeForKey with totalVNodes=4 returned %d", v)
	}
}
