package plan

import "testing"

func TestClampMonotonic(t *testing.T) {
	cases := []struct {
		requested, cap, want Resolution
	}{
		{Res4K, Res1080p, Res1080p},
		{Res720p, Res4K, Res720p},
		{Res1080p, Res1080p, Res1080p},
		{Res4K, Res720p, Res720p},
		{Res720p, Res720p, Res720p},
	}
	for _, tc := range cases {
		if got := Clamp(tc.requested, tc.cap); got != tc.want {
			t.Errorf("Clamp(%s, %s) = %s, want %s", tc.requested, tc.cap, got, tc.want)
		}
	}
}

func TestClampNeverExceedsCap(t *testing.T) {
	all := []Resolution{Res720p, Res1080p, Res4K}
	for _, requested := range all {
		for _, cap := range all {
			got := Clamp(requested, cap)
			if got.Order() > cap.Order() {
				t.Errorf("Clamp(%s, %s) = %s exceeds cap", requested, cap, got)
			}
			if got.Order() > requested.Order() {
				t.Errorf("Clamp(%s, %s) = %s exceeds request", requested, cap, got)
			}
		}
	}
}

func TestParseResolution(t *testing.T) {
	if res, err := ParseResolution(" 1080P "); err != nil || res != Res1080p {
		t.Fatalf("ParseResolution: got %q, %v", res, err)
	}
	if res, err := ParseResolution("2160p"); err != nil || res != Res4K {
		t.Fatalf("ParseResolution alias: got %q, %v", res, err)
	}
	if _, err := ParseResolution("480p"); err == nil {
		t.Fatal("expected error for unsupported resolution")
	}
}

func TestDimensionsAreVertical(t *testing.T) {
	for _, res := range []Resolution{Res720p, Res1080p, Res4K} {
		w, h := res.Dimensions()
		if w >= h {
			t.Errorf("%s: expected portrait dimensions, got %dx%d", res, w, h)
		}
	}
}
