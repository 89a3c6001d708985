package format

import "testing"

func TestMonth(t *testing.T) {
	want := []string{"Januari", "Februari", "Maret", "April", "Mei", "Juni", "Juli", "Agustus", "September", "Oktober", "November", "Desember"}
	for i, name := range want {
		if got := Month(i + 1); got != name {
			t.Errorf("Month(%d) = %q, want %q", i+1, got, name)
		}
	}
}

func TestMonthOutOfRange(t *testing.T) {
	for _, m := range []int{0, 13, -1} {
		if got := Month(m); got != "" {
			t.Errorf("Month(%d) = %q, want empty", m, got)
		}
	}
}

func TestRupiah(t *testing.T) {
	cases := map[int64]string{
		0:          "Rp. 0",
		7:          "Rp. 7",
		999:        "Rp. 999",
		1000:       "Rp. 1.000",
		12500:      "Rp. 12.500",
		100000:     "Rp. 100.000",
		1234567:    "Rp. 1.234.567",
		1000000000: "Rp. 1.000.000.000",
	}
	for in, want := range cases {
		if got := Rupiah(in); got != want {
			t.Errorf("Rupiah(%d) = %q, want %q", in, got, want)
		}
	}
}
