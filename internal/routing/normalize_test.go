package routing

import "testing"

func TestNormalizeNumber(t *testing.T) {
	cases := []struct {
		in   string
		cc   string
		want string
	}{
		{"+393331234567", "39", "3331234567"},
		{"393331234567", "39", "3331234567"},
		{"0591234567", "39", "591234567"},
		{"3331234567", "39", "3331234567"},
		{"+39 333 123-4567", "39", "3331234567"},
		{"1001", "39", "1001"},
		{"39", "39", "39"},
		{"0", "39", "0"},
		{"+14155551234", "1", "4155551234"},
	}
	for _, c := range cases {
		if got := NormalizeNumber(c.in, c.cc); got != c.want {
			t.Errorf("NormalizeNumber(%q, %q) = %q, want %q", c.in, c.cc, got, c.want)
		}
	}
}

func TestTransformNumber(t *testing.T) {
	cases := []struct {
		in     string
		strip  int
		prefix string
		add    string
		want   string
	}{
		{"0591234567", 0, "", "", "0591234567"},
		{"0591234567", 1, "", "39", "39591234567"},
		{"1234", 2, "9", "", "934"},
		{"12", 5, "", "", ""},
	}
	for _, c := range cases {
		if got := TransformNumber(c.in, c.strip, c.prefix, c.add); got != c.want {
			t.Errorf("TransformNumber(%q, %d, %q, %q) = %q, want %q",
				c.in, c.strip, c.prefix, c.add, got, c.want)
		}
	}
}
