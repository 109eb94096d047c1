package storage

import "testing"

func TestKeyFromURI(t *testing.T) {
	cases := []struct{ in, want string }{
		{"s3://bucket/path/to/file.tif", "path/to/file.tif"},
		{"path/to/file.tif", "path/to/file.tif"},
		{"s3://bucket-only", "s3://bucket-only"},
	}
	for _, c := range cases {
		if got := keyFromURI(c.in); got != c.want {
			t.Errorf("keyFromURI(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestPublicURL(t *testing.T) {
	c := &Client{publicBase: "https://tiles.example.com/"}
	if got, want := c.PublicURL("/a/b.tif"), "https://tiles.example.com/a/b.tif"; got != want {
		t.Errorf("PublicURL = %q, want %q", got, want)
	}

	c2 := &Client{}
	if got := c2.PublicURL("a/b.tif"); got != "" {
		t.Errorf("PublicURL with no base = %q, want empty", got)
	}
}
