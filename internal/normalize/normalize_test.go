package normalize

import "testing"

func TestURL_BareHostname(t *testing.T) {
	if got := URL("Acme.com"); got != "https://acme.com/" {
		t.Errorf("URL(Acme.com) = %q, want https://acme.com/", got)
	}
}

func TestURL_StripsWWWQueryFragment(t *testing.T) {
	got := URL("HTTPS://WWW.Acme.com/pricing?utm=x#plans")
	if got != "https://acme.com/pricing" {
		t.Errorf("got %q, want https://acme.com/pricing", got)
	}
}

func TestURL_CollapsesDuplicateSlashes(t *testing.T) {
	if got := URL("https://acme.com//a///b"); got != "https://acme.com/a/b" {
		t.Errorf("got %q, want https://acme.com/a/b", got)
	}
}

func TestURL_RejectsNonHTTP(t *testing.T) {
	for _, raw := range []string{"ftp://acme.com", "mailto:x@acme.com", "javascript:void(0)", "", "not a url"} {
		if got := URL(raw); got != "" {
			t.Errorf("URL(%q) = %q, want empty", raw, got)
		}
	}
}

func TestURL_Idempotent(t *testing.T) {
	inputs := []string{"acme.com", "https://www.Acme.com//x?q=1", "http://a.b.acme.com/p/"}
	for _, raw := range inputs {
		once := URL(raw)
		if once == "" {
			t.Fatalf("URL(%q) unexpectedly empty", raw)
		}
		if twice := URL(once); twice != once {
			t.Errorf("URL not idempotent for %q: %q != %q", raw, twice, once)
		}
	}
}

func TestMatchesDomain(t *testing.T) {
	cases := []struct {
		url, domain string
		want        bool
	}{
		{"https://acme.com/pricing", "acme.com", true},
		{"https://app.acme.com/pricing", "acme.com", true},
		{"https://www.acme.com/", "acme.com", true},
		{"https://notacme.com/", "acme.com", false},
		{"https://acme.com.evil.io/", "acme.com", false},
	}
	for _, c := range cases {
		if got := MatchesDomain(c.url, c.domain); got != c.want {
			t.Errorf("MatchesDomain(%q, %q) = %v, want %v", c.url, c.domain, got, c.want)
		}
	}
}

func TestStripHTMLToText(t *testing.T) {
	in := `<html><head><title>Plans</title><style>.x{color:red}</style>
		<script>var a = "<b>ignored</b>";</script></head>
		<body><!-- comment --><h1>Pricing&nbsp;&amp;&nbsp;Plans</h1>
		<p>Starter   &quot;basic&quot;</p><noscript>enable js</noscript></body></html>`
	got := StripHTMLToText(in)
	want := `Plans Pricing & Plans Starter "basic"`
	if got != want {
		t.Errorf("StripHTMLToText = %q, want %q", got, want)
	}
}

func TestContentHash_InsensitiveToMarkup(t *testing.T) {
	a := HTMLForHash("<div><p>Starter $19 / month</p></div>")
	b := HTMLForHash("<span>STARTER   $19 / MONTH</span>")
	if ContentHash(a) != ContentHash(b) {
		t.Errorf("hash should be invariant under markup, case and whitespace changes")
	}

	c := HTMLForHash("<p>Starter $29 / month</p>")
	if ContentHash(a) == ContentHash(c) {
		t.Errorf("hash should change when the stripped text changes")
	}
}

func TestContentHash_Encoding(t *testing.T) {
	got := ContentHash("")
	if got != "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855" {
		t.Errorf("unexpected sha256 hex for empty string: %s", got)
	}
}

func TestTruncate_RuneBoundary(t *testing.T) {
	s := "ab€cd" // the euro sign spans bytes 2..4
	cases := []struct {
		n    int
		want string
	}{
		{10, "ab€cd"},
		{5, "ab€"},
		{4, "ab"},
		{3, "ab"},
		{2, "ab"},
		{0, ""},
	}
	for _, tc := range cases {
		if got := Truncate(s, tc.n); got != tc.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", s, tc.n, got, tc.want)
		}
	}
}
