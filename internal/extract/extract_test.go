package extract

import (
	"reflect"
	"strings"
	"testing"
)

const samplePage = `<html>
<head><title>Dog Facts</title><style>.x{color:red}</style></head>
<body>
<h1>All about dogs</h1>
<p>Dogs are <strong>loyal</strong> animals.<script>var hidden = 1;</script></p>
<p>See <a href="/cats.html#top">cats</a> and <a href="https://example.org/birds">birds</a>.</p>
<p>Escaped &lt;b&gt;bold&lt;/b&gt; markup.</p>
</body>
</html>`

func TestExtract(t *testing.T) {
	page, err := New().Extract(samplePage)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if page.Title != "Dog Facts" {
		t.Errorf("Title = %q", page.Title)
	}
	for _, want := range []string{"Dog Facts", "All about dogs", "loyal", "animals.", "cats", "birds"} {
		if !strings.Contains(page.Text, want) {
			t.Errorf("Text %q missing %q", page.Text, want)
		}
	}
	for _, hidden := range []string{"color:red", "hidden", "<b>"} {
		if strings.Contains(page.Text, hidden) {
			t.Errorf("Text %q should not contain %q", page.Text, hidden)
		}
	}
	wantImportant := []string{"Dog Facts", "All about dogs", "loyal"}
	if !reflect.DeepEqual(page.Important, wantImportant) {
		t.Errorf("Important = %q, want %q", page.Important, wantImportant)
	}
	wantLinks := []string{"/cats.html#top", "https://example.org/birds"}
	if !reflect.DeepEqual(page.Links, wantLinks) {
		t.Errorf("Links = %q, want %q", page.Links, wantLinks)
	}
}

func TestExtractEmpty(t *testing.T) {
	page, err := New().Extract("")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if page.Text != "" || len(page.Links) != 0 {
		t.Errorf("unexpected page %+v", page)
	}
}
