package pagerank

import (
	"fmt"
	"math"
	"path/filepath"
	"testing"
)

const eps = 1e-9

func TestSymmetricPairConverges(t *testing.T) {
	r := Compute(map[string][]string{
		"x": {"y"},
		"y": {"x"},
	}, DefaultDamping, DefaultIterations)
	if math.Abs(r["x"]-r["y"]) > eps {
		t.Errorf("x = %v, y = %v, want equal", r["x"], r["y"])
	}
	if math.Abs(r["x"]-1) > eps {
		t.Errorf("rank = %v, want 1 (fixed point)", r["x"])
	}
}

func TestDanglingPagesLoseMass(t *testing.T) {
	// a -> b, b has no links, c is never linked.
	r := Compute(map[string][]string{
		"a": {"b"},
		"b": nil,
		"c": {},
	}, 0.85, 1)
	if math.Abs(r["a"]-0.15) > eps {
		t.Errorf("a = %v, want 0.15", r["a"])
	}
	if math.Abs(r["b"]-1.0) > eps {
		t.Errorf("b = %v, want 0.15 + 0.85*1", r["b"])
	}
	total := r["a"] + r["b"] + r["c"]
	if total >= 3 {
		t.Errorf("total rank %v should shrink without redistribution", total)
	}
}

func TestTargetsAreNodes(t *testing.T) {
	r := Compute(map[string][]string{"a": {"outside", "outside"}}, 0.85, 5)
	if _, ok := r["outside"]; !ok {
		t.Fatal("uncrawled target missing from ranks")
	}
	// duplicate links count once: outside gets a's whole rank share
	if r["outside"] <= r["a"] {
		t.Errorf("outside = %v should outrank a = %v", r["outside"], r["a"])
	}
}

func TestTopAndPersistence(t *testing.T) {
	r := Ranks{"a": 0.5, "b": 2, "c": 2}
	top := r.Top(2)
	if len(top) != 2 || top[0].URL != "b" || top[1].URL != "c" {
		t.Errorf("Top(2) = %+v", top)
	}

	path := filepath.Join(t.TempDir(), "ranks.json")
	if err := r.Save(path); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded) != 3 || loaded["b"] != 2 {
		t.Errorf("loaded = %v", loaded)
	}
}

func BenchmarkCompute(b *testing.B) {
	graph := make(map[string][]string, 1000)
	for i := 0; i < 1000; i++ {
		src := fmt.Sprintf("http://site.example/%d", i)
		for j := 1; j <= 5; j++ {
			graph[src] = append(graph[src], fmt.Sprintf("http://site.example/%d", (i*7+j)%1000))
		}
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Compute(graph, 0.85, 5)
	}
}
