package sqlite

import (
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rly/ndx-pose/internal/builder"
)

// generateTree returns a PoseEstimation-shaped tree with numSeries series of
// frames x 2 coordinates each. tag is stored on the root so readers can tell
// trees apart.
func generateTree(tag string, numSeries, frames int) *builder.Group {
	root := builder.NewTypedGroup("root", "NWBFile", "core", "file-"+tag)
	root.SetAttr("tag", tag)
	root.SetAttr("series", uint64(numSeries))
	pe := root.EnsureGroup("processing/behavior").
		AddGroup(builder.NewTypedGroup("PoseEstimation", "PoseEstimation", "ndx-pose", "pe-"+tag))

	ts := make([]float64, frames)
	for i := range ts {
		ts[i] = float64(i) / 30
	}
	for s := 0; s < numSeries; s++ {
		name := fmt.Sprintf("node_%03d", s)
		g := pe.AddGroup(builder.NewTypedGroup(name, "PoseEstimationSeries", "ndx-pose", tag+"-"+name))
		data := make([]float64, frames*2)
		for i := range data {
			data[i] = float64(s*frames*2 + i)
		}
		d := g.AddDataset(builder.Float64Tensor("data", []int{frames, 2}, data))
		d.SetAttr("unit", "pixels")
		if s == 0 {
			g.AddDataset(builder.Float64Array("timestamps", ts))
		} else {
			g.AddLink("timestamps", "/processing/behavior/PoseEstimation/node_000/timestamps")
		}
	}
	return root
}

// TestConcurrentReadsSeeWholeTrees rewrites the tree while readers load it;
// every read must return one complete tree.
func TestConcurrentReadsSeeWholeTrees(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping concurrency test in short mode")
	}
	st := openTest(t, testStorePath(t))
	trees := map[string]*builder.Group{
		"a": generateTree("a", 4, 50),
		"b": generateTree("b", 9, 20),
	}
	require.NoError(t, st.Write(trees["a"]))

	const (
		readers = 8
		reads   = 10
		writes  = 10
	)
	var wg sync.WaitGroup
	errs := make(chan error, readers*reads+writes)

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < writes; i++ {
			tag := "b"
			if i%2 == 1 {
				tag = "a"
			}
			if err := st.Write(trees[tag]); err != nil {
				errs <- fmt.Errorf("write %d: %w", i, err)
			}
		}
	}()

	for r := 0; r < readers; r++ {
		wg.Add(1)
		go func(r int) {
			defer wg.Done()
			for i := 0; i < reads; i++ {
				got, err := st.Read()
				if err != nil {
					errs <- fmt.Errorf("reader %d read %d: %w", r, i, err)
					continue
				}
				want := trees[got.AttrString("tag")]
				if want == nil {
					errs <- fmt.Errorf("reader %d read %d: unknown tree %q", r, i, got.AttrString("tag"))
					continue
				}
				pe := got.Group("processing").Group("behavior").Group("PoseEstimation")
				wantSeries := want.Attributes["series"].(uint64)
				if pe == nil || uint64(len(pe.Groups)) != wantSeries {
					errs <- fmt.Errorf("reader %d read %d: partial tree %q", r, i, got.AttrString("tag"))
				}
			}
		}(r)
	}

	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
}

func benchmarkWrite(b *testing.B, numSeries, frames int) {
	st, err := Open(testStorePathB(b), Options{})
	require.NoError(b, err)
	defer st.Close()
	tree := generateTree("bench", numSeries, frames)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := st.Write(tree); err != nil {
			b.Fatal(err)
		}
	}
}

func benchmarkRead(b *testing.B, numSeries, frames int) {
	st, err := Open(testStorePathB(b), Options{})
	require.NoError(b, err)
	defer st.Close()
	require.NoError(b, st.Write(generateTree("bench", numSeries, frames)))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := st.Read(); err != nil {
			b.Fatal(err)
		}
	}
}

func testStorePathB(b *testing.B) string {
	return filepath.Join(b.TempDir(), "bench.nwb.db")
}

func BenchmarkWrite_10Series(b *testing.B)   { benchmarkWrite(b, 10, 1000) }
func BenchmarkWrite_100Series(b *testing.B)  { benchmarkWrite(b, 100, 1000) }
func BenchmarkRead_10Series(b *testing.B)    { benchmarkRead(b, 10, 1000) }
func BenchmarkRead_100Series(b *testing.B)   { benchmarkRead(b, 100, 1000) }
func BenchmarkWrite_LongSeries(b *testing.B) { benchmarkWrite(b, 5, 100000) }
