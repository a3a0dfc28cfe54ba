// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package citekey

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/pdiddy/arxiv-registry/internal/registry"
	"github.com/pdiddy/arxiv-registry/pkg/types"
)

func openStore(t require.TestingT, path string) *registry.Store {
	s, err := registry.Open(path, log.New(io.Discard))
	require.NoError(t, err)
	_, err = s.Init(context.Background())
	require.NoError(t, err)
	return s
}

func testResolver(t *testing.T) (*Resolver, *registry.Store) {
	t.Helper()
	s := openStore(t, filepath.Join(t.TempDir(), registry.DefaultFile))
	t.Cleanup(func() { s.Close() })
	return NewResolver(s, log.New(io.Discard)), s
}

func meta(author string, year int, title string) types.Metadata {
	m := types.Metadata{Title: types.Ptr(title), Year: types.Ptr(year)}
	if author != "" {
		m.Authors = []string{author}
	}
	return m
}

func upsert(t *testing.T, s *registry.Store, id string, m types.Metadata) {
	t.Helper()
	_, err := s.UpsertItem(context.Background(), id, m)
	require.NoError(t, err)
}

func TestDeriveBase(t *testing.T) {
	tests := []struct {
		name string
		meta types.Metadata
		want string
	}{
		{"first last", meta("Jonathan Ho", 2020, "Denoising Diffusion Probabilistic Models"), "ho2020denoising"},
		{"last comma first", meta("Ho, Jonathan", 2020, "Denoising Diffusion"), "ho2020denoising"},
		{"accents folded", meta("Bernhard Schölkopf", 2001, "Learning with Kernels"), "scholkopf2001learning"},
		{"apostrophe dropped", meta("Cathy O'Neil", 2016, "Weapons of Math Destruction"), "oneil2016weapons"},
		{"leading punctuation in title", meta("David Ha", 2018, "“World Models”"), "ha2018world"},
		{"digits kept", meta("A. Vaswani", 2017, "2D attention"), "vaswani20172d"},
		{"accented title word", meta("X Y", 2021, "Édition critique"), "y2021edition"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DeriveBase(tt.meta)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDeriveBaseIncomplete(t *testing.T) {
	tests := []struct {
		name    string
		meta    types.Metadata
		missing string
	}{
		{"no author", meta("", 2020, "Denoising"), "author"},
		{"blank author", meta("   ", 2020, "Denoising"), "author"},
		{"no year", types.Metadata{Authors: []string{"Jonathan Ho"}, Title: types.Ptr("Denoising")}, "year"},
		{"punctuation title", meta("Jonathan Ho", 2020, "—?!"), "title"},
		{"nothing", types.Metadata{}, "author, year, title"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DeriveBase(tt.meta)
			require.ErrorIs(t, err, registry.ErrMetadataIncomplete)
			assert.Contains(t, err.Error(), tt.missing)
		})
	}
}

func TestSuffix(t *testing.T) {
	cases := map[int]string{0: "", 1: "a", 2: "b", 26: "z", 27: "a1", 28: "a2", 126: "a100"}
	for n, want := range cases {
		assert.Equal(t, want, Suffix(n), "n=%d", n)
	}
}

func TestSurname(t *testing.T) {
	assert.Equal(t, "Ho", Surname("Jonathan Ho"))
	assert.Equal(t, "Ho", Surname(" Ho ,  Jonathan "))
	assert.Equal(t, "Plato", Surname("Plato"))
	assert.Equal(t, "", Surname("  "))
}

func TestResolveKeyScenario(t *testing.T) {
	ctx := context.Background()
	r, s := testResolver(t)

	m := meta("Jonathan Ho", 2020, "Denoising Diffusion Probabilistic Models")
	m.Abstract = types.Ptr("We present high quality image synthesis results.")
	upsert(t, s, "2006.11239", m)

	ck, err := r.ResolveKey(ctx, "2006.11239")
	require.NoError(t, err)
	assert.Equal(t, "ho2020denoising", ck.Key)

	upsert(t, s, "2006.11239", types.Metadata{Abstract: types.Ptr("Revised abstract.")})
	again, err := r.ResolveKey(ctx, "2006.11239")
	require.NoError(t, err)
	assert.Equal(t, ck.Key, again.Key)

	item, err := s.GetItem(ctx, "2006.11239")
	require.NoError(t, err)
	assert.Equal(t, "Revised abstract.", types.Deref(item.Metadata.Abstract))
	assert.Equal(t, "Denoising Diffusion Probabilistic Models", types.Deref(item.Metadata.Title))
}

func TestResolveKeyKeptAfterTitleChange(t *testing.T) {
	ctx := context.Background()
	r, s := testResolver(t)
	upsert(t, s, "1803.10122", meta("David Ha", 2018, "World Models"))

	ck, err := r.ResolveKey(ctx, "1803.10122")
	require.NoError(t, err)

	upsert(t, s, "1803.10122", meta("David Ha", 2019, "Recurrent World Models"))
	again, err := r.ResolveKey(ctx, "1803.10122")
	require.NoError(t, err)
	assert.Equal(t, "ha2018world", again.Key)
	assert.Equal(t, ck.AssignedAt, again.AssignedAt)
}

func TestResolveKeyCollisions(t *testing.T) {
	ctx := context.Background()
	r, s := testResolver(t)
	ids := []string{"2001.00001", "2001.00002", "2001.00003"}
	for _, id := range ids {
		upsert(t, s, id, meta("Jane Smith", 2020, "Deep Things"))
	}

	var keys []string
	for _, id := range ids {
		ck, err := r.ResolveKey(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "smith2020deep", ck.BaseKey)
		keys = append(keys, ck.Key)
	}
	assert.Equal(t, []string{"smith2020deep", "smith2020deepa", "smith2020deepb"}, keys)

	ck, err := r.ResolveKey(ctx, ids[1])
	require.NoError(t, err)
	assert.Equal(t, "smith2020deepa", ck.Key)
}

func TestResolveKeyMissingAuthor(t *testing.T) {
	ctx := context.Background()
	r, s := testResolver(t)
	upsert(t, s, "2101.00001", meta("", 2021, "Anonymous Work"))

	_, err := r.ResolveKey(ctx, "2101.00001")
	require.ErrorIs(t, err, registry.ErrMetadataIncomplete)

	_, err = r.Lookup(ctx, "2101.00001")
	require.ErrorIs(t, err, registry.ErrNotFound)

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, st.Keys)
}

func TestResolveKeyUnknownItem(t *testing.T) {
	r, _ := testResolver(t)
	_, err := r.ResolveKey(context.Background(), "9999.99999")
	require.ErrorIs(t, err, registry.ErrNotFound)
}

func TestResolveKeyConcurrent(t *testing.T) {
	ctx := context.Background()
	r, s := testResolver(t)
	const n = 12
	for i := 0; i < n; i++ {
		upsert(t, s, fmt.Sprintf("2201.%05d", i), meta("Li Wei", 2022, "Graph Networks"))
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = map[string]string{}
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			ck, err := r.ResolveKey(ctx, id)
			assert.NoError(t, err)
			mu.Lock()
			defer mu.Unlock()
			if prev, dup := seen[ck.Key]; dup {
				t.Errorf("key %s bound to %s and %s", ck.Key, prev, id)
			}
			seen[ck.Key] = id
		}(fmt.Sprintf("2201.%05d", i))
	}
	wg.Wait()
	assert.Len(t, seen, n)
}

// Replaying the same insertion history, with a restart in the middle,
// produces the same keys as an uninterrupted run.
func TestResolveKeyRestartDeterminismProperty(t *testing.T) {
	root := t.TempDir()
	run := 0
	titles := []string{"Deep Things", "Deep Learning", "World Models", "Graph Nets"}
	authors := []string{"Jane Smith", "Smith, John", "David Ha"}

	rapid.Check(t, func(rt *rapid.T) {
		run++
		n := rapid.IntRange(1, 8).Draw(rt, "n")
		items := make([]types.Metadata, n)
		for i := range items {
			items[i] = meta(
				rapid.SampledFrom(authors).Draw(rt, "author"),
				rapid.IntRange(2019, 2020).Draw(rt, "year"),
				rapid.SampledFrom(titles).Draw(rt, "title"),
			)
		}
		restartAt := rapid.IntRange(0, n).Draw(rt, "restartAt")

		assign := func(path string, restart int) []string {
			ctx := context.Background()
			s := openStore(rt, path)
			var keys []string
			for i, m := range items {
				if i == restart {
					require.NoError(rt, s.Close())
					s = openStore(rt, path)
				}
				id := fmt.Sprintf("2301.%05d", i)
				_, err := s.UpsertItem(ctx, id, m)
				require.NoError(rt, err)
				ck, err := NewResolver(s, log.New(io.Discard)).ResolveKey(ctx, id)
				require.NoError(rt, err)
				keys = append(keys, ck.Key)
			}
			require.NoError(rt, s.Close())
			return keys
		}

		straight := assign(filepath.Join(root, fmt.Sprintf("straight-%d.sqlite3", run)), -1)
		restarted := assign(filepath.Join(root, fmt.Sprintf("restarted-%d.sqlite3", run)), restartAt)
		if !assert.Equal(rt, straight, restarted) {
			rt.Fatalf("keys differ after restart at %d", restartAt)
		}
	})
}
