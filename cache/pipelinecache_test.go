package cache

import (
	"fmt"
	"testing"
)

func TestPipelineCacheConstructsOnceAndReusesThereafter(t *testing.T) {
	c := NewPipelineCache()
	var constructs int
	construct := func() (any, error) {
		constructs++
		return fmt.Sprintf("pipeline#%d", constructs), nil
	}
	key := PipelineKey{VertexModule: "vs", FragmentModule: "fs", StateHash: 1}

	p1, err := c.GetOrConstruct(key, construct)
	if err != nil {
		t.Fatal(err)
	}
	p2, err := c.GetOrConstruct(key, construct)
	if err != nil {
		t.Fatal(err)
	}
	if p1 != p2 {
		t.Fatalf("expected identical cached pipeline, got %v and %v", p1, p2)
	}
	if constructs != 1 {
		t.Fatalf("construct invoked %d times, want 1", constructs)
	}
	if c.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", c.Len())
	}
}

func TestPipelineCacheDistinctKeysDoNotCollide(t *testing.T) {
	c := NewPipelineCache()
	construct := func() (any, error) { return struct{}{}, nil }

	k1 := PipelineKey{VertexModule: "vs", FragmentModule: "fs", StateHash: 1}
	k2 := PipelineKey{VertexModule: "vs", FragmentModule: "fs", StateHash: 2}

	if _, err := c.GetOrConstruct(k1, construct); err != nil {
		t.Fatal(err)
	}
	if _, err := c.GetOrConstruct(k2, construct); err != nil {
		t.Fatal(err)
	}
	if c.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", c.Len())
	}
}
