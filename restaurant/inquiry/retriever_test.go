package inquiry

import (
	"context"
	"testing"
)

func TestSearchRanksKeywordHitsFirst(t *testing.T) {
	t.Parallel()

	r, err := NewKeywordRetriever()
	if err != nil {
		t.Fatalf("load knowledge base: %v", err)
	}

	passages, err := r.Search(context.Background(), "when are you open for dinner?", 3)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(passages) == 0 {
		t.Fatal("no passages for an hours question")
	}
	if passages[0].Title != "Opening hours" {
		t.Fatalf("top passage = %q, want Opening hours", passages[0].Title)
	}
	for i := 1; i < len(passages); i++ {
		if passages[i].Score > passages[i-1].Score {
			t.Fatalf("passages not sorted by score: %+v", passages)
		}
	}
}

func TestSearchHonorsK(t *testing.T) {
	t.Parallel()

	r, err := NewKeywordRetriever()
	if err != nil {
		t.Fatalf("load knowledge base: %v", err)
	}

	passages, err := r.Search(context.Background(), "open menu pay card location", 2)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(passages) > 2 {
		t.Fatalf("got %d passages, want at most 2", len(passages))
	}

	// k<=0 falls back to the default cutoff rather than returning nothing.
	passages, err = r.Search(context.Background(), "vegan options", 0)
	if err != nil {
		t.Fatalf("search with k=0: %v", err)
	}
	if len(passages) == 0 {
		t.Fatal("default k returned nothing for a dietary question")
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	t.Parallel()

	r, err := NewKeywordRetriever()
	if err != nil {
		t.Fatalf("load knowledge base: %v", err)
	}

	passages, err := r.Search(context.Background(), "??!", 3)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(passages) != 0 {
		t.Fatalf("got %d passages for a tokenless query, want none", len(passages))
	}
}
