package keyword_test

import (
	"testing"

	"github.com/ce-ky/AudioKeywordsEvaluator-demo/internal/keyword"
)

func TestSimilarTo(t *testing.T) {
	t.Parallel()

	existing := []keyword.Keyword{
		{ID: "1", Text: "deadline"},
		{ID: "2", Text: "budget"},
		{ID: "3", Text: "urgent"},
	}

	t.Run("near-identical spelling is flagged", func(t *testing.T) {
		t.Parallel()
		got := keyword.SimilarTo("deadlines", existing)
		if len(got) != 1 || got[0].ID != "1" {
			t.Fatalf("SimilarTo: expected deadline flagged, got %+v", got)
		}
	})

	t.Run("unrelated text is not flagged", func(t *testing.T) {
		t.Parallel()
		if got := keyword.SimilarTo("schedule", existing); len(got) != 0 {
			t.Fatalf("SimilarTo: expected no matches, got %+v", got)
		}
	})

	t.Run("exact duplicate is excluded", func(t *testing.T) {
		t.Parallel()
		if got := keyword.SimilarTo("Urgent", existing); len(got) != 0 {
			t.Fatalf("SimilarTo: exact duplicates belong to Add validation, got %+v", got)
		}
	})

	t.Run("empty input returns nothing", func(t *testing.T) {
		t.Parallel()
		if got := keyword.SimilarTo("  ", existing); got != nil {
			t.Fatalf("SimilarTo: expected nil, got %+v", got)
		}
	})
}
