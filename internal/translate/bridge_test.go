package translate_test

import (
	"context"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/ce-ky/AudioKeywordsEvaluator-demo/internal/observe"
	"github.com/ce-ky/AudioKeywordsEvaluator-demo/internal/translate"
	translationmock "github.com/ce-ky/AudioKeywordsEvaluator-demo/pkg/provider/translation/mock"
)

func TestTranslate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("returns translations for submitted texts", func(t *testing.T) {
		t.Parallel()
		mock := &translationmock.Provider{
			Translations: map[string]string{"紧急": "urgent", "预算": "budget"},
		}
		b := translate.NewBridge(mock)

		got := b.Translate(ctx, []string{"紧急", "预算"}, "en")
		if got["紧急"] != "urgent" || got["预算"] != "budget" {
			t.Fatalf("Translate: unexpected result: %v", got)
		}
	})

	t.Run("partial result leaves missing keys absent", func(t *testing.T) {
		t.Parallel()
		mock := &translationmock.Provider{
			Translations: map[string]string{"紧急": "urgent"},
		}
		b := translate.NewBridge(mock)

		got := b.Translate(ctx, []string{"紧急", "预算"}, "en")
		if got["紧急"] != "urgent" {
			t.Fatalf("Translate: expected translation for 紧急, got %v", got)
		}
		if _, ok := got["预算"]; ok {
			t.Fatalf("Translate: expected no entry for 预算, got %v", got)
		}
	})

	t.Run("service failure yields empty map", func(t *testing.T) {
		t.Parallel()
		mock := &translationmock.Provider{Err: context.DeadlineExceeded}
		b := translate.NewBridge(mock)

		got := b.Translate(ctx, []string{"紧急"}, "en")
		if len(got) != 0 {
			t.Fatalf("Translate: expected empty map on failure, got %v", got)
		}
	})

	t.Run("identity translations are dropped", func(t *testing.T) {
		t.Parallel()
		mock := &translationmock.Provider{
			Translations: map[string]string{"urgent": "Urgent"},
		}
		b := translate.NewBridge(mock)

		got := b.Translate(ctx, []string{"urgent"}, "en")
		if len(got) != 0 {
			t.Fatalf("Translate: expected identity dropped, got %v", got)
		}
	})

	t.Run("duplicates and blanks are collapsed before the call", func(t *testing.T) {
		t.Parallel()
		mock := &translationmock.Provider{
			Translations: map[string]string{"紧急": "urgent"},
		}
		b := translate.NewBridge(mock)

		b.Translate(ctx, []string{"紧急", " 紧急 ", "", "紧急"}, "en")
		if len(mock.Calls) != 1 {
			t.Fatalf("Translate: expected one provider call, got %d", len(mock.Calls))
		}
		if texts := mock.Calls[0].Texts; len(texts) != 1 || texts[0] != "紧急" {
			t.Fatalf("Translate: expected deduplicated batch, got %v", texts)
		}
	})

	t.Run("empty batch skips the provider", func(t *testing.T) {
		t.Parallel()
		mock := &translationmock.Provider{}
		b := translate.NewBridge(mock)

		b.Translate(ctx, nil, "en")
		b.Translate(ctx, []string{"urgent"}, "")
		if len(mock.Calls) != 0 {
			t.Fatalf("Translate: expected no provider calls, got %d", len(mock.Calls))
		}
	})
}

func TestTranslateMetrics(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	metrics, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	ok := translate.NewBridge(
		&translationmock.Provider{Translations: map[string]string{"紧急": "urgent"}},
		translate.WithMetrics(metrics))
	ok.Translate(ctx, []string{"紧急"}, "en")

	failing := translate.NewBridge(
		&translationmock.Provider{Err: context.DeadlineExceeded},
		translate.WithMetrics(metrics))
	failing.Translate(ctx, []string{"紧急"}, "en")

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}

	if hist, ok := dataFor(rm, "akeval.translation.duration").(metricdata.Histogram[float64]); !ok {
		t.Fatal("translation duration is not a histogram")
	} else if got := pointCount(hist); got != 2 {
		t.Fatalf("translation duration observations = %d, want 2", got)
	}
	if got := sumTotal(t, rm, "akeval.provider.requests"); got != 2 {
		t.Fatalf("provider requests = %d, want 2", got)
	}
	if got := sumTotal(t, rm, "akeval.provider.errors"); got != 1 {
		t.Fatalf("provider errors = %d, want 1", got)
	}
}

// dataFor returns the aggregated data for the named metric, or nil.
func dataFor(rm metricdata.ResourceMetrics, name string) metricdata.Aggregation {
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				return m.Data
			}
		}
	}
	return nil
}

func pointCount(hist metricdata.Histogram[float64]) uint64 {
	var n uint64
	for _, dp := range hist.DataPoints {
		n += dp.Count
	}
	return n
}

func sumTotal(t *testing.T, rm metricdata.ResourceMetrics, name string) int64 {
	t.Helper()
	sum, ok := dataFor(rm, name).(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("metric %q is not an int64 sum", name)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestCrossLanguage(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name            string
		keywordLanguage string
		audioLanguage   string
		want            bool
	}{
		{"different languages", "en", "zh", true},
		{"same language", "en", "en", false},
		{"regional variants share a base", "en-US", "en-GB", false},
		{"base against regional variant", "zh", "zh-CN", false},
		{"empty audio language", "en", "", false},
		{"unparseable tag", "en", "???", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := translate.CrossLanguage(tc.keywordLanguage, tc.audioLanguage)
			if got != tc.want {
				t.Fatalf("CrossLanguage(%q, %q) = %v, want %v",
					tc.keywordLanguage, tc.audioLanguage, got, tc.want)
			}
		})
	}
}
