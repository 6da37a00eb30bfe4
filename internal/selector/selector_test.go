package selector

import (
	"context"
	"testing"

	"github.com/kuitang/e2ekit/internal/harness"
)

func TestQuery_CoversAllThreeSpellings(t *testing.T) {
	got := Query("save-button")
	want := `[data-testid="save-button"], [data-cy="save-button"], [testID="save-button"]`
	if got != want {
		t.Errorf("Query mismatch:\n got %s\nwant %s", got, want)
	}
}

func TestQuery_EscapesQuotes(t *testing.T) {
	got := Query(`x"y`)
	want := `[data-testid="x\"y"], [data-cy="x\"y"], [testID="x\"y"]`
	if got != want {
		t.Errorf("Query mismatch:\n got %s\nwant %s", got, want)
	}
}

func TestExists_TrueForAnySpelling(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name     string
		selector string
	}{
		{"data-testid", `[data-testid="x"]`},
		{"data-cy", `[data-cy="x"]`},
		{"testID", `[testID="x"]`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := harness.NewFake()
			h.DOM[tc.selector] = &harness.FakeElement{}

			ok, err := Exists(ctx, h, "x")
			if err != nil {
				t.Fatalf("Exists failed: %v", err)
			}
			if !ok {
				t.Errorf("Exists = false with %s present", tc.name)
			}
		})
	}
}

func TestExists_FalseWhenNoSpellingMatches(t *testing.T) {
	h := harness.NewFake()
	h.DOM[`[data-testid="other"]`] = &harness.FakeElement{}

	ok, err := Exists(context.Background(), h, "x")
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if ok {
		t.Error("Exists = true with no matching spelling")
	}
}

func TestFind_ReturnsFirstSpellingMatch(t *testing.T) {
	h := harness.NewFake()
	h.DOM[`[data-cy="greeting"]`] = &harness.FakeElement{Content: "hello"}

	el, err := Find(context.Background(), h, "greeting")
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	text, err := el.Text(context.Background())
	if err != nil {
		t.Fatalf("Text failed: %v", err)
	}
	if text != "hello" {
		t.Errorf("Text = %q", text)
	}
}
