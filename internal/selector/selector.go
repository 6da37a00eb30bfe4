// Package selector resolves logical element names against the three test
// hook attribute spellings in circulation: web tests write data-testid,
// older suites write data-cy, and React Native Web renders testID verbatim.
// One logical name probes all three; the first match wins.
package selector

import (
	"context"
	"fmt"
	"strings"

	"github.com/kuitang/e2ekit/internal/harness"
)

var spellings = []string{"data-testid", "data-cy", "testID"}

// Query builds the compatibility selector for a logical element name:
// a comma-joined attribute selector over all three spellings.
func Query(name string) string {
	escaped := strings.ReplaceAll(name, `"`, `\"`)
	alts := make([]string, len(spellings))
	for i, attr := range spellings {
		alts[i] = fmt.Sprintf(`[%s="%s"]`, attr, escaped)
	}
	return strings.Join(alts, ", ")
}

// Find returns the first element carrying the logical name under any
// attribute spelling, waiting for it to appear per the harness's timeout.
func Find(ctx context.Context, h harness.Harness, name string) (harness.Element, error) {
	return h.Find(ctx, Query(name))
}

// Exists reports whether any element carries the logical name under any
// spelling. It does not wait.
func Exists(ctx context.Context, h harness.Harness, name string) (bool, error) {
	count, err := h.Count(ctx, Query(name))
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
