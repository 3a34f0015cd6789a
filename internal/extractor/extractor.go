// Package extractor finds the operators invoked by a textual graph dump.
//
// Only call_function nodes are recognised:
//
//	%relu : [num_users=1] = call_function[target=torch.ops.aten.relu.default](args = (%x,), kwargs = {})
//
// Other node kinds (call_method, call_module, get_attr) are not scanned.
package extractor

import (
	"errors"
	"regexp"
	"sort"
)

// ErrNoCallSites is returned when a document contains no recognised
// call-site. Such a graph cannot be meaningfully verified.
var ErrNoCallSites = errors.New("no call_function nodes found in graph")

var callSiteRe = regexp.MustCompile(`call_function\[target=([A-Za-z0-9._]+)`)

// Extract returns the distinct operator identifiers named by call-sites in
// text, sorted.
func Extract(text string) ([]string, error) {
	matches := callSiteRe.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil, ErrNoCallSites
	}
	seen := make(map[string]struct{}, len(matches))
	ops := make([]string, 0, len(matches))
	for _, m := range matches {
		if _, dup := seen[m[1]]; dup {
			continue
		}
		seen[m[1]] = struct{}{}
		ops = append(ops, m[1])
	}
	sort.Strings(ops)
	return ops, nil
}

// Count returns how many call-sites reference each operator.
func Count(text string) map[string]int {
	counts := make(map[string]int)
	for _, m := range callSiteRe.FindAllStringSubmatch(text, -1) {
		counts[m[1]]++
	}
	return counts
}
