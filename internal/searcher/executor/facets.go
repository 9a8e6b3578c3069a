package executor

import (
	"sort"
	"strings"
)

type counter struct {
	fold   bool
	counts map[string]int
	label  map[string]string
}

func newCounter(fold bool) *counter {
	return &counter{fold: fold, counts: make(map[string]int), label: make(map[string]string)}
}

func (c *counter) add(v string) {
	v = strings.TrimSpace(v)
	if v == "" {
		return
	}
	key := v
	if c.fold {
		key = strings.ToLower(v)
	}
	if _, seen := c.label[key]; !seen {
		c.label[key] = v
	}
	c.counts[key]++
}

func (c *counter) values() []FacetValue {
	out := make([]FacetValue, 0, len(c.counts))
	for key, n := range c.counts {
		out = append(out, FacetValue{Value: c.label[key], Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		li, lj := strings.ToLower(out[i].Value), strings.ToLower(out[j].Value)
		if li != lj {
			return li < lj
		}
		return out[i].Value < out[j].Value
	})
	return out
}
