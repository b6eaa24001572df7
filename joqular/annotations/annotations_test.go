package annotations

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector(t *testing.T) {
	var seen []string
	c := NewCollector(func(e Event) { seen = append(seen, e.Name) })

	c.Add(Event{Name: QueryInvoked})
	c.AddTiming(QueryCompleted, time.Now().Add(-time.Millisecond), nil)

	events := c.Events()
	require.Len(t, events, 2)
	assert.Equal(t, []string{QueryInvoked, QueryCompleted}, seen)
	assert.True(t, events[1].Latency >= time.Millisecond)
	assert.False(t, events[1].End.Before(events[1].Start))

	c.Reset()
	assert.Empty(t, c.Events())

	// disabled collectors drop events
	off := NewCollector(nil)
	off.Add(Event{Name: QueryInvoked})
	assert.Empty(t, off.Events())

	var nilCollector *Collector
	nilCollector.Add(Event{Name: QueryInvoked})
}

func TestMulti(t *testing.T) {
	assert.Nil(t, Multi(nil, nil))

	count := 0
	h := func(Event) { count++ }
	Multi(h, nil, h)(Event{})
	assert.Equal(t, 2, count)
}

func TestFormat(t *testing.T) {
	var buf bytes.Buffer
	f := NewOutputFormatter(&buf)

	tests := []struct {
		event Event
		want  []string
	}{
		{
			Event{Name: QueryInvoked, Data: map[string]interface{}{"query": "{P: {age: 21}}"}},
			[]string{"Query: {P: {age: 21}}"},
		},
		{
			Event{Name: AliasScan, Latency: 2 * time.Millisecond, Data: map[string]interface{}{
				"alias": "P", "property": "age", "test": "21", "scan": "index",
				"entries.scanned": 3, "match.count": 2,
			}},
			[]string{"[2.0ms]", "Scan(P.age 21, index)", "2 matches of 3 entries"},
		},
		{
			Event{Name: AliasPruned, Data: map[string]interface{}{"alias": "P", "before": 5, "after": 2, "props": 2}},
			[]string{"Candidates(P, 5 ids) → Candidates(P, 2 ids)"},
		},
		{
			Event{Name: JoinCrossProduct, Data: map[string]interface{}{
				"aliases": []string{"P1", "P2"}, "sizes": []int{2, 3}, "provenance": true,
			}},
			[]string{"Candidates(P1, 2 ids) × Candidates(P2, 3 ids) → 6 combinations", "co-verified"},
		},
		{
			Event{Name: QueryCompleted, Data: map[string]interface{}{"success": true, "tuples.count": 4}},
			[]string{"4 tuples"},
		},
		{
			Event{Name: QueryCompleted, Data: map[string]interface{}{"success": false, "error": "boom"}},
			[]string{"Query failed: boom"},
		},
		{
			Event{Name: WriteInsert, Data: map[string]interface{}{"id": "Person@1"}},
			[]string{"insert Person@1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.event.Name, func(t *testing.T) {
			out := f.Format(tt.event)
			for _, want := range tt.want {
				assert.Contains(t, out, want)
			}
		})
	}

	f.Handle(Event{Name: WriteDelete, Data: map[string]interface{}{"id": "Person@1"}})
	assert.True(t, strings.HasSuffix(buf.String(), "delete Person@1\n"))
}

func TestTruncateQuery(t *testing.T) {
	assert.Equal(t, "a b", truncateQuery("a\n   b"))
	long := strings.Repeat("x", 100)
	assert.Len(t, truncateQuery(long), 80)
	assert.True(t, strings.HasSuffix(truncateQuery(long), "..."))
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	h := m.Handler()

	h(Event{Name: QueryCompleted, Latency: time.Millisecond, Data: map[string]interface{}{"success": true, "tuples.count": 4}})
	h(Event{Name: QueryCompleted, Data: map[string]interface{}{"success": false}})
	h(Event{Name: AliasScan, Data: map[string]interface{}{"scan": "index", "entries.scanned": 7}})
	h(Event{Name: WriteInsert})
	h(Event{Name: WriteInsert})
	h(Event{Name: ErrorBackend})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Queries.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Queries.WithLabelValues("error")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.QueryTuples))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.EntryScans.WithLabelValues("index")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Writes.WithLabelValues("insert")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BackendErrors))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}
