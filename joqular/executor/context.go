package executor

import (
	"time"

	"github.com/wbrown/janus-joqular/joqular/annotations"
)

// Context provides annotation points for query execution tracking.
type Context interface {
	// Query lifecycle
	QueryBegin(query string, aliases []string)
	QueryComplete(tupleCount int, err error)

	// Alias scanning
	ScanProperty(alias, property, test, scan string, fn func() (scanned, matched int, err error)) error
	PruneAlias(alias string, before, after, props int)

	// Joins
	ResolveJoin(alias, property, target string, targetCount, linkCount int)
	CrossProduct(aliases []string, sizes []int, provenance bool)

	// Get underlying collector
	Collector() *annotations.Collector
}

// BaseContext provides a no-op implementation with zero overhead.
type BaseContext struct{}

// NewContext creates an appropriate context based on whether annotations are needed.
func NewContext(handler annotations.Handler) Context {
	if handler == nil {
		return &BaseContext{}
	}
	return &AnnotatedContext{
		collector: annotations.NewCollector(handler),
	}
}

// BaseContext implementations - all are simple pass-throughs

func (c *BaseContext) QueryBegin(query string, aliases []string) {}

func (c *BaseContext) QueryComplete(tupleCount int, err error) {}

func (c *BaseContext) ScanProperty(alias, property, test, scan string, fn func() (int, int, error)) error {
	_, _, err := fn()
	return err
}

func (c *BaseContext) PruneAlias(alias string, before, after, props int) {}

func (c *BaseContext) ResolveJoin(alias, property, target string, targetCount, linkCount int) {}

func (c *BaseContext) CrossProduct(aliases []string, sizes []int, provenance bool) {}

func (c *BaseContext) Collector() *annotations.Collector {
	return nil
}

// AnnotatedContext provides full annotation tracking
type AnnotatedContext struct {
	BaseContext
	collector  *annotations.Collector
	queryStart time.Time
}

func (c *AnnotatedContext) QueryBegin(query string, aliases []string) {
	c.queryStart = time.Now()
	c.collector.Add(annotations.Event{
		Name:  annotations.QueryInvoked,
		Start: c.queryStart,
		Data: map[string]interface{}{
			"query":   query,
			"aliases": aliases,
		},
	})
}

func (c *AnnotatedContext) QueryComplete(tupleCount int, err error) {
	data := map[string]interface{}{
		"tuples.count": tupleCount,
		"success":      err == nil,
	}
	if err != nil {
		data["error"] = err.Error()
	}
	c.collector.AddTiming(annotations.QueryCompleted, c.queryStart, data)
}

func (c *AnnotatedContext) ScanProperty(alias, property, test, scan string, fn func() (int, int, error)) error {
	start := time.Now()
	scanned, matched, err := fn()

	data := map[string]interface{}{
		"alias":           alias,
		"property":        property,
		"test":            test,
		"scan":            scan,
		"entries.scanned": scanned,
		"match.count":     matched,
	}
	if err != nil {
		data["error"] = err.Error()
		c.collector.AddTiming(annotations.ErrorBackend, start, data)
		return err
	}
	c.collector.AddTiming(annotations.AliasScan, start, data)
	return nil
}

func (c *AnnotatedContext) PruneAlias(alias string, before, after, props int) {
	c.collector.Add(annotations.Event{
		Name:  annotations.AliasPruned,
		Start: time.Now(),
		Data: map[string]interface{}{
			"alias":  alias,
			"before": before,
			"after":  after,
			"props":  props,
		},
	})
}

func (c *AnnotatedContext) ResolveJoin(alias, property, target string, targetCount, linkCount int) {
	c.collector.Add(annotations.Event{
		Name:  annotations.JoinResolved,
		Start: time.Now(),
		Data: map[string]interface{}{
			"alias":        alias,
			"property":     property,
			"target":       target,
			"target.count": targetCount,
			"link.count":   linkCount,
		},
	})
}

func (c *AnnotatedContext) CrossProduct(aliases []string, sizes []int, provenance bool) {
	c.collector.Add(annotations.Event{
		Name:  annotations.JoinCrossProduct,
		Start: time.Now(),
		Data: map[string]interface{}{
			"aliases":    aliases,
			"sizes":      sizes,
			"provenance": provenance,
		},
	})
}

func (c *AnnotatedContext) Collector() *annotations.Collector {
	return c.collector
}
