package filter

import (
	"fmt"

	"github.com/robert-malhotra/h5slab/internal/message"
)

// Pipeline is the ordered filter chain of a dataset.
type Pipeline struct {
	filters []Filter
}

// NewPipeline builds the chain described by fp, which may be nil.
func NewPipeline(fp *message.FilterPipeline) *Pipeline {
	p := &Pipeline{}
	if fp == nil {
		return p
	}
	for _, f := range fp.Filters {
		p.filters = append(p.filters, New(f))
	}
	return p
}

// Of returns a pipeline over the given filters, in write order.
func Of(filters ...Filter) *Pipeline {
	return &Pipeline{filters: filters}
}

// Empty reports whether the pipeline has no filters.
func (p *Pipeline) Empty() bool { return len(p.filters) == 0 }

func (p *Pipeline) Len() int { return len(p.filters) }

// Decode undoes the filters in reverse order. Bit i of mask set means
// filter i was not applied to this chunk.
func (p *Pipeline) Decode(data []byte, mask uint32) ([]byte, error) {
	for i := len(p.filters) - 1; i >= 0; i-- {
		if i < 32 && mask&(1<<uint(i)) != 0 {
			continue
		}
		var err error
		if data, err = p.filters[i].Decode(data); err != nil {
			return nil, fmt.Errorf("filter %d: %w", p.filters[i].ID(), err)
		}
	}
	return data, nil
}

// Encode applies every filter in order.
func (p *Pipeline) Encode(data []byte) ([]byte, error) {
	for _, f := range p.filters {
		var err error
		if data, err = f.Encode(data); err != nil {
			return nil, fmt.Errorf("filter %d: %w", f.ID(), err)
		}
	}
	return data, nil
}
