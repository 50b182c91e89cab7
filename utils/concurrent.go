package utils

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// CxGroup runs functions in an errgroup sharing one cancellable context.
// The first error cancels the context and is returned by Block.
type CxGroup struct {
	ctx   context.Context
	group *errgroup.Group
}

func NewCGroup(ctx context.Context) *CxGroup {
	group, ctx := errgroup.WithContext(ctx)
	return &CxGroup{ctx: ctx, group: group}
}

// NewCGroupWithLimit bounds the number of concurrently running functions
func NewCGroupWithLimit(ctx context.Context, limit int) *CxGroup {
	cg := NewCGroup(ctx)
	if limit > 0 {
		cg.group.SetLimit(limit)
	}
	return cg
}

func (c *CxGroup) Ctx() context.Context {
	return c.ctx
}

func (c *CxGroup) Add(execute func(ctx context.Context) error) {
	c.group.Go(func() error {
		// skip work once a sibling failed
		if err := c.ctx.Err(); err != nil {
			return err
		}
		return execute(c.ctx)
	})
}

func (c *CxGroup) Block() error {
	return c.group.Wait()
}

// ConcurrentInGroup schedules execute for every element of array on the group;
// call Block to wait for completion
func ConcurrentInGroup[T any](group *CxGroup, array []T, execute func(ctx context.Context, elem T, idx int) error) {
	for idx, elem := range array {
		group.Add(func(ctx context.Context) error {
			return execute(ctx, elem, idx)
		})
	}
}
