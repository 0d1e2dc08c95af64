package coordinator

import (
	"context"
	"fmt"
	"sync"

	"github.com/strokeworks/vectorflow/internal/log"
	"github.com/strokeworks/vectorflow/service/generation"
	"github.com/strokeworks/vectorflow/tracing"
)

// settle executes every item and waits for all of them: successes and
// failures are both collected, no branch's failure cancels another's
// in-flight work. Each branch writes to its own slot; there is no shared
// mutable state across branches. When a batch backend is attached the
// whole set is delegated to it; a transport-level batch failure falls back
// to in-process execution.
func (s *Service) settle(ctx context.Context, items []generation.Item) []generation.Result {
	if len(items) == 0 {
		return nil
	}
	if s.batch != nil {
		results, err := s.batch.GenerateBatch(ctx, items)
		if err == nil {
			return orderResults(items, results)
		}
		log.GetLogger().WithField("items", len(items)).
			Warnf("batch generation failed, falling back to in-process fan-out: %v", err)
	}

	slots := make([]generation.Result, len(items))
	var wg sync.WaitGroup
	for i := range items {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					slots[i] = generation.Result{
						Key: items[i].Key,
						Err: fmt.Errorf("%w: branch panicked: %v", generation.ErrProvider, r),
					}
				}
			}()
			branchCtx, span := tracing.StartSpan(ctx, "coordinator.branch", "")
			content, err := s.provider.Generate(branchCtx, items[i].Prompt)
			tracing.EndSpan(span, err)
			slots[i] = generation.Result{Key: items[i].Key, Content: content, Err: err}
		}(i)
	}
	wg.Wait()
	return slots
}

// orderResults maps keyed batch results back onto the item order.
func orderResults(items []generation.Item, results []generation.Result) []generation.Result {
	byKey := make(map[string]generation.Result, len(results))
	for _, result := range results {
		byKey[result.Key] = result
	}
	ordered := make([]generation.Result, len(items))
	for i, item := range items {
		result, ok := byKey[item.Key]
		if !ok {
			result = generation.Result{
				Key: item.Key,
				Err: fmt.Errorf("%w: batch returned no result for %s", generation.ErrProvider, item.Key),
			}
		}
		ordered[i] = result
	}
	return ordered
}
