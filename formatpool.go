// Copyright 2024 The Pruner Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package pruner

import (
	"context"
	"runtime"
)

// regionTask is one unit of parallel region sub-formatting, the
// job/jobResult split of worker.go recast for region indices instead of
// target names.
type regionTask struct {
	index  int
	region InjectedRegion
}

// runRegionPool fans do() out across a small bounded set of goroutines,
// modeled on workerManager's worker/job channel pair, and blocks until
// every worker has exited. Once ctx is cancelled, the remaining regions
// are drained without running do(), so Format checks ctx after the pool
// returns; otherwise every regionResult slot is populated before Format
// sorts and reassembles (spec.md §5's join-before-splice ordering
// guarantee).
func runRegionPool(ctx context.Context, regions []InjectedRegion, do func(i int, region InjectedRegion)) {
	if len(regions) == 0 {
		return
	}

	workers := regionPoolSize(len(regions))
	tasks := make(chan regionTask)
	done := make(chan struct{}, workers)

	for w := 0; w < workers; w++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for t := range tasks {
				if ctx.Err() != nil {
					continue
				}
				do(t.index, t.region)
			}
		}()
	}

	for i, r := range regions {
		tasks <- regionTask{index: i, region: r}
	}
	close(tasks)

	for w := 0; w < workers; w++ {
		<-done
	}
}

// regionPoolSize bounds parallelism by GOMAXPROCS, never spinning up more
// goroutines than there is work to hand them.
func regionPoolSize(n int) int {
	procs := runtime.GOMAXPROCS(0)
	if procs < 1 {
		procs = 1
	}
	if n < procs {
		return n
	}
	return procs
}
