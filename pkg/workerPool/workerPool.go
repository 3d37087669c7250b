package workerpool

import (
	"fmt"
	"runtime"
	"sync"
)

// WorkerPool runs independent jobs on a fixed set of workers. The engine
// uses it to fan out read-only network re-detections after a block is
// removed, one job per surviving neighbor.
type WorkerPool struct {
	config    Config
	jobQueue  chan job
	closeOnce sync.Once
}

type Config struct {
	WorkerCount  int
	GlobalBuffer int
}

// Room groups the jobs of one caller so their results can be collected
// together without interfering with other callers sharing the pool.
type Room struct {
	resultChan chan interface{}
	wg         sync.WaitGroup
	wp         *WorkerPool
}

type job struct {
	run  func() interface{}
	room *Room
}

func NewWorkerPool(config Config) *WorkerPool {
	if config.WorkerCount < 1 {
		config.WorkerCount = runtime.NumCPU()
	}
	if config.GlobalBuffer < 1 {
		config.GlobalBuffer = 1024
	}

	wp := &WorkerPool{
		config:   config,
		jobQueue: make(chan job, config.GlobalBuffer),
	}

	for i := 0; i < config.WorkerCount; i++ {
		go wp.worker()
	}

	return wp
}

func (wp *WorkerPool) worker() {
	for j := range wp.jobQueue {
		j.room.resultChan <- j.run()
		j.room.wg.Done()
	}
}

// Close stops the workers once queued jobs have drained. Submitting after
// Close panics; the engine closes the pool only on teardown.
func (wp *WorkerPool) Close() {
	wp.closeOnce.Do(func() {
		close(wp.jobQueue)
	})
}

func (wp *WorkerPool) CreateRoom(size int) *Room {
	if size < 1 {
		size = 1
	}
	return &Room{
		resultChan: make(chan interface{}, size),
		wp:         wp,
	}
}

// Submit queues one job, blocking when the global buffer is full.
func (ro *Room) Submit(run func() interface{}) {
	ro.wg.Add(1)
	ro.wp.jobQueue <- job{run: run, room: ro}
}

// TrySubmit queues one job or reports that the global buffer is full.
func (ro *Room) TrySubmit(run func() interface{}) error {
	if len(ro.wp.jobQueue) == cap(ro.wp.jobQueue) {
		return fmt.Errorf("worker pool buffer is full")
	}
	ro.Submit(run)
	return nil
}

// Collect waits for every submitted job of the room and returns all results.
// Result order is completion order; callers that need a stable order tag
// their results.
func (ro *Room) Collect() []interface{} {
	go func() {
		ro.wg.Wait()
		close(ro.resultChan)
	}()

	results := make([]interface{}, 0)
	for result := range ro.resultChan {
		results = append(results, result)
	}
	return results
}
