package telemon

import (
	"context"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func noDelays() func() {
	origRetrySleep := retrySleep
	retrySleep = 0
	return func() {
		retrySleep = origRetrySleep
	}
}

type retryable struct {
	mu          sync.Mutex
	open        bool
	closeCount  int
	openErrs    []error
	startedChan chan struct{}
	stopChan    chan error
}

func (r *retryable) Open() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.openErrs) > 0 {
		err := r.openErrs[0]
		r.openErrs = r.openErrs[1:]
		return err
	}
	r.open = true
	return nil
}

func (r *retryable) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.open = false
	r.closeCount++
	return nil
}

func (r *retryable) isOpen() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.open
}

func (r *retryable) closes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closeCount
}

func (r *retryable) Start(ctx context.Context) error {
	r.startedChan <- struct{}{}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-r.stopChan:
		return err
	}
}

func (r *retryable) Name() string {
	return "retryable-test"
}

func TestRetry(t *testing.T) {
	defer noDelays()()
	r := &retryable{
		openErrs:    []error{errors.New("bus down")},
		startedChan: make(chan struct{}),
		stopChan:    make(chan error),
	}

	wg := sync.WaitGroup{}
	wg.Add(1)
	ctx, cancel := context.WithCancel(context.Background())
	var err error
	go func() {
		err = Retry(ctx, r)
		wg.Done()
	}()

	// first open fails, second succeeds
	<-r.startedChan
	assert.True(t, r.isOpen())
	assert.Equal(t, 1, r.closes())

	// start returning without error still reconnects
	r.stopChan <- nil
	<-r.startedChan
	assert.True(t, r.isOpen())
	assert.Equal(t, 2, r.closes())

	// emulate an error being returned from start
	r.stopChan <- errors.New("fake error")
	<-r.startedChan
	assert.Equal(t, 3, r.closes())
	assert.True(t, r.isOpen())

	cancel()
	wg.Wait()
	assert.Equal(t, context.Canceled, err)
	assert.False(t, r.isOpen(), "closed on shutdown")
}
