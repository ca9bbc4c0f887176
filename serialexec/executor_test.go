package serialexec

import (
	"sync"
	"testing"
)

func TestRunRunsEverySubmission(t *testing.T) {
	e := New()
	defer e.Close()

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.Run(func() (any, error) {
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
				return i, nil
			})
		}()
	}
	wg.Wait()

	if len(order) != 20 {
		t.Fatalf("len(order) = %d; want 20", len(order))
	}
}

func TestRunReturnsResult(t *testing.T) {
	e := New()
	defer e.Close()

	v, err := e.Run(func() (any, error) { return 42, nil })
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if v.(int) != 42 {
		t.Errorf("v = %v; want 42", v)
	}
}

func TestRunPropagatesError(t *testing.T) {
	e := New()
	defer e.Close()

	wantErr := errSentinel{}
	_, err := e.Run(func() (any, error) { return nil, wantErr })
	if err != wantErr {
		t.Errorf("err = %v; want %v", err, wantErr)
	}
}

type errSentinel struct{}

func (errSentinel) Error() string { return "sentinel" }

func TestRunAfterCloseFails(t *testing.T) {
	e := New()
	e.Close()

	_, err := e.Run(func() (any, error) { return nil, nil })
	if err != ErrClosed {
		t.Errorf("err = %v; want ErrClosed", err)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	e := New()
	e.Close()
	e.Close()
}

func TestCloseWithoutRun(t *testing.T) {
	e := New()
	e.Close()
}
