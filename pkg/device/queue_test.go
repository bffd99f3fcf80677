package device

import (
	"errors"
	"testing"

	"github.com/calvergne/panelkit/pkg/mtx"
)

func TestQueueOrdering(t *testing.T) {
	dev := Open(0)
	q := dev.NewQueue()
	defer q.Close()

	var got []int
	for i := 0; i < 100; i++ {
		i := i
		q.Launch(func() { got = append(got, i) })
	}
	if err := q.Sync(); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("out of order at %d: got %d", i, v)
		}
	}
	if len(got) != 100 {
		t.Fatalf("ran %d ops, want 100", len(got))
	}
}

func TestEventWaitAndDone(t *testing.T) {
	dev := Open(0)
	q := dev.NewQueue()
	defer q.Close()

	ran := false
	ev := q.Launch(func() { ran = true })
	if err := ev.Wait(); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if !ran {
		t.Fatalf("kernel did not run before event completion")
	}
	if !ev.Done() {
		t.Fatalf("Done must report true after Wait")
	}
}

func TestCrossQueueWaitEvent(t *testing.T) {
	dev := Open(0)
	q1 := dev.NewQueue()
	q2 := dev.NewQueue()
	defer q1.Close()
	defer q2.Close()

	var value int
	ev := q1.Launch(func() { value = 42 })
	q2.WaitEvent(ev)
	var seen int
	q2.Launch(func() { seen = value })
	if err := q2.Sync(); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if seen != 42 {
		t.Fatalf("cross-queue ordering broken: seen = %d", seen)
	}
}

func TestQueueStickyFailure(t *testing.T) {
	dev := Open(0)
	q := dev.NewQueue()
	defer q.Close()

	ev := q.Launch(func() { panic("kernel fault") })
	if err := ev.Wait(); !errors.Is(err, ErrQueueFailed) {
		t.Fatalf("expected ErrQueueFailed, got %v", err)
	}

	// Later work on the failed queue completes with the same sticky error
	// and never runs.
	ran := false
	ev2 := q.Launch(func() { ran = true })
	if err := ev2.Wait(); !errors.Is(err, ErrQueueFailed) {
		t.Fatalf("expected sticky ErrQueueFailed, got %v", err)
	}
	if ran {
		t.Fatalf("kernel ran on a failed queue")
	}
	if err := q.Err(); !errors.Is(err, ErrQueueFailed) {
		t.Fatalf("Err() = %v", err)
	}
}

func TestCopyAsyncBetweenBuffers(t *testing.T) {
	dev := Open(0)
	q := dev.NewQueue()
	defer q.Close()

	src := mtx.NewMatrix[float64](5, 4)
	mtx.FillRand(&src, 9)
	buf, err := Malloc[float64](dev, 5*4)
	if err != nil {
		t.Fatalf("Malloc: %v", err)
	}
	dst := buf.Matrix(5, 4, 5)

	if err := Copy(q, dst, src); err != nil {
		t.Fatalf("Copy: %v", err)
	}
	for j := 0; j < 4; j++ {
		for i := 0; i < 5; i++ {
			if dst.At(i, j) != src.At(i, j) {
				t.Fatalf("copy mismatch at (%d,%d)", i, j)
			}
		}
	}
}

func TestCopyAsyncShapeMismatchPanics(t *testing.T) {
	dev := Open(0)
	q := dev.NewQueue()
	defer q.Close()

	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic for mismatched copy shapes")
		}
	}()
	a := mtx.NewMatrix[float64](3, 3)
	b := mtx.NewMatrix[float64](4, 3)
	CopyAsync(q, a, b)
}

func TestMemsetAsync(t *testing.T) {
	dev := Open(0)
	q := dev.NewQueue()
	defer q.Close()

	b, err := Malloc[float32](dev, 16)
	if err != nil {
		t.Fatalf("Malloc: %v", err)
	}
	ev := MemsetAsync(q, b, 2.5)
	if err := ev.Wait(); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	for i, v := range b.Data() {
		if v != 2.5 {
			t.Fatalf("data[%d] = %v", i, v)
		}
	}
}

func TestQueueCloseDrains(t *testing.T) {
	dev := Open(0)
	q := dev.NewQueue()

	done := false
	q.Launch(func() { done = true })
	if err := q.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !done {
		t.Fatalf("Close must drain pending work")
	}
}
