package ingestion

import (
	"bytes"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProgressTracker_Basic(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, 100, 10)

	tracker.Start()
	tracker.Increment(25)
	tracker.Increment(25)
	tracker.Increment(50)

	assert.Equal(t, 100, tracker.Current())
	output := buf.String()
	assert.Contains(t, output, "100/100", "should show completion")
	assert.Contains(t, output, "100.0%", "should show 100%")
}

func TestProgressTracker_NotStarted(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, 10, 1)

	tracker.Increment(5)
	tracker.Finish()

	assert.Zero(t, tracker.Current())
	assert.Zero(t, tracker.Elapsed())
	assert.Empty(t, buf.String())
}

func TestProgressTracker_CapsAtTotal(t *testing.T) {
	tracker := NewProgressTracker(nil, 3, 1)
	tracker.Start()
	tracker.Increment(10)
	assert.Equal(t, 3, tracker.Current())
}

func TestProgressTracker_Concurrent(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, 200, 50)
	tracker.Start()

	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tracker.Increment(1)
		}()
	}
	wg.Wait()
	tracker.Finish()

	assert.Equal(t, 200, tracker.Current())
	assert.Contains(t, buf.String(), "200/200")
}
