package counterdumper

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCounterDumperPeriodic(t *testing.T) {
	reports := make(chan uint64, 10)

	c := &CounterDumper{
		OnReport: func(v uint64) {
			reports <- v
		},
		Period: 50 * time.Millisecond,
	}
	c.Start()
	defer c.Stop()

	c.Increase()
	c.Add(4)

	require.Equal(t, uint64(5), <-reports)
	require.Equal(t, uint64(5), c.Total())

	select {
	case v := <-reports:
		t.Errorf("unexpected report: %d", v)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestCounterDumperFlushOnStop(t *testing.T) {
	var reported uint64

	c := &CounterDumper{
		OnReport: func(v uint64) {
			reported += v
		},
		Period: time.Hour,
	}
	c.Start()

	c.Add(3)
	c.Stop()

	require.Equal(t, uint64(3), reported)
}
