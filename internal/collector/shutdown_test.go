package collector

import (
	"os"
	"runtime"
	"testing"
	"time"
)

// TestSetupSignalHandler tests that the first signal cancels the context
func TestSetupSignalHandler(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("Signal tests not supported on Windows")
	}

	ctx := SetupSignalHandler()

	select {
	case <-ctx.Done():
		t.Fatal("Context should not be cancelled initially")
	default:
	}

	p, _ := os.FindProcess(os.Getpid())
	p.Signal(os.Interrupt)

	select {
	case <-ctx.Done():
	case <-time.After(1 * time.Second):
		t.Error("Context should be cancelled after signal")
	}
}

func TestFormatDuration(t *testing.T) {
	tests := map[time.Duration]string{
		1500 * time.Millisecond:                   "1.5s",
		2*time.Minute + 5*time.Second:             "2m05s",
		time.Hour + 3*time.Minute + 9*time.Second: "1h03m09s",
	}
	for in, want := range tests {
		if got := formatDuration(in); got != want {
			t.Errorf("formatDuration(%s) = %q, want %q", in, got, want)
		}
	}
}
