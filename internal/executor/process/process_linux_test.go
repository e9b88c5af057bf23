//go:build linux

package process

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"
)

func TestRunTimeoutKillsProcessGroup(t *testing.T) {
	sh := requireShell(t)
	r := NewRunner(Config{KillGrace: 200 * time.Millisecond})

	res, err := r.Run(context.Background(), Command{
		Args:    []string{sh, "-c", "sleep 30 & echo $!; wait"},
		Timeout: 300 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if !res.KilledByTimeout {
		t.Fatalf("expected KilledByTimeout")
	}
	pid, err := strconv.Atoi(strings.TrimSpace(res.Stdout))
	if err != nil {
		t.Fatalf("parse child pid from %q: %v", res.Stdout, err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		if !processAlive(pid) {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("background child %d survived the timeout", pid)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestRunCleanExitKillsLeftoverChildren(t *testing.T) {
	sh := requireShell(t)
	r := NewRunner(Config{KillGrace: 200 * time.Millisecond})

	res, err := r.Run(context.Background(), Command{
		Args:    []string{sh, "-c", "sleep 30 & echo $!"},
		Timeout: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if res.KilledByTimeout || res.ExitCode != 0 {
		t.Fatalf("expected clean exit, got %+v", res)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(res.Stdout))
	if err != nil {
		t.Fatalf("parse child pid from %q: %v", res.Stdout, err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for processAlive(pid) {
		if time.Now().After(deadline) {
			t.Fatalf("background child %d outlived its leader", pid)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

// processAlive treats zombies as dead since they no longer run.
func processAlive(pid int) bool {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", pid))
	if err != nil {
		return false
	}
	// The state field follows the parenthesised command name.
	idx := strings.LastIndex(string(data), ")")
	if idx < 0 {
		return false
	}
	rest := strings.Fields(string(data)[idx+1:])
	if len(rest) == 0 {
		return false
	}
	return rest[0] != "Z" && rest[0] != "X"
}
