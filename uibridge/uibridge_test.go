package uibridge

import (
	"context"
	"os/exec"
	"strings"
	"testing"
	"time"
)

func TestBuildArgsCopyMode(t *testing.T) {
	args := BuildArgs(ModeCopy, Options{Progress: true, NetWorkers: 4}, "/src", "/dst")
	got := strings.Join(args, " ")
	if !strings.HasPrefix(got, "copy ") {
		t.Fatalf("args = %q, want copy subcommand first", got)
	}
	if !strings.Contains(got, "--net-workers 4") {
		t.Fatalf("args = %q, missing --net-workers 4", got)
	}
	if !strings.HasSuffix(got, "/src /dst") {
		t.Fatalf("args = %q, want src/dest last", got)
	}
}

func TestBuildArgsLudicrousSuppressesImpliedProgress(t *testing.T) {
	args := BuildArgs(ModeMirror, Options{LudicrousSpeed: true}, "a", "b")
	for _, a := range args {
		if a == "-p" {
			t.Fatalf("args = %v, -p should not be implied under ludicrous-speed", args)
		}
	}
}

func TestStartStreamsLinesAndDone(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("no shell available")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	p, err := Start(ctx, "sh", "-c", "echo one; echo two >&2; exit 0")
	if err != nil {
		t.Fatal(err)
	}

	var lines []string
	var done *Event
	for ev := range p.Events {
		if ev.Done {
			e := ev
			done = &e
			continue
		}
		lines = append(lines, ev.Line)
	}
	if done == nil || !done.Success {
		t.Fatalf("done = %+v, want Success", done)
	}
	if len(lines) != 2 {
		t.Fatalf("lines = %v, want 2", lines)
	}
}
