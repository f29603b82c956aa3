package journal

import (
	"context"
	"encoding/json"
	"os/exec"
	"testing"
)

func TestStreamForwardsEachValidJSONLine(t *testing.T) {
	tailer := New("journalctl")
	tailer.newCmd = func(ctx context.Context, historyLen int, unit string) *exec.Cmd {
		script := `printf '{"MESSAGE":"one","SYSLOG_TIMESTAMP":"1"}\n'
printf 'not json\n'
printf '{"MESSAGE":"two","SYSLOG_TIMESTAMP":"2"}\n'`
		return exec.CommandContext(ctx, "sh", "-c", script)
	}

	var got []json.RawMessage
	err := tailer.Stream(context.Background(), 0, "", func(m json.RawMessage) {
		got = append(got, m)
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 valid JSON lines forwarded, got %d: %v", len(got), got)
	}
	var first map[string]string
	if err := json.Unmarshal(got[0], &first); err != nil || first["MESSAGE"] != "one" {
		t.Fatalf("unexpected first entry: %s", got[0])
	}
}

func TestStreamPassesHistoryLenAndUnitToRealCommand(t *testing.T) {
	tailer := New("journalctl")
	var gotHistory int
	var gotUnit string
	tailer.newCmd = func(ctx context.Context, historyLen int, unit string) *exec.Cmd {
		gotHistory, gotUnit = historyLen, unit
		return exec.CommandContext(ctx, "true")
	}
	if err := tailer.Stream(context.Background(), 42, "example.service", func(json.RawMessage) {}); err != nil {
		t.Fatal(err)
	}
	if gotHistory != 42 || gotUnit != "example.service" {
		t.Fatalf("expected history/unit passed through, got %d/%s", gotHistory, gotUnit)
	}
}
