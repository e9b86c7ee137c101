package store

import (
	"strings"
	"testing"
)

func TestStripReplicaSet(t *testing.T) {
	uri := "mongodb://host1:27017,host2:27017/civicsense?replicaSet=rs0&retryWrites=true"
	got, rewritten := stripReplicaSet(uri)
	if !rewritten {
		t.Fatal("expected replicaSet parameter to be detected")
	}
	if strings.Contains(got, "replicaSet") {
		t.Fatalf("expected replicaSet removed, got %q", got)
	}
	if !strings.Contains(got, "retryWrites=true") {
		t.Fatalf("expected other query parameters preserved, got %q", got)
	}
}

func TestStripReplicaSetAbsent(t *testing.T) {
	uri := "mongodb://localhost:27017/civicsense"
	got, rewritten := stripReplicaSet(uri)
	if rewritten {
		t.Fatal("expected no rewrite without a replicaSet parameter")
	}
	if got != uri {
		t.Fatalf("expected uri unchanged, got %q", got)
	}
}

func TestTruncateErrorFlattensAndCaps(t *testing.T) {
	msg := "  line one\nline two\r\nline three  "
	got := truncateError(msg)
	if strings.ContainsAny(got, "\n\r") {
		t.Fatalf("expected newlines flattened, got %q", got)
	}
	if strings.HasPrefix(got, " ") || strings.HasSuffix(got, " ") {
		t.Fatalf("expected trimmed message, got %q", got)
	}

	long := strings.Repeat("x", 500)
	if got := truncateError(long); len(got) != 240 {
		t.Fatalf("expected 240-char cap, got %d", len(got))
	}
}
