package main

import (
	"reflect"
	"testing"
)

func TestBuildQueueStatusRowsOrdersByLifecycle(t *testing.T) {
	rows := buildQueueStatusRows(map[string]int{
		"completed":  3,
		"queued":     2,
		"failed":     1,
		"processing": 0,
	})

	want := [][]string{
		{"queued", "2"},
		{"completed", "3"},
		{"failed", "1"},
	}
	if !reflect.DeepEqual(rows, want) {
		t.Fatalf("unexpected rows: %v", rows)
	}
}

func TestBuildQueueStatusRowsEmpty(t *testing.T) {
	if rows := buildQueueStatusRows(nil); len(rows) != 0 {
		t.Fatalf("expected no rows, got %v", rows)
	}
}
