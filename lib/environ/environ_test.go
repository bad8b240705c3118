// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package environ

import (
	"reflect"
	"testing"
)

func TestParse_LaterEntriesWin(t *testing.T) {
	snapshot := Parse([]string{"A=1", "B=2", "A=3", "malformed", "=nokey"})
	if got := snapshot.Get("A"); got != "3" {
		t.Errorf("A = %q, want 3", got)
	}
	if snapshot.Len() != 2 {
		t.Errorf("Len() = %d, want 2", snapshot.Len())
	}
	if _, ok := snapshot.Lookup("malformed"); ok {
		t.Error("entry without '=' was kept")
	}
}

func TestMerge_OverlayWins(t *testing.T) {
	base := Parse([]string{"PATH=/usr/bin", "HOME=/home/user", "KEEP=yes"})
	overlay := Overlay{
		"HOME":    "/override",
		"ZETA":    "z",
		"ALPHA":   "a",
		"ALSONEW": "n",
	}

	got := Merge(base, overlay)
	want := []string{
		"PATH=/usr/bin",
		"HOME=/override",
		"KEEP=yes",
		"ALPHA=a",
		"ALSONEW=n",
		"ZETA=z",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Merge() = %v, want %v", got, want)
	}
}

func TestMerge_EmptyOverlay(t *testing.T) {
	base := Parse([]string{"A=1"})
	if got := Merge(base, nil); !reflect.DeepEqual(got, []string{"A=1"}) {
		t.Errorf("Merge() = %v", got)
	}
}

func TestOverlay_With(t *testing.T) {
	first := Overlay{"A": "1", "B": "2"}
	merged := first.With(Overlay{"B": "3"})
	if merged["A"] != "1" || merged["B"] != "3" {
		t.Errorf("With() = %v", merged)
	}
	if first["B"] != "2" {
		t.Error("With() modified the receiver")
	}
}

func TestChildOverlay(t *testing.T) {
	base := Parse([]string{TelemetryLogVar + "=1"})
	overlay := ChildOverlay(base, "/opt/dotcli", "session-1")

	want := Overlay{
		HostPathVar:         "/opt/dotcli",
		TelemetrySessionVar: "session-1",
		TelemetryLogVar:     "1",
	}
	if !reflect.DeepEqual(overlay, want) {
		t.Errorf("ChildOverlay() = %v, want %v", overlay, want)
	}

	if _, ok := ChildOverlay(Parse(nil), "", "")[TelemetryLogVar]; ok {
		t.Error("telemetry toggle set without the parent variable")
	}
}
