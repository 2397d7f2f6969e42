package main

import (
	"bytes"
	"strings"
	"testing"

	"ani-viewer/internal/animate"
	"ani-viewer/internal/anitest"

	"gopkg.in/yaml.v3"
)

func TestRunSummary(t *testing.T) {
	path := anitest.WriteFile(t, t.TempDir(), "hero.ani", anitest.SampleLibrary())

	var stdout, stderr bytes.Buffer
	if err := run([]string{path}, &stdout, &stderr); err != nil {
		t.Fatalf("run: %v (stderr %q)", err, stderr.String())
	}

	var dump fileDump
	if err := yaml.Unmarshal(stdout.Bytes(), &dump); err != nil {
		t.Fatalf("output is not YAML: %v\n%s", err, stdout.String())
	}
	if dump.Summary.SymbolCount != 3 || dump.Summary.MsPerFrame != anitest.SampleFrameMs {
		t.Errorf("summary = %+v", dump.Summary)
	}
	if dump.Compression != "none" || len(dump.Digest) != 64 {
		t.Errorf("file info = %+v", dump)
	}
	if len(dump.Clips) != 0 {
		t.Errorf("clips dumped without --frames")
	}
}

func TestRunFrames(t *testing.T) {
	path := anitest.WriteFile(t, t.TempDir(), "hero.ani", anitest.SampleLibrary())

	var stdout, stderr bytes.Buffer
	if err := run([]string{"--frames", path}, &stdout, &stderr); err != nil {
		t.Fatalf("run: %v", err)
	}
	var dump fileDump
	if err := yaml.Unmarshal(stdout.Bytes(), &dump); err != nil {
		t.Fatal(err)
	}
	if len(dump.Clips) != 1 {
		t.Fatalf("clips = %d, want 1", len(dump.Clips))
	}
	clip := dump.Clips[0]
	if clip.ID != anitest.SampleClipID || clip.Name != anitest.SampleClipName {
		t.Errorf("clip = %d %q", clip.ID, clip.Name)
	}
	if len(clip.Uids) != 1 || clip.Uids[0] != anitest.SampleBitmapID {
		t.Errorf("uids = %v", clip.Uids)
	}
	if len(clip.States) != 2 || clip.States[0].Name != "idle" || clip.States[1].StartTime != 40 {
		t.Fatalf("states = %+v", clip.States)
	}
	depth0 := clip.States[0].Depths[0].Frames
	if len(depth0) != 2 || depth0[1].Matrix[4] != 10 || depth0[1].UID != 0 {
		t.Errorf("depth 0 frames = %+v", depth0)
	}
	depth1 := clip.States[0].Depths[1].Frames
	if len(depth1) != 1 || depth1[0].Name == nil || *depth1[0].Name != "caption" || depth1[0].UID != -1 {
		t.Errorf("depth 1 frames = %+v", depth1)
	}
	if !strings.Contains(stdout.String(), "matrix: [1, 0, 0, 1, 10, 0]") {
		t.Errorf("matrix not in flow style:\n%s", stdout.String())
	}
}

func TestRunErrors(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if err := run(nil, &stdout, &stderr); err == nil {
		t.Error("expected error without arguments")
	}

	bad := anitest.WriteFile(t, t.TempDir(), "bad.ani", []byte("KORGEANX"))
	err := run([]string{bad}, &stdout, &stderr)
	if err == nil || !animate.IsFormatError(err) {
		t.Errorf("run(bad) = %v, want format error", err)
	}
}
