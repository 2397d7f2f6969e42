package index

import (
	"bytes"
	"errors"
	"os"
	"reflect"
	"testing"

	"ani-viewer/internal/animate"
	"ani-viewer/internal/anitest"
	"ani-viewer/internal/loader"
)

func useTempCacheDir(t *testing.T) {
	t.Helper()
	prev := GetCacheDir()
	if err := SetCacheDir(t.TempDir()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		cacheDirMu.Lock()
		cacheDir = prev
		cacheDirMu.Unlock()
	})
}

func sampleEntry(t *testing.T) (loader.Digest, *Entry) {
	t.Helper()
	data := anitest.SampleLibrary()
	lib, err := animate.DecodeBytes(data, animate.Options{})
	if err != nil {
		t.Fatal(err)
	}
	return loader.HashBytes(data), &Entry{
		Name:        "sample",
		Size:        int64(len(data)),
		Compression: loader.CompressionNone.String(),
		Summary:     lib.Summarize(),
	}
}

func TestSaveLoad(t *testing.T) {
	useTempCacheDir(t)
	digest, entry := sampleEntry(t)

	if Exists(digest) {
		t.Fatal("Exists before Save")
	}
	if _, err := Load(digest); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("Load before Save: %v, want ErrNotExist", err)
	}

	if err := Save(digest, entry); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !Exists(digest) {
		t.Fatal("Exists after Save = false")
	}
	got, err := Load(digest)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(got, entry) {
		t.Errorf("Load = %+v\nwant %+v", got, entry)
	}
	if got.Summary.SymbolCount != 3 || got.Summary.KindCounts["movieclip"] != 1 {
		t.Errorf("summary = %+v", got.Summary)
	}

	if err := Remove(digest); err != nil {
		t.Fatal(err)
	}
	if err := Remove(digest); err != nil {
		t.Errorf("second Remove: %v", err)
	}
	if Exists(digest) {
		t.Error("Exists after Remove")
	}
}

func TestEncodeDeterministic(t *testing.T) {
	_, entry := sampleEntry(t)
	a, err := Encode(entry)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Encode(entry)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a, b) {
		t.Error("encoding is not deterministic")
	}
	if !bytes.HasPrefix(a, []byte(Magic)) || a[len(Magic)] != Version {
		t.Errorf("header = %q", a[:headerSize])
	}
}

func TestDecodeRejects(t *testing.T) {
	_, entry := sampleEntry(t)
	good, err := Encode(entry)
	if err != nil {
		t.Fatal(err)
	}

	stale := append([]byte(nil), good...)
	stale[len(Magic)] = Version + 1
	if _, err := Decode(stale); !errors.Is(err, ErrStale) {
		t.Errorf("stale version: %v, want ErrStale", err)
	}

	if _, err := Decode([]byte("NOPE\x01")); !errors.Is(err, ErrCorrupt) {
		t.Errorf("bad magic: %v, want ErrCorrupt", err)
	}
	if _, err := Decode(good[:2]); !errors.Is(err, ErrCorrupt) {
		t.Errorf("short: %v, want ErrCorrupt", err)
	}
	if _, err := Decode(good[:len(good)-3]); !errors.Is(err, ErrCorrupt) {
		t.Errorf("truncated body: %v, want ErrCorrupt", err)
	}
}

func TestStaleFileIsNotAHit(t *testing.T) {
	useTempCacheDir(t)
	digest, entry := sampleEntry(t)
	if err := Save(digest, entry); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(CachePath(digest))
	if err != nil {
		t.Fatal(err)
	}
	data[len(Magic)] = Version + 1
	if err := os.WriteFile(CachePath(digest), data, 0o644); err != nil {
		t.Fatal(err)
	}

	if Exists(digest) {
		t.Error("Exists reports stale entry")
	}
	if _, err := Load(digest); !errors.Is(err, ErrStale) {
		t.Errorf("Load stale: %v, want ErrStale", err)
	}
}

func TestLoadDigestMismatch(t *testing.T) {
	useTempCacheDir(t)
	_, entry := sampleEntry(t)
	other := loader.HashBytes([]byte("other"))

	data, err := Encode(entry)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(CachePath(other), data, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(other); !errors.Is(err, ErrCorrupt) {
		t.Errorf("Load mismatched entry: %v, want ErrCorrupt", err)
	}
}

func TestRemove(t *testing.T) {
	useTempCacheDir(t)
	digest, entry := sampleEntry(t)
	if err := Save(loader.Digest{}, entry); err == nil {
		t.Error("Save accepted an empty digest")
	}
	if err := Save(digest, entry); err != nil {
		t.Fatal(err)
	}
	if err := Remove(digest); err != nil {
		t.Fatal(err)
	}
	if Exists(digest) {
		t.Error("entry still present after Remove")
	}
	if err := Remove(digest); err != nil {
		t.Errorf("Remove of missing entry: %v", err)
	}
}
