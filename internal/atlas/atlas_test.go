package atlas

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"
)

func encodePNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	img.Set(1, 1, color.NRGBA{R: 255, A: 255})
	var buffer bytes.Buffer
	if err := png.Encode(&buffer, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return buffer.Bytes()
}

func TestStdImageDecoderPNG(t *testing.T) {
	img, err := StdImageDecoder{}.DecodeImage(encodePNG(t, 4, 3))
	if err != nil {
		t.Fatalf("DecodeImage: %v", err)
	}
	if img.Bounds() != image.Rect(0, 0, 4, 3) {
		t.Errorf("bounds = %v, want 4x3", img.Bounds())
	}
	if _, _, _, a := img.At(1, 1).RGBA(); a == 0 {
		t.Error("pixel (1,1) lost its alpha")
	}
}

func TestStdImageDecoderRejectsGarbage(t *testing.T) {
	if _, err := (StdImageDecoder{}).DecodeImage([]byte("not an image")); err == nil {
		t.Fatal("DecodeImage accepted garbage")
	}
}

func TestRegistry(t *testing.T) {
	registry := NewRegistry()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))

	handle, err := registry.RegisterTexture(img)
	if err != nil {
		t.Fatalf("RegisterTexture: %v", err)
	}
	if handle != 1 {
		t.Errorf("first handle = %d, want 1", handle)
	}
	got, err := registry.Lookup(handle)
	if err != nil || got != image.Image(img) {
		t.Errorf("Lookup = %v, %v", got, err)
	}
	if _, err := registry.Lookup(0); !errors.Is(err, ErrUnknownTexture) {
		t.Errorf("Lookup(0) err = %v, want ErrUnknownTexture", err)
	}
	if _, err := registry.RegisterTexture(nil); err == nil {
		t.Error("RegisterTexture(nil) succeeded")
	}
}

func TestRegistryConcurrent(t *testing.T) {
	registry := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			registry.RegisterTexture(image.NewRGBA(image.Rect(0, 0, 1, 1)))
		}()
	}
	wg.Wait()
	if registry.Len() != 32 {
		t.Errorf("Len = %d, want 32", registry.Len())
	}
}
