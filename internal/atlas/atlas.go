// Package atlas 提供图集解码所需的默认协作者：
// 图像字节解码为像素数据，以及像素数据注册为纹理句柄。
package atlas

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"sync"

	"ani-viewer/internal/models"
)

// ErrUnknownTexture 句柄未注册
var ErrUnknownTexture = errors.New("unknown texture handle")

// StdImageDecoder 基于 image.Decode 的解码器，支持 PNG/JPEG/GIF
type StdImageDecoder struct{}

// DecodeImage 解码图像字节
func (StdImageDecoder) DecodeImage(data []byte) (image.Image, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		if format == "" {
			return nil, fmt.Errorf("decode image (%d bytes): %w", len(data), err)
		}
		return nil, fmt.Errorf("decode %s image: %w", format, err)
	}
	return img, nil
}

// Registry 内存纹理注册表，句柄从 1 开始顺序分配
type Registry struct {
	mu       sync.RWMutex
	textures []image.Image
}

// NewRegistry 创建注册表
func NewRegistry() *Registry {
	return &Registry{}
}

// RegisterTexture 注册像素数据并返回句柄
func (r *Registry) RegisterTexture(img image.Image) (models.TextureHandle, error) {
	if img == nil {
		return 0, errors.New("register texture: nil image")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.textures = append(r.textures, img)
	return models.TextureHandle(len(r.textures)), nil
}

// Lookup 按句柄取回像素数据
func (r *Registry) Lookup(handle models.TextureHandle) (image.Image, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i := int(handle) - 1
	if i < 0 || i >= len(r.textures) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownTexture, handle)
	}
	return r.textures[i], nil
}

// Len 已注册纹理数量
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.textures)
}
