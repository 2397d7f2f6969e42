package models

import "image"

// TextureHandle 纹理注册后得到的句柄
type TextureHandle int

// Atlas 解码后的图集：像素数据和纹理句柄
type Atlas struct {
	Index   int           `json:"index"`
	Format  int           `json:"format"`
	Width   int           `json:"width"`
	Height  int           `json:"height"`
	Image   image.Image   `json:"-"`
	Texture TextureHandle `json:"texture"`
}

// AtlasRegion 图集中的一个子区域
type AtlasRegion struct {
	AtlasIndex int           `json:"atlas"`
	Texture    TextureHandle `json:"texture"`
	Bounds     IRect         `json:"bounds"`
	Image      image.Image   `json:"-"`
}

type subImager interface {
	SubImage(r image.Rectangle) image.Image
}

// Slice 截取图集子区域
// 不支持 SubImage 的图像保留整张图，Bounds 仍记录请求的区域。
func (a *Atlas) Slice(bounds IRect) AtlasRegion {
	region := AtlasRegion{
		AtlasIndex: a.Index,
		Texture:    a.Texture,
		Bounds:     bounds,
		Image:      a.Image,
	}
	if s, ok := a.Image.(subImager); ok {
		r := image.Rect(bounds.X, bounds.Y, bounds.X+bounds.Width, bounds.Y+bounds.Height)
		region.Image = s.SubImage(r)
	}
	return region
}
