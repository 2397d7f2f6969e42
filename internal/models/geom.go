package models

import "math"

// Matrix 2D 仿射变换 (a, b, c, d, tx, ty)
type Matrix struct {
	A  float64 `json:"a"`
	B  float64 `json:"b"`
	C  float64 `json:"c"`
	D  float64 `json:"d"`
	TX float64 `json:"tx"`
	TY float64 `json:"ty"`
}

// Identity 单位矩阵
var Identity = Matrix{A: 1, D: 1}

// IsIdentity 是否为单位矩阵
func (m Matrix) IsIdentity() bool {
	return m == Identity
}

// Transform 对点 (x, y) 应用变换
func (m Matrix) Transform(x, y float64) (float64, float64) {
	return m.A*x + m.C*y + m.TX, m.B*x + m.D*y + m.TY
}

// Decomposed 矩阵分解后的变换参数 (角度为弧度)
type Decomposed struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	ScaleX   float64 `json:"scaleX"`
	ScaleY   float64 `json:"scaleY"`
	SkewX    float64 `json:"skewX"`
	SkewY    float64 `json:"skewY"`
	Rotation float64 `json:"rotation"`
}

// ComputedMatrix 矩阵及其预先计算好的分解结果
// 解码时计算一次，之后只读。
type ComputedMatrix struct {
	Matrix    Matrix     `json:"matrix"`
	Transform Decomposed `json:"transform"`
}

// IdentityComputed 单位矩阵的计算形式
var IdentityComputed = Compute(Identity)

// Compute 计算矩阵的分解形式
func Compute(m Matrix) ComputedMatrix {
	return ComputedMatrix{Matrix: m, Transform: Decompose(m)}
}

// Decompose 把矩阵分解为平移、缩放、斜切和旋转
// 两个斜切角近似相等时视为纯旋转。
func Decompose(m Matrix) Decomposed {
	const quarterPi = math.Pi / 4

	t := Decomposed{X: m.TX, Y: m.TY}
	t.SkewX = math.Atan(-m.C / m.D)
	t.SkewY = math.Atan(m.B / m.A)
	if math.IsNaN(t.SkewX) {
		t.SkewX = 0
	}
	if math.IsNaN(t.SkewY) {
		t.SkewY = 0
	}

	if t.SkewX > -quarterPi && t.SkewX < quarterPi {
		t.ScaleY = m.D / math.Cos(t.SkewX)
	} else {
		t.ScaleY = -m.C / math.Sin(t.SkewX)
	}
	if t.SkewY > -quarterPi && t.SkewY < quarterPi {
		t.ScaleX = m.A / math.Cos(t.SkewY)
	} else {
		t.ScaleX = m.B / math.Sin(t.SkewY)
	}

	if math.Abs(t.SkewX-t.SkewY) < 0.0001 {
		t.Rotation = t.SkewX
		t.SkewX = 0
		t.SkewY = 0
	}
	return t
}

// Rect 浮点矩形
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// IRect 整数矩形 (纹理空间)
type IRect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// VectorPath 矢量路径：命令字节与坐标两个平行数组
type VectorPath struct {
	Commands []uint8   `json:"commands"`
	Data     []float64 `json:"data"`
}
