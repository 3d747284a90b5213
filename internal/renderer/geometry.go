package renderer

import (
	"image"
	"math"

	"golang.org/x/image/math/f64"

	"github.com/ivlev/scenereel/internal/model"
	"github.com/ivlev/scenereel/internal/motion"
)

// rectF - прямоугольник в пикселях кадра с дробными координатами.
type rectF struct {
	x, y, w, h float64
}

func (r rectF) center() (float64, float64) { return r.x + r.w/2, r.y + r.h/2 }

func (r rectF) int() image.Rectangle {
	return image.Rect(
		int(math.Round(r.x)), int(math.Round(r.y)),
		int(math.Round(r.x+r.w)), int(math.Round(r.y+r.h)),
	)
}

func boxPx(b model.Box, w, h int) rectF {
	return rectF{x: b.X * float64(w), y: b.Y * float64(h), w: b.W * float64(w), h: b.H * float64(h)}
}

var identity = f64.Aff3{1, 0, 0, 0, 1, 0}

// mul возвращает преобразование "сначала b, потом a".
func mul(a, b f64.Aff3) f64.Aff3 {
	return f64.Aff3{
		a[0]*b[0] + a[1]*b[3], a[0]*b[1] + a[1]*b[4], a[0]*b[2] + a[1]*b[5] + a[2],
		a[3]*b[0] + a[4]*b[3], a[3]*b[1] + a[4]*b[4], a[3]*b[2] + a[4]*b[5] + a[5],
	}
}

func apply(m f64.Aff3, x, y float64) (float64, float64) {
	return m[0]*x + m[1]*y + m[2], m[3]*x + m[4]*y + m[5]
}

// around - масштаб и поворот (в градусах) вокруг точки (cx,cy) и сдвиг
// на (tx,ty) пикселей.
func around(cx, cy, scale, rotate, tx, ty float64) f64.Aff3 {
	sin, cos := math.Sincos(rotate * math.Pi / 180)
	m := f64.Aff3{scale * cos, -scale * sin, 0, scale * sin, scale * cos, 0}
	m[2] = cx + tx - (m[0]*cx + m[1]*cy)
	m[5] = cy + ty - (m[3]*cx + m[4]*cy)
	return m
}

// groupAff - стиль сцены в переходе: сдвиги в процентах кадра, центр -
// центр кадра.
func groupAff(g motion.Style, w, h int) f64.Aff3 {
	fw, fh := float64(w), float64(h)
	return around(fw/2, fh/2, g.Scale, g.Rotate, g.TranslateX/100*fw, g.TranslateY/100*fh)
}

// layerAff - собственный стиль слоя: сдвиги в процентах бокса.
func layerAff(s motion.Style, box rectF) f64.Aff3 {
	cx, cy := box.center()
	return around(cx, cy, s.Scale, s.Rotate, s.TranslateX/100*box.w, s.TranslateY/100*box.h)
}

// fit отображает источник с границами src в прямоугольник dst.
func fit(src image.Rectangle, dst rectF) f64.Aff3 {
	kx := dst.w / float64(src.Dx())
	ky := dst.h / float64(src.Dy())
	return f64.Aff3{kx, 0, dst.x - kx*float64(src.Min.X), 0, ky, dst.y - ky*float64(src.Min.Y)}
}

// cover - прямоугольник, в который src вписывается с заполнением кадра
// (края обрезаются), contain - целиком внутри box.
func cover(src image.Rectangle, w, h int) rectF {
	k := math.Max(float64(w)/float64(src.Dx()), float64(h)/float64(src.Dy()))
	dw, dh := float64(src.Dx())*k, float64(src.Dy())*k
	return rectF{x: (float64(w) - dw) / 2, y: (float64(h) - dh) / 2, w: dw, h: dh}
}

func contain(src image.Rectangle, box rectF) rectF {
	k := math.Min(box.w/float64(src.Dx()), box.h/float64(src.Dy()))
	dw, dh := float64(src.Dx())*k, float64(src.Dy())*k
	cx, cy := box.center()
	return rectF{x: cx - dw/2, y: cy - dh/2, w: dw, h: dh}
}

// bounds - ограничивающий прямоугольник r после преобразования m.
func bounds(m f64.Aff3, r rectF) image.Rectangle {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range [][2]float64{{r.x, r.y}, {r.x + r.w, r.y}, {r.x, r.y + r.h}, {r.x + r.w, r.y + r.h}} {
		x, y := apply(m, p[0], p[1])
		minX, minY = math.Min(minX, x), math.Min(minY, y)
		maxX, maxY = math.Max(maxX, x), math.Max(maxY, y)
	}
	return image.Rect(int(math.Round(minX)), int(math.Round(minY)), int(math.Round(maxX)), int(math.Round(maxY)))
}

// inset обрезает r на проценты с каждой стороны.
func inset(r rectF, in motion.Inset) rectF {
	left := r.w * in.Left / 100
	top := r.h * in.Top / 100
	return rectF{
		x: r.x + left,
		y: r.y + top,
		w: math.Max(0, r.w-left-r.w*in.Right/100),
		h: math.Max(0, r.h-top-r.h*in.Bottom/100),
	}
}

// onContent переводит бокс, заданный в координатах ассета, в координаты
// экрана с учётом камеры сцены.
func onContent(b model.Box, cam motion.Camera) model.Box {
	s := cam.Scale
	if s == 0 {
		s = 1
	}
	return model.Box{
		X: 0.5 + s*(b.X-0.5) + cam.TranslateX/100,
		Y: 0.5 + s*(b.Y-0.5) + cam.TranslateY/100,
		W: b.W * s,
		H: b.H * s,
	}
}
