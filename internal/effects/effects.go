// Package effects - пиксельные эффекты поверх готового кадра: зерно,
// виньетка, засветка, свечение, частицы, затемнение вокруг спотлайта,
// размытие и яркость.
//
// Все функции работают с *image.RGBA на месте и не держат состояния, кроме
// кеша масок виньетки.
package effects

import (
	"image"
	"image/color"
	"math"
	"math/rand/v2"
	"sync"
)

func clamp8(v float64) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	default:
		return uint8(v + 0.5)
	}
}

// blendPixel смешивает пиксель i с цветом c с долей a в [0,1].
func blendPixel(pix []uint8, i int, c color.RGBA, a float64) {
	if a <= 0 {
		return
	}
	if a > 1 {
		a = 1
	}
	pix[i] = clamp8(float64(pix[i])*(1-a) + float64(c.R)*a)
	pix[i+1] = clamp8(float64(pix[i+1])*(1-a) + float64(c.G)*a)
	pix[i+2] = clamp8(float64(pix[i+2])*(1-a) + float64(c.B)*a)
}

// addPixel - аддитивное смешивание (screen-подобная засветка).
func addPixel(pix []uint8, i int, c color.RGBA, a float64) {
	if a <= 0 {
		return
	}
	pix[i] = clamp8(float64(pix[i]) + float64(c.R)*a)
	pix[i+1] = clamp8(float64(pix[i+1]) + float64(c.G)*a)
	pix[i+2] = clamp8(float64(pix[i+2]) + float64(c.B)*a)
}

// Grain добавляет монохромный шум силой amount. Один seed даёт один и тот же
// узор.
func Grain(dst *image.RGBA, seed uint64, amount float64) {
	if amount <= 0 {
		return
	}
	r := rand.New(rand.NewPCG(seed, seed^0x5851f42d4c957f2d))
	span := amount * 255
	b := dst.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		i := dst.PixOffset(b.Min.X, y)
		var bits uint64
		for x := b.Min.X; x < b.Max.X; x++ {
			if (x-b.Min.X)%8 == 0 {
				bits = r.Uint64()
			}
			n := (float64(bits&0xff)/255 - 0.5) * span
			bits >>= 8
			dst.Pix[i] = clamp8(float64(dst.Pix[i]) + n)
			dst.Pix[i+1] = clamp8(float64(dst.Pix[i+1]) + n)
			dst.Pix[i+2] = clamp8(float64(dst.Pix[i+2]) + n)
			i += 4
		}
	}
}

type maskKey struct {
	rect   image.Rectangle
	amount float64
}

var vignetteMasks sync.Map

// vignetteMask - множители яркости 0..255 для кадра; считаются один раз
// на размер и силу.
func vignetteMask(rect image.Rectangle, amount float64) []uint8 {
	key := maskKey{rect, amount}
	if m, ok := vignetteMasks.Load(key); ok {
		return m.([]uint8)
	}
	w, h := rect.Dx(), rect.Dy()
	mask := make([]uint8, w*h)
	cx, cy := float64(w)/2, float64(h)/2
	norm := math.Hypot(cx, cy)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			d := math.Hypot(float64(x)+0.5-cx, float64(y)+0.5-cy) / norm
			// Плато в центре, затем плавное затемнение к углам.
			t := math.Max(0, (d-0.45)/0.55)
			f := 1 - amount*t*t*(3-2*t)
			mask[y*w+x] = clamp8(f * 255)
		}
	}
	actual, _ := vignetteMasks.LoadOrStore(key, mask)
	return actual.([]uint8)
}

// Vignette затемняет края кадра.
func Vignette(dst *image.RGBA, amount float64) {
	if amount <= 0 {
		return
	}
	b := dst.Bounds()
	mask := vignetteMask(b, amount)
	w := b.Dx()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		i := dst.PixOffset(b.Min.X, y)
		row := mask[(y-b.Min.Y)*w:]
		for x := 0; x < w; x++ {
			m := uint32(row[x])
			dst.Pix[i] = uint8(uint32(dst.Pix[i]) * m / 255)
			dst.Pix[i+1] = uint8(uint32(dst.Pix[i+1]) * m / 255)
			dst.Pix[i+2] = uint8(uint32(dst.Pix[i+2]) * m / 255)
			i += 4
		}
	}
}

// RadialLight - мягкое аддитивное пятно цвета c в эллипсе area. Засветка
// и свечение за заголовком отличаются только областью и силой.
func RadialLight(dst *image.RGBA, area image.Rectangle, c color.RGBA, amount float64) {
	if amount <= 0 || area.Empty() {
		return
	}
	cx := float64(area.Min.X+area.Max.X) / 2
	cy := float64(area.Min.Y+area.Max.Y) / 2
	rx := float64(area.Dx()) / 2
	ry := float64(area.Dy()) / 2
	r := area.Intersect(dst.Bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		i := dst.PixOffset(r.Min.X, y)
		for x := r.Min.X; x < r.Max.X; x++ {
			dx := (float64(x) + 0.5 - cx) / rx
			dy := (float64(y) + 0.5 - cy) / ry
			d := dx*dx + dy*dy
			if d < 1 {
				f := 1 - d
				addPixel(dst.Pix, i, c, amount*f*f)
			}
			i += 4
		}
	}
}

// Dot - круглая частица с мягким краем.
func Dot(dst *image.RGBA, cx, cy, radius float64, c color.RGBA, alpha float64) {
	if alpha <= 0 || radius <= 0 {
		return
	}
	r := image.Rect(int(cx-radius-1), int(cy-radius-1), int(cx+radius+2), int(cy+radius+2)).Intersect(dst.Bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		i := dst.PixOffset(r.Min.X, y)
		for x := r.Min.X; x < r.Max.X; x++ {
			d := math.Hypot(float64(x)+0.5-cx, float64(y)+0.5-cy)
			if cover := radius + 0.5 - d; cover > 0 {
				blendPixel(dst.Pix, i, c, alpha*math.Min(1, cover))
			}
			i += 4
		}
	}
}

// Ring - окружность толщиной width.
func Ring(dst *image.RGBA, cx, cy, radius, width float64, c color.RGBA, alpha float64) {
	if alpha <= 0 || radius <= 0 {
		return
	}
	outer := radius + width/2
	r := image.Rect(int(cx-outer-1), int(cy-outer-1), int(cx+outer+2), int(cy+outer+2)).Intersect(dst.Bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		i := dst.PixOffset(r.Min.X, y)
		for x := r.Min.X; x < r.Max.X; x++ {
			d := math.Abs(math.Hypot(float64(x)+0.5-cx, float64(y)+0.5-cy) - radius)
			if cover := width/2 + 0.5 - d; cover > 0 {
				blendPixel(dst.Pix, i, c, alpha*math.Min(1, cover))
			}
			i += 4
		}
	}
}

// DimOutside затемняет всё вне hole на долю amount.
func DimOutside(dst *image.RGBA, hole image.Rectangle, amount float64) {
	if amount <= 0 {
		return
	}
	black := color.RGBA{A: 255}
	b := dst.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		i := dst.PixOffset(b.Min.X, y)
		inRow := y >= hole.Min.Y && y < hole.Max.Y
		for x := b.Min.X; x < b.Max.X; x++ {
			if !inRow || x < hole.Min.X || x >= hole.Max.X {
				blendPixel(dst.Pix, i, black, amount)
			}
			i += 4
		}
	}
}

// FillRect заливает прямоугольник цветом c с прозрачностью alpha.
func FillRect(dst *image.RGBA, r image.Rectangle, c color.RGBA, alpha float64) {
	r = r.Intersect(dst.Bounds())
	a := alpha * float64(c.A) / 255
	for y := r.Min.Y; y < r.Max.Y; y++ {
		i := dst.PixOffset(r.Min.X, y)
		for x := r.Min.X; x < r.Max.X; x++ {
			blendPixel(dst.Pix, i, c, a)
			i += 4
		}
	}
}

// Brightness умножает цвет на factor, альфа не меняется.
func Brightness(img *image.RGBA, factor float64) {
	if factor == 1 {
		return
	}
	for i := 0; i+3 < len(img.Pix); i += 4 {
		img.Pix[i] = clamp8(float64(img.Pix[i]) * factor)
		img.Pix[i+1] = clamp8(float64(img.Pix[i+1]) * factor)
		img.Pix[i+2] = clamp8(float64(img.Pix[i+2]) * factor)
	}
}

// BoxBlur - два прохода скользящего среднего (по строкам и по столбцам)
// радиуса radius по всем четырём каналам.
func BoxBlur(img *image.RGBA, radius int) {
	if radius <= 0 {
		return
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return
	}
	tmp := make([]uint8, len(img.Pix))
	blurPass(img.Pix, tmp, h, w, img.Stride, 4, radius)
	blurPass(tmp, img.Pix, w, h, 4, img.Stride, radius)
}

// blurPass усредняет вдоль линий: lines линий по n пикселей; линии
// начинаются через lineStep байт, пиксели в линии идут через step байт.
func blurPass(src, dst []uint8, lines, n, lineStep, step, radius int) {
	win := float64(2*radius + 1)
	for l := 0; l < lines; l++ {
		base := l * lineStep
		for c := 0; c < 4; c++ {
			at := func(k int) float64 {
				k = min(max(k, 0), n-1)
				return float64(src[base+k*step+c])
			}
			var sum float64
			for k := -radius; k <= radius; k++ {
				sum += at(k)
			}
			for k := 0; k < n; k++ {
				dst[base+k*step+c] = clamp8(sum / win)
				sum += at(k+radius+1) - at(k-radius)
			}
		}
	}
}
