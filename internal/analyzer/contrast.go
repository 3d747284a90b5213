package analyzer

import (
	"image"
	"math"

	"golang.org/x/image/draw"
)

// ContrastDetector находит области по перепадам яркости: оператор Собеля,
// дилатация, связные компоненты.
type ContrastDetector struct {
	// MinArea - минимальная площадь области в долях кадра.
	MinArea       float64
	EdgeThreshold float64
	// MaxSide - до какого размера уменьшать кадр перед анализом.
	MaxSide      int
	DilateRadius int
	Iterations   int
}

func NewContrastDetector() *ContrastDetector {
	return &ContrastDetector{
		MinArea:       0.002,
		EdgeThreshold: 30.0,
		MaxSide:       640,
		DilateRadius:  2,
		Iterations:    2,
	}
}

func (d *ContrastDetector) Detect(img image.Image) ([]Region, error) {
	bounds := img.Bounds()
	if bounds.Empty() {
		return nil, nil
	}

	gray, scale := downscaleGray(img, d.MaxSide)
	w, h := gray.Rect.Dx(), gray.Rect.Dy()

	edges := sobel(gray, d.EdgeThreshold)
	mask := edges
	for i := 0; i < d.Iterations; i++ {
		mask = dilate(mask, w, h, d.DilateRadius)
	}

	minArea := d.MinArea * float64(w*h)
	var regions []Region
	for _, c := range components(mask, w, h) {
		area := c.rect.Dx() * c.rect.Dy()
		if float64(area) < minArea || area == w*h {
			continue
		}
		density := float64(countIn(edges, w, c.rect)) / float64(area)
		rect := image.Rect(
			bounds.Min.X+int(math.Floor(float64(c.rect.Min.X)*scale)),
			bounds.Min.Y+int(math.Floor(float64(c.rect.Min.Y)*scale)),
			bounds.Min.X+int(math.Ceil(float64(c.rect.Max.X)*scale)),
			bounds.Min.Y+int(math.Ceil(float64(c.rect.Max.Y)*scale)),
		).Intersect(bounds)
		regions = append(regions, Region{
			Rect:       rect,
			Box:        normalize(rect, bounds),
			Kind:       classify(rect, density),
			Confidence: math.Min(1, 0.4+density),
		})
	}

	SortReadingOrder(regions, int(20*scale))
	return regions, nil
}

// downscaleGray уменьшает кадр так, чтобы большая сторона была не больше
// maxSide, и переводит в оттенки серого. scale - множитель обратно к
// исходным координатам.
func downscaleGray(img image.Image, maxSide int) (*image.Gray, float64) {
	b := img.Bounds()
	scale := 1.0
	w, h := b.Dx(), b.Dy()
	if maxSide > 0 && max(w, h) > maxSide {
		scale = float64(max(w, h)) / float64(maxSide)
		w = max(1, int(math.Round(float64(w)/scale)))
		h = max(1, int(math.Round(float64(h)/scale)))
	}
	gray := image.NewGray(image.Rect(0, 0, w, h))
	if scale == 1 {
		draw.Draw(gray, gray.Rect, img, b.Min, draw.Src)
	} else {
		draw.ApproxBiLinear.Scale(gray, gray.Rect, img, b, draw.Src, nil)
		scale = float64(b.Dx()) / float64(w)
	}
	return gray, scale
}

// sobel возвращает маску пикселей с модулем градиента выше threshold.
func sobel(gray *image.Gray, threshold float64) []bool {
	w, h := gray.Rect.Dx(), gray.Rect.Dy()
	out := make([]bool, w*h)
	px := func(x, y int) float64 { return float64(gray.Pix[y*gray.Stride+x]) }
	t2 := threshold * threshold
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			gx := -px(x-1, y-1) + px(x+1, y-1) - 2*px(x-1, y) + 2*px(x+1, y) - px(x-1, y+1) + px(x+1, y+1)
			gy := -px(x-1, y-1) - 2*px(x, y-1) - px(x+1, y-1) + px(x-1, y+1) + 2*px(x, y+1) + px(x+1, y+1)
			out[y*w+x] = gx*gx+gy*gy > t2
		}
	}
	return out
}

// dilate - морфологическое расширение квадратом (2r+1)^2, разделённое на
// проходы по строкам и столбцам.
func dilate(mask []bool, w, h, r int) []bool {
	if r <= 0 {
		return mask
	}
	tmp := make([]bool, len(mask))
	for y := 0; y < h; y++ {
		spread(mask, tmp, y*w, 1, w, r)
	}
	out := make([]bool, len(mask))
	for x := 0; x < w; x++ {
		spread(tmp, out, x, w, h, r)
	}
	return out
}

// spread отмечает в dst пиксели линии (n пикселей с шагом step от base),
// до которых от отмеченного пикселя src не дальше r.
func spread(src, dst []bool, base, step, n, r int) {
	last := -r - 1
	for k := 0; k < n; k++ {
		if src[base+k*step] {
			last = k
		}
		if k-last <= r {
			dst[base+k*step] = true
		}
	}
	next := n + r
	for k := n - 1; k >= 0; k-- {
		if src[base+k*step] {
			next = k
		}
		if next-k <= r {
			dst[base+k*step] = true
		}
	}
}

type component struct {
	rect image.Rectangle
}

// components - ограничивающие прямоугольники 4-связных компонент маски.
func components(mask []bool, w, h int) []component {
	visited := make([]bool, len(mask))
	var out []component
	var stack []int
	for start := range mask {
		if !mask[start] || visited[start] {
			continue
		}
		minX, minY := w, h
		maxX, maxY := -1, -1
		stack = append(stack[:0], start)
		visited[start] = true
		for len(stack) > 0 {
			i := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			x, y := i%w, i/w
			minX, maxX = min(minX, x), max(maxX, x)
			minY, maxY = min(minY, y), max(maxY, y)
			for _, n := range [4]int{i - 1, i + 1, i - w, i + w} {
				switch {
				case n < 0 || n >= len(mask):
					continue
				case (n == i-1 && x == 0) || (n == i+1 && x == w-1):
					continue
				}
				if mask[n] && !visited[n] {
					visited[n] = true
					stack = append(stack, n)
				}
			}
		}
		out = append(out, component{rect: image.Rect(minX, minY, maxX+1, maxY+1)})
	}
	return out
}

func countIn(mask []bool, w int, r image.Rectangle) int {
	n := 0
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if mask[y*w+x] {
				n++
			}
		}
	}
	return n
}
