// Package renderer растеризует описание кадра компоновщика в *image.RGBA.
package renderer

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"math"
	"sync"

	"github.com/skip2/go-qrcode"
	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"github.com/ivlev/scenereel/internal/compositor"
	"github.com/ivlev/scenereel/internal/effects"
	"github.com/ivlev/scenereel/internal/model"
	"github.com/ivlev/scenereel/internal/motion"
	"github.com/ivlev/scenereel/internal/system"
)

// AssetLoader отдаёт изображение ассета на момент t секунд внутри сцены.
type AssetLoader interface {
	Load(ctx context.Context, a model.Asset, t float64) (image.Image, error)
}

type Options struct {
	Quality model.Quality
	// Debug печатает номер кадра, сцену и фазу в углу кадра.
	Debug bool
}

// Rasterizer безопасен для одновременного использования из нескольких
// горутин.
type Rasterizer struct {
	assets AssetLoader
	pool   *system.FramePool
	interp draw.Interpolator
	debug  bool
	qr     sync.Map
}

func New(assets AssetLoader, pool *system.FramePool, opts Options) *Rasterizer {
	var interp draw.Interpolator = draw.ApproxBiLinear
	switch opts.Quality {
	case model.QualityHigh:
		interp = draw.CatmullRom
	case model.QualityDraft:
		interp = draw.NearestNeighbor
	}
	if pool == nil {
		pool = system.NewFramePool()
	}
	return &Rasterizer{assets: assets, pool: pool, interp: interp, debug: opts.Debug}
}

var (
	black = color.RGBA{A: 255}
	white = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

// layerCtx - геометрия одного слоя в пикселях.
type layerCtx struct {
	layer compositor.Layer
	box   rectF
	xf    f64.Aff3
	clip  image.Rectangle
	alpha float64
	blur  float64
	light float64
}

// Render рисует кадр f в dst. Размер dst должен совпадать с кадром.
func (r *Rasterizer) Render(ctx context.Context, f compositor.Frame, dst *image.RGBA) error {
	if dst.Rect.Dx() != f.Width || dst.Rect.Dy() != f.Height || dst.Rect.Min != (image.Point{}) {
		return fmt.Errorf("frame %d: buffer %v, want %dx%d", f.Number, dst.Rect, f.Width, f.Height)
	}

	cams := make(map[string]motion.Camera)
	for _, l := range f.Layers {
		if err := ctx.Err(); err != nil {
			return err
		}
		lc, ok := r.prepare(l, f, cams)
		if !ok {
			continue
		}
		if err := r.drawLayer(ctx, dst, f, lc, cams); err != nil {
			return fmt.Errorf("frame %d layer %s: %w", f.Number, l.Kind, err)
		}
	}
	if r.debug {
		r.drawDebug(dst, f)
	}
	return nil
}

func cameraKey(l compositor.Layer) string { return l.SceneID + "/" + l.Role }

// prepare считает геометрию слоя. Невидимые слои пропускаются.
func (r *Rasterizer) prepare(l compositor.Layer, f compositor.Frame, cams map[string]motion.Camera) (layerCtx, bool) {
	g, s := l.Group, l.Style
	alpha := g.Opacity * s.Opacity
	if l.Kind != compositor.LayerBackground && (alpha <= 0 || g.Scale == 0 || s.Scale == 0) {
		return layerCtx{}, false
	}

	box := l.Box
	switch l.Kind {
	case compositor.LayerHighlight, compositor.LayerSpotlight, compositor.LayerCursor:
		if cam, ok := cams[cameraKey(l)]; ok {
			box = onContent(box, cam)
		}
	}
	px := boxPx(box, f.Width, f.Height)

	frame := image.Rect(0, 0, f.Width, f.Height)
	clip := inset(rectF{w: float64(f.Width), h: float64(f.Height)}, g.Clip).int().Intersect(frame)
	if s.Clip != (motion.Inset{}) {
		clip = clip.Intersect(inset(px, s.Clip).int())
	}
	if clip.Empty() {
		return layerCtx{}, false
	}

	return layerCtx{
		layer: l,
		box:   px,
		xf:    mul(groupAff(g, f.Width, f.Height), layerAff(s, px)),
		clip:  clip,
		alpha: alpha,
		blur:  (g.Blur + s.Blur) * float64(f.Height) / 1080,
		light: g.Brightness * s.Brightness,
	}, true
}

func (r *Rasterizer) drawLayer(ctx context.Context, dst *image.RGBA, f compositor.Frame, lc layerCtx, cams map[string]motion.Camera) error {
	l := lc.layer
	switch l.Kind {
	case compositor.LayerBackground:
		draw.Draw(dst, dst.Bounds(), image.NewUniform(colorOr(l.Color, black)), image.Point{}, draw.Src)

	case compositor.LayerAsset:
		cam := motion.Camera{Scale: 1}
		if l.Camera != nil {
			cam = *l.Camera
		}
		cams[cameraKey(l)] = cam
		if l.Asset == nil || l.Asset.URL == "" {
			return nil
		}
		img, err := r.assets.Load(ctx, *l.Asset, l.AssetTime)
		if err != nil {
			return err
		}
		frame := cover(img.Bounds(), f.Width, f.Height)
		cx, cy := float64(f.Width)/2, float64(f.Height)/2
		camXf := around(cx, cy, cam.Scale, 0, cam.TranslateX/100*float64(f.Width), cam.TranslateY/100*float64(f.Height))
		r.composite(dst, lc, func(target draw.Image, opts *draw.Options) {
			r.interp.Transform(target, mul(lc.xf, mul(camXf, fit(img.Bounds(), frame))), img, img.Bounds(), draw.Over, opts)
		})

	case compositor.LayerLogo:
		if l.Asset == nil || l.Asset.URL == "" {
			return nil
		}
		img, err := r.assets.Load(ctx, *l.Asset, 0)
		if err != nil {
			return err
		}
		r.composite(dst, lc, func(target draw.Image, opts *draw.Options) {
			r.interp.Transform(target, mul(lc.xf, fit(img.Bounds(), contain(img.Bounds(), lc.box))), img, img.Bounds(), draw.Over, opts)
		})

	case compositor.LayerCallToAction:
		qr, err := r.qrImage(l.Text)
		if err != nil {
			return err
		}
		frame := bounds(lc.xf, lc.box).Inset(-int(lc.box.h * 0.03))
		effects.FillRect(dst, frame.Intersect(lc.clip), colorOr(l.Color, white), lc.alpha)
		r.composite(dst, lc, func(target draw.Image, opts *draw.Options) {
			draw.NearestNeighbor.Transform(target, mul(lc.xf, fit(qr.Bounds(), lc.box)), qr, qr.Bounds(), draw.Over, opts)
		})

	case compositor.LayerHeadline:
		r.drawText(dst, f, lc, []string{l.Text})

	case compositor.LayerSubtext:
		perChar := charAdvance * l.FontSize * float64(f.Height)
		r.drawText(dst, f, lc, wrapText(l.Text, int(lc.box.w/perChar)))

	case compositor.LayerAccentBar, compositor.LayerProgressBar:
		effects.FillRect(dst, bounds(lc.xf, lc.box).Intersect(lc.clip), colorOr(l.Color, white), lc.alpha)

	case compositor.LayerHighlight:
		r.drawHighlight(dst, f, lc)

	case compositor.LayerSpotlight:
		effects.DimOutside(dst, bounds(lc.xf, lc.box), l.Amount*lc.alpha)

	case compositor.LayerCursor:
		x, y := apply(lc.xf, lc.box.x, lc.box.y)
		size := float64(f.Height) * 0.012
		if l.Amount > 0 {
			effects.Ring(dst, x, y, size*(1+3*l.Amount), size*0.3, colorOr(l.Color, white), lc.alpha*(1-l.Amount))
		}
		effects.Dot(dst, x, y, size*1.15, black, lc.alpha*0.6)
		effects.Dot(dst, x, y, size, colorOr(l.Color, white), lc.alpha)

	case compositor.LayerVignette:
		effects.Vignette(dst, l.Amount*lc.alpha)

	case compositor.LayerGrain:
		effects.Grain(dst, l.Seed, l.Amount*lc.alpha)

	case compositor.LayerLightLeak:
		effects.RadialLight(dst, bounds(lc.xf, lc.box), colorOr(l.Color, white), l.Amount*lc.alpha)

	case compositor.LayerGlow:
		area := bounds(lc.xf, lc.box)
		area = area.Inset(-int(math.Max(float64(area.Dy())*0.6, float64(f.Height)*0.05)))
		effects.RadialLight(dst, area, colorOr(l.Color, white), l.Amount*lc.alpha*0.5)

	case compositor.LayerParticles:
		c := colorOr(l.Color, white)
		for _, p := range l.Points {
			x, y := apply(lc.xf, p.X*float64(f.Width), p.Y*float64(f.Height))
			effects.Dot(dst, x, y, p.Size*float64(f.Height), c, p.Alpha*lc.alpha)
		}

	default:
		return fmt.Errorf("unknown layer kind %q", l.Kind)
	}
	return nil
}

// composite рисует содержимое слоя с прозрачностью, обрезкой, размытием и
// яркостью. Размытие и яркость требуют промежуточного буфера.
func (r *Rasterizer) composite(dst *image.RGBA, lc layerCtx, paint func(target draw.Image, opts *draw.Options)) {
	mask := image.NewUniform(color.Alpha16{A: uint16(math.Round(motion.Clamp01(lc.alpha) * 0xffff))})
	full := lc.clip == dst.Bounds()

	if lc.blur < 0.5 && lc.light == 1 {
		opts := &draw.Options{SrcMask: mask}
		if !full {
			opts.DstMask = lc.clip
		}
		paint(dst, opts)
		return
	}

	scratch := r.pool.Get(dst.Bounds())
	defer r.pool.Put(scratch)
	clear(scratch.Pix)

	paint(scratch, nil)
	effects.Brightness(scratch, lc.light)
	effects.BoxBlur(scratch, int(math.Round(lc.blur)))
	draw.DrawMask(dst, lc.clip, scratch, lc.clip.Min, mask, image.Point{}, draw.Over)
}

// drawText рисует строки кегля FontSize по сетке компоновщика.
func (r *Rasterizer) drawText(dst *image.RGBA, f compositor.Frame, lc layerCtx, lines []string) {
	l := lc.layer
	size := l.FontSize * float64(f.Height)
	if size <= 0 {
		size = lc.box.h
	}
	c := colorOr(l.Color, white)
	for i, line := range lines {
		bmp := textBitmap(line, c)
		n := float64(bmp.Bounds().Dx()) / glyphW
		target := rectF{
			x: lc.box.x,
			y: lc.box.y + float64(i)*size*subtextLines,
			w: n * size * charAdvance,
			h: size,
		}
		r.composite(dst, lc, func(t draw.Image, opts *draw.Options) {
			draw.ApproxBiLinear.Transform(t, mul(lc.xf, fit(bmp.Bounds(), target)), bmp, bmp.Bounds(), draw.Over, opts)
		})
	}
}

// drawHighlight обводит бокс по часовой стрелке на долю Amount периметра.
func (r *Rasterizer) drawHighlight(dst *image.RGBA, f compositor.Frame, lc layerCtx) {
	l := lc.layer
	c := colorOr(l.Color, white)
	rect := bounds(lc.xf, lc.box)
	t := int(math.Max(2, float64(f.Height)*0.004))
	w, h := rect.Dx(), rect.Dy()
	left := int(math.Round(motion.Clamp01(l.Amount) * float64(2*(w+h))))

	segment := func(length int, mk func(n int) image.Rectangle) {
		n := min(left, length)
		if n > 0 {
			effects.FillRect(dst, mk(n).Intersect(lc.clip), c, lc.alpha)
		}
		left -= n
	}
	segment(w, func(n int) image.Rectangle { return image.Rect(rect.Min.X, rect.Min.Y, rect.Min.X+n, rect.Min.Y+t) })
	segment(h, func(n int) image.Rectangle { return image.Rect(rect.Max.X-t, rect.Min.Y, rect.Max.X, rect.Min.Y+n) })
	segment(w, func(n int) image.Rectangle { return image.Rect(rect.Max.X-n, rect.Max.Y-t, rect.Max.X, rect.Max.Y) })
	segment(h, func(n int) image.Rectangle { return image.Rect(rect.Min.X, rect.Max.Y-n, rect.Min.X+t, rect.Max.Y) })

	if l.Text != "" {
		size := float64(f.Height) * 0.025
		bmp := textBitmap(l.Text, c)
		target := rectF{x: float64(rect.Min.X), y: float64(rect.Min.Y) - size*1.3, w: float64(bmp.Bounds().Dx()) / glyphW * size * charAdvance, h: size}
		r.composite(dst, lc, func(tg draw.Image, opts *draw.Options) {
			draw.ApproxBiLinear.Transform(tg, fit(bmp.Bounds(), target), bmp, bmp.Bounds(), draw.Over, opts)
		})
	}
}

func (r *Rasterizer) qrImage(url string) (image.Image, error) {
	if img, ok := r.qr.Load(url); ok {
		return img.(image.Image), nil
	}
	q, err := qrcode.New(url, qrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("qr code: %w", err)
	}
	img, _ := r.qr.LoadOrStore(url, q.Image(256))
	return img.(image.Image), nil
}

func (r *Rasterizer) drawDebug(dst *image.RGBA, f compositor.Frame) {
	label := fmt.Sprintf("Frame %d/%d | Scene %s | %s", f.Number, f.TotalFrames, f.SceneID, f.Phase)
	bmp := textBitmap(label, color.RGBA{R: 255, G: 255, A: 255})
	scale := math.Max(1, float64(f.Height)/540)
	target := rectF{x: 10, y: 10, w: float64(bmp.Bounds().Dx()) * scale, h: float64(bmp.Bounds().Dy()) * scale}
	effects.FillRect(dst, target.int().Inset(-4), black, 0.5)
	draw.NearestNeighbor.Transform(dst, fit(bmp.Bounds(), target), bmp, bmp.Bounds(), draw.Over, nil)
}
