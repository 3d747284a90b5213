// Package compositor собирает описание кадра из таймлайна и анимаций.
//
// Compose - чистая функция номера кадра: нет I/O, нет часов, нет состояния
// между вызовами. Случайность (зерно, частицы) идёт только через PRNG с
// seed из бренда, id сцены и номера кадра, поэтому кадры можно считать
// в любом порядке, параллельно и повторно с бит-в-бит одинаковым результатом.
package compositor

import (
	"fmt"
	"math"
	"strings"

	"github.com/ivlev/scenereel/internal/model"
	"github.com/ivlev/scenereel/internal/motion"
	"github.com/ivlev/scenereel/internal/timeline"
)

const (
	DefaultFPS              = 30
	DefaultTransitionWindow = 15

	defaultBackground = "#0b0b0f"
	defaultText       = "#ffffff"
	defaultAccent     = "#ff5a1f"
)

type Options struct {
	FPS              int
	Width            int
	Height           int
	TransitionWindow int
	Features         Features
}

// prepared - сцена с заранее разрешёнными именами стилей.
type prepared struct {
	scene      model.Scene
	transition motion.Transition
	anim       motion.TextAnimation
	easing     motion.Easing
	spring     model.SpringConfig
	hash       uint64
	headline   headlineLayout
}

// Compositor неизменяем после New и безопасен для конкурентных Compose.
type Compositor struct {
	opts   Options
	brand  model.Brand
	scenes []prepared
	tl     *timeline.Timeline
}

// New проверяет имена переходов и стилей и готовит таблицы сцен.
func New(scenes []model.Scene, brand model.Brand, opts Options) (*Compositor, error) {
	if len(scenes) == 0 {
		return nil, fmt.Errorf("%w: no scenes", model.ErrInvalidInput)
	}
	if opts.FPS <= 0 {
		opts.FPS = DefaultFPS
	}
	if opts.Width <= 0 || opts.Height <= 0 {
		opts.Width, opts.Height = model.FormatHorizontal.Dimensions()
	}
	if opts.TransitionWindow < 0 {
		opts.TransitionWindow = 0
	}
	if brand.BackgroundColor == "" {
		brand.BackgroundColor = defaultBackground
	}
	if brand.TextColor == "" {
		brand.TextColor = defaultText
	}
	if brand.AccentColor == "" {
		brand.AccentColor = defaultAccent
	}

	sorted := model.SortScenes(scenes)
	tl, err := timeline.FromScenes(sorted, opts.FPS)
	if err != nil {
		return nil, err
	}

	c := &Compositor{opts: opts, brand: brand, tl: tl, scenes: make([]prepared, len(sorted))}
	for i, s := range sorted {
		p, err := prepare(s, opts)
		if err != nil {
			return nil, fmt.Errorf("scene %q: %w", s.ID, err)
		}
		c.scenes[i] = p
	}
	return c, nil
}

func prepare(s model.Scene, opts Options) (prepared, error) {
	tr, err := motion.TransitionByName(s.Transition)
	if err != nil {
		return prepared{}, err
	}
	anim, err := motion.TextAnimationByName(s.Motion.AnimationStyle)
	if err != nil {
		return prepared{}, err
	}
	easing, err := motion.EasingByName(s.Motion.Camera.Easing)
	if err != nil {
		return prepared{}, err
	}
	spring := s.Motion.Spring
	if spring.Mass == 0 && spring.Stiffness == 0 && spring.Damping == 0 {
		spring = model.DefaultSpring
	}
	return prepared{
		scene:      s,
		transition: tr,
		anim:       anim,
		easing:     easing,
		spring:     spring,
		hash:       hashString(s.ID),
		headline:   layoutHeadline(s.Headline, anim.Unit(), opts.Width, opts.Height),
	}, nil
}

// Compose - удобная обёртка для разового вызова.
func Compose(frame int, scenes []model.Scene, brand model.Brand, opts Options) (Frame, error) {
	c, err := New(scenes, brand, opts)
	if err != nil {
		return Frame{}, err
	}
	return c.Compose(frame), nil
}

func (c *Compositor) TotalFrames() int { return c.tl.TotalFrames() }
func (c *Compositor) FPS() int         { return c.opts.FPS }
func (c *Compositor) Size() (int, int) { return c.opts.Width, c.opts.Height }

// Scenes возвращает сцены в порядке воспроизведения.
func (c *Compositor) Scenes() []model.Scene {
	out := make([]model.Scene, len(c.scenes))
	for i, p := range c.scenes {
		out[i] = p.scene
	}
	return out
}

// Compose строит кадр с номером frame.
func (c *Compositor) Compose(frame int) Frame {
	pos := c.tl.Locate(frame)
	i := pos.SceneIndex
	ph := motion.PhaseAt(pos.LocalFrame, pos.Frames, c.opts.TransitionWindow, i == c.tl.First(), i == c.tl.Last())

	f := Frame{
		Number:      frame,
		TotalFrames: c.tl.TotalFrames(),
		Width:       c.opts.Width,
		Height:      c.opts.Height,
		SceneIndex:  i,
		SceneID:     c.scenes[i].scene.ID,
		Phase:       ph.Phase.String(),
		Progress:    pos.Progress,
	}

	layers := []Layer{{
		Kind:  LayerBackground,
		Box:   model.Box{W: 1, H: 1},
		Style: motion.Visible(),
		Group: motion.Visible(),
		Color: c.brand.BackgroundColor,
	}}

	switch ph.Phase {
	case motion.Exiting:
		next := c.tl.Next(i)
		tr := c.scenes[next].transition
		layers = c.sceneLayers(layers, i, pos.LocalFrame, tr.Style(motion.Outgoing, ph.Pair), motion.Outgoing.String())
		layers = c.sceneLayers(layers, next, 0, tr.Style(motion.Incoming, ph.Pair), motion.Incoming.String())
	case motion.Entering:
		prev := c.tl.Prev(i)
		tr := c.scenes[i].transition
		layers = c.sceneLayers(layers, prev, c.tl.Frames(prev)-1, tr.Style(motion.Outgoing, ph.Pair), motion.Outgoing.String())
		layers = c.sceneLayers(layers, i, pos.LocalFrame, tr.Style(motion.Incoming, ph.Pair), motion.Incoming.String())
	default:
		layers = c.sceneLayers(layers, i, pos.LocalFrame, motion.Visible(), "current")
	}

	f.Layers = c.globalLayers(layers, frame)
	return f
}

func (c *Compositor) globalLayers(layers []Layer, frame int) []Layer {
	feat := c.opts.Features
	if feat.Logo && c.brand.LogoURL != "" {
		st := motion.Visible()
		st.Opacity = motion.Linear01(frame, 0, 15)
		layers = append(layers, Layer{
			Kind:  LayerLogo,
			Box:   c.cornerBox(0.04, 0.1),
			Style: st,
			Group: motion.Visible(),
			Asset: &model.Asset{URL: c.brand.LogoURL, Kind: model.AssetImage},
		})
	}
	if feat.ProgressBar {
		total := c.tl.TotalFrames()
		p := 1.0
		if total > 1 {
			p = motion.Clamp01(float64(frame) / float64(total-1))
		}
		layers = append(layers, Layer{
			Kind:   LayerProgressBar,
			Box:    model.Box{X: 0, Y: 0.992, W: p, H: 0.008},
			Style:  motion.Visible(),
			Group:  motion.Visible(),
			Color:  c.brand.AccentColor,
			Amount: p,
		})
	}
	return layers
}

// cornerBox - квадрат в правом верхнем углу стороной size от высоты кадра.
func (c *Compositor) cornerBox(margin, size float64) model.Box {
	aspect := float64(c.opts.Height) / float64(c.opts.Width)
	w := size * aspect
	return model.Box{X: 1 - margin*aspect - w, Y: margin, W: w, H: size}
}

// sceneLayers добавляет слои сцены idx на её локальном кадре local.
func (c *Compositor) sceneLayers(layers []Layer, idx, local int, group motion.Style, role string) []Layer {
	p := c.scenes[idx]
	s := p.scene
	fps := c.opts.FPS
	feat := c.opts.Features
	frames := c.tl.Frames(idx)
	progress := float64(local) / float64(frames)

	add := func(l Layer) {
		l.SceneID = s.ID
		l.Role = role
		l.Group = group
		if l.Style == (motion.Style{}) {
			l.Style = motion.Visible()
		}
		layers = append(layers, l)
	}

	// Ассет с Ken Burns и наездом спотлайта.
	cam := motion.Camera{Scale: 1}
	if feat.KenBurns {
		zs, ze := s.Motion.Camera.ZoomStart, s.Motion.Camera.ZoomEnd
		if zs == 0 {
			zs = 1
		}
		if ze == 0 {
			ze = zs
		}
		cam = motion.KenBurns(progress, p.easing, zs, ze, s.Motion.Camera.PanX, s.Motion.Camera.PanY)
	}
	spot, strength, spotOn := motion.SpotlightAt(s.Motion.Spotlights, local, fps)
	spotOn = spotOn && feat.Spotlight
	if spotOn {
		zoom := spot.Zoom
		if zoom <= 0 {
			zoom = 1.5
		}
		cx, cy := spot.Box.Center()
		cam.Scale *= motion.Lerp(1, zoom, strength)
		cam.TranslateX += (0.5 - cx) * 100 * strength
		cam.TranslateY += (0.5 - cy) * 100 * strength
	}
	asset := s.Asset
	add(Layer{
		Kind:      LayerAsset,
		Box:       model.Box{W: 1, H: 1},
		Camera:    &cam,
		Asset:     &asset,
		AssetTime: float64(local) / float64(fps),
	})

	if feat.Effects {
		c.effectLayers(p, local, add)
	}

	if feat.Highlights {
		for _, h := range s.Motion.Highlights {
			st, ok := motion.HighlightAt(h, local)
			if !ok {
				continue
			}
			color := h.Color
			if color == "" {
				color = c.brand.AccentColor
			}
			style := motion.Visible()
			style.Opacity = st.Opacity
			add(Layer{Kind: LayerHighlight, Box: h.Box, Style: style, Color: color, Amount: st.Draw, Text: h.Label})
		}
	}

	if spotOn {
		add(Layer{Kind: LayerSpotlight, Box: spot.Box, Amount: 0.6 * strength, Text: spot.Label})
	}

	// Заголовок: единицы текста появляются пружиной со сдвигом stagger.
	hl := p.headline
	if s.Motion.HasEffect(model.EffectGlow) && feat.Effects && len(hl.units) > 0 {
		first := motion.Spring(local, fps, p.spring, s.Motion.EntranceDelayFrames)
		add(Layer{Kind: LayerGlow, Box: hl.bounds, Color: c.brand.AccentColor, Amount: 0.6 * motion.Clamp01(first)})
	}
	for _, u := range hl.units {
		sp := motion.StaggeredSpring(local, fps, u.index, s.Motion.StaggerFrames, p.spring, s.Motion.EntranceDelayFrames)
		add(Layer{
			Kind:     LayerHeadline,
			Box:      u.box,
			Style:    p.anim.Style(sp),
			Text:     u.text,
			FontSize: hl.fontSize,
			Color:    c.brand.TextColor,
		})
	}

	entrance := s.Motion.EntranceDelayFrames
	revealEnd := entrance + hl.count*s.Motion.StaggerFrames
	settled := model.SpringConfig{Damping: p.spring.Damping, Mass: p.spring.Mass, Stiffness: p.spring.Stiffness}

	if feat.AccentBar && len(hl.units) > 0 {
		bp := motion.Clamp01(motion.Spring(local, fps, settled, entrance))
		add(Layer{
			Kind:  LayerAccentBar,
			Box:   model.Box{X: hl.bounds.X, Y: hl.bounds.Y + hl.bounds.H + 0.012, W: 0.12 * bp, H: 0.008},
			Color: c.brand.AccentColor,
		})
	}

	if feat.Subtext && strings.TrimSpace(s.Subtext) != "" {
		sp := motion.Spring(local, fps, settled, revealEnd+6)
		style := motion.Visible()
		style.Opacity = motion.Clamp01(sp)
		style.TranslateY = 20 * (1 - sp)
		add(Layer{
			Kind:     LayerSubtext,
			Box:      model.Box{X: hl.bounds.X, Y: hl.bounds.Y + hl.bounds.H + 0.04, W: hl.maxWidth, H: hl.fontSize * 0.7},
			Style:    style,
			Text:     s.Subtext,
			FontSize: hl.fontSize * 0.5,
			Color:    c.brand.TextColor,
		})
	}

	if feat.Cursor {
		if cs := motion.CursorAt(s.Motion.Cursor, local); cs.Visible {
			add(Layer{Kind: LayerCursor, Box: model.Box{X: cs.X, Y: cs.Y, W: 0.02, H: 0.02}, Amount: cs.Ripple, Color: c.brand.TextColor})
		}
	}

	if feat.CallToAction && idx == c.tl.Last() && c.brand.CallToActionURL != "" {
		sp := motion.Spring(local, fps, settled, int(math.Round(float64(frames)*0.3)))
		style := motion.Visible()
		style.Opacity = motion.Clamp01(sp)
		style.Scale = motion.Lerp(0.6, 1, motion.Clamp01(sp))
		aspect := float64(c.opts.Height) / float64(c.opts.Width)
		size := 0.22
		add(Layer{
			Kind:  LayerCallToAction,
			Box:   model.Box{X: 1 - 0.05*aspect - size*aspect, Y: 1 - 0.06 - size, W: size * aspect, H: size},
			Style: style,
			Text:  c.brand.CallToActionURL,
			Color: c.brand.AccentColor,
		})
	}

	return layers
}

// Соли PRNG для разных эффектов одной сцены.
const (
	saltGrain uint64 = iota + 1
	saltParticles
)

// effectLayers - атмосферные эффекты сцены.
func (c *Compositor) effectLayers(p prepared, local int, add func(Layer)) {
	s := p.scene
	fps := float64(c.opts.FPS)
	if s.Motion.HasEffect(model.EffectLightLeak) {
		phase := 2 * math.Pi * float64(local) / (fps * 4)
		add(Layer{
			Kind:   LayerLightLeak,
			Box:    model.Box{X: -0.2 + 0.1*math.Sin(phase/2), Y: -0.2, W: 0.8, H: 0.8},
			Color:  c.brand.AccentColor,
			Amount: 0.25 + 0.1*math.Sin(phase),
		})
	}
	if s.Motion.HasEffect(model.EffectVignette) {
		add(Layer{Kind: LayerVignette, Box: model.Box{W: 1, H: 1}, Amount: 0.45})
	}
	if s.Motion.HasEffect(model.EffectGrain) {
		add(Layer{
			Kind:   LayerGrain,
			Box:    model.Box{W: 1, H: 1},
			Seed:   mix(c.brand.Seed, p.hash, uint64(local), saltGrain),
			Amount: 0.08,
		})
	}
	if s.Motion.HasEffect(model.EffectParticles) {
		add(Layer{
			Kind:   LayerParticles,
			Box:    model.Box{W: 1, H: 1},
			Color:  c.brand.TextColor,
			Points: particles(mix(c.brand.Seed, p.hash, saltParticles), local),
		})
	}
}
