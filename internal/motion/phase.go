package motion

// Phase - состояние сцены относительно переходов.
type Phase int

const (
	Steady Phase = iota
	Entering
	Exiting
)

func (p Phase) String() string {
	switch p {
	case Entering:
		return "entering"
	case Exiting:
		return "exiting"
	default:
		return "steady"
	}
}

// PhaseState - фаза и прогресс внутри окна перехода.
type PhaseState struct {
	Phase Phase
	// Window - фактическая ширина окна в кадрах.
	Window int
	// Progress в [0,1) - доля пройденного окна.
	Progress float64
	// Pair - прогресс перехода между парой сцен в [0,1]: выход текущей сцены
	// проходит [0, 0.5), вход следующей - [0.5, 1).
	Pair float64
}

// EffectiveWindow ограничивает окно половиной сцены, чтобы вход и выход
// не перекрывались.
func EffectiveWindow(window, frames int) int {
	if window <= 0 || frames <= 1 {
		return 0
	}
	return min(window, frames/2)
}

// PhaseAt вычисляет фазу сцены длиной frames на локальном кадре local.
// Первая сцена таймлайна не входит, последняя не выходит.
func PhaseAt(local, frames, window int, first, last bool) PhaseState {
	w := EffectiveWindow(window, frames)
	if w == 0 {
		return PhaseState{Phase: Steady}
	}
	if !first && local >= 0 && local < w {
		p := float64(local) / float64(w)
		return PhaseState{Phase: Entering, Window: w, Progress: p, Pair: 0.5 + 0.5*p}
	}
	if !last && local >= frames-w && local < frames {
		p := float64(local-(frames-w)) / float64(w)
		return PhaseState{Phase: Exiting, Window: w, Progress: p, Pair: 0.5 * p}
	}
	return PhaseState{Phase: Steady, Window: w}
}
