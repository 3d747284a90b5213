// Package motion - чистые функции анимации: пружина, интерполяция, easing,
// Ken Burns, переходы между сценами и анимации текста.
package motion

import (
	"math"

	"github.com/ivlev/scenereel/internal/model"
)

// normalizeSpring подставляет значения по умолчанию вместо невалидных.
func normalizeSpring(c model.SpringConfig) model.SpringConfig {
	if c.Mass <= 0 {
		c.Mass = model.DefaultSpring.Mass
	}
	if c.Stiffness <= 0 {
		c.Stiffness = model.DefaultSpring.Stiffness
	}
	if c.Damping < 0 {
		c.Damping = 0
	}
	// Незатухающая пружина с перелётом колебалась бы вечно.
	if c.Damping == 0 && c.OvershootAllowed {
		c.Damping = model.DefaultSpring.Damping
	}
	return c
}

// Spring возвращает прогресс пружины от 0 к 1 на кадре frame.
// До и в момент delay прогресс равен 0.
//
// Решение аналитическое (затухающий осциллятор с x(0)=0, v(0)=0, цель 1),
// поэтому значение зависит только от аргументов и не накапливает ошибку.
// Без OvershootAllowed недодемпфированная пружина после первого достижения
// цели возвращает ровно 1: кривая монотонна и не превышает 1.
func Spring(frame, fps int, cfg model.SpringConfig, delay int) float64 {
	if fps <= 0 || frame <= delay {
		return 0
	}
	cfg = normalizeSpring(cfg)
	t := float64(frame-delay) / float64(fps)

	w0 := math.Sqrt(cfg.Stiffness / cfg.Mass)
	zeta := cfg.Damping / (2 * math.Sqrt(cfg.Stiffness*cfg.Mass))

	var x float64 // смещение относительно цели, x(0) = -1
	switch {
	case zeta < 1:
		wd := w0 * math.Sqrt(1-zeta*zeta)
		if !cfg.OvershootAllowed && t >= firstCrossing(w0, zeta, wd) {
			return 1
		}
		x = math.Exp(-zeta*w0*t) * (-math.Cos(wd*t) - (zeta*w0/wd)*math.Sin(wd*t))
	case zeta == 1:
		x = math.Exp(-w0*t) * (-1 - w0*t)
	default:
		s := math.Sqrt(zeta*zeta - 1)
		r1 := -w0 * (zeta - s)
		r2 := -w0 * (zeta + s)
		a := r2 / (r1 - r2)
		b := -r1 / (r1 - r2)
		x = a*math.Exp(r1*t) + b*math.Exp(r2*t)
	}

	p := 1 + x
	if !cfg.OvershootAllowed && p > 1 {
		p = 1
	}
	return p
}

// firstCrossing - время первого достижения цели недодемпфированной пружиной.
func firstCrossing(w0, zeta, wd float64) float64 {
	if zeta == 0 {
		return math.Pi / 2 / wd
	}
	return (math.Pi - math.Atan(wd/(zeta*w0))) / wd
}

// StaggeredSpring - пружина с задержкой index*stagger поверх базовой delay.
// Используется для поэлементного появления слов и символов.
func StaggeredSpring(frame, fps, index, stagger int, cfg model.SpringConfig, delay int) float64 {
	return Spring(frame, fps, cfg, delay+index*stagger)
}

// SettleFrames оценивает, через сколько кадров пружина успокаивается
// с точностью eps. Полезно для планирования появления элементов.
func SettleFrames(fps int, cfg model.SpringConfig, eps float64) int {
	const limit = 600
	for f := 1; f <= limit; f++ {
		if math.Abs(1-Spring(f, fps, cfg, 0)) <= eps {
			return f
		}
	}
	return limit
}
