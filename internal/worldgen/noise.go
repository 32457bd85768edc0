package worldgen

import (
	"github.com/aquilax/go-perlin"
)

// Параметры шума Перлина
const (
	noiseAlpha   = 2.0 // Сглаживание шума
	noiseBeta    = 2.0 // Частота шума
	noiseOctaves = 3
)

// noise генератор шума Перлина, привязанный к одному сиду
type noise struct {
	p *perlin.Perlin
}

func newNoise(seed int64) *noise {
	return &noise{p: perlin.NewPerlin(noiseAlpha, noiseBeta, noiseOctaves, seed)}
}

// at1 значение одномерного шума в диапазоне от 0 до 1
func (n *noise) at1(x float64) float64 {
	return clamp01((n.p.Noise1D(x) + 1.0) / 2.0)
}

// at2 значение двумерного шума в диапазоне от 0 до 1
func (n *noise) at2(x, y float64) float64 {
	return clamp01((n.p.Noise2D(x, y) + 1.0) / 2.0)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
