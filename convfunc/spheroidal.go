package convfunc

import "math"

// Rational approximation coefficients of the prolate spheroidal wave
// function (m=6, alpha=1), split at nu=0.75.
var (
	sphP = [2][5]float64{
		{8.203343e-2, -3.644705e-1, 6.278660e-1, -5.335581e-1, 2.312756e-1},
		{4.028559e-3, -3.697768e-2, 1.021332e-1, -1.201436e-1, 6.412774e-2},
	}
	sphQ = [2][3]float64{
		{1.0, 8.212018e-1, 2.078043e-1},
		{1.0, 9.599102e-1, 2.918724e-1},
	}
)

// Spheroidal evaluates the prolate spheroidal taper at nu in [-1, 1]. It is
// zero outside that range.
func Spheroidal(nu float64) float64 {
	nu = math.Abs(nu)
	if nu > 1 {
		return 0
	}
	part, end := 0, 0.75
	if nu >= 0.75 {
		part, end = 1, 1.0
	}
	d := nu*nu - end*end

	top, pow := 0.0, 1.0
	for _, p := range sphP[part] {
		top += p * pow
		pow *= d
	}
	bot, pow := 0.0, 1.0
	for _, q := range sphQ[part] {
		bot += q * pow
		pow *= d
	}
	if bot == 0 {
		return 0
	}
	return top / bot
}

// GridCorrection returns the spheroidal taper across n image pixels centred
// on n/2, normalised to 1 at the centre. Divide gridded images by it.
func GridCorrection(n int) []float64 {
	out := make([]float64, n)
	if n == 0 {
		return out
	}
	half := float64(n) / 2
	peak := Spheroidal(0)
	for i := range out {
		out[i] = Spheroidal(math.Abs(float64(i)-float64(n/2))/half) / peak
	}
	return out
}
