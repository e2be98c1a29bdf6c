package kernel

import "math"

// RealToReciprocal Fourier transforms the real-space force constants at the
// three wavevectors of a triplet into a tensor over primitive atoms and
// Cartesian directions, [i][j][k][α][β][γ].
type RealToReciprocal struct {
	in *Input

	out    []complex128
	single []complex128
	ph1    []complex128
	ph2    []complex128
	pre    []complex128
}

// NewRealToReciprocal allocates the buffers for in.
func NewRealToReciprocal(in *Input) *RealToReciprocal {
	np := in.Primitive.NumAtoms()
	ns := in.FC3.NumAtoms()
	size := np * np * np * 27
	return &RealToReciprocal{
		in:     in,
		out:    make([]complex128, size),
		single: make([]complex128, size),
		ph1:    make([]complex128, np*ns),
		ph2:    make([]complex128, np*ns),
		pre:    make([]complex128, np),
	}
}

// Run transforms at triplet (BZ grid indices). With SymmetrizeFC3Q the
// result is averaged over the six orderings of the triplet. The returned
// slice is reused by the next call.
func (r *RealToReciprocal) Run(triplet [3]int) []complex128 {
	if !r.in.SymmetrizeFC3Q {
		r.transform(r.out, triplet)
		return r.out
	}
	np := r.in.Primitive.NumAtoms()
	for i := range r.out {
		r.out[i] = 0
	}
	for _, p := range permutations {
		r.transform(r.single, permute(triplet, p))
		// Position m of the permuted tensor belongs to original position p[m].
		var at, cart [3]int
		for i0 := 0; i0 < np; i0++ {
			for i1 := 0; i1 < np; i1++ {
				for i2 := 0; i2 < np; i2++ {
					at = [3]int{i0, i1, i2}
					src := ((at[p[0]]*np+at[p[1]])*np + at[p[2]]) * 27
					dst := ((i0*np+i1)*np + i2) * 27
					for c0 := 0; c0 < 3; c0++ {
						for c1 := 0; c1 < 3; c1++ {
							for c2 := 0; c2 < 3; c2++ {
								cart = [3]int{c0, c1, c2}
								s := src + cart[p[0]]*9 + cart[p[1]]*3 + cart[p[2]]
								r.out[dst+c0*9+c1*3+c2] += r.single[s] / 6
							}
						}
					}
				}
			}
		}
	}
	return r.out
}

func (r *RealToReciprocal) transform(dst []complex128, triplet [3]int) {
	in := r.in
	np := in.Primitive.NumAtoms()
	ns := in.FC3.NumAtoms()
	addrs := in.addresses(triplet)
	in.phaseTable(r.ph1, in.Mesh.Reduced(addrs[1]))
	in.phaseTable(r.ph2, in.Mesh.Reduced(addrs[2]))
	in.prephases(r.pre, addrs)

	for i := range dst {
		dst[i] = 0
	}
	for i := 0; i < np; i++ {
		si := in.Primitive.P2S[i]
		for s1 := 0; s1 < ns; s1++ {
			j := in.Primitive.S2PIndex[s1]
			p1 := r.ph1[i*ns+s1]
			for s2 := 0; s2 < ns; s2++ {
				k := in.Primitive.S2PIndex[s2]
				ph := r.pre[i] * p1 * r.ph2[i*ns+s2]
				block := in.FC3.Block(si, s1, s2)
				off := ((i*np+j)*np + k) * 27
				for e, v := range block {
					if v != 0 {
						dst[off+e] += complex(v, 0) * ph
					}
				}
			}
		}
	}
}

// ReciprocalToNormal projects a reciprocal-space tensor onto the phonon
// modes of the triplet and writes |Φ(λ0,λ1,λ2)|²/(ω0·ω1·ω2) into dst,
// laid out [selected band][band][band]. Combinations with a frequency not
// above the cutoff are exactly zero.
type ReciprocalToNormal struct {
	in *Input

	t1 []complex128
	t2 []complex128
}

// NewReciprocalToNormal allocates the buffers for in.
func NewReciprocalToNormal(in *Input) *ReciprocalToNormal {
	nb := in.NumBand()
	return &ReciprocalToNormal{
		in: in,
		t1: make([]complex128, nb*nb),
		t2: make([]complex128, nb),
	}
}

// Run projects rec at triplet into dst.
func (r *ReciprocalToNormal) Run(dst []float64, rec []complex128, triplet [3]int) {
	in := r.in
	nb := in.NumBand()
	np := in.Primitive.NumAtoms()
	masses := in.Primitive.Masses
	f0, f1, f2 := in.frequencies(triplet[0]), in.frequencies(triplet[1]), in.frequencies(triplet[2])
	e0, e1, e2 := in.eigenvectors(triplet[0]), in.eigenvectors(triplet[1]), in.eigenvectors(triplet[2])
	cutoff := in.CutoffFrequency

	for n, b0 := range in.BandIndices {
		row := dst[n*nb*nb : (n+1)*nb*nb]
		for i := range row {
			row[i] = 0
		}
		if f0[b0] <= cutoff {
			continue
		}
		// t1[(i1,β)][(i2,γ)] = Σ_{i0,α} rec e0/√m
		for i := range r.t1 {
			r.t1[i] = 0
		}
		for i0 := 0; i0 < np; i0++ {
			w0 := 1 / math.Sqrt(masses[i0])
			for a := 0; a < 3; a++ {
				c0 := e0[(3*i0+a)*nb+b0] * complex(w0, 0)
				for i1 := 0; i1 < np; i1++ {
					for i2 := 0; i2 < np; i2++ {
						off := ((i0*np+i1)*np + i2) * 27
						for b := 0; b < 3; b++ {
							for c := 0; c < 3; c++ {
								r.t1[(3*i1+b)*nb+3*i2+c] += rec[off+a*9+b*3+c] * c0
							}
						}
					}
				}
			}
		}
		for j := 0; j < nb; j++ {
			if f1[j] <= cutoff {
				continue
			}
			for i := range r.t2 {
				r.t2[i] = 0
			}
			for row1 := 0; row1 < nb; row1++ {
				c1 := e1[row1*nb+j] * complex(1/math.Sqrt(masses[row1/3]), 0)
				for row2 := 0; row2 < nb; row2++ {
					r.t2[row2] += r.t1[row1*nb+row2] * c1
				}
			}
			for k := 0; k < nb; k++ {
				var amp complex128
				for row2 := 0; row2 < nb; row2++ {
					amp += r.t2[row2] * e2[row2*nb+k] * complex(1/math.Sqrt(masses[row2/3]), 0)
				}
				row[j*nb+k] = squared(amp, f0[b0], f1[j], f2[k], cutoff)
			}
		}
	}
}

// Pipeline runs RealToReciprocal and ReciprocalToNormal triplet by triplet.
func Pipeline(in *Input, out []float64) error {
	if err := in.Validate(); err != nil {
		return err
	}
	if len(out) != in.OutputLen() {
		return errOutputLen(len(out), in.OutputLen())
	}
	r2r := NewRealToReciprocal(in)
	r2n := NewReciprocalToNormal(in)
	stride := len(in.BandIndices) * in.NumBand() * in.NumBand()
	for t, tr := range in.Triplets {
		rec := r2r.Run(tr)
		r2n.Run(out[t*stride:(t+1)*stride], rec, tr)
	}
	return nil
}
