package kernel

import (
	"fmt"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Fused contracts the real-space force constants with the phase factors and
// eigenvectors directly, one triplet per task. Workers bounds the number of
// triplets in flight; zero means GOMAXPROCS.
type Fused struct {
	Workers int
}

// scratch is the per-worker working memory of Fused.
type scratch struct {
	ph1, ph2, pre []complex128
	// t holds Σ_{i,α} over the first mode for a fixed band: [s1][s2][β][γ].
	t []complex128
	// u holds the contraction of t with the second mode: [s2][γ].
	u []complex128
	// amps holds complex amplitudes [band0][band][band] for one ordering.
	amps [6][]complex128
	// all lists every band; the symmetrized path projects all of them.
	all []int
}

func newScratch(in *Input, symmetrize bool) *scratch {
	np := in.Primitive.NumAtoms()
	ns := in.FC3.NumAtoms()
	nb := in.NumBand()
	s := &scratch{
		ph1: make([]complex128, np*ns),
		ph2: make([]complex128, np*ns),
		pre: make([]complex128, np),
		t:   make([]complex128, ns*ns*9),
		u:   make([]complex128, ns*3),
	}
	orderings := 1
	if symmetrize {
		orderings = 6
	}
	for o := 0; o < orderings; o++ {
		s.amps[o] = make([]complex128, nb*nb*nb)
	}
	if symmetrize {
		s.all = make([]int, nb)
		for i := range s.all {
			s.all[i] = i
		}
	}
	return s
}

// Run writes the squared matrix elements of every triplet in in into out,
// laid out [triplet][selected band][band][band].
func (f Fused) Run(in *Input, out []float64) error {
	if err := in.Validate(); err != nil {
		return err
	}
	if len(out) != in.OutputLen() {
		return errOutputLen(len(out), in.OutputLen())
	}
	workers := f.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > len(in.Triplets) {
		workers = len(in.Triplets)
	}
	if workers == 0 {
		return nil
	}

	pool := make(chan *scratch, workers)
	for w := 0; w < workers; w++ {
		pool <- newScratch(in, in.SymmetrizeFC3Q)
	}
	nb := in.NumBand()
	stride := len(in.BandIndices) * nb * nb

	var g errgroup.Group
	g.SetLimit(workers)
	for t := range in.Triplets {
		t := t
		g.Go(func() error {
			s := <-pool
			defer func() { pool <- s }()
			f.triplet(in, s, in.Triplets[t], out[t*stride:(t+1)*stride])
			return nil
		})
	}
	return g.Wait()
}

func (f Fused) triplet(in *Input, s *scratch, tr [3]int, dst []float64) {
	nb := in.NumBand()
	cutoff := in.CutoffFrequency
	f0, f1, f2 := in.frequencies(tr[0]), in.frequencies(tr[1]), in.frequencies(tr[2])

	if !in.SymmetrizeFC3Q {
		f.amplitudes(in, s, tr, in.BandIndices, s.amps[0])
		for n, b0 := range in.BandIndices {
			for j := 0; j < nb; j++ {
				for k := 0; k < nb; k++ {
					amp := s.amps[0][(n*nb+j)*nb+k]
					dst[(n*nb+j)*nb+k] = squared(amp, f0[b0], f1[j], f2[k], cutoff)
				}
			}
		}
		return
	}

	for o, p := range permutations {
		f.amplitudes(in, s, permute(tr, p), s.all, s.amps[o])
	}
	var b [3]int
	for n, b0 := range in.BandIndices {
		for j := 0; j < nb; j++ {
			for k := 0; k < nb; k++ {
				b = [3]int{b0, j, k}
				var amp complex128
				for o, p := range permutations {
					amp += s.amps[o][(b[p[0]]*nb+b[p[1]])*nb+b[p[2]]]
				}
				dst[(n*nb+j)*nb+k] = squared(amp/6, f0[b0], f1[j], f2[k], cutoff)
			}
		}
	}
}

// amplitudes fills dst[(n·nb+j)·nb+k] with the mode-projected force
// constant for bands0[n] at tr[0], j at tr[1] and k at tr[2]. Bands at or
// below the cutoff are skipped; their amplitudes are left as zero.
func (f Fused) amplitudes(in *Input, s *scratch, tr [3]int, bands0 []int, dst []complex128) {
	np := in.Primitive.NumAtoms()
	ns := in.FC3.NumAtoms()
	nb := in.NumBand()
	masses := in.Primitive.Masses
	s2p := in.Primitive.S2PIndex
	cutoff := in.CutoffFrequency
	skip := !in.SymmetrizeFC3Q

	addrs := in.addresses(tr)
	in.phaseTable(s.ph1, in.Mesh.Reduced(addrs[1]))
	in.phaseTable(s.ph2, in.Mesh.Reduced(addrs[2]))
	in.prephases(s.pre, addrs)
	f0, f1 := in.frequencies(tr[0]), in.frequencies(tr[1])
	e0, e1, e2 := in.eigenvectors(tr[0]), in.eigenvectors(tr[1]), in.eigenvectors(tr[2])

	for i := range dst[:len(bands0)*nb*nb] {
		dst[i] = 0
	}
	for n, b0 := range bands0 {
		if skip && f0[b0] <= cutoff {
			continue
		}
		for i := range s.t {
			s.t[i] = 0
		}
		for i := 0; i < np; i++ {
			si := in.Primitive.P2S[i]
			w := complex(1/math.Sqrt(masses[i]), 0) * s.pre[i]
			for a := 0; a < 3; a++ {
				c0 := e0[(3*i+a)*nb+b0] * w
				if c0 == 0 {
					continue
				}
				for s1 := 0; s1 < ns; s1++ {
					c01 := c0 * s.ph1[i*ns+s1]
					for s2 := 0; s2 < ns; s2++ {
						c := c01 * s.ph2[i*ns+s2]
						block := in.FC3.Block(si, s1, s2)[a*9 : a*9+9]
						t := s.t[(s1*ns+s2)*9 : (s1*ns+s2)*9+9]
						for bc, v := range block {
							if v != 0 {
								t[bc] += complex(v, 0) * c
							}
						}
					}
				}
			}
		}
		for j := 0; j < nb; j++ {
			if skip && f1[j] <= cutoff {
				continue
			}
			for i := range s.u {
				s.u[i] = 0
			}
			for s1 := 0; s1 < ns; s1++ {
				p1 := s2p[s1]
				w1 := complex(1/math.Sqrt(masses[p1]), 0)
				for b := 0; b < 3; b++ {
					c1 := e1[(3*p1+b)*nb+j] * w1
					if c1 == 0 {
						continue
					}
					for s2 := 0; s2 < ns; s2++ {
						t := s.t[(s1*ns+s2)*9+b*3 : (s1*ns+s2)*9+b*3+3]
						u := s.u[s2*3 : s2*3+3]
						u[0] += t[0] * c1
						u[1] += t[1] * c1
						u[2] += t[2] * c1
					}
				}
			}
			for k := 0; k < nb; k++ {
				var amp complex128
				for s2 := 0; s2 < ns; s2++ {
					p2 := s2p[s2]
					w2 := complex(1/math.Sqrt(masses[p2]), 0)
					for c := 0; c < 3; c++ {
						amp += s.u[s2*3+c] * e2[(3*p2+c)*nb+k] * w2
					}
				}
				dst[(n*nb+j)*nb+k] = amp
			}
		}
	}
}

func errOutputLen(got, want int) error {
	return fmt.Errorf("%w: output has %d values, want %d", ErrInput, got, want)
}
