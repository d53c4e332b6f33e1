package zone

import (
	"math"
	"time"

	"gonum.org/v1/gonum/mat"
)

// State holds the capacitive node temperatures carried between timesteps.
type State struct {
	Air       float64
	InnerWall float64
	OuterWall float64
}

// Flows are the convective heat flows from the wall surfaces into the air, W.
type Flows struct {
	InnerWall float64
	OuterWall float64
}

// Network advances the RC model by one implicit timestep. The variant is
// fixed when the Simulation is built.
type Network interface {
	Nodes() int
	Respond(prev State, d Drive) (Response, error)
}

// Node indices. Surface nodes carry no capacitance.
const (
	nodeAir = iota
	nodeOuterSurface
	nodeOuterWall
	nodeInnerSurface
	nodeInnerWall
)

// Response is the network's linear answer to air-node power for one step:
// T(q) = free + q*unit.
type Response struct {
	free, unit *mat.VecDense
	inner      bool

	gInner float64 // air to inner surface conductance
	gOuter float64 // air to outer surface conductance
	prev   State
}

// FreeAir is the air temperature reached with no injected power.
func (r Response) FreeAir() float64 {
	return r.free.AtVec(nodeAir)
}

// PowerFor is the air-node power that lands the air temperature on target.
func (r Response) PowerFor(target float64) float64 {
	return (target - r.FreeAir()) / r.unit.AtVec(nodeAir)
}

// Apply returns the end-of-step state and wall flows with q watts injected
// into the air node.
func (r Response) Apply(q float64) (State, Flows) {
	at := func(i int) float64 { return r.free.AtVec(i) + q*r.unit.AtVec(i) }

	air := at(nodeAir)
	s := State{Air: air, OuterWall: at(nodeOuterWall), InnerWall: r.prev.InnerWall}
	f := Flows{OuterWall: r.gOuter * (at(nodeOuterSurface) - air)}
	if r.inner {
		s.InnerWall = at(nodeInnerWall)
		f.InnerWall = r.gInner * (at(nodeInnerSurface) - air)
	}
	return s, f
}

// stamp accumulates a symmetric conductance system K x = b.
type stamp struct {
	k *mat.SymDense
	b *mat.VecDense
}

func newStamp(n int) stamp {
	return stamp{k: mat.NewSymDense(n, nil), b: mat.NewVecDense(n, nil)}
}

func (s stamp) link(i, j int, g float64) {
	s.k.SetSym(i, i, s.k.At(i, i)+g)
	s.k.SetSym(j, j, s.k.At(j, j)+g)
	s.k.SetSym(i, j, s.k.At(i, j)-g)
}

// ground ties node i to a fixed temperature through conductance g.
func (s stamp) ground(i int, g, temp float64) {
	s.k.SetSym(i, i, s.k.At(i, i)+g)
	s.b.SetVec(i, s.b.AtVec(i)+g*temp)
}

func (s stamp) source(i int, q float64) {
	s.b.SetVec(i, s.b.AtVec(i)+q)
}

func (s stamp) solve(prev State, inner bool, gInner, gOuter float64) (Response, error) {
	var ch mat.Cholesky
	if ok := ch.Factorize(s.k); !ok {
		return Response{}, ErrSingular
	}
	n := s.b.Len()
	free := mat.NewVecDense(n, nil)
	if err := ch.SolveVecTo(free, s.b); err != nil {
		return Response{}, err
	}
	e := mat.NewVecDense(n, nil)
	e.SetVec(nodeAir, 1)
	unit := mat.NewVecDense(n, nil)
	if err := ch.SolveVecTo(unit, e); err != nil {
		return Response{}, err
	}
	for i := range n {
		if !finite(free.AtVec(i)) || !finite(unit.AtVec(i)) {
			return Response{}, ErrNonFinite
		}
	}
	return Response{free: free, unit: unit, inner: inner, gInner: gInner, gOuter: gOuter, prev: prev}, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// outerNetwork holds the terms shared by both variants: the air node and the
// outer wall branch.
type outerNetwork struct {
	p  *BuildingParameters
	dt float64

	gEq     float64 // equivalent temperature to outer wall mass
	g1o     float64 // outer wall mass to outer surface
	gOuter  float64 // outer surface to air
	cAir    float64
	cOuter  float64
	areaOut float64
}

func newOuterNetwork(p *BuildingParameters, dt time.Duration) outerNetwork {
	ao := p.Ao.Sum()
	return outerNetwork{
		p:       p,
		dt:      dt.Seconds(),
		gEq:     1 / (p.RRest + 1/p.AlphaWall),
		g1o:     1 / p.R1o,
		gOuter:  p.AlphaOWI * ao,
		cAir:    p.AirCapacity(),
		cOuter:  p.C1o,
		areaOut: ao,
	}
}

func (o outerNetwork) stampOuter(s stamp, prev State, d Drive, outerRad float64) {
	s.ground(nodeAir, o.cAir/o.dt, prev.Air)
	s.ground(nodeAir, d.VentRate*o.cAir/3600, d.Outdoor)
	s.source(nodeAir, d.Convective+o.p.SplitFac*d.Solar)

	s.link(nodeAir, nodeOuterSurface, o.gOuter)
	s.source(nodeOuterSurface, outerRad)

	s.link(nodeOuterSurface, nodeOuterWall, o.g1o)
	s.ground(nodeOuterWall, o.cOuter/o.dt, prev.OuterWall)
	s.ground(nodeOuterWall, o.gEq, d.EquivalentAir)
}

func radiativeGain(p *BuildingParameters, d Drive) float64 {
	return d.Radiative + (1-p.SplitFac)*d.Solar
}

// threeNode is the full model: air, outer wall and inner wall masses.
type threeNode struct {
	outerNetwork
	g1i    float64
	gInner float64
	cInner float64
}

func (n threeNode) Nodes() int { return 5 }

func (n threeNode) Respond(prev State, d Drive) (Response, error) {
	s := newStamp(n.Nodes())
	rad := radiativeGain(n.p, d)
	share := n.p.outerShare()
	n.stampOuter(s, prev, d, share*rad)

	s.link(nodeAir, nodeInnerSurface, n.gInner)
	s.source(nodeInnerSurface, (1-share)*rad)
	s.link(nodeOuterSurface, nodeInnerSurface, d.AlphaRad*math.Min(n.areaOut, n.p.Ai))

	s.link(nodeInnerSurface, nodeInnerWall, n.g1i)
	s.ground(nodeInnerWall, n.cInner/n.dt, prev.InnerWall)

	return s.solve(prev, true, n.gInner, n.gOuter)
}

// twoNode drops the inner wall. Its share of the radiative gains is given to
// the air node.
type twoNode struct {
	outerNetwork
}

func (n twoNode) Nodes() int { return 3 }

func (n twoNode) Respond(prev State, d Drive) (Response, error) {
	s := newStamp(n.Nodes())
	rad := radiativeGain(n.p, d)
	share := n.p.outerShare()
	n.stampOuter(s, prev, d, share*rad)
	s.source(nodeAir, (1-share)*rad)

	return s.solve(prev, false, 0, n.gOuter)
}

// NewNetwork selects the network variant for p. p must already be valid.
func NewNetwork(p *BuildingParameters, dt time.Duration) Network {
	outer := newOuterNetwork(p, dt)
	if !p.WithInnerWalls {
		return twoNode{outer}
	}
	return threeNode{
		outerNetwork: outer,
		g1i:          1 / p.R1i,
		gInner:       p.AlphaIWI * p.Ai,
		cInner:       p.C1i,
	}
}
