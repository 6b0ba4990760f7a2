package controllers

import (
	"math"
	"testing"

	"github.com/mvelasco/platoon/internal/traffic"
)

func snapshot(speed, headway float64, leadSpeed float64) traffic.Snapshot {
	return traffic.Snapshot{
		ID:      "veh_0",
		Speed:   speed,
		Length:  5,
		Headway: headway,
		Leader:  &traffic.Neighbor{ID: "veh_1", Speed: leadSpeed, Gap: headway},
	}
}

func TestPassthrough(t *testing.T) {
	law := NewPassthrough()
	accel, ok := law.GetAccel(snapshot(10, 20, 8), 0.1)
	if ok {
		t.Error("passthrough should not command an acceleration")
	}
	if accel != 0 {
		t.Errorf("passthrough accel should be 0, got %f", accel)
	}
}

func TestBCM_NoLeader(t *testing.T) {
	law := NewBCM(DefaultBCMParams())
	st := traffic.Snapshot{ID: "veh_0", Speed: 25, Headway: 1000}

	accel, ok := law.GetAccel(st, 0.1)
	if !ok {
		t.Fatal("bcm should command an acceleration")
	}
	if accel != law.bounds.MaxAccel {
		t.Errorf("no leader should yield max accel %f, got %f", law.bounds.MaxAccel, accel)
	}
}

func TestBCM_Bilateral(t *testing.T) {
	law := NewBCM(BCMParams{KD: 1, KV: 1, KC: 1, VDes: 8})
	law.SetBounds(Bounds{MaxAccel: 100, MaxDecel: 100})
	st := snapshot(8, 20, 10)
	st.Follower = &traffic.Neighbor{ID: "veh_2", Speed: 6, Gap: 10}

	// kd*(20-10) + kv*((10-8)-(8-6)) + kc*(8-8) = 10
	accel, _ := law.GetAccel(st, 0.1)
	if math.Abs(accel-10) > 1e-9 {
		t.Errorf("expected accel 10, got %f", accel)
	}
}

func TestLACC_Converges(t *testing.T) {
	law := NewLACC(DefaultLACCParams())
	law.SetBounds(Bounds{MaxAccel: 100, MaxDecel: 100})

	st := snapshot(10, 30, 12)
	p := DefaultLACCParams()
	u := p.K1*(st.Headway-st.Length-p.H*st.Speed) + p.K2*(st.Leader.Speed-st.Speed)

	// repeated evaluation with constant inputs converges on the
	// steady-state control value (first-order lag)
	dt := 0.01
	var accel float64
	prevGap := math.Abs(u)
	for i := 0; i < 500; i++ {
		accel, _ = law.GetAccel(st, dt)
		gap := math.Abs(u - accel)
		if gap > prevGap+1e-12 {
			t.Fatalf("lag filter diverged at step %d: gap %f > %f", i, gap, prevGap)
		}
		prevGap = gap
	}
	if math.Abs(accel-u) > 0.01*math.Abs(u) {
		t.Errorf("expected convergence to %f, got %f", u, accel)
	}
}

func TestOVM_SplineContinuity(t *testing.T) {
	p := DefaultOVMParams()
	law := NewOVM(p)
	law.SetBounds(Bounds{MaxAccel: 1000, MaxDecel: 1000})

	// accel at h stripped of the speed-difference term recovers
	// alpha*V(h) when speed is zero
	vOf := func(h float64) float64 {
		accel, _ := law.GetAccel(snapshot(0, h, 0), 0.1)
		return accel / p.Alpha
	}

	if v := vOf(p.HSt); math.Abs(v) > 1e-9 {
		t.Errorf("V(h_st) should be 0, got %f", v)
	}
	if v := vOf(p.HSt + 1e-9); math.Abs(v) > 1e-6 {
		t.Errorf("V should be continuous at h_st, got %f", v)
	}
	if v := vOf(p.HGo); math.Abs(v-p.VMax) > 1e-9 {
		t.Errorf("V(h_go) should be v_max, got %f", v)
	}
	if v := vOf(p.HGo - 1e-9); math.Abs(v-p.VMax) > 1e-6 {
		t.Errorf("V should be continuous at h_go, got %f", v)
	}
}

func TestOVM_NoLeader(t *testing.T) {
	law := NewOVM(DefaultOVMParams())
	st := traffic.Snapshot{ID: "veh_0", Speed: 5, Headway: 1000}

	accel, _ := law.GetAccel(st, 0.1)
	if accel != law.bounds.MaxAccel {
		t.Errorf("no leader should yield max accel, got %f", accel)
	}
}

func TestLinearOVM_Regions(t *testing.T) {
	p := DefaultLinearOVMParams()
	law := NewLinearOVM(p)
	law.SetBounds(Bounds{MaxAccel: 1000, MaxDecel: 1000})

	// below the stopping headway the desired speed is zero
	accel, _ := law.GetAccel(snapshot(10, 2, 10), 0.1)
	want := (0 - 10.0) / p.Adaptation
	if math.Abs(accel-want) > 1e-9 {
		t.Errorf("expected %f below h_st, got %f", want, accel)
	}

	// far headway saturates at v_max
	accel, _ = law.GetAccel(snapshot(10, 500, 10), 0.1)
	want = (p.VMax - 10.0) / p.Adaptation
	if math.Abs(accel-want) > 1e-9 {
		t.Errorf("expected %f above saturation, got %f", want, accel)
	}
}

func TestIDM_NoLeader(t *testing.T) {
	p := DefaultIDMParams()
	law := NewIDM(p)
	st := traffic.Snapshot{ID: "veh_0", Speed: 10, Headway: 1000}

	// with no leader s* is zero and the law reduces to free flow
	accel, _ := law.GetAccel(st, 0.1)
	want := p.A * (1 - math.Pow(10/p.V0, p.Delta))
	if math.Abs(accel-want) > 1e-9 {
		t.Errorf("expected free-flow accel %f, got %f", want, accel)
	}
}

func TestIDM_Reference(t *testing.T) {
	law := NewIDM(DefaultIDMParams())

	accel, _ := law.GetAccel(snapshot(10, 20, 8), 0.1)
	// s* = 2 + 10 + 10*2/(2*sqrt(1.5)) = 20.165, accel ~ -0.0289
	if math.Abs(accel-(-0.0289)) > 1e-3 {
		t.Errorf("expected accel ~ -0.0289, got %f", accel)
	}
}

func TestIDM_DegenerateHeadway(t *testing.T) {
	law := NewIDM(DefaultIDMParams())
	law.SetBounds(Bounds{MaxAccel: 1e12, MaxDecel: 1e12})

	accel, _ := law.GetAccel(snapshot(10, 0, 8), 0.1)
	if math.IsInf(accel, 0) || math.IsNaN(accel) {
		t.Errorf("zero headway must be floored, got %f", accel)
	}
}

func TestNoiseIsClamped(t *testing.T) {
	law := NewIDM(DefaultIDMParams())
	law.SetBounds(Bounds{MaxAccel: 1, MaxDecel: 1})
	law.SetNoise(50, 42)

	for i := 0; i < 100; i++ {
		accel, _ := law.GetAccel(snapshot(10, 20, 8), 0.1)
		if accel > 1 || accel < -1 {
			t.Fatalf("accel %f outside bounds", accel)
		}
	}
}
