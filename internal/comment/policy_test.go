package comment

import "testing"

func TestPolicyModes(t *testing.T) {
	if (Policy{Mode: PersistNone}).ShouldPersist(false) {
		t.Fatalf("none must never persist")
	}
	if !(Policy{Mode: PersistAll}).ShouldPersist(false) {
		t.Fatalf("all must always persist")
	}
	if !(Policy{Mode: PersistNone}).ShouldPersist(true) {
		t.Fatalf("caller override must force persistence")
	}
}

func TestPolicySampleBoundaries(t *testing.T) {
	zero := Policy{Mode: PersistSample, SampleRate: 0}
	for i := 0; i < 100; i++ {
		if zero.ShouldPersist(false) {
			t.Fatalf("rate 0 must never persist")
		}
	}

	one := Policy{Mode: PersistSample, SampleRate: 1}
	for i := 0; i < 100; i++ {
		if !one.ShouldPersist(false) {
			t.Fatalf("rate 1 must always persist")
		}
	}
}

func TestPolicySampleRateClamped(t *testing.T) {
	below := Policy{Mode: PersistSample, SampleRate: -3}
	if below.ShouldPersist(false) {
		t.Fatalf("negative rate behaves as 0")
	}
	above := Policy{Mode: PersistSample, SampleRate: 7}
	if !above.ShouldPersist(false) {
		t.Fatalf("rate above 1 behaves as 1")
	}
}

func TestPolicySampleUsesRandomSource(t *testing.T) {
	p := Policy{Mode: PersistSample, SampleRate: 0.5, Rand: func() float64 { return 0.4 }}
	if !p.ShouldPersist(false) {
		t.Fatalf("0.4 < 0.5 must persist")
	}
	p.Rand = func() float64 { return 0.6 }
	if p.ShouldPersist(false) {
		t.Fatalf("0.6 >= 0.5 must not persist")
	}
}
