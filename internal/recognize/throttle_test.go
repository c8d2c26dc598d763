package recognize

import "testing"

func TestThrottlerFirstAlwaysFires(t *testing.T) {
	tr := NewThrottler(90)
	if !tr.Allow(1) {
		t.Fatal("first unknown of a session should always fire")
	}
}

func TestThrottlerCooldown(t *testing.T) {
	tests := []struct {
		name   string
		frames []int
		want   []bool
	}{
		{
			name:   "Second capture inside cooldown is denied",
			frames: []int{1, 30},
			want:   []bool{true, false},
		},
		{
			name:   "Gap of exactly cooldown fires again",
			frames: []int{1, 91},
			want:   []bool{true, true},
		},
		{
			name:   "Gap one short of cooldown is denied",
			frames: []int{1, 90},
			want:   []bool{true, false},
		},
		{
			name:   "Denied attempts do not reset the clock",
			frames: []int{1, 50, 91},
			want:   []bool{true, false, true},
		},
		{
			name:   "Two unknowns in the same frame yield one capture",
			frames: []int{10, 10},
			want:   []bool{true, false},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewThrottler(90)
			for i, frame := range tt.frames {
				if got := tr.Allow(frame); got != tt.want[i] {
					t.Errorf("Allow(%d) = %v, want %v", frame, got, tt.want[i])
				}
			}
		})
	}
}

func TestThrottlerSteadyUnknownStream(t *testing.T) {
	// One unknown per frame for 30 frames at cooldown 90: exactly one capture.
	tr := NewThrottler(90)
	fired := 0
	for frame := 1; frame <= 30; frame++ {
		if tr.Allow(frame) {
			fired++
		}
	}
	if fired != 1 {
		t.Errorf("expected exactly 1 capture across 30 frames, got %d", fired)
	}
}

func TestThrottlerZeroCooldown(t *testing.T) {
	tr := NewThrottler(0)
	for frame := 1; frame <= 3; frame++ {
		if !tr.Allow(frame) {
			t.Errorf("zero cooldown should never throttle, denied at frame %d", frame)
		}
	}
}
