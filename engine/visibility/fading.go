package visibility

import (
	"github.com/Carmen-Shannon/oxy-cull/common"
)

// FadeUniform is the time-based opacity ramp of a fading primitive:
// opacity = Scale*time + Bias, clamped to [0, 1].
type FadeUniform struct {
	Scale  float32
	Bias   float32
	Active bool
}

// Opacity evaluates the ramp at time t. An inactive uniform is fully opaque.
func (f FadeUniform) Opacity(t float64) float32 {
	if !f.Active {
		return 1
	}
	return common.Clamp(float32(float64(f.Scale)*t+float64(f.Bias)), 0, 1)
}

type fadeState struct {
	valid   bool
	visible bool
	frame   uint64

	// active is set while a fade is in progress.
	active  bool
	scale   float64
	bias    float64
	endTime float64
}

// update records this frame's distance visibility and starts or reverses a fade when it
// changed.
func (f *fadeState) update(frame uint64, now, fadeTime float64, visible bool) {
	if f.valid && f.visible != visible {
		if !f.active {
			f.active = true
			f.endTime = now + fadeTime
			if visible {
				f.scale = 1 / fadeTime
				f.bias = -now / fadeTime
			} else {
				f.scale = -1 / fadeTime
				f.bias = 1 + now/fadeTime
			}
		} else {
			// Reverse at the current opacity: a*t+b = -a*t+d.
			f.bias = 2*now*f.scale + f.bias
			f.scale = -f.scale
			if visible {
				f.endTime = (1 - f.bias) / f.scale
			} else {
				f.endTime = -f.bias / f.scale
			}
		}
	}
	f.frame = frame
	f.visible = visible
	f.valid = true
}

func (f *fadeState) uniform() FadeUniform {
	if !f.active {
		return FadeUniform{}
	}
	return FadeUniform{Scale: float32(f.scale), Bias: float32(f.bias), Active: true}
}

// UpdatePrimitiveFading advances the fade state of every potentially fading primitive.
// Primitives fading out stay visible until their fade ends. States not updated in the
// previous frame, or whose fade has ended, are dropped first, so a primitive seen again
// after a gap pops in without a fade.
//
// Runs single-threaded and writes only the view state and the view's fade outputs.
//
// Parameters:
//   - ctx: the pass context
//   - v: the view
func UpdatePrimitiveFading(ctx Context, v *View) {
	st := v.State
	if st == nil {
		return
	}
	now := v.Time

	for id, f := range st.fades {
		if f.frame != st.prevFrame || (f.active && now >= f.endTime) {
			delete(st.fades, id)
		}
	}
	if v.DisableFadeTransitions {
		return
	}

	fadeTime := float64(ctx.Config.FadeTime)
	ids := ctx.Scene.PrimitiveComponentIDs()
	for i := range v.PotentiallyFading.All() {
		visible := v.PrimitiveVisibility.Get(i)
		f, ok := st.fades[ids[i]]
		if !ok {
			f = &fadeState{}
			st.fades[ids[i]] = f
		}
		f.update(st.frame, now, fadeTime, visible)
		u := f.uniform()
		if u.Active {
			v.Stats.Fading++
			if !visible {
				v.PrimitiveVisibility.Set(i, true)
			}
		}
		v.FadeUniforms[i] = u
	}
}
