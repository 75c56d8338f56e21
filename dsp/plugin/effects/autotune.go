package effects

import (
	"fmt"
	"math"
	"strings"

	"github.com/cwbudde/algo-daw/dsp/core"
	"github.com/cwbudde/algo-daw/dsp/delay"
	"github.com/cwbudde/algo-daw/dsp/graph"
	"github.com/cwbudde/algo-daw/dsp/plugin"
)

const (
	yinThreshold   = 0.15
	voicedFloor    = 1e-4
	shifterWindow  = 0.05
	detectorWindow = 0.04
)

var scaleSteps = map[string][]int{
	"major":      {0, 2, 4, 5, 7, 9, 11},
	"minor":      {0, 2, 3, 5, 7, 8, 10},
	"pentatonic": {0, 2, 4, 7, 9},
	"blues":      {0, 3, 5, 6, 7, 10},
}

var pitchClasses = map[string]int{
	"C": 0, "C#": 1, "DB": 1, "D": 2, "D#": 3, "EB": 3, "E": 4, "F": 5, "F#": 6, "GB": 6,
	"G": 7, "G#": 8, "AB": 8, "A": 9, "A#": 10, "BB": 10, "B": 11,
}

// SnapToScale returns the MIDI note of the given key and scale nearest to
// note. Unknown scales are treated as chromatic and unknown keys as C.
func SnapToScale(note float64, key, scale string) float64 {
	steps, ok := scaleSteps[strings.ToLower(scale)]
	if !ok {
		return math.Round(note)
	}

	root := pitchClasses[strings.ToUpper(key)]
	best, bestDist := math.Round(note), math.Inf(1)
	octaveBase := math.Floor(note/12) * 12
	for octave := -12.0; octave <= 12; octave += 12 {
		for _, s := range steps {
			cand := octaveBase + octave + float64((root+s)%12)
			if d := math.Abs(cand - note); d < bestDist {
				best, bestDist = cand, d
			}
		}
	}

	return best
}

// DetectPitch estimates the fundamental of frame in Hz with the YIN
// cumulative mean normalized difference, searching minHz..maxHz. It reports
// false for unvoiced or silent frames.
func DetectPitch(frame []float64, sampleRate, minHz, maxHz float64) (float64, bool) {
	minLag := max(int(sampleRate/maxHz), 2)
	maxLag := min(int(sampleRate/minHz), len(frame)/2-1)
	if maxLag <= minLag {
		return 0, false
	}

	var energy float64
	for _, x := range frame {
		energy += x * x
	}

	if math.Sqrt(energy/float64(len(frame))) < voicedFloor {
		return 0, false
	}

	width := len(frame) - maxLag - 1
	diff := make([]float64, maxLag+2)
	for lag := 1; lag <= maxLag+1; lag++ {
		var sum float64
		for i := range width {
			d := frame[i] - frame[i+lag]
			sum += d * d
		}

		diff[lag] = sum
	}

	var running float64
	cmnd := make([]float64, len(diff))
	cmnd[0] = 1
	for lag := 1; lag < len(diff); lag++ {
		running += diff[lag]
		if running == 0 {
			cmnd[lag] = 1
			continue
		}

		cmnd[lag] = diff[lag] * float64(lag) / running
	}

	for lag := minLag; lag <= maxLag; lag++ {
		if cmnd[lag] >= yinThreshold {
			continue
		}

		for lag+1 <= maxLag && cmnd[lag+1] < cmnd[lag] {
			lag++
		}

		period := float64(lag)
		a, b, c := cmnd[lag-1], cmnd[lag], cmnd[lag+1]
		if den := a - 2*b + c; den != 0 {
			period += 0.5 * (a - c) / den
		}

		return sampleRate / period, true
	}

	return 0, false
}

// AutoTune detects the pitch of its input and shifts it to the nearest note
// of a key and scale. The shifter is a pair of crossfaded taps sweeping a
// short delay line, so the correction follows the detector with a delay of
// one detector hop.
type AutoTune struct {
	plugin.Base
	mix  *plugin.DryWet
	proc *graph.Processor

	lines  [graph.Channels]*delay.Line
	window float64
	phase  float64

	ring     []float64
	frame    []float64
	pos      int
	filled   int
	hop      int
	sinceHop int

	detected float64
	target   float64
	ratio    float64

	key, scale   string
	minHz, maxHz float64
	glide        float64
}

// NewAutoTune returns a chromatic auto-tune with a 50 ms retune speed.
func NewAutoTune(ctx *graph.Context) (*AutoTune, error) {
	mix, err := plugin.NewDryWet(ctx)
	if err != nil {
		return nil, err
	}

	sr := ctx.SampleRate()
	a := &AutoTune{
		Base: plugin.NewBase(ctx, plugin.KindAutoTune, plugin.Params{
			"key": "C", "scale": "chromatic", "retuneSpeed": 0.05, "mix": 1.0,
			"minFreq": 70.0, "maxFreq": 1000.0,
		}),
		mix:    mix,
		window: math.Round(shifterWindow * sr),
		ratio:  1,
		target: 1,
	}

	size := 1
	for size < int(detectorWindow*sr) {
		size <<= 1
	}

	a.ring = make([]float64, size)
	a.frame = make([]float64, size)
	a.hop = size / 4
	for ch := range a.lines {
		if a.lines[ch], err = delay.New(int(a.window) + 4); err != nil {
			mix.Close()
			return nil, fmt.Errorf("effects: autotune: %w", err)
		}
	}

	a.proc = graph.NewProcessor(ctx, 1, a.process)
	if err := plugin.Chain(mix.In, a.proc, mix.Wet); err != nil {
		a.Close()
		return nil, fmt.Errorf("effects: autotune: %w", err)
	}

	a.apply()

	return a, nil
}

func (a *AutoTune) Input() graph.Node  { return a.mix.In }
func (a *AutoTune) Output() graph.Node { return a.mix.Out }

// DetectedPitch returns the last voiced pitch estimate in Hz, or 0.
func (a *AutoTune) DetectedPitch() float64 { return a.detected }

// Ratio returns the current pitch shift ratio.
func (a *AutoTune) Ratio() float64 { return a.ratio }

func (a *AutoTune) UpdateParams(update plugin.Params) {
	a.Merge(update)
	a.apply()
}

func (a *AutoTune) apply() {
	a.key = a.Str("key", "C")
	a.scale = a.Str("scale", "chromatic")
	a.minHz = a.NumIn("minFreq", 70, 40, 500)
	a.maxHz = math.Max(a.NumIn("maxFreq", 1000, 100, 2000), a.minHz*2)
	a.glide = core.OnePoleCoeff(a.NumIn("retuneSpeed", 0.05, 0, 1), a.Ctx.SampleRate())
	if !a.Enabled() {
		a.ApplyBypassState()
		return
	}

	a.mix.Mix(&a.Base, a.NumIn("mix", 1, 0, 1), a.TimeConstant)
}

func (a *AutoTune) ApplyBypassState() {
	a.mix.Bypass(&a.Base, a.TimeConstant)
}

func (a *AutoTune) process(in [][graph.Channels][]float64, out [graph.Channels][]float64, _ float64) {
	l, r := in[0][0], in[0][1]
	for i := range out[0] {
		a.analyze(0.5 * (l[i] + r[i]))
		a.ratio += (a.target - a.ratio) * a.glide

		a.phase += (1 - a.ratio) / a.window
		a.phase -= math.Floor(a.phase)
		p2 := a.phase + 0.5
		p2 -= math.Floor(p2)
		g1 := math.Sin(math.Pi * a.phase)
		g1 *= g1
		for ch, line := range a.lines {
			line.Write(in[0][ch][i])
			out[ch][i] = g1*line.Tap(1+a.phase*a.window) + (1-g1)*line.Tap(1+p2*a.window)
		}
	}
}

// analyze feeds one sample to the detector and retargets the ratio once per
// hop.
func (a *AutoTune) analyze(x float64) {
	n := len(a.ring)
	a.ring[a.pos] = x
	a.pos = (a.pos + 1) % n
	a.filled = min(a.filled+1, n)
	a.sinceHop++
	if a.filled < n || a.sinceHop < a.hop {
		return
	}

	a.sinceHop = 0
	k := copy(a.frame, a.ring[a.pos:])
	copy(a.frame[k:], a.ring[:a.pos])
	hz, ok := DetectPitch(a.frame, a.Ctx.SampleRate(), a.minHz, a.maxHz)
	if !ok {
		a.target = 1
		return
	}

	a.detected = hz
	note := SnapToScale(core.HzToMIDI(hz), a.key, a.scale)
	a.target = core.Clamp(core.MIDIToHz(note)/hz, 0.5, 2)
}

func (a *AutoTune) Close() {
	a.mix.Close()
	if a.proc != nil {
		a.proc.Close()
	}
}
