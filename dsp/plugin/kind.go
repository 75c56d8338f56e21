package plugin

// Kind tags a plugin descriptor with its node type.
type Kind string

// Effect kinds.
const (
	KindAutoTune       Kind = "AUTOTUNE"
	KindReverb         Kind = "REVERB"
	KindCompressor     Kind = "COMPRESSOR"
	KindCompressorPro  Kind = "COMPRESSOR_PRO"
	KindDelay          Kind = "DELAY"
	KindChorus         Kind = "CHORUS"
	KindFlanger        Kind = "FLANGER"
	KindDoubler        Kind = "DOUBLER"
	KindStereoSpreader Kind = "STEREOSPREADER"
	KindDeEsser        Kind = "DEESSER"
	KindDenoiser       Kind = "DENOISER"
	KindProEQ12        Kind = "PROEQ12"
	KindVocalSaturator Kind = "VOCALSATURATOR"
	KindMasterSync     Kind = "MASTERSYNC"
)

// Instrument kinds.
const (
	KindSynth          Kind = "SYNTH"
	KindMelodicSampler Kind = "MELODIC_SAMPLER"
	KindDrumSampler    Kind = "DRUM_SAMPLER"
	KindSampler        Kind = "SAMPLER"
	KindDrumRack       Kind = "DRUM_RACK_UI"
)

// instrumentKinds lists the kinds that take note events, in the order the
// active-instrument resolution prefers them.
var instrumentKinds = []Kind{KindMelodicSampler, KindDrumSampler, KindSampler, KindDrumRack, KindSynth}

// IsInstrument reports whether k is driven by note events.
func (k Kind) IsInstrument() bool {
	for _, ik := range instrumentKinds {
		if k == ik {
			return true
		}
	}

	return false
}

// Normalize maps legacy aliases to canonical kinds.
func (k Kind) Normalize() Kind {
	switch k {
	case "DRUM_RACK":
		return KindDrumRack
	case "COMPRESSORPRO", "PRO_COMPRESSOR":
		return KindCompressorPro
	case "SYNC_DELAY":
		return KindDelay
	default:
		return k
	}
}
