//go:build js && wasm

package main

import (
	"syscall/js"
	"unsafe"

	"github.com/cwbudde/algo-synth/midi"
	"github.com/cwbudde/algo-synth/synth"
)

const maxBlockFrames = 128

var (
	engine       *synth.Engine
	router       *midi.Router
	outputBuffer []float32
	midiBuffer   []byte
)

func main() {
	c := make(chan struct{})

	js.Global().Set("wasmInit", js.FuncOf(wasmInit))
	js.Global().Set("wasmNoteOn", js.FuncOf(wasmNoteOn))
	js.Global().Set("wasmNoteOff", js.FuncOf(wasmNoteOff))
	js.Global().Set("wasmSetSustain", js.FuncOf(wasmSetSustain))
	js.Global().Set("wasmSetParam", js.FuncOf(wasmSetParam))
	js.Global().Set("wasmGetParam", js.FuncOf(wasmGetParam))
	js.Global().Set("wasmMIDI", js.FuncOf(wasmMIDI))
	js.Global().Set("wasmProcessBlock", js.FuncOf(wasmProcessBlock))
	js.Global().Set("wasmGetMemoryBuffer", js.FuncOf(wasmGetMemoryBuffer))

	println("WASM synth module loaded")
	<-c
}

// wasmInit(sampleRate, voices?) builds the engine. It returns false when the
// configuration is rejected.
func wasmInit(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return false
	}
	cfg := synth.DefaultConfig()
	cfg.SampleRate = args[0].Float()
	if len(args) > 1 && args[1].Type() == js.TypeNumber {
		cfg.VoiceCount = args[1].Int()
	}
	e, err := synth.New(cfg)
	if err != nil {
		println("synth init failed:", err.Error())
		return false
	}
	engine = e
	router = midi.NewRouter()
	outputBuffer = make([]float32, maxBlockFrames*2)
	println("Synth initialized at", int(cfg.SampleRate), "Hz with", cfg.VoiceCount, "voices")
	return true
}

func wasmNoteOn(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 || engine == nil {
		return nil
	}
	// Velocity arrives as MIDI 0..127.
	engine.Queue().Push(synth.NoteOn(args[0].Int(), float32(args[1].Int())/127))
	return nil
}

func wasmNoteOff(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 || engine == nil {
		return nil
	}
	engine.Queue().Push(synth.NoteOff(args[0].Int()))
	return nil
}

func wasmSetSustain(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 || engine == nil {
		return nil
	}
	engine.Queue().Push(synth.Sustain(args[0].Bool()))
	return nil
}

// wasmSetParam(name, value) stores a plain parameter value. The audio thread
// picks it up at the next block.
func wasmSetParam(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 || engine == nil {
		return false
	}
	id, err := synth.ParseParamID(args[0].String())
	if err != nil {
		println(err.Error())
		return false
	}
	engine.Params().Set(id, args[1].Float())
	return true
}

// wasmGetParam(name) returns [plain, display] or null.
func wasmGetParam(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 || engine == nil {
		return nil
	}
	id, err := synth.ParseParamID(args[0].String())
	if err != nil {
		return nil
	}
	p := engine.Params()
	return []interface{}{p.Get(id), p.Display(id)}
}

// wasmMIDI(bytes) feeds a Uint8Array of raw MIDI data through the router.
func wasmMIDI(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 || engine == nil {
		return 0
	}
	n := args[0].Get("length").Int()
	if cap(midiBuffer) < n {
		midiBuffer = make([]byte, n)
	}
	midiBuffer = midiBuffer[:n]
	js.CopyBytesToGo(midiBuffer, args[0])

	count := 0
	midi.Split(midiBuffer, func(msg []byte) {
		if ev, ok := router.Decode(msg, 0); ok && engine.Queue().Push(ev) {
			count++
		}
	})
	return count
}

// wasmProcessBlock(frames) renders up to 128 interleaved stereo frames and
// returns the buffer's address in linear memory.
func wasmProcessBlock(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 || engine == nil {
		return 0
	}
	numFrames := args[0].Int()
	if numFrames > maxBlockFrames {
		numFrames = maxBlockFrames
	}
	if numFrames < 1 {
		return 0
	}
	engine.RenderInterleaved(outputBuffer[:numFrames*2], 2)

	ptr := &outputBuffer[0]
	return js.ValueOf(uintptr(unsafe.Pointer(ptr)))
}

func wasmGetMemoryBuffer(this js.Value, args []js.Value) interface{} {
	return js.Global().Get("Go").Get("_inst").Get("exports").Get("mem").Get("buffer")
}
