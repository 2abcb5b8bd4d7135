// Package synth is a real-time polyphonic synthesizer core.
//
// An Engine owns a fixed Pool of voices. Each Voice pairs an Oscillator
// (sine, square, saw, triangle, wavetable or two-operator FM) with a linear
// ADSR Envelope and optionally its own biquad filter. RenderBlock and Process
// sum every voice per sample, apply the smoothed master gain and the master
// filter, and write into a caller-provided buffer without allocating.
//
// Control threads never touch the voices directly. They write parameter
// values into a shared Params set (one atomic cell per parameter) and push
// note events into the engine's single-producer EventQueue; the audio thread
// picks both up at the next block boundary.
package synth
