// Command libaudiosession builds the audio session monitor as a C library for
// host engines. Build it with -buildmode=c-archive (iOS) or -buildmode=c-shared.
//
// Strings returned by AudioMonitor_GetCurrentSettings and
// AudioMonitor_PollEvent are allocated with malloc; release them with
// AudioMonitor_FreeString or free.
package main

// #include <stdlib.h>
import "C"

import (
	"unsafe"

	"github.com/MrWong99/audiosession/internal/bridge"
)

//export AudioMonitor_GetCurrentSettings
func AudioMonitor_GetCurrentSettings() *C.char {
	return C.CString(bridge.Default().GetCurrentSettings())
}

//export AudioMonitor_StartMonitoring
func AudioMonitor_StartMonitoring() {
	bridge.Default().StartMonitoring()
}

//export AudioMonitor_StopMonitoring
func AudioMonitor_StopMonitoring() {
	bridge.Default().StopMonitoring()
}

//export AudioMonitor_PrepareAudioSessionForRecording
func AudioMonitor_PrepareAudioSessionForRecording() {
	bridge.Default().PrepareAudioSessionForRecording()
}

//export AudioMonitor_ToggleLargeSpeaker
func AudioMonitor_ToggleLargeSpeaker(enabled C.int) {
	bridge.Default().ToggleLargeSpeaker(int(enabled))
}

//export AudioMonitor_SetAudioMode
func AudioMonitor_SetAudioMode(mode C.int) {
	bridge.Default().SetAudioMode(int(mode))
}

// AudioMonitor_PollEvent returns the oldest pending event as JSON, or NULL
// when none is pending.
//
//export AudioMonitor_PollEvent
func AudioMonitor_PollEvent() *C.char {
	ev, ok := bridge.Default().PollEvent()
	if !ok {
		return nil
	}
	return C.CString(ev)
}

//export AudioMonitor_FreeString
func AudioMonitor_FreeString(s *C.char) {
	if s != nil {
		C.free(unsafe.Pointer(s))
	}
}

func main() {}
