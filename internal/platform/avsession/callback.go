//go:build ios && cgo

package avsession

// #include <stdlib.h>
import "C"

// goAudioSessionNotification is called by the observers on the notification
// center's posting thread.
//
//export goAudioSessionNotification
func goAudioSessionNotification(kind C.int, reason *C.char, interruptionType C.int, shouldResume C.int) {
	n := notificationFrom(int(kind), C.GoString(reason), int(interruptionType), shouldResume != 0)
	Shared().hub.dispatch(n)
}
