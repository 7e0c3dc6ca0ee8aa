package bus

import (
	"strings"

	"github.com/godbus/dbus/v5"

	"github.com/llehouerou/inno/internal/matcher"
)

// toMessage converts a received signal into the matcher's view of it.
// Signals without an interface-qualified name are rejected.
func toMessage(sig *dbus.Signal) (matcher.Message, bool) {
	if sig == nil {
		return matcher.Message{}, false
	}
	dot := strings.LastIndexByte(sig.Name, '.')
	if dot <= 0 || dot == len(sig.Name)-1 {
		return matcher.Message{}, false
	}

	arg0, changed := matcher.FromBody(sig.Body)
	return matcher.Message{
		Interface: sig.Name[:dot],
		Member:    sig.Name[dot+1:],
		Path:      string(sig.Path),
		Sender:    sig.Sender,
		Arg0:      arg0,
		Changed:   changed,
	}, true
}
