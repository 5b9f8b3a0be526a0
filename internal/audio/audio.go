// Package audio owns microphone capture: the level monitor feeding voice
// activity detection and the recording session producing transcribable
// artifacts. Both open their own PortAudio stream on the default input
// device, so a monitor failure leaves manual recording usable.
package audio

import (
	"fmt"

	"github.com/gordonklaus/portaudio"
)

// Initialize sets up the PortAudio runtime. Must be called once before any
// monitor or recorder is started.
func Initialize() error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	return nil
}

// Terminate tears down the PortAudio runtime.
func Terminate() error {
	return portaudio.Terminate()
}
