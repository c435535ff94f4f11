package button

import (
	"fmt"

	"github.com/stianeikeland/go-rpio/v4"
)

// RPiInput reads an active-low button wired between a BCM pin and ground.
type RPiInput struct {
	pin rpio.Pin
}

// OpenRPi maps GPIO memory and configures pin as a pulled-up input.
// Requires running on a Raspberry Pi with access to /dev/gpiomem or as root.
func OpenRPi(pin int) (*RPiInput, error) {
	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("failed to open GPIO: %w", err)
	}
	p := rpio.Pin(pin)
	p.Input()
	p.PullUp()
	return &RPiInput{pin: p}, nil
}

func (r *RPiInput) Pressed() bool {
	return r.pin.Read() == rpio.Low
}

func (r *RPiInput) Close() error {
	r.pin.PullOff()
	return rpio.Close()
}
