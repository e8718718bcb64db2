package camera

import (
	"context"
	"fmt"
	"time"
)

// DefaultFlashBaud is the serial speed of the flash controller.
const DefaultFlashBaud = 9600

// Flash fires a serial-attached flash by writing a trigger string.
type Flash struct {
	Device  string
	Trigger string
	Delay   time.Duration
	Baud    int
}

// Fire writes the trigger and then waits Delay so the flash is lit when the
// shutter opens.
func (f *Flash) Fire(ctx context.Context) error {
	trigger := f.Trigger
	if trigger == "" {
		trigger = "1"
	}
	baud := f.Baud
	if baud == 0 {
		baud = DefaultFlashBaud
	}

	port, err := openSerial(f.Device, baud)
	if err != nil {
		return fmt.Errorf("open flash device: %w", err)
	}
	_, werr := port.Write([]byte(trigger))
	cerr := port.Close()
	if werr != nil {
		return fmt.Errorf("write flash trigger: %w", werr)
	}
	if cerr != nil {
		return fmt.Errorf("close flash device: %w", cerr)
	}

	if f.Delay <= 0 {
		return nil
	}
	t := time.NewTimer(f.Delay)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
