// Package scanner provides sources of decoded registration codes. A real QR
// decoder lives outside this module; these sources deliver already decoded
// text from the clipboard or a line-oriented reader.
package scanner

import (
	"context"
	"errors"
	"fmt"

	"github.com/goliatone/go-pushrelay/pkg/config"
)

// ErrAlreadyRunning is returned when Start is called twice without Stop.
var ErrAlreadyRunning = errors.New("scanner: already running")

// Constraint selects the capture device.
type Constraint struct {
	FacingMode string
}

// Settings tunes the scan loop.
type Settings struct {
	FPS   int
	QRBox int
}

// Scanner delivers decoded payloads until stopped. A failure to start is
// returned from Start; onError only reports failures once capture is running
// and may call Stop.
type Scanner interface {
	Start(ctx context.Context, constraint Constraint, settings Settings, onDecoded func(string), onError func(error)) error
	Stop()
}

// FromConfig maps scanner config to start parameters.
func FromConfig(cfg config.ScannerConfig) (Constraint, Settings) {
	return Constraint{FacingMode: cfg.FacingMode}, Settings{FPS: cfg.FPS, QRBox: cfg.QRBox}
}

// New builds the scanner named by cfg.Source.
func New(cfg config.ScannerConfig, opts ...Option) (Scanner, error) {
	switch cfg.Source {
	case config.ScannerClipboard, "":
		return NewClipboard(opts...), nil
	case config.ScannerStdin:
		return NewLineReader(opts...), nil
	default:
		return nil, fmt.Errorf("scanner: unsupported source %q", cfg.Source)
	}
}
