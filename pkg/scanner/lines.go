package scanner

import (
	"bufio"
	"context"
	"strings"
	"sync"

	"github.com/goliatone/go-pushrelay/pkg/interfaces/logger"
)

// LineReader reports each non-empty line of its input as a decoded payload.
// One pump goroutine owns the input for the reader's lifetime; lines read
// while no scan is active are held for the next Start.
type LineReader struct {
	opts     options
	pumpOnce sync.Once

	mu    sync.Mutex
	scan  *lineScan
	carry []string
}

type lineScan struct {
	onDecoded func(string)
	onError   func(error)
	cancel    context.CancelFunc
}

var _ Scanner = (*LineReader)(nil)

func NewLineReader(opts ...Option) *LineReader {
	return &LineReader{opts: buildOptions(opts)}
}

func (l *LineReader) Start(ctx context.Context, constraint Constraint, settings Settings, onDecoded func(string), onError func(error)) error {
	l.mu.Lock()
	if l.scan != nil {
		l.mu.Unlock()
		return ErrAlreadyRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	scan := &lineScan{onDecoded: onDecoded, onError: onError, cancel: cancel}
	l.scan = scan
	pending := l.carry
	l.carry = nil
	l.mu.Unlock()

	l.pumpOnce.Do(func() { go l.pump() })
	go func() {
		<-ctx.Done()
		l.detach(scan)
	}()

	for _, line := range pending {
		l.deliver(line)
	}
	return nil
}

// Stop detaches from the input. It is safe to call from onDecoded.
func (l *LineReader) Stop() {
	l.mu.Lock()
	scan := l.scan
	l.mu.Unlock()
	if scan != nil {
		l.detach(scan)
	}
}

func (l *LineReader) detach(scan *lineScan) {
	l.mu.Lock()
	if l.scan == scan {
		l.scan = nil
	}
	l.mu.Unlock()
	scan.cancel()
}

func (l *LineReader) pump() {
	sc := bufio.NewScanner(l.opts.input)
	for sc.Scan() {
		l.deliver(sc.Text())
	}
	if err := sc.Err(); err != nil {
		l.opts.logger.Warn("line scanner failed", logger.Field{Key: "error", Value: err})
		l.mu.Lock()
		scan := l.scan
		l.mu.Unlock()
		if scan != nil && scan.onError != nil {
			scan.onError(err)
		}
	}
}

func (l *LineReader) deliver(line string) {
	text := strings.TrimSpace(line)
	if text == "" {
		return
	}
	l.mu.Lock()
	scan := l.scan
	if scan == nil {
		l.carry = append(l.carry, text)
	}
	l.mu.Unlock()
	if scan != nil && scan.onDecoded != nil {
		scan.onDecoded(text)
	}
}
