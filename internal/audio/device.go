package audio

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"
)

// ErrDeviceUnavailable indicates the microphone could not be initialized.
// Callers are expected to surface this to the user rather than retry.
var ErrDeviceUnavailable = errors.New("audio device unavailable")

// Device is a microphone abstraction: open a continuous input stream and
// deliver fixed-size sample blocks to a callback. The callback must be
// non-blocking; implementations own the buffer and may reuse it after the
// callback returns.
type Device interface {
	Open(onBlock func(block []float32)) error
	Close() error
}

// DeviceConfig contains capture stream parameters
type DeviceConfig struct {
	SampleRate int
	Channels   int
	BlockSize  int // samples per callback buffer
	MaxRetries int // transient read error retries before giving up
}

// PortAudioDevice captures microphone audio through PortAudio using
// blocking reads on a dedicated goroutine
type PortAudioDevice struct {
	config DeviceConfig
	logger *slog.Logger

	mu      sync.Mutex
	stream  *portaudio.Stream
	buf     []float32
	done    chan struct{}
	readers sync.WaitGroup
	open    bool
}

// NewPortAudioDevice initializes PortAudio and verifies an input device
// exists. Initialization failure maps to ErrDeviceUnavailable so start-up
// can fail fast with no partial state.
func NewPortAudioDevice(config DeviceConfig, logger *slog.Logger) (*PortAudioDevice, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	if _, err := portaudio.DefaultInputDevice(); err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("%w: no default input device: %v", ErrDeviceUnavailable, err)
	}

	return &PortAudioDevice{
		config: config,
		logger: logger,
		buf:    make([]float32, config.BlockSize),
	}, nil
}

// Open starts the capture stream and the reader goroutine
func (d *PortAudioDevice) Open(onBlock func(block []float32)) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.open {
		return nil
	}

	stream, err := portaudio.OpenDefaultStream(
		d.config.Channels, 0,
		float64(d.config.SampleRate), d.config.BlockSize,
		d.buf,
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	d.stream = stream
	d.done = make(chan struct{})
	d.open = true

	d.readers.Add(1)
	go d.readLoop(onBlock)

	d.logger.Info("Audio capture started",
		slog.Int("sample_rate", d.config.SampleRate),
		slog.Int("block_size", d.config.BlockSize),
	)

	return nil
}

// readLoop pulls blocks from the device until Close. A single read error
// is transient: log, back off briefly, continue. Only a run of
// consecutive failures stops capture.
func (d *PortAudioDevice) readLoop(onBlock func(block []float32)) {
	defer d.readers.Done()

	failures := 0
	for {
		select {
		case <-d.done:
			return
		default:
		}

		if err := d.stream.Read(); err != nil {
			failures++
			d.logger.Warn("Audio read error",
				slog.String("error", err.Error()),
				slog.Int("consecutive_failures", failures),
			)

			if failures > d.config.MaxRetries {
				d.logger.Error("Audio capture giving up after repeated read errors",
					slog.Int("failures", failures),
				)
				return
			}

			time.Sleep(100 * time.Millisecond)
			continue
		}

		failures = 0
		onBlock(d.buf)
	}
}

// Close stops the capture stream and releases PortAudio
func (d *PortAudioDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.open {
		return nil
	}

	close(d.done)
	d.readers.Wait()

	var firstErr error
	if err := d.stream.Stop(); err != nil {
		firstErr = err
	}
	if err := d.stream.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := portaudio.Terminate(); err != nil && firstErr == nil {
		firstErr = err
	}

	d.stream = nil
	d.open = false

	d.logger.Info("Audio capture stopped")
	return firstErr
}
