package deploy

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/apkfleet/apkfleet-cli/internal/errors"
)

// Conn is the slice of the device bridge the engine drives. *bridge.Bridge
// satisfies it; tests use an in-memory fake.
type Conn interface {
	InstallMultiple(ctx context.Context, serial string, flags []string, paths []string) error
	CreateSession(ctx context.Context, serial string, flags []string) (int, error)
	WriteSession(ctx context.Context, serial string, sessionID int, name string, size int64, payload io.Reader) error
	CommitSession(ctx context.Context, serial string, sessionID int) error
	AbandonSession(ctx context.Context, serial string, sessionID int) error
}

// DefaultChunkSize is the session streaming chunk size.
const DefaultChunkSize = 128 << 10

// sessionDriver owns exactly one install session for its lifetime and either
// commits or abandons it.
type sessionDriver struct {
	conn      Conn
	bus       *EventBus
	chunkSize int
}

func newSessionDriver(conn Conn, bus *EventBus, chunkSize int) *sessionDriver {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &sessionDriver{conn: conn, bus: bus, chunkSize: chunkSize}
}

// install runs the create -> write -> commit protocol for one unit. Any
// failure after create triggers a best-effort abandon.
func (d *sessionDriver) install(ctx context.Context, serial string, unit InstallationUnit, ordered []ApkFile, options DeviceInstallOptions) error {
	sessionID, err := d.conn.CreateSession(ctx, serial, options.InstallFlags())
	if err != nil {
		return err
	}

	if err := d.writeAll(ctx, serial, sessionID, unit, ordered, options); err != nil {
		d.abandon(serial, sessionID)
		return err
	}

	if err := d.conn.CommitSession(ctx, serial, sessionID); err != nil {
		d.abandon(serial, sessionID)
		return err
	}

	return nil
}

func (d *sessionDriver) writeAll(ctx context.Context, serial string, sessionID int, unit InstallationUnit, ordered []ApkFile, options DeviceInstallOptions) error {
	for i, apkFile := range ordered {
		if err := ctx.Err(); err != nil {
			return errors.NewCancelled()
		}

		f, err := os.Open(apkFile.Path)
		if err != nil {
			return errors.NewFileError("FILE_OPEN",
				fmt.Sprintf("cannot open %s", apkFile.Path)).
				WithContext("path", apkFile.Path)
		}

		reader := &chunkReader{
			ctx:       ctx,
			src:       f,
			chunkSize: d.chunkSize,
			rate:      options.MaxTransferRate,
			onChunk: func(written int64) {
				if d.bus != nil {
					d.bus.Publish(Event{
						Type:        EventSessionProgress,
						Serial:      serial,
						PackageName: unit.PackageName(),
						File:        apkFile.Path,
						Bytes:       written,
						TotalBytes:  apkFile.Size,
					})
				}
			},
		}

		name := fmt.Sprintf("%d_%s", i, sessionFileName(apkFile))
		err = d.conn.WriteSession(ctx, serial, sessionID, name, apkFile.Size, reader)
		f.Close()
		if err != nil {
			if ctx.Err() != nil {
				return errors.NewCancelled()
			}
			return err
		}
	}

	return nil
}

// abandon is the cleanup path. Failures here are logged via the bus only;
// the session will eventually be reaped device-side.
func (d *sessionDriver) abandon(serial string, sessionID int) {
	// The run context may already be cancelled; cleanup gets its own deadline.
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := d.conn.AbandonSession(ctx, serial, sessionID); err != nil && d.bus != nil {
		d.bus.Publish(Event{
			Type:    EventWarning,
			Serial:  serial,
			Message: fmt.Sprintf("abandon of session %d failed: %v", sessionID, err),
		})
	}
}

func sessionFileName(f ApkFile) string {
	if f.IsBase {
		return "base.apk"
	}
	key := f.DiscriminatorKey()
	return key + ".apk"
}

// chunkReader caps each Read at the chunk size, reports cumulative progress,
// applies the transfer-rate throttle between chunks, and honors cancellation.
type chunkReader struct {
	ctx       context.Context
	src       io.Reader
	chunkSize int
	rate      int64 // bytes per second, 0 = unlimited
	written   int64
	onChunk   func(written int64)
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}

	if len(p) > r.chunkSize {
		p = p[:r.chunkSize]
	}

	n, err := r.src.Read(p)
	if n > 0 {
		r.written += int64(n)
		if r.onChunk != nil {
			r.onChunk(r.written)
		}
		r.throttle(n)
	}
	return n, err
}

func (r *chunkReader) throttle(n int) {
	if r.rate <= 0 {
		return
	}

	delay := time.Duration(float64(n) / float64(r.rate) * float64(time.Second))
	if delay <= 0 {
		return
	}

	select {
	case <-r.ctx.Done():
	case <-time.After(delay):
	}
}
