//go:build !tinygo

// Package record writes drawn frames to a Parquet file, one row per pixel
// column.
package record

import (
	"context"
	"encoding/json"
	"io"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/parquet-go"

	"tinyscope/internal/buildinfo"
	"tinyscope/scope/acquire"
	"tinyscope/scope/frame"
	"tinyscope/scope/settings"
)

// Row is one pixel column of one frame.
type Row struct {
	Session   string `parquet:"session,dict"`
	Seq       int64  `parquet:"seq"`
	UnixMilli int64  `parquet:"unix_ms"`
	Column    int32  `parquet:"column"`
	Ch1Y      int32  `parquet:"ch1_y"`
	Ch2Y      int32  `parquet:"ch2_y"`
	Ch1FreqHz int32  `parquet:"ch1_freq_hz"`
	Ch2FreqHz int32  `parquet:"ch2_freq_hz"`
	XScaleUS  int32  `parquet:"xscale_us"`
	YScaleMV  int32  `parquet:"yscale_mv"`
}

const queueLen = 8

type entry struct {
	snap frame.Snapshot
	s    settings.Scope
	at   time.Time
}

// Recorder is a renderer sink. Publish queues the frame; Run writes it.
type Recorder struct {
	session string
	out     io.Writer
	writer  *parquet.GenericWriter[Row]
	queue   chan entry
	every   uint64

	seen    atomic.Uint64
	written atomic.Uint64
	dropped atomic.Uint64

	now func() time.Time
}

// Options tune a Recorder.
type Options struct {
	// Every keeps one frame in N. Zero or one keeps all.
	Every uint64
	// Config is stored as file metadata.
	Config any
}

// New returns a recorder writing to w under a fresh session id.
func New(w io.Writer, opts Options) *Recorder {
	session := uuid.New().String()
	configStr := "{}"
	if opts.Config != nil {
		if b, err := json.Marshal(opts.Config); err == nil {
			configStr = string(b)
		}
	}
	if opts.Every == 0 {
		opts.Every = 1
	}
	return &Recorder{
		session: session,
		out:     w,
		writer: parquet.NewGenericWriter[Row](w,
			parquet.KeyValueMetadata("session", session),
			parquet.KeyValueMetadata("version", buildinfo.Short()),
			parquet.KeyValueMetadata("config", configStr),
		),
		queue: make(chan entry, queueLen),
		every: opts.Every,
		now:   time.Now,
	}
}

// Session returns the id stamped on every row.
func (r *Recorder) Session() string { return r.session }

func (r *Recorder) Publish(snap frame.Snapshot, s settings.Scope) {
	if (r.seen.Add(1)-1)%r.every != 0 {
		return
	}
	select {
	case r.queue <- entry{snap: snap, s: s, at: r.now()}:
	default:
		r.dropped.Add(1)
	}
}

// Run writes queued frames until ctx is done, then flushes what is left
// and closes the Parquet footer. The underlying writer is not closed.
func (r *Recorder) Run(ctx context.Context) error {
	for {
		select {
		case e := <-r.queue:
			if err := r.write(e); err != nil {
				r.writer.Close()
				return err
			}
		case <-ctx.Done():
			for {
				select {
				case e := <-r.queue:
					if err := r.write(e); err != nil {
						r.writer.Close()
						return err
					}
				default:
					return r.writer.Close()
				}
			}
		}
	}
}

func (r *Recorder) write(e entry) error {
	rows := make([]Row, frame.Width)
	ys1, ys2 := e.snap.Y[acquire.Ch1], e.snap.Y[acquire.Ch2]
	for x := range rows {
		row := Row{
			Session:   r.session,
			Seq:       int64(e.snap.Seq),
			UnixMilli: e.at.UnixMilli(),
			Column:    int32(x),
			Ch1FreqHz: int32(e.snap.Freq[acquire.Ch1]),
			Ch2FreqHz: int32(e.snap.Freq[acquire.Ch2]),
			XScaleUS:  int32(e.s.XScale),
			YScaleMV:  int32(e.s.YScale),
		}
		if x < len(ys1) {
			row.Ch1Y = int32(ys1[x])
		}
		if x < len(ys2) {
			row.Ch2Y = int32(ys2[x])
		}
		rows[x] = row
	}
	if _, err := r.writer.Write(rows); err != nil {
		return err
	}
	r.written.Add(1)
	return nil
}

// Written counts frames written.
func (r *Recorder) Written() uint64 { return r.written.Load() }

// Dropped counts frames lost to a full queue.
func (r *Recorder) Dropped() uint64 { return r.dropped.Load() }
