package mpegts

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/bluenviron/gortsplib/v4/pkg/multicast"
	srt "github.com/datarhei/gosrt"
)

const (
	// same size as GStreamer's rtspsrc
	udpKernelReadBufferSize = 0x80000

	fileBufferSize = 64 * 1024
)

// transport provides a byte stream containing MPEG-TS.
type transport interface {
	// open opens the stream from the beginning.
	open(ctx context.Context) (io.Reader, error)
	seekable() bool
	// interrupt unblocks pending reads.
	interrupt()
	close()
}

// countingReader tracks the byte offset of the stream.
type countingReader struct {
	r   io.Reader
	pos int64
}

func (r *countingReader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	r.pos += int64(n)
	return n, err
}

type fileTransport struct {
	path string

	mutex sync.Mutex
	f     *os.File
}

func (t *fileTransport) open(_ context.Context) (io.Reader, error) {
	f, err := os.Open(t.path)
	if err != nil {
		return nil, err
	}

	t.mutex.Lock()
	if t.f != nil {
		t.f.Close()
	}
	t.f = f
	t.mutex.Unlock()

	return bufio.NewReaderSize(f, fileBufferSize), nil
}

func (t *fileTransport) seekable() bool {
	return true
}

func (t *fileTransport) interrupt() {
	t.close()
}

func (t *fileTransport) close() {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if t.f != nil {
		t.f.Close()
		t.f = nil
	}
}

type packetConnReader struct {
	pc          net.PacketConn
	sourceIP    net.IP
	readTimeout time.Duration
}

func (r *packetConnReader) Read(p []byte) (int, error) {
	for {
		r.pc.SetReadDeadline(time.Now().Add(r.readTimeout)) //nolint:errcheck
		n, addr, err := r.pc.ReadFrom(p)

		if r.sourceIP != nil && addr != nil && !addr.(*net.UDPAddr).IP.Equal(r.sourceIP) {
			continue
		}

		return n, err
	}
}

type packetConn interface {
	net.PacketConn
	SetReadBuffer(int) error
}

type udpTransport struct {
	u           *url.URL
	readTimeout time.Duration

	mutex sync.Mutex
	pc    packetConn
}

func (t *udpTransport) open(_ context.Context) (io.Reader, error) {
	q := t.u.Query()

	var sourceIP net.IP

	if src := q.Get("source"); src != "" {
		sourceIP = net.ParseIP(src)
		if sourceIP == nil {
			return nil, fmt.Errorf("invalid source IP")
		}
	}

	addr, err := net.ResolveUDPAddr("udp", t.u.Host)
	if err != nil {
		return nil, err
	}

	var pc packetConn

	if ip4 := addr.IP.To4(); ip4 != nil && addr.IP.IsMulticast() {
		if intfName := q.Get("interface"); intfName != "" {
			var intf *net.Interface
			intf, err = net.InterfaceByName(intfName)
			if err != nil {
				return nil, err
			}

			pc, err = multicast.NewSingleConn(intf, addr.String(), net.ListenPacket)
			if err != nil {
				return nil, err
			}
		} else {
			pc, err = multicast.NewMultiConn(addr.String(), true, net.ListenPacket)
			if err != nil {
				return nil, err
			}
		}
	} else {
		var tmp net.PacketConn
		tmp, err = net.ListenPacket("udp", addr.String())
		if err != nil {
			return nil, err
		}
		pc = tmp.(*net.UDPConn)
	}

	err = pc.SetReadBuffer(udpKernelReadBufferSize)
	if err != nil {
		pc.Close()
		return nil, err
	}

	t.mutex.Lock()
	t.pc = pc
	t.mutex.Unlock()

	return &packetConnReader{pc: pc, sourceIP: sourceIP, readTimeout: t.readTimeout}, nil
}

func (t *udpTransport) seekable() bool {
	return false
}

func (t *udpTransport) interrupt() {
	t.close()
}

func (t *udpTransport) close() {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if t.pc != nil {
		t.pc.Close()
		t.pc = nil
	}
}

type srtConnReader struct {
	conn        srt.Conn
	readTimeout time.Duration
}

func (r *srtConnReader) Read(p []byte) (int, error) {
	r.conn.SetReadDeadline(time.Now().Add(r.readTimeout)) //nolint:errcheck
	return r.conn.Read(p)
}

type srtTransport struct {
	raw         string
	readTimeout time.Duration

	mutex sync.Mutex
	conn  srt.Conn
}

func (t *srtTransport) open(ctx context.Context) (io.Reader, error) {
	conf := srt.DefaultConfig()
	address, err := conf.UnmarshalURL(t.raw)
	if err != nil {
		return nil, err
	}

	err = conf.Validate()
	if err != nil {
		return nil, err
	}

	type dialRes struct {
		conn srt.Conn
		err  error
	}
	done := make(chan dialRes, 1)

	go func() {
		conn, err := srt.Dial("srt", address, conf)
		done <- dialRes{conn, err}
	}()

	var res dialRes
	select {
	case res = <-done:
	case <-ctx.Done():
		go func() {
			if res := <-done; res.conn != nil {
				res.conn.Close()
			}
		}()
		return nil, ctx.Err()
	}

	if res.err != nil {
		return nil, res.err
	}

	t.mutex.Lock()
	t.conn = res.conn
	t.mutex.Unlock()

	return &srtConnReader{conn: res.conn, readTimeout: t.readTimeout}, nil
}

func (t *srtTransport) seekable() bool {
	return false
}

func (t *srtTransport) interrupt() {
	t.close()
}

func (t *srtTransport) close() {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if t.conn != nil {
		t.conn.Close()
		t.conn = nil
	}
}
