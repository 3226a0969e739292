package libav

import (
	"errors"
	"fmt"
	"image"

	"github.com/asticode/go-astiav"

	"github.com/bluenviron/avplay/internal/av"
)

// rgbaScaler converts decoded pictures into RGBA.
type rgbaScaler struct {
	ssc    *astiav.SoftwareScaleContext
	dst    *astiav.Frame
	srcW   int
	srcH   int
	srcFmt astiav.PixelFormat
}

func (s *rgbaScaler) close() {
	if s.dst != nil {
		s.dst.Free()
		s.dst = nil
	}
	if s.ssc != nil {
		s.ssc.Free()
		s.ssc = nil
	}
}

func (s *rgbaScaler) ensure(src *astiav.Frame) error {
	if s.ssc != nil && src.Width() == s.srcW && src.Height() == s.srcH && src.PixelFormat() == s.srcFmt {
		return nil
	}

	s.close()

	ssc, err := astiav.CreateSoftwareScaleContext(
		src.Width(), src.Height(), src.PixelFormat(),
		src.Width(), src.Height(), astiav.PixelFormatRgba,
		astiav.NewSoftwareScaleContextFlags(astiav.SoftwareScaleContextFlagBilinear),
	)
	if err != nil {
		return fmt.Errorf("CreateSoftwareScaleContext() failed: %w", err)
	}

	dst := astiav.AllocFrame()
	dst.SetWidth(src.Width())
	dst.SetHeight(src.Height())
	dst.SetPixelFormat(astiav.PixelFormatRgba)

	err = dst.AllocBuffer(1)
	if err != nil {
		dst.Free()
		ssc.Free()
		return fmt.Errorf("AllocBuffer() failed: %w", err)
	}

	s.ssc = ssc
	s.dst = dst
	s.srcW = src.Width()
	s.srcH = src.Height()
	s.srcFmt = src.PixelFormat()
	return nil
}

func (s *rgbaScaler) convert(src *astiav.Frame) (*image.RGBA, error) {
	err := s.ensure(src)
	if err != nil {
		return nil, err
	}

	err = s.ssc.ScaleFrame(src, s.dst)
	if err != nil {
		return nil, fmt.Errorf("ScaleFrame() failed: %w", err)
	}

	n, err := s.dst.ImageBufferSize(1)
	if err != nil {
		return nil, err
	}

	img := &image.RGBA{
		Pix:    make([]uint8, n),
		Stride: 4 * s.srcW,
		Rect:   image.Rect(0, 0, s.srcW, s.srcH),
	}

	_, err = s.dst.ImageCopyToBuffer(img.Pix, 1)
	if err != nil {
		return nil, err
	}

	return img, nil
}

type videoDecoder struct {
	par *astiav.CodecParameters

	cc     *astiav.CodecContext
	pkt    *astiav.Packet
	frame  *astiav.Frame
	scaler rgbaScaler
}

func (d *videoDecoder) initialize() error {
	var err error
	_, d.cc, err = openCodec(d.par)
	if err != nil {
		return err
	}

	d.pkt = astiav.AllocPacket()
	d.frame = astiav.AllocFrame()
	return nil
}

// Close implements av.VideoDecoder.
func (d *videoDecoder) Close() {
	d.scaler.close()
	d.frame.Free()
	d.pkt.Free()
	d.cc.Free()
}

// Flush implements av.VideoDecoder.
// The codec context is recreated, discarding buffered pictures.
func (d *videoDecoder) Flush() {
	_, cc, err := openCodec(d.par)
	if err != nil {
		return
	}
	d.cc.Free()
	d.cc = cc
}

// Decode implements av.VideoDecoder.
func (d *videoDecoder) Decode(pkt *av.Packet) ([]*av.VideoFrame, error) {
	err := sendPacket(d.cc, d.pkt, pkt)
	if err != nil {
		return nil, err
	}

	var frames []*av.VideoFrame

	for {
		err = d.cc.ReceiveFrame(d.frame)
		if err != nil {
			if errors.Is(err, astiav.ErrEagain) || errors.Is(err, astiav.ErrEof) {
				return frames, nil
			}
			return frames, err
		}

		img, err := d.scaler.convert(d.frame)
		if err != nil {
			d.frame.Unref()
			return frames, err
		}

		frames = append(frames, &av.VideoFrame{
			PTS:    toTimestamp(d.frame.Pts()),
			PktDTS: toTimestamp(d.frame.PktDts()),
			Image:  img,
		})

		d.frame.Unref()
	}
}

func sendPacket(cc *astiav.CodecContext, tmp *astiav.Packet, pkt *av.Packet) error {
	// a nil packet enters draining mode
	if pkt.IsDrain() {
		err := cc.SendPacket(nil)
		if err != nil && !errors.Is(err, astiav.ErrEof) {
			return err
		}
		return nil
	}

	err := tmp.FromData(pkt.Data)
	if err != nil {
		return err
	}
	defer tmp.Unref()

	tmp.SetPts(pkt.PTS)
	tmp.SetDts(pkt.DTS)

	err = cc.SendPacket(tmp)
	if err != nil && !errors.Is(err, astiav.ErrEagain) {
		return err
	}
	return nil
}
