package mpegts

import (
	"fmt"
	"image"
	"runtime"
	"unsafe"

	"github.com/bluenviron/avplay/internal/av"
)

// #cgo pkg-config: libavcodec libavutil libswscale
// #include <libavcodec/avcodec.h>
// #include <libavutil/imgutils.h>
// #include <libswscale/swscale.h>
import "C"

func frameData(frame *C.AVFrame) **C.uint8_t {
	return (**C.uint8_t)(unsafe.Pointer(&frame.data[0]))
}

func frameLineSize(frame *C.AVFrame) *C.int {
	return (*C.int)(unsafe.Pointer(&frame.linesize[0]))
}

// h264Decoder is a wrapper around FFmpeg's H264 decoder.
// It outputs RGBA frames.
type h264Decoder struct {
	codecCtx     *C.AVCodecContext
	yuvFrame     *C.AVFrame
	rgbaFrame    *C.AVFrame
	rgbaFramePtr []uint8
	swsCtx       *C.struct_SwsContext
	srcFormat    C.int
}

func (d *h264Decoder) initialize() error {
	codec := C.avcodec_find_decoder(C.AV_CODEC_ID_H264)
	if codec == nil {
		return fmt.Errorf("avcodec_find_decoder() failed")
	}

	d.codecCtx = C.avcodec_alloc_context3(codec)
	if d.codecCtx == nil {
		return fmt.Errorf("avcodec_alloc_context3() failed")
	}

	res := C.avcodec_open2(d.codecCtx, codec, nil)
	if res < 0 {
		C.avcodec_free_context(&d.codecCtx)
		return fmt.Errorf("avcodec_open2() failed")
	}

	d.yuvFrame = C.av_frame_alloc()
	if d.yuvFrame == nil {
		C.avcodec_free_context(&d.codecCtx)
		return fmt.Errorf("av_frame_alloc() failed")
	}

	return nil
}

// Close implements av.VideoDecoder.
func (d *h264Decoder) Close() {
	if d.swsCtx != nil {
		C.sws_freeContext(d.swsCtx)
	}

	if d.rgbaFrame != nil {
		C.av_frame_free(&d.rgbaFrame)
	}

	C.av_frame_free(&d.yuvFrame)
	C.avcodec_free_context(&d.codecCtx)
}

// Flush implements av.VideoDecoder.
func (d *h264Decoder) Flush() {
	C.avcodec_flush_buffers(d.codecCtx)
}

func (d *h264Decoder) reinitDynamicStuff() error {
	if d.swsCtx != nil {
		C.sws_freeContext(d.swsCtx)
		d.swsCtx = nil
	}

	if d.rgbaFrame != nil {
		C.av_frame_free(&d.rgbaFrame)
	}

	d.rgbaFrame = C.av_frame_alloc()
	if d.rgbaFrame == nil {
		return fmt.Errorf("av_frame_alloc() failed")
	}

	d.rgbaFrame.format = C.AV_PIX_FMT_RGBA
	d.rgbaFrame.width = d.yuvFrame.width
	d.rgbaFrame.height = d.yuvFrame.height
	d.rgbaFrame.color_range = C.AVCOL_RANGE_JPEG

	res := C.av_frame_get_buffer(d.rgbaFrame, 1)
	if res < 0 {
		return fmt.Errorf("av_frame_get_buffer() failed")
	}

	d.swsCtx = C.sws_getContext(d.yuvFrame.width, d.yuvFrame.height, int32(d.yuvFrame.format),
		d.rgbaFrame.width, d.rgbaFrame.height, (int32)(d.rgbaFrame.format), C.SWS_BILINEAR, nil, nil, nil)
	if d.swsCtx == nil {
		return fmt.Errorf("sws_getContext() failed")
	}
	d.srcFormat = d.yuvFrame.format

	rgbaFrameSize := C.av_image_get_buffer_size((int32)(d.rgbaFrame.format), d.rgbaFrame.width, d.rgbaFrame.height, 1)
	d.rgbaFramePtr = (*[1 << 30]uint8)(unsafe.Pointer(d.rgbaFrame.data[0]))[:rgbaFrameSize:rgbaFrameSize]
	return nil
}

func (d *h264Decoder) send(pkt *av.Packet) error {
	// a nil packet enters draining mode
	if pkt.IsDrain() {
		C.avcodec_send_packet(d.codecCtx, nil)
		return nil
	}

	if len(pkt.Data) == 0 {
		return nil
	}

	avPkt := C.av_packet_alloc()
	defer C.av_packet_free(&avPkt)

	ptr := &pkt.Data[0]
	var p runtime.Pinner
	p.Pin(ptr)
	defer p.Unpin()

	avPkt.data = (*C.uint8_t)(ptr)
	avPkt.size = (C.int)(len(pkt.Data))
	avPkt.pts = C.int64_t(pkt.PTS)
	avPkt.dts = C.int64_t(pkt.DTS)

	res := C.avcodec_send_packet(d.codecCtx, avPkt)
	if res < 0 {
		return fmt.Errorf("avcodec_send_packet() failed (%d)", int(res))
	}
	return nil
}

// Decode implements av.VideoDecoder.
func (d *h264Decoder) Decode(pkt *av.Packet) ([]*av.VideoFrame, error) {
	err := d.send(pkt)
	if err != nil {
		return nil, err
	}

	var frames []*av.VideoFrame

	for {
		res := C.avcodec_receive_frame(d.codecCtx, d.yuvFrame)
		if res < 0 {
			// EAGAIN or EOF
			break
		}

		// if frame size has changed, allocate needed objects
		if d.rgbaFrame == nil || d.rgbaFrame.width != d.yuvFrame.width ||
			d.rgbaFrame.height != d.yuvFrame.height || d.srcFormat != d.yuvFrame.format {
			err = d.reinitDynamicStuff()
			if err != nil {
				C.av_frame_unref(d.yuvFrame)
				return frames, err
			}
		}

		// convert color space from YUV to RGBA
		res = C.sws_scale(d.swsCtx, frameData(d.yuvFrame), frameLineSize(d.yuvFrame),
			0, d.yuvFrame.height, frameData(d.rgbaFrame), frameLineSize(d.rgbaFrame))
		if res < 0 {
			C.av_frame_unref(d.yuvFrame)
			return frames, fmt.Errorf("sws_scale() failed")
		}

		// the RGBA buffer is reused, therefore the picture is copied
		img := &image.RGBA{
			Pix:    append([]uint8(nil), d.rgbaFramePtr...),
			Stride: 4 * (int)(d.rgbaFrame.width),
			Rect: image.Rectangle{
				Max: image.Point{(int)(d.rgbaFrame.width), (int)(d.rgbaFrame.height)},
			},
		}

		frames = append(frames, &av.VideoFrame{
			PTS:        int64(d.yuvFrame.pts),
			PktDTS:     int64(d.yuvFrame.pkt_dts),
			RepeatPict: int(d.yuvFrame.repeat_pict),
			Image:      img,
		})

		C.av_frame_unref(d.yuvFrame)
	}

	return frames, nil
}
