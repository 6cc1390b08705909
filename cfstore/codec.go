package cfstore

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/zstd"

	"github.com/jonwraymond/cfgrid/coords"
)

const (
	codecMagic   = "CFGK"
	codecVersion = 1

	// maxSamples bounds the kernel size accepted by Decode (2^31 samples).
	maxSamples = 1 << 31
)

var (
	encoder = sync.OnceValues(func() (*zstd.Encoder, error) {
		return zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	})
	decoder = sync.OnceValues(func() (*zstd.Decoder, error) {
		return zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
	})
)

// header is the fixed-size prefix of an encoded store.
type header struct {
	Magic      [4]byte
	Version    uint16
	Role       uint8
	_          uint8
	Shape      [4]int32
	Sampling   int32
	FirstPlane int32
	MosaicX    int32
	MosaicY    int32
	PA         float64
	Frequency  float64
	RefValue   [2]float64
	RefPixel   [2]float64
	Increment  [2]float64
	Payload    uint64
}

// Encode writes s to w: header, w values, support radii, the compressed
// kernel and an xxhash64 checksum of everything before it.
func Encode(w io.Writer, s *Store) error {
	enc, err := encoder()
	if err != nil {
		return fmt.Errorf("cfstore: zstd encoder: %w", err)
	}

	shape := s.kernel.Shape()
	raw := make([]byte, 8*len(s.kernel.data))
	for i, v := range s.kernel.data {
		binary.LittleEndian.PutUint32(raw[8*i:], math.Float32bits(real(v)))
		binary.LittleEndian.PutUint32(raw[8*i+4:], math.Float32bits(imag(v)))
	}
	payload := enc.EncodeAll(raw, nil)

	h := header{
		Version:    codecVersion,
		Role:       uint8(s.role),
		Shape:      [4]int32{int32(shape[0]), int32(shape[1]), int32(shape[2]), int32(shape[3])},
		Sampling:   int32(s.sampling),
		FirstPlane: int32(s.firstPlane),
		MosaicX:    int32(s.mosaic.X),
		MosaicY:    int32(s.mosaic.Y),
		PA:         s.pa,
		Frequency:  s.frequency,
		RefValue:   s.coords.RefValue,
		RefPixel:   s.coords.RefPixel,
		Increment:  s.coords.Increment,
		Payload:    uint64(len(payload)),
	}
	copy(h.Magic[:], codecMagic)

	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, &h); err != nil {
		return err
	}
	if err := binary.Write(&buf, binary.LittleEndian, s.wValues); err != nil {
		return err
	}
	if err := binary.Write(&buf, binary.LittleEndian, toInt32(s.xSupport.data)); err != nil {
		return err
	}
	if err := binary.Write(&buf, binary.LittleEndian, toInt32(s.ySupport.data)); err != nil {
		return err
	}
	buf.Write(payload)

	sum := xxhash.Sum64(buf.Bytes())
	if err := binary.Write(&buf, binary.LittleEndian, sum); err != nil {
		return err
	}
	_, err = w.Write(buf.Bytes())
	return err
}

// Decode reads a store written by Encode. Any structural problem, including
// a checksum mismatch, is reported as ErrCorrupt.
func Decode(r io.Reader) (*Store, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if len(data) < 8 {
		return nil, fmt.Errorf("%w: %d bytes", ErrCorrupt, len(data))
	}
	body, tail := data[:len(data)-8], data[len(data)-8:]
	if got, want := xxhash.Sum64(body), binary.LittleEndian.Uint64(tail); got != want {
		return nil, fmt.Errorf("%w: checksum %016x, want %016x", ErrCorrupt, got, want)
	}

	rd := bytes.NewReader(body)
	var h header
	if err := binary.Read(rd, binary.LittleEndian, &h); err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrCorrupt, err)
	}
	if string(h.Magic[:]) != codecMagic {
		return nil, fmt.Errorf("%w: bad magic %q", ErrCorrupt, h.Magic[:])
	}
	if h.Version != codecVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorrupt, h.Version)
	}

	shape := Shape{int(h.Shape[0]), int(h.Shape[1]), int(h.Shape[2]), int(h.Shape[3])}
	n, ok := shape.boundedLen(maxSamples)
	if !ok {
		return nil, fmt.Errorf("%w: shape %v", ErrCorrupt, shape)
	}
	// w values are 8 bytes per plane, supports 2×4 bytes per (plane, pol).
	planes := uint64(shape.NW())
	if need := 8*planes + 8*planes*uint64(shape.NPol()); uint64(rd.Len()) < need {
		return nil, fmt.Errorf("%w: %d bytes left for %v, need at least %d", ErrCorrupt, rd.Len(), shape, need)
	}

	wValues := make([]float64, shape.NW())
	if err := binary.Read(rd, binary.LittleEndian, wValues); err != nil {
		return nil, fmt.Errorf("%w: w values: %v", ErrCorrupt, err)
	}
	xs, _ := NewSupportMatrix(shape.NW(), shape.NPol())
	ys, _ := NewSupportMatrix(shape.NW(), shape.NPol())
	for _, m := range []*SupportMatrix{xs, ys} {
		tmp := make([]int32, len(m.data))
		if err := binary.Read(rd, binary.LittleEndian, tmp); err != nil {
			return nil, fmt.Errorf("%w: support: %v", ErrCorrupt, err)
		}
		for i, v := range tmp {
			m.data[i] = int(v)
		}
	}

	if uint64(rd.Len()) != h.Payload {
		return nil, fmt.Errorf("%w: payload is %d bytes, header says %d", ErrCorrupt, rd.Len(), h.Payload)
	}
	payload := body[len(body)-rd.Len():]

	dec, err := decoder()
	if err != nil {
		return nil, fmt.Errorf("cfstore: zstd decoder: %w", err)
	}
	raw, err := dec.DecodeAll(payload, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: payload: %v", ErrCorrupt, err)
	}
	if len(raw) != 8*n {
		return nil, fmt.Errorf("%w: payload holds %d bytes, want %d", ErrCorrupt, len(raw), 8*n)
	}
	samples := make([]complex64, n)
	for i := range samples {
		re := math.Float32frombits(binary.LittleEndian.Uint32(raw[8*i:]))
		im := math.Float32frombits(binary.LittleEndian.Uint32(raw[8*i+4:]))
		samples[i] = complex(re, im)
	}
	kernel, err := NewArrayFrom(shape, samples)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	s, err := New(Params{
		Kernel:     kernel,
		Coords:     coords.Direction{RefValue: h.RefValue, RefPixel: h.RefPixel, Increment: h.Increment},
		XSupport:   xs,
		YSupport:   ys,
		Sampling:   int(h.Sampling),
		PA:         h.PA,
		FirstPlane: int(h.FirstPlane),
		WValues:    wValues,
		Frequency:  h.Frequency,
		Mosaic:     Offset{X: int(h.MosaicX), Y: int(h.MosaicY)},
		Role:       Role(h.Role),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return s, nil
}

func toInt32(in []int) []int32 {
	out := make([]int32, len(in))
	for i, v := range in {
		out[i] = int32(v)
	}
	return out
}
