package pointcloud

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

const (
	lasSignature        = "LASF"
	lasMinHeaderSize    = 227
	las14HeaderSize     = 375
	lasVLRHeaderSize    = 54
	lasEVLRHeaderSize   = 60
	lasProjectionUserID = "LASF_Projection"
	lasMaxRecordPayload = 16 << 20

	recordGeoKeyDirectory = 34735
	recordOGCWKT          = 2112

	geoKeyGeographicType  = 2048
	geoKeyProjectedCSType = 3072
	geoKeyUserDefined     = 32767
)

var (
	// ErrNotLAS is returned when the file signature is not "LASF".
	ErrNotLAS = errors.New("not a LAS file")
	// ErrCompressed is returned for LAZ point data, which this reader does not decode.
	ErrCompressed = errors.New("compressed (LAZ) point data is not supported; decompress to LAS first")
)

// minRecordLength is the minimum point record size per LAS point data format.
var minRecordLength = [...]uint16{20, 28, 26, 34, 57, 63, 30, 36, 38, 59, 67}

// LASHeader holds the public header block fields the reader needs.
type LASHeader struct {
	VersionMajor      uint8
	VersionMinor      uint8
	HeaderSize        uint16
	PointDataOffset   uint32
	NumVLRs           uint32
	PointFormat       uint8
	PointRecordLength uint16
	PointCount        uint64

	ScaleX, ScaleY, ScaleZ    float64
	OffsetX, OffsetY, OffsetZ float64
	MinX, MinY, MinZ          float64
	MaxX, MaxY, MaxZ          float64

	FirstEVLR uint64
	NumEVLRs  uint32
}

// ReadLASHeader decodes the public header block of a LAS file. The reader is
// left positioned somewhere inside the header.
func ReadLASHeader(r io.ReadSeeker) (LASHeader, error) {
	var h LASHeader
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return h, err
	}
	buf := make([]byte, lasMinHeaderSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return h, fmt.Errorf("read LAS header: %w", err)
	}
	if string(buf[0:4]) != lasSignature {
		return h, ErrNotLAS
	}

	le := binary.LittleEndian
	h.VersionMajor = buf[24]
	h.VersionMinor = buf[25]
	h.HeaderSize = le.Uint16(buf[94:96])
	h.PointDataOffset = le.Uint32(buf[96:100])
	h.NumVLRs = le.Uint32(buf[100:104])
	rawFormat := buf[104]
	h.PointRecordLength = le.Uint16(buf[105:107])
	h.PointCount = uint64(le.Uint32(buf[107:111]))

	h.ScaleX = float64At(buf, 131)
	h.ScaleY = float64At(buf, 139)
	h.ScaleZ = float64At(buf, 147)
	h.OffsetX = float64At(buf, 155)
	h.OffsetY = float64At(buf, 163)
	h.OffsetZ = float64At(buf, 171)
	h.MaxX = float64At(buf, 179)
	h.MinX = float64At(buf, 187)
	h.MaxY = float64At(buf, 195)
	h.MinY = float64At(buf, 203)
	h.MaxZ = float64At(buf, 211)
	h.MinZ = float64At(buf, 219)

	// Bits 6 and 7 of the format byte flag LAZ compression.
	if rawFormat&0xC0 != 0 {
		return h, ErrCompressed
	}
	h.PointFormat = rawFormat & 0x3F
	if int(h.PointFormat) >= len(minRecordLength) {
		return h, fmt.Errorf("unsupported LAS point data format %d", h.PointFormat)
	}
	if h.PointRecordLength < minRecordLength[h.PointFormat] {
		return h, fmt.Errorf("LAS point record length %d too short for format %d", h.PointRecordLength, h.PointFormat)
	}
	if h.HeaderSize < lasMinHeaderSize {
		return h, fmt.Errorf("LAS header size %d smaller than %d", h.HeaderSize, lasMinHeaderSize)
	}

	if h.VersionMajor == 1 && h.VersionMinor >= 4 && h.HeaderSize >= las14HeaderSize {
		ext := make([]byte, las14HeaderSize-lasMinHeaderSize)
		if _, err := io.ReadFull(r, ext); err != nil {
			return h, fmt.Errorf("read LAS 1.4 header: %w", err)
		}
		// ext starts at file offset 227; the waveform offset occupies 227..235.
		h.FirstEVLR = le.Uint64(ext[235-lasMinHeaderSize:])
		h.NumEVLRs = le.Uint32(ext[243-lasMinHeaderSize:])
		if n := le.Uint64(ext[247-lasMinHeaderSize:]); n != 0 {
			h.PointCount = n
		}
	}
	return h, nil
}

// ReadLAS decodes an uncompressed LAS file into a Cloud.
func ReadLAS(r io.ReadSeeker) (*Cloud, error) {
	h, err := ReadLASHeader(r)
	if err != nil {
		return nil, err
	}

	cloud := &Cloud{}
	if err := readVLRs(r, h, &cloud.CRS); err != nil {
		return nil, err
	}

	if _, err := r.Seek(int64(h.PointDataOffset), io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek to point data: %w", err)
	}
	capHint := h.PointCount
	if capHint > 1<<22 {
		capHint = 1 << 22
	}
	cloud.Points = make([]Point, 0, capHint)

	br := bufio.NewReaderSize(r, 1<<16)
	rec := make([]byte, h.PointRecordLength)
	classOffset := 15
	extended := h.PointFormat >= 6
	if extended {
		classOffset = 16
	}
	le := binary.LittleEndian
	for i := uint64(0); i < h.PointCount; i++ {
		if _, err := io.ReadFull(br, rec); err != nil {
			return nil, fmt.Errorf("read point %d of %d: %w", i, h.PointCount, err)
		}
		p := Point{
			X: float64(int32(le.Uint32(rec[0:4])))*h.ScaleX + h.OffsetX,
			Y: float64(int32(le.Uint32(rec[4:8])))*h.ScaleY + h.OffsetY,
			Z: float64(int32(le.Uint32(rec[8:12])))*h.ScaleZ + h.OffsetZ,
		}
		if extended {
			p.Classification = rec[classOffset]
		} else {
			// Formats 0-5 pack synthetic/key-point/withheld flags in the top three bits.
			p.Classification = rec[classOffset] & 0x1F
		}
		cloud.Points = append(cloud.Points, p)
	}
	return cloud, nil
}

func readVLRs(r io.ReadSeeker, h LASHeader, crs *CRS) error {
	if _, err := r.Seek(int64(h.HeaderSize), io.SeekStart); err != nil {
		return fmt.Errorf("seek to VLRs: %w", err)
	}
	hdr := make([]byte, lasVLRHeaderSize)
	for i := uint32(0); i < h.NumVLRs; i++ {
		if _, err := io.ReadFull(r, hdr); err != nil {
			return fmt.Errorf("read VLR %d header: %w", i, err)
		}
		userID := cString(hdr[2:18])
		recordID := binary.LittleEndian.Uint16(hdr[18:20])
		length := int64(binary.LittleEndian.Uint16(hdr[20:22]))
		if err := readProjectionRecord(r, userID, recordID, length, crs); err != nil {
			return fmt.Errorf("VLR %d: %w", i, err)
		}
	}

	if h.NumEVLRs == 0 || h.FirstEVLR == 0 {
		return nil
	}
	if _, err := r.Seek(int64(h.FirstEVLR), io.SeekStart); err != nil {
		return fmt.Errorf("seek to EVLRs: %w", err)
	}
	ehdr := make([]byte, lasEVLRHeaderSize)
	for i := uint32(0); i < h.NumEVLRs; i++ {
		if _, err := io.ReadFull(r, ehdr); err != nil {
			return fmt.Errorf("read EVLR %d header: %w", i, err)
		}
		userID := cString(ehdr[2:18])
		recordID := binary.LittleEndian.Uint16(ehdr[18:20])
		length := binary.LittleEndian.Uint64(ehdr[20:28])
		if length > lasMaxRecordPayload && userID != lasProjectionUserID {
			// Waveform and other bulky EVLRs are irrelevant here and may be last.
			break
		}
		if err := readProjectionRecord(r, userID, recordID, int64(length), crs); err != nil {
			return fmt.Errorf("EVLR %d: %w", i, err)
		}
	}
	return nil
}

// readProjectionRecord consumes one record payload of the given length,
// extracting CRS information when it is a projection record.
func readProjectionRecord(r io.ReadSeeker, userID string, recordID uint16, length int64, crs *CRS) error {
	if userID != lasProjectionUserID || (recordID != recordOGCWKT && recordID != recordGeoKeyDirectory) {
		_, err := r.Seek(length, io.SeekCurrent)
		return err
	}
	if length > lasMaxRecordPayload {
		return fmt.Errorf("projection record of %d bytes is too large", length)
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return err
	}
	switch recordID {
	case recordOGCWKT:
		crs.WKT = cString(payload)
	case recordGeoKeyDirectory:
		if code := epsgFromGeoKeys(payload); code != 0 {
			crs.EPSG = code
		}
	}
	return nil
}

// epsgFromGeoKeys reads a GeoKeyDirectoryTag payload and returns the
// projected (preferred) or geographic EPSG code, or 0.
func epsgFromGeoKeys(payload []byte) int {
	if len(payload) < 8 {
		return 0
	}
	le := binary.LittleEndian
	numKeys := int(le.Uint16(payload[6:8]))
	var projected, geographic int
	for k := 0; k < numKeys; k++ {
		off := 8 + k*8
		if off+8 > len(payload) {
			break
		}
		keyID := le.Uint16(payload[off:])
		location := le.Uint16(payload[off+2:])
		value := le.Uint16(payload[off+6:])
		if location != 0 || value == geoKeyUserDefined {
			continue
		}
		switch keyID {
		case geoKeyProjectedCSType:
			projected = int(value)
		case geoKeyGeographicType:
			geographic = int(value)
		}
	}
	if projected != 0 {
		return projected
	}
	return geographic
}

func float64At(b []byte, off int) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(b[off : off+8]))
}

func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}
