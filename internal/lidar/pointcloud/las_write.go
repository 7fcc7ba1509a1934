package pointcloud

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

const (
	lasWriteScale        = 0.001
	lasFormat0RecordSize = 20
)

// WriteLAS encodes cloud as an uncompressed LAS 1.2 file with point data
// format 0 and millimetre coordinate resolution. The CRS, when present, is
// written as an OGC WKT record and/or a GeoKey directory.
func WriteLAS(w io.Writer, cloud *Cloud) error {
	if cloud.Len() == 0 {
		return ErrEmptyCloud
	}
	if cloud.Len() > math.MaxUint32 {
		return fmt.Errorf("LAS 1.2 cannot hold %d points", cloud.Len())
	}

	minX, minY, minZ := math.Inf(1), math.Inf(1), math.Inf(1)
	maxX, maxY, maxZ := math.Inf(-1), math.Inf(-1), math.Inf(-1)
	for _, p := range cloud.Points {
		minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
		minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
		minZ, maxZ = math.Min(minZ, p.Z), math.Max(maxZ, p.Z)
	}
	offX, offY, offZ := math.Floor(minX), math.Floor(minY), math.Floor(minZ)
	for _, span := range []float64{maxX - offX, maxY - offY, maxZ - offZ} {
		if span/lasWriteScale > math.MaxInt32 {
			return fmt.Errorf("cloud span %.3f exceeds LAS integer range at scale %g", span, lasWriteScale)
		}
	}

	vlrs := projectionVLRs(cloud.CRS)
	vlrBytes := 0
	for _, v := range vlrs {
		vlrBytes += lasVLRHeaderSize + len(v.payload)
	}

	le := binary.LittleEndian
	hdr := make([]byte, lasMinHeaderSize)
	copy(hdr[0:4], lasSignature)
	hdr[24], hdr[25] = 1, 2
	copy(hdr[26:58], "canopy")
	copy(hdr[58:90], "canopy.report")
	le.PutUint16(hdr[94:], lasMinHeaderSize)
	le.PutUint32(hdr[96:], uint32(lasMinHeaderSize+vlrBytes))
	le.PutUint32(hdr[100:], uint32(len(vlrs)))
	hdr[104] = 0
	le.PutUint16(hdr[105:], lasFormat0RecordSize)
	le.PutUint32(hdr[107:], uint32(cloud.Len()))
	le.PutUint32(hdr[111:], uint32(cloud.Len()))
	for i, v := range []float64{
		lasWriteScale, lasWriteScale, lasWriteScale,
		offX, offY, offZ,
		maxX, minX, maxY, minY, maxZ, minZ,
	} {
		le.PutUint64(hdr[131+8*i:], math.Float64bits(v))
	}

	bw := bufio.NewWriterSize(w, 1<<16)
	if _, err := bw.Write(hdr); err != nil {
		return err
	}
	for _, v := range vlrs {
		vh := make([]byte, lasVLRHeaderSize)
		copy(vh[2:18], lasProjectionUserID)
		le.PutUint16(vh[18:], v.recordID)
		le.PutUint16(vh[20:], uint16(len(v.payload)))
		if _, err := bw.Write(vh); err != nil {
			return err
		}
		if _, err := bw.Write(v.payload); err != nil {
			return err
		}
	}

	rec := make([]byte, lasFormat0RecordSize)
	for _, p := range cloud.Points {
		clear(rec)
		le.PutUint32(rec[0:], uint32(int32(math.Round((p.X-offX)/lasWriteScale))))
		le.PutUint32(rec[4:], uint32(int32(math.Round((p.Y-offY)/lasWriteScale))))
		le.PutUint32(rec[8:], uint32(int32(math.Round((p.Z-offZ)/lasWriteScale))))
		rec[14] = 0x09 // return 1 of 1
		rec[15] = p.Classification & 0x1F
		if _, err := bw.Write(rec); err != nil {
			return err
		}
	}
	return bw.Flush()
}

type lasVLR struct {
	recordID uint16
	payload  []byte
}

func projectionVLRs(crs CRS) []lasVLR {
	var out []lasVLR
	if crs.WKT != "" && len(crs.WKT) < math.MaxUint16 {
		out = append(out, lasVLR{recordID: recordOGCWKT, payload: append([]byte(crs.WKT), 0)})
	}
	if crs.EPSG > 0 && crs.EPSG < geoKeyUserDefined {
		keys := []uint16{
			1, 1, 0, 1, // directory version, revision, minor, key count
			geoKeyProjectedCSType, 0, 1, uint16(crs.EPSG),
		}
		payload := make([]byte, 2*len(keys))
		for i, k := range keys {
			binary.LittleEndian.PutUint16(payload[2*i:], k)
		}
		out = append(out, lasVLR{recordID: recordGeoKeyDirectory, payload: payload})
	}
	return out
}
