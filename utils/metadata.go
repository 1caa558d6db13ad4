package utils

import (
	"bytes"
	"errors"
	"fmt"

	exif "github.com/dsoprea/go-exif/v3"
	exifcommon "github.com/dsoprea/go-exif/v3/common"
	jpegstructure "github.com/dsoprea/go-jpeg-image-structure/v2"
	pngstructure "github.com/dsoprea/go-png-image-structure/v2"
)

// An APP1 segment carries at most 65533 payload bytes; leave room for the
// Exif prefix and the IFD itself.
const maxCopyrightLen = 0xFFFF - 2 - 64

// copyrightIfd builds an IFD0 holding only the Copyright tag.
func copyrightIfd(text string) (*exif.IfdBuilder, error) {
	if len(text) > maxCopyrightLen {
		return nil, errors.New("copyright text too long for an Exif segment")
	}
	im, err := exifcommon.NewIfdMappingWithStandard()
	if err != nil {
		return nil, err
	}
	ib := exif.NewIfdBuilder(im, exif.NewTagIndex(), exifcommon.IfdStandardIfdIdentity, exifcommon.EncodeDefaultByteOrder)
	if err := ib.SetStandardWithName("Copyright", text); err != nil {
		return nil, fmt.Errorf("failed to set copyright tag: %w", err)
	}
	return ib, nil
}

// embedJPEGCopyright stores text as the Exif Copyright of a JPEG stream.
func embedJPEGCopyright(data []byte, text string) ([]byte, error) {
	ib, err := copyrightIfd(text)
	if err != nil {
		return nil, err
	}
	mc, err := jpegstructure.NewJpegMediaParser().ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse JPEG: %w", err)
	}
	sl, ok := mc.(*jpegstructure.SegmentList)
	if !ok {
		return nil, errors.New("not a JPEG stream")
	}
	if err := sl.SetExif(ib); err != nil {
		return nil, fmt.Errorf("failed to set Exif: %w", err)
	}
	var buf bytes.Buffer
	if err := sl.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write JPEG: %w", err)
	}
	return buf.Bytes(), nil
}

// copyrightTextChunk is an uncompressed UTF-8 iTXt chunk with keyword Copyright.
func copyrightTextChunk(text string) *pngstructure.Chunk {
	// keyword, NUL, compression flag, compression method, empty language, empty translated keyword
	data := append([]byte("Copyright\x00\x00\x00\x00\x00"), text...)
	c := &pngstructure.Chunk{
		Type:   "iTXt",
		Length: uint32(len(data)),
		Data:   data,
	}
	c.UpdateCrc32()
	return c
}

// embedPNGCopyright stores text both as an eXIf Copyright and as an iTXt
// chunk placed right after IHDR.
func embedPNGCopyright(data []byte, text string) ([]byte, error) {
	ib, err := copyrightIfd(text)
	if err != nil {
		return nil, err
	}
	mc, err := pngstructure.NewPngMediaParser().ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse PNG: %w", err)
	}
	cs, ok := mc.(*pngstructure.ChunkSlice)
	if !ok {
		return nil, errors.New("not a PNG stream")
	}
	if err := cs.SetExif(ib); err != nil {
		return nil, fmt.Errorf("failed to set eXIf: %w", err)
	}

	chunks := cs.Chunks()
	if len(chunks) == 0 || chunks[0].Type != "IHDR" {
		return nil, errors.New("PNG stream does not start with IHDR")
	}
	out := make([]*pngstructure.Chunk, 0, len(chunks)+1)
	out = append(out, chunks[0], copyrightTextChunk(text))
	out = append(out, chunks[1:]...)

	var buf bytes.Buffer
	if err := pngstructure.NewChunkSlice(out).WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write PNG: %w", err)
	}
	return buf.Bytes(), nil
}
