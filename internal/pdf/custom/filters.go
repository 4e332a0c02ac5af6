package custom

import (
	"bytes"
	"compress/zlib"
	"encoding/ascii85"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/hhrutter/lzw"

	pdferrors "github.com/a3tai/mcp-pdf-editor/internal/pdf/errors"
)

// FilterDecoder interface for PDF stream filters
type FilterDecoder interface {
	Decode(data []byte, params *Dictionary) ([]byte, error)
	Name() string
}

// FilterRegistry holds all available filter decoders
var FilterRegistry = map[string]FilterDecoder{
	"FlateDecode":     &FlateDecoder{},
	"ASCIIHexDecode":  &ASCIIHexDecoder{},
	"ASCII85Decode":   &ASCII85Decoder{},
	"LZWDecode":       &LZWDecoder{},
	"RunLengthDecode": &RunLengthDecoder{},
	"DCTDecode":       &passthroughDecoder{name: "DCTDecode"},
	"JPXDecode":       &passthroughDecoder{name: "JPXDecode"},
	"CCITTFaxDecode":  &passthroughDecoder{name: "CCITTFaxDecode"},
	"JBIG2Decode":     &passthroughDecoder{name: "JBIG2Decode"},
}

// Abbreviated names allowed in inline images and by some writers
var filterAliases = map[string]string{
	"Fl":  "FlateDecode",
	"AHx": "ASCIIHexDecode",
	"A85": "ASCII85Decode",
	"LZW": "LZWDecode",
	"RL":  "RunLengthDecode",
	"DCT": "DCTDecode",
	"CCF": "CCITTFaxDecode",
}

// GetFilterDecoder returns a filter decoder by name
func GetFilterDecoder(name string) FilterDecoder {
	if full, ok := filterAliases[name]; ok {
		name = full
	}
	return FilterRegistry[name]
}

// DecodeStream applies the stream's filters in order and returns the decoded bytes.
// Image codecs are left encoded.
func DecodeStream(stream *Stream) ([]byte, error) {
	data := stream.Data
	filters := stream.GetFilter()

	if len(filters) == 0 {
		return data, nil
	}

	for i, filterName := range filters {
		decoder := GetFilterDecoder(filterName)
		if decoder == nil {
			return nil, pdferrors.NewPDFErrorf(pdferrors.ErrorTypeInvalidFilter, "unsupported filter: %s", filterName)
		}

		var params *Dictionary
		if decodeParams := stream.Dict.Get("DecodeParms"); decodeParams.Type() != TypeNull {
			if decodeParams.Type() == TypeArray {
				if paramsArray := decodeParams.(*Array); i < paramsArray.Len() {
					if paramDict := paramsArray.Get(i); paramDict.Type() == TypeDictionary {
						params = paramDict.(*Dictionary)
					}
				}
			} else if decodeParams.Type() == TypeDictionary && i == 0 {
				params = decodeParams.(*Dictionary)
			}
		}

		var err error
		data, err = decoder.Decode(data, params)
		if err != nil {
			return nil, pdferrors.WrapError(pdferrors.ErrorTypeInvalidStream, err).
				WithContext(fmt.Sprintf("decoding %s", filterName))
		}
	}

	return data, nil
}

// FlateEncode compresses data with zlib for a /FlateDecode stream
func FlateEncode(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, zlib.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// NewFlateStream returns a stream holding data compressed with FlateDecode
func NewFlateStream(dict *Dictionary, data []byte) (*Stream, error) {
	encoded, err := FlateEncode(data)
	if err != nil {
		return nil, err
	}
	if dict == nil {
		dict = NewDictionary()
	}
	dict.Set("Filter", NewName("FlateDecode"))
	dict.Set("Length", NewInt(int64(len(encoded))))
	return &Stream{Dict: dict, Data: encoded}, nil
}

// FlateDecoder implements zlib/deflate decompression
type FlateDecoder struct{}

func (f *FlateDecoder) Name() string {
	return "FlateDecode"
}

func (f *FlateDecoder) Decode(data []byte, params *Dictionary) ([]byte, error) {
	if len(data) == 0 {
		return data, nil
	}

	reader, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("flate decode error: %w", err)
	}
	defer reader.Close()

	decoded, err := io.ReadAll(reader)
	if err != nil && len(decoded) == 0 {
		return nil, fmt.Errorf("flate decode error: %w", err)
	}
	// A missing checksum after complete data is common and harmless

	if params != nil {
		if predictor := params.GetInt("Predictor"); predictor > 1 {
			decoded, err = applyPredictor(decoded, params)
			if err != nil {
				return nil, fmt.Errorf("predictor error: %w", err)
			}
		}
	}

	return decoded, nil
}

func applyPredictor(data []byte, params *Dictionary) ([]byte, error) {
	predictor := params.GetInt("Predictor")
	columns := params.GetInt("Columns")
	bitsPerComponent := params.GetInt("BitsPerComponent")
	colors := params.GetInt("Colors")

	if columns == 0 {
		columns = 1
	}
	if bitsPerComponent == 0 {
		bitsPerComponent = 8
	}
	if colors == 0 {
		colors = 1
	}

	switch predictor {
	case 2: // TIFF Predictor 2
		return applyTIFFPredictor(data, int(columns), int(bitsPerComponent), int(colors))
	case 10, 11, 12, 13, 14, 15: // PNG predictors
		return applyPNGPredictor(data, int(columns), int(bitsPerComponent), int(colors))
	default:
		return data, nil
	}
}

func applyTIFFPredictor(data []byte, columns, bitsPerComponent, colors int) ([]byte, error) {
	if bitsPerComponent != 8 {
		return data, fmt.Errorf("TIFF predictor only supports 8 bits per component")
	}

	bytesPerPixel := colors
	rowSize := columns * bytesPerPixel

	if len(data)%rowSize != 0 {
		return data, fmt.Errorf("data length not multiple of row size")
	}

	result := make([]byte, len(data))
	copy(result, data)

	for row := 0; row < len(data)/rowSize; row++ {
		rowStart := row * rowSize
		for col := 1; col < columns; col++ {
			for c := 0; c < bytesPerPixel; c++ {
				idx := rowStart + col*bytesPerPixel + c
				result[idx] += result[idx-bytesPerPixel]
			}
		}
	}

	return result, nil
}

func applyPNGPredictor(data []byte, columns, bitsPerComponent, colors int) ([]byte, error) {
	bytesPerPixel := (bitsPerComponent*colors + 7) / 8
	rowSize := (columns*bitsPerComponent*colors + 7) / 8
	totalRowSize := rowSize + 1 // +1 for predictor byte

	if len(data)%totalRowSize != 0 {
		return data, fmt.Errorf("data length %d not multiple of row size %d", len(data), totalRowSize)
	}

	numRows := len(data) / totalRowSize
	result := make([]byte, numRows*rowSize)
	prev := make([]byte, rowSize)

	for row := 0; row < numRows; row++ {
		src := data[row*totalRowSize+1 : (row+1)*totalRowSize]
		dst := result[row*rowSize : (row+1)*rowSize]
		copy(dst, src)

		switch data[row*totalRowSize] {
		case 0: // None
		case 1: // Sub
			for i := bytesPerPixel; i < rowSize; i++ {
				dst[i] += dst[i-bytesPerPixel]
			}
		case 2: // Up
			for i := 0; i < rowSize; i++ {
				dst[i] += prev[i]
			}
		case 3: // Average
			for i := 0; i < rowSize; i++ {
				var left int
				if i >= bytesPerPixel {
					left = int(dst[i-bytesPerPixel])
				}
				dst[i] += byte((left + int(prev[i])) / 2)
			}
		case 4: // Paeth
			for i := 0; i < rowSize; i++ {
				var left, upLeft byte
				if i >= bytesPerPixel {
					left = dst[i-bytesPerPixel]
					upLeft = prev[i-bytesPerPixel]
				}
				dst[i] += paethPredictor(left, prev[i], upLeft)
			}
		default:
			return nil, fmt.Errorf("unknown PNG predictor: %d", data[row*totalRowSize])
		}
		prev = dst
	}

	return result, nil
}

func paethPredictor(a, b, c byte) byte {
	p := int(a) + int(b) - int(c)
	pa := abs(p - int(a))
	pb := abs(p - int(b))
	pc := abs(p - int(c))

	if pa <= pb && pa <= pc {
		return a
	} else if pb <= pc {
		return b
	}
	return c
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// ASCIIHexDecoder implements ASCII hex decoding
type ASCIIHexDecoder struct{}

func (a *ASCIIHexDecoder) Name() string {
	return "ASCIIHexDecode"
}

func (a *ASCIIHexDecoder) Decode(data []byte, params *Dictionary) ([]byte, error) {
	digits := make([]byte, 0, len(data))
	for _, b := range data {
		if b == '>' {
			break // End of data marker
		}
		if IsWhitespace(b) {
			continue
		}
		digits = append(digits, b)
	}

	if len(digits)%2 == 1 {
		digits = append(digits, '0')
	}

	decoded := make([]byte, hex.DecodedLen(len(digits)))
	n, err := hex.Decode(decoded, digits)
	if err != nil {
		return nil, fmt.Errorf("ASCII hex decode error: %w", err)
	}
	return decoded[:n], nil
}

// ASCII85Decoder implements ASCII85 decoding
type ASCII85Decoder struct{}

func (a *ASCII85Decoder) Name() string {
	return "ASCII85Decode"
}

func (a *ASCII85Decoder) Decode(data []byte, params *Dictionary) ([]byte, error) {
	trimmed := bytes.TrimSpace(data)
	trimmed = bytes.TrimPrefix(trimmed, []byte("<~"))
	if i := bytes.Index(trimmed, []byte("~>")); i >= 0 {
		trimmed = trimmed[:i]
	}

	out := make([]byte, 4*len(trimmed)+4)
	n, _, err := ascii85.Decode(out, trimmed, true)
	if err != nil {
		return nil, fmt.Errorf("ASCII85 decode error: %w", err)
	}
	return out[:n], nil
}

// LZWDecoder implements LZW decompression
type LZWDecoder struct{}

func (l *LZWDecoder) Name() string {
	return "LZWDecode"
}

func (l *LZWDecoder) Decode(data []byte, params *Dictionary) ([]byte, error) {
	if len(data) == 0 {
		return data, nil
	}

	earlyChange := true // Default per PDF spec
	if params != nil && params.Has("EarlyChange") {
		earlyChange = params.GetInt("EarlyChange") != 0
	}

	reader := lzw.NewReader(bytes.NewReader(data), earlyChange)
	defer reader.Close()

	decoded, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("LZW decode error: %w", err)
	}

	if params != nil {
		if predictor := params.GetInt("Predictor"); predictor > 1 {
			return applyPredictor(decoded, params)
		}
	}
	return decoded, nil
}

// RunLengthDecoder implements run-length decompression
type RunLengthDecoder struct{}

func (r *RunLengthDecoder) Name() string {
	return "RunLengthDecode"
}

func (r *RunLengthDecoder) Decode(data []byte, params *Dictionary) ([]byte, error) {
	var result []byte
	i := 0

	for i < len(data) {
		length := int(data[i])
		i++

		if length == 128 {
			break // EOD
		}

		if length < 128 {
			// Literal run: copy next (length + 1) bytes
			count := length + 1
			if i+count > len(data) {
				return nil, fmt.Errorf("insufficient data for literal run")
			}
			result = append(result, data[i:i+count]...)
			i += count
		} else {
			// Replicate run: repeat next byte (257 - length) times
			if i >= len(data) {
				return nil, fmt.Errorf("insufficient data for replicate run")
			}
			result = append(result, bytes.Repeat(data[i:i+1], 257-length)...)
			i++
		}
	}

	return result, nil
}

// passthroughDecoder leaves image codec data encoded; nothing in the graph needs the pixels
type passthroughDecoder struct {
	name string
}

func (p *passthroughDecoder) Name() string { return p.name }

func (p *passthroughDecoder) Decode(data []byte, params *Dictionary) ([]byte, error) {
	return data, nil
}
