package body

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"io"
	"math"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floatFixture() []byte {
	buf := make([]byte, 0, 64) // slack capacity on purpose
	for _, f := range []float32{1.0, 5.0, 6.0, 7.0} {
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(f))
	}
	return buf
}

func TestParseResponseType(t *testing.T) {
	for _, rt := range ResponseTypes {
		got, err := ParseResponseType(string(rt))
		require.NoError(t, err)
		assert.Equal(t, rt, got)
	}

	_, err := ParseResponseType("stream")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid response type")
}

func TestConcat_ExactSize(t *testing.T) {
	a := make([]byte, 3, 100)
	copy(a, "abc")
	b := make([]byte, 2, 50)
	copy(b, "de")

	out := Concat([][]byte{a, b})

	assert.Equal(t, []byte("abcde"), out)
	assert.Equal(t, 5, len(out))
	assert.Equal(t, 5, cap(out))
}

func TestMaterializer_FloatFixtureArrayBuffer(t *testing.T) {
	m := New()
	fixture := floatFixture()

	res := m.FromBytes(TypeArrayBuffer, "application/octet-stream", fixture)

	buf, ok := res.Value.([]byte)
	require.True(t, ok)
	assert.Len(t, buf, 16)
	assert.Equal(t, 16, cap(buf))
	assert.Equal(t, "0000803f0000a0400000c0400000e040", hex.EncodeToString(buf))
	assert.Empty(t, res.Text)

	// the result must not alias the input
	fixture[0] = 0xff
	assert.Equal(t, byte(0), buf[0])
}

func TestMaterializer_SamePayloadPerType(t *testing.T) {
	payload := []byte(`{"name":"xmlhttp","tags":["a","b"],"n":3}`)
	m := New()

	text := m.FromBytes(TypeText, "application/json", payload)
	assert.Equal(t, string(payload), text.Value)
	assert.Equal(t, string(payload), text.Text)

	def := m.FromBytes(TypeDefault, "application/json", payload)
	assert.Equal(t, string(payload), def.Value)

	parsed := m.FromBytes(TypeJSON, "application/json", payload)
	obj, ok := parsed.Value.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "xmlhttp", obj["name"])
	assert.Equal(t, float64(3), obj["n"])
	assert.Equal(t, []any{"a", "b"}, obj["tags"])
	assert.Empty(t, parsed.Text)

	raw := m.FromBytes(TypeArrayBuffer, "application/json", payload)
	buf, ok := raw.Value.([]byte)
	require.True(t, ok)
	assert.Equal(t, payload, buf)
	assert.Equal(t, len(payload), cap(buf))
}

func TestMaterializer_InvalidJSON(t *testing.T) {
	res := New().FromBytes(TypeJSON, "application/json", []byte(`{"broken":`))
	assert.Nil(t, res.Value)
	assert.Empty(t, res.Text)
}

func TestMaterializer_Document(t *testing.T) {
	html := `<html><head><title>Hello</title></head><body><p class="x">one</p><p class="x">two</p></body></html>`

	res := New().FromBytes(TypeDocument, "text/html", []byte(html))

	require.NotNil(t, res.Document)
	assert.Nil(t, res.Value)
	assert.Empty(t, res.Text)
	assert.Equal(t, "Hello", res.Document.Find("title").Text())
	assert.Equal(t, 2, res.Document.Find("p.x").Length())
}

func TestMaterializer_DocumentParserError(t *testing.T) {
	m := New(WithDocumentParser(func(io.Reader) (*goquery.Document, error) {
		return nil, errors.New("nope")
	}))

	res := m.FromBytes(TypeDocument, "text/html", []byte("<p>"))

	assert.Nil(t, res.Document)
	assert.Nil(t, res.Value)
}

func TestMaterializer_Blob(t *testing.T) {
	res := New().FromBytes(TypeBlob, "Image/PNG", []byte("0123456789"))

	blob, ok := res.Value.(*Blob)
	require.True(t, ok)
	assert.Equal(t, int64(10), blob.Size())
	assert.Equal(t, "image/png", blob.Type())
	assert.Equal(t, "0123456789", blob.Text())
	assert.Equal(t, 10, cap(blob.Bytes()))

	assert.Equal(t, "234", blob.Slice(2, 5, "").Text())
	assert.Equal(t, "789", blob.Slice(-3, 100, "").Text())
	assert.Equal(t, "", blob.Slice(6, 2, "").Text())

	data, err := io.ReadAll(blob.Reader())
	require.NoError(t, err)
	assert.Equal(t, "0123456789", string(data))
}

func TestAccumulator_BinaryChunks(t *testing.T) {
	fixture := floatFixture()
	acc := NewAccumulator(TypeArrayBuffer)

	scratch := make([]byte, 4096)
	for i := 0; i < len(fixture); i += 5 {
		end := i + 5
		if end > len(fixture) {
			end = len(fixture)
		}
		n := copy(scratch, fixture[i:end])
		_, _ = acc.Write(scratch[:n])
		// the transport reuses its buffer
		for j := range scratch[:n] {
			scratch[j] = 0xaa
		}
	}

	assert.Equal(t, int64(16), acc.Len())
	assert.Empty(t, acc.Text())

	res := New().Finalize(acc, "")
	buf := res.Value.([]byte)
	assert.Equal(t, "0000803f0000a0400000c0400000e040", hex.EncodeToString(buf))
	assert.Equal(t, 16, cap(buf))
}

func TestAccumulator_TextSplitsMultibyte(t *testing.T) {
	acc := NewAccumulator(TypeText)
	word := []byte("héllo wörld")

	_, _ = acc.Write(word[:2])
	_, _ = acc.Write(word[2:])

	assert.Equal(t, "héllo wörld", acc.Text())
	res := New().Finalize(acc, "text/plain")
	assert.Equal(t, "héllo wörld", res.Text)
	assert.Equal(t, "héllo wörld", res.Value)
}

func TestAccumulator_JSON(t *testing.T) {
	acc := NewAccumulator(TypeJSON)
	_, _ = acc.Write([]byte(`[1,`))
	_, _ = acc.Write([]byte(`2]`))

	res := New().Finalize(acc, "application/json")

	assert.Equal(t, []any{float64(1), float64(2)}, res.Value)
	assert.Empty(t, res.Text)
}

func TestFromBytes_InvalidUTF8(t *testing.T) {
	res := New().FromBytes(TypeText, "", []byte{'a', 0xff, 'b'})
	assert.Equal(t, "a\uFFFDb", res.Text)
}
