package codegen

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDB(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"", `s db 0`},
		{"hi", `s db "hi", 0`},
		{`say "hi"`, `s db "say ""hi""", 0`},
		{"a\nb", `s db "a", 10, "b", 0`},
		{"\n", `s db 10, 0`},
		{"\t\x7f", `s db 9, 127, 0`},
		{`"`, `s db """", 0`},
		{"%s", `s db "%s", 0`},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, EncodeDB("s", []byte(tc.in)), "input %q", tc.in)
	}
}

func TestDecodeDBRoundTrip(t *testing.T) {
	inputs := []string{
		"", "hi", `"`, `""`, `a""b`, "\x00", "\x00\x00", "\r\n", "tab\there",
		"ends with quote\"", "\"starts with quote", "\x1f\x20\x7e\x7f\x80\xff",
	}
	var all []byte
	for b := 0; b < 256; b++ {
		all = append(all, byte(b))
	}
	inputs = append(inputs, string(all))

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 200; i++ {
		buf := make([]byte, rng.Intn(40))
		for j := range buf {
			buf[j] = byte(rng.Intn(256))
		}
		inputs = append(inputs, string(buf))
	}

	for _, in := range inputs {
		got, err := DecodeDB(EncodeDB("str0", []byte(in)))
		require.NoError(t, err, "input %q", in)
		assert.Equal(t, []byte(in), append([]byte{}, got...), "input %q", in)
	}
}

func TestDecodeDBRejectsMalformed(t *testing.T) {
	for _, line := range []string{
		`s dd 0`,
		`s db "abc`,
		`s db "abc"`,
		`s db 300, 0`,
		`s db 1 0`,
		`s db x, 0`,
	} {
		_, err := DecodeDB(line)
		assert.Error(t, err, line)
	}
}

func TestEncodeQBEData(t *testing.T) {
	assert.Equal(t, `data $str0 = { b "hi", b 0 }`, EncodeQBEData("str0", []byte("hi")))
	assert.Equal(t, `data $x = { b "a", b 10, b "b", b 0 }`, EncodeQBEData("x", []byte("a\nb")))
	assert.Equal(t, `data $x = { b "q\"\\", b 0 }`, EncodeQBEData("x", []byte(`q"\`)))
	assert.Equal(t, `data $x = { b 0 }`, EncodeQBEData("x", nil))
}
