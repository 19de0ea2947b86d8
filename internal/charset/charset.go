package charset

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	htmlcharset "golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/simplifiedchinese"
)

// ErrUndecodable is returned when no candidate encoding decodes the content.
var ErrUndecodable = errors.New("content could not be decoded as text")

// UTF8 is the name reported for content that is already valid UTF-8.
const UTF8 = "utf-8"

// fallback is tried in order when detection gives no usable answer.
// ISO-8859-1 maps every byte, so the Chinese encodings only matter when
// the fallback list is changed. GB2312 is the EUC-CN subset of GBK and is
// decoded by the GBK decoder, as the WHATWG label table does.
var fallback = []struct {
	name string
	enc  encoding.Encoding
}{
	{name: "latin1", enc: charmap.ISO8859_1},
	{name: "iso-8859-1", enc: charmap.ISO8859_1},
	{name: "gbk", enc: simplifiedchinese.GBK},
	{name: "gb2312", enc: simplifiedchinese.GBK},
	{name: "gb18030", enc: simplifiedchinese.GB18030},
}

// detectorAliases maps chardet result names that neither index knows.
var detectorAliases = map[string]string{
	"gb-18030":   "gb18030",
	"ibm420_ltr": "ibm420",
	"ibm420_rtl": "ibm420",
	"ibm424_ltr": "ibm424",
	"ibm424_rtl": "ibm424",
}

// Decode converts content to a UTF-8 string and reports the encoding used.
//
// Valid UTF-8 is returned as is. Otherwise the charset is guessed
// statistically and, failing that, the fallback encodings are tried in
// order. A decoding that produces replacement characters counts as failed.
func Decode(content []byte) (string, string, error) {
	if utf8.Valid(content) {
		return string(content), UTF8, nil
	}

	if name, enc := detect(content); enc != nil {
		if text, err := decodeStrict(content, enc); err == nil {
			return text, name, nil
		}
	}

	for _, f := range fallback {
		if text, err := decodeStrict(content, f.enc); err == nil {
			return text, f.name, nil
		}
	}
	return "", "", ErrUndecodable
}

// DecodeHTML decodes an HTML document. A charset declared in a byte order
// mark or <meta> tag wins over statistical detection.
func DecodeHTML(content []byte) (string, string, error) {
	if utf8.Valid(content) {
		return string(content), UTF8, nil
	}

	enc, name, certain := htmlcharset.DetermineEncoding(content, "text/html")
	// windows-1252 without certainty is the WHATWG default, not a declaration.
	if enc != nil && (certain || name != "windows-1252") {
		if text, err := decodeStrict(content, enc); err == nil {
			return text, name, nil
		}
	}
	return Decode(content)
}

// Lookup returns the encoding registered under name.
func Lookup(name string) (encoding.Encoding, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if alias, ok := detectorAliases[key]; ok {
		key = alias
	}
	if enc, err := htmlindex.Get(key); err == nil {
		return enc, nil
	}
	enc, err := ianaindex.IANA.Encoding(key)
	if err != nil {
		return nil, fmt.Errorf("unknown charset %q: %w", name, err)
	}
	if enc == nil {
		return nil, fmt.Errorf("unsupported charset %q", name)
	}
	return enc, nil
}

func detect(content []byte) (string, encoding.Encoding) {
	result, err := chardet.NewTextDetector().DetectBest(content)
	if err != nil || result == nil || result.Charset == "" {
		return "", nil
	}
	enc, err := Lookup(result.Charset)
	if err != nil {
		return "", nil
	}
	return strings.ToLower(result.Charset), enc
}

func decodeStrict(content []byte, enc encoding.Encoding) (string, error) {
	out, err := enc.NewDecoder().Bytes(content)
	if err != nil {
		return "", err
	}
	if bytes.ContainsRune(out, utf8.RuneError) && !bytes.ContainsRune(content, utf8.RuneError) {
		return "", ErrUndecodable
	}
	return string(out), nil
}
