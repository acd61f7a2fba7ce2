// Package frontmatter reads and writes the `---` delimited YAML header used
// by published content files and drafts.
package frontmatter

import (
	"bytes"
	"fmt"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

var delimiter = []byte("---")

// Split separates a document into its YAML header and body. Documents
// without a header return nil header bytes and the whole input as body.
func Split(data []byte) (header []byte, body []byte, err error) {
	trimmed := bytes.TrimLeft(data, "\ufeff\r\n")
	if !bytes.HasPrefix(trimmed, delimiter) {
		return nil, data, nil
	}
	rest := trimmed[len(delimiter):]
	rest = bytes.TrimPrefix(rest, []byte("\r"))
	if len(rest) == 0 || rest[0] != '\n' {
		return nil, data, nil
	}
	rest = rest[1:]

	end := bytes.Index(rest, append([]byte("\n"), delimiter...))
	if end < 0 {
		return nil, nil, eris.New("frontmatter: unterminated header")
	}
	header = rest[:end]
	body = rest[end+1+len(delimiter):]
	body = bytes.TrimLeft(body, "\r\n")
	return header, body, nil
}

// Parse decodes the document's YAML header into out. Documents without a
// header leave out untouched.
func Parse(data []byte, out any) (body []byte, err error) {
	header, body, err := Split(data)
	if err != nil {
		return nil, err
	}
	if header == nil {
		return body, nil
	}
	if err := yaml.Unmarshal(header, out); err != nil {
		return nil, eris.Wrap(err, "frontmatter: parse header")
	}
	return body, nil
}

// Compose renders meta as a YAML header followed by body.
func Compose(meta any, body string) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(delimiter)
	buf.WriteByte('\n')

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(meta); err != nil {
		return nil, eris.Wrap(err, "frontmatter: encode header")
	}
	if err := enc.Close(); err != nil {
		return nil, eris.Wrap(err, "frontmatter: close encoder")
	}

	buf.Write(delimiter)
	fmt.Fprintf(&buf, "\n\n%s", body)
	if len(body) > 0 && body[len(body)-1] != '\n' {
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}
