package dom

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// ParseError reports a failure while tokenizing markup input.
type ParseError struct {
	Offset  int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at offset %d: %s", e.Offset, e.Message)
}

// Elements that never have content in HTML and therefore do not take a
// closing tag.
var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"param": true, "source": true, "track": true, "wbr": true,
}

// Elements whose content is raw text up to the matching close tag.
var rawTextElements = map[string]bool{
	"script": true, "style": true, "textarea": true, "title": true,
}

// Parse tokenizes markup into a Document.
//
// The tokenizer is tolerant in the ways the server output requires: an
// end tag with no matching open element is skipped, while one matching an
// outer open element also closes the elements nested inside it; comments
// and doctypes are dropped, duplicate attributes are preserved, and tag
// case is kept as
// written (native templates use case-sensitive element names such as
// <Text> and <Group>). Entity references in text and attribute values are
// resolved.
func Parse(input string) (*Document, error) {
	doc := WithCapacity(64)
	t := tokenizer{input: input}
	current := doc.Root()
	// Open elements, innermost last; names keep their original case.
	var open []string

	for {
		tok, err := t.next()
		if err != nil {
			return nil, err
		}
		switch tok.kind {
		case tokenEOF:
			return doc, nil
		case tokenText:
			node := doc.PushNode(LeafData(unescape(tok.text)))
			doc.AppendChild(current, node)
		case tokenStart:
			data := NodeData{Kind: KindElement, Element: tok.element}
			node := doc.PushNode(data)
			doc.AppendChild(current, node)
			if id, ok := data.ID(); ok {
				doc.RegisterID(node, id)
			}
			lower := strings.ToLower(tok.name)
			if tok.selfClosing || voidElements[lower] {
				continue
			}
			if rawTextElements[lower] {
				text := t.rawText(tok.name)
				if text != "" {
					leaf := doc.PushNode(LeafData(text))
					doc.AppendChild(node, leaf)
				}
				continue
			}
			current = node
			open = append(open, tok.name)
		case tokenEnd:
			// Pop to the matching open element; an end tag with no matching
			// start is ignored.
			idx := -1
			for i := len(open) - 1; i >= 0; i-- {
				if strings.EqualFold(open[i], tok.name) {
					idx = i
					break
				}
			}
			if idx < 0 {
				continue
			}
			for len(open) > idx {
				parent, ok := doc.Parent(current)
				if !ok {
					break
				}
				current = parent
				open = open[:len(open)-1]
			}
		}
	}
}

type tokenKind uint8

const (
	tokenEOF tokenKind = iota
	tokenText
	tokenStart
	tokenEnd
)

type token struct {
	kind        tokenKind
	text        string
	name        string
	element     Element
	selfClosing bool
}

type tokenizer struct {
	input string
	pos   int
}

func (t *tokenizer) next() (token, error) {
	if t.pos >= len(t.input) {
		return token{kind: tokenEOF}, nil
	}

	if t.input[t.pos] != '<' {
		start := t.pos
		end := strings.IndexByte(t.input[t.pos:], '<')
		if end < 0 {
			t.pos = len(t.input)
		} else {
			t.pos += end
		}
		return token{kind: tokenText, text: t.input[start:t.pos]}, nil
	}

	rest := t.input[t.pos:]
	switch {
	case strings.HasPrefix(rest, "<!--"):
		end := strings.Index(rest, "-->")
		if end < 0 {
			return token{}, &ParseError{Offset: t.pos, Message: "unterminated comment"}
		}
		t.pos += end + len("-->")
		return t.next()
	case strings.HasPrefix(rest, "<!") || strings.HasPrefix(rest, "<?"):
		end := strings.IndexByte(rest, '>')
		if end < 0 {
			return token{}, &ParseError{Offset: t.pos, Message: "unterminated declaration"}
		}
		t.pos += end + 1
		return t.next()
	case strings.HasPrefix(rest, "</"):
		end := strings.IndexByte(rest, '>')
		if end < 0 {
			return token{}, &ParseError{Offset: t.pos, Message: "unterminated end tag"}
		}
		name := strings.TrimSpace(rest[2:end])
		t.pos += end + 1
		return token{kind: tokenEnd, name: name}, nil
	}

	return t.startTag()
}

func (t *tokenizer) startTag() (token, error) {
	tagStart := t.pos
	t.pos++ // consume '<'
	name := t.readName()
	if name == "" {
		// A stray '<' that does not open a tag is literal text.
		end := strings.IndexByte(t.input[t.pos:], '<')
		start := tagStart
		if end < 0 {
			t.pos = len(t.input)
		} else {
			t.pos += end
		}
		return token{kind: tokenText, text: t.input[start:t.pos]}, nil
	}

	elem := Element{Name: NewElementName(name)}
	for {
		t.skipSpace()
		if t.pos >= len(t.input) {
			return token{}, &ParseError{Offset: tagStart, Message: "unterminated start tag"}
		}
		if strings.HasPrefix(t.input[t.pos:], "/>") {
			t.pos += 2
			return token{kind: tokenStart, name: name, element: elem, selfClosing: true}, nil
		}
		if t.input[t.pos] == '>' {
			t.pos++
			return token{kind: tokenStart, name: name, element: elem}, nil
		}

		attrName := t.readAttrName()
		if attrName == "" {
			return token{}, &ParseError{Offset: t.pos, Message: "malformed attribute"}
		}
		t.skipSpace()
		if t.pos < len(t.input) && t.input[t.pos] == '=' {
			t.pos++
			t.skipSpace()
			value, err := t.readAttrValue()
			if err != nil {
				return token{}, err
			}
			unescaped := unescape(value)
			elem.Attributes = append(elem.Attributes, Attribute{
				Name:  NewAttributeName(attrName),
				Value: &unescaped,
			})
		} else {
			elem.Attributes = append(elem.Attributes, Attribute{Name: NewAttributeName(attrName)})
		}
	}
}

// rawText consumes content up to (and including) the close tag of a raw
// text element, returning the content.
func (t *tokenizer) rawText(name string) string {
	lower := strings.ToLower(t.input[t.pos:])
	closeTag := "</" + strings.ToLower(name)
	idx := strings.Index(lower, closeTag)
	if idx < 0 {
		text := t.input[t.pos:]
		t.pos = len(t.input)
		return text
	}
	text := t.input[t.pos : t.pos+idx]
	t.pos += idx
	if end := strings.IndexByte(t.input[t.pos:], '>'); end >= 0 {
		t.pos += end + 1
	} else {
		t.pos = len(t.input)
	}
	return text
}

func (t *tokenizer) readName() string {
	start := t.pos
	for t.pos < len(t.input) {
		c := t.input[t.pos]
		if isNameByte(c) || (t.pos > start && (c == '-' || c == ':' || c == '.')) {
			t.pos++
			continue
		}
		break
	}
	return t.input[start:t.pos]
}

func (t *tokenizer) readAttrName() string {
	start := t.pos
	for t.pos < len(t.input) {
		c := t.input[t.pos]
		if c == '=' || c == '>' || c == '/' || isSpaceByte(c) {
			break
		}
		t.pos++
	}
	return t.input[start:t.pos]
}

func (t *tokenizer) readAttrValue() (string, error) {
	if t.pos >= len(t.input) {
		return "", &ParseError{Offset: t.pos, Message: "unterminated attribute value"}
	}
	quote := t.input[t.pos]
	if quote == '"' || quote == '\'' {
		t.pos++
		end := strings.IndexByte(t.input[t.pos:], quote)
		if end < 0 {
			return "", &ParseError{Offset: t.pos, Message: "unterminated quoted attribute value"}
		}
		value := t.input[t.pos : t.pos+end]
		t.pos += end + 1
		return value, nil
	}
	start := t.pos
	for t.pos < len(t.input) {
		c := t.input[t.pos]
		if c == '>' || isSpaceByte(c) {
			break
		}
		t.pos++
	}
	return t.input[start:t.pos], nil
}

func (t *tokenizer) skipSpace() {
	for t.pos < len(t.input) && isSpaceByte(t.input[t.pos]) {
		t.pos++
	}
}

func isNameByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

func isSpaceByte(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f'
}

func unescape(s string) string {
	if !strings.ContainsRune(s, '&') {
		return s
	}
	return html.UnescapeString(s)
}
