package pdf

import (
	"bytes"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// drawOrder ranks the image XObjects of page pageNr by the position of their
// first Do operator in the page's content. Objects the content never paints
// directly (for example images nested in form XObjects) are absent.
func drawOrder(pdfCtx *model.Context, pageNr int) (map[int]int, error) {
	d, _, _, err := pdfCtx.PageDict(pageNr, false)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, fmt.Errorf("page %d not found", pageNr)
	}

	byName, err := xObjectRefs(pdfCtx, d)
	if err != nil || len(byName) == 0 {
		return nil, err
	}

	content, err := pageContent(pdfCtx, d)
	if err != nil {
		return nil, err
	}

	rank := make(map[int]int, len(byName))
	for _, name := range doOperands(content) {
		objNr, ok := byName[name]
		if !ok {
			continue
		}
		if _, seen := rank[objNr]; !seen {
			rank[objNr] = len(rank)
		}
	}
	return rank, nil
}

// xObjectRefs maps the XObject resource names of page dict d to object
// numbers, following inherited Resources up the page tree.
func xObjectRefs(pdfCtx *model.Context, d types.Dict) (map[string]int, error) {
	res, err := pageResources(pdfCtx, d)
	if err != nil || res == nil {
		return nil, err
	}

	o, found := res.Find("XObject")
	if !found {
		return nil, nil
	}
	xobjs, err := pdfCtx.DereferenceDict(o)
	if err != nil {
		return nil, err
	}

	refs := make(map[string]int, len(xobjs))
	for name, obj := range xobjs {
		if ir, ok := obj.(types.IndirectRef); ok {
			refs[name] = ir.ObjectNumber.Value()
		}
	}
	return refs, nil
}

func pageResources(pdfCtx *model.Context, d types.Dict) (types.Dict, error) {
	for node := d; node != nil; {
		if o, found := node.Find("Resources"); found {
			return pdfCtx.DereferenceDict(o)
		}
		parent, found := node.Find("Parent")
		if !found {
			return nil, nil
		}
		var err error
		if node, err = pdfCtx.DereferenceDict(parent); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

// pageContent returns the decoded, concatenated content streams of d.
func pageContent(pdfCtx *model.Context, d types.Dict) ([]byte, error) {
	o, found := d.Find("Contents")
	if !found {
		return nil, nil
	}
	o, err := pdfCtx.Dereference(o)
	if err != nil {
		return nil, err
	}

	var parts []types.Object
	switch v := o.(type) {
	case types.Array:
		parts = v
	default:
		parts = []types.Object{o}
	}

	var buf bytes.Buffer
	for _, part := range parts {
		sd, _, err := pdfCtx.DereferenceStreamDict(part)
		if err != nil {
			return nil, err
		}
		if sd == nil {
			continue
		}
		if err := sd.Decode(); err != nil {
			return nil, err
		}
		buf.Write(sd.Content)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// doOperands returns, in order, the name operand of every Do operator in a
// content stream. Strings, comments and inline image data are skipped.
func doOperands(content []byte) []string {
	var (
		names []string
		prev  string
	)

	for i := 0; i < len(content); {
		c := content[i]
		switch {
		case isWhitespace(c):
			i++
		case c == '%':
			for i < len(content) && content[i] != '\n' && content[i] != '\r' {
				i++
			}
		case c == '(':
			i = skipLiteralString(content, i)
			prev = ""
		case c == '<':
			if i+1 < len(content) && content[i+1] == '<' {
				i += 2
			} else {
				for i < len(content) && content[i] != '>' {
					i++
				}
				i++
			}
			prev = ""
		case c == '/':
			j := i + 1
			for j < len(content) && !isWhitespace(content[j]) && !isDelimiter(content[j]) {
				j++
			}
			prev = string(content[i:j])
			i = j
		case isDelimiter(c):
			i++
			prev = ""
		default:
			j := i
			for j < len(content) && !isWhitespace(content[j]) && !isDelimiter(content[j]) {
				j++
			}
			tok := string(content[i:j])
			i = j
			switch tok {
			case "Do":
				if len(prev) > 1 && prev[0] == '/' {
					names = append(names, prev[1:])
				}
			case "ID":
				i = skipInlineImage(content, i)
			}
			prev = tok
		}
	}
	return names
}

// skipLiteralString returns the index after the balanced string starting at i.
func skipLiteralString(content []byte, i int) int {
	depth := 0
	for ; i < len(content); i++ {
		switch content[i] {
		case '\\':
			i++
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}
	return i
}

// skipInlineImage returns the index after the EI operator ending inline
// image data that starts at i.
func skipInlineImage(content []byte, i int) int {
	for {
		k := bytes.Index(content[i:], []byte("EI"))
		if k < 0 {
			return len(content)
		}
		end := i + k + 2
		if isWhitespace(content[i+k-1]) && (end == len(content) || isWhitespace(content[end])) {
			return end
		}
		i += k + 2
	}
}

func isWhitespace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\f', 0:
		return true
	}
	return false
}

func isDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}
