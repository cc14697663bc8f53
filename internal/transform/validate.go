package transform

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"

	pipelineerrors "github.com/conneroisu/sitepipe/internal/errors"
)

// Rule names reported by Validate.
const (
	RuleDoctype         = "doctype"
	RuleHTMLLang        = "html-lang"
	RuleTitle           = "title"
	RuleImgAlt          = "img-alt"
	RuleDuplicateID     = "duplicate-id"
	RuleUnclosedElement = "unclosed-element"
	RuleStrayEndTag     = "stray-end-tag"
	RuleObsoleteElement = "obsolete-element"
)

var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"source": true, "track": true, "wbr": true,
}

// Elements whose end tag may be omitted.
var optionalEnd = map[string]bool{
	"html": true, "head": true, "body": true, "p": true, "li": true,
	"dt": true, "dd": true, "option": true, "optgroup": true, "tr": true,
	"td": true, "th": true, "thead": true, "tbody": true, "tfoot": true,
	"colgroup": true, "caption": true, "rt": true, "rp": true,
}

var obsoleteElements = map[string]bool{
	"acronym": true, "applet": true, "basefont": true, "big": true,
	"blink": true, "center": true, "dir": true, "font": true, "frame": true,
	"frameset": true, "isindex": true, "marquee": true, "noframes": true,
	"strike": true, "tt": true,
}

// Validate checks HTML documents and reports findings. It produces no
// outputs; a finding is never an error of the adapter itself.
type Validate struct{}

// Name returns the adapter name.
func (Validate) Name() string { return "validate" }

// Invoke validates every input.
func (Validate) Invoke(_ context.Context, files []File, _ Config) (Result, error) {
	var findings []pipelineerrors.Finding
	for _, f := range files {
		fileFindings, err := validateDocument(f.Path, f.Data)
		if err != nil {
			return Result{}, fmt.Errorf("%s: %w", f.Path, err)
		}
		findings = append(findings, fileFindings...)
	}
	return Result{Findings: findings}, nil
}

type openElement struct {
	name string
	line int
}

type docChecker struct {
	file     string
	findings []pipelineerrors.Finding
}

func (c *docChecker) report(line int, rule string, severity pipelineerrors.Severity, format string, args ...any) {
	c.findings = append(c.findings, pipelineerrors.Finding{
		File:     c.file,
		Line:     line,
		Rule:     rule,
		Message:  fmt.Sprintf(format, args...),
		Severity: severity,
	})
}

func validateDocument(name string, data []byte) ([]pipelineerrors.Finding, error) {
	c := &docChecker{file: name}
	z := html.NewTokenizer(bytes.NewReader(data))

	var (
		line      = 1
		stack     []openElement
		ids       = map[string]int{}
		seenFirst bool
		doctype   bool
		document  bool
		title     bool
	)

	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if z.Err() == io.EOF {
				break
			}
			return nil, z.Err()
		}

		start := line
		line += bytes.Count(z.Raw(), []byte("\n"))
		tok := z.Token()

		if !seenFirst {
			if tt == html.TextToken && strings.TrimSpace(tok.Data) == "" {
				continue
			}
			if tt == html.CommentToken {
				continue
			}
			seenFirst = true
			doctype = tt == html.DoctypeToken
		}

		switch tt {
		case html.DoctypeToken:
			document = true

		case html.StartTagToken, html.SelfClosingTagToken:
			el := tok.Data
			switch el {
			case "html":
				document = true
				if !hasAttr(tok, "lang") {
					c.report(start, RuleHTMLLang, pipelineerrors.SeverityWarning, "<html> has no lang attribute")
				}
			case "title":
				title = true
			case "img":
				if !hasAttr(tok, "alt") {
					c.report(start, RuleImgAlt, pipelineerrors.SeverityError, "<img> has no alt attribute")
				}
			}
			if obsoleteElements[el] {
				c.report(start, RuleObsoleteElement, pipelineerrors.SeverityWarning, "<%s> is obsolete", el)
			}
			for _, a := range tok.Attr {
				if a.Key != "id" || a.Val == "" {
					continue
				}
				if first, ok := ids[a.Val]; ok {
					c.report(start, RuleDuplicateID, pipelineerrors.SeverityError,
						"id %q already used on line %d", a.Val, first)
					continue
				}
				ids[a.Val] = start
			}
			if tt == html.StartTagToken && !voidElements[el] {
				stack = append(stack, openElement{name: el, line: start})
			}

		case html.EndTagToken:
			el := tok.Data
			if voidElements[el] {
				continue
			}
			idx := -1
			for i := len(stack) - 1; i >= 0; i-- {
				if stack[i].name == el {
					idx = i
					break
				}
			}
			if idx < 0 {
				if !optionalEnd[el] {
					c.report(start, RuleStrayEndTag, pipelineerrors.SeverityError, "</%s> has no matching start tag", el)
				}
				continue
			}
			for _, open := range stack[idx+1:] {
				if !optionalEnd[open.name] {
					c.report(open.line, RuleUnclosedElement, pipelineerrors.SeverityError,
						"<%s> is not closed before </%s>", open.name, el)
				}
			}
			stack = stack[:idx]
		}
	}

	for _, open := range stack {
		if !optionalEnd[open.name] {
			c.report(open.line, RuleUnclosedElement, pipelineerrors.SeverityError, "<%s> is never closed", open.name)
		}
	}

	if document {
		if !doctype {
			c.report(1, RuleDoctype, pipelineerrors.SeverityWarning, "document does not start with <!DOCTYPE html>")
		}
		if !title {
			c.report(1, RuleTitle, pipelineerrors.SeverityError, "document has no <title>")
		}
	}

	return c.findings, nil
}

func hasAttr(tok html.Token, key string) bool {
	for _, a := range tok.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}
