package transform

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pipelineerrors "github.com/conneroisu/sitepipe/internal/errors"
)

func rules(findings []pipelineerrors.Finding) map[string]pipelineerrors.Finding {
	m := make(map[string]pipelineerrors.Finding, len(findings))
	for _, f := range findings {
		m[f.Rule] = f
	}
	return m
}

func TestValidateCleanDocument(t *testing.T) {
	doc := `<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>Home</title></head>
<body>
<ul><li>one<li>two</ul>
<p>text
<img src="a.png" alt="">
</body>
</html>`

	result, err := Validate{}.Invoke(context.Background(), []File{{Path: "index.html", Data: []byte(doc)}}, nil)
	require.NoError(t, err)
	assert.Empty(t, result.Findings)
	assert.Empty(t, result.Outputs)
}

func TestValidateReportsFindings(t *testing.T) {
	doc := `<html>
<head></head>
<body>
<div id="x"><span id="x">
<img src="a.png">
<center>old</center>
</div>
</em>
</body>
</html>`

	result, err := Validate{}.Invoke(context.Background(), []File{{Path: "about.html", Data: []byte(doc)}}, nil)
	require.NoError(t, err)

	found := rules(result.Findings)
	require.Contains(t, found, RuleDoctype)
	assert.Equal(t, pipelineerrors.SeverityWarning, found[RuleDoctype].Severity)
	require.Contains(t, found, RuleHTMLLang)
	assert.Equal(t, 1, found[RuleHTMLLang].Line)
	require.Contains(t, found, RuleTitle)
	assert.Equal(t, pipelineerrors.SeverityError, found[RuleTitle].Severity)
	require.Contains(t, found, RuleDuplicateID)
	assert.Equal(t, 4, found[RuleDuplicateID].Line)
	require.Contains(t, found, RuleImgAlt)
	assert.Equal(t, 5, found[RuleImgAlt].Line)
	require.Contains(t, found, RuleObsoleteElement)
	assert.Equal(t, 6, found[RuleObsoleteElement].Line)
	require.Contains(t, found, RuleUnclosedElement)
	assert.Equal(t, 4, found[RuleUnclosedElement].Line)
	require.Contains(t, found, RuleStrayEndTag)
	assert.Equal(t, 8, found[RuleStrayEndTag].Line)

	for _, f := range result.Findings {
		assert.Equal(t, "about.html", f.File)
	}
}

func TestValidateFragmentSkipsDocumentRules(t *testing.T) {
	result, err := Validate{}.Invoke(context.Background(), []File{{Path: "_card.html", Data: []byte("<div>card</div>")}}, nil)
	require.NoError(t, err)
	assert.Empty(t, result.Findings)
}

func TestValidateScriptContentIsNotMarkup(t *testing.T) {
	doc := `<!DOCTYPE html><html lang="en"><head><title>x</title>
<script>if (a < b) { document.write("</div>") }</script></head><body></body></html>`

	result, err := Validate{}.Invoke(context.Background(), []File{{Path: "index.html", Data: []byte(doc)}}, nil)
	require.NoError(t, err)
	assert.Empty(t, result.Findings)
}
