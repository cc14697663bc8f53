package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipelineErrorMessage(t *testing.T) {
	err := NewMissingInputError("styles", "src/styles", nil)

	assert.Contains(t, err.Error(), "[MISSING_INPUT]")
	assert.Contains(t, err.Error(), "task:styles")
	assert.Contains(t, err.Error(), "src/styles")
	assert.ErrorIs(t, err, ErrMissingInput)
}

func TestClassification(t *testing.T) {
	testCases := []struct {
		name       string
		err        error
		structural bool
		transform  bool
	}{
		{"duplicate", NewDuplicateNameError("a"), true, false},
		{"unknown", NewUnknownTaskError("a"), true, false},
		{"cycle", NewCycleError("a", "b", []string{"b", "a", "b"}), true, false},
		{"io", NewIOError("WRITE", "write failed", errors.New("disk full")), true, false},
		{"transform", NewTransformError("a", errors.New("bad scss")), false, true},
		{"requirement", NewRequirementError("html", "styles"), false, true},
		{"wrapped", fmt.Errorf("run: %w", NewUnknownTaskError("x")), true, false},
		{"plain", errors.New("plain"), false, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.structural, IsStructural(tc.err))
			assert.Equal(t, tc.transform, IsTransform(tc.err))
		})
	}
}

func TestCycleErrorNamesEdge(t *testing.T) {
	err := NewCycleError("html", "clean", []string{"clean", "styles", "html", "clean"})

	assert.ErrorIs(t, err, ErrCycle)
	assert.Contains(t, err.Error(), "html -> clean")
	assert.Contains(t, err.Error(), "clean -> styles -> html -> clean")
}

func TestPipelineErrorIs(t *testing.T) {
	a := NewTransformError("a", errors.New("x"))
	b := NewTransformError("b", errors.New("y"))

	assert.True(t, errors.Is(a, b))
	assert.False(t, errors.Is(a, NewUnknownTaskError("a")))
	assert.True(t, IsTransform(a))
	assert.False(t, IsTransform(NewUnknownTaskError("a")))
}

func TestFindingCollector(t *testing.T) {
	fc := NewFindingCollector()
	fc.Add()
	assert.False(t, fc.HasErrors())

	fc.Add(
		Finding{File: "b.html", Line: 3, Rule: "img-alt", Severity: SeverityWarning},
		Finding{File: "a.html", Line: 9, Rule: "close-tag", Severity: SeverityError},
		Finding{File: "a.html", Line: 2, Rule: "doctype", Severity: SeverityWarning},
	)

	findings := fc.Findings()
	require.Len(t, findings, 3)
	assert.Equal(t, "a.html", findings[0].File)
	assert.Equal(t, 2, findings[0].Line)
	assert.Equal(t, "b.html", findings[2].File)
	assert.True(t, fc.HasErrors())
	assert.Equal(t, "a.html:9: error:  (close-tag)", findings[1].String())
}
