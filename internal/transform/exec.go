package transform

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// AllowedCommands lists the executables an Exec adapter may run.
var AllowedCommands = map[string]bool{
	"sass":     true,
	"lessc":    true,
	"postcss":  true,
	"esbuild":  true,
	"terser":   true,
	"uglifyjs": true,
	"node":     true,
	"npx":      true,
}

// Exec pipes every non-partial input through an external command on
// stdin and stores its stdout under the input path with OutExt as the new
// extension (unchanged when empty).
type Exec struct {
	Command string
	Args    []string
	OutExt  string
}

// NewExec parses a command line such as "sass --stdin --style=compressed".
func NewExec(commandLine, outExt string) (*Exec, error) {
	fields := strings.Fields(commandLine)
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty command")
	}
	e := &Exec{Command: fields[0], Args: fields[1:], OutExt: outExt}
	if err := e.validateCommand(); err != nil {
		return nil, err
	}
	return e, nil
}

// Name returns the adapter name.
func (e *Exec) Name() string { return "exec:" + e.Command }

// Invoke runs the command once per input.
func (e *Exec) Invoke(ctx context.Context, files []File, _ Config) (Result, error) {
	if err := e.validateCommand(); err != nil {
		return Result{}, fmt.Errorf("command validation failed: %w", err)
	}

	out := make([]File, 0, len(files))
	for _, f := range files {
		if IsPartial(f.Path) {
			continue
		}

		cmd := exec.CommandContext(ctx, e.Command, e.Args...)
		cmd.Stdin = bytes.NewReader(f.Data)
		var stdout, stderr bytes.Buffer
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr

		if err := cmd.Run(); err != nil {
			if ctx.Err() != nil {
				return Result{}, fmt.Errorf("%s: %s cancelled: %w", f.Path, e.Command, ctx.Err())
			}
			return Result{}, fmt.Errorf("%s: %s failed: %w\nOutput: %s", f.Path, e.Command, err, stderr.String())
		}

		name := f.Path
		if e.OutExt != "" {
			name = ReplaceExt(name, e.OutExt)
		}
		out = append(out, File{Path: name, Data: stdout.Bytes()})
	}
	SortFiles(out)
	return Result{Outputs: out}, nil
}

func (e *Exec) validateCommand() error {
	if e.Command == "" {
		return fmt.Errorf("command cannot be empty")
	}
	if !AllowedCommands[e.Command] {
		return fmt.Errorf("command '%s' is not allowed", e.Command)
	}
	for _, arg := range append([]string{e.Command}, e.Args...) {
		if err := validateArgument(arg); err != nil {
			return fmt.Errorf("invalid argument '%s': %w", arg, err)
		}
	}
	return nil
}

func validateArgument(arg string) error {
	for _, char := range []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'", "\n", "\r"} {
		if strings.Contains(arg, char) {
			return fmt.Errorf("contains dangerous character: %s", char)
		}
	}
	return nil
}
