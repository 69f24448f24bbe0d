package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/goccy/go-json"

	backend "renpy-unapk/internal/backend"
	"renpy-unapk/internal/logger"
	"renpy-unapk/internal/parser"
	"renpy-unapk/internal/utils"
)

const stderrTailBytes = 16 * 1024

var scriptMagic = []byte("RENPY RPC2")

// zlibHeader is the first byte of a legacy (pre RPC2) compiled script.
const zlibHeader = 0x78

// ProcessDecompiler decompiles one file per external process.
type ProcessDecompiler struct {
	log     *logger.Logger
	backend Backend
	command string
	timeout time.Duration
}

// NewProcessDecompiler selects the named backend. command overrides the
// backend's default executable; timeout <= 0 disables the per-file limit.
func NewProcessDecompiler(log *logger.Logger, name, command string, timeout time.Duration) (*ProcessDecompiler, error) {
	b, err := selectBackendFn(name)
	if err != nil {
		return nil, err
	}
	cmd := backend.ResolveCommand(b, command)
	if cmd == "" {
		return nil, fmt.Errorf("decompiler %q needs a command; set --decompiler-command", b.Name())
	}
	return &ProcessDecompiler{log: log, backend: b, command: cmd, timeout: timeout}, nil
}

// Backend returns the selected backend.
func (d *ProcessDecompiler) Backend() Backend { return d.backend }

// Command returns the executable that is run per file.
func (d *ProcessDecompiler) Command() string { return d.command }

// OutputPath returns where the decompiled source of file is written:
// script.rpyc -> script.rpy, screens.rpymc -> screens.rpym, and .txt in dump
// mode.
func OutputPath(file string, dump bool) string {
	ext := filepath.Ext(file)
	base := strings.TrimSuffix(file, ext)
	if dump {
		return base + ".txt"
	}
	return base + strings.TrimSuffix(ext, "c")
}

// checkHeader reads the first bytes of file and rejects anything that is
// neither an RPC2 container nor a zlib stream.
func checkHeader(file string) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	head := make([]byte, len(scriptMagic))
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return err
	}
	head = head[:n]
	if bytes.HasPrefix(head, scriptMagic) || (n > 0 && head[0] == zlibHeader) {
		return nil
	}
	return fmt.Errorf("%s: %w", file, ErrBadHeader)
}

// Decompile is a DecompileFunc.
func (d *ProcessDecompiler) Decompile(ctx context.Context, req BatchRequest) (FileOutput, error) {
	var out FileOutput
	opts := req.Options

	if !opts.TranslationMode() && !opts.Overwrite {
		target := OutputPath(req.Path, opts.Dump)
		if _, err := os.Stat(target); err == nil {
			out.LogLines = append(out.LogLines, fmt.Sprintf("Skipping %s. %s already exists.", req.Path, filepath.Base(target)))
			return out, ErrSkip
		}
	}

	if err := checkHeader(req.Path); err != nil {
		if errors.Is(err, ErrBadHeader) {
			out.LogLines = append(out.LogLines, fmt.Sprintf("Skipping %s: header is not a Ren'Py compiled script.", req.Path))
		}
		return out, err
	}

	if opts.TranslationMode() {
		out.LogLines = append(out.LogLines, fmt.Sprintf("Extracting translations from %s...", req.Path))
	} else {
		out.LogLines = append(out.LogLines, fmt.Sprintf("Decompiling %s to %s...", req.Path, filepath.Base(OutputPath(req.Path, opts.Dump))))
	}
	d.log.Debug(fmt.Sprintf("Running %s on %s (%s)", d.command, req.Path, humanize.Bytes(uint64(max(req.Size, 0)))))

	runCtx, cancel := ctx, context.CancelFunc(func() {})
	if d.timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, d.timeout)
	}
	defer cancel()

	cmd := newCommandRunner(runCtx, d.command, d.backend.BuildArgs(opts, req.Path)...)
	cmd.SetEnv(d.backend.Env(opts))
	stderrTail := &tailBuffer{limit: stderrTailBytes}
	stderrLog := newLogWriter("["+filepath.Base(req.Path)+"] ", 0, d.log.Debug)
	cmd.SetStderr(io.MultiWriter(stderrTail, stderrLog))

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return out, fmt.Errorf("stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return out, fmt.Errorf("start %s: %w", d.command, err)
	}

	stream := parser.ParseEventStream(stdout, d.backend.Protocol() == backend.ProtocolJSONEvents, d.log.Warn)
	waitErr := cmd.Wait()
	stderrLog.Flush()
	out.LogLines = append(out.LogLines, stream.LogLines...)

	if ctx.Err() != nil {
		return out, ctx.Err()
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return out, fmt.Errorf("%s timed out after %s", d.command, d.timeout)
	}
	if waitErr != nil {
		out.LogLines = append(out.LogLines, utils.SplitLines(stderrTail.String(), parser.MaxLogLineRunes)...)
		var coded interface{ ExitCode() int }
		if errors.As(waitErr, &coded) {
			return out, fmt.Errorf("%s exited with code %d", d.command, coded.ExitCode())
		}
		return out, fmt.Errorf("%s: %w", d.command, waitErr)
	}

	switch state := TaskState(stream.State); state {
	case "", StateOK:
	case StateSkip:
		return out, ErrSkip
	case StateBadHeader:
		return out, fmt.Errorf("%s: %w", req.Path, ErrBadHeader)
	case StateError:
		msg := stream.Error
		if msg == "" {
			msg = "decompiler reported an error"
		}
		return out, errors.New(msg)
	default:
		return out, fmt.Errorf("decompiler reported unknown state %q", stream.State)
	}

	if stream.HasTranslations() {
		out.Value = &Translations{Dialogue: stream.Dialogue, Strings: stream.Strings}
		if out.Value.Dialogue == nil {
			out.Value.Dialogue = map[string]json.RawMessage{}
		}
		if out.Value.Strings == nil {
			out.Value.Strings = map[string]string{}
		}
	}
	return out, nil
}
