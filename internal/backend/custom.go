package backend

import (
	"strings"

	config "renpy-unapk/internal/config"
)

// CustomBackend runs a user supplied decompiler that prints JSON events, one
// per line:
//
//	{"type":"log","message":"..."}
//	{"type":"translation","dialogue":{...},"strings":{...}}
//	{"type":"result","state":"ok"}
type CustomBackend struct{}

func (CustomBackend) Name() string       { return "custom" }
func (CustomBackend) Command() string    { return "" }
func (CustomBackend) Protocol() Protocol { return ProtocolJSONEvents }

func (CustomBackend) Env(opts config.DecompileOptions) map[string]string {
	env := map[string]string{"UNAPK_LANGUAGE": opts.Language}
	if strings.TrimSpace(opts.Language) == "" {
		env["UNAPK_LANGUAGE"] = config.DefaultLanguage
	}
	return env
}

func (CustomBackend) BuildArgs(opts config.DecompileOptions, file string) []string {
	args := []string{"--json-events"}
	args = append(args, optionFlags(opts)...)
	if tf := strings.TrimSpace(opts.TranslationFile); tf != "" {
		args = append(args, "--translation-file", tf)
	}
	if opts.TranslationMode() {
		lang := strings.TrimSpace(opts.Language)
		if lang == "" {
			lang = config.DefaultLanguage
		}
		args = append(args, "--extract-translations", "--language", lang)
	}
	return append(args, file)
}
